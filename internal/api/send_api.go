package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

// Dispatcher defines the subset of the dispatch engine the API uses.
// This interface allows us to mock the engine for unit testing.
type Dispatcher interface {
	Dispatch(ctx context.Context, target relay.Target, payload relay.Payload) (relay.Summary, error)
}

type SendAPI struct {
	Engine Dispatcher
	Logger *slog.Logger
}

func NewSendAPI(engine Dispatcher, logger *slog.Logger) *SendAPI {
	return &SendAPI{
		Engine: engine,
		Logger: logger,
	}
}

// SendResponse is the best-effort cycle summary returned to the caller.
// Partial delivery is normal and still reports success with counts.
type SendResponse struct {
	Success     bool `json:"success"`
	TotalTokens int  `json:"totalTokens"`
	Sent        int  `json:"sent"`
	Removed     int  `json:"removed"`
}

// SendToUser dispatches to one user's tokens, or to every user when userId
// is the literal "all".
func (api *SendAPI) SendToUser(w http.ResponseWriter, r *http.Request) {
	var req relay.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	// This endpoint addresses users only; a stray token field must not
	// silently flip the target.
	req.Token = ""

	if req.UserID == "" || req.Title == "" || req.Body == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "userId, title, body are required")
		return
	}

	api.dispatch(w, r, &req)
}

// SendToToken dispatches to a single raw token. No store lookup happens and
// nothing is pruned on failure.
func (api *SendAPI) SendToToken(w http.ResponseWriter, r *http.Request) {
	var req relay.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.UserID = ""

	if req.Token == "" || req.Title == "" || req.Body == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "token, title, body are required")
		return
	}

	api.dispatch(w, r, &req)
}

func (api *SendAPI) dispatch(w http.ResponseWriter, r *http.Request, req *relay.SendRequest) {
	summary, err := api.Engine.Dispatch(r.Context(), req.Target(), req.Payload())

	var validationErr *relay.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.WriteJSONError(w, http.StatusBadRequest, validationErr.Error())
		return
	case errors.Is(err, relay.ErrNotFound):
		response.WriteJSONError(w, http.StatusNotFound, "no tokens found for this user")
		return
	case err != nil:
		api.Logger.Error("dispatch failed", "user_id", req.UserID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "error sending notification")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(SendResponse{
		Success:     true,
		TotalTokens: summary.Attempted,
		Sent:        summary.Delivered,
		Removed:     summary.Removed,
	})
}
