// Package api holds the thin HTTP layer over the token store and the
// dispatch engine.
package api

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

type TokenAPI struct {
	Store       relay.TokenStore
	TokenFormat relay.TokenFormat
	Logger      *slog.Logger
}

func NewTokenAPI(store relay.TokenStore, format relay.TokenFormat, logger *slog.Logger) *TokenAPI {
	if format == nil {
		format = relay.ExpoToken
	}
	return &TokenAPI{
		Store:       store,
		TokenFormat: format,
		Logger:      logger,
	}
}

type SaveTokenRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// SaveToken registers one device token for a user. The store treats a
// duplicate registration as a no-op.
func (api *TokenAPI) SaveToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SaveTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.UserID == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing userId")
		return
	}
	if req.UserID == relay.BroadcastUserID {
		// "all" is the broadcast selector, not a registrable user.
		response.WriteJSONError(w, http.StatusBadRequest, "reserved userId")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}
	if !api.TokenFormat(req.Token) {
		api.Logger.Warn("SaveToken: rejected malformed token", "user_id", req.UserID)
		response.WriteJSONError(w, http.StatusBadRequest, "malformed device token")
		return
	}

	if err := api.Store.Add(ctx, req.UserID, req.Token); err != nil {
		api.Logger.Error("failed to save token", "user_id", req.UserID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
