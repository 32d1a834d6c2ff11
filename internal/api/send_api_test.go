package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-relay/internal/api"
	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, target relay.Target, payload relay.Payload) (relay.Summary, error) {
	args := m.Called(ctx, target, payload)
	return args.Get(0).(relay.Summary), args.Error(1)
}

func postSend(handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestSendAPI_SendToUser(t *testing.T) {
	t.Run("Successful dispatch returns cycle summary", func(t *testing.T) {
		engine := new(MockDispatcher)
		engine.On("Dispatch", mock.Anything, relay.UserTarget("user-1"), mock.Anything).
			Return(relay.Summary{Attempted: 3, Delivered: 2, Failed: 0, Removed: 1}, nil)
		sendAPI := api.NewSendAPI(engine, newTestLogger())

		rec := postSend(sendAPI.SendToUser, "/api/v1/send/user",
			`{"userId":"user-1","title":"Hello","body":"World"}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp api.SendResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 3, resp.TotalTokens)
		assert.Equal(t, 2, resp.Sent)
		assert.Equal(t, 1, resp.Removed)
		engine.AssertExpectations(t)
	})

	t.Run("userId all targets every user", func(t *testing.T) {
		engine := new(MockDispatcher)
		engine.On("Dispatch", mock.Anything, relay.AllUsersTarget(), mock.Anything).
			Return(relay.Summary{Attempted: 10, Delivered: 10}, nil)
		sendAPI := api.NewSendAPI(engine, newTestLogger())

		rec := postSend(sendAPI.SendToUser, "/api/v1/send/user",
			`{"userId":"all","title":"Hello","body":"World"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		engine.AssertExpectations(t)
	})

	t.Run("Token field is ignored on the user endpoint", func(t *testing.T) {
		engine := new(MockDispatcher)
		engine.On("Dispatch", mock.Anything, relay.UserTarget("user-1"), mock.Anything).
			Return(relay.Summary{Attempted: 1, Delivered: 1}, nil)
		sendAPI := api.NewSendAPI(engine, newTestLogger())

		rec := postSend(sendAPI.SendToUser, "/api/v1/send/user",
			`{"userId":"user-1","token":"ExponentPushToken[stray]","title":"Hello","body":"World"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		engine.AssertExpectations(t)
	})

	t.Run("Unknown user returns 404", func(t *testing.T) {
		engine := new(MockDispatcher)
		engine.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).
			Return(relay.Summary{}, relay.ErrNotFound)
		sendAPI := api.NewSendAPI(engine, newTestLogger())

		rec := postSend(sendAPI.SendToUser, "/api/v1/send/user",
			`{"userId":"nobody","title":"Hello","body":"World"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "no tokens found for this user")
	})

	t.Run("Missing fields return 400 without dispatching", func(t *testing.T) {
		engine := new(MockDispatcher)
		sendAPI := api.NewSendAPI(engine, newTestLogger())

		cases := map[string]string{
			"missing userId": `{"title":"Hello","body":"World"}`,
			"missing title":  `{"userId":"user-1","body":"World"}`,
			"missing body":   `{"userId":"user-1","title":"Hello"}`,
			"invalid json":   `{nope`,
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				rec := postSend(sendAPI.SendToUser, "/api/v1/send/user", body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
		engine.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Engine failure returns 500", func(t *testing.T) {
		engine := new(MockDispatcher)
		engine.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).
			Return(relay.Summary{}, errors.New("gateway exploded"))
		sendAPI := api.NewSendAPI(engine, newTestLogger())

		rec := postSend(sendAPI.SendToUser, "/api/v1/send/user",
			`{"userId":"user-1","title":"Hello","body":"World"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "error sending notification")
	})

	t.Run("Partial store failure still reports the summary error", func(t *testing.T) {
		engine := new(MockDispatcher)
		engine.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).
			Return(relay.Summary{Attempted: 2, Delivered: 2}, &relay.StoreError{Err: errors.New("prune failed")})
		sendAPI := api.NewSendAPI(engine, newTestLogger())

		rec := postSend(sendAPI.SendToUser, "/api/v1/send/user",
			`{"userId":"user-1","title":"Hello","body":"World"}`)

		// Sends went out but the store write failed; the caller sees a 500
		// rather than a success with silently wrong removal counts.
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSendAPI_SendToToken(t *testing.T) {
	t.Run("Direct token dispatch", func(t *testing.T) {
		engine := new(MockDispatcher)
		engine.On("Dispatch", mock.Anything, relay.DirectTokenTarget("ExponentPushToken[dddd]"), mock.Anything).
			Return(relay.Summary{Attempted: 1, Delivered: 1}, nil)
		sendAPI := api.NewSendAPI(engine, newTestLogger())

		rec := postSend(sendAPI.SendToToken, "/api/v1/send/token",
			`{"token":"ExponentPushToken[dddd]","title":"Hello","body":"World"}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp api.SendResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.TotalTokens)
		engine.AssertExpectations(t)
	})

	t.Run("Malformed token surfaces as 400", func(t *testing.T) {
		engine := new(MockDispatcher)
		engine.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).
			Return(relay.Summary{}, &relay.ValidationError{Field: "token", Reason: "malformed device token"})
		sendAPI := api.NewSendAPI(engine, newTestLogger())

		rec := postSend(sendAPI.SendToToken, "/api/v1/send/token",
			`{"token":"garbage","title":"Hello","body":"World"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Missing token returns 400", func(t *testing.T) {
		engine := new(MockDispatcher)
		sendAPI := api.NewSendAPI(engine, newTestLogger())

		rec := postSend(sendAPI.SendToToken, "/api/v1/send/token",
			`{"title":"Hello","body":"World"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		engine.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
	})
}
