package relay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

func TestSendRequest_Target(t *testing.T) {
	t.Run("UserID resolves to a user target", func(t *testing.T) {
		req := relay.SendRequest{UserID: "user-1", Title: "a", Body: "b"}
		assert.Equal(t, relay.UserTarget("user-1"), req.Target())
	})

	t.Run("The literal all resolves to a broadcast", func(t *testing.T) {
		req := relay.SendRequest{UserID: relay.BroadcastUserID, Title: "a", Body: "b"}
		assert.Equal(t, relay.AllUsersTarget(), req.Target())
	})

	t.Run("Token wins over UserID", func(t *testing.T) {
		req := relay.SendRequest{
			UserID: "user-1",
			Token:  "ExponentPushToken[xyz]",
			Title:  "a",
			Body:   "b",
		}
		assert.Equal(t, relay.DirectTokenTarget("ExponentPushToken[xyz]"), req.Target())
	})
}

func TestSendRequest_Validate(t *testing.T) {
	testCases := []struct {
		name          string
		req           relay.SendRequest
		expectedField string
	}{
		{
			name: "Valid user request",
			req:  relay.SendRequest{UserID: "user-1", Title: "a", Body: "b"},
		},
		{
			name: "Valid token request",
			req:  relay.SendRequest{Token: "ExponentPushToken[x]", Title: "a", Body: "b"},
		},
		{
			name:          "Missing title",
			req:           relay.SendRequest{UserID: "user-1", Body: "b"},
			expectedField: "title",
		},
		{
			name:          "Missing body",
			req:           relay.SendRequest{UserID: "user-1", Title: "a"},
			expectedField: "body",
		},
		{
			name:          "No recipient at all",
			req:           relay.SendRequest{Title: "a", Body: "b"},
			expectedField: "userId",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.expectedField == "" {
				require.NoError(t, err)
				return
			}
			var validationErr *relay.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.expectedField, validationErr.Field)
		})
	}
}

func TestTokenFormats(t *testing.T) {
	t.Run("ExpoToken", func(t *testing.T) {
		assert.True(t, relay.ExpoToken("ExponentPushToken[abc123]"))
		assert.True(t, relay.ExpoToken("ExpoPushToken[abc123]"))
		assert.False(t, relay.ExpoToken("ExponentPushToken[abc123"))
		assert.False(t, relay.ExpoToken("fcm-raw-token"))
		assert.False(t, relay.ExpoToken(""))
	})

	t.Run("OpaqueToken", func(t *testing.T) {
		assert.True(t, relay.OpaqueToken("anything-goes"))
		assert.False(t, relay.OpaqueToken(""))
	})
}
