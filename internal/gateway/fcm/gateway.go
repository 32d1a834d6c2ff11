// Package fcm implements the relay gateway against Firebase Cloud Messaging,
// for deployments that store raw FCM registration tokens instead of Expo
// tokens.
package fcm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

type Gateway struct {
	client MessagingClient
	logger *slog.Logger
}

// NewGateway accepts the concrete client but stores it as the interface.
// Note: *messaging.Client automatically satisfies this interface.
func NewGateway(client MessagingClient, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger.With("component", "FCMGateway"),
	}
}

// Send delivers one message and classifies the SDK error. Unregistered or
// garbage tokens wrap relay.ErrNotRegistered; everything else is transient.
func (g *Gateway) Send(ctx context.Context, msg relay.Message) error {
	fcmMsg := &messaging.Message{
		Token: msg.To,
		Notification: &messaging.Notification{
			Title:    msg.Title,
			Body:     msg.Body,
			ImageURL: msg.Image,
		},
		Data: stringData(msg.Data),
		Android: &messaging.AndroidConfig{
			Priority: msg.Priority,
			Notification: &messaging.AndroidNotification{
				Sound: msg.Sound,
			},
		},
	}

	_, err := g.client.Send(ctx, fcmMsg)
	if err == nil {
		return nil
	}
	if messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsInvalidArgument(err) {
		return fmt.Errorf("fcm rejected token: %v: %w", err, relay.ErrNotRegistered)
	}
	return fmt.Errorf("fcm transport failed: %w", err)
}

// stringData converts the opaque data map to the string-valued form FCM
// requires. Non-string values are forwarded JSON-encoded.
func stringData(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for key, value := range data {
		if s, ok := value.(string); ok {
			out[key] = s
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			continue
		}
		out[key] = string(encoded)
	}
	return out
}
