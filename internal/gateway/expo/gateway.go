// Package expo implements the relay gateway against the Expo push API.
package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

// DefaultBaseURL is the production Expo push endpoint.
const DefaultBaseURL = "https://exp.host/--/api/v2/push/send"

// permanentCodes are the Expo receipt error codes that mean the token itself
// is dead. Anything not listed here stays transient so a valid token is
// never pruned on a code we have not seen before.
var permanentCodes = map[string]bool{
	"DeviceNotRegistered": true,
}

type Gateway struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGateway builds an Expo gateway. An empty url selects the production
// endpoint; a nil client falls back to http.DefaultClient semantics. The
// per-call deadline comes from the caller's context, so the injected client
// does not need its own timeout.
func NewGateway(url string, client *http.Client, logger *slog.Logger) *Gateway {
	if url == "" {
		url = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Gateway{
		url:        url,
		httpClient: client,
		logger:     logger.With("component", "ExpoGateway"),
	}
}

// pushMessage is the Expo wire format for a single message.
type pushMessage struct {
	To       string         `json:"to"`
	Sound    string         `json:"sound,omitempty"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Priority string         `json:"priority,omitempty"`
	Image    string         `json:"image,omitempty"`
	Data     map[string]any `json:"data"`
}

// pushTicket is Expo's per-message receipt.
type pushTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type pushResponse struct {
	Data pushTicket `json:"data"`
}

// Send posts one message and classifies the returned ticket onto the relay
// error taxonomy. Transport errors, non-200 statuses and unparseable bodies
// are all transient.
func (g *Gateway) Send(ctx context.Context, msg relay.Message) error {
	body, err := json.Marshal(pushMessage{
		To:       msg.To,
		Sound:    msg.Sound,
		Title:    msg.Title,
		Body:     msg.Body,
		Priority: msg.Priority,
		Image:    msg.Image,
		Data:     msg.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("expo transport failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo returned status %d", resp.StatusCode)
	}

	var parsed pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode push ticket: %w", err)
	}
	return classifyTicket(parsed.Data)
}

// classifyTicket maps an Expo receipt onto the relay error taxonomy.
func classifyTicket(ticket pushTicket) error {
	if ticket.Status != "error" {
		return nil
	}
	if permanentCodes[ticket.Details.Error] {
		return fmt.Errorf("expo: %s: %w", ticket.Details.Error, relay.ErrNotRegistered)
	}
	return fmt.Errorf("expo rejected message: %s: %s", ticket.Details.Error, ticket.Message)
}
