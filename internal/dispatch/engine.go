// Package dispatch contains the core fan-out-and-prune routine: resolving a
// target into tokens, sending one delivery per token through the gateway,
// classifying the outcomes and reconciling the token store.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

// Config groups the per-delivery settings that varied ad hoc between
// historical deployments into one place with explicit defaults.
type Config struct {
	// SendTimeout bounds each gateway call. Keep it strictly shorter than
	// any outer request deadline. Defaults to 10s.
	SendTimeout time.Duration
	// Priority and Sound are applied to payloads that leave them empty.
	// Default "high" / "default".
	Priority string
	Sound    string
	// TokenFormat decides token well-formedness. Defaults to relay.ExpoToken.
	TokenFormat relay.TokenFormat
}

func (c Config) withDefaults() Config {
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.Priority == "" {
		c.Priority = "high"
	}
	if c.Sound == "" {
		c.Sound = "default"
	}
	if c.TokenFormat == nil {
		c.TokenFormat = relay.ExpoToken
	}
	return c
}

// Engine runs one dispatch cycle: Resolving → Sending → Reconciling → Done.
// It holds no state between cycles; a failed cycle is independently
// retryable by the caller.
type Engine struct {
	store      relay.TokenStore
	gateway    relay.Gateway
	reconciler *Reconciler
	cfg        Config
	logger     *slog.Logger
}

func NewEngine(store relay.TokenStore, gateway relay.Gateway, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		gateway:    gateway,
		reconciler: NewReconciler(store, logger),
		cfg:        cfg.withDefaults(),
		logger:     logger.With("component", "DispatchEngine"),
	}
}

// delivery is one resolved (owner, token) pair. Owner is empty for
// direct-token dispatches.
type delivery struct {
	owner string
	token string
}

// Dispatch resolves the target, fans the payload out to every resolved
// token, prunes permanently invalid tokens and returns the cycle summary.
//
// Partial delivery is normal: per-token failures are aggregated into the
// summary and never abort the cycle. Only resolution-phase failures
// (validation, unknown user) return before any send is attempted. A
// *relay.StoreError is returned alongside a complete summary when pruning
// itself fails; deliveries are never rolled back.
func (e *Engine) Dispatch(ctx context.Context, target relay.Target, payload relay.Payload) (relay.Summary, error) {
	cycleLogger := e.logger.With("cycle_id", uuid.NewString())

	if err := e.validate(target, payload); err != nil {
		return relay.Summary{}, err
	}

	deliveries, err := e.resolve(ctx, target)
	if err != nil {
		return relay.Summary{}, err
	}
	cycleLogger.Debug("Target resolved", "tokens", len(deliveries))

	outcomes := e.send(ctx, deliveries, payload)

	removed, recErr := e.reconciler.Reconcile(ctx, outcomes)

	summary := relay.Summary{Attempted: len(outcomes), Removed: removed}
	for _, o := range outcomes {
		if o.Status == relay.StatusDelivered {
			summary.Delivered++
		}
	}
	summary.Failed = summary.Attempted - summary.Delivered - summary.Removed

	cycleLogger.Info("Dispatch cycle complete",
		"attempted", summary.Attempted,
		"delivered", summary.Delivered,
		"failed", summary.Failed,
		"removed", summary.Removed,
	)
	return summary, recErr
}

func (e *Engine) validate(target relay.Target, payload relay.Payload) error {
	if payload.Title == "" {
		return &relay.ValidationError{Field: "title", Reason: "required"}
	}
	if payload.Body == "" {
		return &relay.ValidationError{Field: "body", Reason: "required"}
	}
	switch target.Kind {
	case relay.TargetUser:
		if target.UserID == "" {
			return &relay.ValidationError{Field: "userId", Reason: "required"}
		}
	case relay.TargetDirectToken:
		if !e.cfg.TokenFormat(target.Token) {
			return &relay.ValidationError{Field: "token", Reason: "malformed device token"}
		}
	}
	return nil
}

func (e *Engine) resolve(ctx context.Context, target relay.Target) ([]delivery, error) {
	switch target.Kind {
	case relay.TargetDirectToken:
		// No owner: this path never reads the store, so it cannot prune it.
		return []delivery{{token: target.Token}}, nil

	case relay.TargetUser:
		record, err := e.store.Get(ctx, target.UserID)
		if errors.Is(err, relay.ErrNotFound) {
			return nil, fmt.Errorf("user %q has no token record: %w", target.UserID, relay.ErrNotFound)
		}
		if err != nil {
			return nil, &relay.StoreError{Err: err}
		}
		if len(record.Tokens) == 0 {
			return nil, fmt.Errorf("token record for user %q is empty: %w", target.UserID, relay.ErrNotFound)
		}
		deliveries := make([]delivery, 0, len(record.Tokens))
		for _, token := range record.Tokens {
			deliveries = append(deliveries, delivery{owner: record.UserID, token: token})
		}
		return deliveries, nil

	case relay.TargetAllUsers:
		records, err := e.store.All(ctx)
		if err != nil {
			return nil, &relay.StoreError{Err: err}
		}
		var deliveries []delivery
		for _, record := range records {
			for _, token := range record.Tokens {
				deliveries = append(deliveries, delivery{owner: record.UserID, token: token})
			}
		}
		return deliveries, nil
	}
	return nil, &relay.ValidationError{Field: "target", Reason: "unknown target kind"}
}

// send fans out one goroutine per delivery. Outcome order is not
// meaningful; the channel collector keeps aggregation race-free.
func (e *Engine) send(ctx context.Context, deliveries []delivery, payload relay.Payload) []relay.Outcome {
	results := make(chan relay.Outcome, len(deliveries))
	var wg sync.WaitGroup
	for _, d := range deliveries {
		wg.Add(1)
		go func(d delivery) {
			defer wg.Done()
			results <- e.sendOne(ctx, d, payload)
		}(d)
	}
	wg.Wait()
	close(results)

	outcomes := make([]relay.Outcome, 0, len(deliveries))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (e *Engine) sendOne(ctx context.Context, d delivery, payload relay.Payload) relay.Outcome {
	outcome := relay.Outcome{Owner: d.owner, Token: d.token}

	// A stored token that fails format validation is immediately invalid:
	// no gateway call, straight into the prune set.
	if !e.cfg.TokenFormat(d.token) {
		outcome.Status = relay.StatusFailedPermanent
		outcome.Err = fmt.Errorf("malformed token: %w", relay.ErrNotRegistered)
		return outcome
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	defer cancel()

	err := e.gateway.Send(callCtx, e.message(d.token, payload))
	switch {
	case err == nil:
		outcome.Status = relay.StatusDelivered
	case errors.Is(err, relay.ErrNotRegistered):
		outcome.Status = relay.StatusFailedPermanent
		outcome.Err = err
	default:
		// Timeouts, network errors and unknown gateway codes default to
		// transient so a valid token is never pruned by mistake.
		outcome.Status = relay.StatusFailedTransient
		outcome.Err = err
		e.logger.Warn("Delivery failed", "token", d.token, "err", err)
	}
	return outcome
}

func (e *Engine) message(token string, payload relay.Payload) relay.Message {
	msg := relay.Message{
		To:       token,
		Title:    payload.Title,
		Body:     payload.Body,
		Image:    payload.Image,
		Sound:    payload.Sound,
		Priority: payload.Priority,
		Data:     payload.Data,
	}
	if msg.Sound == "" {
		msg.Sound = e.cfg.Sound
	}
	if msg.Priority == "" {
		msg.Priority = e.cfg.Priority
	}
	if msg.Data == nil {
		msg.Data = map[string]any{}
	}
	return msg
}
