package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

// Dispatcher defines the subset of the dispatch engine the pipeline uses.
type Dispatcher interface {
	Dispatch(ctx context.Context, target relay.Target, payload relay.Payload) (relay.Summary, error)
}

// NewProcessor creates the logic that runs one dispatch cycle per consumed
// message.
//
// Drop policy: validation failures and unknown users are acked and dropped
// because redelivery cannot fix them. Store failures are returned so the
// message is redelivered and the prune can succeed on a future cycle.
func NewProcessor(engine Dispatcher, logger *slog.Logger) messagepipeline.StreamProcessor[relay.SendRequest] {
	return func(ctx context.Context, original messagepipeline.Message, request *relay.SendRequest) error {
		procLogger := logger.With(
			"user_id", request.UserID,
			"pubsub_msg_id", original.ID,
		)

		if err := request.Validate(); err != nil {
			procLogger.Warn("Dropping invalid send request", "err", err)
			return nil
		}

		summary, err := engine.Dispatch(ctx, request.Target(), request.Payload())

		var validationErr *relay.ValidationError
		switch {
		case errors.As(err, &validationErr), errors.Is(err, relay.ErrNotFound):
			procLogger.Info("Dropping undeliverable send request", "err", err)
			return nil
		case err != nil:
			procLogger.Error("Dispatch failed", "err", err)
			return err // Retryable
		}

		procLogger.Info("Dispatched",
			"attempted", summary.Attempted,
			"delivered", summary.Delivered,
			"removed", summary.Removed,
		)
		return nil
	}
}
