// Package pipeline contains the async ingestion path: send requests arriving
// on a Pub/Sub subscription instead of the HTTP API.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

// SendRequestTransformer is a dataflow Transformer that unmarshals a raw
// message payload into a relay.SendRequest.
//
// A payload that does not parse can never succeed on redelivery, so we
// return skip=true and let the StreamingService handle the Nack/DLQ logic.
func SendRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*relay.SendRequest, bool, error) {
	var req relay.SendRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal send request from message %s: %w", msg.ID, err)
	}
	return &req, false, nil
}
