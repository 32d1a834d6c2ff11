// Package firestore implements the relay token store on Google Cloud
// Firestore: one document per user in the deviceTokens collection, holding
// that user's token array.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

const collectionName = "deviceTokens"

// TokenStore implements relay.TokenStore using Google Cloud Firestore.
//
// Add and Remove use the ArrayUnion / ArrayRemove field transforms, which
// Firestore applies atomically per document. That is the register-race
// safety the dispatch engine relies on: a token registered while a cycle is
// in flight survives a concurrent prune.
type TokenStore struct {
	client *firestore.Client
}

func NewTokenStore(client *firestore.Client) *TokenStore {
	return &TokenStore{client: client}
}

// tokenDoc is the internal DB representation.
type tokenDoc struct {
	Tokens    []string  `firestore:"tokens"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (s *TokenStore) Add(ctx context.Context, userID, token string) error {
	// Set with merge creates the record on first registration; ArrayUnion
	// makes a duplicate registration a no-op.
	_, err := s.doc(userID).Set(ctx, map[string]any{
		"tokens":     firestore.ArrayUnion(token),
		"updated_at": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore add token failed: %w", err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, userID string) (relay.TokenRecord, error) {
	snap, err := s.doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return relay.TokenRecord{}, relay.ErrNotFound
	}
	if err != nil {
		return relay.TokenRecord{}, fmt.Errorf("firestore get failed: %w", err)
	}
	return recordFrom(snap)
}

func (s *TokenStore) All(ctx context.Context) ([]relay.TokenRecord, error) {
	iter := s.client.Collection(collectionName).Documents(ctx)
	defer iter.Stop()

	var records []relay.TokenRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}
		record, err := recordFrom(snap)
		if err != nil {
			// A corrupt row should not fail the whole broadcast.
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *TokenStore) Remove(ctx context.Context, userID string, tokens []string) error {
	elems := make([]any, len(tokens))
	for i, token := range tokens {
		elems[i] = token
	}
	_, err := s.doc(userID).Update(ctx, []firestore.Update{
		{Path: "tokens", Value: firestore.ArrayRemove(elems...)},
		{Path: "updated_at", Value: firestore.ServerTimestamp},
	})
	if status.Code(err) == codes.NotFound {
		// Record vanished between resolution and prune; nothing to remove.
		return nil
	}
	if err != nil {
		return fmt.Errorf("firestore remove tokens failed: %w", err)
	}
	return nil
}

func (s *TokenStore) doc(userID string) *firestore.DocumentRef {
	return s.client.Collection(collectionName).Doc(userID)
}

func recordFrom(snap *firestore.DocumentSnapshot) (relay.TokenRecord, error) {
	var doc tokenDoc
	if err := snap.DataTo(&doc); err != nil {
		return relay.TokenRecord{}, fmt.Errorf("failed to decode token record %q: %w", snap.Ref.ID, err)
	}
	return relay.TokenRecord{
		UserID:    snap.Ref.ID,
		Tokens:    doc.Tokens,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}
