package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

// Reconciler applies the prune set of one dispatch cycle back to the token
// store: one set-difference update per owner that had a permanently invalid
// token. Transient failures are left untouched.
type Reconciler struct {
	store  relay.TokenStore
	logger *slog.Logger
}

func NewReconciler(store relay.TokenStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.With("component", "Reconciler"),
	}
}

// Reconcile prunes every permanently failed token, grouped per owner, and
// returns the number of tokens actually removed. Ownerless outcomes (direct
// sends) are skipped: there is no record to reconcile.
//
// A store failure for one owner does not stop the others. All failures are
// joined into a single *relay.StoreError; the affected tokens stay in the
// store and are pruned on a future cycle.
func (r *Reconciler) Reconcile(ctx context.Context, outcomes []relay.Outcome) (int, error) {
	pruneSets := make(map[string][]string)
	for _, outcome := range outcomes {
		if outcome.Status != relay.StatusFailedPermanent || outcome.Owner == "" {
			continue
		}
		pruneSets[outcome.Owner] = append(pruneSets[outcome.Owner], outcome.Token)
	}

	removed := 0
	var errs []error
	for owner, tokens := range pruneSets {
		if err := r.store.Remove(ctx, owner, tokens); err != nil {
			r.logger.Warn("Failed to prune invalid tokens", "user_id", owner, "count", len(tokens), "err", err)
			errs = append(errs, fmt.Errorf("prune for user %q: %w", owner, err))
			continue
		}
		r.logger.Info("Pruned invalid tokens", "user_id", owner, "count", len(tokens))
		removed += len(tokens)
	}

	if len(errs) > 0 {
		return removed, &relay.StoreError{Err: errors.Join(errs...)}
	}
	return removed, nil
}
