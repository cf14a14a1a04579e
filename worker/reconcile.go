// Package worker runs the background jobs of the server.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reconciler repairs drifted registration counts and reports how many it fixed.
type Reconciler interface {
	ReconcileCounts(ctx context.Context) (int64, error)
}

// Reconcile calls r every interval until ctx is cancelled. A repair means a
// count had drifted from its registrations, so it is logged as a warning.
func Reconcile(ctx context.Context, r Reconciler, interval time.Duration, log *zap.Logger) error {
	if interval <= 0 {
		log.Info("count reconciliation disabled")
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("count reconciliation worker stopping")
			return nil
		case <-ticker.C:
			RunOnce(ctx, r, log)
		}
	}
}

// RunOnce performs a single reconciliation pass.
func RunOnce(ctx context.Context, r Reconciler, log *zap.Logger) {
	repaired, err := r.ReconcileCounts(ctx)
	switch {
	case err != nil && ctx.Err() == nil:
		log.Error("failed to reconcile registration counts", zap.Error(err))
	case repaired > 0:
		log.Warn("repaired drifted registration counts", zap.Int64("count", repaired))
	}
}
