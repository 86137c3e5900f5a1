package indengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"candle-featuresv1/internal/indicator"
)

// snapshotLoop periodically saves engine state to every snapshot store.
func (svc *Service) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(svc.cfg.SnapshotEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.Checkpoint(ctx); err != nil {
				slog.Warn("checkpoint incomplete", "error", err)
			}
		}
	}
}

// Checkpoint encodes the engine once and writes it to every store. Each
// store is attempted; the joined failures are returned.
func (svc *Service) Checkpoint(ctx context.Context) error {
	if len(svc.deps.Snapshots) == 0 {
		return nil
	}

	svc.mu.Lock()
	snap := indicator.SnapshotEngine(svc.engine)
	svc.mu.Unlock()

	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	var errs []error
	for i, store := range svc.deps.Snapshots {
		if store == nil {
			continue
		}
		if err := store.SaveSnapshotJSON(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("store %d: %w", i, err))
		}
	}
	if len(errs) == 0 {
		slog.Info("checkpoint saved", "markets", len(snap.Markets), "bytes", len(data))
	}
	return errors.Join(errs...)
}
