package indicator

import (
	"context"
	"log/slog"

	"candle-featuresv1/internal/model"
)

// Restorer orchestrates indicator engine state restoration on startup.
// It follows a priority chain: snapshot store → bar store backfill → cold start.
type Restorer struct {
	configs []IntervalConfig
}

// NewRestorer creates a new Restorer for the given interval configs.
func NewRestorer(configs []IntervalConfig) *Restorer {
	return &Restorer{configs: configs}
}

// Restore loads the latest snapshot from store and rebuilds the engine.
// Any store or decode failure falls back to a cold engine.
func (r *Restorer) Restore(ctx context.Context, store model.SnapshotStore) *Engine {
	if store == nil {
		return NewEngine(r.configs)
	}
	data, err := store.ReadLatestSnapshotJSON(ctx)
	if err != nil {
		slog.Warn("snapshot read failed, cold starting indicator engine", "error", err)
		return NewEngine(r.configs)
	}
	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		slog.Warn("snapshot decode failed, cold starting indicator engine", "error", err)
		return NewEngine(r.configs)
	}
	return r.RestoreFromSnap(snap)
}

// RestoreFromSnap restores an engine from a snapshot.
// If snap is nil, returns a fresh engine (cold start).
func (r *Restorer) RestoreFromSnap(snap *EngineSnapshot) *Engine {
	if snap == nil {
		slog.Info("no snapshot found, cold starting indicator engine")
		return NewEngine(r.configs)
	}
	slog.Info("restoring indicator engine from snapshot", "version", snap.Version, "markets", len(snap.Markets))
	return RestoreEngine(r.configs, snap)
}

// Save writes the engine state to store.
func (r *Restorer) Save(ctx context.Context, engine *Engine, store model.SnapshotStore) error {
	data, err := SnapshotEngine(engine).Marshal()
	if err != nil {
		return err
	}
	return store.SaveSnapshotJSON(ctx, data)
}

// Backfill reads stored bars newer than what the engine has seen and feeds
// them through Process, so a restored or cold engine catches up before the
// live stream starts. Cold markets only read the last MaxLookback bars,
// unless the interval carries a running total (OBV) that needs every bar.
// If onResults is non-nil it receives the results of every bar.
// Returns the number of bars fed.
func (r *Restorer) Backfill(ctx context.Context, engine *Engine, reader model.BarReader, symbols []string, onResults func([]model.IndicatorResult)) int {
	if reader == nil {
		return 0
	}
	warmup := engine.MaxLookback()
	if warmup == 0 {
		return 0
	}

	total := 0
	for _, cfg := range r.configs {
		for _, symbol := range symbols {
			after := engine.LastTimestamp(symbol, cfg.Interval)
			bars, err := reader.ReadBars(ctx, symbol, cfg.Interval, after)
			if err != nil {
				slog.Warn("backfill read failed", "market", model.MarketKey(symbol, cfg.Interval), "error", err)
				continue
			}
			if after == 0 && !cumulative(cfg) && len(bars) > warmup {
				bars = bars[len(bars)-warmup:]
			}
			for _, b := range bars {
				results := engine.Process(model.Kline{Symbol: symbol, Interval: cfg.Interval, Bar: b, Final: true})
				if onResults != nil && len(results) > 0 {
					onResults(results)
				}
			}
			total += len(bars)
			if len(bars) > 0 {
				slog.Info("backfilled bars", "market", model.MarketKey(symbol, cfg.Interval), "bars", len(bars))
			}
		}
	}
	return total
}

// cumulative reports whether cfg has an indicator whose value depends on
// the whole history rather than a fixed lookback window.
func cumulative(cfg IntervalConfig) bool {
	for _, ic := range cfg.Indicators {
		if ic.Type == TypeOBV {
			return true
		}
	}
	return false
}
