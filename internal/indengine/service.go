// Package indengine runs the live indicator engine: closed and forming
// klines from the exchange stream pass through a bounded ring into the
// engine, results go to the Redis cache, and engine state is checkpointed
// to Redis and SQLite.
package indengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"candle-featuresv1/internal/indicator"
	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/ringbuf"

	"golang.org/x/sync/errgroup"
)

// KlineSource emits klines until ctx is done.
type KlineSource interface {
	Run(ctx context.Context, out chan<- model.Kline) error
}

// ResultSink receives every batch of indicator results.
type ResultSink interface {
	WriteResults(results []model.IndicatorResult) error
}

// BarSink persists closed klines read from a channel.
type BarSink interface {
	RunKlines(ctx context.Context, in <-chan model.Kline)
}

// Deps are the collaborators of a Service. Only Source is required.
type Deps struct {
	Source    KlineSource
	Results   ResultSink
	Snapshots []model.SnapshotStore // read in order on restore, all written on checkpoint
	Bars      model.BarReader       // backfill source
	BarSink   BarSink
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
}

// Service is the top-level orchestrator for the indicator engine.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex // guards engine and restorer
	engine   *indicator.Engine
	restorer *indicator.Restorer

	ring     *ringbuf.Ring[model.Kline]
	throttle *peekThrottle
}

// New validates cfg and builds a Service. The engine is restored in Run.
func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Source == nil {
		return nil, errors.New("indengine: kline source is required")
	}
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("indengine: at least one symbol is required")
	}
	if len(cfg.Intervals) == 0 {
		return nil, errors.New("indengine: at least one interval is required")
	}
	if err := indicator.ValidateConfigs(cfg.Intervals); err != nil {
		return nil, fmt.Errorf("indengine: %w", err)
	}
	if cfg.SnapshotEvery <= 0 {
		cfg.SnapshotEvery = 30 * time.Second
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 4096
	}
	if deps.Health == nil {
		deps.Health = metrics.NewHealthStatus()
	}
	deps.Health.SetIntervals(cfg.IntervalNames())

	return &Service{
		cfg:      cfg,
		deps:     deps,
		restorer: indicator.NewRestorer(cfg.Intervals),
		engine:   indicator.NewEngine(cfg.Intervals),
		ring:     ringbuf.New[model.Kline](cfg.RingSize),
		throttle: newPeekThrottle(cfg.PeekEvery),
	}, nil
}

// Restore loads the newest snapshot from the first store that has one and
// backfills every market from stored bars. Returns the number of bars fed.
func (svc *Service) Restore(ctx context.Context) int {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.engine = svc.restorer.RestoreFromSnap(svc.readSnapshot(ctx))

	n := svc.restorer.Backfill(ctx, svc.engine, svc.deps.Bars, svc.cfg.Symbols, svc.publish)
	if n > 0 {
		slog.Info("indicator engine warmed up", "bars", n)
	}
	svc.deps.Health.SetIndicatorOK(true)
	return n
}

func (svc *Service) readSnapshot(ctx context.Context) *indicator.EngineSnapshot {
	for i, store := range svc.deps.Snapshots {
		if store == nil {
			continue
		}
		data, err := store.ReadLatestSnapshotJSON(ctx)
		if err != nil {
			slog.Warn("snapshot read failed", "store", i, "error", err)
			continue
		}
		if data == nil {
			continue
		}
		snap, err := indicator.UnmarshalSnapshot(data)
		if err != nil {
			slog.Warn("snapshot decode failed", "store", i, "error", err)
			continue
		}
		return snap
	}
	return nil
}

// Run restores the engine, then streams klines through it until ctx is
// cancelled, and finally writes a last checkpoint.
func (svc *Service) Run(ctx context.Context) error {
	slog.Info("starting indicator engine",
		"symbols", svc.cfg.Symbols, "intervals", svc.cfg.IntervalNames(),
		"snapshot_every", svc.cfg.SnapshotEvery, "ring", svc.ring.Cap())

	svc.Restore(ctx)

	rawCh := make(chan model.Kline, 256)
	klineCh := make(chan model.Kline, 256)
	var barCh chan model.Kline
	if svc.deps.BarSink != nil {
		barCh = make(chan model.Kline, 1024)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := svc.deps.Source.Run(gctx, rawCh)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		svc.ring.Fill(gctx, rawCh, func(k model.Kline) {
			if svc.deps.Metrics != nil {
				svc.deps.Metrics.RingBufOverflow.Inc()
			}
			slog.Warn("kline ring full, dropping", "market", k.Key(), "final", k.Final)
		})
		return nil
	})
	g.Go(func() error {
		svc.ring.Drain(gctx, klineCh, time.Millisecond)
		return nil
	})
	g.Go(func() error {
		svc.processLoop(gctx, klineCh, barCh)
		return nil
	})
	if barCh != nil {
		g.Go(func() error {
			svc.deps.BarSink.RunKlines(gctx, barCh)
			return nil
		})
	}
	g.Go(func() error {
		svc.snapshotLoop(gctx)
		return nil
	})

	err := g.Wait()
	svc.shutdown()
	return err
}

// shutdown saves a final snapshot with a fresh timeout.
func (svc *Service) shutdown() {
	slog.Info("indicator engine stopping, saving final snapshot")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := svc.Checkpoint(ctx); err != nil {
		slog.Warn("final snapshot incomplete", "error", err)
	}
	slog.Info("indicator engine stopped")
}

// Engine returns the engine for read-only inspection. Callers must not use
// it concurrently with Run.
func (svc *Service) Engine() *indicator.Engine {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.engine
}

// Reload swaps the indicator configs, preserving state for unchanged
// indicator sets, and backfills newly added intervals from stored bars.
func (svc *Service) Reload(ctx context.Context, configs []indicator.IntervalConfig) (preserved, created int, err error) {
	if err := indicator.ValidateConfigs(configs); err != nil {
		return 0, 0, err
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()

	preserved, created = svc.engine.ReloadConfigs(configs)
	svc.cfg.Intervals = configs
	svc.restorer = indicator.NewRestorer(configs)
	svc.deps.Health.SetIntervals(svc.cfg.IntervalNames())
	if created > 0 {
		n := svc.restorer.Backfill(ctx, svc.engine, svc.deps.Bars, svc.cfg.Symbols, svc.publish)
		slog.Info("reload backfill done", "bars", n)
	}
	slog.Info("indicator configs reloaded", "preserved", preserved, "created", created)
	return preserved, created, nil
}

// publish forwards results to the sink, logging failures.
func (svc *Service) publish(results []model.IndicatorResult) {
	if svc.deps.Results == nil || len(results) == 0 {
		return
	}
	if err := svc.deps.Results.WriteResults(results); err != nil {
		slog.Warn("publishing indicator results failed", "results", len(results), "error", err)
	}
}
