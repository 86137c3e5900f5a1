// Package collect periodically pulls recent candles for one market and
// appends the closed ones that are newer than what is already stored.
package collect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"candle-featuresv1/internal/marketdata"
	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"
)

// Config configures a Collector.
type Config struct {
	Symbol   string
	Interval string        // required, e.g. "1m"
	Limit    int           // candles per fetch, default 800
	Every    time.Duration // poll period, default one interval
}

// Collector appends new bars to a primary store and mirrors them into any
// secondary stores. Each store is deduplicated against its own last
// timestamp, so a mirror that fell behind catches up from the same fetch.
type Collector struct {
	cfg     Config
	step    time.Duration
	fetcher marketdata.Fetcher
	primary model.BarWriter
	mirrors []model.BarWriter
	prom    *metrics.Metrics
	now     func() time.Time
}

// New validates cfg and builds a Collector.
func New(cfg Config, f marketdata.Fetcher, primary model.BarWriter, mirrors []model.BarWriter, m *metrics.Metrics) (*Collector, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("collect: symbol must be provided")
	}
	if cfg.Interval == "" {
		return nil, marketdata.ErrMissingInterval
	}
	step, err := marketdata.IntervalDuration(cfg.Interval)
	if err != nil {
		return nil, err
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 800
	}
	if cfg.Every <= 0 {
		cfg.Every = step
	}
	return &Collector{
		cfg:     cfg,
		step:    step,
		fetcher: f,
		primary: primary,
		mirrors: mirrors,
		prom:    m,
		now:     time.Now,
	}, nil
}

// CollectOnce fetches the latest candles and appends the closed ones newer
// than the primary store's last timestamp. It returns how many bars the
// primary store received.
func (c *Collector) CollectOnce(ctx context.Context) (int, error) {
	s, err := c.fetcher.FetchCandles(ctx, c.cfg.Symbol, c.cfg.Limit, c.cfg.Interval)
	if err != nil {
		return 0, err
	}

	// the newest bar is still forming until its interval has elapsed
	cutoff := c.now().Add(-c.step).UnixMilli()
	closed := make([]model.Bar, 0, s.Len())
	for _, b := range s.Bars() {
		if b.Timestamp <= cutoff {
			closed = append(closed, b)
		}
	}

	n, err := c.appendNewer(ctx, c.primary, closed)
	if err != nil {
		return 0, fmt.Errorf("collect %s %s: %w", c.cfg.Symbol, c.cfg.Interval, err)
	}
	for _, m := range c.mirrors {
		if _, err := c.appendNewer(ctx, m, closed); err != nil {
			slog.Warn("collector mirror write failed", "symbol", c.cfg.Symbol, "interval", c.cfg.Interval, "error", err)
		}
	}

	if c.prom != nil {
		c.prom.CollectorAppended.Add(float64(n))
	}
	return n, nil
}

func (c *Collector) appendNewer(ctx context.Context, w model.BarWriter, bars []model.Bar) (int, error) {
	last, err := w.LastTimestamp(ctx, c.cfg.Symbol, c.cfg.Interval)
	if err != nil {
		return 0, err
	}
	i := 0
	for i < len(bars) && bars[i].Timestamp <= last {
		i++
	}
	fresh := bars[i:]
	if len(fresh) == 0 {
		return 0, nil
	}
	return len(fresh), w.WriteBars(ctx, c.cfg.Symbol, c.cfg.Interval, fresh)
}

// Run collects immediately and then every cfg.Every until ctx is cancelled.
// Fetch and write errors are logged and the loop keeps going.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Every)
	defer ticker.Stop()

	for {
		n, err := c.CollectOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			slog.Error("collect failed", "symbol", c.cfg.Symbol, "interval", c.cfg.Interval, "error", err)
		case n == 0:
			slog.Info("no new bars", "symbol", c.cfg.Symbol, "interval", c.cfg.Interval)
		default:
			slog.Info("bars appended", "symbol", c.cfg.Symbol, "interval", c.cfg.Interval, "count", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
