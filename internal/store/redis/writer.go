// Package redis caches the latest indicator values, per-market report
// snapshots and the indicator engine snapshot in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultLatestTTL = 30 * time.Minute

	// EngineSnapshotKey holds the latest JSON-encoded indicator engine snapshot.
	EngineSnapshotKey = "snapshot:indengine"
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Metrics  *metrics.Metrics
}

// Writer writes indicator results and snapshots to Redis.
type Writer struct {
	client *goredis.Client
	ttl    time.Duration
	prom   *metrics.Metrics
}

var _ model.SnapshotStore = (*Writer)(nil)

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

func newClient(cfg WriterConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
		MaxRetries:  -1,
	})
}

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := newClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return &Writer{client: client, ttl: defaultLatestTTL, prom: cfg.Metrics}, nil
}

// LatestKey returns "ind:{name}:{symbol}:{interval}:latest".
func LatestKey(r *model.IndicatorResult) string {
	return r.Key() + ":latest"
}

// Channel returns the pubsub channel results for a market are published on.
func Channel(symbol, interval string) string {
	return "pub:ind:" + model.MarketKey(symbol, interval)
}

// MarketSnapshotKey returns the key of the cached report snapshot for a market.
func MarketSnapshotKey(symbol, interval string) string {
	return "snap:" + model.MarketKey(symbol, interval)
}

// WriteResults writes a batch of indicator results in one pipeline.
// Confirmed results are SET under their latest key and published; live
// previews are only published. Results that are not ready are skipped.
func (w *Writer) WriteResults(ctx context.Context, results []model.IndicatorResult) error {
	pipe := w.client.Pipeline()
	queued := 0
	for i := range results {
		r := &results[i]
		if !r.Ready {
			continue
		}
		data := r.JSON()
		if !r.Live {
			pipe.Set(ctx, LatestKey(r), data, w.ttl)
		}
		pipe.Publish(ctx, Channel(r.Symbol, r.Interval), data)
		queued++
	}
	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis results pipeline (%d results): %w", queued, err)
	}
	return nil
}

// LatestResult reads the cached confirmed value of one indicator.
// Returns nil, nil when nothing is cached.
func (w *Writer) LatestResult(ctx context.Context, name, symbol, interval string) (*model.IndicatorResult, error) {
	key := LatestKey(&model.IndicatorResult{Name: name, Symbol: symbol, Interval: interval})
	data, err := w.get(ctx, key)
	if err != nil || data == nil {
		return nil, err
	}
	var r model.IndicatorResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return &r, nil
}

// SetMarketSnapshot caches an encoded report snapshot for a market.
func (w *Writer) SetMarketSnapshot(ctx context.Context, symbol, interval string, data []byte) error {
	if err := w.client.Set(ctx, MarketSnapshotKey(symbol, interval), data, w.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", MarketSnapshotKey(symbol, interval), err)
	}
	return nil
}

// MarketSnapshot reads the cached report snapshot for a market.
// Returns nil, nil when nothing is cached or it has expired.
func (w *Writer) MarketSnapshot(ctx context.Context, symbol, interval string) ([]byte, error) {
	return w.get(ctx, MarketSnapshotKey(symbol, interval))
}

// SaveSnapshotJSON stores the engine snapshot without expiry.
func (w *Writer) SaveSnapshotJSON(ctx context.Context, data []byte) error {
	start := time.Now()
	if err := w.client.Set(ctx, EngineSnapshotKey, data, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", EngineSnapshotKey, err)
	}
	if w.prom != nil {
		w.prom.SnapshotWriteDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// ReadLatestSnapshotJSON loads the engine snapshot. Returns nil, nil if absent.
func (w *Writer) ReadLatestSnapshotJSON(ctx context.Context) ([]byte, error) {
	return w.get(ctx, EngineSnapshotKey)
}

func (w *Writer) get(ctx context.Context, key string) ([]byte, error) {
	data, err := w.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return data, nil
}

// RunResults reads indicator results and writes them one at a time.
// Blocks until ctx is cancelled or resultCh is closed.
func (w *Writer) RunResults(ctx context.Context, resultCh <-chan model.IndicatorResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-resultCh:
			if !ok {
				return
			}
			if err := w.WriteResults(ctx, []model.IndicatorResult{r}); err != nil {
				slog.Warn("redis write result failed", "key", r.Key(), "error", err)
			}
		}
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
