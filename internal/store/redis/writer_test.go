package redis

import (
	"context"
	"testing"
	"time"

	"candle-featuresv1/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachable returns a Writer pointed at a closed local port.
func unreachable(t *testing.T) *Writer {
	t.Helper()
	w := &Writer{client: newClient(WriterConfig{Addr: "127.0.0.1:1"}), ttl: defaultLatestTTL}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestKeys(t *testing.T) {
	r := &model.IndicatorResult{Name: "SMA_20", Symbol: "BTC", Interval: "1m"}
	assert.Equal(t, "ind:SMA_20:BTC:1m:latest", LatestKey(r))
	assert.Equal(t, "pub:ind:BTC:1m", Channel("BTC", "1m"))
	assert.Equal(t, "snap:ETH:4h", MarketSnapshotKey("ETH", "4h"))
	assert.Equal(t, "snapshot:indengine", EngineSnapshotKey)
}

func TestNew_UnreachableServer(t *testing.T) {
	_, err := New(WriterConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestWriteResults_SkipsNotReady(t *testing.T) {
	w := unreachable(t)
	// nothing queued, so no round trip is attempted
	err := w.WriteResults(context.Background(), []model.IndicatorResult{
		{Name: "SMA_20", Symbol: "BTC", Interval: "1m", Ready: false},
	})
	assert.NoError(t, err)
}

func TestWriter_UnreachableReturnsErrors(t *testing.T) {
	w := unreachable(t)
	ctx := context.Background()

	err := w.WriteResults(ctx, []model.IndicatorResult{
		{Name: "SMA_20", Symbol: "BTC", Interval: "1m", Value: 1, Ready: true},
	})
	assert.Error(t, err)

	_, err = w.ReadLatestSnapshotJSON(ctx)
	assert.Error(t, err)
	assert.Error(t, w.SaveSnapshotJSON(ctx, []byte(`{}`)))
}

func TestBufferedWriter_TripsAndBuffers(t *testing.T) {
	w := unreachable(t)
	cb := NewCircuitBreaker(2, time.Hour)
	bw := NewBufferedWriter(context.Background(), w, cb, 3)

	buffered := 0
	bw.OnBuffer = func(n int) { buffered += n }

	confirmed := func(v float64) []model.IndicatorResult {
		return []model.IndicatorResult{{Name: "EMA_20", Symbol: "BTC", Interval: "1m", Value: v, Ready: true}}
	}

	// two real failures trip the breaker
	assert.Error(t, bw.WriteResults(confirmed(1)))
	assert.Error(t, bw.WriteResults(confirmed(2)))
	require.Equal(t, StateOpen, cb.CurrentState())

	// open breaker buffers instead of failing
	for v := 3.0; v <= 6; v++ {
		assert.NoError(t, bw.WriteResults(confirmed(v)))
	}
	assert.Equal(t, 3, bw.PendingCount(), "buffer capped, oldest dropped")
	assert.Equal(t, 4, buffered)

	// live previews are not buffered
	live := confirmed(7)
	live[0].Live = true
	assert.NoError(t, bw.WriteResults(live))
	assert.Equal(t, 3, bw.PendingCount())

	bw.mu.Lock()
	assert.Equal(t, 4.0, bw.buffer[0].Value)
	bw.mu.Unlock()
}
