package collect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"candle-featuresv1/internal/marketdata"
	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/series"
	"candle-featuresv1/internal/store/flatfile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minute = int64(60000)

// fakeFetcher serves the bars opening in [from, to) minutes.
type fakeFetcher struct {
	mu       sync.Mutex
	from, to int64
	err      error
	calls    int
}

func (f *fakeFetcher) FetchCandles(_ context.Context, _ string, limit int, _ string) (series.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return series.Series{}, f.err
	}
	var bars []model.Bar
	for m := f.from; m < f.to; m++ {
		c := float64(m)
		bars = append(bars, model.Bar{Timestamp: m * minute, Open: c, High: c + 1, Low: c, Close: c, Volume: 1})
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return series.New(bars)
}

func (f *fakeFetcher) FetchLatestPrice(context.Context, string) (model.PriceInfo, error) {
	return model.PriceInfo{}, nil
}

// memWriter is an in-memory BarWriter.
type memWriter struct {
	bars []model.Bar
	err  error
}

func (m *memWriter) WriteBars(_ context.Context, _, _ string, bars []model.Bar) error {
	if m.err != nil {
		return m.err
	}
	m.bars = append(m.bars, bars...)
	return nil
}

func (m *memWriter) LastTimestamp(context.Context, string, string) (int64, error) {
	if len(m.bars) == 0 {
		return 0, nil
	}
	return m.bars[len(m.bars)-1].Timestamp, nil
}

func newTestCollector(t *testing.T, f marketdata.Fetcher, primary model.BarWriter, mirrors ...model.BarWriter) *Collector {
	t.Helper()
	c, err := New(Config{Symbol: "BTC", Interval: "1m", Limit: 5}, f, primary, mirrors, nil)
	require.NoError(t, err)
	// minute 10 is forming
	c.now = func() time.Time { return time.UnixMilli(10*minute + 30000) }
	return c
}

func TestCollectOnce_AppendsClosedNewerOnly(t *testing.T) {
	f := &fakeFetcher{from: 1, to: 11}
	primary := &memWriter{}
	c := newTestCollector(t, f, primary)

	n, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	// limit 5 gives minutes 6..10; 10 is still forming
	assert.Equal(t, 4, n)
	assert.Equal(t, 9*minute, primary.bars[len(primary.bars)-1].Timestamp)

	n, err = c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.to = 13
	c.now = func() time.Time { return time.UnixMilli(13 * minute) }
	n, err = c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, primary.bars, 7)
}

func TestCollectOnce_MirrorCatchesUpAndFailureIsNotFatal(t *testing.T) {
	f := &fakeFetcher{from: 1, to: 11}
	primary := &memWriter{bars: []model.Bar{{Timestamp: 8 * minute}}}
	mirror := &memWriter{}
	broken := &memWriter{err: errors.New("disk full")}
	c := newTestCollector(t, f, primary, mirror, broken)

	n, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, mirror.bars, 4)
}

func TestCollectOnce_Errors(t *testing.T) {
	f := &fakeFetcher{err: marketdata.ErrUpstream}
	c := newTestCollector(t, f, &memWriter{})
	_, err := c.CollectOnce(context.Background())
	assert.ErrorIs(t, err, marketdata.ErrUpstream)

	c = newTestCollector(t, &fakeFetcher{from: 1, to: 5}, &memWriter{err: errors.New("boom")})
	_, err = c.CollectOnce(context.Background())
	assert.Error(t, err)
}

func TestCollectOnce_CSVStore(t *testing.T) {
	store, err := flatfile.NewCSVStore(t.TempDir())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	c, err := New(Config{Symbol: "BTC", Interval: "1m", Limit: 100}, &fakeFetcher{from: 1, to: 11}, store, nil, metrics.NewMetricsWith(reg))
	require.NoError(t, err)
	c.now = func() time.Time { return time.UnixMilli(10*minute + 1) }

	n, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	bars, err := store.ReadBars(context.Background(), "BTC", "1m", 0)
	require.NoError(t, err)
	assert.Len(t, bars, 9)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, &fakeFetcher{}, &memWriter{}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Symbol: "BTC"}, &fakeFetcher{}, &memWriter{}, nil, nil)
	assert.ErrorIs(t, err, marketdata.ErrMissingInterval)

	_, err = New(Config{Symbol: "BTC", Interval: "7x"}, &fakeFetcher{}, &memWriter{}, nil, nil)
	assert.Error(t, err)

	c, err := New(Config{Symbol: "BTC", Interval: "15m"}, &fakeFetcher{}, &memWriter{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 800, c.cfg.Limit)
	assert.Equal(t, 15*time.Minute, c.cfg.Every)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := &fakeFetcher{from: 1, to: 3}
	c := newTestCollector(t, f, &memWriter{})
	c.cfg.Every = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
