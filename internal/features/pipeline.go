package features

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"candle-featuresv1/internal/logger"
	"candle-featuresv1/internal/marketdata"
	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/normalize"
	"candle-featuresv1/internal/series"
)

// Pipeline builds the feature table of one market end to end: load bars,
// persist them, build rows, write rows to every FeatureWriter and shape the
// model inputs.
type Pipeline struct {
	Config         Config
	Fetcher        marketdata.Fetcher // when nil, bars come from Bars
	Bars           model.BarReader
	BarStore       model.BarWriter // optional mirror of fetched bars
	Writers        []model.FeatureWriter
	Limit          int // candles per fetch
	SequenceLength int
	Metrics        *metrics.Metrics
}

// Summary describes one built table.
type Summary struct {
	Symbol   string
	Interval string
	Bars     int
	Rows     int
	Dataset  [3]int // [N, W, F] training tensor shape, zero when too few rows
	Window   [3]int // [1, W, F] inference tensor shape, zero when too few rows
	Took     time.Duration
}

// Run builds the table for one market. Too few rows for a dataset or
// window is reported through zero shapes, not an error.
func (p *Pipeline) Run(ctx context.Context, symbol, interval string) (Summary, error) {
	start := time.Now()
	sum := Summary{Symbol: symbol, Interval: interval}
	log := slog.With(logger.LogWithJob(ctx)...)

	s, err := p.load(ctx, symbol, interval)
	if err != nil {
		return sum, err
	}
	sum.Bars = s.Len()

	buildStart := time.Now()
	rows := p.Config.Build(s)
	p.Metrics.ObserveFeatureTable(interval, s.Len(), len(rows), time.Since(buildStart))
	sum.Rows = len(rows)

	for _, w := range p.Writers {
		if err := w.WriteFeatures(ctx, symbol, interval, rows); err != nil {
			return sum, fmt.Errorf("write features %s: %w", model.MarketKey(symbol, interval), err)
		}
	}

	if p.SequenceLength > 0 {
		x, _, _, err := normalize.Dataset(rows, p.SequenceLength)
		switch {
		case err == nil:
			sum.Dataset = x.Shape
		case !errors.Is(err, normalize.ErrInsufficientRows):
			return sum, err
		}
		win, _, err := normalize.Window(rows, p.SequenceLength)
		switch {
		case err == nil:
			sum.Window = win.Shape
		case !errors.Is(err, normalize.ErrInsufficientRows):
			return sum, err
		}
	}

	sum.Took = time.Since(start)
	log.Info("feature table built", "symbol", symbol, "interval", interval,
		"bars", sum.Bars, "rows", sum.Rows, "dataset", sum.Dataset, "took", sum.Took)
	return sum, nil
}

func (p *Pipeline) load(ctx context.Context, symbol, interval string) (series.Series, error) {
	if p.Fetcher == nil {
		if p.Bars == nil {
			return series.Series{}, errors.New("features: no bar source configured")
		}
		bars, err := p.Bars.ReadBars(ctx, symbol, interval, 0)
		if err != nil {
			return series.Series{}, fmt.Errorf("read bars %s: %w", model.MarketKey(symbol, interval), err)
		}
		return series.New(bars)
	}

	s, err := p.Fetcher.FetchCandles(ctx, symbol, p.Limit, interval)
	if err != nil {
		return series.Series{}, err
	}
	if p.BarStore != nil {
		if err := p.BarStore.WriteBars(ctx, symbol, interval, s.Bars()); err != nil {
			return series.Series{}, fmt.Errorf("store bars %s: %w", model.MarketKey(symbol, interval), err)
		}
	}
	return s, nil
}
