// Package binance adapts the Binance spot REST and WebSocket APIs to the
// marketdata interfaces. Symbols are base assets ("BTC"); the USDT quote
// is appended on the wire.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"candle-featuresv1/internal/indicator"
	"candle-featuresv1/internal/marketdata"
	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/series"
)

const (
	// DefaultBaseURL is the Binance.US REST root.
	DefaultBaseURL = "https://api.binance.us/api/v3"

	quoteAsset = "USDT"
	exchange   = "Binance"
	currency   = "USD"
)

// Client implements marketdata.Fetcher over the Binance REST API.
type Client struct {
	http    *resty.Client
	metrics *metrics.Metrics
}

var _ marketdata.Fetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithMetrics records fetch counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// klineSymbol always appends the quote asset, e.g. "btc" → "BTCUSDT".
func klineSymbol(symbol string) string {
	return strings.ToUpper(symbol) + quoteAsset
}

// tickerSymbol appends the quote asset only when missing.
func tickerSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	if !strings.HasSuffix(s, quoteAsset) {
		s += quoteAsset
	}
	return s
}

// FetchCandles returns the latest limit klines as an ordered series.
func (c *Client) FetchCandles(ctx context.Context, symbol string, limit int, interval string) (series.Series, error) {
	bars, err := c.klines(ctx, symbol, limit, interval)
	if err != nil {
		return series.Series{}, err
	}
	s, err := series.New(bars)
	if err != nil {
		return series.Series{}, fmt.Errorf("%w: klines %s %s: %v", marketdata.ErrUpstream, symbol, interval, err)
	}
	return s, nil
}

// FetchClosePrices returns the close of each of the latest limit klines.
func (c *Client) FetchClosePrices(ctx context.Context, symbol string, limit int, interval string) ([]float64, error) {
	s, err := c.FetchCandles(ctx, symbol, limit, interval)
	if err != nil {
		return nil, err
	}
	return s.Closes(), nil
}

// FetchPriceVolume returns (close, volume) pairs of the latest limit klines.
func (c *Client) FetchPriceVolume(ctx context.Context, symbol string, limit int, interval string) ([]indicator.PriceVolume, error) {
	s, err := c.FetchCandles(ctx, symbol, limit, interval)
	if err != nil {
		return nil, err
	}
	return indicator.PriceVolumes(s), nil
}

// FetchLatestPrice returns the spot ticker price quoted in USD.
func (c *Client) FetchLatestPrice(ctx context.Context, symbol string) (model.PriceInfo, error) {
	sym := tickerSymbol(symbol)
	resp, err := c.get(ctx, "/ticker/price", map[string]string{"symbol": sym})
	if err != nil {
		return model.PriceInfo{}, err
	}

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(resp.Body(), &ticker); err != nil {
		return model.PriceInfo{}, fmt.Errorf("%w: decode ticker %s: %v", marketdata.ErrUpstream, sym, err)
	}
	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return model.PriceInfo{}, fmt.Errorf("%w: ticker %s price %q: %v", marketdata.ErrUpstream, sym, ticker.Price, err)
	}
	return model.PriceInfo{
		Exchange: exchange,
		Symbol:   strings.TrimSuffix(sym, quoteAsset),
		Currency: currency,
		Price:    price,
	}, nil
}

func (c *Client) klines(ctx context.Context, symbol string, limit int, interval string) ([]model.Bar, error) {
	if err := marketdata.CheckInterval(interval); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.get(ctx, "/klines", map[string]string{
		"symbol":   klineSymbol(symbol),
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("%w: decode klines: %v", marketdata.ErrUpstream, err)
	}
	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		b, err := decodeKline(row)
		if err != nil {
			return nil, fmt.Errorf("%w: kline %d: %v", marketdata.ErrUpstream, i, err)
		}
		bars = append(bars, b)
	}

	if c.metrics != nil {
		c.metrics.FetchDur.Observe(time.Since(start).Seconds())
		c.metrics.CandlesFetched.WithLabelValues(interval).Add(float64(len(bars)))
	}
	return bars, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string) (*resty.Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		c.fetchFailed()
		return nil, fmt.Errorf("%w: GET %s: %v", marketdata.ErrUpstream, path, err)
	}
	if resp.IsError() {
		c.fetchFailed()
		return nil, fmt.Errorf("%w: GET %s: status %d: %s",
			marketdata.ErrUpstream, path, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return resp, nil
}

func (c *Client) fetchFailed() {
	if c.metrics != nil {
		c.metrics.FetchErrors.Inc()
	}
}

// decodeKline reads [openTime, open, high, low, close, volume, ...].
// Binance sends the time as a number and the prices as strings.
func decodeKline(row []json.RawMessage) (model.Bar, error) {
	if len(row) < 6 {
		return model.Bar{}, fmt.Errorf("want at least 6 fields, got %d", len(row))
	}
	var ts int64
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return model.Bar{}, fmt.Errorf("open time: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		f, err := decodeNumber(row[i+1])
		if err != nil {
			return model.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = f
	}
	b := model.Bar{Timestamp: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
	if err := b.Validate(); err != nil {
		return model.Bar{}, err
	}
	return b, nil
}

// decodeNumber accepts both "1.5" and 1.5.
func decodeNumber(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}
