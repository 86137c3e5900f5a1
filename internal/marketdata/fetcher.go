// Package marketdata defines the market-data collaborator consumed by the
// indicator pipeline. Exchange adapters live in subpackages.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/series"
)

var (
	// ErrMissingInterval is returned, before any request is made, when a
	// candle fetch does not name an interval.
	ErrMissingInterval = errors.New("marketdata: interval must be provided")

	// ErrUpstream wraps transport and exchange failures.
	ErrUpstream = errors.New("marketdata: upstream unavailable")
)

// Fetcher retrieves candles and spot prices. Intervals are opaque strings
// ("1m", "15m", "4h", "1d") forwarded verbatim to the exchange.
type Fetcher interface {
	// FetchCandles returns the most recent limit bars, oldest first.
	FetchCandles(ctx context.Context, symbol string, limit int, interval string) (series.Series, error)

	// FetchLatestPrice returns the current spot price of symbol.
	FetchLatestPrice(ctx context.Context, symbol string) (model.PriceInfo, error)
}

// CheckInterval rejects an empty interval.
func CheckInterval(interval string) error {
	if interval == "" {
		return ErrMissingInterval
	}
	return nil
}

// IntervalDuration parses an exchange interval such as "1m", "4h", "1d" or
// "1w". "M" (month) counts as 30 days.
func IntervalDuration(interval string) (time.Duration, error) {
	if err := CheckInterval(interval); err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("marketdata: bad interval %q", interval)
	}
	var unit time.Duration
	switch interval[len(interval)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'M':
		unit = 30 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("marketdata: bad interval %q", interval)
	}
	return time.Duration(n) * unit, nil
}
