// Package flatfile stores bars as append-only CSV files and exports
// feature tables as CSV or Parquet.
package flatfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"candle-featuresv1/internal/model"
)

// BarHeader names the bar CSV columns. Files are written without a header
// row; one is skipped on read if present.
var BarHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

// CSVStore keeps one append-only CSV file per market under Dir, named
// "{SYMBOL}_{interval}.csv". Rows are only ever appended, and only when
// newer than the last stored timestamp.
type CSVStore struct {
	Dir string

	mu sync.Mutex
}

var (
	_ model.BarWriter = (*CSVStore)(nil)
	_ model.BarReader = (*CSVStore)(nil)
)

// NewCSVStore creates dir if needed.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("flatfile mkdir %s: %w", dir, err)
	}
	return &CSVStore{Dir: dir}, nil
}

// Path returns the CSV file for a market.
func (s *CSVStore) Path(symbol, interval string) string {
	return filepath.Join(s.Dir, strings.ToUpper(symbol)+"_"+interval+".csv")
}

// LastTimestamp returns the timestamp of the last row, 0 if the file is
// missing or has no data rows.
func (s *CSVStore) LastTimestamp(_ context.Context, symbol, interval string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lastTimestamp(s.Path(symbol, interval))
}

// WriteBars appends the bars newer than the last stored timestamp, in
// ascending order. Older or duplicate bars are skipped.
func (s *CSVStore) WriteBars(ctx context.Context, symbol, interval string, bars []model.Bar) error {
	_, err := s.Append(ctx, symbol, interval, bars)
	return err
}

// Append is WriteBars that also reports how many rows were written.
func (s *CSVStore) Append(_ context.Context, symbol, interval string, bars []model.Bar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(symbol, interval)
	last, err := lastTimestamp(path)
	if err != nil {
		return 0, err
	}

	fresh := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Timestamp > last {
			fresh = append(fresh, b)
			last = b.Timestamp
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("flatfile open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, b := range fresh {
		if err := w.Write(barRecord(b)); err != nil {
			return 0, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flatfile write %s: %w", path, err)
	}
	return len(fresh), nil
}

// ReadBars returns the stored bars with timestamp > afterTS.
func (s *CSVStore) ReadBars(_ context.Context, symbol, interval string, afterTS int64) ([]model.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readRecords(s.Path(symbol, interval))
	if err != nil {
		return nil, err
	}
	var bars []model.Bar
	for i, rec := range records {
		b, err := parseBar(rec)
		if err != nil {
			return nil, fmt.Errorf("flatfile %s row %d: %w", s.Path(symbol, interval), i+1, err)
		}
		if b.Timestamp > afterTS {
			bars = append(bars, b)
		}
	}
	return bars, nil
}

func lastTimestamp(path string) (int64, error) {
	records, err := readRecords(path)
	if err != nil || len(records) == 0 {
		return 0, err
	}
	ts, err := strconv.ParseInt(records[len(records)-1][0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("flatfile %s: bad timestamp: %w", path, err)
	}
	return ts, nil
}

// readRecords returns the data rows of a CSV file, skipping a header row if
// present.
// A missing file has no rows.
func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("flatfile open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(BarHeader)
	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flatfile read %s: %w", path, err)
		}
		if rec[0] == BarHeader[0] {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func barRecord(b model.Bar) []string {
	return []string{
		strconv.FormatInt(b.Timestamp, 10),
		floatStr(b.Open),
		floatStr(b.High),
		floatStr(b.Low),
		floatStr(b.Close),
		floatStr(b.Volume),
	}
}

func parseBar(rec []string) (model.Bar, error) {
	var b model.Bar
	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return b, err
	}
	b.Timestamp = ts
	for i, dst := range []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume} {
		if *dst, err = strconv.ParseFloat(rec[i+1], 64); err != nil {
			return b, err
		}
	}
	return b, nil
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
