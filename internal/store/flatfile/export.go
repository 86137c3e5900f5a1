package flatfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"candle-featuresv1/internal/model"

	"github.com/parquet-go/parquet-go"
)

// FeatureSaver writes one market's feature table to a file.
type FeatureSaver interface {
	Save(records []model.FeatureRecord, path string) error
	Extension() string
}

// CSVSaver writes feature tables as CSV with a timestamp column followed
// by the feature columns.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(records []model.FeatureRecord, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	header := append([]string{"timestamp"}, model.FeatureColumns[:]...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := r.Row()
		rec := make([]string, 0, len(header))
		rec = append(rec, strconv.FormatInt(r.Timestamp, 10))
		for _, v := range row.Values {
			rec = append(rec, floatStr(v))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ParquetSaver writes feature tables as Parquet.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(records []model.FeatureRecord, path string) error {
	return parquet.WriteFile(path, records)
}

// ReadParquet loads a feature table written by ParquetSaver.
func ReadParquet(path string) ([]model.FeatureRecord, error) {
	return parquet.ReadFile[model.FeatureRecord](path)
}

// NewFeatureSaver returns the saver for format (csv, parquet), or nil.
func NewFeatureSaver(format string) FeatureSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "parquet":
		return ParquetSaver{}
	default:
		return nil
	}
}

// Exporter writes feature tables to "{Dir}/{SYMBOL}_{interval}_features.{ext}".
type Exporter struct {
	Dir   string
	Saver FeatureSaver
}

var _ model.FeatureWriter = (*Exporter)(nil)

// NewExporter creates dir and picks the saver for format.
func NewExporter(dir, format string) (*Exporter, error) {
	s := NewFeatureSaver(format)
	if s == nil {
		return nil, fmt.Errorf("flatfile: unsupported export format %q (use csv, parquet)", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("flatfile mkdir %s: %w", dir, err)
	}
	return &Exporter{Dir: dir, Saver: s}, nil
}

// Path returns the export file for a market.
func (e *Exporter) Path(symbol, interval string) string {
	return filepath.Join(e.Dir, strings.ToUpper(symbol)+"_"+interval+"_features."+e.Saver.Extension())
}

// WriteFeatures overwrites the market's export file with rows.
func (e *Exporter) WriteFeatures(_ context.Context, symbol, interval string, rows []model.FeatureRow) error {
	records := make([]model.FeatureRecord, len(rows))
	for i, r := range rows {
		records[i] = r.Record(symbol, interval)
	}
	if err := e.Saver.Save(records, e.Path(symbol, interval)); err != nil {
		return fmt.Errorf("flatfile export %s: %w", e.Path(symbol, interval), err)
	}
	return nil
}
