package sqlite

import (
	"errors"

	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"
)

// Store pairs a Writer and a Reader on the same database file.
type Store struct {
	*Writer
	*Reader
}

var (
	_ model.SnapshotStore = (*Store)(nil)
	_ model.BarReader     = (*Store)(nil)
	_ model.BarWriter     = (*Store)(nil)
)

// Open creates the schema at path and opens both connections.
func Open(path string, m *metrics.Metrics) (*Store, error) {
	w, err := New(WriterConfig{DBPath: path, Metrics: m})
	if err != nil {
		return nil, err
	}
	r, err := NewReader(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Store{Writer: w, Reader: r}, nil
}

// Close closes both connections.
func (s *Store) Close() error {
	return errors.Join(s.Reader.Close(), s.Writer.Close())
}
