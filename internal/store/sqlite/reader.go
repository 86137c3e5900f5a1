package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"candle-featuresv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for backfill, feature export
// and snapshot restore.
type Reader struct {
	db *sql.DB
}

var _ model.BarReader = (*Reader)(nil)

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Info("sqlite reader opened", "path", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars returns bars for a market with ts > afterTS, oldest first.
func (r *Reader) ReadBars(ctx context.Context, symbol, interval string, afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND interval = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, interval, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ReadFeatures returns the stored feature table for a market, oldest first.
func (r *Reader) ReadFeatures(ctx context.Context, symbol, interval string) ([]model.FeatureRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, sma, ema, rsi, macd, atr, obv
		FROM feature_rows
		WHERE symbol = ? AND interval = ?
		ORDER BY ts ASC
	`, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("sqlite query feature_rows: %w", err)
	}
	defer rows.Close()

	var out []model.FeatureRow
	for rows.Next() {
		var fr model.FeatureRecord
		if err := rows.Scan(&fr.Timestamp, &fr.Open, &fr.High, &fr.Low, &fr.Close,
			&fr.SMA, &fr.EMA, &fr.RSI, &fr.MACD, &fr.ATR, &fr.OBV); err != nil {
			return nil, fmt.Errorf("sqlite scan feature_rows: %w", err)
		}
		out = append(out, fr.Row())
	}
	return out, rows.Err()
}

// ReadLatestSnapshotJSON loads the most recent indicator engine snapshot.
// Returns nil, nil if none has been saved.
func (r *Reader) ReadLatestSnapshotJSON(ctx context.Context) ([]byte, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `
		SELECT data FROM indicator_snapshots
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read snapshot: %w", err)
	}
	return []byte(data), nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
