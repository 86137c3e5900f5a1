// Package sqlite persists bars, feature tables and indicator snapshots in a
// single WAL-mode SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
	keepSnapshots     = 10
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath  string // path to SQLite database file, e.g. "data/candles.db"
	Metrics *metrics.Metrics
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db   *sql.DB
	prom *metrics.Metrics
}

var (
	_ model.BarWriter     = (*Writer)(nil)
	_ model.FeatureWriter = (*Writer)(nil)
)

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

// New creates a Writer, opening the database in WAL mode and creating the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite database opened", "path", cfg.DBPath)
	return &Writer{db: db, prom: cfg.Metrics}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL    NOT NULL,
			PRIMARY KEY (symbol, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS feature_rows (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL NOT NULL,
			high     REAL NOT NULL,
			low      REAL NOT NULL,
			close    REAL NOT NULL,
			sma      REAL NOT NULL,
			ema      REAL NOT NULL,
			rsi      REAL NOT NULL,
			macd     REAL NOT NULL,
			atr      REAL NOT NULL,
			obv      REAL NOT NULL,
			PRIMARY KEY (symbol, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS indicator_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// WriteBars upserts bars for one market in a single transaction.
func (w *Writer) WriteBars(ctx context.Context, symbol, interval string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	return w.inTx(ctx, `
		INSERT OR REPLACE INTO bars (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, len(bars), func(stmt *sql.Stmt, i int) error {
		b := bars[i]
		_, err := stmt.ExecContext(ctx, symbol, interval, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
		return err
	})
}

// WriteFeatures upserts a feature table for one market.
func (w *Writer) WriteFeatures(ctx context.Context, symbol, interval string, rows []model.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	return w.inTx(ctx, `
		INSERT OR REPLACE INTO feature_rows
			(symbol, interval, ts, open, high, low, close, sma, ema, rsi, macd, atr, obv)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i].Record(symbol, interval)
		_, err := stmt.ExecContext(ctx, symbol, interval, r.Timestamp,
			r.Open, r.High, r.Low, r.Close, r.SMA, r.EMA, r.RSI, r.MACD, r.ATR, r.OBV)
		return err
	})
}

// inTx runs exec for i in [0, n) against one prepared statement in a transaction.
func (w *Writer) inTx(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) error {
	start := time.Now()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if w.prom != nil {
		w.prom.SQLiteCommitDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// LastTimestamp returns the newest stored bar timestamp for a market, 0 if none.
func (w *Writer) LastTimestamp(ctx context.Context, symbol, interval string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM bars WHERE symbol = ? AND interval = ?`,
		symbol, interval,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// RunKlines reads closed klines from klineCh and inserts them in batched
// transactions. Flushes every batchSize klines OR every flushDelay,
// whichever first. Blocks until ctx is cancelled or klineCh is closed.
func (w *Writer) RunKlines(ctx context.Context, klineCh <-chan model.Kline) {
	batch := make([]model.Kline, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		// flush on shutdown must outlive ctx
		if err := w.insertKlines(context.Background(), batch); err != nil {
			slog.Error("sqlite kline batch insert failed", "error", err, "klines", len(batch))
		} else {
			slog.Debug("sqlite committed klines", "klines", len(batch), "took", time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case k, ok := <-klineCh:
			if !ok {
				flush()
				return
			}
			if !k.Final {
				continue
			}
			batch = append(batch, k)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (w *Writer) insertKlines(ctx context.Context, klines []model.Kline) error {
	return w.inTx(ctx, `
		INSERT OR REPLACE INTO bars (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, len(klines), func(stmt *sql.Stmt, i int) error {
		k := klines[i]
		_, err := stmt.ExecContext(ctx, k.Symbol, k.Interval, k.Timestamp, k.Open, k.High, k.Low, k.Close, k.Volume)
		return err
	})
}

// SaveSnapshotJSON stores an encoded indicator engine snapshot and prunes
// all but the latest few.
func (w *Writer) SaveSnapshotJSON(ctx context.Context, data []byte) error {
	start := time.Now()
	if _, err := w.db.ExecContext(ctx, `INSERT INTO indicator_snapshots (data) VALUES (?)`, string(data)); err != nil {
		return fmt.Errorf("sqlite insert snapshot: %w", err)
	}

	_, err := w.db.ExecContext(ctx,
		`DELETE FROM indicator_snapshots WHERE id NOT IN (SELECT id FROM indicator_snapshots ORDER BY id DESC LIMIT ?)`,
		keepSnapshots)
	if err != nil {
		slog.Warn("sqlite prune snapshots failed", "error", err)
	}
	if w.prom != nil {
		w.prom.SnapshotWriteDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
