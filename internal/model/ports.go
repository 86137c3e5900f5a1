package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the collectors and CLIs from concrete storage
// implementations (SQLite, Redis, flat files).

// BarWriter persists closed bars for one market.
type BarWriter interface {
	// WriteBars upserts bars keyed by (symbol, interval, timestamp).
	WriteBars(ctx context.Context, symbol, interval string, bars []Bar) error

	// LastTimestamp returns the newest stored bar timestamp, or 0 if none.
	LastTimestamp(ctx context.Context, symbol, interval string) (int64, error)
}

// BarReader reads stored bars for backfill and feature building.
type BarReader interface {
	// ReadBars returns bars with timestamp > afterTS in ascending order.
	ReadBars(ctx context.Context, symbol, interval string, afterTS int64) ([]Bar, error)
}

// FeatureWriter persists feature tables.
type FeatureWriter interface {
	WriteFeatures(ctx context.Context, symbol, interval string, rows []FeatureRow) error
}

// SnapshotStore reads and writes indicator engine snapshots as raw JSON.
// Using []byte avoids a model→indicator→model import cycle.
type SnapshotStore interface {
	// SaveSnapshotJSON persists a JSON-encoded engine snapshot.
	SaveSnapshotJSON(ctx context.Context, data []byte) error

	// ReadLatestSnapshotJSON loads the most recent snapshot as raw JSON.
	// Returns nil, nil if no snapshot exists.
	ReadLatestSnapshotJSON(ctx context.Context) ([]byte, error)
}
