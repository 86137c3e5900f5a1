package indicator

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"candle-featuresv1/internal/model"
)

// snapshotVersion is bumped when IndicatorSnapshot changes shape.
const snapshotVersion = 2

// Snapshottable is implemented by indicators that support state serialization.
type Snapshottable interface {
	Indicator
	Snapshot() IndicatorSnapshot
	RestoreFromSnapshot(snap IndicatorSnapshot) error
}

// IndicatorSnapshot holds the serialized state of a single indicator instance.
type IndicatorSnapshot struct {
	Type   string `json:"type"`
	Period int    `json:"period,omitempty"`
	Short  int    `json:"short,omitempty"`
	Long   int    `json:"long,omitempty"`
	Signal int    `json:"signal,omitempty"`
	Count  int    `json:"count"`

	// Windowed indicators
	Closes []float64   `json:"closes,omitempty"`
	Bars   []model.Bar `json:"bars,omitempty"`
	Line   []float64   `json:"line,omitempty"` // MACI signal window

	// OBV
	PrevClose float64 `json:"prev_close,omitempty"`
	OBV       float64 `json:"obv,omitempty"`
}

func (s IndicatorSnapshot) expect(typ string, period int) error {
	if s.Type != typ || s.Period != period {
		return fmt.Errorf("snapshot %s:%d does not match %s:%d", s.Type, s.Period, typ, period)
	}
	return nil
}

func (s IndicatorSnapshot) expectMACD(typ string, short, long, signal int) error {
	if s.Type != typ || s.Short != short || s.Long != long || s.Signal != signal {
		return fmt.Errorf("snapshot %s:%d:%d:%d does not match %s:%d:%d:%d",
			s.Type, s.Short, s.Long, s.Signal, typ, short, long, signal)
	}
	return nil
}

// key mirrors IndicatorConfig.Key for matching on restore.
func (s IndicatorSnapshot) key() string {
	return IndicatorConfig{Type: s.Type, Period: s.Period, Short: s.Short, Long: s.Long, Signal: s.Signal}.Key()
}

// MarketSnapshot holds indicator snapshots for one symbol within an interval.
type MarketSnapshot struct {
	Symbol     string              `json:"symbol"`
	Interval   string              `json:"interval"`
	LastTS     int64               `json:"last_ts"` // newest bar processed
	Indicators []IndicatorSnapshot `json:"indicators"`
}

// EngineSnapshot holds the full state of the indicator engine.
type EngineSnapshot struct {
	Markets []MarketSnapshot `json:"markets"`
	Version int              `json:"version"` // schema version for forward compat
}

// Marshal encodes the snapshot as JSON for a model.SnapshotStore.
func (es *EngineSnapshot) Marshal() ([]byte, error) {
	return json.Marshal(es)
}

// UnmarshalSnapshot decodes a snapshot written by Marshal. A nil or empty
// payload yields a nil snapshot (cold start).
func UnmarshalSnapshot(data []byte) (*EngineSnapshot, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var snap EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	return &snap, nil
}

// SnapshotEngine captures the full state of an indicator Engine.
func SnapshotEngine(e *Engine) *EngineSnapshot {
	snap := &EngineSnapshot{Version: snapshotVersion}
	for idx, cfg := range e.configs {
		for symbol, mi := range e.state[idx] {
			ms := MarketSnapshot{
				Symbol:     symbol,
				Interval:   cfg.Interval,
				LastTS:     mi.lastTS,
				Indicators: make([]IndicatorSnapshot, 0, len(mi.indicators)),
			}
			for _, ind := range mi.indicators {
				ms.Indicators = append(ms.Indicators, ind.Snapshot())
			}
			snap.Markets = append(snap.Markets, ms)
		}
	}
	return snap
}

// RestoreEngine rebuilds an indicator Engine from a snapshot.
// It is tolerant of config changes: indicators are matched by type and
// parameters rather than by index. Matching indicators get their state
// restored; new indicators start cold. Removed indicators are skipped.
func RestoreEngine(configs []IntervalConfig, snap *EngineSnapshot) *Engine {
	e := NewEngine(configs)
	if snap == nil {
		return e
	}

	for _, ms := range snap.Markets {
		idx, ok := e.index[ms.Interval]
		if !ok {
			continue // interval no longer configured
		}

		mi := e.createMarketIndicators(idx)
		mi.lastTS = ms.LastTS

		byKey := make(map[string]IndicatorSnapshot, len(ms.Indicators))
		for _, is := range ms.Indicators {
			byKey[is.key()] = is
		}

		restored, cold := 0, 0
		for i, ind := range mi.indicators {
			is, found := byKey[mi.configs[i].Key()]
			if !found {
				cold++
				continue
			}
			if err := ind.RestoreFromSnapshot(is); err != nil {
				slog.Warn("indicator restore failed", "market", model.MarketKey(ms.Symbol, ms.Interval),
					"indicator", ind.Name(), "error", err)
				cold++
				continue
			}
			restored++
		}

		if cold > 0 {
			slog.Info("restored market with cold indicators", "market", model.MarketKey(ms.Symbol, ms.Interval),
				"restored", restored, "cold", cold)
		}
		e.state[idx][ms.Symbol] = mi
	}
	return e
}
