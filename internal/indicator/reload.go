package indicator

import (
	"fmt"
	"log/slog"
)

// ReloadConfigs updates the engine with new configurations.
// It preserves state for indicators that already exist and only creates
// new instances for genuinely new indicators, so adding an indicator does
// not throw away warm-up history of the others.
// Returns the number of preserved market states and new intervals.
func (e *Engine) ReloadConfigs(newConfigs []IntervalConfig) (preserved, created int) {
	oldCfgByInterval := make(map[string]IntervalConfig, len(e.configs))
	oldStateByInterval := make(map[string]map[string]*marketIndicators, len(e.configs))
	for i, cfg := range e.configs {
		oldCfgByInterval[cfg.Interval] = cfg
		oldStateByInterval[cfg.Interval] = e.state[i]
	}

	newState := make([]map[string]*marketIndicators, len(newConfigs))
	for i, newCfg := range newConfigs {
		oldCfg, exists := oldCfgByInterval[newCfg.Interval]
		oldState := oldStateByInterval[newCfg.Interval]

		if !exists || oldState == nil {
			created++
			slog.Info("reload: new interval, cold-starting", "interval", newCfg.Interval)
			continue
		}

		if indicatorSetsEqual(oldCfg.Indicators, newCfg.Indicators) {
			newState[i] = oldState
			preserved += len(oldState)
			continue
		}

		migrated := make(map[string]*marketIndicators, len(oldState))
		for symbol, old := range oldState {
			migrated[symbol] = migrateMarketIndicators(old, newCfg.Indicators)
			preserved++
		}
		newState[i] = migrated
		slog.Info("reload: migrated market states", "interval", newCfg.Interval, "markets", len(migrated))
	}

	e.setConfigs(newConfigs, newState)
	slog.Info("reload: config reloaded", "intervals", len(newConfigs), "preserved", preserved, "created", created)
	return preserved, created
}

// migrateMarketIndicators builds instances for newConfigs, reusing old
// instances that match by key.
func migrateMarketIndicators(old *marketIndicators, newConfigs []IndicatorConfig) *marketIndicators {
	oldByKey := make(map[string]Snapshottable, len(old.indicators))
	for i, cfg := range old.configs {
		oldByKey[cfg.Key()] = old.indicators[i]
	}

	mi := &marketIndicators{lastTS: old.lastTS}
	for _, cfg := range newConfigs {
		if existing, ok := oldByKey[cfg.Key()]; ok {
			mi.indicators = append(mi.indicators, existing)
			mi.configs = append(mi.configs, cfg.Normalize())
			continue
		}
		ind, err := NewFromConfig(cfg)
		if err != nil {
			continue
		}
		mi.indicators = append(mi.indicators, ind)
		mi.configs = append(mi.configs, cfg.Normalize())
	}
	return mi
}

// indicatorSetsEqual checks if two config slices hold the same set of
// indicators (order-independent).
func indicatorSetsEqual(a, b []IndicatorConfig) bool {
	if len(a) != len(b) {
		return false
	}
	setA := make(map[string]bool, len(a))
	for _, ic := range a {
		setA[ic.Key()] = true
	}
	for _, ic := range b {
		if !setA[ic.Key()] {
			return false
		}
	}
	return true
}

// ValidateConfigs checks a set of IntervalConfigs for errors.
func ValidateConfigs(configs []IntervalConfig) error {
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if cfg.Interval == "" {
			return fmt.Errorf("interval must be set")
		}
		if seen[cfg.Interval] {
			return fmt.Errorf("duplicate interval %q", cfg.Interval)
		}
		seen[cfg.Interval] = true

		for _, ic := range cfg.Indicators {
			n := ic.Normalize()
			if _, err := NewFromConfig(n); err != nil {
				return fmt.Errorf("interval %q: %w", cfg.Interval, err)
			}
			switch n.Type {
			case TypeOBV:
			case TypeMACD, TypeMACI:
				if n.Short <= 0 || n.Long <= 0 || (n.Type == TypeMACI && n.Signal <= 0) {
					return fmt.Errorf("invalid %s parameters on interval %q", n.Type, cfg.Interval)
				}
			default:
				if n.Period <= 0 {
					return fmt.Errorf("invalid period=%d for %s on interval %q", n.Period, n.Type, cfg.Interval)
				}
			}
		}
	}
	return nil
}
