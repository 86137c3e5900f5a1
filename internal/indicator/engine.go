package indicator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"candle-featuresv1/internal/model"
)

// Indicator type names accepted in configs and snapshots.
const (
	TypeSMA  = "SMA"
	TypeEMA  = "EMA"
	TypeRSI  = "RSI"
	TypeATR  = "ATR"
	TypeOBV  = "OBV"
	TypeMACD = "MACD"
	TypeMACI = "MACI"
)

// IndicatorConfig specifies a single streaming indicator to compute.
// Zero parameters take the library defaults (RSI/ATR 14, MACD 12/26/9).
type IndicatorConfig struct {
	Type   string `yaml:"type" json:"type" validate:"required,oneof=SMA EMA RSI ATR OBV MACD MACI"`
	Period int    `yaml:"period" json:"period,omitempty" validate:"gte=0"`
	Short  int    `yaml:"short" json:"short,omitempty" validate:"gte=0"`
	Long   int    `yaml:"long" json:"long,omitempty" validate:"gte=0"`
	Signal int    `yaml:"signal" json:"signal,omitempty" validate:"gte=0"`
}

// Normalize fills zero parameters with defaults.
func (c IndicatorConfig) Normalize() IndicatorConfig {
	switch c.Type {
	case TypeRSI:
		if c.Period == 0 {
			c.Period = DefaultRSIPeriod
		}
	case TypeATR:
		if c.Period == 0 {
			c.Period = DefaultATRPeriod
		}
	case TypeMACD, TypeMACI:
		if c.Short == 0 {
			c.Short = DefaultMACDShort
		}
		if c.Long == 0 {
			c.Long = DefaultMACDLong
		}
		if c.Type == TypeMACI && c.Signal == 0 {
			c.Signal = DefaultMACDSignal
		}
	}
	return c
}

// Key identifies the indicator by type and parameters, e.g. "MACD:12:26".
func (c IndicatorConfig) Key() string {
	c = c.Normalize()
	switch c.Type {
	case TypeOBV:
		return c.Type
	case TypeMACD:
		return c.Type + ":" + strconv.Itoa(c.Short) + ":" + strconv.Itoa(c.Long)
	case TypeMACI:
		return c.Type + ":" + strconv.Itoa(c.Short) + ":" + strconv.Itoa(c.Long) + ":" + strconv.Itoa(c.Signal)
	default:
		return c.Type + ":" + strconv.Itoa(c.Period)
	}
}

// Lookback is the number of bars needed before the indicator is defined.
func (c IndicatorConfig) Lookback() int {
	c = c.Normalize()
	switch c.Type {
	case TypeRSI, TypeATR:
		return c.Period + 1
	case TypeOBV:
		return 1
	case TypeMACD:
		return macdSpan(c.Short, c.Long)
	case TypeMACI:
		return macdSpan(c.Short, c.Long+c.Signal)
	default:
		return c.Period
	}
}

// NewFromConfig builds a fresh streaming indicator.
func NewFromConfig(c IndicatorConfig) (Snapshottable, error) {
	c = c.Normalize()
	switch c.Type {
	case TypeSMA:
		return NewSMAState(c.Period), nil
	case TypeEMA:
		return NewEMAState(c.Period), nil
	case TypeRSI:
		return NewRSIState(c.Period), nil
	case TypeATR:
		return NewATRState(c.Period), nil
	case TypeOBV:
		return NewOBVState(), nil
	case TypeMACD:
		return NewMACDState(c.Short, c.Long), nil
	case TypeMACI:
		return NewMACIState(c.Short, c.Long, c.Signal), nil
	}
	return nil, fmt.Errorf("unknown indicator type %q", c.Type)
}

// IntervalConfig groups indicator configs for one bar interval ("1m", "4h", ...).
type IntervalConfig struct {
	Interval   string            `yaml:"interval" json:"interval" validate:"required"`
	Indicators []IndicatorConfig `yaml:"indicators" json:"indicators" validate:"dive"`
}

// marketIndicators holds live indicator instances for one symbol within an interval.
type marketIndicators struct {
	indicators []Snapshottable
	configs    []IndicatorConfig
	lastTS     int64
}

// Engine computes multiple indicators across intervals for multiple symbols.
// Not safe for concurrent use.
type Engine struct {
	configs []IntervalConfig
	index   map[string]int

	// state[intervalIdx][symbol] → *marketIndicators
	state []map[string]*marketIndicators
}

// NewEngine creates an indicator engine with the given per-interval configs.
// Configs are expected to have passed ValidateConfigs.
func NewEngine(configs []IntervalConfig) *Engine {
	e := &Engine{}
	e.setConfigs(configs, make([]map[string]*marketIndicators, len(configs)))
	return e
}

func (e *Engine) setConfigs(configs []IntervalConfig, state []map[string]*marketIndicators) {
	for i := range state {
		if state[i] == nil {
			state[i] = make(map[string]*marketIndicators, 16)
		}
	}
	e.configs = configs
	e.state = state
	e.index = make(map[string]int, len(configs))
	for i, cfg := range configs {
		e.index[cfg.Interval] = i
	}
}

// Configs returns the engine's interval configs.
func (e *Engine) Configs() []IntervalConfig { return e.configs }

// LastTimestamp returns the newest bar processed for a market, 0 if none.
func (e *Engine) LastTimestamp(symbol, interval string) int64 {
	idx, ok := e.index[interval]
	if !ok {
		return 0
	}
	if mi, ok := e.state[idx][symbol]; ok {
		return mi.lastTS
	}
	return 0
}

// Process takes a closed kline and updates all indicators for that market.
// Returns indicator results (not-ready indicators have Ready=false).
// Bars at or before the market's last processed timestamp are ignored.
func (e *Engine) Process(k model.Kline) []model.IndicatorResult {
	idx, ok := e.index[k.Interval]
	if !ok {
		return nil // interval not configured for indicators
	}

	mi, exists := e.state[idx][k.Symbol]
	if !exists {
		mi = e.createMarketIndicators(idx)
		e.state[idx][k.Symbol] = mi
	}
	if mi.lastTS != 0 && k.Timestamp <= mi.lastTS {
		return nil
	}
	mi.lastTS = k.Timestamp

	ts := time.UnixMilli(k.Timestamp).UTC()
	results := make([]model.IndicatorResult, 0, len(mi.indicators))
	for _, ind := range mi.indicators {
		ind.Update(k.Bar)
		v := ind.Value()
		results = append(results, model.IndicatorResult{
			Name:     ind.Name(),
			Symbol:   k.Symbol,
			Interval: k.Interval,
			Value:    v.Or(0),
			TS:       ts,
			Ready:    v.IsDefined(),
		})
	}
	return results
}

// ProcessPeek computes live indicator values for a forming kline using Peek().
// Does NOT mutate indicator state. Returns nil if the market hasn't been
// seeded by a closed kline yet.
func (e *Engine) ProcessPeek(k model.Kline) []model.IndicatorResult {
	idx, ok := e.index[k.Interval]
	if !ok {
		return nil
	}
	mi, exists := e.state[idx][k.Symbol]
	if !exists {
		return nil
	}

	ts := time.UnixMilli(k.Timestamp).UTC()
	results := make([]model.IndicatorResult, 0, len(mi.indicators))
	for _, ind := range mi.indicators {
		v := ind.Peek(k.Bar)
		results = append(results, model.IndicatorResult{
			Name:     ind.Name(),
			Symbol:   k.Symbol,
			Interval: k.Interval,
			Value:    v.Or(0),
			TS:       ts,
			Ready:    v.IsDefined(),
			Live:     true,
		})
	}
	return results
}

// Run consumes klines and emits indicator results. Forming klines produce
// peek results. Blocks until ctx is done or klineCh is closed.
func (e *Engine) Run(ctx context.Context, klineCh <-chan model.Kline, resultCh chan<- model.IndicatorResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case k, ok := <-klineCh:
			if !ok {
				return
			}
			var results []model.IndicatorResult
			if k.Final {
				results = e.Process(k)
			} else {
				results = e.ProcessPeek(k)
			}
			for _, r := range results {
				select {
				case resultCh <- r:
				default:
					// drop if channel full
				}
			}
		}
	}
}

// MaxLookback returns the largest warm-up length across all configs.
func (e *Engine) MaxLookback() int {
	return MaxLookback(e.configs)
}

// MaxLookback returns the largest warm-up length across configs.
func MaxLookback(configs []IntervalConfig) int {
	longest := 0
	for _, cfg := range configs {
		for _, ic := range cfg.Indicators {
			if lb := ic.Lookback(); lb > longest {
				longest = lb
			}
		}
	}
	return longest
}

// createMarketIndicators creates fresh indicator instances for an interval config.
func (e *Engine) createMarketIndicators(idx int) *marketIndicators {
	cfg := e.configs[idx]
	inds := make([]Snapshottable, 0, len(cfg.Indicators))
	cfgs := make([]IndicatorConfig, 0, len(cfg.Indicators))
	for _, ic := range cfg.Indicators {
		ind, err := NewFromConfig(ic)
		if err != nil {
			continue // rejected by ValidateConfigs
		}
		inds = append(inds, ind)
		cfgs = append(cfgs, ic.Normalize())
	}
	return &marketIndicators{indicators: inds, configs: cfgs}
}
