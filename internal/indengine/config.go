package indengine

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"candle-featuresv1/config"
	"candle-featuresv1/internal/features"
	"candle-featuresv1/internal/indicator"
)

// Config holds the settings of the live indicator engine service.
type Config struct {
	Symbols       []string
	Intervals     []indicator.IntervalConfig
	SnapshotEvery time.Duration
	RingSize      int
	PeekEvery     time.Duration // min gap between live previews per market, 0 = every update
	HTTPAddr      string        // /reload and /healthz
}

// ConfigFrom builds the service config from the environment and job file.
// Engine intervals come from the job file's engine section; when it is
// empty every job interval gets the indicators named by specs, or
// DefaultIndicators if specs is empty.
func ConfigFrom(env *config.Config, jobs *config.Jobs, specs string) Config {
	intervals := jobs.Engine.Intervals
	if len(intervals) == 0 {
		inds := ParseIndicatorSpecs(specs)
		seen := make(map[string]bool)
		for _, t := range jobs.Tasks() {
			if seen[t.Interval] {
				continue
			}
			seen[t.Interval] = true
			intervals = append(intervals, indicator.IntervalConfig{Interval: t.Interval, Indicators: inds})
		}
	}
	return Config{
		Symbols:       jobs.Symbols(),
		Intervals:     intervals,
		SnapshotEvery: jobs.Engine.SnapshotEvery,
		RingSize:      jobs.Engine.RingSize,
		PeekEvery:     time.Second,
		HTTPAddr:      env.EngineHTTPAddr,
	}
}

// IntervalNames lists the configured intervals in order.
func (c Config) IntervalNames() []string {
	out := make([]string, len(c.Intervals))
	for i, ic := range c.Intervals {
		out[i] = ic.Interval
	}
	return out
}

// DefaultIndicators is the feature-row indicator set plus MACI.
func DefaultIndicators() []indicator.IndicatorConfig {
	return append(features.DefaultConfig().Indicators(), indicator.IndicatorConfig{Type: indicator.TypeMACI})
}

// ParseIndicatorSpecs parses "TYPE:PARAM:PARAM,..." into indicator configs,
// e.g. "SMA:20,EMA:9,RSI:14,MACD:12:26,MACI:12:26:9,OBV". Missing
// parameters take library defaults. Returns DefaultIndicators if nothing
// valid was given.
func ParseIndicatorSpecs(s string) []indicator.IndicatorConfig {
	var configs []indicator.IndicatorConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens := strings.Split(part, ":")
		ic := indicator.IndicatorConfig{Type: strings.ToUpper(strings.TrimSpace(tokens[0]))}

		params := make([]int, 0, 3)
		ok := true
		for _, tok := range tokens[1:] {
			n, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil || n <= 0 {
				ok = false
				break
			}
			params = append(params, n)
		}
		if ok {
			ok = assignParams(&ic, params)
		}
		if !ok {
			slog.Warn("skipping invalid indicator spec", "spec", part)
			continue
		}
		if _, err := indicator.NewFromConfig(ic); err != nil {
			slog.Warn("skipping invalid indicator spec", "spec", part, "error", err)
			continue
		}
		configs = append(configs, ic)
	}
	if len(configs) == 0 {
		return DefaultIndicators()
	}
	return configs
}

func assignParams(ic *indicator.IndicatorConfig, p []int) bool {
	switch ic.Type {
	case indicator.TypeOBV:
		return len(p) == 0
	case indicator.TypeMACD, indicator.TypeMACI:
		limit := 2
		if ic.Type == indicator.TypeMACI {
			limit = 3
		}
		if len(p) > limit {
			return false
		}
		for i, dst := range []*int{&ic.Short, &ic.Long, &ic.Signal}[:len(p)] {
			*dst = p[i]
		}
		return true
	case indicator.TypeSMA, indicator.TypeEMA:
		if len(p) != 1 {
			return false
		}
		ic.Period = p[0]
		return true
	default:
		if len(p) > 1 {
			return false
		}
		if len(p) == 1 {
			ic.Period = p[0]
		}
		return true
	}
}
