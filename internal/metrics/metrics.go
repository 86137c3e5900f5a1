package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the candle feature pipeline.
type Metrics struct {
	// Market data
	CandlesFetched *prometheus.CounterVec // labels: interval
	FetchDur       prometheus.Histogram
	FetchErrors    prometheus.Counter
	StreamBars     *prometheus.CounterVec // labels: interval
	WSReconnects   prometheus.Counter

	// Feature tables
	FeatureRowsBuilt   *prometheus.CounterVec // labels: interval
	FeatureRowsDropped *prometheus.CounterVec // labels: interval
	FeatureBuildDur    prometheus.Histogram

	// Collector
	CollectorAppended prometheus.Counter

	// Indicator engine
	IndicatorComputeDur prometheus.Histogram
	IndicatorsTotal     prometheus.Counter
	RingBufOverflow     prometheus.Counter

	// Stores
	SQLiteCommitDur  prometheus.Histogram
	SnapshotWriteDur prometheus.Histogram

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	fast := []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001}

	m := &Metrics{
		CandlesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "candles_fetched_total",
			Help: "Candles received from the market-data REST API",
		}, []string{"interval"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "candles_fetch_duration_seconds",
			Help:    "Market-data REST request latency",
			Buckets: prometheus.DefBuckets,
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "candles_fetch_errors_total",
			Help: "Failed market-data REST requests",
		}),
		StreamBars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_bars_total",
			Help: "Closed klines received from the WebSocket stream",
		}, []string{"interval"}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_ws_reconnects_total",
			Help: "WebSocket reconnection attempts",
		}),

		FeatureRowsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feature_rows_built_total",
			Help: "Feature rows emitted",
		}, []string{"interval"}),
		FeatureRowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feature_rows_dropped_total",
			Help: "Bars dropped from feature tables because an indicator was undefined",
		}, []string{"interval"}),
		FeatureBuildDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feature_build_duration_seconds",
			Help:    "Time to build one feature table",
			Buckets: prometheus.DefBuckets,
		}),

		CollectorAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_bars_appended_total",
			Help: "Bars appended to flat files by the collector",
		}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indicator_compute_duration_seconds",
			Help:    "Indicator engine compute latency per closed kline",
			Buckets: fast,
		}),
		IndicatorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indicators_total",
			Help: "Indicator values computed",
		}),
		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped klines)",
		}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "snapshot_write_duration_seconds",
			Help:    "Indicator snapshot persistence latency",
			Buckets: prometheus.DefBuckets,
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.CandlesFetched,
		m.FetchDur,
		m.FetchErrors,
		m.StreamBars,
		m.WSReconnects,
		m.FeatureRowsBuilt,
		m.FeatureRowsDropped,
		m.FeatureBuildDur,
		m.CollectorAppended,
		m.IndicatorComputeDur,
		m.IndicatorsTotal,
		m.RingBufOverflow,
		m.SQLiteCommitDur,
		m.SnapshotWriteDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// ObserveFeatureTable records one feature build over bars producing rows.
func (m *Metrics) ObserveFeatureTable(interval string, bars, rows int, dur time.Duration) {
	if m == nil {
		return
	}
	m.FeatureRowsBuilt.WithLabelValues(interval).Add(float64(rows))
	m.FeatureRowsDropped.WithLabelValues(interval).Add(float64(bars - rows))
	m.FeatureBuildDur.Observe(dur.Seconds())
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected    bool      `json:"ws_connected"`
	LastBarTime    time.Time `json:"last_bar_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	IndicatorOK    bool      `json:"indicator_ok"`
	Intervals      []string  `json:"intervals"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastBarTime(t time.Time) {
	h.mu.Lock()
	h.LastBarTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetIndicatorOK(v bool) {
	h.mu.Lock()
	h.IndicatorOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetIntervals(intervals []string) {
	h.mu.Lock()
	h.Intervals = intervals
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. The stream and SQLite are
// required; Redis is a cache, so losing it only degrades.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.RedisConnected {
		overallStatus = "degraded"
	}
	if !h.WSConnected || !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	barAge := ""
	if !h.LastBarTime.IsZero() {
		barAge = time.Since(h.LastBarTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		WSConnected     bool     `json:"ws_connected"`
		LastBarTime     string   `json:"last_bar_time"`
		BarAge          string   `json:"bar_age"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		IndicatorOK     bool     `json:"indicator_ok"`
		Intervals       []string `json:"intervals"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:     h.WSConnected,
		LastBarTime:     h.LastBarTime.Format(time.RFC3339),
		BarAge:          barAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		IndicatorOK:     h.IndicatorOK,
		Intervals:       h.Intervals,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server. A nil health serves
// /metrics only.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if health != nil {
		mux.HandleFunc("/healthz", health.ServeHTTP)
	}

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
