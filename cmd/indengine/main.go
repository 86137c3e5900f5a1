package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"candle-featuresv1/config"
	"candle-featuresv1/internal/indengine"
	"candle-featuresv1/internal/logger"
	"candle-featuresv1/internal/marketdata/binance"
	"candle-featuresv1/internal/metrics"
	redisstore "candle-featuresv1/internal/store/redis"
	sqlitestore "candle-featuresv1/internal/store/sqlite"

	goredis "github.com/go-redis/redis/v8"
)

func main() {
	env := config.Load()
	logger.Init("indengine", logger.ParseLevel(env.LogLevel))

	jobs, err := config.LoadJobs(env.JobsFile)
	if err != nil {
		log.Fatalf("[indengine] %v", err)
	}
	cfg := indengine.ConfigFrom(env, jobs, env.IndicatorSpecs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()

	deps := indengine.Deps{Metrics: prom, Health: health}

	// Redis first: it is the faster restore path
	var rdb *goredis.Client
	rw, err := redisstore.New(redisstore.WriterConfig{Addr: env.RedisAddr, Password: env.RedisPassword, Metrics: prom})
	if err != nil {
		log.Printf("[indengine] WARNING: redis unavailable, results will not be cached: %v", err)
	} else {
		defer rw.Close()
		rdb = rw.Client()
		health.SetRedisConnected(true)

		cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
		cb.Instrument(prom)
		deps.Results = redisstore.NewBufferedWriter(ctx, rw, cb, 10000)
		deps.Snapshots = append(deps.Snapshots, rw)
	}

	var sqlDB *sql.DB
	if err := os.MkdirAll(filepath.Dir(env.SQLitePath), 0o755); err != nil {
		log.Fatalf("[indengine] %v", err)
	}
	store, err := sqlitestore.Open(env.SQLitePath, prom)
	if err != nil {
		log.Printf("[indengine] WARNING: sqlite unavailable, running without backfill: %v", err)
	} else {
		defer store.Close()
		sqlDB = store.Writer.DB()
		health.SetSQLiteOK(true)
		deps.Snapshots = append(deps.Snapshots, store)
		deps.Bars = store
		deps.BarSink = store
	}

	stream := binance.NewStream(env.BinanceWSURL, cfg.Symbols, cfg.IntervalNames())
	stream.Metrics = prom
	stream.OnConnect = health.SetWSConnected
	deps.Source = stream

	svc, err := indengine.New(cfg, deps)
	if err != nil {
		log.Fatalf("[indengine] init failed: %v", err)
	}

	srv := metrics.NewServer(env.MetricsAddr, health)
	srv.Start()
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		srv.Stop(stopCtx)
	}()
	health.StartLivenessChecker(ctx, rdb, sqlDB, 10*time.Second)

	go func() {
		if err := svc.ServeHTTP(ctx); err != nil {
			log.Printf("[indengine] control server: %v", err)
		}
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[indengine] fatal: %v", err)
	}
}
