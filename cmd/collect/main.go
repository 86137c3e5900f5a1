package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"candle-featuresv1/config"
	"candle-featuresv1/internal/collect"
	"candle-featuresv1/internal/logger"
	"candle-featuresv1/internal/marketdata/binance"
	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/store/flatfile"
	sqlitestore "candle-featuresv1/internal/store/sqlite"
)

func main() {
	symbol := flag.String("symbol", "", "base asset to collect, e.g. BTC")
	interval := flag.String("interval", "1m", "candle interval")
	limit := flag.Int("limit", 800, "candles per fetch")
	every := flag.Duration("every", 0, "poll period (default one interval)")
	mirror := flag.Bool("sqlite", true, "mirror bars into the SQLite bar store")
	once := flag.Bool("once", false, "collect once and exit")
	flag.Parse()

	if *symbol == "" {
		log.Fatal("[collect] -symbol is required")
	}

	env := config.Load()
	logger.Init("collect", logger.ParseLevel(env.LogLevel))
	prom := metrics.NewMetrics()

	csvStore, err := flatfile.NewCSVStore(env.DataDir)
	if err != nil {
		log.Fatalf("[collect] %v", err)
	}

	var mirrors []model.BarWriter
	if *mirror {
		if err := os.MkdirAll(filepath.Dir(env.SQLitePath), 0o755); err != nil {
			log.Fatalf("[collect] %v", err)
		}
		w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: env.SQLitePath, Metrics: prom})
		if err != nil {
			log.Printf("[collect] WARNING: sqlite mirror disabled: %v", err)
		} else {
			defer w.Close()
			mirrors = append(mirrors, w)
		}
	}

	client := binance.NewClient(env.BinanceBaseURL, env.HTTPTimeout, binance.WithMetrics(prom))
	c, err := collect.New(collect.Config{
		Symbol:   strings.ToUpper(*symbol),
		Interval: *interval,
		Limit:    *limit,
		Every:    *every,
	}, client, csvStore, mirrors, prom)
	if err != nil {
		log.Fatalf("[collect] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *once {
		n, err := c.CollectOnce(ctx)
		if err != nil {
			log.Fatalf("[collect] %v", err)
		}
		log.Printf("[collect] appended %d bars to %s", n, csvStore.Path(*symbol, *interval))
		return
	}

	// no stream here, so no /healthz
	srv := metrics.NewServer(env.MetricsAddr, nil)
	srv.Start()
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		srv.Stop(stopCtx)
	}()

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[collect] %v", err)
	}
}
