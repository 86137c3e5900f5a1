package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"candle-featuresv1/config"
	"candle-featuresv1/internal/logger"
	"candle-featuresv1/internal/marketdata/binance"
	"candle-featuresv1/internal/report"
	redisstore "candle-featuresv1/internal/store/redis"
)

func main() {
	symbol := flag.String("symbol", "BTC", "base asset, e.g. BTC")
	interval := flag.String("interval", "", "candle interval: 15m, 1h, 4h, 1d")
	asJSON := flag.Bool("json", false, "print the snapshot as JSON")
	cache := flag.Bool("cache", false, "cache the snapshot in Redis")
	flag.Parse()

	env := config.Load()
	logger.Init("analyze", logger.ParseLevel(env.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 2*env.HTTPTimeout)
	defer cancel()

	client := binance.NewClient(env.BinanceBaseURL, env.HTTPTimeout)
	snap, err := report.Analyze(ctx, client, strings.ToUpper(*symbol), *interval)
	if err != nil {
		log.Fatalf("[analyze] %v", err)
	}

	if *cache {
		cacheSnapshot(ctx, env, snap)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			log.Fatalf("[analyze] %v", err)
		}
		return
	}
	if err := report.Render(os.Stdout, snap); err != nil {
		log.Fatalf("[analyze] %v", err)
	}
}

func cacheSnapshot(ctx context.Context, env *config.Config, snap *report.Snapshot) {
	rw, err := redisstore.New(redisstore.WriterConfig{Addr: env.RedisAddr, Password: env.RedisPassword})
	if err != nil {
		log.Printf("[analyze] WARNING: redis unavailable, snapshot not cached: %v", err)
		return
	}
	defer rw.Close()

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[analyze] WARNING: encode snapshot: %v", err)
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rw.SetMarketSnapshot(wctx, snap.Symbol, snap.Interval, data); err != nil {
		log.Printf("[analyze] WARNING: %v", err)
	}
}
