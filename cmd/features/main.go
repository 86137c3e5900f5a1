package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"candle-featuresv1/config"
	"candle-featuresv1/internal/features"
	"candle-featuresv1/internal/jobs"
	"candle-featuresv1/internal/logger"
	"candle-featuresv1/internal/marketdata/binance"
	"candle-featuresv1/internal/metrics"
	"candle-featuresv1/internal/model"
	"candle-featuresv1/internal/store/flatfile"
	sqlitestore "candle-featuresv1/internal/store/sqlite"
)

func main() {
	fromDB := flag.Bool("from-db", false, "build from stored bars instead of fetching")
	flag.Parse()

	env := config.Load()
	logger.Init("features", logger.ParseLevel(env.LogLevel))

	jobFile, err := config.LoadJobs(env.JobsFile)
	if err != nil {
		log.Fatalf("[features] %v", err)
	}
	seqLen := jobFile.SequenceLength
	if os.Getenv("SEQUENCE_LENGTH") != "" {
		seqLen = env.SequenceLength
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	prom := metrics.NewMetrics()

	if err := os.MkdirAll(filepath.Dir(env.SQLitePath), 0o755); err != nil {
		log.Fatalf("[features] %v", err)
	}
	store, err := sqlitestore.Open(env.SQLitePath, prom)
	if err != nil {
		log.Fatalf("[features] %v", err)
	}
	defer store.Close()

	exporter, err := flatfile.NewExporter(jobFile.Export.Dir, jobFile.Export.Format)
	if err != nil {
		log.Fatalf("[features] %v", err)
	}

	p := &features.Pipeline{
		Config:         jobFile.Features,
		Bars:           store,
		Writers:        []model.FeatureWriter{store, exporter},
		Limit:          jobFile.Limit,
		SequenceLength: seqLen,
		Metrics:        prom,
	}
	if !*fromDB {
		p.Fetcher = binance.NewClient(env.BinanceBaseURL, env.HTTPTimeout, binance.WithMetrics(prom))
		p.BarStore = store
	}

	tasks := jobFile.Tasks()
	summaries := make([]features.Summary, len(tasks))
	runner := jobs.NewRunner(ctx, jobFile.Concurrency)
	for i, t := range tasks {
		i, t := i, t
		runner.Submit(logger.NewJobID(t.Symbol, t.Interval, i), func(ctx context.Context) error {
			sum, err := p.Run(ctx, t.Symbol, t.Interval)
			summaries[i] = sum
			return err
		})
	}
	results, runErr := runner.Wait()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tBARS\tROWS\tX\tY\tWINDOW\tSTATUS")
	for i, res := range results {
		s := summaries[i]
		status := "ok"
		if res.Err != nil {
			status = res.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%v\t[%d 4]\t%v\t%s\n",
			res.ID, s.Bars, s.Rows, s.Dataset, s.Dataset[0], s.Window, status)
	}
	tw.Flush()
	fmt.Printf("exported to %s (%s)\n", jobFile.Export.Dir, jobFile.Export.Format)

	if runErr != nil {
		log.Fatalf("[features] some jobs failed: %v", runErr)
	}
}
