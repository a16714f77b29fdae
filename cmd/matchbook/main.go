package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"matchbook/internal/config"
	"matchbook/internal/engine"
	"matchbook/internal/ingest"
	"matchbook/internal/metrics"
	"matchbook/internal/shard"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain runs the process and returns its exit code once every deferred shutdown
// step has run.
func realMain(args []string) int {
	cfg := config.Load()

	flags := flag.NewFlagSet("matchbook", flag.ContinueOnError)
	loadPath := flags.String("load", "", "CSV of standing orders to rest before replay")
	replayPath := flags.String("replay", "", "CSV of orders to match in file order")
	flags.IntVar(&cfg.Shards, "shards", cfg.Shards, "Number of engine shards")
	flags.IntVar(&cfg.SnapshotDepth, "depth", cfg.SnapshotDepth, "Levels per side in the final snapshot")
	flags.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Address to serve /metrics on, empty disables it")
	hold := flags.Bool("hold", false, "Keep running until interrupted after the replay")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 2
	}
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	router := shard.New(cfg.Shards, cfg.QueueSize, shard.WithMetrics(metrics.New(reg)))
	router.Start(ctx)
	defer func() {
		if err := router.Stop(); err != nil {
			log.Error().Err(err).Msg("router stopped with error")
		}
	}()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsHandler(reg)}
		go func() {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	if err := run(ctx, router, cfg, *loadPath, *replayPath); err != nil {
		log.Error().Err(err).Msg("run failed")
		return 1
	}

	if *hold {
		log.Info().Msg("holding, interrupt to exit")
		<-ctx.Done()
	}
	return 0
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func run(ctx context.Context, router *shard.Router, cfg *config.Config, loadPath, replayPath string) error {
	if loadPath != "" {
		src, closeSrc, err := openCSV(loadPath)
		if err != nil {
			return err
		}
		defer closeSrc()
		if _, err := ingest.Load(ctx, router, src); err != nil {
			return err
		}
	}

	if replayPath != "" {
		src, closeSrc, err := openCSV(replayPath)
		if err != nil {
			return err
		}
		defer closeSrc()
		blotters, err := ingest.Replay(ctx, router, src)
		if err != nil {
			return err
		}
		trades := 0
		for _, blotter := range blotters {
			trades += len(blotter.Trades)
		}
		log.Info().Int("orders", len(blotters)).Int("trades", trades).Msg("replay summary")
	}

	if err := router.CheckConsistency(ctx); err != nil {
		return err
	}

	symbols, err := router.Symbols(ctx)
	if err != nil {
		return err
	}
	for _, symbol := range symbols {
		snap, ok, err := router.Snapshot(ctx, symbol, cfg.SnapshotDepth)
		if err != nil {
			return err
		}
		if ok {
			logSnapshot(snap)
		}
	}
	return nil
}

func openCSV(path string) (*ingest.CSVSource, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	src, err := ingest.NewCSVSource(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return src, f.Close, nil
}

func logSnapshot(snap engine.Snapshot) {
	event := log.Info().Str("symbol", snap.Symbol)
	bids := zerolog.Arr()
	for _, level := range snap.Bids {
		bids.Str(level.Price.StringFixed(2) + " x " + strconv.FormatInt(level.Quantity, 10))
	}
	asks := zerolog.Arr()
	for _, level := range snap.Asks {
		asks.Str(level.Price.StringFixed(2) + " x " + strconv.FormatInt(level.Quantity, 10))
	}
	event.Array("bids", bids).Array("asks", asks)
	if snap.Spread.Valid {
		event.Str("spread", snap.Spread.Decimal.String())
	}
	if snap.Midpoint.Valid {
		event.Str("mid", snap.Midpoint.Decimal.String())
	}
	if snap.BidVWAP.Valid {
		event.Str("bid_vwap", snap.BidVWAP.Decimal.StringFixed(4))
	}
	if snap.AskVWAP.Valid {
		event.Str("ask_vwap", snap.AskVWAP.Decimal.StringFixed(4))
	}
	event.Msg("snapshot")
}
