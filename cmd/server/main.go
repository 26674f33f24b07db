package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/near-miss-analytics/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/near-miss-analytics/internal/adapter/kafka"
	"github.com/couchcryptid/near-miss-analytics/internal/config"
	"github.com/couchcryptid/near-miss-analytics/internal/dashboard"
	"github.com/couchcryptid/near-miss-analytics/internal/dataset"
	"github.com/couchcryptid/near-miss-analytics/internal/observability"
	"github.com/couchcryptid/near-miss-analytics/internal/pipeline"
	"github.com/couchcryptid/near-miss-analytics/internal/store"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	views, err := config.LoadViews(cfg.ViewsFile)
	if err != nil {
		logger.Error("failed to load views", "error", err, "path", cfg.ViewsFile)
		os.Exit(1)
	}

	st := store.New(clock)
	st.OnPublish(func(snap store.Snapshot) {
		metrics.SnapshotRecords.Set(float64(snap.Total))
	})

	var fetcher *dataset.Fetcher
	if cfg.DataURL != "" {
		fetcher = dataset.NewFetcher(cfg.DataFetchTimeout, cfg.DataFetchRetries, logger)
	}
	loader := dataset.NewLoader(dataset.Source{
		URL:  cfg.DataURL,
		Path: cfg.DataPath,
		Dir:  cfg.DataDir,
	}, fetcher, logger, metrics)

	reload := func(ctx context.Context) (store.Snapshot, error) {
		res, err := loader.Load(ctx)
		if err != nil {
			return store.Snapshot{}, err
		}
		snap := st.Replace(res.Records, res.Source, res.Dropped)
		logger.Info("snapshot published", "snapshot_id", snap.ID, "records", snap.Total)
		return snap, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := reload(ctx); err != nil {
		logger.Error("failed to load dataset", "error", err)
		os.Exit(1)
	}

	svc := dashboard.NewService(st, dashboard.NewBuilder(views, clock), cfg.ViewCacheSize, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, st, svc, reload, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	var closers []func() error
	if cfg.KafkaEnabled {
		reader := kafkaadapter.NewReader(cfg, logger)
		closers = append(closers, reader.Close)

		// The store loads last so a failed publish leaves the snapshot
		// unchanged.
		var sinks pipeline.FanOutLoader
		if cfg.KafkaSinkTopic != "" {
			writer := kafkaadapter.NewWriter(cfg, clock, logger)
			closers = append(closers, writer.Close)
			sinks = append(sinks, writer)
		}
		sinks = append(sinks, st)

		p := pipeline.New(reader, pipeline.NewTransformer(), sinks, logger, metrics, cfg.BatchSize)
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
		logger.Info("kafka ingest enabled", "topic", cfg.KafkaSourceTopic, "sink_topic", cfg.KafkaSinkTopic)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
