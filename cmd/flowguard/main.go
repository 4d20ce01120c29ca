package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucid-vigil/flowguard/pkg/alert"
	"github.com/lucid-vigil/flowguard/pkg/api"
	"github.com/lucid-vigil/flowguard/pkg/artifacts"
	"github.com/lucid-vigil/flowguard/pkg/classifier/onnx"
	"github.com/lucid-vigil/flowguard/pkg/config"
	"github.com/lucid-vigil/flowguard/pkg/dedup"
	perrors "github.com/lucid-vigil/flowguard/pkg/errors"
	"github.com/lucid-vigil/flowguard/pkg/features"
	"github.com/lucid-vigil/flowguard/pkg/logger"
	"github.com/lucid-vigil/flowguard/pkg/metrics"
	"github.com/lucid-vigil/flowguard/pkg/monitors/resource"
	"github.com/lucid-vigil/flowguard/pkg/notify"
	"github.com/lucid-vigil/flowguard/pkg/pipeline"
	"github.com/lucid-vigil/flowguard/pkg/scheduler"
	"github.com/lucid-vigil/flowguard/pkg/watcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

const webhookTimeout = 5 * time.Second

func main() {
	// Load configuration first
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.InitLogger(cfg.LogLevel, cfg.LogFormat)

	log.Info().Msg("Flowguard starting...")
	log.Info().
		Str("log_path", cfg.Watcher.LogPath).
		Str("model_path", cfg.Artifacts.ModelPath).
		Str("alert_log", cfg.Alerts.LogPath).
		Str("api_port", cfg.APIPort).
		Msg("Configuration loaded.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Flowguard stopped with an error")
	}
	log.Info().Msg("Flowguard stopped.")
}

func run(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPipelineMetrics(reg)
	errs := perrors.NewHandler(log.Logger, m.StageErrorsTotal)

	featureSchema, err := artifacts.LoadFeatureSchema(cfg.Artifacts.FeaturesPath)
	if err != nil {
		return fmt.Errorf("loading feature schema: %w", err)
	}
	encoders, err := artifacts.LoadEncoders(cfg.Artifacts.EncodersPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", cfg.Artifacts.EncodersPath).
			Msg("Encoders not found; categorical features will use hash fallback.")
	case err != nil:
		return fmt.Errorf("loading encoders: %w", err)
	}

	model, err := onnx.Load(cfg.Artifacts.ModelPath, cfg.Artifacts.ONNXLibrary, len(featureSchema))
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	defer model.Close()
	log.Info().Int("features", len(featureSchema)).Int("encoders", len(encoders)).Msg("Artifacts loaded.")

	dispatcher := notify.NewDispatcher(cfg.Alerts.NotifyEnabled, log.Logger,
		notify.WithRateLimit(cfg.Alerts.NotifyPerMinute),
		notify.WithCounter(m.NotificationsTotal),
		notify.WithErrorHandler(errs),
	)
	dispatcher.Register(notify.NewDesktopNotifier())
	if cfg.Alerts.WebhookURL != "" {
		dispatcher.Register(notify.NewWebhookNotifier(cfg.Alerts.WebhookURL, webhookTimeout))
	}

	sink, err := alert.NewSink(cfg.Alerts.LogPath, log.Logger,
		alert.WithNotifier(dispatcher),
		alert.WithErrorHandler(errs),
		alert.WithWrittenCounter(m.AlertsTotal),
	)
	if err != nil {
		return fmt.Errorf("opening alert log: %w", err)
	}
	defer sink.Close()

	vectorizer := features.NewVectorizer(log.Logger, features.WithFallbackHook(func(feature string) {
		m.HashFallbackTotal.WithLabelValues(feature).Inc()
	}))

	p := pipeline.New(pipeline.Config{
		FeatureSchema: featureSchema,
		Encoders:      encoders,
		Vectorizer:    vectorizer,
		Dedup: dedup.NewDeduplicator(dedup.Config{
			MaxEntries: cfg.Dedup.MaxEntries,
			TTL:        cfg.Dedup.TTL,
		}),
		Model:   model,
		Sink:    sink,
		Errors:  errs,
		Metrics: m,
		Logger:  log.Logger,
	})

	w := watcher.New(watcher.Config{
		Path:             cfg.Watcher.LogPath,
		FilePollInterval: cfg.Watcher.FilePollInterval,
		LinePollInterval: cfg.Watcher.LinePollInterval,
	}, p, log.Logger,
		watcher.WithErrorHandler(errs),
		watcher.WithRotationCounter(m.WatcherRotations),
	)

	sched := scheduler.NewScheduler(cfg)
	resMon, err := resource.NewMonitor(log.Logger, p.Seen,
		resource.WithGauges(m.ProcessResidentSize, m.DedupEntries))
	if err != nil {
		log.Warn().Err(err).Msg("Resource monitor unavailable.")
	} else {
		sched.RegisterMonitor(resMon)
	}
	sched.Start(ctx)
	defer sched.Wait()

	srv := api.NewServer(cfg.APIPort, reg, func() string { return w.State().String() })
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("API server failed")
		}
	}()

	log.Info().Msg("Watching connection log.")
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watcher: %w", err)
	}
	return nil
}
