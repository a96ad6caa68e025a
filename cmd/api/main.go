package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spacesedan/sentibot/config"
	"github.com/spacesedan/sentibot/internal/clients"
	"github.com/spacesedan/sentibot/internal/clients/kafka_client"
	"github.com/spacesedan/sentibot/internal/events"
	"github.com/spacesedan/sentibot/internal/logging"
	"github.com/spacesedan/sentibot/internal/monitoring"
	"github.com/spacesedan/sentibot/internal/ratelimit"
	"github.com/spacesedan/sentibot/internal/sentiment"
	"github.com/spacesedan/sentibot/internal/server"
	"github.com/spacesedan/sentibot/internal/stats"
	"github.com/spacesedan/sentibot/internal/transformers"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	classifier, err := newClassifier(cfg.Model, metrics)
	if err != nil {
		slog.Error("[Main] Failed to create classifier", slog.String("error", err.Error()))
		os.Exit(1)
	}

	phrases := sentiment.DefaultIronyPhrases
	if cfg.Cache.IronyPhrasesFile != "" {
		loaded, err := sentiment.LoadIronyPhrases(cfg.Cache.IronyPhrasesFile)
		if err != nil {
			slog.Warn("[Main] Falling back to built-in irony phrases",
				slog.String("error", err.Error()))
		} else {
			phrases = loaded
		}
	}

	analyzer := sentiment.NewAnalyzer(classifier, sentiment.AnalyzerConfig{
		ModelName:     cfg.Model.Name,
		CacheCapacity: cfg.Cache.Capacity,
		IronyPhrases:  phrases,
		Observer:      metrics,
	})

	if cfg.Model.WarmUp {
		if err := analyzer.EnsureLoaded(ctx); err != nil {
			slog.Error("[Main] Model warm-up failed, will retry on first request",
				slog.String("error", err.Error()))
		}
	}

	persister, err := newPersister(ctx, cfg)
	if err != nil {
		slog.Error("[Main] Failed to create stats persister", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tracker := stats.NewTracker(clockwork.NewRealClock())
	if snap, err := persister.Load(ctx); err != nil {
		slog.Error("[Main] Failed to load stats", slog.String("error", err.Error()))
	} else {
		tracker.Restore(snap)
	}

	publisher := newPublisher(cfg.Kafka)
	defer publisher.Close()

	limiter, closeLimiter := newLimiter(cfg)
	defer closeLimiter()

	handler := server.NewHandler(cfg.Model.Name, tracker, publisher, metrics)
	handler.SetAnalyzer(analyzer)
	defer handler.Close()

	srv := server.NewServer(handler, server.ServerConfig{
		Addr:     cfg.API.Addr(),
		Debug:    cfg.Environment == "development",
		Limiter:  limiter,
		Gatherer: reg,
	})

	slog.Info("[Main] Sentiment API starting",
		slog.String("model", cfg.Model.Name),
		slog.String("backend", cfg.Model.Backend),
		slog.String("addr", cfg.API.Addr()))

	if err := srv.Run(ctx); err != nil {
		slog.Error("[Main] Server stopped with error", slog.String("error", err.Error()))
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := persister.Save(saveCtx, tracker.Snapshot()); err != nil {
		slog.Error("[Main] Failed to save stats", slog.String("error", err.Error()))
	}
	slog.Info("[Main] Sentiment API stopped")
}

func newClassifier(cfg config.ModelConfig, metrics *monitoring.Metrics) (sentiment.Classifier, error) {
	switch cfg.Backend {
	case config.BACKEND_HUGGINGFACE:
		hf := clients.NewHuggingFaceClient(cfg.HFAPIURL, cfg.Name, cfg.HFToken)
		return clients.NewBreakerClassifier(config.BACKEND_HUGGINGFACE, hf, metrics.SetBreakerState), nil
	case config.BACKEND_OPENAI:
		oa, err := clients.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		return clients.NewBreakerClassifier(config.BACKEND_OPENAI, oa, metrics.SetBreakerState), nil
	case config.BACKEND_VADER:
		return sentiment.NewVaderClassifier(), nil
	default:
		return transformers.NewPipeline(transformers.PipelineConfig{
			ModelName:         cfg.Name,
			ModelDir:          cfg.Dir,
			OnnxLibraryPath:   cfg.OnnxLibraryPath,
			MaxSequenceLength: cfg.MaxSequenceLength,
		}), nil
	}
}

func newPersister(ctx context.Context, cfg *config.Config) (stats.Persister, error) {
	if cfg.Stats.Backend == config.STATS_BACKEND_DYNAMODB {
		client, err := clients.NewDynamoDBClient(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return stats.NewDynamoPersister(client, cfg.Stats.Table), nil
	}
	return stats.NewFilePersister(cfg.Stats.File), nil
}

func newPublisher(cfg config.KafkaConfig) events.Publisher {
	if !cfg.Enabled() {
		return events.NoopPublisher{}
	}
	producer, err := kafka_client.NewProducer(cfg.Broker)
	if err != nil {
		slog.Warn("[Main] Result events disabled", slog.String("error", err.Error()))
		return events.NoopPublisher{}
	}
	return events.NewKafkaPublisher(producer, cfg.ResultsTopic)
}

// newLimiter prefers the shared Valkey counter and falls back to memory.
func newLimiter(cfg *config.Config) (ratelimit.Limiter, func()) {
	if cfg.Valkey.Enabled() {
		vc, err := clients.NewValkeyClient(cfg.Valkey)
		if err == nil {
			return ratelimit.NewValkeyLimiter(vc, cfg.Limits.MaxRequests, cfg.Limits.Window), vc.Close
		}
		slog.Warn("[Main] Valkey unavailable, using in-memory rate limiter",
			slog.String("error", err.Error()))
	}
	return ratelimit.NewMemoryLimiter(cfg.Limits.MaxRequests, cfg.Limits.Window, clockwork.NewRealClock()), func() {}
}
