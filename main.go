package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"adaptive-trading-bot/config"
	"adaptive-trading-bot/internal/api"
	"adaptive-trading-bot/internal/auth"
	"adaptive-trading-bot/internal/bot"
	"adaptive-trading-bot/internal/database"
	"adaptive-trading-bot/internal/events"
	"adaptive-trading-bot/internal/logging"
	"adaptive-trading-bot/internal/market"
	"adaptive-trading-bot/internal/metrics"
	"adaptive-trading-bot/internal/vault"
)

func main() {
	if len(os.Args) > 2 && os.Args[1] == "sample-config" {
		if err := config.GenerateSampleConfig(os.Args[2]); err != nil {
			log.Fatalf("Failed to write sample config: %v", err)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&cfg.Logging)
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized", "level", cfg.Logging.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Secrets from Vault override file and env values
	if cfg.Vault.Enabled {
		vaultClient, err := vault.NewClient(cfg.Vault)
		if err != nil {
			logger.Fatal("Failed to create vault client", "error", err.Error())
		}
		if err := vaultClient.Health(ctx); err != nil {
			logger.Warn("Vault unhealthy", "error", err.Error())
		}
		if err := vaultClient.Apply(ctx, cfg); err != nil {
			if !errors.Is(err, vault.ErrSecretNotFound) {
				logger.Fatal("Failed to read secrets from vault", "error", err.Error())
			}
			logger.Warn("No service secrets in vault, using configured values")
		}
	}

	// Persistence
	store, err := database.Open(ctx, cfg.StorageOptions(), logger)
	if err != nil {
		logger.Fatal("Failed to open store", "backend", cfg.Storage.Backend, "error", err.Error())
	}
	defer store.Close()
	logger.Info("Store opened", "backend", cfg.Storage.Backend, "namespace", cfg.Storage.Namespace)

	// Telemetry fan-out
	hub := api.NewWSHub(logger)
	go hub.Run(ctx)

	bus := events.NewEventBus()
	bus.Subscribe(events.EventTradeClosed, func(e events.Event) {
		logger.Info("Trade closed", "pnl", e.Data["pnl"], "reason", e.Data["reason"], "pattern", e.Data["pattern"])
	})
	bus.Subscribe(events.EventCircuitBreakerUpdate, func(e events.Event) {
		logger.Warn("Circuit breaker update", "state", e.Data["state"], "reason", e.Data["reason"])
	})
	bus.SubscribeAll(func(e events.Event) {
		logger.Debug("Event published", "type", string(e.Type))
	})

	sinks := events.Fanout{hub, bus}
	if cfg.Kafka.Enabled {
		kafkaSink, err := events.NewKafkaSink(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("Failed to create kafka sink", "error", err.Error())
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		logger.Info("Kafka telemetry enabled", "topic", cfg.Kafka.TelemetryTopic)
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
	}

	// Engine
	engine, err := bot.New(cfg.EngineSettings(), bot.Deps{
		Store:   store,
		Sink:    sinks,
		Metrics: recorder,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Failed to create engine", "error", err.Error())
	}
	if err := engine.Restore(ctx); err != nil {
		logger.Warn("Engine restored with defaults for unreadable records", "error", err.Error())
	}

	// Candle feed from Kafka
	if cfg.Kafka.Enabled && cfg.Kafka.CandleTopic != "" {
		feed, err := events.NewKafkaFeed(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("Failed to create kafka candle feed", "error", err.Error())
		}
		defer feed.Close()
		go func() {
			if err := feed.Run(ctx, candleHandler(engine, logger)); err != nil {
				logger.Error("Candle feed stopped", "error", err.Error())
			}
		}()
		logger.Info("Kafka candle feed started", "topic", cfg.Kafka.CandleTopic)
	}

	// Auth
	var authService *auth.Service
	if cfg.Auth.Enabled {
		authService, err = auth.NewService(cfg.Auth, logger)
		if err != nil {
			logger.Fatal("Failed to initialize auth", "error", err.Error())
		}
		logger.Info("Operator authentication enabled", "username", cfg.Auth.AdminUsername)
	}

	var metricsHandler http.Handler
	if recorder != nil {
		metricsHandler = recorder.Handler()
	}
	server := api.NewServer(api.ServerConfig{
		Port:           cfg.Server.Port,
		Host:           cfg.Server.Host,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		ProductionMode: cfg.Logging.JSONFormat,
		MetricsPath:    cfg.Metrics.Path,
	}, engine, hub, authService, metricsHandler, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", "error", err.Error())
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err.Error())
	}

	logger.Info("Shutdown complete")
}

// candleHandler routes feed messages: a candle object is a live update, an
// array is a history batch
func candleHandler(engine *bot.Engine, logger *logging.Logger) events.CandleHandler {
	base := logger.WithComponent("candle-feed")
	return func(ctx context.Context, candles []market.Candle, batch bool) error {
		ctx, l := logging.WithTraceContext(logging.NewContext(ctx, base))
		if batch {
			l.Debug("History batch received", "candles", len(candles))
			engine.LoadHistory(ctx, candles)
			return nil
		}
		if err := engine.OnCandle(ctx, candles[0]); err != nil {
			if errors.Is(err, market.ErrInvalidCandle) {
				l.Warn("Dropping invalid candle", "time", candles[0].Time, "error", err.Error())
				return nil
			}
			return err
		}
		return nil
	}
}
