package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/callrelay/adapters"
	"github.com/satriahrh/callrelay/adapters/archive"
	"github.com/satriahrh/callrelay/adapters/mongo"
	"github.com/satriahrh/callrelay/adapters/stt"
	"github.com/satriahrh/callrelay/adapters/translation"
	"github.com/satriahrh/callrelay/adapters/tts"
	"github.com/satriahrh/callrelay/domain/repositories"
	"github.com/satriahrh/callrelay/internal/api"
	"github.com/satriahrh/callrelay/internal/auth"
	"github.com/satriahrh/callrelay/internal/callsession"
	"github.com/satriahrh/callrelay/internal/config"
	"github.com/satriahrh/callrelay/internal/metrics"
	"github.com/satriahrh/callrelay/internal/websocket"
	"github.com/satriahrh/callrelay/usecase"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Loader{}.Load()
	if err != nil {
		zap.NewExample().Fatal("Invalid configuration", zap.Error(err))
	}

	// Initialize logger
	logger := newLogger(cfg)
	defer logger.Sync()

	ctx := context.Background()
	m := metrics.NewCollector("callrelay", logger)

	registry := callsession.NewRegistry(callsession.Options{
		EgressCapacity:    cfg.Relay.EgressCapacity,
		BroadcastCapacity: cfg.Relay.BroadcastCapacity,
		MaxRecording:      cfg.Relay.MaxRecording,
		Metrics:           m,
	}, logger)
	cleanup := callsession.NewCleanupService(registry, cfg.Relay.StaleSessionTTL, logger)
	cleanup.Start()

	// Initialize adapters
	var transcribers repositories.TranscriberFactory
	if cfg.STT.Provider != config.ProviderNone {
		factory, err := stt.NewFactory(cfg.STT, stt.CapabilityOptions{
			QueueCapacity: cfg.Relay.BackendCapacity,
			StopTimeout:   cfg.Relay.StopTimeout,
			Baseline:      cfg.Relay.BaselineLanguage,
		}, logger, m)
		if err != nil {
			logger.Fatal("Failed to create speech recognizer", zap.Error(err))
		}
		transcribers = factory
	} else {
		logger.Warn("Speech recognition disabled; calls are relayed without transcripts")
	}

	synthesizer, err := tts.NewFromConfig(cfg.TTS, cfg.Translation.RequestsPerSecond, m, logger)
	if err != nil {
		logger.Fatal("Failed to create speech synthesizer", zap.Error(err))
	}
	translator, err := translation.NewFromConfig(ctx, cfg.Translation, m, logger)
	if err != nil {
		logger.Fatal("Failed to create translator", zap.Error(err))
	}

	var records repositories.CallRecordRepository = adapters.NewMemoryCallRecordRepository()
	var mongoClient *mongo.Client
	healthChecks := map[string]func(context.Context) error{}
	if cfg.Storage.MongoURI != "" {
		mongoClient, err = mongo.NewClient(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		repo, err := mongo.NewCallRecordRepository(ctx, mongoClient.Database, logger)
		if err != nil {
			logger.Fatal("Failed to prepare call records", zap.Error(err))
		}
		records = repo
		healthChecks["mongo"] = mongoClient.Ping
	} else {
		logger.Info("MONGODB_URI not set; call records are kept in memory")
	}

	operators := adapters.NewMemoryOperatorRepository()
	if err := operators.SeedOperators(ctx, cfg.Auth.Operators); err != nil {
		logger.Fatal("Failed to seed operators", zap.Error(err))
	}
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if !tokens.Enabled() {
		logger.Warn("JWT_SECRET not set; subscriber sockets are open")
	}

	// Initialize usecase services
	hub := websocket.NewHub(m, logger)
	translationService := usecase.NewTranslationService(translator, synthesizer, hub, usecase.TranslationOptions{
		BaselineLanguage: cfg.Relay.BaselineLanguage,
		TurnTimeout:      cfg.Relay.TurnTimeout,
	}, logger)
	archiveService := usecase.NewArchiveService(
		archive.NewFilesystem(cfg.Storage.TranscriptsDir, cfg.Storage.RecordingsDir, logger),
		records,
		cfg.Relay.BaselineLanguage,
		logger,
	)
	relay := websocket.NewRelay(registry, hub, transcribers, translationService, archiveService, websocket.RelayOptions{
		ConnectTimeout: cfg.Relay.ConnectTimeout,
		StopTimeout:    cfg.Relay.StopTimeout,
		DispatcherGain: cfg.Relay.DispatcherGain,
	}, m, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
	}))

	api.InitRoutes(e, api.Dependencies{
		Relay:        relay,
		Archive:      archiveService,
		Operators:    operators,
		Tokens:       tokens,
		Upgrader:     websocket.NewUpgrader(cfg.Server.AllowedOrigins),
		Metrics:      m,
		PublicURL:    cfg.Server.PublicURL,
		HealthChecks: healthChecks,
		Logger:       logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Call relay started",
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Environment),
		zap.String("stt", cfg.STT.Provider),
		zap.String("tts", cfg.TTS.Provider),
		zap.String("translation", cfg.Translation.Provider),
		zap.String("baseline", cfg.Relay.BaselineLanguage))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cleanup.Stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := relay.Shutdown(shutdownCtx); err != nil {
		logger.Error("Calls did not finish tearing down", zap.Error(err))
	}
	if mongoClient != nil {
		mongoClient.Close(shutdownCtx)
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.Config) *zap.Logger {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.Log.Level); err == nil {
		zapCfg.Level = level
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("service", "callrelay"))
}
