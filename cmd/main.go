package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courtsidehq/league-engine/config"
	"github.com/courtsidehq/league-engine/db"
	"github.com/courtsidehq/league-engine/handlers"
	"github.com/courtsidehq/league-engine/rating"
	"github.com/courtsidehq/league-engine/repositories"
	api "github.com/courtsidehq/league-engine/routes"
	"github.com/courtsidehq/league-engine/services"
	"github.com/courtsidehq/league-engine/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.ExportUploadsEnabled {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize file storage", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("file storage initialized", slog.String("bucket", cfg.R2BucketName))
	} else {
		logger.Info("file storage not configured; export uploads disabled")
	}

	ratingRepo := repositories.NewPostgresPlayerRatingRepository(dbConn)
	historyRepo := repositories.NewPostgresRatingHistoryRepository(dbConn)
	paramsRepo := repositories.NewPostgresRatingParametersRepository(dbConn)
	lockRepo := repositories.NewPostgresSeasonLockRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)
	logger.Info("repositories initialized")

	engine := rating.NewEngine()
	notifier := services.NewLogNotificationSink(logger)

	configService := services.NewRatingConfigService(dbConn, paramsRepo, lockRepo, matchRepo)
	lockService := services.NewSeasonLockService(dbConn, lockRepo, matchRepo)
	ratingService := services.NewRatingService(dbConn, engine, ratingRepo, historyRepo,
		matchRepo, lockRepo, configService, notifier, logger)
	recalcService := services.NewRecalculationService(dbConn, engine, ratingRepo,
		historyRepo, matchRepo, lockRepo, configService, logger)
	bracketService := services.NewBracketService(dbConn, bracketRepo, standingRepo,
		ratingRepo, notifier, logger)
	exportService := services.NewExportService(ratingRepo, standingRepo, uploader, logger)
	logger.Info("services initialized")

	ratingHandler := handlers.NewRatingHandler(ratingService)
	bracketHandler := handlers.NewBracketHandler(bracketService)
	seasonHandler := handlers.NewSeasonHandler(lockService, recalcService, configService,
		exportService, cfg.ExportUploadsEnabled)

	router := chi.NewRouter()
	api.SetupRoutes(router, ratingHandler, bracketHandler, seasonHandler, cfg.JWTSecretKey)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}
