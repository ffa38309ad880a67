/*
Package main is the entry point for the ChatRelay server.

It loads configuration, initializes logging, opens the durable store and the optional
Redis mirror and S3 storage, wires the chat manager to the WebSocket hub, and shuts
everything down in order on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/mirror"
	"chatrelay/internal/app/storage"
	"chatrelay/internal/app/store"
	"chatrelay/internal/configs"
	"chatrelay/internal/handler"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/pow"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("pow_difficulty", cfg.PowDifficulty).
		Int("history_size", cfg.HistorySize).
		Bool("uploads_enabled", cfg.UploadsEnabled()).
		Bool("mirror_enabled", cfg.RedisURL != "").
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, 15*time.Second)
	defer cancelStartup()

	db, err := store.Open(startupCtx, cfg.DatabaseDSN, cfg.MongoDatabase)
	if err != nil {
		logx.Fatal(err, "Failed to open store")
	}

	hub := chat.NewHub()
	chatDeps := chat.Deps{Transport: hub, Store: db}

	var redisMirror *mirror.Redis
	if cfg.RedisURL != "" {
		redisMirror, err = mirror.NewRedis(startupCtx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			logx.Fatal(err, "Failed to connect to Redis")
		}
		chatDeps.Mirror = redisMirror
	}

	var objects storage.Service
	if cfg.UploadsEnabled() {
		objects, err = storage.NewService(startupCtx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize S3 storage")
		}
		chatDeps.Objects = objects
	}

	manager := chat.NewManager(chatDeps, chat.Options{
		HistorySize:   cfg.HistorySize,
		AdminUsername: cfg.AdminUsername,
		DefaultAvatar: cfg.DefaultAvatar,
		DefaultMOTD:   cfg.DefaultMOTD,
		MOTDDelay:     cfg.MOTDDelay,
	})
	manager.Bootstrap(startupCtx)

	router := handler.Router(ctx, &handler.AppDeps{
		Config:  cfg,
		Manager: manager,
		Hub:     hub,
		Storage: objects,
		PoW:     pow.NewPoWManager(ctx, cfg.PowDifficulty),
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("ChatRelay starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// Hijacked WebSocket connections are not tracked by server.Shutdown.
	hub.CloseAll()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	if err := manager.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Pending writes were dropped during shutdown")
	}

	if redisMirror != nil {
		if err := redisMirror.Close(); err != nil {
			logx.Error(err, "Failed to close Redis mirror")
		}
	}

	if err := db.Close(shutdownCtx); err != nil {
		logx.Error(err, "Failed to close store")
	}

	logx.Info("Server gracefully stopped.")
}
