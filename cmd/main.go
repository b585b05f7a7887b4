/*
Package main is the entry point for the relaychat server.

It loads configuration, initializes the global logger, opens the message store,
starts the relay and its HTTP surface, and shuts everything down in order when
the process receives SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaychat/internal/app/chat"
	"relaychat/internal/app/presence"
	"relaychat/internal/app/store"
	"relaychat/internal/configs"
	"relaychat/internal/handler"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/metrics"
)

func main() {
	if err := configs.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to read .env: %v\n", err)
		os.Exit(1)
	}

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
		Str("store", cfg.StoreDriver).
		Str("duplicate_policy", string(cfg.DuplicatePolicy)).
		Dur("register_timeout", cfg.RegisterTimeout).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageStore, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logx.Fatal(err, "Failed to open message store", "driver", cfg.StoreDriver)
	}

	m := metrics.New()
	relay := chat.NewRelay(presence.NewRegistry(), messageStore, chat.Options{
		DuplicatePolicy: cfg.DuplicatePolicy,
		RegisterTimeout: cfg.RegisterTimeout,
		StoreTimeout:    cfg.StoreTimeout,
		Metrics:         m,
	})

	// Sessions outlive the upgrade request, so they are bound to the process context.
	router := handler.Router(ctx, &handler.AppDeps{
		Relay:   relay,
		Store:   messageStore,
		Config:  cfg,
		Metrics: m,
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
		logx.Info("relaychat server starting", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	relay.Shutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	if err := messageStore.Close(); err != nil {
		logx.Error(err, "Failed to close message store")
	}

	logx.Info("Server gracefully stopped.")
}
