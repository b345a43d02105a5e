package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/app"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/logger"
)

var skipWarmup bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipWarmup, "skip-warmup", false, "do not probe the model backend at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	built, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			logger.Warnf(ctx, "cleanup: %v", err)
		}
	}()

	logger.Infof(ctx, "llm provider: %s (model %s), memory backend: %s", cfg.LLMProvider, cfg.OllamaModel, cfg.MemoryBackend)
	if !skipWarmup {
		if err := built.Warmup(ctx); err != nil {
			logger.Warnf(ctx, "model warmup failed, continuing: %v", err)
		} else {
			logger.Infof(ctx, "model backend ready")
		}
	}

	built.Sessions.StartJanitor(ctx, 5*time.Second)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof(ctx, "server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Infof(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf(shutdownCtx, "graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}
	logger.Infof(shutdownCtx, "shutdown complete")
	return nil
}
