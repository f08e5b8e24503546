package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/celerix-dev/celerix-assist/internal/api"
	"github.com/celerix-dev/celerix-assist/internal/app"
	"github.com/celerix-dev/celerix-assist/internal/config"
	"github.com/celerix-dev/celerix-assist/internal/server"
	"github.com/celerix-dev/celerix-assist/internal/vault"
	"github.com/celerix-dev/celerix-assist/pkg/sdk"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger := app.NewLogger(cfg.LogLevel, os.Stdout, true)
	slog.SetDefault(logger)

	slog.Info("assistd starting", "http_port", cfg.HTTPPort, "store", cfg.Store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core, err := app.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to start core", "error", err)
		os.Exit(1)
	}

	// Slot line server. A remote-backed daemon does not re-export its slots.
	var kvRouter *server.Router
	if cfg.Store != sdk.BackendRemote {
		kvRouter = server.NewRouter(core.Store, logger)
		if !cfg.DisableTLS {
			cert, err := vault.GenerateSelfSignedCert()
			if err != nil {
				slog.Error("failed to generate TLS certificate", "error", err)
				os.Exit(1)
			}
			kvRouter.SetCertificate(cert)
		}
		go func() {
			slog.Info("slot server listening", "port", cfg.KVPort, "tls", !cfg.DisableTLS)
			if err := kvRouter.Listen(strconv.Itoa(cfg.KVPort)); err != nil {
				slog.Error("slot server failed", "error", err)
			}
		}()
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), api.CORS())
	h := &api.Handler{
		Identity: core.Identity,
		History:  core.History,
		Session:  core.Session,
		Router:   core.Router,
		Voice:    core.Voice,
	}
	h.Register(r)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP API listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	if kvRouter != nil {
		kvRouter.Stop()
	}
	cancel()
	if err := core.Close(); err != nil {
		slog.Warn("store close failed", "error", err)
	}
	slog.Info("assistd stopped")
}
