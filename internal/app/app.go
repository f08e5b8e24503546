// Package app assembles the assistant core from configuration.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/celerix-dev/celerix-assist/internal/chat"
	"github.com/celerix-dev/celerix-assist/internal/config"
	"github.com/celerix-dev/celerix-assist/internal/events"
	"github.com/celerix-dev/celerix-assist/internal/history"
	"github.com/celerix-dev/celerix-assist/internal/identity"
	"github.com/celerix-dev/celerix-assist/internal/reply"
	"github.com/celerix-dev/celerix-assist/internal/speech"
	"github.com/celerix-dev/celerix-assist/pkg/schema"
	"github.com/celerix-dev/celerix-assist/pkg/sdk"
)

type App struct {
	Store    sdk.Store
	Identity *identity.Store
	History  *history.Store
	Router   *reply.Router
	Voice    *speech.Synthesizer
	Session  *chat.Session

	nats   *events.Client
	logger *slog.Logger
}

// NewLogger builds the process logger from a LOG_LEVEL value.
func NewLogger(level string, w io.Writer, json bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// StoreOptions maps the configuration onto slot store options.
func StoreOptions(cfg config.Config) sdk.Options {
	return sdk.Options{
		Backend:     cfg.Store,
		DataDir:     cfg.DataDir,
		BoltPath:    cfg.BoltPath,
		DatabaseURL: cfg.DatabaseURL,
		RemoteAddr:  cfg.StoreAddr,
		DisableTLS:  cfg.DisableTLS,
	}
}

// New opens the slot store, restores the persisted profile and wires the
// chat session. NATS is optional; a failed connection is logged, not fatal.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := sdk.Open(ctx, StoreOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{Store: store, logger: logger}

	a.Identity = identity.New(store, logger)
	a.History = history.New(store, a.Identity, logger)
	a.Identity.OnChange(a.History.Follow)

	a.Router = reply.NewRouter(reply.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	}, logger)
	if !a.Router.Online() {
		logger.Warn("GEMINI_API_KEY not set, replies come from the offline tables")
	}

	a.Voice = speech.New(speech.Config{
		APIKey:  cfg.ElevenLabsAPIKey,
		VoiceID: cfg.ElevenLabsVoiceID,
		Model:   cfg.ElevenLabsModel,
		BaseURL: cfg.ElevenLabsBaseURL,
	}, logger)

	var pub events.Publisher = events.Nop{}
	if cfg.NatsURL != "" {
		nc, err := events.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			logger.Warn("NATS unavailable, exchange events disabled", "error", err)
		} else {
			a.nats = nc
			pub = nc
			logger.Info("NATS connected", "url", cfg.NatsURL)
		}
	}
	a.Identity.OnChange(func(p *schema.Profile) {
		evt := events.ProfileChanged{Timestamp: time.Now().UTC()}
		if p != nil {
			evt.UserID = p.ID
		}
		if err := pub.Publish(events.SubjectProfileChanged, evt); err != nil {
			logger.Warn("failed to publish profile change", "error", err)
		}
	})

	a.Session = chat.New(a.Identity, a.History, a.Router, a.Voice, pub, logger)

	a.Identity.Restore()
	if p, ok := a.Identity.Active(); ok {
		logger.Info("profile restored", "user", p.ID)
	}

	if a.nats != nil {
		if err := a.nats.Subscribe(events.SubjectProfileChanged, a.onPeerProfileChange); err != nil {
			logger.Warn("profile changes from other processes will be missed", "error", err)
		}
	}
	return a, nil
}

// onPeerProfileChange re-reads the shared profile slot when another process
// reports a different active user. Events naming the current user, including
// this process's own, are ignored.
func (a *App) onPeerProfileChange(_ string, data []byte) {
	var evt events.ProfileChanged
	if err := json.Unmarshal(data, &evt); err != nil {
		a.logger.Warn("ignoring malformed profile event", "error", err)
		return
	}
	current := ""
	if p, ok := a.Identity.Active(); ok {
		current = p.ID
	}
	if evt.UserID == current {
		return
	}
	a.logger.Info("profile changed in another process, reloading", "user", evt.UserID)
	a.Identity.Restore()
}

// Close waits for pending speech and releases the store and NATS.
func (a *App) Close() error {
	a.Session.Close()
	if a.nats != nil {
		a.nats.Close()
	}
	return a.Store.Close()
}
