// Package reply turns a user's input into an assistant reply, using the
// remote language model when a credential is configured and the agent's
// offline table otherwise.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/celerix-dev/celerix-assist/internal/agents"
	"github.com/celerix-dev/celerix-assist/pkg/schema"
)

// HistoryWindow is how many trailing turns are sent with each request.
const HistoryWindow = 6

// Source records which path produced a reply.
type Source string

const (
	SourceModel            Source = "model"
	SourceOffline          Source = "offline"
	SourceHTTPError        Source = "offline-after-http-error"
	SourceTransportError   Source = "offline-after-transport-error"
	SourceMalformedPayload Source = "offline-after-malformed-response"
)

// Reply is a generated reply plus the path that produced it.
type Reply struct {
	Text   string
	Source Source
	// Status is set for SourceHTTPError.
	Status int
}

// Config selects the remote model. An empty APIKey keeps the router offline.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// FallbackFunc produces a deterministic offline reply.
type FallbackFunc func(agentID, input string) string

type Router struct {
	client   *Client
	fallback FallbackFunc
	logger   *slog.Logger
}

func NewRouter(cfg Config, logger *slog.Logger) *Router {
	r := &Router{fallback: agents.Fallback, logger: logger}
	if cfg.APIKey != "" {
		r.client = NewClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
	}
	return r
}

// WithFallback replaces the offline reply table.
func (r *Router) WithFallback(fn FallbackFunc) *Router {
	r.fallback = fn
	return r
}

// Online reports whether a credential is configured.
func (r *Router) Online() bool {
	return r.client != nil
}

// Generate always returns a non-empty reply; failures are folded into the
// offline fallback.
func (r *Router) Generate(ctx context.Context, agentID, input string, history []schema.Message) string {
	return r.Route(ctx, agentID, input, history).Text
}

// Route is Generate with the chosen path exposed.
func (r *Router) Route(ctx context.Context, agentID, input string, history []schema.Message) Reply {
	if r.client == nil {
		return Reply{Text: r.fallback(agentID, input), Source: SourceOffline}
	}

	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	contents := toContents(history)
	contents = append(contents, Content{Role: "user", Parts: []Part{{Text: input}}})

	text, err := r.client.GenerateContent(ctx, contents)
	if err == nil {
		return Reply{Text: text, Source: SourceModel}
	}

	var httpErr *HTTPError
	var transportErr *TransportError
	switch {
	case errors.As(err, &httpErr):
		r.logger.Warn("model endpoint returned error status, using offline reply", "agent", agentID, "status", httpErr.Status)
		return Reply{
			Text:   r.fallback(agentID, input) + fmt.Sprintf("\n\n(Note: Gemini API returned %d)", httpErr.Status),
			Source: SourceHTTPError,
			Status: httpErr.Status,
		}
	case errors.As(err, &transportErr):
		r.logger.Warn("model endpoint unreachable, using offline reply", "agent", agentID, "error", err)
		return Reply{Text: r.fallback(agentID, input), Source: SourceTransportError}
	default:
		r.logger.Warn("unusable model response, using offline reply", "agent", agentID, "error", err)
		return Reply{Text: r.fallback(agentID, input), Source: SourceMalformedPayload}
	}
}

// Fallback exposes the offline path directly.
func (r *Router) Fallback(agentID, input string) string {
	return r.fallback(agentID, input)
}
