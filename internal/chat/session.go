// Package chat drives one exchange at a time per agent: store the user's
// message, generate a reply, store it, and voice it in the background.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/celerix-dev/celerix-assist/internal/events"
	"github.com/celerix-dev/celerix-assist/internal/history"
	"github.com/celerix-dev/celerix-assist/internal/reply"
	"github.com/celerix-dev/celerix-assist/internal/speech"
	"github.com/celerix-dev/celerix-assist/pkg/schema"
)

const speechTimeout = 60 * time.Second

var (
	// ErrSignedOut means nobody is signed in; the caller should ask for a login.
	ErrSignedOut = errors.New("sign in to start chatting")
	// ErrBusy means an exchange with the same agent is still in flight.
	ErrBusy = errors.New("a reply is already being generated for this agent")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// Exchange is the result of one Send.
type Exchange struct {
	ID             string
	UserID         string
	AgentID        string
	User           schema.Message
	Assistant      schema.Message
	Source         reply.Source
	ProcessingTime time.Duration
}

type Session struct {
	users   history.ActiveUser
	history *history.Store
	router  *reply.Router
	voice   *speech.Synthesizer
	events  events.Publisher
	logger  *slog.Logger

	slot     speech.Slot
	speaking sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]bool
}

// New builds a session. voice and pub may be nil.
func New(users history.ActiveUser, h *history.Store, router *reply.Router, voice *speech.Synthesizer, pub events.Publisher, logger *slog.Logger) *Session {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Session{
		users:    users,
		history:  h,
		router:   router,
		voice:    voice,
		events:   pub,
		logger:   logger,
		inflight: map[string]bool{},
	}
}

// Send runs one exchange with agentID. The router sees the trailing history
// as it was before text was appended. Both messages are stored in the log of
// the user who was signed in when Send started.
func (s *Session) Send(ctx context.Context, agentID, text string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}
	profile, ok := s.users.Active()
	if !ok {
		return Exchange{}, ErrSignedOut
	}
	if !s.acquire(agentID) {
		return Exchange{}, ErrBusy
	}
	defer s.release(agentID)

	start := time.Now()
	ex := Exchange{ID: uuid.NewString(), UserID: profile.ID, AgentID: agentID}

	prior, err := s.history.MessagesFor(profile.ID, agentID)
	if err != nil {
		return ex, fmt.Errorf("load history: %w", err)
	}

	ex.User = schema.NewMessage(schema.RoleUser, text)
	if err := s.history.AppendFor(profile.ID, agentID, ex.User); err != nil {
		return ex, fmt.Errorf("store message: %w", err)
	}

	r := s.router.Route(ctx, agentID, text, prior)
	ex.Source = r.Source
	ex.Assistant = schema.NewMessage(schema.RoleAssistant, r.Text)
	if err := s.history.AppendFor(profile.ID, agentID, ex.Assistant); err != nil {
		return ex, fmt.Errorf("store reply: %w", err)
	}
	ex.ProcessingTime = time.Since(start)

	s.logger.Info("exchange completed",
		"exchange", ex.ID,
		"agent", agentID,
		"source", ex.Source,
		"duration_ms", ex.ProcessingTime.Milliseconds(),
	)

	s.speak(ctx, r.Text)

	if err := s.events.Publish(events.SubjectExchangeCompleted, events.ExchangeCompleted{
		ExchangeID:     ex.ID,
		UserID:         ex.UserID,
		AgentID:        agentID,
		Source:         string(ex.Source),
		ProcessingTime: ex.ProcessingTime.Seconds(),
		Timestamp:      ex.Assistant.Timestamp,
	}); err != nil {
		s.logger.Warn("failed to publish exchange", "exchange", ex.ID, "error", err)
	}

	return ex, nil
}

// Busy reports whether agentID has an exchange in flight.
func (s *Session) Busy(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[agentID]
}

// Audio returns the most recent voiced reply, or nil.
func (s *Session) Audio() *speech.Audio {
	return s.slot.Current()
}

// Wait blocks until background speech has finished.
func (s *Session) Wait() {
	s.speaking.Wait()
}

// Close waits for pending speech and releases the held clip.
func (s *Session) Close() {
	s.Wait()
	s.slot.Close()
}

// speak voices text without blocking the exchange. Failures are silent.
func (s *Session) speak(ctx context.Context, text string) {
	if s.voice == nil || !s.voice.Enabled() {
		return
	}
	s.speaking.Add(1)
	go func() {
		defer s.speaking.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), speechTimeout)
		defer cancel()
		if a := s.voice.Synthesize(sctx, text); a != nil {
			s.slot.Swap(a)
		}
	}()
}

func (s *Session) acquire(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[agentID] {
		return false
	}
	s.inflight[agentID] = true
	return true
}

func (s *Session) release(agentID string) {
	s.mu.Lock()
	delete(s.inflight, agentID)
	s.mu.Unlock()
}
