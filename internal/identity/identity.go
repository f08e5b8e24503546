// Package identity owns the single active profile of the process.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/celerix-assist/pkg/kv"
	"github.com/celerix-dev/celerix-assist/pkg/schema"
)

// ProfileKey is the fixed slot the active profile is persisted under.
const ProfileKey = "profile"

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidationError reports bad login input. Nothing is mutated when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Store holds the active profile and mirrors it into the profile slot.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	active    *schema.Profile
	listeners []func(*schema.Profile)
}

func New(store kv.Store, logger *slog.Logger) *Store {
	return &Store{
		kv:     store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// OnChange registers fn to be called after every login, logout and restore.
// fn receives nil when the process becomes signed out.
func (s *Store) OnChange(fn func(*schema.Profile)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Restore loads the persisted profile, if any. A missing or malformed slot
// leaves the process signed out; it is never reported as an error.
func (s *Store) Restore() {
	var restored *schema.Profile

	raw, err := s.kv.Get(ProfileKey)
	switch {
	case errors.Is(err, kv.ErrKeyNotFound):
	case err != nil:
		s.logger.Warn("could not read persisted profile", "error", err)
	default:
		var p schema.Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.Warn("ignoring malformed persisted profile", "error", err)
		} else if p.ID == "" || p.Email == "" {
			s.logger.Warn("ignoring incomplete persisted profile")
		} else {
			restored = &p
		}
	}

	s.setActive(restored)
}

// Login validates the input, persists a fresh profile and makes it active.
func (s *Store) Login(name, email string) (schema.Profile, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" || email == "" {
		return schema.Profile{}, &ValidationError{Field: "name", Message: "Please enter your name and email."}
	}
	if !emailPattern.MatchString(email) {
		return schema.Profile{}, &ValidationError{Field: "email", Message: "Please enter a valid email address."}
	}

	p := schema.Profile{
		ID:        strings.ToLower(email),
		Name:      name,
		Email:     email,
		CreatedAt: s.now(),
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return schema.Profile{}, fmt.Errorf("encode profile: %w", err)
	}
	if err := s.kv.Set(ProfileKey, raw); err != nil {
		return schema.Profile{}, fmt.Errorf("persist profile: %w", err)
	}

	s.setActive(&p)
	s.logger.Info("signed in", "user", p.ID)
	return p, nil
}

// Logout clears the profile slot and the active profile.
// Conversation history is left untouched.
func (s *Store) Logout() error {
	if err := s.kv.Remove(ProfileKey); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	s.setActive(nil)
	s.logger.Info("signed out")
	return nil
}

// Active returns the active profile, if any.
func (s *Store) Active() (schema.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return schema.Profile{}, false
	}
	return *s.active, true
}

func (s *Store) setActive(p *schema.Profile) {
	s.mu.Lock()
	s.active = p
	listeners := append([]func(*schema.Profile){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		if p == nil {
			fn(nil)
			continue
		}
		cp := *p
		fn(&cp)
	}
}
