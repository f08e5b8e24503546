// Package history keeps per-user, per-agent conversation logs.
//
// The whole agent→log mapping of the active user is written back to the slot
// store as a single value after every mutation, so a reader of the slot never
// sees one agent's log updated and another's not.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/celerix-dev/celerix-assist/pkg/kv"
	"github.com/celerix-dev/celerix-assist/pkg/schema"
)

const keyPrefix = "history:"

var (
	// ErrNoActiveUser is returned by every operation while nobody is signed in.
	// The operation is a no-op in that case.
	ErrNoActiveUser = errors.New("no active user")
	// ErrInvalidRole is returned when a message carries an unknown role.
	ErrInvalidRole = errors.New("invalid message role")
	// ErrMissingTimestamp is returned for a message with a zero timestamp.
	ErrMissingTimestamp = errors.New("message timestamp missing")
)

// Key returns the slot a user's history is persisted under.
func Key(userID string) string {
	return keyPrefix + userID
}

// ActiveUser reports the currently signed-in profile.
type ActiveUser interface {
	Active() (schema.Profile, bool)
}

// Store is the conversation store of the active user.
type Store struct {
	kv     kv.Store
	users  ActiveUser
	logger *slog.Logger

	mu     sync.Mutex
	userID string // whose mapping is in logs; "" when none is loaded
	logs   map[string][]schema.Message
}

func New(store kv.Store, users ActiveUser, logger *slog.Logger) *Store {
	return &Store{
		kv:     store,
		users:  users,
		logger: logger,
		logs:   map[string][]schema.Message{},
	}
}

// Follow swaps the in-memory mapping to p's history, or discards it when p
// is nil. It is meant to be registered as an identity change listener.
func (s *Store) Follow(p *schema.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.discardLocked()
		return
	}
	s.loadLocked(p.ID)
}

// Messages returns the log for agentID, oldest first. The result is never
// nil; it is empty when there is no log or no active user.
func (s *Store) Messages(agentID string) ([]schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.syncLocked(); !ok {
		return []schema.Message{}, ErrNoActiveUser
	}
	return cloneLog(s.logs[agentID]), nil
}

// MessagesFor returns userID's log for agentID whether or not userID is the
// active user.
func (s *Store) MessagesFor(userID, agentID string) ([]schema.Message, error) {
	if userID == "" {
		return []schema.Message{}, ErrNoActiveUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if active, ok := s.syncLocked(); ok && active == userID {
		return cloneLog(s.logs[agentID]), nil
	}
	return cloneLog(s.readLocked(userID)[agentID]), nil
}

// Append adds msg to the end of agentID's log and persists the mapping.
func (s *Store) Append(agentID string, msg schema.Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	return s.mutate(appendTo(agentID, msg))
}

// AppendFor adds msg to userID's log for agentID. The write goes to userID's
// slot even when somebody else has signed in since, so both halves of an
// exchange land in the same log.
func (s *Store) AppendFor(userID, agentID string, msg schema.Message) error {
	if userID == "" {
		return ErrNoActiveUser
	}
	if err := validate(msg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if active, ok := s.syncLocked(); ok && active == userID {
		next, err := s.writeLocked(userID, s.logs, appendTo(agentID, msg))
		if err != nil {
			return err
		}
		s.logs = next
		return nil
	}
	_, err := s.writeLocked(userID, s.readLocked(userID), appendTo(agentID, msg))
	return err
}

func appendTo(agentID string, msg schema.Message) func(map[string][]schema.Message) {
	return func(next map[string][]schema.Message) {
		log := make([]schema.Message, 0, len(next[agentID])+1)
		log = append(log, next[agentID]...)
		next[agentID] = append(log, msg)
	}
}

// Replace swaps agentID's entire log for msgs, e.g. when importing history.
func (s *Store) Replace(agentID string, msgs []schema.Message) error {
	for i, m := range msgs {
		if err := validate(m); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return s.mutate(func(next map[string][]schema.Message) {
		next[agentID] = cloneLog(msgs)
	})
}

// ClearAgent removes agentID's log. Other agents are untouched.
func (s *Store) ClearAgent(agentID string) error {
	return s.mutate(func(next map[string][]schema.Message) {
		delete(next, agentID)
	})
}

// Agents lists the agents the active user has a log with.
func (s *Store) Agents() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.syncLocked(); !ok {
		return []string{}, ErrNoActiveUser
	}
	ids := make([]string, 0, len(s.logs))
	for id := range s.logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Snapshot returns a deep copy of the active user's mapping.
func (s *Store) Snapshot() (map[string][]schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.syncLocked(); !ok {
		return map[string][]schema.Message{}, ErrNoActiveUser
	}
	out := make(map[string][]schema.Message, len(s.logs))
	for id, log := range s.logs {
		out[id] = cloneLog(log)
	}
	return out, nil
}

// mutate runs fn against a copy of the latest in-memory mapping, persists the
// result as one value and only then makes it current. A failed write leaves
// the previous state in place.
func (s *Store) mutate(fn func(next map[string][]schema.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.syncLocked()
	if !ok {
		return ErrNoActiveUser
	}
	next, err := s.writeLocked(userID, s.logs, fn)
	if err != nil {
		return err
	}
	s.logs = next
	return nil
}

// writeLocked applies fn to a copy of base and stores the result under
// userID's slot. base itself is never modified.
func (s *Store) writeLocked(userID string, base map[string][]schema.Message, fn func(next map[string][]schema.Message)) (map[string][]schema.Message, error) {
	next := make(map[string][]schema.Message, len(base)+1)
	for id, log := range base {
		next[id] = log
	}
	fn(next)

	raw, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	if err := s.kv.Set(Key(userID), raw); err != nil {
		return nil, fmt.Errorf("persist history: %w", err)
	}
	return next, nil
}

// syncLocked makes sure the loaded mapping belongs to the active user.
func (s *Store) syncLocked() (string, bool) {
	p, ok := s.users.Active()
	if !ok {
		s.discardLocked()
		return "", false
	}
	if p.ID != s.userID {
		s.loadLocked(p.ID)
	}
	return p.ID, true
}

func (s *Store) discardLocked() {
	s.userID = ""
	s.logs = map[string][]schema.Message{}
}

func (s *Store) loadLocked(userID string) {
	s.userID = userID
	s.logs = s.readLocked(userID)
	s.logger.Debug("history loaded", "user", userID, "agents", len(s.logs))
}

// readLocked reads userID's mapping from the slot store. A missing, unreadable
// or malformed slot reads as an empty mapping.
func (s *Store) readLocked(userID string) map[string][]schema.Message {
	raw, err := s.kv.Get(Key(userID))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return map[string][]schema.Message{}
	}
	if err != nil {
		s.logger.Warn("could not read history, starting empty", "user", userID, "error", err)
		return map[string][]schema.Message{}
	}

	logs, err := decode(raw)
	if err != nil {
		// Corrupt history is dropped in favour of a usable session.
		s.logger.Warn("discarding malformed history", "user", userID, "error", err)
		return map[string][]schema.Message{}
	}
	return logs
}

// decode parses a persisted mapping and revives every timestamp. Any
// structural problem fails the whole mapping.
func decode(raw []byte) (map[string][]schema.Message, error) {
	var logs map[string][]schema.Message
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, err
	}
	if logs == nil {
		return map[string][]schema.Message{}, nil
	}
	for agentID, log := range logs {
		for i, m := range log {
			if err := validate(m); err != nil {
				return nil, fmt.Errorf("agent %s message %d: %w", agentID, i, err)
			}
		}
	}
	return logs, nil
}

func validate(m schema.Message) error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}
	if m.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

func cloneLog(log []schema.Message) []schema.Message {
	out := make([]schema.Message, len(log))
	copy(out, log)
	return out
}
