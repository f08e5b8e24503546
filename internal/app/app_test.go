package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/celerix-dev/celerix-assist/internal/config"
	"github.com/celerix-dev/celerix-assist/internal/events"
	"github.com/celerix-dev/celerix-assist/internal/history"
	"github.com/celerix-dev/celerix-assist/internal/identity"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		Store:   "file",
		DataDir: t.TempDir(),
	}
}

func TestNew_RestoresAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)
	logger := NewLogger("error", &bytes.Buffer{}, false)

	a, err := New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := a.Identity.Active(); ok {
		t.Fatal("expected no active profile on first start")
	}
	if _, err := a.History.Messages("study_buddy"); !errors.Is(err, history.ErrNoActiveUser) {
		t.Errorf("expected ErrNoActiveUser, got %v", err)
	}

	if _, err := a.Identity.Login("Alice", "alice@example.com"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := a.Session.Send(context.Background(), "study_buddy", "What is a fraction?"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	a.Close()

	b, err := New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer b.Close()

	p, ok := b.Identity.Active()
	if !ok || p.ID != "alice@example.com" {
		t.Fatalf("expected profile restored, got %+v %v", p, ok)
	}
	msgs, err := b.History.Messages("study_buddy")
	if err != nil || len(msgs) != 2 {
		t.Errorf("expected 2 messages restored, got %d, %v", len(msgs), err)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := config.Config{Store: "tape"}
	if _, err := New(context.Background(), cfg, NewLogger("error", &bytes.Buffer{}, false)); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", &buf, true)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON warn line, got %q", out)
	}
}

func TestPeerProfileChange_ReloadsSharedSlot(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), NewLogger("error", &bytes.Buffer{}, false))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	if _, err := a.Identity.Login("Alice", "alice@example.com"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// another process signs Bob in on the shared slot space
	bob := []byte(`{"id":"bob@example.com","name":"Bob","email":"bob@example.com","createdAt":"2025-01-01T00:00:00Z"}`)
	if err := a.Store.Set(identity.ProfileKey, bob); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	same, _ := json.Marshal(events.ProfileChanged{UserID: "alice@example.com", Timestamp: time.Now()})
	a.onPeerProfileChange(events.SubjectProfileChanged, same)
	if p, _ := a.Identity.Active(); p.ID != "alice@example.com" {
		t.Fatalf("event for the current user should be ignored, active is %q", p.ID)
	}

	a.onPeerProfileChange(events.SubjectProfileChanged, []byte("not json"))
	if p, _ := a.Identity.Active(); p.ID != "alice@example.com" {
		t.Fatalf("malformed event should be ignored, active is %q", p.ID)
	}

	changed, _ := json.Marshal(events.ProfileChanged{UserID: "bob@example.com", Timestamp: time.Now()})
	a.onPeerProfileChange(events.SubjectProfileChanged, changed)
	p, ok := a.Identity.Active()
	if !ok || p.ID != "bob@example.com" {
		t.Fatalf("expected bob active after peer change, got %+v %v", p, ok)
	}
	if msgs, err := a.History.Messages("study_buddy"); err != nil || len(msgs) != 0 {
		t.Errorf("expected bob's empty history, got %d, %v", len(msgs), err)
	}
}
