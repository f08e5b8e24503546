package identity

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/celerix-dev/celerix-assist/internal/engine"
	"github.com/celerix-dev/celerix-assist/pkg/kv"
	"github.com/celerix-dev/celerix-assist/pkg/schema"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLogin_NormalizesID(t *testing.T) {
	s := New(engine.NewMemStore(nil, nil), discardLogger())

	p1, err := s.Login("Alice", "Alice@Example.com")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	p2, err := s.Login("Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if p1.ID != "alice@example.com" || p2.ID != "alice@example.com" {
		t.Errorf("expected both ids alice@example.com, got %q and %q", p1.ID, p2.ID)
	}
	if p1.Email != "Alice@Example.com" {
		t.Errorf("expected email kept as typed, got %q", p1.Email)
	}
}

func TestLogin_TrimsInput(t *testing.T) {
	s := New(engine.NewMemStore(nil, nil), discardLogger())

	p, err := s.Login("  Bob  ", "  Bob@Site.org ")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if p.Name != "Bob" || p.Email != "Bob@Site.org" || p.ID != "bob@site.org" {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.CreatedAt.IsZero() {
		t.Error("expected createdAt to be set")
	}
}

func TestLogin_RejectsBadInput(t *testing.T) {
	s := New(engine.NewMemStore(nil, nil), discardLogger())
	if _, err := s.Login("Alice", "alice@example.com"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	cases := []struct{ name, email string }{
		{"", "x@y.com"},
		{"   ", "x@y.com"},
		{"Bob", ""},
		{"Bob", "not-an-email"},
		{"Bob", "bob@nodot"},
		{"Bob", "bo b@site.org"},
	}
	for _, c := range cases {
		_, err := s.Login(c.name, c.email)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Login(%q, %q): expected ValidationError, got %v", c.name, c.email, err)
		}
	}

	active, ok := s.Active()
	if !ok || active.ID != "alice@example.com" {
		t.Errorf("expected previous profile to stay active, got %+v (ok=%v)", active, ok)
	}
}

func TestRestore(t *testing.T) {
	store := engine.NewMemStore(nil, nil)
	s := New(store, discardLogger())
	if _, err := s.Login("Alice", "alice@example.com"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Simulate a fresh process
	fresh := New(store, discardLogger())
	if _, ok := fresh.Active(); ok {
		t.Fatal("expected no active profile before Restore")
	}
	fresh.Restore()

	p, ok := fresh.Active()
	if !ok {
		t.Fatal("expected restored profile")
	}
	if p.ID != "alice@example.com" || p.Name != "Alice" {
		t.Errorf("unexpected restored profile: %+v", p)
	}
}

func TestRestore_MalformedIsSignedOut(t *testing.T) {
	for _, raw := range []string{`{oops`, `{"id":"","email":"a@b.co"}`, `{"id":"a@b.co"}`, `[]`} {
		store := engine.NewMemStore(nil, nil)
		store.Set(ProfileKey, []byte(raw))

		s := New(store, discardLogger())
		s.Restore()
		if _, ok := s.Active(); ok {
			t.Errorf("expected no active profile for %s", raw)
		}
	}
}

func TestLogout(t *testing.T) {
	store := engine.NewMemStore(nil, nil)
	store.Set("history:alice@example.com", []byte(`{}`))

	s := New(store, discardLogger())
	s.Login("Alice", "alice@example.com")

	if err := s.Logout(); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, ok := s.Active(); ok {
		t.Error("expected no active profile after logout")
	}
	if _, err := store.Get(ProfileKey); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("expected profile slot cleared, got %v", err)
	}
	if _, err := store.Get("history:alice@example.com"); err != nil {
		t.Errorf("logout must not delete history: %v", err)
	}
}

func TestOnChange(t *testing.T) {
	s := New(engine.NewMemStore(nil, nil), discardLogger())

	var seen []string
	s.OnChange(func(p *schema.Profile) {
		if p == nil {
			seen = append(seen, "<none>")
			return
		}
		seen = append(seen, p.ID)
	})

	s.Login("Alice", "alice@example.com")
	s.Login("Bob", "bob@example.com")
	s.Logout()

	want := []string{"alice@example.com", "bob@example.com", "<none>"}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("change %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}
