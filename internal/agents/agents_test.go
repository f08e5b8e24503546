package agents

import (
	"strings"
	"testing"
)

func TestList(t *testing.T) {
	all := List()
	if len(all) != 10 {
		t.Fatalf("expected 10 agents, got %d", len(all))
	}
	seen := map[string]bool{}
	for _, a := range all {
		if a.ID == "" || a.Role == "" || a.Category == "" {
			t.Errorf("incomplete agent %+v", a)
		}
		if seen[a.ID] {
			t.Errorf("duplicate agent id %s", a.ID)
		}
		seen[a.ID] = true
	}
}

func TestGet(t *testing.T) {
	a, ok := Get("study_buddy")
	if !ok {
		t.Fatal("expected study_buddy to exist")
	}
	if a.Role != "Primary School Study Buddy" {
		t.Errorf("unexpected role %q", a.Role)
	}
	if _, ok := Get("nope"); ok {
		t.Error("expected unknown agent to be missing")
	}
}

func TestCategories(t *testing.T) {
	cats := Categories()
	want := []string{"Career", "Civic", "Education", "Finance", "Productivity", "Technology", "Wellness"}
	if strings.Join(cats, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, cats)
	}
}

func TestFallback_Deterministic(t *testing.T) {
	for _, a := range List() {
		first := Fallback(a.ID, "Help me with something")
		if first == "" {
			t.Errorf("%s: empty fallback", a.ID)
		}
		if again := Fallback(a.ID, "Help me with something"); again != first {
			t.Errorf("%s: fallback not deterministic", a.ID)
		}
	}
}

func TestFallback_KeywordMatch(t *testing.T) {
	got := Fallback("study_buddy", "What is a FRACTION?")
	if !strings.Contains(got, "pizza") {
		t.Errorf("expected fraction rule, got %q", got)
	}
	if got := Fallback("money_mentor", "how do I make a budget"); !strings.Contains(got, "50/30/20") {
		t.Errorf("expected budget rule, got %q", got)
	}
}

func TestFallback_UnknownAgent(t *testing.T) {
	if got := Fallback("ghost", "hello"); got != genericReply {
		t.Errorf("expected generic reply, got %q", got)
	}
}
