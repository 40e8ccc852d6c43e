package vars

import (
	"strings"
	"testing"
)

func TestStore_LayerPrecedence(t *testing.T) {
	s := NewStore()
	s.env["USER"] = "from-env"
	s.SeedCLI(map[string]string{"USER": "from-cli"})

	if v, _ := s.Get("USER"); v != "from-cli" {
		t.Errorf("expected CLI to shadow env, got %q", v)
	}

	s.Set("USER", "from-script")
	if v, _ := s.Get("USER"); v != "from-script" {
		t.Errorf("expected script to shadow CLI, got %q", v)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get("NOPE"); ok {
		t.Error("expected miss for unbound name")
	}
}

func TestStore_Expand(t *testing.T) {
	s := NewStore()
	s.Set("USER", "alice")
	s.Set("HOST", "example.com")

	got, warnings := s.Expand("https://$HOST/profile/$USER")
	if got != "https://example.com/profile/alice" {
		t.Errorf("unexpected expansion: %q", got)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestStore_ExpandLongestFirst(t *testing.T) {
	s := NewStore()
	s.Set("USER", "alice")
	s.Set("USER_ID", "42")

	got, _ := s.Expand("id=$USER_ID user=$USER")
	if got != "id=42 user=alice" {
		t.Errorf("expected longest-name substitution first, got %q", got)
	}
}

func TestStore_ExpandWordBoundary(t *testing.T) {
	s := NewStore()
	s.Set("USER", "alice")

	// $USERNAME is a different, unbound variable.
	got, warnings := s.Expand("$USERNAME")
	if got != "$USERNAME" {
		t.Errorf("expected no substitution, got %q", got)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "USERNAME") {
		t.Errorf("expected unresolved warning for USERNAME, got %v", warnings)
	}
}

func TestStore_ExpandUnresolvedWarning(t *testing.T) {
	s := NewStore()
	got, warnings := s.Expand("hello $MISSING")
	if got != "hello $MISSING" {
		t.Errorf("unbound placeholder must stay verbatim, got %q", got)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if warnings[0] != "unresolved variable $MISSING" {
		t.Errorf("unexpected warning: %q", warnings[0])
	}
}

func TestStore_ExpandAngleForm(t *testing.T) {
	s := NewStore()
	s.Set("BASE_URL", "https://example.com")

	got, warnings := s.Expand("<BASE_URL>/pricing")
	if got != "https://example.com/pricing" {
		t.Errorf("unexpected expansion: %q", got)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	got, warnings = s.Expand("<MISSING_VAR> and <div>")
	if got != "<MISSING_VAR> and <div>" {
		t.Errorf("unexpected expansion: %q", got)
	}
	// Markup-like tokens are not placeholders; only <MISSING_VAR> warns.
	if len(warnings) != 1 || warnings[0] != "unresolved variable <MISSING_VAR>" {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestStore_ExpandNoDollar(t *testing.T) {
	s := NewStore()
	s.Set("USER", "alice")
	got, warnings := s.Expand("plain text")
	if got != "plain text" || warnings != nil {
		t.Errorf("unexpected result: %q %v", got, warnings)
	}
}

func TestStore_Child(t *testing.T) {
	parent := NewStore()
	parent.Set("HOST", "example.com")

	child := parent.Child(map[string]string{"USER": "bob"})

	if v, _ := child.Get("USER"); v != "bob" {
		t.Errorf("expected child binding, got %q", v)
	}
	if v, _ := child.Get("HOST"); v != "example.com" {
		t.Errorf("expected fallthrough to parent, got %q", v)
	}
	if _, ok := parent.Get("USER"); ok {
		t.Error("child binding must not leak into parent")
	}

	// Child shadows parent.
	child2 := parent.Child(map[string]string{"HOST": "staging.example.com"})
	if v, _ := child2.Get("HOST"); v != "staging.example.com" {
		t.Errorf("expected shadowing binding, got %q", v)
	}
}

func TestStore_ChildSetDoesNotLeak(t *testing.T) {
	parent := NewStore()
	child := parent.Child(nil)
	child.Set("TOKEN", "abc")
	if _, ok := parent.Get("TOKEN"); ok {
		t.Error("Set on child leaked into parent")
	}
}

func TestStore_SeedEnv(t *testing.T) {
	t.Setenv("QSCRIPT_TEST_SEED", "yes")
	t.Setenv("lowercase_ignored", "no")

	s := NewStore()
	s.SeedEnv()

	if v, ok := s.Get("QSCRIPT_TEST_SEED"); !ok || v != "yes" {
		t.Errorf("expected env seed, got %q ok=%v", v, ok)
	}
	if _, ok := s.Get("lowercase_ignored"); ok {
		t.Error("lowercase env vars must not be imported")
	}
}
