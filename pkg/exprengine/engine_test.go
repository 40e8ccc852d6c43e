package exprengine

import (
	"strings"
	"testing"
)

func TestEngine_EvalString(t *testing.T) {
	e := New()

	got, err := e.EvalString("1 + 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "3" {
		t.Errorf("expected 3, got %q", got)
	}
}

func TestEngine_Variables(t *testing.T) {
	e := New()
	e.SetVariable("USER", "alice")
	e.SetVariable("N", "4")

	got, err := e.EvalString(`USER.toUpperCase() + "-" + N`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ALICE-4" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestEngine_DefineUndefinedIfMissing(t *testing.T) {
	e := New()
	e.DefineUndefinedIfMissing("MAYBE")

	got, err := e.EvalString(`MAYBE ? "set" : "unset"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "unset" {
		t.Errorf("expected unset, got %q", got)
	}

	e.SetVariable("MAYBE", "yes")
	e.DefineUndefinedIfMissing("MAYBE")
	got, err = e.EvalString("MAYBE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "yes" {
		t.Errorf("binding was clobbered: %q", got)
	}
}

func TestEngine_EvalError(t *testing.T) {
	e := New()
	_, err := e.EvalString("this is not javascript {{{")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "expression error") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEngine_JSONHelper(t *testing.T) {
	e := New()
	got, err := e.EvalString(`json('{"a": 7}').a`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "7" {
		t.Errorf("expected 7, got %q", got)
	}
}
