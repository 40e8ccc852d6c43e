package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/qscript-dev/qscript-runner/pkg/core"
)

func sampleSuite() *core.SuiteResult {
	return &core.SuiteResult{
		RunID: "run-1",
		Cases: []core.CaseResult{
			{
				Name:     "login works",
				Kind:     "Test",
				Priority: "P1",
				Tags:     []string{"smoke"},
				Device:   "desktop",
				Status:   core.CasePassed,
				Duration: 1200 * time.Millisecond,
				Steps: []core.StepResult{
					{Command: `Goto "https://example.com"`, Status: core.StatusPassed, Duration: 300 * time.Millisecond, Attempt: 1, MaxAttempts: 1},
					{Command: "Assert page.status is 200", Status: core.StatusPassed, Duration: 5 * time.Millisecond, Attempt: 1, MaxAttempts: 1},
				},
			},
			{
				Name:   "checkout",
				Kind:   "Test",
				Device: "mobile",
				Status: core.CaseFailed,
				Error:  "element \"#pay\" not found",
				Steps: []core.StepResult{
					{Command: `Click "#pay"`, Status: core.StatusFailed, Kind: core.ErrKindAssertion, Error: "element \"#pay\" not found", Attempt: 3, MaxAttempts: 3},
				},
			},
		},
	}
}

func TestFromSuite(t *testing.T) {
	records := FromSuite(sampleSuite())

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Test != "login works" || first.Device != "desktop" {
		t.Errorf("unexpected identity: %+v", first)
	}
	if first.Status != "passed" {
		t.Errorf("expected passed, got %s", first.Status)
	}
	if first.DurationMs != 1200 {
		t.Errorf("expected 1200ms, got %d", first.DurationMs)
	}
	if len(first.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(first.Steps))
	}
	// Single-attempt steps omit retry bookkeeping.
	if first.Steps[0].Attempt != 0 || first.Steps[0].MaxAttempts != 0 {
		t.Errorf("unexpected attempt fields: %+v", first.Steps[0])
	}

	second := records[1]
	if second.Status != "failed" {
		t.Errorf("expected failed, got %s", second.Status)
	}
	if second.Steps[0].Attempt != 3 || second.Steps[0].MaxAttempts != 3 {
		t.Errorf("expected retry bookkeeping, got %+v", second.Steps[0])
	}
	if second.Steps[0].ErrorKind != "assertion" {
		t.Errorf("expected assertion kind, got %q", second.Steps[0].ErrorKind)
	}
	if second.ErrorKind != "assertion" {
		t.Errorf("expected case-level kind, got %q", second.ErrorKind)
	}
	// Clean steps carry no kind.
	if first.Steps[0].ErrorKind != "" || first.ErrorKind != "" {
		t.Errorf("unexpected kind on passing record: %+v", first)
	}
}

func TestFromSuite_ErroredStepKind(t *testing.T) {
	suite := &core.SuiteResult{
		Cases: []core.CaseResult{
			{
				Name:   "waits",
				Kind:   "Test",
				Device: "desktop",
				Status: core.CaseErrored,
				Steps: []core.StepResult{
					{Command: `WaitFor "#x"`, Status: core.StatusErrored, Kind: core.ErrKindStepTimeout, Error: "selector timeout"},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, suite); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"error_kind": "step_timeout"`) {
		t.Errorf("expected step_timeout in output, got %s", buf.String())
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleSuite()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(out), "[") {
		t.Errorf("expected a JSON array, got %q", out[:20])
	}

	var records []Record
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
	if records[1].Error == "" {
		t.Error("expected error on the failed record")
	}
}
