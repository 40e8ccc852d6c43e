package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestExecError_Error(t *testing.T) {
	err := ErrWaitTimeout
	if err.Error() != "wait condition timed out" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	wrapped := ErrDriverUnavailable.WithCause(fmt.Errorf("dial tcp: refused"))
	if wrapped.Error() != "could not reach the browser backend: dial tcp: refused" {
		t.Errorf("unexpected wrapped message: %q", wrapped.Error())
	}
}

func TestExecError_Is(t *testing.T) {
	err := ErrUnknownSession.WithMessagef("session %q was never saved", "logged-in")
	if !errors.Is(err, ErrUnknownSession) {
		t.Error("expected errors.Is to match the sentinel")
	}
	if errors.Is(err, ErrWaitTimeout) {
		t.Error("did not expect a match against a different sentinel")
	}
}

func TestExecError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := ErrDriverUnavailable.WithCause(cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestExecError_WithDetails(t *testing.T) {
	err := ErrElementNotFound.WithDetails(map[string]interface{}{"selector": "#missing"})
	if err.Details["selector"] != "#missing" {
		t.Errorf("expected selector detail, got %v", err.Details)
	}
	// Sentinel must not be mutated.
	if ErrElementNotFound.Details != nil {
		t.Error("sentinel details were mutated")
	}
}

func TestStepStatus_String(t *testing.T) {
	testCases := []struct {
		status StepStatus
		want   string
	}{
		{StatusPending, "pending"},
		{StatusRunning, "running"},
		{StatusPassed, "passed"},
		{StatusFailed, "failed"},
		{StatusErrored, "errored"},
		{StatusSkipped, "skipped"},
		{StepStatus(99), "unknown"},
	}
	for _, tt := range testCases {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("StepStatus(%d): expected %q, got %q", tt.status, tt.want, got)
		}
	}
}

func TestStepStatus_IsTerminal(t *testing.T) {
	if StatusRunning.IsTerminal() {
		t.Error("running must not be terminal")
	}
	if !StatusErrored.IsTerminal() {
		t.Error("errored must be terminal")
	}
}

func TestErrorKind_String(t *testing.T) {
	testCases := []struct {
		kind ErrorKind
		want string
	}{
		{ErrKindParse, "parse"},
		{ErrKindResolution, "resolution"},
		{ErrKindUnresolvedVariable, "unresolved_variable"},
		{ErrKindStepTimeout, "step_timeout"},
		{ErrKindAssertion, "assertion"},
		{ErrKindStackUnderflow, "stack_underflow"},
		{ErrKindUnknownSession, "unknown_session"},
		{ErrKindDriver, "driver"},
	}
	for _, tt := range testCases {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d): expected %q, got %q", tt.kind, tt.want, got)
		}
	}
}

func TestCaseResult_ComputeSummary(t *testing.T) {
	c := CaseResult{
		Steps: []StepResult{
			{Status: StatusPassed},
			{Status: StatusPassed, Flaky: true},
			{Status: StatusFailed},
			{Status: StatusSkipped},
		},
	}
	c.ComputeSummary()

	if c.TotalSteps != 4 {
		t.Errorf("expected 4 total, got %d", c.TotalSteps)
	}
	if c.PassedSteps != 2 {
		t.Errorf("expected 2 passed, got %d", c.PassedSteps)
	}
	if c.FailedSteps != 1 {
		t.Errorf("expected 1 failed, got %d", c.FailedSteps)
	}
	if c.SkippedSteps != 1 {
		t.Errorf("expected 1 skipped, got %d", c.SkippedSteps)
	}
	if c.FlakySteps != 1 {
		t.Errorf("expected 1 flaky, got %d", c.FlakySteps)
	}
}

func TestCaseResult_AggregateStatus(t *testing.T) {
	testCases := []struct {
		name  string
		steps []StepResult
		want  CaseStatus
	}{
		{"all passed", []StepResult{{Status: StatusPassed}, {Status: StatusPassed}}, CasePassed},
		{"assertion failed", []StepResult{{Status: StatusPassed}, {Status: StatusFailed}}, CaseFailed},
		{"step errored", []StepResult{{Status: StatusErrored}, {Status: StatusSkipped}}, CaseErrored},
		{"failed wins over errored", []StepResult{{Status: StatusErrored}, {Status: StatusFailed}}, CaseFailed},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			c := CaseResult{Steps: tt.steps}
			if got := c.AggregateStatus(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSuiteResult_Success(t *testing.T) {
	s := SuiteResult{Cases: []CaseResult{{Status: CasePassed}, {Status: CasePassed}}}
	if !s.Success() {
		t.Error("expected success")
	}

	s.Cases = append(s.Cases, CaseResult{Status: CaseFailed})
	if s.Success() {
		t.Error("expected failure")
	}

	empty := SuiteResult{}
	if empty.Success() {
		t.Error("empty suite must not count as success")
	}
}
