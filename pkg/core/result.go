package core

import (
	"time"
)

// StepResult captures the complete outcome of executing a single command
type StepResult struct {
	// Identity
	Index   int    `json:"index"`   // 0-based position in the executed sequence
	Command string `json:"command"` // Command rendering: Goto, Click, Assert ...
	Line    int    `json:"line"`    // Source line in the script

	// Status
	Status StepStatus `json:"status"`
	Kind   ErrorKind  `json:"errorKind,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string      `json:"message,omitempty"` // Human-readable explanation
	Data    interface{} `json:"data,omitempty"`    // Command-specific data (expected/actual, navigation info)

	// Error Details
	Error string `json:"error,omitempty"`

	// Unresolved-placeholder diagnostics
	Warnings []string `json:"warnings,omitempty"`

	// Retry Tracking
	Attempt     int      `json:"attempt"`               // Current attempt (1-based)
	MaxAttempts int      `json:"maxAttempts"`           // Configured max retries + 1
	RetryErrors []string `json:"retryErrors,omitempty"` // Errors from previous attempts
	Flaky       bool     `json:"flaky,omitempty"`       // True if passed after retry

	// Failure captures (--snap)
	SnapshotHTML  string `json:"snapshotHtml,omitempty"`
	SnapshotImage string `json:"snapshotImage,omitempty"`
}

// CaseResult captures the outcome of one test case on one device profile
type CaseResult struct {
	// Identity
	Name     string   `json:"test"`
	Kind     string   `json:"kind"` // Test or Scenario
	Priority string   `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
	Device   string   `json:"device"`

	// Status (aggregated from steps)
	Status CaseStatus `json:"status"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Steps []StepResult `json:"steps"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	FlakySteps   int `json:"flakySteps,omitempty"` // Steps that passed after retry

	// Error info (if the case did not pass)
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (c *CaseResult) ComputeSummary() {
	c.TotalSteps = len(c.Steps)
	c.PassedSteps = 0
	c.FailedSteps = 0
	c.SkippedSteps = 0
	c.FlakySteps = 0

	for _, step := range c.Steps {
		switch step.Status {
		case StatusPassed:
			c.PassedSteps++
		case StatusFailed, StatusErrored:
			c.FailedSteps++
		case StatusSkipped:
			c.SkippedSteps++
		}
		if step.Flaky {
			c.FlakySteps++
		}
	}
}

// AggregateStatus determines the case status from step results.
// A failed assertion makes the case failed; any other step error makes it
// errored; otherwise passed.
func (c *CaseResult) AggregateStatus() CaseStatus {
	status := CasePassed
	for _, step := range c.Steps {
		switch step.Status {
		case StatusFailed:
			return CaseFailed
		case StatusErrored:
			status = CaseErrored
		}
	}
	return status
}

// SuiteResult captures the complete outcome of one run across all profiles
type SuiteResult struct {
	// Identity
	Name  string `json:"name"`
	RunID string `json:"runId"` // Unique execution ID

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results, ordered profile-major then declaration order
	Cases []CaseResult `json:"cases"`

	// Summary
	TotalCases   int `json:"totalCases"`
	PassedCases  int `json:"passedCases"`
	FailedCases  int `json:"failedCases"`
	SkippedCases int `json:"skippedCases"`
	FlakyCases   int `json:"flakyCases,omitempty"` // Cases with flaky steps
}

// ComputeSummary calculates case counts from the Cases slice
func (s *SuiteResult) ComputeSummary() {
	s.TotalCases = len(s.Cases)
	s.PassedCases = 0
	s.FailedCases = 0
	s.SkippedCases = 0
	s.FlakyCases = 0

	for _, c := range s.Cases {
		switch c.Status {
		case CasePassed:
			s.PassedCases++
		case CaseFailed, CaseErrored:
			s.FailedCases++
		case CaseSkipped:
			s.SkippedCases++
		}
		if c.FlakySteps > 0 {
			s.FlakyCases++
		}
	}
}

// Success returns true if every case passed
func (s *SuiteResult) Success() bool {
	for _, c := range s.Cases {
		if c.Status != CasePassed {
			return false
		}
	}
	return len(s.Cases) > 0
}
