// Package report renders run results as the machine-readable JSON array
// emitted on stdout. Diagnostics never mix into this stream.
package report

import (
	"encoding/json"
	"io"

	"github.com/qscript-dev/qscript-runner/pkg/core"
)

// Record is one element of the output array: one test case on one device
// profile.
type Record struct {
	Test       string       `json:"test"`
	Kind       string       `json:"kind"`
	Priority   string       `json:"priority"`
	Tags       []string     `json:"tags,omitempty"`
	Device     string       `json:"device"`
	Status     string       `json:"status"`
	DurationMs int64        `json:"duration_ms"`
	Error      string       `json:"error,omitempty"`
	ErrorKind  string       `json:"error_kind,omitempty"`
	Steps      []StepRecord `json:"steps"`
}

// StepRecord is one executed command within a record.
type StepRecord struct {
	Command       string      `json:"command"`
	Line          int         `json:"line,omitempty"`
	Status        string      `json:"status"`
	DurationMs    int64       `json:"duration_ms"`
	Attempt       int         `json:"attempt,omitempty"`
	MaxAttempts   int         `json:"max_attempts,omitempty"`
	Flaky         bool        `json:"flaky,omitempty"`
	Detail        string      `json:"detail,omitempty"`
	ErrorKind     string      `json:"error_kind,omitempty"`
	Warnings      []string    `json:"warnings,omitempty"`
	SnapshotHTML  string      `json:"snapshot_html,omitempty"`
	SnapshotImage string      `json:"snapshot_image,omitempty"`
	Data          interface{} `json:"data,omitempty"`
}

// FromSuite converts suite results into output records, preserving order.
func FromSuite(suite *core.SuiteResult) []Record {
	records := make([]Record, 0, len(suite.Cases))
	for _, c := range suite.Cases {
		rec := Record{
			Test:       c.Name,
			Kind:       c.Kind,
			Priority:   c.Priority,
			Tags:       c.Tags,
			Device:     c.Device,
			Status:     c.Status.String(),
			DurationMs: c.Duration.Milliseconds(),
			Error:      c.Error,
			Steps:      make([]StepRecord, 0, len(c.Steps)),
		}
		for _, s := range c.Steps {
			step := StepRecord{
				Command:       s.Command,
				Line:          s.Line,
				Status:        s.Status.String(),
				DurationMs:    s.Duration.Milliseconds(),
				Flaky:         s.Flaky,
				Detail:        s.Error,
				ErrorKind:     errorKind(s.Kind),
				Warnings:      s.Warnings,
				SnapshotHTML:  s.SnapshotHTML,
				SnapshotImage: s.SnapshotImage,
				Data:          s.Data,
			}
			// Attempt bookkeeping only matters when a retry was armed.
			if s.MaxAttempts > 1 {
				step.Attempt = s.Attempt
				step.MaxAttempts = s.MaxAttempts
			}
			rec.Steps = append(rec.Steps, step)
			if rec.ErrorKind == "" && step.ErrorKind != "" {
				rec.ErrorKind = step.ErrorKind
			}
		}
		records = append(records, rec)
	}
	return records
}

// errorKind renders a step's error classification, empty when the step had
// no error.
func errorKind(k core.ErrorKind) string {
	if k == core.ErrKindNone {
		return ""
	}
	return k.String()
}

// Write emits the suite as a single indented JSON array.
func Write(w io.Writer, suite *core.SuiteResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(FromSuite(suite))
}
