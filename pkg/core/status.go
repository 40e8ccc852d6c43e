package core

// StepStatus represents the execution status of a single command
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion failed (expected page state not observed)
	StatusErrored                   // Unexpected error (driver, timeout, environment)
	StatusSkipped                   // Not executed because the case already aborted
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// CaseStatus represents the outcome of one test case on one device profile
type CaseStatus int

const (
	CasePending CaseStatus = iota
	CaseRunning
	CasePassed
	CaseFailed  // An assertion failed
	CaseErrored // A non-assertion step error aborted the case
	CaseSkipped // Never ran (cancellation or filtered out)
)

// String returns the string representation of CaseStatus
func (s CaseStatus) String() string {
	switch s {
	case CasePending:
		return "pending"
	case CaseRunning:
		return "running"
	case CasePassed:
		return "passed"
	case CaseFailed:
		return "failed"
	case CaseErrored:
		return "errored"
	case CaseSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// ErrorKind classifies execution errors for reporting and exit codes
type ErrorKind int

const (
	ErrKindNone               ErrorKind = iota
	ErrKindParse                        // Malformed script source
	ErrKindResolution                   // Use of an unknown flow name
	ErrKindUnresolvedVariable           // Placeholder with no binding where one is required
	ErrKindStepTimeout                  // WaitFor or navigation deadline exceeded
	ErrKindAssertion                    // Assertion evaluated false
	ErrKindStackUnderflow               // ClosePopup/ReturnFromIFrame on the root target
	ErrKindUnknownSession               // RestoreSession of a name never saved
	ErrKindDriver                       // Browser backend failure
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case ErrKindNone:
		return "none"
	case ErrKindParse:
		return "parse"
	case ErrKindResolution:
		return "resolution"
	case ErrKindUnresolvedVariable:
		return "unresolved_variable"
	case ErrKindStepTimeout:
		return "step_timeout"
	case ErrKindAssertion:
		return "assertion"
	case ErrKindStackUnderflow:
		return "stack_underflow"
	case ErrKindUnknownSession:
		return "unknown_session"
	case ErrKindDriver:
		return "driver"
	default:
		return "unknown"
	}
}
