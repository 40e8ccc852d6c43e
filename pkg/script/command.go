// Package script handles parsing and representation of QScript files.
package script

import (
	"fmt"
	"strings"
)

// CommandType represents the keyword of a command.
type CommandType string

// Command type constants.
const (
	// Navigation & interaction
	CmdGoto     CommandType = "Goto"
	CmdClick    CommandType = "Click"
	CmdFill     CommandType = "Fill"
	CmdFillAuto CommandType = "FillAuto"
	CmdScrollTo CommandType = "ScrollTo"
	CmdWaitFor  CommandType = "WaitFor"
	CmdViewport CommandType = "Viewport"

	// Assertions
	CmdAssert       CommandType = "Assert"
	CmdAssertCookie CommandType = "AssertCookie"

	// Sessions
	CmdSaveSession    CommandType = "SaveSession"
	CmdRestoreSession CommandType = "RestoreSession"
	CmdClearCookies   CommandType = "ClearCookies"

	// Control flow
	CmdRetry            CommandType = "Retry"
	CmdSetVar           CommandType = "SetVar"
	CmdWaitForPopup     CommandType = "WaitForPopup"
	CmdSwitchToPopup    CommandType = "SwitchToPopup"
	CmdClosePopup       CommandType = "ClosePopup"
	CmdSwitchToIFrame   CommandType = "SwitchToIFrame"
	CmdReturnFromIFrame CommandType = "ReturnFromIFrame"

	// Iteration
	CmdForEachURL  CommandType = "ForEachURL"
	CmdForEachData CommandType = "ForEachData"

	// Composition
	CmdUse CommandType = "Use"
)

// Command is the interface for all parsed QScript commands.
type Command interface {
	Type() CommandType
	Line() int
	Describe() string
}

// BaseCommand contains common fields for all commands.
type BaseCommand struct {
	CmdType CommandType
	SrcLine int
}

// Type returns the command type.
func (b *BaseCommand) Type() CommandType { return b.CmdType }

// Line returns the 1-based source line the command was parsed from.
func (b *BaseCommand) Line() int { return b.SrcLine }

// Describe returns a human-readable description.
func (b *BaseCommand) Describe() string { return string(b.CmdType) }

// ============================================
// Navigation & Interaction
// ============================================

// GotoCommand navigates to a URL.
type GotoCommand struct {
	BaseCommand
	URL string
}

// ClickCommand clicks an element.
type ClickCommand struct {
	BaseCommand
	Selector string
}

// FillCommand fills an input with text.
type FillCommand struct {
	BaseCommand
	Selector string
	Text     string
}

// FillAutoCommand fills an input and submits with Enter.
type FillAutoCommand struct {
	BaseCommand
	Selector string
	Text     string
}

// ScrollToCommand scrolls an element into view.
type ScrollToCommand struct {
	BaseCommand
	Selector string
}

// WaitForCommand waits until a selector appears.
// TimeoutMs of 0 means the runner default applies.
type WaitForCommand struct {
	BaseCommand
	Selector  string
	TimeoutMs int
}

// ViewportCommand resizes the viewport.
type ViewportCommand struct {
	BaseCommand
	Width  int
	Height int
}

// ============================================
// Assertions
// ============================================

// AssertCommand evaluates a page-state predicate.
type AssertCommand struct {
	BaseCommand
	Assertion Assertion
}

// AssertCookieCommand asserts a cookie has an exact value.
type AssertCookieCommand struct {
	BaseCommand
	Name  string
	Value string
}

// ============================================
// Sessions
// ============================================

// SaveSessionCommand snapshots cookies and storage under a name.
type SaveSessionCommand struct {
	BaseCommand
	Name string
}

// RestoreSessionCommand restores a previously saved session snapshot.
type RestoreSessionCommand struct {
	BaseCommand
	Name string
}

// ClearCookiesCommand clears all cookies in the browser context.
type ClearCookiesCommand struct {
	BaseCommand
}

// ============================================
// Control flow
// ============================================

// RetryCommand arms a retry scope for the single next command.
type RetryCommand struct {
	BaseCommand
	Times int
}

// ExprKind classifies the right-hand side of a SetVar command.
type ExprKind int

// ExprKind values.
const (
	ExprLiteral  ExprKind = iota // quoted string literal
	ExprVarRef                   // $OTHER variable reference
	ExprLocal                    // ${...} expression, evaluated locally
	ExprPageEval                 // eval "js", evaluated in page context by the driver
)

// Expr is the constrained SetVar right-hand side.
type Expr struct {
	Kind ExprKind
	Text string
}

// SetVarCommand assigns a variable in the run's variable store.
type SetVarCommand struct {
	BaseCommand
	Name  string
	Value Expr
}

// WaitForPopupCommand waits for a new popup/tab to open.
type WaitForPopupCommand struct {
	BaseCommand
	TimeoutMs int
}

// SwitchToPopupCommand makes the most recent popup the active target.
type SwitchToPopupCommand struct {
	BaseCommand
}

// ClosePopupCommand closes the active popup and restores the prior target.
type ClosePopupCommand struct {
	BaseCommand
}

// SwitchToIFrameCommand makes an iframe the active target.
type SwitchToIFrameCommand struct {
	BaseCommand
	Selector string
}

// ReturnFromIFrameCommand restores the target active before SwitchToIFrame.
type ReturnFromIFrameCommand struct {
	BaseCommand
}

// ============================================
// Iteration
// ============================================

// ForEachURLCommand runs its body once per URL with <URL> bound.
type ForEachURLCommand struct {
	BaseCommand
	URLs []string
	Body []Command
}

// DataRow is one ForEachData binding set, with key order preserved.
type DataRow struct {
	Keys   []string
	Values map[string]string
}

// ForEachDataCommand runs its body once per data row with each key bound.
type ForEachDataCommand struct {
	BaseCommand
	Rows []DataRow
	Body []Command
}

// ============================================
// Composition
// ============================================

// UseCommand inlines a named flow at execution time.
type UseCommand struct {
	BaseCommand
	Flow string
}

// ============================================
// Describe() implementations
// ============================================

// Describe returns a human-readable description of the goto command.
func (c *GotoCommand) Describe() string { return fmt.Sprintf("Goto %q", c.URL) }

// Describe returns a human-readable description of the click command.
func (c *ClickCommand) Describe() string { return fmt.Sprintf("Click %q", c.Selector) }

// Describe returns a human-readable description of the fill command.
func (c *FillCommand) Describe() string {
	return fmt.Sprintf("Fill %q with %q", c.Selector, c.Text)
}

// Describe returns a human-readable description of the fill-auto command.
func (c *FillAutoCommand) Describe() string {
	return fmt.Sprintf("FillAuto %q with %q", c.Selector, c.Text)
}

// Describe returns a human-readable description of the scroll command.
func (c *ScrollToCommand) Describe() string { return fmt.Sprintf("ScrollTo %q", c.Selector) }

// Describe returns a human-readable description of the wait command.
func (c *WaitForCommand) Describe() string {
	if c.TimeoutMs > 0 {
		return fmt.Sprintf("WaitFor %q timeout %dms", c.Selector, c.TimeoutMs)
	}
	return fmt.Sprintf("WaitFor %q", c.Selector)
}

// Describe returns a human-readable description of the viewport command.
func (c *ViewportCommand) Describe() string {
	return fmt.Sprintf("Viewport %dx%d", c.Width, c.Height)
}

// Describe returns a human-readable description of the assertion.
func (c *AssertCommand) Describe() string { return "Assert " + c.Assertion.Describe() }

// Describe returns a human-readable description of the cookie assertion.
func (c *AssertCookieCommand) Describe() string {
	return fmt.Sprintf("AssertCookie %q is %q", c.Name, c.Value)
}

// Describe returns a human-readable description of the save-session command.
func (c *SaveSessionCommand) Describe() string { return fmt.Sprintf("SaveSession %q", c.Name) }

// Describe returns a human-readable description of the restore-session command.
func (c *RestoreSessionCommand) Describe() string { return fmt.Sprintf("RestoreSession %q", c.Name) }

// Describe returns a human-readable description of the retry command.
func (c *RetryCommand) Describe() string {
	return fmt.Sprintf("Retry %d times on failure", c.Times)
}

// Describe returns a human-readable description of the set-var command.
func (c *SetVarCommand) Describe() string {
	switch c.Value.Kind {
	case ExprVarRef:
		return fmt.Sprintf("SetVar %q = $%s", c.Name, c.Value.Text)
	case ExprLocal:
		return fmt.Sprintf("SetVar %q = ${%s}", c.Name, c.Value.Text)
	case ExprPageEval:
		return fmt.Sprintf("SetVar %q = eval %q", c.Name, c.Value.Text)
	default:
		return fmt.Sprintf("SetVar %q = %q", c.Name, c.Value.Text)
	}
}

// Describe returns a human-readable description of the popup wait command.
func (c *WaitForPopupCommand) Describe() string {
	if c.TimeoutMs > 0 {
		return fmt.Sprintf("WaitForPopup timeout %dms", c.TimeoutMs)
	}
	return "WaitForPopup"
}

// Describe returns a human-readable description of the iframe switch command.
func (c *SwitchToIFrameCommand) Describe() string {
	return fmt.Sprintf("SwitchToIFrame %q", c.Selector)
}

// Describe returns a human-readable description of the URL iteration command.
func (c *ForEachURLCommand) Describe() string {
	return fmt.Sprintf("ForEachURL (%d urls, %d commands)", len(c.URLs), len(c.Body))
}

// Describe returns a human-readable description of the data iteration command.
func (c *ForEachDataCommand) Describe() string {
	return fmt.Sprintf("ForEachData (%d rows, %d commands)", len(c.Rows), len(c.Body))
}

// Describe returns a human-readable description of the use command.
func (c *UseCommand) Describe() string { return fmt.Sprintf("Use %q", c.Flow) }

// ============================================
// Script structure
// ============================================

// CaseKind distinguishes the three test-case variants.
type CaseKind string

// CaseKind values.
const (
	KindTest     CaseKind = "Test"
	KindFlow     CaseKind = "Flow"
	KindScenario CaseKind = "Scenario"
)

// Priority is the canonical P0..P3 priority of a test case.
type Priority string

// Priority values.
const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// ParsePriority maps both spellings (P0..P3 and CRITICAL..LOW) to the
// canonical form. Unknown spellings return false.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "P0", "CRITICAL":
		return PriorityP0, true
	case "P1", "HIGH":
		return PriorityP1, true
	case "P2", "MEDIUM":
		return PriorityP2, true
	case "P3", "LOW":
		return PriorityP3, true
	}
	return "", false
}

// TestCase is one Test, Flow, or Scenario block.
type TestCase struct {
	Kind     CaseKind
	Name     string
	Priority Priority
	Tags     []string
	Commands []Command
	SrcLine  int
}

// Script is a parsed QScript file: the runnable cases in declaration order
// plus the flow symbol table (local and imported definitions).
type Script struct {
	SourcePath string
	Cases      []*TestCase
	Flows      map[string]*TestCase
}

// Runnable returns the cases that execute on their own (Test and Scenario).
// Flows only run when pulled in via Use.
func (s *Script) Runnable() []*TestCase {
	out := make([]*TestCase, 0, len(s.Cases))
	for _, tc := range s.Cases {
		if tc.Kind != KindFlow {
			out = append(out, tc)
		}
	}
	return out
}
