package executor

import (
	"github.com/qscript-dev/qscript-runner/pkg/core"
	"github.com/qscript-dev/qscript-runner/pkg/exprengine"
	"github.com/qscript-dev/qscript-runner/pkg/vars"
)

// ExecutionContext is the per-(case x profile) mutable state. It is never
// shared across device profiles.
type ExecutionContext struct {
	Driver  core.Driver
	Profile core.DeviceProfile

	// Browsing-context stack. The root page is always at the bottom;
	// SwitchToIFrame/SwitchToPopup push, ReturnFromIFrame/ClosePopup pop.
	targets []core.Target

	// Popup observed by WaitForPopup, consumed by SwitchToPopup.
	pendingPopup    core.Target
	hasPendingPopup bool

	// Named session snapshots
	sessions map[string]*core.SessionState

	Vars *vars.Store
	Expr *exprengine.Engine
}

// NewExecutionContext creates a fresh context rooted at the main page.
func NewExecutionContext(driver core.Driver, profile core.DeviceProfile, store *vars.Store) *ExecutionContext {
	return &ExecutionContext{
		Driver:   driver,
		Profile:  profile,
		targets:  []core.Target{core.RootTarget},
		sessions: make(map[string]*core.SessionState),
		Vars:     store,
		Expr:     exprengine.New(),
	}
}

// CurrentTarget returns the browsing context commands operate on.
func (ec *ExecutionContext) CurrentTarget() core.Target {
	return ec.targets[len(ec.targets)-1]
}

// PushTarget enters an iframe or popup context.
func (ec *ExecutionContext) PushTarget(t core.Target) {
	ec.targets = append(ec.targets, t)
}

// PopTarget leaves the current context. Popping the root fails with
// ErrContextStackUnderflow.
func (ec *ExecutionContext) PopTarget() (core.Target, error) {
	if len(ec.targets) <= 1 {
		return core.RootTarget, core.ErrContextStackUnderflow
	}
	top := ec.targets[len(ec.targets)-1]
	ec.targets = ec.targets[:len(ec.targets)-1]
	return top, nil
}

// Depth returns the context stack depth (1 = root only).
func (ec *ExecutionContext) Depth() int {
	return len(ec.targets)
}

// SetPendingPopup records a popup handle for a later SwitchToPopup.
func (ec *ExecutionContext) SetPendingPopup(t core.Target) {
	ec.pendingPopup = t
	ec.hasPendingPopup = true
}

// TakePendingPopup consumes the recorded popup handle, if any.
func (ec *ExecutionContext) TakePendingPopup() (core.Target, bool) {
	if !ec.hasPendingPopup {
		return core.RootTarget, false
	}
	ec.hasPendingPopup = false
	return ec.pendingPopup, true
}

// SaveSession stores a session snapshot under the given name.
func (ec *ExecutionContext) SaveSession(name string, state *core.SessionState) {
	ec.sessions[name] = state
}

// Session returns a previously saved snapshot.
func (ec *ExecutionContext) Session(name string) (*core.SessionState, bool) {
	s, ok := ec.sessions[name]
	return s, ok
}

// syncExprVars exposes the current variable bindings to the expression
// engine before a local ${...} evaluation.
func (ec *ExecutionContext) syncExprVars() {
	for _, name := range ec.Vars.Names() {
		value, _ := ec.Vars.Get(name)
		ec.Expr.SetVariable(name, value)
	}
}
