package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qscript-dev/qscript-runner/pkg/core"
	"github.com/qscript-dev/qscript-runner/pkg/logger"
	"github.com/qscript-dev/qscript-runner/pkg/script"
	"github.com/qscript-dev/qscript-runner/pkg/vars"
)

// DefaultWaitTimeout bounds WaitFor and WaitForPopup when the script gives
// no explicit deadline.
const DefaultWaitTimeout = 30 * time.Second

// CaseRunner executes a single test case in one execution context.
type CaseRunner struct {
	ec      *ExecutionContext
	script  *script.Script
	opts    *Options
	timeout time.Duration

	steps []core.StepResult

	// Extra attempts granted by a preceding Retry, consumed by the next
	// command.
	pendingRetry int

	caseName string
}

func newCaseRunner(ec *ExecutionContext, s *script.Script, opts *Options) *CaseRunner {
	timeout := opts.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &CaseRunner{ec: ec, script: s, opts: opts, timeout: timeout}
}

// Run executes the case and returns its result.
func (cr *CaseRunner) Run(ctx context.Context, tc *script.TestCase) core.CaseResult {
	start := time.Now()
	cr.caseName = tc.Name

	logger.WithField("device", cr.ec.Profile.Name).Debugf("case %q starting", tc.Name)

	cr.runCommands(ctx, tc.Commands, true)

	result := core.CaseResult{
		Name:      tc.Name,
		Kind:      string(tc.Kind),
		Priority:  string(tc.Priority),
		Tags:      tc.Tags,
		Device:    cr.ec.Profile.Name,
		StartTime: start,
		Duration:  time.Since(start),
		Steps:     cr.steps,
	}
	result.Status = result.AggregateStatus()
	result.ComputeSummary()

	for i := range result.Steps {
		if result.Steps[i].Status == core.StatusFailed || result.Steps[i].Status == core.StatusErrored {
			result.Error = result.Steps[i].Error
			result.Message = result.Steps[i].Message
			break
		}
	}

	logger.WithField("device", cr.ec.Profile.Name).Debugf("case %q finished: %s", tc.Name, result.Status)
	return result
}

// runCommands executes a command sequence. Returns true if the case
// aborted. At the top level, commands after the abort point are recorded
// as skipped.
func (cr *CaseRunner) runCommands(ctx context.Context, cmds []script.Command, topLevel bool) bool {
	for i, cmd := range cmds {
		if ctx.Err() != nil {
			if topLevel {
				cr.markSkipped(cmds[i:])
			}
			return true
		}

		if retry, ok := cmd.(*script.RetryCommand); ok {
			cr.pendingRetry = retry.Times
			cr.appendStep(core.StepResult{
				Command:     cmd.Describe(),
				Line:        cmd.Line(),
				Status:      core.StatusPassed,
				StartTime:   time.Now(),
				Attempt:     1,
				MaxAttempts: 1,
			})
			continue
		}

		aborted := cr.executeWithRetry(ctx, cmd)
		if aborted {
			if topLevel && i+1 < len(cmds) {
				cr.markSkipped(cmds[i+1:])
			}
			return true
		}
	}
	return false
}

// executeWithRetry runs one command, re-attempting on non-assertion step
// errors when a Retry scope was armed. Returns true if the case aborts.
func (cr *CaseRunner) executeWithRetry(ctx context.Context, cmd script.Command) bool {
	maxAttempts := 1 + cr.pendingRetry
	cr.pendingRetry = 0

	var retryErrors []string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		step := cr.executeCommand(ctx, cmd)
		step.Attempt = attempt
		step.MaxAttempts = maxAttempts
		step.RetryErrors = retryErrors

		switch step.Status {
		case core.StatusPassed:
			if attempt > 1 {
				step.Flaky = true
			}
			cr.appendStep(step)
			return cr.runNested(ctx, cmd)

		case core.StatusFailed:
			// Assertion failures are never retried.
			cr.appendStep(step)
			return true

		default:
			if attempt < maxAttempts {
				retryErrors = append(retryErrors, step.Error)
				logger.WithField("device", cr.ec.Profile.Name).
					Debugf("attempt %d/%d of %q failed: %s", attempt, maxAttempts, step.Command, step.Error)
				continue
			}
			cr.appendStep(step)
			return true
		}
	}
	return false
}

// runNested expands iteration and composition commands after their own
// step passed.
func (cr *CaseRunner) runNested(ctx context.Context, cmd script.Command) bool {
	switch c := cmd.(type) {
	case *script.ForEachURLCommand:
		return cr.runForEachURL(ctx, c)
	case *script.ForEachDataCommand:
		return cr.runForEachData(ctx, c)
	case *script.UseCommand:
		flow, ok := cr.script.Flows[c.Flow]
		if !ok {
			// dispatch already rejected unknown flows.
			return true
		}
		return cr.runCommands(ctx, flow.Commands, false)
	}
	return false
}

func (cr *CaseRunner) runForEachURL(ctx context.Context, c *script.ForEachURLCommand) bool {
	for _, rawURL := range c.URLs {
		url, warnings := cr.ec.Vars.Expand(rawURL)
		cr.warnUnresolved(warnings)

		nav := cr.executeNavigation(ctx, url, c.Line())
		if nav {
			return true
		}

		parent := cr.ec.Vars
		cr.ec.Vars = parent.Child(map[string]string{"URL": url})
		aborted := cr.runCommands(ctx, c.Body, false)
		cr.ec.Vars = parent
		if aborted {
			return true
		}
	}
	return false
}

func (cr *CaseRunner) runForEachData(ctx context.Context, c *script.ForEachDataCommand) bool {
	for _, row := range c.Rows {
		parent := cr.ec.Vars
		cr.ec.Vars = parent.Child(row.Values)
		aborted := cr.runCommands(ctx, c.Body, false)
		cr.ec.Vars = parent
		if aborted {
			return true
		}
	}
	return false
}

// executeNavigation performs the implicit Goto of a ForEachURL iteration.
func (cr *CaseRunner) executeNavigation(ctx context.Context, url string, line int) bool {
	step := core.StepResult{
		Command:     fmt.Sprintf("Goto %q", url),
		Line:        line,
		StartTime:   time.Now(),
		Attempt:     1,
		MaxAttempts: 1,
	}
	nav, err := cr.ec.Driver.Navigate(ctx, cr.ec.CurrentTarget(), url)
	step.Duration = time.Since(step.StartTime)
	if err != nil {
		cr.fillError(&step, err)
		cr.appendStep(step)
		return true
	}
	step.Status = core.StatusPassed
	step.Data = nav
	cr.appendStep(step)
	return false
}

// executeCommand runs a single command once and produces its step result.
// Iteration/composition bodies are not executed here; see runNested.
func (cr *CaseRunner) executeCommand(ctx context.Context, cmd script.Command) core.StepResult {
	step := core.StepResult{
		Command:   cmd.Describe(),
		Line:      cmd.Line(),
		StartTime: time.Now(),
	}

	err := cr.dispatch(ctx, cmd, &step)
	step.Duration = time.Since(step.StartTime)

	if err != nil {
		cr.fillError(&step, err)
		return step
	}
	if step.Status == core.StatusPending {
		step.Status = core.StatusPassed
	}
	return step
}

// dispatch performs the driver work for one command. Assertion outcomes are
// written onto the step directly; everything else reports via error.
func (cr *CaseRunner) dispatch(ctx context.Context, cmd script.Command, step *core.StepResult) error {
	d := cr.ec.Driver
	target := cr.ec.CurrentTarget()

	switch c := cmd.(type) {
	case *script.GotoCommand:
		url := cr.expand(c.URL, step)
		nav, err := d.Navigate(ctx, target, url)
		if err != nil {
			return err
		}
		step.Data = nav
		return nil

	case *script.ClickCommand:
		return d.Click(ctx, target, cr.expand(c.Selector, step))

	case *script.FillCommand:
		return d.Fill(ctx, target, cr.expand(c.Selector, step), cr.expand(c.Text, step))

	case *script.FillAutoCommand:
		selector := cr.expand(c.Selector, step)
		if err := d.Fill(ctx, target, selector, cr.expand(c.Text, step)); err != nil {
			return err
		}
		return d.Press(ctx, target, selector, "Enter")

	case *script.ScrollToCommand:
		return d.ScrollTo(ctx, target, cr.expand(c.Selector, step))

	case *script.WaitForCommand:
		timeout := cr.timeout
		if c.TimeoutMs > 0 {
			timeout = time.Duration(c.TimeoutMs) * time.Millisecond
		}
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := d.WaitForSelector(waitCtx, target, cr.expand(c.Selector, step))
		if errors.Is(err, context.DeadlineExceeded) {
			return core.ErrWaitTimeout.WithMessagef("selector %q did not appear within %s", c.Selector, timeout)
		}
		return err

	case *script.ViewportCommand:
		return d.SetViewport(ctx, c.Width, c.Height)

	case *script.SetVarCommand:
		return cr.setVar(ctx, c, step)

	case *script.WaitForPopupCommand:
		timeout := cr.timeout
		if c.TimeoutMs > 0 {
			timeout = time.Duration(c.TimeoutMs) * time.Millisecond
		}
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		popup, err := d.WaitForPopup(waitCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			return core.ErrPopupTimeout.WithMessagef("no popup within %s", timeout)
		}
		if err != nil {
			return err
		}
		cr.ec.SetPendingPopup(popup)
		return nil

	case *script.SwitchToPopupCommand:
		popup, ok := cr.ec.TakePendingPopup()
		if !ok {
			waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
			p, err := d.WaitForPopup(waitCtx)
			if err != nil {
				return core.ErrNoPopup
			}
			popup = p
		}
		cr.ec.PushTarget(popup)
		return nil

	case *script.ClosePopupCommand:
		popped, err := cr.ec.PopTarget()
		if err != nil {
			return err
		}
		return d.CloseTarget(ctx, popped)

	case *script.SwitchToIFrameCommand:
		frame, err := d.FrameTarget(ctx, target, cr.expand(c.Selector, step))
		if err != nil {
			return err
		}
		cr.ec.PushTarget(frame)
		return nil

	case *script.ReturnFromIFrameCommand:
		_, err := cr.ec.PopTarget()
		return err

	case *script.SaveSessionCommand:
		state, err := d.SessionState(ctx)
		if err != nil {
			return err
		}
		cr.ec.SaveSession(cr.expand(c.Name, step), state)
		return nil

	case *script.RestoreSessionCommand:
		name := cr.expand(c.Name, step)
		state, ok := cr.ec.Session(name)
		if !ok {
			return core.ErrUnknownSession.WithMessagef("session %q was never saved", name)
		}
		return d.RestoreSessionState(ctx, state)

	case *script.ClearCookiesCommand:
		return d.ClearCookies(ctx)

	case *script.AssertCommand:
		outcome, err := evalAssertion(ctx, cr.ec, c.Assertion)
		if err != nil {
			return err
		}
		step.Data = outcome.Data
		if !outcome.Pass {
			step.Status = core.StatusFailed
			step.Kind = core.ErrKindAssertion
			step.Message = outcome.Message
			step.Error = outcome.Message
			cr.captureOnFailure(ctx, step)
		}
		return nil

	case *script.AssertCookieCommand:
		name := cr.expand(c.Name, step)
		want := cr.expand(c.Value, step)
		cookies, err := d.Cookies(ctx)
		if err != nil {
			return err
		}
		for _, cookie := range cookies {
			if cookie.Name == name {
				step.Data = map[string]interface{}{"cookie": name, "expected": want, "actual": cookie.Value}
				if cookie.Value != want {
					step.Status = core.StatusFailed
					step.Kind = core.ErrKindAssertion
					step.Message = fmt.Sprintf("cookie %q is %q, expected %q", name, cookie.Value, want)
					step.Error = step.Message
					cr.captureOnFailure(ctx, step)
				}
				return nil
			}
		}
		step.Status = core.StatusFailed
		step.Kind = core.ErrKindAssertion
		step.Message = fmt.Sprintf("cookie %q is not set", name)
		step.Error = step.Message
		step.Data = map[string]interface{}{"cookie": name, "expected": want}
		cr.captureOnFailure(ctx, step)
		return nil

	case *script.UseCommand:
		if _, ok := cr.script.Flows[c.Flow]; !ok {
			return core.ErrUnknownFlow.WithMessagef("flow %q is not defined", c.Flow)
		}
		return nil

	case *script.ForEachURLCommand, *script.ForEachDataCommand:
		// The command itself always passes; the body runs in runNested.
		return nil
	}

	return fmt.Errorf("unhandled command %s", cmd.Type())
}

// setVar evaluates a SetVar right-hand side and binds the result.
func (cr *CaseRunner) setVar(ctx context.Context, c *script.SetVarCommand, step *core.StepResult) error {
	var value string

	switch c.Value.Kind {
	case script.ExprLiteral:
		value = cr.expand(c.Value.Text, step)

	case script.ExprVarRef:
		v, ok := cr.ec.Vars.Get(c.Value.Text)
		if !ok {
			return core.ErrUnresolvedVariable.WithMessagef("variable $%s has no binding", c.Value.Text)
		}
		value = v

	case script.ExprLocal:
		cr.ec.syncExprVars()
		for _, name := range referencedNames(c.Value.Text) {
			cr.ec.Expr.DefineUndefinedIfMissing(name)
		}
		v, err := cr.ec.Expr.EvalString(c.Value.Text)
		if err != nil {
			return core.NewExecError(core.ErrKindDriver, "expr_failed", err.Error())
		}
		value = v

	case script.ExprPageEval:
		v, err := cr.ec.Driver.Evaluate(ctx, cr.ec.CurrentTarget(), c.Value.Text)
		if err != nil {
			return core.ErrEvalFailed.WithCause(err)
		}
		value = v
	}

	cr.ec.Vars.Set(c.Name, value)
	step.Data = map[string]interface{}{"name": c.Name, "value": value}
	return nil
}

// expand substitutes $VAR placeholders and records unresolved ones as step
// warnings.
func (cr *CaseRunner) expand(text string, step *core.StepResult) string {
	expanded, warnings := cr.ec.Vars.Expand(text)
	if len(warnings) > 0 {
		step.Warnings = append(step.Warnings, warnings...)
		cr.warnUnresolved(warnings)
	}
	return expanded
}

func (cr *CaseRunner) warnUnresolved(warnings []string) {
	for _, w := range warnings {
		logger.WithField("case", cr.caseName).Debug(w)
	}
}

// fillError classifies an error onto the step result.
func (cr *CaseRunner) fillError(step *core.StepResult, err error) {
	step.Error = err.Error()
	step.Status = core.StatusErrored
	step.Kind = core.ErrKindDriver

	var execErr *core.ExecError
	if errors.As(err, &execErr) {
		step.Kind = execErr.Kind
		if execErr.Kind == core.ErrKindAssertion {
			step.Status = core.StatusFailed
		}
	}
}

// captureOnFailure grabs page HTML and a screenshot before the assertion
// failure aborts the case. Capture problems are logged, never fatal.
func (cr *CaseRunner) captureOnFailure(ctx context.Context, step *core.StepResult) {
	if !cr.opts.Snap {
		return
	}
	snap, err := cr.ec.Driver.CaptureSnapshot(ctx, cr.ec.CurrentTarget())
	if err != nil {
		logger.Warn("snapshot capture failed: %v", err)
		return
	}
	base := fmt.Sprintf("%s-%s-%d", sanitizeName(cr.caseName), cr.ec.Profile.Name, len(cr.steps))
	dir := cr.opts.SnapDir
	if dir == "" {
		dir = "."
	}
	if len(snap.HTML) > 0 {
		path := filepath.Join(dir, base+".html")
		if err := os.WriteFile(path, snap.HTML, 0o644); err != nil {
			logger.Warn("could not write %s: %v", path, err)
		} else {
			step.SnapshotHTML = path
		}
	}
	if len(snap.Screenshot) > 0 {
		path := filepath.Join(dir, base+".png")
		if err := os.WriteFile(path, snap.Screenshot, 0o644); err != nil {
			logger.Warn("could not write %s: %v", path, err)
		} else {
			step.SnapshotImage = path
		}
	}
}

func (cr *CaseRunner) appendStep(step core.StepResult) {
	step.Index = len(cr.steps)
	cr.steps = append(cr.steps, step)
}

func (cr *CaseRunner) markSkipped(cmds []script.Command) {
	for _, cmd := range cmds {
		cr.appendStep(core.StepResult{
			Command:   cmd.Describe(),
			Line:      cmd.Line(),
			Status:    core.StatusSkipped,
			StartTime: time.Now(),
		})
	}
}

// sanitizeName makes a case name safe for use in a file name.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// referencedNames extracts identifier-looking tokens from a local
// expression so unbound ones can be predefined as undefined.
func referencedNames(expr string) []string {
	var names []string
	for _, m := range vars.IdentifierPattern.FindAllString(expr, -1) {
		names = append(names, m)
	}
	return names
}
