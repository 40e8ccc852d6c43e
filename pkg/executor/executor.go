// Package executor orchestrates script execution, connecting drivers to
// results.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qscript-dev/qscript-runner/pkg/core"
	"github.com/qscript-dev/qscript-runner/pkg/logger"
	"github.com/qscript-dev/qscript-runner/pkg/script"
	"github.com/qscript-dev/qscript-runner/pkg/vars"
)

// Options configures a run.
type Options struct {
	Backend  core.Backend
	Profiles []core.DeviceProfile

	// Seed variables (from -v flags and workspace config); the script's
	// SetVar shadows these.
	Seed map[string]string

	// DefaultTimeout bounds WaitFor/WaitForPopup without an explicit
	// deadline. Zero means DefaultWaitTimeout.
	DefaultTimeout time.Duration

	// Snap enables failure-time page captures into SnapDir.
	Snap    bool
	SnapDir string
}

// Run executes every runnable case of the script once per device profile.
// Profiles run concurrently and fully isolated; the returned suite lists
// results profile-major, then in declaration order.
func Run(ctx context.Context, s *script.Script, opts Options) (*core.SuiteResult, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("no backend configured")
	}
	if len(opts.Profiles) == 0 {
		return nil, fmt.Errorf("no device profiles requested")
	}

	cases := s.Runnable()
	suite := &core.SuiteResult{
		Name:      s.SourcePath,
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}

	results := make([]core.CaseResult, len(opts.Profiles)*len(cases))
	var wg sync.WaitGroup

	for pi, prof := range opts.Profiles {
		wg.Add(1)
		go func(pi int, prof core.DeviceProfile) {
			defer wg.Done()
			runProfile(ctx, s, cases, prof, &opts, results[pi*len(cases):(pi+1)*len(cases)])
		}(pi, prof)
	}
	wg.Wait()

	suite.Cases = results
	suite.Duration = time.Since(suite.StartTime)
	suite.ComputeSummary()
	return suite, nil
}

// runProfile executes all cases sequentially on one device profile,
// writing into its own slice of result slots.
func runProfile(ctx context.Context, s *script.Script, cases []*script.TestCase, prof core.DeviceProfile, opts *Options, slots []core.CaseResult) {
	driver, err := opts.Backend.OpenContext(ctx, prof)
	if err != nil {
		logger.WithField("device", prof.Name).Errorf("could not open driver context: %v", err)
		for i, tc := range cases {
			slots[i] = erroredCase(tc, prof, core.ErrDriverUnavailable.WithCause(err))
		}
		return
	}
	defer func() {
		if err := driver.Close(context.Background()); err != nil {
			logger.WithField("device", prof.Name).Warnf("driver close: %v", err)
		}
	}()

	for i, tc := range cases {
		if ctx.Err() != nil {
			slots[i] = skippedCase(tc, prof)
			continue
		}

		store := vars.NewStore()
		store.SeedEnv()
		store.SeedCLI(opts.Seed)

		ec := NewExecutionContext(driver, prof, store)
		cr := newCaseRunner(ec, s, opts)
		slots[i] = cr.Run(ctx, tc)
	}
}

func erroredCase(tc *script.TestCase, prof core.DeviceProfile, err *core.ExecError) core.CaseResult {
	return core.CaseResult{
		Name:     tc.Name,
		Kind:     string(tc.Kind),
		Priority: string(tc.Priority),
		Tags:     tc.Tags,
		Device:   prof.Name,
		Status:   core.CaseErrored,
		Error:    err.Error(),
	}
}

func skippedCase(tc *script.TestCase, prof core.DeviceProfile) core.CaseResult {
	return core.CaseResult{
		Name:     tc.Name,
		Kind:     string(tc.Kind),
		Priority: string(tc.Priority),
		Tags:     tc.Tags,
		Device:   prof.Name,
		Status:   core.CaseSkipped,
		Message:  "run cancelled",
	}
}
