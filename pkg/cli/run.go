package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/qscript-dev/qscript-runner/pkg/core"
	"github.com/qscript-dev/qscript-runner/pkg/driver/mock"
	"github.com/qscript-dev/qscript-runner/pkg/driver/remote"
	"github.com/qscript-dev/qscript-runner/pkg/executor"
	"github.com/qscript-dev/qscript-runner/pkg/logger"
	"github.com/qscript-dev/qscript-runner/pkg/profile"
	"github.com/qscript-dev/qscript-runner/pkg/report"
	"github.com/qscript-dev/qscript-runner/pkg/script"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run a QScript file",
	ArgsUsage: "<file.qscript>",
	Description: `Parse and execute a .qscript file. Every runnable case is executed once
per requested device profile; profiles run concurrently and fully
isolated. Results are written to stdout as a JSON array, one record per
case and profile. All diagnostics go to stderr.

Examples:
  qscript-runner run checkout.qscript
  qscript-runner run smoke.qscript --devices desktop,mobile
  qscript-runner run login.qscript -v USER=alice -v PASS=secret
  qscript-runner run landing.qscript --snap --snap-dir ./failures`,
	Action: runScript,
}

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Parse a QScript file without executing it",
	ArgsUsage: "<file.qscript>",
	Action:    validateScript,
}

func runScript(c *cli.Context) error {
	path, err := scriptArg(c)
	if err != nil {
		return err
	}

	logger.SetDebug(c.Bool("debug"))
	logger.SetQuiet(c.Bool("quiet"))

	dir := filepath.Dir(path)
	if err := profile.LoadDotEnv(dir); err != nil {
		return cli.Exit(fmt.Sprintf("Error: loading .env: %v", err), ExitDriver)
	}

	cfg, err := loadConfig(c, dir)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), ExitUsage)
	}

	s, err := script.ParseFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), ExitUsage)
	}

	profiles, err := profile.Resolve(deviceNames(c.String("devices")), cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), ExitUsage)
	}

	seed, err := seedVars(c.StringSlice("var"), cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), ExitUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := buildBackend(ctx, c, cfg)
	if err != nil {
		return err
	}

	suite, err := executor.Run(ctx, s, executor.Options{
		Backend:        backend,
		Profiles:       profiles,
		Seed:           seed,
		DefaultTimeout: defaultTimeout(c, cfg),
		Snap:           c.Bool("snap"),
		SnapDir:        c.String("snap-dir"),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), ExitDriver)
	}

	if err := writeReport(c, suite); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), ExitDriver)
	}

	logger.Info("%d/%d cases passed across %d profile(s)",
		suite.PassedCases, suite.TotalCases, len(profiles))

	if !suite.Success() {
		return cli.Exit("", ExitTestFailure)
	}
	return nil
}

func validateScript(c *cli.Context) error {
	path, err := scriptArg(c)
	if err != nil {
		return err
	}

	s, err := script.ParseFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), ExitUsage)
	}

	logger.Info("%s: %d case(s), %d flow(s)", path, len(s.Cases), len(s.Flows))
	return nil
}

// scriptArg validates the single positional script path.
func scriptArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit("Error: expected exactly one .qscript file", ExitUsage)
	}
	path := c.Args().First()
	if !strings.HasSuffix(path, ".qscript") {
		return "", cli.Exit(fmt.Sprintf("Error: %s: script files must end in .qscript", path), ExitUsage)
	}
	return path, nil
}

func loadConfig(c *cli.Context, scriptDir string) (*profile.Config, error) {
	if path := c.String("config"); path != "" {
		return profile.Load(path)
	}
	return profile.LoadFromDir(scriptDir)
}

// deviceNames splits the --devices flag into trimmed profile names.
func deviceNames(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// seedVars merges workspace config vars with -v pairs; the pairs win.
func seedVars(pairs []string, cfg *profile.Config) (map[string]string, error) {
	seed := make(map[string]string, len(cfg.Vars))
	for k, v := range cfg.Vars {
		seed[k] = v
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid -v %q: expected KEY=VALUE", pair)
		}
		seed[key] = value
	}
	return seed, nil
}

func defaultTimeout(c *cli.Context, cfg *profile.Config) time.Duration {
	if ms := c.Int("timeout"); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if cfg.TimeoutMs > 0 {
		return time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return 0
}

func buildBackend(ctx context.Context, c *cli.Context, cfg *profile.Config) (core.Backend, error) {
	switch c.String("driver") {
	case "mock":
		return mock.NewBackend(), nil
	case "remote":
		rc := remote.Config{
			Addr:     cfg.Remote.Addr,
			Password: cfg.Remote.Password,
			DB:       cfg.Remote.DB,
			Queue:    cfg.Remote.Queue,
			Browser:  c.String("browser"),
		}
		if rc.Addr == "" || c.IsSet("redis") {
			rc.Addr = c.String("redis")
		}
		b, err := remote.NewBackend(ctx, rc)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("Error: connecting to worker pool: %v", err), ExitDriver)
		}
		return b, nil
	default:
		return nil, cli.Exit(fmt.Sprintf("Error: unknown driver %q (remote, mock)", c.String("driver")), ExitUsage)
	}
}

func writeReport(c *cli.Context, suite *core.SuiteResult) error {
	if path := c.String("output"); path != "" {
		f, err := os.Create(path) //#nosec G304 -- user-provided output path
		if err != nil {
			return err
		}
		defer f.Close()
		return report.Write(f, suite)
	}
	return report.Write(os.Stdout, suite)
}
