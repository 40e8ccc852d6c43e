// Package cli provides the command-line interface for qscript-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// Exit codes. Zero means every test case passed on every device profile.
const (
	ExitTestFailure = 1
	ExitUsage       = 2
	ExitDriver      = 3
)

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "devices",
		Usage:   "Device profiles to run on (comma-separated: desktop, mobile, bot, or custom)",
		EnvVars: []string{"QSCRIPT_DEVICES"},
	},
	&cli.StringFlag{
		Name:    "browser",
		Aliases: []string{"b"},
		Usage:   "Browser engine requested from the worker pool (chromium, firefox, webkit)",
		Value:   "chromium",
		EnvVars: []string{"QSCRIPT_BROWSER"},
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Driver to use (remote, mock)",
		Value:   "remote",
		EnvVars: []string{"QSCRIPT_DRIVER"},
	},
	&cli.StringFlag{
		Name:    "redis",
		Usage:   "Redis address of the remote worker pool",
		Value:   "127.0.0.1:6379",
		EnvVars: []string{"QSCRIPT_REDIS"},
	},
	&cli.StringFlag{
		Name:  "config",
		Usage: "Path to qscript.yaml (default: next to the script file)",
	},
	&cli.BoolFlag{
		Name:    "debug",
		Usage:   "Enable debug logging on stderr",
		EnvVars: []string{"QSCRIPT_DEBUG"},
	},
	&cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "Only log errors",
	},
	&cli.StringSliceFlag{
		Name:    "var",
		Aliases: []string{"v"},
		Usage:   "Seed a global variable (KEY=VALUE, repeatable)",
	},
	&cli.BoolFlag{
		Name:  "snap",
		Usage: "Capture page HTML and a screenshot on assertion failure",
	},
	&cli.StringFlag{
		Name:  "snap-dir",
		Usage: "Directory for failure captures",
		Value: "snapshots",
	},
	&cli.IntFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Usage:   "Default wait timeout in ms (0 = built-in default)",
	},
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write the result array to a file instead of stdout",
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "qscript-runner",
		Usage:   "QScript acceptance-test runner for browsers",
		Version: Version,
		Description: `qscript-runner parses and executes .qscript files against a pool of
browser workers, fanning each test out across device profiles and
emitting a JSON result array on stdout.

Examples:
  qscript-runner checkout.qscript
  qscript-runner run smoke.qscript --devices desktop,mobile -v USER=alice
  qscript-runner run landing.qscript --snap --debug
  qscript-runner validate flows/login.qscript`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
		},
		// A bare script path runs it.
		Action: runScript,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitUsage)
	}
}
