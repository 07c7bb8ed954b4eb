// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for wabkit.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/wabkit/wabkit/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wabkit",
		Short: "Web archive bundling and dependency scanning",
		Long: TitleStyle.Render("wabkit") + SubtitleStyle.Render(" - Web archive bundling and dependency scanning") + `

wabkit rewrites web archives into web application bundles on the fly,
walks module dependencies to find resources such as tag library descriptors
and serves the web modules of a repository over HTTP.

` + SubtitleStyle.Render("Examples:") + `
  wabkit transform 'war:file:///srv/shop.war?Web-ContextPath=/shop' -o shop.jar
  wabkit modules --repo ./bundles
  wabkit deps shop --repo ./bundles --order
  wabkit scan shop --repo ./bundles --skip org.example.huge
  wabkit serve --repo ./bundles --addr :8080
  wabkit config show`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return app.finish()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $HOME/.config/wabkit/config.cue)")
	rootCmd.PersistentFlags().StringVar(&app.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(newTransformCommand(app))
	rootCmd.AddCommand(newModulesCommand(app))
	rootCmd.AddCommand(newDepsCommand(app))
	rootCmd.AddCommand(newScanCommand(app))
	rootCmd.AddCommand(newServeCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		app.reportError(err)
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
