// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wabkit/wabkit/internal/config"
)

// newConfigCommand creates the `wabkit config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage wabkit configuration",
		Long: `Manage wabkit configuration.

Configuration is stored in:
  - Linux: ~/.config/wabkit/config.cue
  - macOS: ~/Library/Application Support/wabkit/config.cue
  - Windows: %APPDATA%\wabkit\config.cue

WABKIT_* environment variables override file values, for example
WABKIT_SCAN_SKIP=org.example.huge or WABKIT_LOG_LEVEL=debug.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app)
		},
	})

	return cfgCmd
}

func showConfig(cmd *cobra.Command, app *App) error {
	_, path, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{ConfigFilePath: app.cfgFile, Fs: app.Fs})
	if err != nil {
		return err
	}

	source := SubtitleStyle.Render("(using defaults)")
	if path != "" {
		source = path
	}
	fmt.Fprintf(app.stderr, "%s: %s\n\n", CmdStyle.Render("Config file"), source)
	fmt.Fprint(app.stdout, config.GenerateCUE(app.settings()))
	return nil
}

func initConfig(app *App) error {
	path, err := config.CreateDefaultConfig(app.Fs, "")
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(app *App) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	return nil
}
