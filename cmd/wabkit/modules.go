// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wabkit/wabkit/pkg/manifest"
	"github.com/wabkit/wabkit/pkg/module"
)

func newModulesCommand(app *App) *cobra.Command {
	var repoDir string

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the modules of a repository",
		Long: `List the modules of a repository.

A repository is a directory holding *.jar and *.war files and exploded
module directories, each with a META-INF/MANIFEST.MF. Web modules are marked
with their context path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModules(app, repoDir)
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", "", "module directory (default from repository.dir)")

	return cmd
}

func runModules(app *App, repoDir string) error {
	repo, err := app.loadRepository(repoDir)
	if err != nil {
		return err
	}

	mods := repo.Modules()
	fmt.Fprintln(app.stdout, TitleStyle.Render(fmt.Sprintf("Modules in %s", repo.Dir())))
	if len(mods) == 0 {
		fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none found)"))
		return nil
	}
	for _, m := range mods {
		fmt.Fprintf(app.stdout, "  %s%s  %s\n", CmdStyle.Render(displayName(m)), webBadge(m), SubtitleStyle.Render(m.Location()))
	}
	return nil
}

// displayName is the symbolic name of m, or its key when it has none.
func displayName(m module.Module) string {
	if name := m.SymbolicName(); name != "" {
		return name
	}
	return m.Key()
}

func webBadge(m module.Module) string {
	if !module.ContextPathClassifier.IsWebModule(m.Headers()) {
		return ""
	}
	return " " + webBadgeStyle.Render("web "+m.Header(manifest.WebContextPath))
}
