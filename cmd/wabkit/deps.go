// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wabkit/wabkit/internal/depgraph"
	"github.com/wabkit/wabkit/internal/issue"
	"github.com/wabkit/wabkit/pkg/module"
)

func newDepsCommand(app *App) *cobra.Command {
	var (
		repoDir string
		order   bool
		tree    bool
	)

	cmd := &cobra.Command{
		Use:   "deps <module>",
		Short: "Show the transitive dependencies of a module",
		Long: `Show the transitive dependencies of a module.

The module is named by its symbolic name or file name. Dependencies come from
Require-Bundle and Import-Package headers matched against the other modules of
the repository. With --order they are listed so that every module comes after
the modules it depends on. With --tree they are shown nested under the
module that needs them; a module seen before is marked and not expanded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(app, args[0], repoDir, order, tree)
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", "", "module directory (default from repository.dir)")
	cmd.Flags().BoolVar(&order, "order", false, "list dependencies before their dependents")
	cmd.Flags().BoolVar(&tree, "tree", false, "show dependencies nested under their dependents")
	cmd.MarkFlagsMutuallyExclusive("order", "tree")

	return cmd
}

func runDeps(app *App, name, repoDir string, order, tree bool) error {
	repo, err := app.loadRepository(repoDir)
	if err != nil {
		return err
	}
	root, err := app.lookupModule(repo, name)
	if err != nil {
		return err
	}

	resolver := depgraph.NewResolver(repo,
		depgraph.WithLogger(app.logger("depgraph")),
		depgraph.WithMetrics(app.recorder()),
	)
	closure := resolver.Resolve(root)

	mods := closure.Modules
	if order {
		if mods, err = closure.Order(); err != nil {
			ctx := issue.NewErrorContext().
				WithOperation("order dependencies").
				WithResource(displayName(root))
			var cycle *depgraph.CycleError
			if errors.As(err, &cycle) {
				ctx.WithIssue(issue.DependencyCycleId).
					WithSuggestion("Run without --order to list the dependencies")
			}
			return ctx.Wrap(err).BuildError()
		}
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Dependencies of "+displayName(root)))
	switch {
	case len(mods) == 0:
		fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none)"))
	case tree:
		closure.Walk(func(m module.Module, depth int, repeated bool) {
			indent := strings.Repeat("  ", depth)
			if repeated {
				fmt.Fprintf(app.stdout, "%s%s %s\n", indent, CmdStyle.Render(displayName(m)), SubtitleStyle.Render("(see above)"))
				return
			}
			fmt.Fprintf(app.stdout, "%s%s\n", indent, CmdStyle.Render(displayName(m)))
		})
	default:
		for _, m := range mods {
			fmt.Fprintf(app.stdout, "  %s  %s\n", CmdStyle.Render(displayName(m)), SubtitleStyle.Render(m.Location()))
		}
	}
	for _, key := range closure.Failed {
		name := key
		if m, ok := closure.Module(key); ok {
			name = displayName(m)
		}
		fmt.Fprintf(app.stderr, "%s dependencies of %s could not be resolved\n", WarningStyle.Render("!"), name)
	}
	return nil
}
