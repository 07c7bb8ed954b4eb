// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/wabkit/wabkit/internal/depgraph"
	"github.com/wabkit/wabkit/internal/jarscan"
	"github.com/wabkit/wabkit/internal/locator"
	"github.com/wabkit/wabkit/pkg/jarurl"
)

func newScanCommand(app *App) *cobra.Command {
	var (
		repoDir string
		skip    []string
		suffix  string
	)

	cmd := &cobra.Command{
		Use:   "scan <module>",
		Short: "Find resources in the dependencies of a module",
		Long: `Find resources in the dependencies of a module.

The libraries under WEB-INF/lib of the module are visited first, then every
transitive dependency once: exploded modules are walked as directories and
packed modules are opened as archives. By default tag library descriptors
(*.tld) are listed. Modules named by --skip or by scan.skip in the
configuration are not visited; a dependency that cannot be read is reported
and the scan goes on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(app, args[0], repoDir, suffix, skip)
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", "", "module directory (default from repository.dir)")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "module to leave out, by symbolic name or file name (repeatable)")
	cmd.Flags().StringVar(&suffix, "suffix", jarscan.TLDSuffix, "file name suffix of the resources to list")

	return cmd
}

func runScan(app *App, name, repoDir, suffix string, skip []string) error {
	repo, err := app.loadRepository(repoDir)
	if err != nil {
		return err
	}
	root, err := app.lookupModule(repo, name)
	if err != nil {
		return err
	}

	loc := locator.New(repo, app.Fs)
	opener := jarurl.NewOpener(app.Fs)
	opts := []jarscan.Option{
		jarscan.WithLogger(app.logger("jarscan")),
		jarscan.WithMetrics(app.recorder()),
	}
	scanner := jarscan.Chain{
		jarscan.NewLibraryScanner(loc, app.Fs, opener, opts...),
		jarscan.NewWalker(
			depgraph.NewResolver(repo,
				depgraph.WithLogger(app.logger("depgraph")),
				depgraph.WithMetrics(app.recorder()),
			),
			loc, opener, opts...,
		),
	}

	collector := jarscan.NewSuffixCollector(app.Fs, suffix)
	skipSet := jarscan.NewSkipSet(slices.Concat(app.settings().Scan.Skip, skip)...)
	report := scanner.Scan(jarscan.ForModule(root), collector, skipSet)

	found := collector.Found()
	slices.Sort(found)
	fmt.Fprintln(app.stdout, TitleStyle.Render(fmt.Sprintf("*%s resources visible to %s", suffix, displayName(root))))
	if len(found) == 0 {
		fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none found)"))
	}
	for _, f := range found {
		fmt.Fprintf(app.stdout, "  %s\n", CmdStyle.Render(f))
	}

	summary := fmt.Sprintf("scanned %d, skipped %d", report.Scanned, report.Skipped)
	if report.Failed > 0 {
		summary += ", " + ErrorStyle.Render(fmt.Sprintf("failed %d", report.Failed))
	}
	fmt.Fprintln(app.stderr, SubtitleStyle.Render(summary))
	return nil
}
