// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wabkit/wabkit/internal/archive"
	"github.com/wabkit/wabkit/internal/issue"
	"github.com/wabkit/wabkit/pkg/jarurl"
	"github.com/wabkit/wabkit/pkg/wab"
	"github.com/wabkit/wabkit/pkg/warurl"
)

func newTransformCommand(app *App) *cobra.Command {
	var (
		output   string
		defaults bool
	)

	cmd := &cobra.Command{
		Use:   "transform <war-url>",
		Short: "Rewrite a web archive into a web application bundle",
		Long: `Rewrite a web archive into a web application bundle.

The archive is named by a deployment URL of the form
war:<archive-url>?<key>=<value>&... where the query carries installation
options such as Web-ContextPath or Import-Package. The manifest is rewritten,
top-level signature files are dropped and every other entry is copied as is.

Without --output the bundle is written to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(app, args[0], output, defaults)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the bundle to this file instead of stdout")
	cmd.Flags().BoolVar(&defaults, "default-headers", false, "fill bundle headers even when the archive is already a web module")

	return cmd
}

func runTransform(app *App, rawURL, output string, defaults bool) error {
	cfg := app.settings()
	t := archive.New(
		wab.NewSynthesizer(wab.DefaultTransformer{}),
		archive.WithFs(app.Fs),
		archive.WithSpillDir(cfg.Transform.SpillDir.String()),
		archive.WithCompressionLevel(int(cfg.Transform.CompressionLevel)),
		archive.WithDefaultWABHeaders(defaults || cfg.Transform.DefaultWABHeaders),
		archive.WithLogger(app.logger("archive")),
		archive.WithMetrics(app.recorder()),
	)

	var stats archive.Stats
	if output == "" {
		spill, err := t.Open(rawURL)
		if err != nil {
			return transformError(rawURL, err)
		}
		defer func() { _ = spill.Close() }()
		if _, err := io.Copy(app.stdout, spill); err != nil {
			return fmt.Errorf("failed to write bundle: %w", err)
		}
		stats = spill.Stats()
	} else {
		var err error
		if stats, err = t.WriteFile(rawURL, output); err != nil {
			return transformError(rawURL, err)
		}
		fmt.Fprintf(app.stderr, "%s Wrote %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(output))
	}

	fmt.Fprintf(app.stderr, "%s\n", SubtitleStyle.Render(fmt.Sprintf(
		"copied %d, rewrote %d, dropped %d entries", stats.Copied, stats.Rewritten, stats.Dropped)))
	return nil
}

// transformError attaches guidance to the errors a transform pass can
// report.
func transformError(rawURL string, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("transform archive").
		WithResource(rawURL)

	switch {
	case errors.Is(err, warurl.ErrMalformedURL), errors.Is(err, wab.ErrInvalidOptions):
		ctx.WithIssue(issue.MalformedWarURLId).
			WithSuggestion("Use war:<archive-url>?Web-ContextPath=/path")
	case errors.Is(err, archive.ErrManifest):
		ctx.WithIssue(issue.ManifestInvalidId).
			WithSuggestion("Check that the archive has exactly one META-INF/MANIFEST.MF entry")
	case errors.Is(err, zip.ErrFormat):
		ctx.WithIssue(issue.NotAnArchiveId).
			WithSuggestion("Check that the URL points at a .war or .jar file")
	case errors.Is(err, jarurl.ErrUnsupportedScheme):
		ctx.WithSuggestion("Only file: archive URLs are supported")
	}

	return ctx.Wrap(err).BuildError()
}
