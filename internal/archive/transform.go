// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"

	"github.com/wabkit/wabkit/internal/metrics"
	"github.com/wabkit/wabkit/pkg/jarurl"
	"github.com/wabkit/wabkit/pkg/manifest"
	"github.com/wabkit/wabkit/pkg/wab"
)

// ManifestName is the archive path of the manifest entry.
const ManifestName = "META-INF/MANIFEST.MF"

// ErrManifest is wrapped by errors that concern the archive's manifest:
// a missing or duplicated entry, or one that cannot be parsed.
var ErrManifest = errors.New("manifest error")

type (
	// Stats counts what a pass did with the source entries.
	Stats struct {
		Copied    int
		Rewritten int
		Dropped   int
	}

	// Transformer rewrites web archives into web application bundles.
	// A Transformer may be shared; each call works on its own source and
	// destination.
	Transformer struct {
		synth    *wab.Synthesizer
		opener   *jarurl.Opener
		fs       afero.Fs
		spillDir string
		level    int
		defaults bool
		logger   *log.Logger
		metrics  metrics.Collector
	}

	// Option configures a Transformer.
	Option func(*Transformer)
)

// WithFs sets the file system used for spill and output files.
// Defaults to the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(t *Transformer) {
		t.fs = fs
	}
}

// WithOpener sets the opener used to read source archives. Defaults to an
// opener with only the file scheme on the transformer's file system.
func WithOpener(o *jarurl.Opener) Option {
	return func(t *Transformer) {
		t.opener = o
	}
}

// WithSpillDir sets the directory for spill files. Empty means the
// system temporary directory.
func WithSpillDir(dir string) Option {
	return func(t *Transformer) {
		t.spillDir = dir
	}
}

// WithCompressionLevel sets the deflate level of the rewritten manifest.
func WithCompressionLevel(level int) Option {
	return func(t *Transformer) {
		t.level = level
	}
}

// WithDefaultWABHeaders makes every deployment URL opened by the
// transformer behave as if it requested default web bundle headers.
func WithDefaultWABHeaders(v bool) Option {
	return func(t *Transformer) {
		t.defaults = v
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Transformer) {
		t.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(t *Transformer) {
		t.metrics = c
	}
}

// New creates a Transformer that rewrites manifests with synth.
func New(synth *wab.Synthesizer, opts ...Option) *Transformer {
	t := &Transformer{
		synth:   synth,
		fs:      afero.NewOsFs(),
		level:   flate.DefaultCompression,
		metrics: metrics.Noop,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.opener == nil {
		t.opener = jarurl.NewOpener(t.fs)
	}
	if t.logger == nil {
		t.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "archive"})
	}
	return t
}

// Transform copies the archive read from src to dst in a single pass over
// its central directory. The manifest is rewritten, top-level signature
// files are dropped and every other entry is copied without being
// decompressed. sourceURL names the archive for the synthesizer.
//
// On error dst may hold a partial archive; callers that publish the output
// must discard it.
func (t *Transformer) Transform(dst io.Writer, src io.ReaderAt, size int64, sourceURL string, opts wab.InstallationOptions) (Stats, error) {
	start := time.Now()
	stats, err := t.transform(dst, src, size, sourceURL, opts)
	t.metrics.TransformCompleted(stats.Copied, stats.Rewritten, stats.Dropped, time.Since(start), err)
	if err != nil {
		return stats, err
	}
	t.logger.Debug("transformed archive", "source", sourceURL,
		"copied", stats.Copied, "rewritten", stats.Rewritten, "dropped", stats.Dropped)
	return stats, nil
}

func (t *Transformer) transform(dst io.Writer, src io.ReaderAt, size int64, sourceURL string, opts wab.InstallationOptions) (stats Stats, err error) {
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return stats, fmt.Errorf("failed to read archive %s: %w", sourceURL, err)
	}

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	source := wab.NewSourceLocation(sourceURL, names)

	zw := zip.NewWriter(dst)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, t.level)
	})
	if zr.Comment != "" {
		if err := zw.SetComment(zr.Comment); err != nil {
			return stats, fmt.Errorf("failed to copy archive comment: %w", err)
		}
	}

	for _, f := range zr.File {
		switch {
		case f.Name == ManifestName:
			if stats.Rewritten > 0 {
				return stats, fmt.Errorf("%w: %s contains more than one %s", ErrManifest, sourceURL, ManifestName)
			}
			if err := t.rewriteManifest(zw, f, source, opts); err != nil {
				return stats, err
			}
			stats.Rewritten++
		case IsSignatureFile(f.Name):
			t.logger.Debug("dropping signature file", "source", sourceURL, "entry", f.Name)
			stats.Dropped++
		default:
			if err := zw.Copy(f); err != nil {
				return stats, fmt.Errorf("failed to copy entry %s: %w", f.Name, err)
			}
			stats.Copied++
		}
	}

	if stats.Rewritten == 0 {
		return stats, fmt.Errorf("%w: %s has no %s", ErrManifest, sourceURL, ManifestName)
	}
	if err := zw.Close(); err != nil {
		return stats, fmt.Errorf("failed to finish archive: %w", err)
	}
	return stats, nil
}

func (t *Transformer) rewriteManifest(zw *zip.Writer, f *zip.File, source wab.SourceLocation, opts wab.InstallationOptions) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	m, err := manifest.Parse(rc)
	closeErr := rc.Close()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrManifest, err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, closeErr)
	}

	headers, err := t.synth.Synthesize(m.Main, opts, source)
	if err != nil {
		return err
	}
	m.Main = headers

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     f.Name,
		Comment:  f.Comment,
		Method:   zip.Deflate,
		Modified: f.Modified,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", f.Name, err)
	}
	if _, err := m.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	return nil
}

// IsSignatureFile reports whether name is a signature file directly under
// META-INF: a .SF, .DSA or .RSA file.
func IsSignatureFile(name string) bool {
	dir, file, ok := strings.Cut(name, "/")
	if !ok || dir != "META-INF" || file == "" || strings.Contains(file, "/") {
		return false
	}
	return strings.HasSuffix(file, ".SF") || strings.HasSuffix(file, ".DSA") || strings.HasSuffix(file, ".RSA")
}
