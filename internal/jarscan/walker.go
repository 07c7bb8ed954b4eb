// SPDX-License-Identifier: MPL-2.0

package jarscan

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/wabkit/wabkit/internal/locator"
	"github.com/wabkit/wabkit/internal/metrics"
	"github.com/wabkit/wabkit/pkg/jarurl"
	"github.com/wabkit/wabkit/pkg/module"
)

type (
	// ClassLoader is the loader of the application being deployed. Only
	// loaders bound to a module lead to a scan.
	ClassLoader interface {
		Module() (module.Module, bool)
	}

	// Callback inspects the content of one dependency.
	Callback interface {
		ScanDirectory(path string) error
		ScanArchive(conn *jarurl.ArchiveConnection) error
	}

	// Scanner visits archives on behalf of a descriptor scanner.
	Scanner interface {
		Scan(loader ClassLoader, cb Callback, skip SkipSet) Report
	}

	// DependencyResolver returns the transitive dependencies of a module.
	DependencyResolver interface {
		Dependencies(root module.Module) []module.Module
	}

	// LocationResolver returns where a module's content lives.
	LocationResolver interface {
		Resolve(m module.Module) locator.Location
	}

	// SkipSet names archives that must not be visited. Entries match an
	// archive's base name (with or without extension) or a module's
	// symbolic name.
	SkipSet map[string]struct{}

	// Report counts what a scan did.
	Report struct {
		Scanned int
		Skipped int
		Failed  int
	}

	// Walker visits every transitive dependency of the module bound to a
	// class loader. It holds no state between calls.
	Walker struct {
		scanOptions
		deps   DependencyResolver
		loc    LocationResolver
		opener *jarurl.Opener
	}

	// Option configures a Walker or a LibraryScanner.
	Option func(*scanOptions)

	scanOptions struct {
		logger  *log.Logger
		metrics metrics.Collector
	}

	boundLoader struct {
		m module.Module
	}
)

// ForModule returns a ClassLoader bound to m.
func ForModule(m module.Module) ClassLoader { return boundLoader{m: m} }

func (l boundLoader) Module() (module.Module, bool) { return l.m, true }

// NewSkipSet builds a SkipSet from names.
func NewSkipSet(names ...string) SkipSet {
	s := make(SkipSet, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Contains reports whether name is in the set. A nil set is empty.
func (s SkipSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Add merges two reports.
func (r Report) Add(other Report) Report {
	return Report{
		Scanned: r.Scanned + other.Scanned,
		Skipped: r.Skipped + other.Skipped,
		Failed:  r.Failed + other.Failed,
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *scanOptions) {
		o.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(o *scanOptions) {
		o.metrics = c
	}
}

func newScanOptions(opts []Option) scanOptions {
	o := scanOptions{metrics: metrics.Noop}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "jarscan"})
	}
	return o
}

// NewWalker creates a Walker. Archives are opened through opener, so
// unresolved modules can be read as long as a handler for their location
// scheme is registered.
func NewWalker(deps DependencyResolver, loc LocationResolver, opener *jarurl.Opener, opts ...Option) *Walker {
	return &Walker{scanOptions: newScanOptions(opts), deps: deps, loc: loc, opener: opener}
}

// Scan passes each dependency of the loader's module to cb: exploded
// directories as a path and archives as an open connection. A failure on
// one dependency is logged and the walk continues with the next.
func (w *Walker) Scan(loader ClassLoader, cb Callback, skip SkipSet) Report {
	var report Report
	if loader == nil {
		return report
	}
	root, ok := loader.Module()
	if !ok {
		return report
	}

	for _, dep := range w.deps.Dependencies(root) {
		loc := w.loc.Resolve(dep)
		kind := kindLabel(loc)

		if w.skipped(dep, loc, skip) {
			w.logger.Debug("skipping dependency", "module", dep.String())
			w.metrics.ModuleScanned(kind, metrics.OutcomeSkipped)
			report.Skipped++
			continue
		}

		if err := w.scanModule(dep, loc, cb); err != nil {
			w.logger.Warn("failed to scan dependency", "module", dep.String(), "error", err)
			w.metrics.ModuleScanned(kind, metrics.OutcomeError)
			report.Failed++
			continue
		}
		w.metrics.ModuleScanned(kind, metrics.OutcomeSuccess)
		report.Scanned++
	}
	return report
}

func (w *Walker) scanModule(m module.Module, loc locator.Location, cb Callback) error {
	switch loc.Kind {
	case locator.Directory:
		if err := cb.ScanDirectory(loc.Path); err != nil {
			return fmt.Errorf("failed to scan directory %s: %w", loc.Path, err)
		}
		return nil
	case locator.ArchiveFile:
		fileURL, err := jarurl.FileURL(loc.Path)
		if err != nil {
			return err
		}
		return scanURL(w.opener, jarurl.Build(fileURL, ""), cb)
	default:
		if m.Location() == "" {
			return fmt.Errorf("module %s has no location", m.Key())
		}
		return scanURL(w.opener, jarurl.Build(m.Location(), ""), cb)
	}
}

func scanURL(opener *jarurl.Opener, raw string, cb Callback) (err error) {
	conn, err := opener.Open(raw)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	archive, ok := conn.(*jarurl.ArchiveConnection)
	if !ok {
		return nil
	}
	if err := cb.ScanArchive(archive); err != nil {
		return fmt.Errorf("failed to scan %s: %w", raw, err)
	}
	return nil
}

func (w *Walker) skipped(m module.Module, loc locator.Location, skip SkipSet) bool {
	if len(skip) == 0 {
		return false
	}
	if name := m.SymbolicName(); name != "" && skip.Contains(name) {
		return true
	}
	var base string
	if loc.Kind == locator.Unresolved {
		base = path.Base(strings.TrimSuffix(m.Location(), "/"))
	} else {
		base = filepath.Base(loc.Path)
	}
	return skippedFile(base, skip)
}

func skippedFile(base string, skip SkipSet) bool {
	return skip.Contains(base) || skip.Contains(strings.TrimSuffix(base, path.Ext(base)))
}

func kindLabel(loc locator.Location) string {
	return loc.Kind.String()
}
