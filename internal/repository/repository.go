// SPDX-License-Identifier: MPL-2.0

// Package repository loads the modules found in a directory and answers
// dependency and file location questions about them.
package repository

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/wabkit/wabkit/pkg/jarurl"
	"github.com/wabkit/wabkit/pkg/manifest"
	"github.com/wabkit/wabkit/pkg/module"
)

const manifestPath = "META-INF/MANIFEST.MF"

var (
	// ErrUnknownModule is returned for modules that were not loaded by the
	// repository.
	ErrUnknownModule = errors.New("unknown module")
	// ErrNoManifest is returned when a candidate module has no manifest.
	ErrNoManifest = errors.New("module has no manifest")
)

// archiveExts are the file extensions treated as packed modules.
var archiveExts = []string{".jar", ".war"}

type (
	// Repository is a read-only set of modules loaded from one directory.
	// After Load returns it is safe for concurrent use.
	Repository struct {
		fs      afero.Fs
		dir     string
		modules []module.Module
		paths   map[string]string
		byName  map[string][]module.Module
		exports map[string][]module.Module
		logger  *log.Logger
	}

	// Option configures a Repository.
	Option func(*Repository)
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// Load reads every module in dir: each *.jar or *.war file and each
// directory holding META-INF/MANIFEST.MF. Entries that cannot be read are
// logged and skipped.
func Load(fs afero.Fs, dir string, opts ...Option) (*Repository, error) {
	r := &Repository{
		fs:      fs,
		dir:     dir,
		paths:   make(map[string]string),
		byName:  make(map[string][]module.Module),
		exports: make(map[string][]module.Module),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "repository"})
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read module directory %s: %w", dir, err)
	}

	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		var headers manifest.Headers
		switch {
		case e.IsDir():
			headers, err = r.readDirManifest(p)
		case slices.Contains(archiveExts, strings.ToLower(filepath.Ext(e.Name()))):
			headers, err = r.readArchiveManifest(p, e.Size())
		default:
			continue
		}
		if err != nil {
			if errors.Is(err, ErrNoManifest) && e.IsDir() {
				continue
			}
			r.logger.Warn("skipping module", "path", p, "error", err)
			continue
		}
		r.add(p, headers)
	}

	r.logger.Debug("loaded modules", "dir", dir, "count", len(r.modules))
	return r, nil
}

func (r *Repository) add(p string, headers manifest.Headers) {
	location, err := jarurl.FileURL(p)
	if err != nil {
		location = p
	}
	m := module.NewWithID(p, location, headers)
	r.modules = append(r.modules, m)
	r.paths[m.Key()] = p
	if name := m.SymbolicName(); name != "" {
		r.byName[name] = append(r.byName[name], m)
	}
	for _, c := range manifest.ParseClauses(headers.Get(manifest.ExportPackage)) {
		for _, pkg := range c.Paths {
			r.exports[pkg] = append(r.exports[pkg], m)
		}
	}
}

func (r *Repository) readDirManifest(dir string) (manifest.Headers, error) {
	f, err := r.fs.Open(filepath.Join(dir, filepath.FromSlash(manifestPath)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return manifest.Headers{}, ErrNoManifest
		}
		return manifest.Headers{}, err
	}
	defer func() { _ = f.Close() }()
	return parseHeaders(f)
}

func (r *Repository) readArchiveManifest(p string, size int64) (manifest.Headers, error) {
	f, err := r.fs.Open(p)
	if err != nil {
		return manifest.Headers{}, err
	}
	defer func() { _ = f.Close() }()

	zr, err := zip.NewReader(f, size)
	if err != nil {
		return manifest.Headers{}, fmt.Errorf("failed to read archive: %w", err)
	}
	for _, zf := range zr.File {
		if zf.Name != manifestPath {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return manifest.Headers{}, err
		}
		defer func() { _ = rc.Close() }()
		return parseHeaders(rc)
	}
	return manifest.Headers{}, ErrNoManifest
}

func parseHeaders(r io.Reader) (manifest.Headers, error) {
	m, err := manifest.Parse(r)
	if err != nil {
		return manifest.Headers{}, err
	}
	return m.Main, nil
}

// Dir returns the directory the repository was loaded from.
func (r *Repository) Dir() string { return r.dir }

// Modules returns the loaded modules in directory order.
func (r *Repository) Modules() []module.Module { return slices.Clone(r.modules) }

// Lookup finds a module by key, file name (with or without extension) or
// symbolic name.
func (r *Repository) Lookup(name string) (module.Module, bool) {
	for _, m := range r.modules {
		p := r.paths[m.Key()]
		if m.Key() == name || filepath.Base(p) == name || baseName(p) == name || m.SymbolicName() == name {
			return m, true
		}
	}
	if abs, err := filepath.Abs(name); err == nil {
		for _, m := range r.modules {
			if p, err := filepath.Abs(r.paths[m.Key()]); err == nil && p == abs {
				return m, true
			}
		}
	}
	return module.Module{}, false
}

// DirectDependencies returns the modules named by m's Require-Bundle header
// followed by the modules exporting the packages in its Import-Package
// header. A module never depends on itself; requirements that no loaded
// module satisfies are ignored.
func (r *Repository) DirectDependencies(m module.Module) ([]module.Module, error) {
	if _, ok := r.paths[m.Key()]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, m.Key())
	}

	seen := map[string]bool{m.Key(): true}
	var deps []module.Module
	add := func(d module.Module) {
		if !seen[d.Key()] {
			seen[d.Key()] = true
			deps = append(deps, d)
		}
	}

	for _, c := range manifest.ParseClauses(m.Header(manifest.RequireBundle)) {
		for _, name := range c.Paths {
			providers := r.byName[name]
			if len(providers) == 0 {
				r.logger.Debug("required module not found", "module", m.Key(), "requires", name)
				continue
			}
			add(providers[0])
		}
	}
	for _, c := range manifest.ParseClauses(m.Header(manifest.ImportPackage)) {
		for _, pkg := range c.Paths {
			for _, d := range r.exports[pkg] {
				add(d)
			}
		}
	}
	return deps, nil
}

// Resolve returns the path of m on the repository's file system.
func (r *Repository) Resolve(m module.Module) (string, bool) {
	p, ok := r.paths[m.Key()]
	return p, ok
}

// baseName is the module file name without extension.
func baseName(p string) string {
	b := path.Base(filepath.ToSlash(p))
	return strings.TrimSuffix(b, path.Ext(b))
}
