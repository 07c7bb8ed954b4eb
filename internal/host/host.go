// SPDX-License-Identifier: MPL-2.0

// Package host is an HTTP container for web modules. Every started
// application publishes the static content of its module under the module's
// context path. WEB-INF and META-INF are never served. With a scanner set,
// each application's descriptors are collected when it is created.
package host

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/wabkit/wabkit/internal/extender"
	"github.com/wabkit/wabkit/internal/jarscan"
	"github.com/wabkit/wabkit/internal/locator"
	"github.com/wabkit/wabkit/pkg/jarurl"
	"github.com/wabkit/wabkit/pkg/manifest"
	"github.com/wabkit/wabkit/pkg/module"
	"github.com/wabkit/wabkit/pkg/wab"
)

var (
	// ErrContextPathInUse is returned when an application is started on a
	// context path another application already serves.
	ErrContextPathInUse = errors.New("context path already in use")
	// ErrHalted is returned for applications started after Halt.
	ErrHalted = errors.New("host is halted")
	// ErrNoContent is returned for modules whose content cannot be located.
	ErrNoContent = errors.New("module content not found")
)

// privateDirs are the top-level directories of a web module that are never
// published.
var privateDirs = []string{"WEB-INF", "META-INF"}

type (
	// Host deploys web modules and routes requests to them by context path.
	// It implements extender.Container and http.Handler and is safe for
	// concurrent use.
	Host struct {
		locator *locator.Locator
		opener  *jarurl.Opener
		fs      afero.Fs
		logger  *log.Logger
		scan    *scanConfig

		mu     sync.RWMutex
		apps   map[string]*application
		halted bool
	}

	// Option configures a Host.
	Option func(*Host)

	scanConfig struct {
		scanner jarscan.Scanner
		suffix  string
		skip    jarscan.SkipSet
	}

	application struct {
		host        *Host
		module      module.Module
		contextPath string
		content     fs.FS
		closer      io.Closer
		descriptors []string

		mu      sync.Mutex
		stopped bool
	}
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// WithScanner makes CreateApplication run s over the new application's
// module and record every resource whose name ends in suffix. Modules in
// skip are not visited.
func WithScanner(s jarscan.Scanner, suffix string, skip jarscan.SkipSet) Option {
	return func(h *Host) {
		h.scan = &scanConfig{scanner: s, suffix: suffix, skip: skip}
	}
}

// New creates a Host that finds module content with loc on fsys. Packed
// modules, and modules without a local file, are read through opener.
func New(loc *locator.Locator, fsys afero.Fs, opener *jarurl.Opener, opts ...Option) *Host {
	h := &Host{
		locator: loc,
		opener:  opener,
		fs:      fsys,
		apps:    make(map[string]*application),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "host"})
	}
	return h
}

// CreateApplication opens the content of m and, with a scanner set,
// collects its descriptors. The application serves nothing until it is
// started.
func (h *Host) CreateApplication(m, owner module.Module) (extender.Application, error) {
	content, closer, err := h.openContent(m)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("created application", "module", m.String(), "owner", owner.String())
	return &application{
		host:        h,
		module:      m,
		contextPath: wab.NormalizeContextPath(m.Header(manifest.WebContextPath)),
		content:     content,
		closer:      closer,
		descriptors: h.scanDescriptors(m),
	}, nil
}

func (h *Host) scanDescriptors(m module.Module) []string {
	if h.scan == nil || h.scan.scanner == nil {
		return nil
	}
	collector := jarscan.NewSuffixCollector(h.fs, h.scan.suffix)
	report := h.scan.scanner.Scan(jarscan.ForModule(m), collector, h.scan.skip)
	found := collector.Found()
	slices.Sort(found)
	h.logger.Info("scanned web module", "module", m.String(), "descriptors", len(found),
		"scanned", report.Scanned, "skipped", report.Skipped, "failed", report.Failed)
	for _, d := range found {
		h.logger.Debug("found descriptor", "module", m.String(), "descriptor", d)
	}
	return found
}

func (h *Host) openContent(m module.Module) (fs.FS, io.Closer, error) {
	loc := h.locator.Resolve(m)
	switch loc.Kind {
	case locator.Directory:
		return afero.NewIOFS(afero.NewReadOnlyFs(afero.NewBasePathFs(h.fs, loc.Path))), nil, nil
	case locator.ArchiveFile:
		location, err := jarurl.FileURL(loc.Path)
		if err != nil {
			return nil, nil, err
		}
		return h.openArchive(location)
	default:
		if m.Location() == "" {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoContent, m.Key())
		}
		return h.openArchive(m.Location())
	}
}

func (h *Host) openArchive(location string) (fs.FS, io.Closer, error) {
	conn, err := h.opener.Open(jarurl.Build(location, ""))
	if err != nil {
		return nil, nil, err
	}
	ac, ok := conn.(*jarurl.ArchiveConnection)
	if !ok {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNoContent, location)
	}
	return ac.Reader(), ac, nil
}

// Halt stops every application still being served.
func (h *Host) Halt() {
	h.mu.Lock()
	apps := h.apps
	h.apps = make(map[string]*application)
	h.halted = true
	h.mu.Unlock()

	for _, a := range apps {
		_ = a.release()
	}
	h.logger.Debug("halted", "applications", len(apps))
}

// ContextPaths returns the context paths being served, sorted.
func (h *Host) ContextPaths() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	paths := make([]string, 0, len(h.apps))
	for cp := range h.apps {
		paths = append(paths, cp)
	}
	slices.Sort(paths)
	return paths
}

// Descriptors returns the descriptors collected for each application being
// served, keyed by context path. Applications without descriptors map to an
// empty list.
func (h *Host) Descriptors() map[string][]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string][]string, len(h.apps))
	for cp, a := range h.apps {
		out[cp] = append([]string{}, a.descriptors...)
	}
	return out
}

// ServeHTTP routes the request to the application with the longest context
// path that prefixes the request path.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	app, rest := h.route(r.URL.Path)
	if app == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	app.serve(w, r, rest)
}

func (h *Host) route(p string) (*application, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var (
		best *application
		rest string
	)
	for cp, a := range h.apps {
		var r string
		switch {
		case cp == "/":
			r = p
		case p == cp:
			r = ""
		case strings.HasPrefix(p, cp+"/"):
			r = p[len(cp):]
		default:
			continue
		}
		if best == nil || len(cp) > len(best.contextPath) {
			best, rest = a, r
		}
	}
	return best, rest
}

func (a *application) Start() error {
	h := a.host
	h.mu.Lock()
	defer h.mu.Unlock()

	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	switch {
	case stopped:
		return fmt.Errorf("application for %s was stopped", a.module.Key())
	case h.halted:
		return ErrHalted
	}
	if other, ok := h.apps[a.contextPath]; ok && other != a {
		return fmt.Errorf("%w: %s serves %s", ErrContextPathInUse, other.module.Key(), a.contextPath)
	}
	h.apps[a.contextPath] = a
	h.logger.Info("serving web module", "module", a.module.String(), "context", a.contextPath)
	return nil
}

func (a *application) Stop() error {
	h := a.host
	h.mu.Lock()
	if h.apps[a.contextPath] == a {
		delete(h.apps, a.contextPath)
	}
	h.mu.Unlock()
	return a.release()
}

// release closes the module content once.
func (a *application) release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return nil
	}
	a.stopped = true
	if a.closer == nil {
		return nil
	}
	if err := a.closer.Close(); err != nil {
		return fmt.Errorf("failed to close content of %s: %w", a.module.Key(), err)
	}
	return nil
}

// serve writes the resource at rest, relative to the context path.
// Directories are served through their index.html and are never listed.
func (a *application) serve(w http.ResponseWriter, r *http.Request, rest string) {
	name := strings.TrimPrefix(path.Clean("/"+rest), "/")
	if isPrivate(name) {
		http.NotFound(w, r)
		return
	}
	if name == "" {
		name = "."
	}

	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	if stopped {
		http.NotFound(w, r)
		return
	}

	info, err := fs.Stat(a.content, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		name = path.Join(name, "index.html")
		if info, err = fs.Stat(a.content, name); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
	}

	data, err := fs.ReadFile(a.content, name)
	if err != nil {
		a.host.logger.Warn("failed to read resource", "module", a.module.String(), "resource", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), bytes.NewReader(data))
}

func isPrivate(name string) bool {
	first, _, _ := strings.Cut(name, "/")
	for _, dir := range privateDirs {
		if strings.EqualFold(first, dir) {
			return true
		}
	}
	return false
}
