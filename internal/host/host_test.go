// SPDX-License-Identifier: MPL-2.0

package host

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/wabkit/wabkit/internal/extender"
	"github.com/wabkit/wabkit/internal/jarscan"
	"github.com/wabkit/wabkit/internal/locator"
	"github.com/wabkit/wabkit/internal/testutil"
	"github.com/wabkit/wabkit/pkg/jarurl"
	"github.com/wabkit/wabkit/pkg/manifest"
	"github.com/wabkit/wabkit/pkg/module"
)

var owner = module.New("wabkit", manifest.NewHeaders(manifest.BundleSymbolicName, "wabkit"))

type fixture struct {
	fs    afero.Fs
	paths map[string]string
	host  *Host
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	testutil.WriteArchive(t, fs, "/repo/shop.war",
		testutil.StoredEntry("index.html", "<h1>shop</h1>"),
		testutil.StoredEntry("css/site.css", "body{}"),
		testutil.StoredEntry("WEB-INF/web.xml", "<web-app/>"),
		testutil.StoredEntry("META-INF/MANIFEST.MF", "Manifest-Version: 1.0\r\n"),
	)
	testutil.MustWriteFile(t, fs, "/repo/docs/guide.txt", []byte("read me"))
	testutil.MustWriteFile(t, fs, "/repo/docs/WEB-INF/secret.txt", []byte("hidden"))
	testutil.WriteArchive(t, fs, "/repo/root.war", testutil.StoredEntry("hello.txt", "root"))

	f := &fixture{
		fs: fs,
		paths: map[string]string{
			"shop": "/repo/shop.war",
			"docs": "/repo/docs",
			"root": "/repo/root.war",
		},
	}
	loc := locator.New(locator.FileResolverFunc(func(m module.Module) (string, bool) {
		p, ok := f.paths[m.Key()]
		return p, ok
	}), fs)
	opts = append([]Option{WithLogger(log.NewWithOptions(io.Discard, log.Options{}))}, opts...)
	f.host = New(loc, fs, jarurl.NewOpener(fs), opts...)
	return f
}

func webModule(id, contextPath string) module.Module {
	return module.NewWithID(id, "", manifest.NewHeaders(
		manifest.BundleSymbolicName, id,
		manifest.WebContextPath, contextPath,
	))
}

func (f *fixture) start(t *testing.T, m module.Module) extender.Application {
	t.Helper()
	app, err := f.host.CreateApplication(m, owner)
	if err != nil {
		t.Fatalf("CreateApplication(%s) error = %v", m.Key(), err)
	}
	if err := app.Start(); err != nil {
		t.Fatalf("Start(%s) error = %v", m.Key(), err)
	}
	return app
}

func get(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHost_ServesModuleContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.start(t, webModule("shop", "shop/"))
	f.start(t, webModule("docs", "/docs"))
	f.start(t, webModule("root", "/"))

	tests := []struct {
		target string
		status int
		body   string
	}{
		{"/shop/", http.StatusOK, "<h1>shop</h1>"},
		{"/shop/index.html", http.StatusOK, "<h1>shop</h1>"},
		{"/shop/css/site.css", http.StatusOK, "body{}"},
		{"/shop/css/", http.StatusNotFound, ""},
		{"/shop/missing.txt", http.StatusNotFound, ""},
		{"/shop/WEB-INF/web.xml", http.StatusNotFound, ""},
		{"/shop/web-inf/web.xml", http.StatusNotFound, ""},
		{"/shop/META-INF/MANIFEST.MF", http.StatusNotFound, ""},
		{"/shop/css/../WEB-INF/web.xml", http.StatusNotFound, ""},
		{"/docs/guide.txt", http.StatusOK, "read me"},
		{"/docs/WEB-INF/secret.txt", http.StatusNotFound, ""},
		{"/hello.txt", http.StatusOK, "root"},
		{"/shopping/hello.txt", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, f.host, http.MethodGet, tt.target)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestHost_DirectoryRedirect(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.start(t, webModule("shop", "/shop"))

	rec := get(t, f.host, http.MethodGet, "/shop")
	if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != "/shop/" {
		t.Errorf("got %d to %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestHost_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.start(t, webModule("shop", "/shop"))

	rec := get(t, f.host, http.MethodPost, "/shop/index.html")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, HEAD" {
		t.Errorf("got %d, Allow %q", rec.Code, rec.Header().Get("Allow"))
	}
	if rec := get(t, f.host, http.MethodHead, "/shop/index.html"); rec.Code != http.StatusOK {
		t.Errorf("HEAD status = %d", rec.Code)
	}
}

func TestHost_StopUnpublishes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	app := f.start(t, webModule("shop", "/shop"))
	if err := app.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if rec := get(t, f.host, http.MethodGet, "/shop/index.html"); rec.Code != http.StatusNotFound {
		t.Errorf("status after stop = %d", rec.Code)
	}
	if err := app.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if err := app.Start(); err == nil {
		t.Error("Start() after Stop() succeeded")
	}
}

func TestHost_ContextPathInUse(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.start(t, webModule("shop", "/store"))
	app, err := f.host.CreateApplication(webModule("docs", "/store"), owner)
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Start(); !errors.Is(err, ErrContextPathInUse) {
		t.Fatalf("Start() = %v, want ErrContextPathInUse", err)
	}
	if got := get(t, f.host, http.MethodGet, "/store/index.html").Body.String(); got != "<h1>shop</h1>" {
		t.Errorf("first application displaced, body %q", got)
	}
}

func TestHost_CreateApplicationErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.MustWriteFile(t, f.fs, "/repo/broken.war", []byte("not an archive"))
	f.paths["broken"] = "/repo/broken.war"

	if _, err := f.host.CreateApplication(webModule("nowhere", "/x"), owner); !errors.Is(err, ErrNoContent) {
		t.Errorf("no location: error = %v", err)
	}
	if _, err := f.host.CreateApplication(webModule("broken", "/x"), owner); err == nil {
		t.Error("broken archive: expected error")
	}
	opaque := module.NewWithID("opaque", "bundle://9.0:1", manifest.NewHeaders(manifest.WebContextPath, "/x"))
	if _, err := f.host.CreateApplication(opaque, owner); !errors.Is(err, jarurl.ErrUnsupportedScheme) {
		t.Errorf("opaque location: error = %v", err)
	}
}

func TestHost_Halt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.start(t, webModule("shop", "/shop"))
	f.start(t, webModule("docs", "/docs"))
	if got := f.host.ContextPaths(); !slices.Equal(got, []string{"/docs", "/shop"}) {
		t.Fatalf("ContextPaths() = %v", got)
	}

	f.host.Halt()
	if len(f.host.ContextPaths()) != 0 {
		t.Error("applications left after Halt()")
	}
	app, err := f.host.CreateApplication(webModule("root", "/"), owner)
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Start(); !errors.Is(err, ErrHalted) {
		t.Errorf("Start() after Halt() = %v", err)
	}
}

func TestHost_WithBridge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	b := extender.NewBridge(f.host, owner, extender.WithLogger(log.NewWithOptions(io.Discard, log.Options{})))
	lib := module.NewWithID("lib", "", manifest.NewHeaders(manifest.BundleSymbolicName, "lib"))

	if n := b.Open([]module.Module{webModule("shop", "/shop"), lib, webModule("docs", "/docs")}); n != 2 {
		t.Fatalf("Open() = %d, want 2", n)
	}
	if body := get(t, f.host, http.MethodGet, "/docs/guide.txt").Body.String(); !strings.Contains(body, "read me") {
		t.Errorf("body = %q", body)
	}
	b.Close()
	if rec := get(t, f.host, http.MethodGet, "/docs/guide.txt"); rec.Code != http.StatusNotFound {
		t.Errorf("status after Close() = %d", rec.Code)
	}
}

// dirScanner hands fixed directories to the callback and records the
// modules it was asked about.
type dirScanner struct {
	dirs    []string
	modules []string
	skip    jarscan.SkipSet
}

func (s *dirScanner) Scan(loader jarscan.ClassLoader, cb jarscan.Callback, skip jarscan.SkipSet) jarscan.Report {
	m, _ := loader.Module()
	s.modules = append(s.modules, m.Key())
	s.skip = skip
	var r jarscan.Report
	for _, d := range s.dirs {
		if err := cb.ScanDirectory(d); err != nil {
			r.Failed++
			continue
		}
		r.Scanned++
	}
	return r
}

func TestHost_ScansDescriptors(t *testing.T) {
	t.Parallel()

	scanner := &dirScanner{dirs: []string{"/repo/docs"}}
	f := newFixture(t, WithScanner(scanner, ".txt", jarscan.NewSkipSet("legacy")))
	f.start(t, webModule("shop", "/shop"))
	created, err := f.host.CreateApplication(webModule("root", "/"), owner)
	if err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(scanner.modules, []string{"shop", "root"}) {
		t.Errorf("scanned modules = %v", scanner.modules)
	}
	if !scanner.skip.Contains("legacy") {
		t.Errorf("skip set not passed: %v", scanner.skip)
	}

	got := f.host.Descriptors()
	want := []string{"/repo/docs/WEB-INF/secret.txt", "/repo/docs/guide.txt"}
	if len(got) != 1 || !slices.Equal(got["/shop"], want) {
		t.Errorf("Descriptors() = %v, want only /shop: %v", got, want)
	}

	if err := created.Start(); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.host.Descriptors()["/"]; !ok {
		t.Error("started application missing from Descriptors()")
	}
}

func TestHost_WithoutScanner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.start(t, webModule("docs", "/docs"))
	got := f.host.Descriptors()
	if d, ok := got["/docs"]; !ok || d == nil || len(d) != 0 {
		t.Errorf("Descriptors() = %#v, want an empty list for /docs", got)
	}
}
