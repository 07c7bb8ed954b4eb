// SPDX-License-Identifier: MPL-2.0

package wab

import (
	"errors"
	"strings"
	"testing"

	"github.com/wabkit/wabkit/pkg/manifest"
)

func mustOptions(t *testing.T, pairs ...string) InstallationOptions {
	t.Helper()
	var opts []Option
	for i := 0; i+1 < len(pairs); i += 2 {
		opts = append(opts, Option{Key: pairs[i], Value: pairs[i+1]})
	}
	o, err := NewInstallationOptions(opts...)
	if err != nil {
		t.Fatalf("NewInstallationOptions() error = %v", err)
	}
	return o
}

func TestDefaultTransformer_PlainWar(t *testing.T) {
	t.Parallel()

	headers := manifest.NewHeaders(manifest.ManifestVersion, "1.0")
	source := NewSourceLocation("file:/deploy/shop.war", []string{
		"META-INF/MANIFEST.MF",
		"WEB-INF/web.xml",
		"WEB-INF/lib/a.jar",
		"WEB-INF/lib/nested/b.jar",
		"WEB-INF/lib/readme.txt",
		"WEB-INF/lib/C.JAR",
	})

	if err := (DefaultTransformer{}).Transform(&headers, source, InstallationOptions{}, false); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	checks := map[string]string{
		manifest.BundleManifestVersion: "2",
		manifest.BundleSymbolicName:    "shop",
		manifest.WebContextPath:        "/shop",
		manifest.BundleClassPath:       "WEB-INF/classes,WEB-INF/lib/a.jar,WEB-INF/lib/C.JAR",
	}
	for name, want := range checks {
		if got := headers.Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}

	imports := headers.Get(manifest.ImportPackage)
	for _, pkg := range ServletImports {
		if !strings.Contains(imports, pkg+";resolution:=optional") {
			t.Errorf("Import-Package missing optional %s: %q", pkg, imports)
		}
	}
}

func TestDefaultTransformer_OptionsOverride(t *testing.T) {
	t.Parallel()

	headers := manifest.NewHeaders(
		manifest.BundleSymbolicName, "original",
		manifest.ImportPackage, `org.example;version="1.0"`,
	)
	opts := mustOptions(t,
		manifest.WebContextPath, "store/",
		manifest.BundleSymbolicName, "com.example.store",
		manifest.BundleVersion, "2.1.0",
		manifest.ImportPackage, `org.example;version="2.0",org.other`,
	)

	if err := (DefaultTransformer{}).Transform(&headers, NewSourceLocation("file:/x.war", nil), opts, false); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	if got := headers.Get(manifest.WebContextPath); got != "/store" {
		t.Errorf("Web-ContextPath = %q", got)
	}
	if got := headers.Get(manifest.BundleSymbolicName); got != "com.example.store" {
		t.Errorf("Bundle-SymbolicName = %q", got)
	}
	if got := headers.Get(manifest.BundleVersion); got != "2.1.0" {
		t.Errorf("Bundle-Version = %q", got)
	}
	imports := manifest.ParseClauses(headers.Get(manifest.ImportPackage))
	if imports[0].Paths[0] != "org.example" {
		t.Fatalf("first import = %v", imports[0])
	}
	if v, _ := imports[0].Attribute("version"); v != "2.0" {
		t.Errorf("org.example version = %q, want option value", v)
	}
	if imports[1].Paths[0] != "org.other" {
		t.Errorf("second import = %v", imports[1])
	}
}

func TestDefaultTransformer_WebModuleKeepsItsShape(t *testing.T) {
	t.Parallel()

	headers := manifest.NewHeaders(
		manifest.ManifestVersion, "1.0",
		manifest.WebContextPath, "/app",
		manifest.BundleClassPath, "WEB-INF/classes",
	)
	source := NewSourceLocation("file:/app.war", []string{"WEB-INF/lib/a.jar"})

	if err := (DefaultTransformer{}).Transform(&headers, source, mustOptions(t, manifest.WebContextPath, "/app"), true); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got := headers.Get(manifest.BundleClassPath); got != "WEB-INF/classes" {
		t.Errorf("Bundle-ClassPath changed for a web module: %q", got)
	}
	if headers.Has(manifest.ImportPackage) {
		t.Errorf("servlet imports added to a web module: %q", headers.Get(manifest.ImportPackage))
	}
	if got := headers.Get(manifest.WebContextPath); got != "/app" {
		t.Errorf("Web-ContextPath = %q", got)
	}
}

func TestDefaultTransformer_DefaultHeadersForWebModule(t *testing.T) {
	t.Parallel()

	headers := manifest.NewHeaders(manifest.WebContextPath, "/app")
	source := NewSourceLocation("file:/app.war", []string{"WEB-INF/lib/a.jar"})
	opts := InstallationOptions{}.WithDefaultWABHeaders(true)

	if err := (DefaultTransformer{}).Transform(&headers, source, opts, true); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if got := headers.Get(manifest.BundleClassPath); got != "WEB-INF/classes,WEB-INF/lib/a.jar" {
		t.Errorf("Bundle-ClassPath = %q", got)
	}
	if !headers.Has(manifest.ImportPackage) {
		t.Error("expected servlet imports with default headers")
	}
}

func TestDefaultTransformer_NoDuplicateImports(t *testing.T) {
	t.Parallel()

	headers := manifest.NewHeaders(manifest.ImportPackage, `javax.servlet;version="3.0"`)
	if err := (DefaultTransformer{}).Transform(&headers, NewSourceLocation("file:/a.war", nil), InstallationOptions{}, false); err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, c := range manifest.ParseClauses(headers.Get(manifest.ImportPackage)) {
		if c.Paths[0] == "javax.servlet" {
			count++
			if _, ok := c.Directive("resolution"); ok {
				t.Error("existing javax.servlet import was replaced")
			}
		}
	}
	if count != 1 {
		t.Errorf("javax.servlet imported %d times", count)
	}
}

func TestDefaultTransformer_CannotDeriveName(t *testing.T) {
	t.Parallel()

	headers := manifest.Headers{}
	err := (DefaultTransformer{}).Transform(&headers, NewSourceLocation("", nil), InstallationOptions{}, false)
	if err == nil {
		t.Fatal("expected an error for an unnamed source")
	}
}

func TestNormalizeContextPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":        "/",
		"/":       "/",
		"app":     "/app",
		"/app/":   "/app",
		" /a/b/ ": "/a/b",
	}
	for in, want := range tests {
		if got := NormalizeContextPath(in); got != want {
			t.Errorf("NormalizeContextPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewInstallationOptions_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
	}{
		{"empty key", []Option{{Key: " ", Value: "x"}}},
		{"duplicate key", []Option{{Key: "Web-ContextPath", Value: "/a"}, {Key: "web-contextpath", Value: "/b"}}},
		{"manifest version", []Option{{Key: manifest.BundleManifestVersion, Value: "1"}}},
		{"empty context path", []Option{{Key: manifest.WebContextPath, Value: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewInstallationOptions(tt.opts...); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("expected ErrInvalidOptions, got %v", err)
			}
		})
	}
}

func TestInstallationOptions_Accessors(t *testing.T) {
	t.Parallel()

	opts := mustOptions(t, "Web-ContextPath", "/a", "Custom", "v")
	if v, ok := opts.Get("web-contextpath"); !ok || v != "/a" {
		t.Errorf("Get() = %q, %v", v, ok)
	}
	if opts.Len() != 2 || opts.Options()[1].Key != "Custom" {
		t.Errorf("Options() = %v", opts.Options())
	}
	flagged := opts.WithDefaultWABHeaders(true)
	if opts.Equal(flagged) || !flagged.DefaultWABHeaders() {
		t.Error("WithDefaultWABHeaders should return a distinct flagged copy")
	}
}

func TestSourceLocation_BaseName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"file:/deploy/shop.war":        "shop",
		"file:shop.war?Web-ContextPath": "shop",
		"https://host/apps/app.v2.war": "app.v2",
		"reference:file:/x/y/":         "y",
		"":                             "",
	}
	for in, want := range tests {
		if got := NewSourceLocation(in, nil).BaseName(); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}
