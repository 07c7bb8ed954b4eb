// SPDX-License-Identifier: MPL-2.0

package wab

import (
	"fmt"
	"slices"
	"strings"

	"github.com/wabkit/wabkit/pkg/manifest"
)

const (
	// ClassesPath is the class directory of a web archive.
	ClassesPath = "WEB-INF/classes"
	// LibPath is the library directory of a web archive.
	LibPath = "WEB-INF/lib/"

	manifestVersion2 = "2"
)

// ServletImports are the packages a plain web archive is assumed to use.
// They are imported optionally so that resolution does not depend on every
// one being present.
var ServletImports = []string{
	"javax.servlet",
	"javax.servlet.http",
	"javax.servlet.annotation",
	"javax.servlet.descriptor",
	"javax.servlet.jsp",
	"javax.servlet.jsp.el",
	"javax.servlet.jsp.tagext",
	"javax.el",
}

// optionHeaders are copied verbatim from the installation options.
var optionHeaders = []string{
	manifest.BundleSymbolicName,
	manifest.BundleVersion,
	manifest.BundleManifestVersion,
	manifest.WebJSPExtractLocation,
}

// DefaultTransformer turns a web archive's headers into those of a web
// application bundle.
//
// Installation options override the matching headers. Headers that are
// still missing are derived from the archive: symbolic name and context path
// from its file name, class path from WEB-INF/classes and the jars under
// WEB-INF/lib. The class path and servlet imports are only synthesized for
// archives that are not yet web modules, or when default headers are
// requested.
type DefaultTransformer struct{}

// Transform implements HeaderTransformer.
func (DefaultTransformer) Transform(headers *manifest.Headers, source SourceLocation, options InstallationOptions, webModule bool) error {
	for _, name := range optionHeaders {
		if v, ok := options.Get(name); ok {
			headers.Set(name, v)
		}
	}

	if !headers.Has(manifest.BundleManifestVersion) {
		headers.Set(manifest.BundleManifestVersion, manifestVersion2)
	}

	if strings.TrimSpace(headers.Get(manifest.BundleSymbolicName)) == "" {
		name := source.BaseName()
		if name == "" {
			return fmt.Errorf("cannot derive %s from %q", manifest.BundleSymbolicName, source.URL())
		}
		headers.Set(manifest.BundleSymbolicName, name)
	}

	contextPath, ok := options.Get(manifest.WebContextPath)
	if !ok {
		contextPath, ok = headers.Lookup(manifest.WebContextPath)
	}
	if !ok {
		contextPath = "/" + source.BaseName()
	}
	headers.Set(manifest.WebContextPath, NormalizeContextPath(contextPath))

	applyDefaults := !webModule || options.DefaultWABHeaders()
	if applyDefaults {
		headers.Set(manifest.BundleClassPath, classPath(headers.Get(manifest.BundleClassPath), source.Entries()))
	}

	imports := manifest.ParseClauses(headers.Get(manifest.ImportPackage))
	if v, ok := options.Get(manifest.ImportPackage); ok {
		imports = mergeClauses(imports, manifest.ParseClauses(v))
	}
	if applyDefaults {
		var servlet []manifest.Clause
		for _, pkg := range ServletImports {
			servlet = append(servlet, manifest.Clause{
				Paths:      []string{pkg},
				Directives: []manifest.Param{{Key: "resolution", Value: "optional"}},
			})
		}
		imports = addMissingClauses(imports, servlet)
	}
	if len(imports) > 0 {
		headers.Set(manifest.ImportPackage, manifest.FormatClauses(imports))
	}

	return nil
}

// NormalizeContextPath returns path with a single leading slash and no
// trailing slash. The root context is "/".
func NormalizeContextPath(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	return "/" + path
}

// classPath keeps existing class path entries and appends WEB-INF/classes and
// each WEB-INF/lib jar found among entries, in archive order, without
// duplicates.
func classPath(existing string, entries []string) string {
	var paths []string
	for _, c := range manifest.ParseClauses(existing) {
		paths = append(paths, c.Paths...)
	}
	add := func(p string) {
		if !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}
	add(ClassesPath)
	for _, e := range entries {
		rest, ok := strings.CutPrefix(e, LibPath)
		if !ok || strings.Contains(rest, "/") || !strings.HasSuffix(strings.ToLower(rest), ".jar") {
			continue
		}
		add(e)
	}
	return strings.Join(paths, ",")
}

// mergeClauses replaces clauses of base that import the same package as an
// override clause and appends the rest.
func mergeClauses(base, overrides []manifest.Clause) []manifest.Clause {
	out := slices.Clone(base)
	for _, o := range overrides {
		replaced := false
		for i, c := range out {
			if slices.Equal(c.Paths, o.Paths) {
				out[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}

// addMissingClauses appends each extra clause whose package is not already
// imported by base.
func addMissingClauses(base, extra []manifest.Clause) []manifest.Clause {
	imported := make(map[string]bool)
	for _, c := range base {
		for _, p := range c.Paths {
			imported[p] = true
		}
	}
	out := slices.Clone(base)
	for _, e := range extra {
		if !imported[e.Paths[0]] {
			out = append(out, e)
		}
	}
	return out
}
