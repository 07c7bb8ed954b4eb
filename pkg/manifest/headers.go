// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"slices"
	"strings"
)

// Well-known header names.
const (
	ManifestVersion       = "Manifest-Version"
	BundleManifestVersion = "Bundle-ManifestVersion"
	BundleSymbolicName    = "Bundle-SymbolicName"
	BundleVersion         = "Bundle-Version"
	BundleClassPath       = "Bundle-ClassPath"
	ImportPackage         = "Import-Package"
	ExportPackage         = "Export-Package"
	RequireBundle         = "Require-Bundle"
	WebContextPath        = "Web-ContextPath"
	WebJSPExtractLocation = "Web-JSPExtractLocation"

	// DefaultManifestVersion is written when a manifest has no Manifest-Version.
	DefaultManifestVersion = "1.0"
)

type (
	// Header is a single manifest attribute.
	Header struct {
		Name  string
		Value string
	}

	// Headers is an ordered list of manifest attributes. Lookups are
	// case-insensitive, matching the manifest format. The zero value is an
	// empty, ready-to-use list.
	Headers struct {
		entries []Header
	}
)

// NewHeaders builds Headers from alternating name/value pairs.
// A trailing name without a value is ignored.
func NewHeaders(pairs ...string) Headers {
	var h Headers
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

// Len returns the number of headers.
func (h *Headers) Len() int { return len(h.entries) }

// Get returns the value of the named header, or "" when absent.
func (h *Headers) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup returns the value of the named header and whether it is present.
func (h *Headers) Lookup(name string) (string, bool) {
	if i := h.index(name); i >= 0 {
		return h.entries[i].Value, true
	}
	return "", false
}

// Has reports whether the named header is present.
func (h *Headers) Has(name string) bool {
	return h.index(name) >= 0
}

// Set replaces the value of the named header in place, keeping its
// position, or appends the header when it is absent.
func (h *Headers) Set(name, value string) {
	if i := h.index(name); i >= 0 {
		h.entries[i].Value = value
		return
	}
	h.entries = append(h.entries, Header{Name: name, Value: value})
}

// Delete removes the named header. It reports whether anything was removed.
func (h *Headers) Delete(name string) bool {
	i := h.index(name)
	if i < 0 {
		return false
	}
	h.entries = slices.Delete(h.entries, i, i+1)
	return true
}

// Names returns the header names in order.
func (h *Headers) Names() []string {
	names := make([]string, len(h.entries))
	for i, e := range h.entries {
		names[i] = e.Name
	}
	return names
}

// All returns a copy of the headers in order.
func (h *Headers) All() []Header {
	return slices.Clone(h.entries)
}

// Clone returns an independent copy.
func (h *Headers) Clone() Headers {
	return Headers{entries: slices.Clone(h.entries)}
}

func (h *Headers) index(name string) int {
	return slices.IndexFunc(h.entries, func(e Header) bool {
		return strings.EqualFold(e.Name, name)
	})
}
