// SPDX-License-Identifier: MPL-2.0

// Package jarurl builds and opens nested-archive URLs of the form
//
//	jar:<location>!/<entry>
//
// The location is itself a URL whose scheme selects a [Handler]. The "file"
// scheme is always available; hosts register their own schemes for opaque
// module locations.
package jarurl

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

const (
	// Scheme is the nested-archive URL scheme.
	Scheme = "jar"
	// Separator divides the archive location from the entry path.
	Separator = "!/"
)

var (
	// ErrMalformedURL is returned for URLs that are not jar URLs.
	ErrMalformedURL = errors.New("malformed jar URL")
	// ErrUnsupportedScheme is returned when no handler is registered for a
	// location's scheme.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrEntryNotFound is returned when a jar URL names a missing entry.
	ErrEntryNotFound = errors.New("archive entry not found")
)

// URL is a parsed nested-archive URL.
type URL struct {
	// Location is the URL of the archive.
	Location string
	// Entry is the path inside the archive; empty for the archive root.
	Entry string
}

// Build returns the jar URL addressing entry inside the archive at location.
func Build(location, entry string) string {
	return Scheme + ":" + location + Separator + strings.TrimPrefix(entry, "/")
}

// Parse splits a jar URL at its first separator.
func Parse(raw string) (URL, error) {
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || !strings.EqualFold(scheme, Scheme) {
		return URL{}, fmt.Errorf("%w: %q lacks the %s: scheme", ErrMalformedURL, raw, Scheme)
	}
	location, entry, ok := strings.Cut(rest, Separator)
	if !ok {
		return URL{}, fmt.Errorf("%w: %q lacks %q", ErrMalformedURL, raw, Separator)
	}
	if location == "" {
		return URL{}, fmt.Errorf("%w: %q has an empty location", ErrMalformedURL, raw)
	}
	return URL{Location: location, Entry: entry}, nil
}

// String formats u as a jar URL.
func (u URL) String() string { return Build(u.Location, u.Entry) }

// FileURL returns the file URL of a local path, made absolute.
func FileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to make %q absolute: %w", path, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// FilePath returns the local path named by a file URL. Both "file:///abs"
// and the opaque "file:rel" forms are accepted, as is a bare path.
func FilePath(location string) (string, error) {
	if !hasScheme(location) {
		return location, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if !strings.EqualFold(u.Scheme, "file") {
		return "", fmt.Errorf("%w: %q is not a file URL", ErrUnsupportedScheme, location)
	}
	if u.Opaque != "" {
		return filepath.FromSlash(u.Opaque), nil
	}
	return filepath.FromSlash(u.Path), nil
}

// schemeOf returns the lower-cased scheme of location, or "file" for a bare
// path.
func schemeOf(location string) string {
	if !hasScheme(location) {
		return "file"
	}
	scheme, _, _ := strings.Cut(location, ":")
	return strings.ToLower(scheme)
}

// hasScheme reports whether location starts with a URL scheme. Single-letter
// prefixes are drive letters, not schemes.
func hasScheme(location string) bool {
	scheme, _, ok := strings.Cut(location, ":")
	return ok && len(scheme) >= 2 && !strings.ContainsAny(scheme, `/\.`)
}
