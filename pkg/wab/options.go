// SPDX-License-Identifier: MPL-2.0

package wab

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/wabkit/wabkit/pkg/manifest"
)

// ErrInvalidOptions is the sentinel error wrapped by InvalidOptionError.
var ErrInvalidOptions = errors.New("invalid installation options")

type (
	// Option is a single installation option as written in the deployment URL.
	Option struct {
		Key   string
		Value string
	}

	// InstallationOptions is the ordered, immutable set of options that
	// accompany a deployment request. Keys are case-insensitive.
	InstallationOptions struct {
		options           []Option
		defaultWABHeaders bool
	}

	// InvalidOptionError is returned when an option cannot be accepted.
	// It wraps ErrInvalidOptions for errors.Is() compatibility.
	InvalidOptionError struct {
		Key    string
		Reason string
	}

	// SourceLocation identifies the archive being installed: its URL and the
	// entry names read from its central directory.
	SourceLocation struct {
		url     string
		entries []string
	}
)

// Error implements the error interface for InvalidOptionError.
func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid installation option %q: %s", e.Key, e.Reason)
}

// Unwrap returns ErrInvalidOptions for errors.Is() compatibility.
func (e *InvalidOptionError) Unwrap() error { return ErrInvalidOptions }

// NewInstallationOptions validates and stores options in the given order.
func NewInstallationOptions(options ...Option) (InstallationOptions, error) {
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		if strings.TrimSpace(o.Key) == "" {
			return InstallationOptions{}, &InvalidOptionError{Key: o.Key, Reason: "key must not be empty"}
		}
		lower := strings.ToLower(o.Key)
		if seen[lower] {
			return InstallationOptions{}, &InvalidOptionError{Key: o.Key, Reason: "specified more than once"}
		}
		seen[lower] = true

		if strings.EqualFold(o.Key, manifest.BundleManifestVersion) && strings.TrimSpace(o.Value) != "2" {
			return InstallationOptions{}, &InvalidOptionError{Key: o.Key, Reason: "only manifest version 2 is supported"}
		}
		if strings.EqualFold(o.Key, manifest.WebContextPath) && strings.TrimSpace(o.Value) == "" {
			return InstallationOptions{}, &InvalidOptionError{Key: o.Key, Reason: "context path must not be empty"}
		}
	}
	return InstallationOptions{options: slices.Clone(options)}, nil
}

// Get returns the option value for key.
func (o InstallationOptions) Get(key string) (string, bool) {
	for _, opt := range o.options {
		if strings.EqualFold(opt.Key, key) {
			return opt.Value, true
		}
	}
	return "", false
}

// Options returns the options in their original order.
func (o InstallationOptions) Options() []Option {
	return slices.Clone(o.options)
}

// Len returns the number of options.
func (o InstallationOptions) Len() int { return len(o.options) }

// DefaultWABHeaders reports whether default web application headers should
// be applied even to modules that are already web modules.
func (o InstallationOptions) DefaultWABHeaders() bool { return o.defaultWABHeaders }

// WithDefaultWABHeaders returns a copy with the flag set to v.
func (o InstallationOptions) WithDefaultWABHeaders(v bool) InstallationOptions {
	return InstallationOptions{options: slices.Clone(o.options), defaultWABHeaders: v}
}

// Equal reports whether both option sets hold the same options in order.
func (o InstallationOptions) Equal(other InstallationOptions) bool {
	return o.defaultWABHeaders == other.defaultWABHeaders && slices.Equal(o.options, other.options)
}

// NewSourceLocation records an archive URL and its entry names.
func NewSourceLocation(url string, entries []string) SourceLocation {
	return SourceLocation{url: url, entries: slices.Clone(entries)}
}

// URL returns the archive URL.
func (s SourceLocation) URL() string { return s.url }

// Entries returns a copy of the archive's entry names in archive order.
func (s SourceLocation) Entries() []string { return slices.Clone(s.entries) }

// BaseName returns the archive file name without directory or extension,
// e.g. "shop" for "file:/deploy/shop.war?x=y".
func (s SourceLocation) BaseName() string {
	u := s.url
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimSuffix(u, "/")
	if i := strings.LastIndexAny(u, "/:"); i >= 0 {
		u = u[i+1:]
	}
	return strings.TrimSuffix(u, path.Ext(u))
}
