// SPDX-License-Identifier: MPL-2.0

// Package module defines the plain value used to describe an installed
// module and the classification of web modules.
package module

import (
	"github.com/wabkit/wabkit/pkg/manifest"
)

type (
	// Module is an installed module: an identity, an opaque content location
	// and a snapshot of its manifest headers. Module values are immutable;
	// Headers returns a copy.
	Module struct {
		id           string
		symbolicName string
		location     string
		headers      manifest.Headers
	}

	// Classifier decides whether headers describe a web module.
	Classifier interface {
		IsWebModule(headers manifest.Headers) bool
	}

	// ClassifierFunc adapts a function to Classifier.
	ClassifierFunc func(headers manifest.Headers) bool
)

// ContextPathClassifier treats any module with a Web-ContextPath header as a
// web module.
var ContextPathClassifier Classifier = ClassifierFunc(func(headers manifest.Headers) bool {
	return headers.Has(manifest.WebContextPath)
})

// IsWebModule implements Classifier.
func (f ClassifierFunc) IsWebModule(headers manifest.Headers) bool { return f(headers) }

// New creates a Module identified by its location. The symbolic name is
// taken from the first Bundle-SymbolicName clause.
func New(location string, headers manifest.Headers) Module {
	return NewWithID(location, location, headers)
}

// NewWithID creates a Module with an explicit identity.
func NewWithID(id, location string, headers manifest.Headers) Module {
	return Module{
		id:           id,
		symbolicName: SymbolicName(headers),
		location:     location,
		headers:      headers.Clone(),
	}
}

// SymbolicName returns the symbolic name declared by headers, without
// parameters, or "" when none is declared.
func SymbolicName(headers manifest.Headers) string {
	clauses := manifest.ParseClauses(headers.Get(manifest.BundleSymbolicName))
	if len(clauses) == 0 {
		return ""
	}
	return clauses[0].Paths[0]
}

// Key is the identity used for visited sets and association maps: the
// explicit ID, else the location, else the symbolic name.
func (m Module) Key() string {
	switch {
	case m.id != "":
		return m.id
	case m.location != "":
		return m.location
	default:
		return m.symbolicName
	}
}

// SymbolicName returns the module's symbolic name, possibly "".
func (m Module) SymbolicName() string { return m.symbolicName }

// Location returns the opaque location string the module was installed from.
func (m Module) Location() string { return m.location }

// Headers returns a copy of the module's manifest headers.
func (m Module) Headers() manifest.Headers { return m.headers.Clone() }

// Header returns a single header value.
func (m Module) Header(name string) string { return m.headers.Get(name) }

// String returns a short description for logs.
func (m Module) String() string {
	if m.symbolicName != "" && m.symbolicName != m.Key() {
		return m.symbolicName + " (" + m.Key() + ")"
	}
	return m.Key()
}
