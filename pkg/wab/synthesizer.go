// SPDX-License-Identifier: MPL-2.0

package wab

import (
	"errors"
	"fmt"

	"github.com/wabkit/wabkit/pkg/manifest"
	"github.com/wabkit/wabkit/pkg/module"
)

// DefaultWABHeadersMarker is the manifest header that requests default web
// application headers regardless of the installation options.
const DefaultWABHeadersMarker = "SpringSource-DefaultWABHeaders"

// ErrTransform is the sentinel error wrapped by TransformError.
var ErrTransform = errors.New("manifest transformation failed")

type (
	// HeaderTransformer rewrites the headers of a module being installed.
	// Implementations may add or replace headers in place. Any error aborts
	// the installation.
	HeaderTransformer interface {
		Transform(headers *manifest.Headers, source SourceLocation, options InstallationOptions, webModule bool) error
	}

	// HeaderTransformerFunc adapts a function to HeaderTransformer.
	HeaderTransformerFunc func(headers *manifest.Headers, source SourceLocation, options InstallationOptions, webModule bool) error

	// Synthesizer produces the manifest headers of an installable module from
	// the headers of a plain web archive.
	Synthesizer struct {
		transformer HeaderTransformer
		classifier  module.Classifier
	}

	// SynthesizerOption configures a Synthesizer.
	SynthesizerOption func(*Synthesizer)

	// TransformError reports a failed header transformation. errors.Is
	// matches both ErrTransform and the transformer's own error.
	TransformError struct {
		Source string
		Cause  error
	}
)

// Transform implements HeaderTransformer.
func (f HeaderTransformerFunc) Transform(headers *manifest.Headers, source SourceLocation, options InstallationOptions, webModule bool) error {
	return f(headers, source, options, webModule)
}

// Error implements the error interface for TransformError.
func (e *TransformError) Error() string {
	return fmt.Sprintf("failed to transform manifest of %s: %v", e.Source, e.Cause)
}

// Unwrap exposes ErrTransform and the underlying cause.
func (e *TransformError) Unwrap() []error { return []error{ErrTransform, e.Cause} }

// WithClassifier replaces the web module classifier.
func WithClassifier(c module.Classifier) SynthesizerOption {
	return func(s *Synthesizer) {
		s.classifier = c
	}
}

// NewSynthesizer creates a Synthesizer around transformer. Web modules are
// classified with module.ContextPathClassifier unless overridden.
func NewSynthesizer(transformer HeaderTransformer, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		transformer: transformer,
		classifier:  module.ContextPathClassifier,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize returns the rewritten headers. The given headers and options
// are not modified, so identical inputs always give identical output.
func (s *Synthesizer) Synthesize(headers manifest.Headers, options InstallationOptions, source SourceLocation) (manifest.Headers, error) {
	out := headers.Clone()

	webModule := s.classifier.IsWebModule(out)
	if out.Has(DefaultWABHeadersMarker) {
		options = options.WithDefaultWABHeaders(true)
	}

	if err := s.transformer.Transform(&out, source, options, webModule); err != nil {
		return manifest.Headers{}, &TransformError{Source: source.URL(), Cause: err}
	}
	return out, nil
}
