// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"fmt"
	"strings"
)

type (
	// ActionableError is a user-facing error: the operation that failed, the
	// archive, module or file it failed on, and what the user can do next.
	// Build one with NewErrorContext:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("transform archive").
	//		WithResource("war:file:///srv/shop.war").
	//		WithIssue(issue.ManifestInvalidId).
	//		WithSuggestion("Check that the archive has a META-INF/MANIFEST.MF entry").
	//		Wrap(err).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "transform archive".
		Operation string
		// Resource names the URL, module or file involved, if any.
		Resource    string
		Suggestions []string
		Cause       error
		// Issue links the error to longer guidance, see Get.
		Issue Id
	}

	// ErrorContext collects the parts of an ActionableError.
	ErrorContext struct {
		err ActionableError
	}
)

// NewErrorContext starts an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error returns "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the cause.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format returns the message followed by the suggestions as a bullet list.
// With verbose set the causes are listed too, one per line; joined errors
// are expanded and indented under the error that joined them.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if e.HasSuggestions() {
		b.WriteString("\n")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • " + s)
		}
	}
	if verbose && e.Cause != nil {
		b.WriteString("\n\nError chain:")
		writeChain(&b, e.Cause, 1, "  ")
	}
	return b.String()
}

// HasSuggestions reports whether the error carries suggestions.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// writeChain lists err and its causes from depth on, numbering each level.
func writeChain(b *strings.Builder, err error, depth int, indent string) {
	for err != nil {
		fmt.Fprintf(b, "\n%s%d. %s", indent, depth, err.Error())
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				writeChain(b, inner, depth+1, indent+"  ")
			}
			return
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return
		}
		depth++
	}
}

// WithOperation sets the operation, a verb phrase such as "load module
// repository". It is required.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.err.Operation = op
	return c
}

// WithResource sets the URL, module or file involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.err.Resource = res
	return c
}

// WithSuggestion appends a suggestion.
func (c *ErrorContext) WithSuggestion(s string) *ErrorContext {
	c.err.Suggestions = append(c.err.Suggestions, s)
	return c
}

// WithIssue links the error to the guidance of an Issue.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.err.Issue = id
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.err.Cause = err
	return c
}

// BuildError returns the collected *ActionableError, or nil when no
// operation was set. The context can keep being used afterwards.
func (c *ErrorContext) BuildError() error {
	if c.err.Operation == "" {
		return nil
	}
	ae := c.err
	ae.Suggestions = append([]string(nil), c.err.Suggestions...)
	return &ae
}
