// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func build(t *testing.T, c *ErrorContext) *ActionableError {
	t.Helper()
	var ae *ActionableError
	if !errors.As(c.BuildError(), &ae) {
		t.Fatal("BuildError() did not return an *ActionableError")
	}
	return ae
}

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	cause := errors.New("zip: not a valid zip file")
	tests := []struct {
		name string
		ctx  *ErrorContext
		want string
	}{
		{
			name: "operation only",
			ctx:  NewErrorContext().WithOperation("resolve dependencies"),
			want: "failed to resolve dependencies",
		},
		{
			name: "with resource",
			ctx:  NewErrorContext().WithOperation("find module").WithResource("shop"),
			want: "failed to find module: shop",
		},
		{
			name: "with resource and cause",
			ctx:  NewErrorContext().WithOperation("transform archive").WithResource("war:file:///srv/shop.war").Wrap(cause),
			want: "failed to transform archive: war:file:///srv/shop.war: zip: not a valid zip file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.ctx.BuildError().Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("no manifest")
	err := NewErrorContext().WithOperation("transform archive").Wrap(fmt.Errorf("reading: %w", cause)).BuildError()
	if !errors.Is(err, cause) {
		t.Error("errors.Is does not reach the cause")
	}
	if build(t, NewErrorContext().WithOperation("x")).Unwrap() != nil {
		t.Error("Unwrap() without a cause should be nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	root := errors.New("unexpected EOF")
	ae := build(t, NewErrorContext().
		WithOperation("transform archive").
		WithResource("war:file:///srv/shop.war").
		WithSuggestion("Check that the URL points at a .war or .jar file").
		WithSuggestion("Rebuild the archive").
		Wrap(fmt.Errorf("read central directory: %w", root)))

	quiet := ae.Format(false)
	for _, want := range []string{
		"failed to transform archive: war:file:///srv/shop.war",
		"\n  • Check that the URL points at a .war or .jar file",
		"\n  • Rebuild the archive",
	} {
		if !strings.Contains(quiet, want) {
			t.Errorf("Format(false) lacks %q:\n%s", want, quiet)
		}
	}
	if strings.Contains(quiet, "Error chain") {
		t.Errorf("Format(false) shows the chain:\n%s", quiet)
	}

	loud := ae.Format(true)
	for _, want := range []string{
		"Error chain:",
		"\n  1. read central directory: unexpected EOF",
		"\n  2. unexpected EOF",
	} {
		if !strings.Contains(loud, want) {
			t.Errorf("Format(true) lacks %q:\n%s", want, loud)
		}
	}
}

func TestActionableError_FormatJoinedCauses(t *testing.T) {
	t.Parallel()

	addr := fmt.Errorf("serve.addr: %w", errors.New("missing port"))
	level := errors.New("log_level: unknown level")
	ae := build(t, NewErrorContext().
		WithOperation("validate configuration").
		Wrap(errors.Join(addr, level)))

	got := ae.Format(true)
	for _, want := range []string{
		"\n    2. serve.addr: missing port",
		"\n    3. missing port",
		"\n    2. log_level: unknown level",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Format(true) lacks %q:\n%s", want, got)
		}
	}
}

func TestErrorContext_BuildError(t *testing.T) {
	t.Parallel()

	if err := NewErrorContext().WithResource("shop").Wrap(errors.New("x")).BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}
	if build(t, NewErrorContext().WithOperation("x")).HasSuggestions() {
		t.Error("HasSuggestions() without suggestions")
	}
	if !build(t, NewErrorContext().WithOperation("x").WithSuggestion("y")).HasSuggestions() {
		t.Error("HasSuggestions() with a suggestion")
	}
}

func TestErrorContext_Reuse(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().
		WithOperation("load module repository").
		WithResource("/srv/bundles").
		WithSuggestion("Pass the module directory with --repo")

	first := build(t, ctx.Wrap(errors.New("permission denied")))
	second := build(t, ctx.WithSuggestion("Check the directory permissions").Wrap(errors.New("not a directory")))

	if first.Cause.Error() == second.Cause.Error() {
		t.Error("causes are shared between built errors")
	}
	if len(first.Suggestions) != 1 || len(second.Suggestions) != 2 {
		t.Errorf("suggestions = %v and %v", first.Suggestions, second.Suggestions)
	}
	if first.Operation != second.Operation || first.Resource != second.Resource {
		t.Error("operation or resource lost on reuse")
	}
}

func TestErrorContext_WithIssue(t *testing.T) {
	t.Parallel()

	ae := build(t, NewErrorContext().
		WithOperation("transform archive").
		WithIssue(ManifestInvalidId).
		Wrap(errors.New("no manifest")))

	if ae.Issue != ManifestInvalidId {
		t.Errorf("Issue = %d, want %d", ae.Issue, ManifestInvalidId)
	}
	if Get(ae.Issue) == nil {
		t.Error("linked issue is not registered")
	}
	if build(t, NewErrorContext().WithOperation("x")).Issue != 0 {
		t.Error("Issue should default to zero")
	}
}
