// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"slices"
	"testing"
)

func TestParseClauses(t *testing.T) {
	t.Parallel()

	value := `javax.servlet;version="[2.5,4.0)";resolution:=optional, org.example.a;org.example.b;bundle-version=1.0 ,,`
	clauses := ParseClauses(value)
	if len(clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d: %+v", len(clauses), clauses)
	}

	first := clauses[0]
	if !slices.Equal(first.Paths, []string{"javax.servlet"}) {
		t.Errorf("first.Paths = %v", first.Paths)
	}
	if v, ok := first.Attribute("version"); !ok || v != "[2.5,4.0)" {
		t.Errorf("version attribute = %q, %v", v, ok)
	}
	if v, ok := first.Directive("resolution"); !ok || v != "optional" {
		t.Errorf("resolution directive = %q, %v", v, ok)
	}

	second := clauses[1]
	if !slices.Equal(second.Paths, []string{"org.example.a", "org.example.b"}) {
		t.Errorf("second.Paths = %v", second.Paths)
	}
	if _, ok := second.Directive("resolution"); ok {
		t.Error("unexpected resolution directive on second clause")
	}
}

func TestFormatClauses_RoundTrip(t *testing.T) {
	t.Parallel()

	clauses := []Clause{
		{Paths: []string{"javax.servlet"}, Attributes: []Param{{Key: "version", Value: "[2.5,4.0)"}}, Directives: []Param{{Key: "resolution", Value: "optional"}}},
		{Paths: []string{"WEB-INF/classes"}},
	}
	value := FormatClauses(clauses)
	want := `javax.servlet;version="[2.5,4.0)";resolution:=optional,WEB-INF/classes`
	if value != want {
		t.Errorf("FormatClauses() = %q, want %q", value, want)
	}

	parsed := ParseClauses(value)
	if len(parsed) != 2 || parsed[0].String() != clauses[0].String() || parsed[1].String() != clauses[1].String() {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
}

func TestParseClauses_Empty(t *testing.T) {
	t.Parallel()

	if got := ParseClauses("  "); len(got) != 0 {
		t.Errorf("expected no clauses, got %+v", got)
	}
}
