// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	// maxLineBytes is the longest encoded line, line terminator excluded.
	maxLineBytes = 72
	// maxNameBytes is the longest header name the format allows.
	maxNameBytes = 70
	// sectionNameHeader introduces a named section.
	sectionNameHeader = "Name"
)

var (
	// ErrMalformedManifest is the sentinel error wrapped by ParseError.
	ErrMalformedManifest = errors.New("malformed manifest")
	// ErrInvalidHeader is returned when a header cannot be encoded.
	ErrInvalidHeader = errors.New("invalid manifest header")
)

type (
	// Manifest is a parsed manifest: main headers plus named sections.
	Manifest struct {
		Main     Headers
		Sections []Section
	}

	// Section is a named per-entry section.
	Section struct {
		Name    string
		Headers Headers
	}

	// ParseError describes where a manifest could not be parsed.
	// It wraps ErrMalformedManifest for errors.Is() compatibility.
	ParseError struct {
		Line   int
		Reason string
	}
)

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed manifest at line %d: %s", e.Line, e.Reason)
}

// Unwrap returns ErrMalformedManifest for errors.Is() compatibility.
func (e *ParseError) Unwrap() error { return ErrMalformedManifest }

// Parse reads a manifest. CRLF, LF and CR line endings are accepted and the
// final line does not need a terminator.
func Parse(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m := &Manifest{}
	current := &m.Main
	var section *Section
	var lastName string

	flush := func() {
		if section != nil {
			m.Sections = append(m.Sections, *section)
			section = nil
		}
	}

	for i, line := range splitLines(data) {
		lineNo := i + 1
		if line == "" {
			flush()
			current = nil
			lastName = ""
			continue
		}

		if line[0] == ' ' {
			if lastName == "" || current == nil {
				return nil, &ParseError{Line: lineNo, Reason: "continuation line without a header"}
			}
			current.Set(lastName, current.Get(lastName)+line[1:])
			continue
		}

		name, value, err := splitHeader(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Reason: err.Error()}
		}

		if current == nil {
			if !strings.EqualFold(name, sectionNameHeader) {
				return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("section must start with %q, got %q", sectionNameHeader, name)}
			}
			// The name is kept as a header until the section is complete so
			// that continuation lines fold into it.
			section = &Section{}
			current = &section.Headers
			current.Set(sectionNameHeader, value)
			lastName = sectionNameHeader
			continue
		}

		// A repeated header keeps its first position and takes the last value.
		current.Set(name, value)
		lastName = name
	}
	flush()

	for i := range m.Sections {
		s := &m.Sections[i]
		s.Name = s.Headers.Get(sectionNameHeader)
		s.Headers.Delete(sectionNameHeader)
	}

	return m, nil
}

// WriteTo encodes the manifest. Manifest-Version is always written first,
// defaulting to DefaultManifestVersion when absent.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer

	version := m.Main.Get(ManifestVersion)
	if version == "" {
		version = DefaultManifestVersion
	}
	if err := writeHeader(&buf, ManifestVersion, version); err != nil {
		return 0, err
	}
	for _, h := range m.Main.entries {
		if strings.EqualFold(h.Name, ManifestVersion) {
			continue
		}
		if err := writeHeader(&buf, h.Name, h.Value); err != nil {
			return 0, err
		}
	}
	buf.WriteString("\r\n")

	for _, s := range m.Sections {
		if err := writeHeader(&buf, sectionNameHeader, s.Name); err != nil {
			return 0, err
		}
		for _, h := range s.Headers.entries {
			if err := writeHeader(&buf, h.Name, h.Value); err != nil {
				return 0, err
			}
		}
		buf.WriteString("\r\n")
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Bytes returns the encoded manifest.
func (m *Manifest) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ValidName reports whether name is a legal header name.
func ValidName(name string) bool {
	if name == "" || len(name) > maxNameBytes {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func splitHeader(line string) (name, value string, err error) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", fmt.Errorf("missing ':' in %q", line)
	}
	name = line[:i]
	if !ValidName(name) {
		return "", "", fmt.Errorf("invalid header name %q", name)
	}
	rest := line[i+1:]
	if rest == "" {
		return name, "", nil
	}
	if rest[0] != ' ' {
		return "", "", fmt.Errorf("header %q: expected a space after ':'", name)
	}
	return name, rest[1:], nil
}

// writeHeader encodes one header, folding at maxLineBytes without splitting
// a UTF-8 sequence across lines.
func writeHeader(buf *bytes.Buffer, name, value string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: name %q", ErrInvalidHeader, name)
	}
	if strings.ContainsAny(value, "\r\n\x00") {
		return fmt.Errorf("%w: value of %q contains a line break or NUL", ErrInvalidHeader, name)
	}

	line := name + ": " + value
	limit := maxLineBytes
	// The first fold may not fall inside "name: ".
	floor := len(name) + 2
	for len(line) > limit {
		cut := limit
		for cut > floor && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 || !utf8.RuneStart(line[cut]) {
			// No rune boundary in reach: the value is not valid UTF-8.
			cut = limit
		}
		buf.WriteString(line[:cut])
		buf.WriteString("\r\n ")
		line = line[cut:]
		// Continuation lines carry a leading space.
		limit = maxLineBytes - 1
		floor = 0
	}
	buf.WriteString(line)
	buf.WriteString("\r\n")
	return nil
}

func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\n':
			lines = append(lines, string(data[start:i]))
			start = i + 1
		case '\r':
			lines = append(lines, string(data[start:i]))
			if i+1 < len(data) && data[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}
