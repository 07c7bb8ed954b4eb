// SPDX-License-Identifier: MPL-2.0

package jarurl

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

type (
	// Source is an opened archive location: random access to its bytes and
	// its size.
	Source interface {
		io.ReaderAt
		io.Closer
		Size() int64
	}

	// Handler opens locations of one URL scheme.
	Handler interface {
		Open(location string) (Source, error)
	}

	// HandlerFunc adapts a function to Handler.
	HandlerFunc func(location string) (Source, error)

	// Connection is an open jar URL.
	Connection interface {
		URL() string
		Close() error
	}

	// ArchiveConnection is a connection to the root of an archive.
	ArchiveConnection struct {
		url    string
		reader *zip.Reader
		src    Source
	}

	// EntryConnection is a connection to a single entry inside an archive.
	EntryConnection struct {
		url  string
		file *zip.File
		src  Source
	}

	// Opener resolves location schemes to handlers and opens jar URLs.
	// Handlers are fixed at construction; it is safe for concurrent use.
	Opener struct {
		handlers map[string]Handler
	}

	// OpenerOption configures an Opener.
	OpenerOption func(*Opener)

	// fileHandler opens file URLs and bare paths on an afero file system.
	fileHandler struct {
		fs afero.Fs
	}

	fileSource struct {
		afero.File
		size int64
	}

	memSource struct {
		*bytes.Reader
	}
)

// Open implements Handler.
func (f HandlerFunc) Open(location string) (Source, error) { return f(location) }

// WithHandler registers h for scheme.
func WithHandler(scheme string, h Handler) OpenerOption {
	return func(o *Opener) {
		o.handlers[strings.ToLower(scheme)] = h
	}
}

// NewOpener creates an Opener whose "file" scheme reads from fs.
func NewOpener(fs afero.Fs, opts ...OpenerOption) *Opener {
	o := &Opener{handlers: map[string]Handler{"file": fileHandler{fs: fs}}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Schemes returns the registered schemes in sorted order.
func (o *Opener) Schemes() []string {
	return slices.Sorted(maps.Keys(o.handlers))
}

// OpenSource opens an archive location through the handler for its scheme.
func (o *Opener) OpenSource(location string) (Source, error) {
	scheme := schemeOf(location)
	h, ok := o.handlers[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s (location %q, supported: %s)",
			ErrUnsupportedScheme, scheme, location, strings.Join(o.Schemes(), ", "))
	}
	src, err := h.Open(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", location, err)
	}
	return src, nil
}

// Open opens a jar URL. A URL ending in the separator yields an
// *ArchiveConnection; any other entry yields an *EntryConnection.
func (o *Opener) Open(raw string) (Connection, error) {
	u, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	src, err := o.OpenSource(u.Location)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(src, src.Size())
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to read archive %q: %w", u.Location, err)
	}

	if u.Entry == "" {
		return &ArchiveConnection{url: raw, reader: zr, src: src}, nil
	}
	for _, f := range zr.File {
		if f.Name == u.Entry {
			return &EntryConnection{url: raw, file: f, src: src}, nil
		}
	}
	_ = src.Close()
	return nil, fmt.Errorf("%w: %q in %q", ErrEntryNotFound, u.Entry, u.Location)
}

// URL returns the jar URL of the connection.
func (c *ArchiveConnection) URL() string { return c.url }

// Reader returns the archive's central directory.
func (c *ArchiveConnection) Reader() *zip.Reader { return c.reader }

// Entries returns the entry names in archive order.
func (c *ArchiveConnection) Entries() []string {
	names := make([]string, 0, len(c.reader.File))
	for _, f := range c.reader.File {
		names = append(names, f.Name)
	}
	return names
}

// OpenEntry opens the named entry for reading.
func (c *ArchiveConnection) OpenEntry(name string) (io.ReadCloser, error) {
	return c.reader.Open(name)
}

// Close releases the underlying source.
func (c *ArchiveConnection) Close() error { return c.src.Close() }

// OpenArchive opens the archive stored in the named entry, such as a
// library under WEB-INF/lib. The nested archive is read into memory; its
// URL is the entry URL followed by the separator.
func (c *ArchiveConnection) OpenArchive(name string) (*ArchiveConnection, error) {
	rc, err := c.reader.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}
	src := memSource{bytes.NewReader(data)}
	zr, err := zip.NewReader(src, src.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read nested archive %q: %w", name, err)
	}
	return &ArchiveConnection{url: c.url + name + Separator, reader: zr, src: src}, nil
}

// URL returns the jar URL of the connection.
func (c *EntryConnection) URL() string { return c.url }

// Name returns the entry path inside the archive.
func (c *EntryConnection) Name() string { return c.file.Name }

// Open opens the entry's content for reading.
func (c *EntryConnection) Open() (io.ReadCloser, error) { return c.file.Open() }

// Close releases the underlying source.
func (c *EntryConnection) Close() error { return c.src.Close() }

func (h fileHandler) Open(location string) (Source, error) {
	path, err := FilePath(location)
	if err != nil {
		return nil, err
	}
	f, err := h.fs.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%q is a directory, not an archive", path)
	}
	return &fileSource{File: f, size: info.Size()}, nil
}

func (s *fileSource) Size() int64 { return s.size }

func (memSource) Close() error { return nil }
