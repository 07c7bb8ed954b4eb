// SPDX-License-Identifier: MPL-2.0

// Package locator maps a module to where its content can be read from: an
// exploded directory, a packed archive file, or neither.
package locator

import (
	"github.com/spf13/afero"

	"github.com/wabkit/wabkit/pkg/module"
)

// Kind classifies a resolved location.
type Kind int

const (
	// Unresolved means the module has no local file; its opaque location
	// must be used instead.
	Unresolved Kind = iota
	// Directory is an exploded module directory.
	Directory
	// ArchiveFile is a packed archive on the local file system.
	ArchiveFile
)

type (
	// Location is the resolved content location of a module.
	Location struct {
		Kind Kind
		// Path is empty when Kind is Unresolved.
		Path string
	}

	// FileResolver maps a module to a local path, if it has one.
	FileResolver interface {
		Resolve(m module.Module) (path string, ok bool)
	}

	// FileResolverFunc adapts a function to FileResolver.
	FileResolverFunc func(m module.Module) (string, bool)

	// Locator resolves module content locations. It holds no mutable state
	// and is safe for concurrent use.
	Locator struct {
		files FileResolver
		fs    afero.Fs
	}
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case ArchiveFile:
		return "archive"
	default:
		return "unresolved"
	}
}

// Resolve implements FileResolver.
func (f FileResolverFunc) Resolve(m module.Module) (string, bool) { return f(m) }

// New creates a Locator that asks files for a path and checks it on fs.
// A nil files resolves every module to Unresolved.
func New(files FileResolver, fs afero.Fs) *Locator {
	return &Locator{files: files, fs: fs}
}

// Resolve returns the module's Directory or ArchiveFile when the file
// resolver knows a path that exists, and Unresolved otherwise.
func (l *Locator) Resolve(m module.Module) Location {
	if l.files == nil {
		return Location{Kind: Unresolved}
	}
	path, ok := l.files.Resolve(m)
	if !ok || path == "" {
		return Location{Kind: Unresolved}
	}
	info, err := l.fs.Stat(path)
	if err != nil {
		return Location{Kind: Unresolved}
	}
	if info.IsDir() {
		return Location{Kind: Directory, Path: path}
	}
	return Location{Kind: ArchiveFile, Path: path}
}
