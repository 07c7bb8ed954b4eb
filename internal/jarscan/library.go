// SPDX-License-Identifier: MPL-2.0

package jarscan

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/wabkit/wabkit/internal/locator"
	"github.com/wabkit/wabkit/internal/metrics"
	"github.com/wabkit/wabkit/pkg/jarurl"
)

// LibraryDir holds the libraries packed inside a web application.
const LibraryDir = "WEB-INF/lib"

// LibraryScanner visits the jars under WEB-INF/lib of the module bound to a
// class loader. Packed libraries are read from the enclosing archive.
type LibraryScanner struct {
	scanOptions
	loc    LocationResolver
	fs     afero.Fs
	opener *jarurl.Opener
}

// NewLibraryScanner creates a LibraryScanner. Exploded modules are read from
// fsys; archives are opened through opener.
func NewLibraryScanner(loc LocationResolver, fsys afero.Fs, opener *jarurl.Opener, opts ...Option) *LibraryScanner {
	return &LibraryScanner{scanOptions: newScanOptions(opts), loc: loc, fs: fsys, opener: opener}
}

// Scan implements Scanner. A library that cannot be read is logged and
// counted as failed; a module without libraries yields an empty report.
func (s *LibraryScanner) Scan(loader ClassLoader, cb Callback, skip SkipSet) Report {
	if loader == nil {
		return Report{}
	}
	root, ok := loader.Module()
	if !ok {
		return Report{}
	}

	loc := s.loc.Resolve(root)
	var (
		report Report
		err    error
	)
	switch loc.Kind {
	case locator.Directory:
		report, err = s.scanDirectory(filepath.Join(loc.Path, filepath.FromSlash(LibraryDir)), cb, skip)
	case locator.ArchiveFile:
		var fileURL string
		if fileURL, err = jarurl.FileURL(loc.Path); err == nil {
			report, err = s.scanArchive(jarurl.Build(fileURL, ""), cb, skip)
		}
	default:
		if root.Location() == "" {
			return Report{}
		}
		report, err = s.scanArchive(jarurl.Build(root.Location(), ""), cb, skip)
	}
	if err != nil {
		s.logger.Warn("failed to list libraries", "module", root.String(), "error", err)
		report.Failed++
	}
	return report
}

func (s *LibraryScanner) scanDirectory(dir string, cb Callback, skip SkipSet) (Report, error) {
	var report Report
	infos, err := afero.ReadDir(s.fs, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return report, nil
	}
	if err != nil {
		return report, err
	}
	for _, info := range infos {
		if info.IsDir() || !isLibrary(info.Name()) {
			continue
		}
		jar := filepath.Join(dir, info.Name())
		s.visit(&report, info.Name(), skip, func() error {
			fileURL, err := jarurl.FileURL(jar)
			if err != nil {
				return err
			}
			return scanURL(s.opener, jarurl.Build(fileURL, ""), cb)
		})
	}
	return report, nil
}

func (s *LibraryScanner) scanArchive(raw string, cb Callback, skip SkipSet) (report Report, err error) {
	conn, err := s.opener.Open(raw)
	if err != nil {
		return report, err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	archive, ok := conn.(*jarurl.ArchiveConnection)
	if !ok {
		return report, nil
	}

	for _, name := range archive.Entries() {
		rest, ok := strings.CutPrefix(name, LibraryDir+"/")
		if !ok || strings.Contains(rest, "/") || !isLibrary(rest) {
			continue
		}
		s.visit(&report, rest, skip, func() (err error) {
			nested, err := archive.OpenArchive(name)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := nested.Close(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()
			if err := cb.ScanArchive(nested); err != nil {
				return fmt.Errorf("failed to scan %s: %w", nested.URL(), err)
			}
			return nil
		})
	}
	return report, nil
}

func (s *LibraryScanner) visit(report *Report, base string, skip SkipSet, scan func() error) {
	kind := locator.ArchiveFile.String()
	if skippedFile(base, skip) {
		s.logger.Debug("skipping library", "library", base)
		s.metrics.ModuleScanned(kind, metrics.OutcomeSkipped)
		report.Skipped++
		return
	}
	if err := scan(); err != nil {
		s.logger.Warn("failed to scan library", "library", base, "error", err)
		s.metrics.ModuleScanned(kind, metrics.OutcomeError)
		report.Failed++
		return
	}
	s.metrics.ModuleScanned(kind, metrics.OutcomeSuccess)
	report.Scanned++
}

func isLibrary(name string) bool {
	return strings.EqualFold(path.Ext(name), ".jar")
}
