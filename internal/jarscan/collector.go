// SPDX-License-Identifier: MPL-2.0

package jarscan

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/wabkit/wabkit/pkg/jarurl"
)

// TLDSuffix is the file suffix of tag library descriptors.
const TLDSuffix = ".tld"

// SuffixCollector is a Callback that records every file whose name ends in
// a suffix. Directory hits are recorded as paths, archive hits as jar URLs.
type SuffixCollector struct {
	fs     afero.Fs
	suffix string
	found  []string
}

// NewSuffixCollector creates a collector for suffix, matched
// case-insensitively. Directories are walked on fsys.
func NewSuffixCollector(fsys afero.Fs, suffix string) *SuffixCollector {
	return &SuffixCollector{fs: fsys, suffix: strings.ToLower(suffix)}
}

// ScanDirectory implements Callback.
func (c *SuffixCollector) ScanDirectory(root string) error {
	return afero.Walk(c.fs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && c.matches(path) {
			c.found = append(c.found, filepath.ToSlash(path))
		}
		return nil
	})
}

// ScanArchive implements Callback.
func (c *SuffixCollector) ScanArchive(conn *jarurl.ArchiveConnection) error {
	for _, name := range conn.Entries() {
		if !strings.HasSuffix(name, "/") && c.matches(name) {
			// The connection URL ends in the separator, nested or not.
			c.found = append(c.found, conn.URL()+name)
		}
	}
	return nil
}

// Found returns the matches in the order they were seen.
func (c *SuffixCollector) Found() []string {
	return append([]string(nil), c.found...)
}

func (c *SuffixCollector) matches(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), c.suffix)
}
