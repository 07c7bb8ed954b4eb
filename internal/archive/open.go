// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/wabkit/wabkit/pkg/warurl"
)

// Spill is a transformed archive held in a private spill file. Closing it
// removes the file.
type Spill struct {
	afero.File
	fs    afero.Fs
	size  int64
	stats Stats
}

// Size returns the length of the transformed archive.
func (s *Spill) Size() int64 { return s.size }

// Stats returns what the transform pass did.
func (s *Spill) Stats() Stats { return s.stats }

// Close closes and removes the spill file.
func (s *Spill) Close() error {
	name := s.Name()
	closeErr := s.File.Close()
	removeErr := s.fs.Remove(name)
	return errors.Join(closeErr, removeErr)
}

// Open transforms the archive named by a deployment URL and returns the
// result positioned at its start. On error no spill file is left behind.
func (t *Transformer) Open(rawURL string) (*Spill, error) {
	f, stats, err := t.spill(rawURL, t.spillDir, "wabkit-*.jar")
	if err != nil {
		return nil, err
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		t.discard(f)
		return nil, fmt.Errorf("failed to rewind spill file: %w", err)
	}
	return &Spill{File: f, fs: t.fs, size: size, stats: stats}, nil
}

// WriteFile transforms the archive named by a deployment URL into outPath.
// The output is written next to outPath and renamed into place, so outPath
// is either left untouched or holds the complete archive.
func (t *Transformer) WriteFile(rawURL, outPath string) (Stats, error) {
	f, stats, err := t.spill(rawURL, filepath.Dir(outPath), ".wabkit-*.tmp")
	if err != nil {
		return stats, err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = t.fs.Remove(name)
		return stats, fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := t.fs.Rename(name, outPath); err != nil {
		_ = t.fs.Remove(name)
		return stats, fmt.Errorf("failed to publish %s: %w", outPath, err)
	}
	t.logger.Info("wrote web application bundle", "source", rawURL, "output", outPath)
	return stats, nil
}

// spill transforms the archive named by rawURL into a new temporary file.
func (t *Transformer) spill(rawURL, dir, pattern string) (afero.File, Stats, error) {
	u, err := warurl.Parse(rawURL)
	if err != nil {
		return nil, Stats{}, err
	}
	src, err := t.opener.OpenSource(u.Source)
	if err != nil {
		return nil, Stats{}, err
	}
	defer func() { _ = src.Close() }()

	f, err := afero.TempFile(t.fs, dir, pattern)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to create spill file: %w", err)
	}
	opts := u.Options
	if t.defaults {
		opts = opts.WithDefaultWABHeaders(true)
	}
	stats, err := t.Transform(f, src, src.Size(), u.Source, opts)
	if err != nil {
		t.discard(f)
		return nil, stats, err
	}
	return f, stats, nil
}

func (t *Transformer) discard(f afero.File) {
	name := f.Name()
	_ = f.Close()
	if err := t.fs.Remove(name); err != nil {
		t.logger.Warn("failed to remove spill file", "path", name, "error", err)
	}
}
