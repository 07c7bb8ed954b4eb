// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// ArchiveModTime is the modification time given to entries that do not set
// one.
var ArchiveModTime = time.Date(2020, time.January, 2, 3, 4, 6, 0, time.UTC)

// Entry describes one archive entry for BuildArchive.
type Entry struct {
	Name     string
	Data     []byte
	Method   uint16
	Modified time.Time
	Comment  string
}

// StoredEntry returns an uncompressed entry.
func StoredEntry(name, data string) Entry {
	return Entry{Name: name, Data: []byte(data), Method: zip.Store}
}

// DeflatedEntry returns a deflated entry.
func DeflatedEntry(name, data string) Entry {
	return Entry{Name: name, Data: []byte(data), Method: zip.Deflate}
}

// BuildArchive returns a zip archive holding entries in order.
// The test fails immediately if writing fails.
func BuildArchive(t testing.TB, entries ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		modified := e.Modified
		if modified.IsZero() {
			modified = ArchiveModTime
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   e.Method,
			Modified: modified,
			Comment:  e.Comment,
		})
		if err != nil {
			t.Fatalf("failed to create entry %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("failed to write entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish archive: %v", err)
	}
	return buf.Bytes()
}

// WriteArchive writes an archive of entries to path on fs.
func WriteArchive(t testing.TB, fs afero.Fs, path string, entries ...Entry) {
	t.Helper()
	MustWriteFile(t, fs, path, BuildArchive(t, entries...))
}

// OpenArchive parses data as a zip archive.
// The test fails immediately if the archive is unreadable.
func OpenArchive(t testing.TB, data []byte) *zip.Reader {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("failed to read archive: %v", err)
	}
	return zr
}

// ReadEntry returns the uncompressed content of f.
func ReadEntry(t testing.TB, f *zip.File) []byte {
	t.Helper()
	rc, err := f.Open()
	if err != nil {
		t.Fatalf("failed to open entry %s: %v", f.Name, err)
	}
	defer DeferClose(t, rc)()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("failed to read entry %s: %v", f.Name, err)
	}
	return data
}

// RawEntry returns the stored (possibly compressed) bytes of f.
func RawEntry(t testing.TB, f *zip.File) []byte {
	t.Helper()
	r, err := f.OpenRaw()
	if err != nil {
		t.Fatalf("failed to open raw entry %s: %v", f.Name, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read raw entry %s: %v", f.Name, err)
	}
	return data
}
