// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"

	"github.com/wabkit/wabkit/internal/testutil"
	"github.com/wabkit/wabkit/pkg/manifest"
	"github.com/wabkit/wabkit/pkg/wab"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestTransformer(fs afero.Fs, opts ...Option) *Transformer {
	base := []Option{WithFs(fs), WithLogger(quietLogger())}
	return New(wab.NewSynthesizer(wab.DefaultTransformer{}), append(base, opts...)...)
}

func names(zr *zip.Reader) []string {
	out := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		out = append(out, f.Name)
	}
	return out
}

func find(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func TestTransform_EndToEnd(t *testing.T) {
	t.Parallel()

	src := testutil.BuildArchive(t,
		testutil.DeflatedEntry(ManifestName, "Manifest-Version: 1.0\r\nWeb-ContextPath: /app\r\nCreated-By: test\r\n\r\n"),
		testutil.DeflatedEntry("WEB-INF/web.xml", "<web-app/>"),
		testutil.StoredEntry("META-INF/X.SF", "signature"),
	)
	opts, err := wab.NewInstallationOptions(wab.Option{Key: manifest.WebContextPath, Value: "/app"})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	stats, err := newTestTransformer(afero.NewMemMapFs()).Transform(&out, bytes.NewReader(src), int64(len(src)), "file:/deploy/app.war", opts)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if stats != (Stats{Copied: 1, Rewritten: 1, Dropped: 1}) {
		t.Errorf("Stats = %+v", stats)
	}

	zr := testutil.OpenArchive(t, out.Bytes())
	if got, want := names(zr), []string{ManifestName, "WEB-INF/web.xml"}; !slices.Equal(got, want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}

	m, err := manifest.Parse(bytes.NewReader(testutil.ReadEntry(t, zr.File[0])))
	if err != nil {
		t.Fatalf("rewritten manifest does not parse: %v", err)
	}
	for name, want := range map[string]string{
		manifest.ManifestVersion:       "1.0",
		manifest.WebContextPath:        "/app",
		"Created-By":                   "test",
		manifest.BundleManifestVersion: "2",
		manifest.BundleSymbolicName:    "app",
	} {
		if got := m.Main.Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestTransform_CopiesEntriesVerbatim(t *testing.T) {
	t.Parallel()

	src := testutil.BuildArchive(t,
		testutil.DeflatedEntry("index.jsp", "<html>hello</html>"),
		testutil.DeflatedEntry(ManifestName, "Manifest-Version: 1.0\r\n"),
		testutil.StoredEntry("WEB-INF/lib/a.jar", "jar bytes"),
		testutil.DeflatedEntry("META-INF/sub/X.SF", "nested"),
		testutil.StoredEntry("META-INF/A.RSA", "rsa"),
		testutil.StoredEntry("META-INF/B.DSA", "dsa"),
		testutil.StoredEntry("META-INF/c.sf", "lowercase"),
	)
	var out bytes.Buffer
	stats, err := newTestTransformer(afero.NewMemMapFs()).Transform(&out, bytes.NewReader(src), int64(len(src)), "file:/x.war", wab.InstallationOptions{})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if stats.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", stats.Dropped)
	}

	in := testutil.OpenArchive(t, src)
	got := testutil.OpenArchive(t, out.Bytes())
	want := []string{"index.jsp", ManifestName, "WEB-INF/lib/a.jar", "META-INF/sub/X.SF", "META-INF/c.sf"}
	if !slices.Equal(names(got), want) {
		t.Fatalf("entries = %v, want %v", names(got), want)
	}

	for _, name := range []string{"index.jsp", "WEB-INF/lib/a.jar", "META-INF/sub/X.SF", "META-INF/c.sf"} {
		a, b := find(in, name), find(got, name)
		if !bytes.Equal(testutil.RawEntry(t, a), testutil.RawEntry(t, b)) {
			t.Errorf("%s: raw bytes differ", name)
		}
		if a.CRC32 != b.CRC32 || a.Method != b.Method || !a.Modified.Equal(b.Modified) {
			t.Errorf("%s: header changed: %+v -> %+v", name, a.FileHeader, b.FileHeader)
		}
	}

	mf := find(got, ManifestName)
	if mf.Method != zip.Deflate {
		t.Errorf("manifest method = %d, want deflate", mf.Method)
	}
	if !mf.Modified.Equal(testutil.ArchiveModTime) {
		t.Errorf("manifest modified = %v, want %v", mf.Modified, testutil.ArchiveModTime)
	}
}

func TestTransform_CompressionLevel(t *testing.T) {
	t.Parallel()

	mf := "Manifest-Version: 1.0\r\nImport-Package: " + strings.Repeat("javax.servlet.jsp,", 40) + "javax.el\r\n\r\n"
	src := testutil.BuildArchive(t, testutil.StoredEntry(ManifestName, mf))

	sizes := map[int]uint64{}
	for _, level := range []int{flate.NoCompression, flate.BestCompression} {
		var out bytes.Buffer
		if _, err := newTestTransformer(afero.NewMemMapFs(), WithCompressionLevel(level)).
			Transform(&out, bytes.NewReader(src), int64(len(src)), "file:/x.war", wab.InstallationOptions{}); err != nil {
			t.Fatalf("level %d: Transform() error = %v", level, err)
		}
		f := find(testutil.OpenArchive(t, out.Bytes()), ManifestName)
		sizes[level] = f.CompressedSize64
		if level == flate.NoCompression && f.CompressedSize64 < f.UncompressedSize64 {
			t.Errorf("level 0 compressed %d bytes to %d", f.UncompressedSize64, f.CompressedSize64)
		}
	}
	if sizes[flate.BestCompression] >= sizes[flate.NoCompression] {
		t.Errorf("compressed sizes = %v, want level 9 smaller than level 0", sizes)
	}
}

func TestTransform_ManifestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []testutil.Entry
	}{
		{"missing manifest", []testutil.Entry{testutil.StoredEntry("WEB-INF/web.xml", "<web-app/>")}},
		{"malformed manifest", []testutil.Entry{testutil.StoredEntry(ManifestName, "no colon here\r\n")}},
		{"duplicate manifest", []testutil.Entry{
			testutil.StoredEntry(ManifestName, "Manifest-Version: 1.0\r\n"),
			testutil.StoredEntry(ManifestName, "Manifest-Version: 1.0\r\n"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := testutil.BuildArchive(t, tt.entries...)
			_, err := newTestTransformer(afero.NewMemMapFs()).Transform(io.Discard, bytes.NewReader(src), int64(len(src)), "file:/x.war", wab.InstallationOptions{})
			if !errors.Is(err, ErrManifest) {
				t.Errorf("expected ErrManifest, got %v", err)
			}
		})
	}
}

func TestTransform_MalformedManifestKeepsParseError(t *testing.T) {
	t.Parallel()

	src := testutil.BuildArchive(t, testutil.StoredEntry(ManifestName, "Good: yes\r\nbad\r\n"))
	_, err := newTestTransformer(afero.NewMemMapFs()).Transform(io.Discard, bytes.NewReader(src), int64(len(src)), "file:/x.war", wab.InstallationOptions{})
	var pErr *manifest.ParseError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected *manifest.ParseError, got %v", err)
	}
	if pErr.Line != 2 {
		t.Errorf("Line = %d, want 2", pErr.Line)
	}
}

func TestTransform_TransformerErrorIsFatal(t *testing.T) {
	t.Parallel()

	cause := errors.New("rejected")
	synth := wab.NewSynthesizer(wab.HeaderTransformerFunc(func(*manifest.Headers, wab.SourceLocation, wab.InstallationOptions, bool) error {
		return cause
	}))
	tr := New(synth, WithFs(afero.NewMemMapFs()), WithLogger(quietLogger()))

	src := testutil.BuildArchive(t, testutil.StoredEntry(ManifestName, "Manifest-Version: 1.0\r\n"))
	_, err := tr.Transform(io.Discard, bytes.NewReader(src), int64(len(src)), "file:/x.war", wab.InstallationOptions{})
	if !errors.Is(err, wab.ErrTransform) || !errors.Is(err, cause) {
		t.Errorf("expected transformer error, got %v", err)
	}
}

func TestTransform_NotAnArchive(t *testing.T) {
	t.Parallel()

	data := []byte("plain text")
	_, err := newTestTransformer(afero.NewMemMapFs()).Transform(io.Discard, bytes.NewReader(data), int64(len(data)), "file:/x.war", wab.InstallationOptions{})
	if err == nil {
		t.Fatal("expected an error for a non-archive source")
	}
}

func TestIsSignatureFile(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"META-INF/X.SF":        true,
		"META-INF/X.DSA":       true,
		"META-INF/X.RSA":       true,
		"META-INF/sub/X.SF":    false,
		"META-INF/x.sf":        false,
		"meta-inf/X.SF":        false,
		"X.SF":                 false,
		"WEB-INF/X.SF":         false,
		"META-INF/MANIFEST.MF": false,
	}
	for name, want := range tests {
		if got := IsSignatureFile(name); got != want {
			t.Errorf("IsSignatureFile(%q) = %v, want %v", name, got, want)
		}
	}
}
