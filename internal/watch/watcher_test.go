// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// startWatcher runs w in the background and stops it when the test ends.
func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run() did not return after cancel")
		}
	})
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_DebouncesChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var (
		mu    sync.Mutex
		calls int
		got   []string
	)
	done := make(chan struct{})

	w, err := New(Config{
		Dir:      dir,
		Debounce: 100 * time.Millisecond,
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			got = append(got, changed...)
			if calls == 1 {
				close(done)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startWatcher(t, w)

	for _, name := range []string{"a.jar", "b.war", "c.jar"} {
		writeFile(t, filepath.Join(dir, name))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("OnChange called %d times, want 1", calls)
	}
	for _, want := range []string{"a.jar", "b.war", "c.jar"} {
		if !slices.Contains(got, want) {
			t.Errorf("%s missing from %v", want, got)
		}
	}
}

func TestWatcher_IgnoresPublishTemporaries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	changes := make(chan []string, 10)
	w, err := New(Config{
		Dir:      dir,
		Ignore:   []string{"**/*.log"},
		Debounce: 50 * time.Millisecond,
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			changes <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startWatcher(t, w)

	writeFile(t, filepath.Join(dir, ".wabkit-123.tmp"))
	writeFile(t, filepath.Join(dir, "server.log"))
	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "shop.war"))

	select {
	case changed := <-changes:
		if !slices.Equal(changed, []string{"shop.war"}) {
			t.Errorf("changed = %v, want [shop.war]", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestWatcher_NewExplodedModule(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	changes := make(chan []string, 10)
	w, err := New(Config{
		Dir:      dir,
		Patterns: []string{"*", "*/META-INF/MANIFEST.MF"},
		Debounce: 50 * time.Millisecond,
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			changes <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startWatcher(t, w)

	if err := os.Mkdir(filepath.Join(dir, "shop"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "shop", "META-INF"), 0o755); err != nil {
		t.Fatal(err)
	}

	var seen []string
	deadline := time.After(5 * time.Second)
	for !slices.Contains(seen, "shop") {
		select {
		case changed := <-changes:
			seen = append(seen, Modules(changed)...)
		case <-deadline:
			t.Fatalf("timed out, saw %v", seen)
		}
	}
}

func TestWatcher_PatternFiltering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	changes := make(chan []string, 10)
	w, err := New(Config{
		Dir:      dir,
		Patterns: []string{"*.war"},
		Debounce: 50 * time.Millisecond,
		Logger:   quietLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			changes <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startWatcher(t, w)

	writeFile(t, filepath.Join(dir, "notes.txt"))
	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "shop.war"))

	select {
	case changed := <-changes:
		if !slices.Equal(changed, []string{"shop.war"}) {
			t.Errorf("changed = %v, want [shop.war]", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestWatcher_InvalidPattern(t *testing.T) {
	t.Parallel()

	for _, cfg := range []Config{
		{Dir: t.TempDir(), Patterns: []string{"[unclosed"}},
		{Dir: t.TempDir(), Ignore: []string{"{a,"}},
	} {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) succeeded", cfg)
		}
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Dir: filepath.Join(t.TempDir(), "missing"), Logger: quietLogger()}); err == nil {
		t.Fatal("New() succeeded for a missing directory")
	}
}

func TestWatcher_RunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Dir: t.TempDir(), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startWatcher(t, w)
	time.Sleep(20 * time.Millisecond)

	if err := w.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	w := &Watcher{ignores: DefaultIgnores()}
	tests := []struct {
		path    string
		ignored bool
	}{
		{".wabkit-4821.tmp", true},
		{"nested/.wabkit-1.tmp", true},
		{"wabkit-77.jar", true},
		{".git/HEAD", true},
		{"shop.war.swp", true},
		{"shop.war~", true},
		{".DS_Store", true},
		{"shop.war", false},
		{"api.jar", false},
		{"exploded/META-INF/MANIFEST.MF", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := w.ignored(tt.path); got != tt.ignored {
				t.Errorf("ignored(%q) = %v, want %v", tt.path, got, tt.ignored)
			}
		})
	}
}

func TestModules(t *testing.T) {
	t.Parallel()

	got := Modules([]string{"shop.war", "exploded/META-INF/MANIFEST.MF", "exploded", "api.jar", "shop.war"})
	want := []string{"api.jar", "exploded", "shop.war"}
	if !slices.Equal(got, want) {
		t.Errorf("Modules() = %v, want %v", got, want)
	}
	if Modules(nil) != nil {
		t.Error("Modules(nil) should be nil")
	}
}
