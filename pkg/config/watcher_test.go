package config

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatcher_WatchedFolders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "xpacks", "a", "package.json"), `{}`)
	writeFile(t, filepath.Join(dir, "xpacks", "stray.txt"), "")

	w := NewWatcher(dir, zerolog.Nop())
	want := []string{dir, filepath.Join(dir, "xpacks"), filepath.Join(dir, "xpacks", "a")}
	if got := w.watchedFolders(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	bare := NewWatcher(t.TempDir(), zerolog.Nop())
	if got := bare.watchedFolders(); len(got) != 1 {
		t.Errorf("expected only the project folder, got %v", got)
	}
}

func TestWatcher_CreatedFolders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "xpacks", "a", "package.json"), `{}`)
	writeFile(t, filepath.Join(dir, "src", "main.c"), "")
	w := NewWatcher(dir, zerolog.Nop())

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"xpacks", filepath.Join(dir, "xpacks"), []string{filepath.Join(dir, "xpacks"), filepath.Join(dir, "xpacks", "a")}},
		{"package", filepath.Join(dir, "xpacks", "a"), []string{filepath.Join(dir, "xpacks", "a")}},
		{"package descriptor", filepath.Join(dir, "xpacks", "a", "package.json"), nil},
		{"other folder", filepath.Join(dir, "src"), nil},
		{"nested", filepath.Join(dir, "src", "main.c"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.createdFolders(tt.path); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// startWatcher runs w until the test ends and returns the reported paths.
func startWatcher(t *testing.T, w *Watcher) <-chan string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	changed := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(path string) error {
			select {
			case changed <- path:
			default:
			}
			return nil
		})
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop after cancel")
		}
	})
	return changed
}

// awaitChange calls touch periodically until want is reported.
func awaitChange(t *testing.T, changed <-chan string, want string, touch func()) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case path := <-changed:
			if path == want {
				return
			}
		case <-tick.C:
			touch()
		case <-deadline:
			t.Fatalf("timed out waiting for a change of %s", want)
		}
	}
}

func TestWatcher_ReportsDescriptorChanges(t *testing.T) {
	dir := t.TempDir()
	descriptor := writeFile(t, filepath.Join(dir, "xmake.json"), `{"name": "a"}`)

	w := NewWatcher(dir, zerolog.Nop())
	w.SetDebounce(20 * time.Millisecond)
	changed := startWatcher(t, w)

	// Writes to other files are filtered out; keep touching both until
	// the watcher has registered its folders and reports the descriptor.
	awaitChange(t, changed, descriptor, func() {
		writeFile(t, filepath.Join(dir, "main.c"), "int main(void) { return 0; }")
		writeFile(t, descriptor, `{"name": "b"}`)
	})
}

func TestWatcher_WatchesPackagesInstalledLater(t *testing.T) {
	dir := t.TempDir()
	descriptor := writeFile(t, filepath.Join(dir, "xmake.json"), `{"name": "a"}`)

	w := NewWatcher(dir, zerolog.Nop())
	w.SetDebounce(20 * time.Millisecond)
	changed := startWatcher(t, w)

	awaitChange(t, changed, descriptor, func() {
		writeFile(t, descriptor, `{"name": "b"}`)
	})

	pkg := filepath.Join(dir, "xpacks", "late", "package.json")
	writeFile(t, pkg, `{"name": "late"}`)
	awaitChange(t, changed, pkg, func() {
		writeFile(t, pkg, `{"name": "late", "version": "1.0.0"}`)
	})
}
