package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reports changes of project and package descriptors under a
// project folder. The caller is expected to clear its caches and resolve
// again from the callback.
type Watcher struct {
	folder   string
	debounce time.Duration
	logger   zerolog.Logger
}

// NewWatcher creates a watcher for the project rooted at folder.
func NewWatcher(folder string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		folder:   filepath.Clean(folder),
		debounce: DefaultDebounce,
		logger:   logger.With().Str("component", "descriptor-watcher").Logger(),
	}
}

// SetDebounce changes the quiet period.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// IsDescriptor reports whether path names a project or package descriptor.
func IsDescriptor(path string) bool {
	base := filepath.Base(path)
	if base == PackageFileName {
		return true
	}
	for _, name := range ProjectFileNames {
		if base == name {
			return true
		}
	}
	return false
}

// watchedFolders returns the project folder and every installed package
// folder below <folder>/xpacks.
func (w *Watcher) watchedFolders() []string {
	folders := []string{w.folder}
	return append(folders, w.packageFolders(filepath.Join(w.folder, "xpacks"))...)
}

// packageFolders returns xpacks and its immediate sub-folders, or nothing
// when xpacks does not exist.
func (w *Watcher) packageFolders(xpacks string) []string {
	entries, err := os.ReadDir(xpacks)
	if err != nil {
		return nil
	}
	folders := []string{xpacks}
	for _, e := range entries {
		path := filepath.Join(xpacks, e.Name())
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			folders = append(folders, path)
		}
	}
	return folders
}

// createdFolders returns the folders to start watching after path was
// created: the xpacks folder with its packages, or one new package folder.
func (w *Watcher) createdFolders(path string) []string {
	xpacks := filepath.Join(w.folder, "xpacks")
	switch filepath.Dir(path) {
	case w.folder:
		if path == xpacks {
			return w.packageFolders(xpacks)
		}
	case xpacks:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return []string{path}
		}
	}
	return nil
}

// Run watches until ctx is done, calling onChange with the changed path
// once events settle. Package folders installed while running are added to
// the watch list. Errors returned by onChange are logged.
func (w *Watcher) Run(ctx context.Context, onChange func(path string) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, folder := range w.watchedFolders() {
		w.add(watcher, folder)
	}

	w.logger.Info().Str("folder", w.folder).Msg("Watching descriptors")

	var (
		timer *time.Timer
		fire  = make(chan string, 1)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	schedule := func(path string) {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			select {
			case fire <- path:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				for _, folder := range w.createdFolders(event.Name) {
					w.add(watcher, folder)
					// The descriptor may have been written before the watch existed.
					descriptor := filepath.Join(folder, PackageFileName)
					if _, err := os.Stat(descriptor); err == nil {
						schedule(descriptor)
					}
				}
			}

			if !IsDescriptor(event.Name) {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Descriptor changed")
			schedule(event.Name)

		case path := <-fire:
			if err := onChange(path); err != nil {
				w.logger.Error().Err(err).Str("file", path).Msg("Failed to handle descriptor change")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) add(watcher *fsnotify.Watcher, folder string) {
	if err := watcher.Add(folder); err != nil {
		w.logger.Warn().Err(err).Str("path", folder).Msg("Failed to watch folder")
		return
	}
	w.logger.Debug().Str("path", folder).Msg("Watching folder")
}
