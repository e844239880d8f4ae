package host

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the plugin directory and drops cached plugin headers when
// files change underneath the service, e.g. after a manual upload.
type Watcher struct {
	dir           *PluginDir
	logger        *zap.Logger
	watcher       *fsnotify.Watcher
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	onChange      func()
}

// NewWatcher creates a watcher for dir. onChange, when non-nil, runs after
// each debounced cache flush.
func NewWatcher(dir *PluginDir, debounce time.Duration, onChange func(), logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:           dir,
		logger:        logger.Named("watcher"),
		debounceDelay: debounce,
		stopChan:      make(chan struct{}),
		onChange:      onChange,
	}
}

// Start watches the plugin root and every plugin folder directly below it.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	root := w.dir.Root()
	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		watcher.Close()
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !ignoredName(e.Name()) {
			if err := watcher.Add(filepath.Join(root, e.Name())); err != nil {
				w.logger.Warn("cannot watch plugin folder", zap.String("folder", e.Name()), zap.Error(err))
			}
		}
	}

	w.logger.Info("plugin directory watcher started", zap.String("root", root))
	go w.processEvents()
	return nil
}

// Stop stops the watcher. Calls after the first are no-ops.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("plugin directory watcher error", zap.Error(err))
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Chmod fires on plain reads on some platforms.
	if event.Op == fsnotify.Chmod {
		return
	}
	if ignoredName(filepath.Base(event.Name)) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == w.dir.Root() {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watcher.Add(event.Name)
		}
	}

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.flush)
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.dir.CleanCache()
	w.logger.Debug("plugin directory changed, header cache cleared")
	if w.onChange != nil {
		w.onChange()
	}
}

// ignoredName reports dotfiles, which include the installer's
// ".vmfa-staging-" folders and the ".vmfa_temp_check" file EnsureDir writes.
func ignoredName(name string) bool {
	return strings.HasPrefix(name, ".")
}
