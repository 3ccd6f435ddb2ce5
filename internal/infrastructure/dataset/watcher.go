package dataset

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

// Watcher observes the dataset CSV on disk and invokes onChange when it is
// rewritten, so the store can be reset and caches invalidated. Events are
// debounced because bulk exports arrive as many small writes.
type Watcher struct {
	path     string
	onChange func()
	log      logging.Logger
	debounce time.Duration

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher watches the directory containing path. Watching the parent
// instead of the file itself survives rename-into-place rewrites.
func NewWatcher(path string, onChange func(), log logging.Logger) (*Watcher, error) {
	return newWatcher(path, onChange, log, 2*time.Second)
}

func newWatcher(path string, onChange func(), log logging.Logger, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create dataset watcher")
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "watch dataset directory")
	}

	w := &Watcher{
		path:     path,
		onChange: onChange,
		log:      log.Named("watcher"),
		debounce: debounce,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("dataset file event", logging.String("op", ev.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("dataset watcher error", logging.Err(err))
		case <-fire:
			w.log.Info("dataset file changed, triggering reload",
				logging.String("path", w.path))
			w.onChange()
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
