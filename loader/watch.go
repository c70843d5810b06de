package loader

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long Watch waits for writes to a file to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watch calls onChange after path has been created, written or renamed
// into place and then left alone for debounce. It watches the parent
// directory, since atomic writers replace the file rather than writing it.
// Watch blocks until ctx is done and returns ctx.Err(), or an error if the
// watcher could not be set up.
func Watch(
	ctx context.Context, path string, debounce time.Duration,
	onChange func(), log *zap.Logger,
) error {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	log.Info("Watching for changes.", zap.String("path", abs))

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return ctx.Err()
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
				!ev.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("File event.", zap.String("op", ev.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return ctx.Err()
			}
			log.Warn("Watcher error.", zap.Error(err))

		case <-timer.C:
			log.Info("File changed.", zap.String("path", abs))
			onChange()
		}
	}
}
