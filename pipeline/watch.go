package pipeline

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/YuminosukeSato/elecbill/pkg/errors"
	"github.com/YuminosukeSato/elecbill/pkg/log"
)

// Watch calls onChange every time the file at path is written or replaced,
// until ctx is cancelled. The parent directory is watched so that editors
// that save through a rename are seen too. Calls are serialized: events that
// arrive while onChange runs are handled after it returns. An error from
// onChange is logged and watching continues.
func Watch(ctx context.Context, path string, onChange func() error, logger log.Logger) error {
	if logger == nil {
		logger = log.GetLoggerWithName("watch")
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create file watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errors.NewPersistenceError("watch", filepath.Dir(target), err)
	}
	logger.Info("watching data file", log.PathKey, target)

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped", log.PathKey, target)
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("data file changed", log.PathKey, target, "op", event.Op.String())
			if err := onChange(); err != nil {
				logger.Error("run triggered by file change failed", log.PathKey, target, log.ErrAttrKey, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "file watcher")
		}
	}
}
