package watch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gnana997/stylesync/pkg/host"
	"github.com/gnana997/stylesync/pkg/host/snapshot"
	"github.com/gnana997/stylesync/pkg/util"
)

// Scheduler runs fn on the goroutine that owns the document, such as a
// bridge endpoint loop.
type Scheduler interface {
	Do(fn func(ctx context.Context)) error
}

// SnapshotReloader returns an onChange callback that rereads a snapshot and
// swaps it into doc on the scheduler. Files that fail to parse leave the
// document unchanged and raise an error notification.
func SnapshotReloader(cache util.FileCache, doc *snapshot.Document, sched Scheduler, logger *slog.Logger) func(path string) {
	logger = util.OrDefault(logger)
	fail := func(path string, err error) {
		logger.Warn("snapshot reload failed", "path", path, "error", err)
		doc.Notify(host.Notification{Message: fmt.Sprintf("Reload failed: %v", err), Error: true})
	}

	return func(path string) {
		cache.Invalidate(path)
		f, err := snapshot.ReadFile(cache, path)
		if err != nil {
			fail(path, err)
			return
		}
		err = sched.Do(func(context.Context) {
			if err := doc.Reload(f); err != nil {
				fail(path, err)
				return
			}
			logger.Info("snapshot reloaded", "path", path, "nodes", len(f.Nodes))
		})
		if err != nil {
			logger.Debug("snapshot reload dropped", "path", path, "error", err)
		}
	}
}
