package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"subscription-mailer-be/internal/entity"
	"subscription-mailer-be/internal/pkg/logger"
	"subscription-mailer-be/internal/source/csvsnapshot"
)

const watcherModule = "CSVWatcher"

type ICSVWatcher interface {
	// CheckOnce reads the snapshot file and publishes rows not seen by
	// this watcher before. It returns how many rows were published.
	CheckOnce(ctx context.Context) (int, error)
	Start(ctx context.Context, interval time.Duration)
}

type csvWatcher struct {
	path   string
	bus    ObservationPublisher
	logger logger.ILogger

	running atomic.Bool

	mu        sync.Mutex
	processed map[string]struct{}
}

func NewCSVWatcher(path string, bus ObservationPublisher, logger logger.ILogger) ICSVWatcher {
	return &csvWatcher{
		path:      path,
		bus:       bus,
		logger:    logger,
		processed: make(map[string]struct{}),
	}
}

func (w *csvWatcher) CheckOnce(ctx context.Context) (int, error) {
	if !w.running.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer w.running.Store(false)

	rows, err := csvsnapshot.ReadSnapshot(w.path)
	if err != nil {
		return 0, err
	}

	fresh := w.unseen(rows)
	if len(fresh) == 0 {
		return 0, nil
	}

	w.logger.Info(watcherModule, "New rows in snapshot file", map[string]interface{}{
		"path":  w.path,
		"count": len(fresh),
	})

	// rows are marked before publishing; a failed delivery is picked up
	// again by the next Stripe poll, not by this watcher
	if err := w.bus.PublishObservations(ctx, fresh); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

func (w *csvWatcher) unseen(rows []*entity.Observation) []*entity.Observation {
	w.mu.Lock()
	defer w.mu.Unlock()

	var fresh []*entity.Observation
	for _, row := range rows {
		key := row.Key()
		if !key.IsComplete() {
			continue
		}
		if _, seen := w.processed[key.String()]; seen {
			continue
		}
		w.processed[key.String()] = struct{}{}
		fresh = append(fresh, row)
	}
	return fresh
}

func (w *csvWatcher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.CheckOnce(ctx); err != nil {
			w.logger.Error(watcherModule, "Failed to check snapshot file", map[string]interface{}{
				"path":  w.path,
				"error": err.Error(),
			})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
