package build

import (
	"context"
	"sync"

	"github.com/arcadeforge/arcadeforge/internal/content"
	"github.com/arcadeforge/arcadeforge/internal/errors"
)

// UnitKind selects the work a build unit carries.
type UnitKind int

const (
	UnitRenderPage UnitKind = iota
	UnitOptimizeImage
)

// BuildUnit is one schedulable piece of work. Units are partitioned by
// game id and kind, so no two units ever write the same output path.
type BuildUnit struct {
	Kind        UnitKind
	Site        string
	Game        *content.GameRecord
	Fingerprint string
	OutputPath  string // absolute path of the page to publish (render units)
	ImageSource string // source image path (optimize units)
}

// Key identifies the unit in the build cache.
func (u *BuildUnit) Key() string {
	if u.Kind == UnitOptimizeImage {
		return u.Site + "/img/" + u.Game.ID
	}
	return u.Site + "/" + u.Game.ID
}

// TaskQueue is the bounded queue between the planner and the worker pool.
// Enqueue blocks when the queue is full, which backpressures planning
// instead of buffering every unit in memory.
type TaskQueue struct {
	tasks  chan *BuildUnit
	mutex  sync.RWMutex
	closed bool
}

// NewTaskQueue creates a queue with the given capacity.
func NewTaskQueue(capacity int) *TaskQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &TaskQueue{tasks: make(chan *BuildUnit, capacity)}
}

// Enqueue adds a unit, blocking while the queue is full. It fails once
// the queue is closed or the context is cancelled. The read lock spans
// the send so Close cannot close the channel under an in-flight Enqueue.
func (q *TaskQueue) Enqueue(ctx context.Context, unit *BuildUnit) error {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if q.closed {
		return errors.NewBuildError(errors.ErrCodeQueueClosed, "enqueue on closed queue", nil)
	}

	select {
	case q.tasks <- unit:
		return nil
	case <-ctx.Done():
		return errors.NewBuildError(errors.ErrCodeQueueClosed, "enqueue cancelled", ctx.Err())
	}
}

// Tasks exposes the receive side for workers. The channel closes after
// Close once drained.
func (q *TaskQueue) Tasks() <-chan *BuildUnit {
	return q.tasks
}

// Close marks the queue complete. Queued units remain consumable; further
// Enqueue calls fail. Safe to call more than once.
func (q *TaskQueue) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
}
