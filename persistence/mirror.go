// persistence/mirror.go
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/matchgame/logger"
	"github.com/wfunc/matchgame/models"
)

const writeTimeout = 5 * time.Second

type op struct {
	name string
	run  func(ctx context.Context) error
}

// Mirror writes room changes to a Store from a single background worker.
// Enqueueing never blocks, so it is safe under a room lock; writes are
// applied in the order they were enqueued.
type Mirror struct {
	store   Store
	queue   chan op
	onDrop  func()
	mutex   sync.RWMutex
	closed  bool
	done    chan struct{}
	timeout time.Duration
}

// NewMirror starts the worker. onDrop, if set, is called for every write
// discarded because the queue was full.
func NewMirror(store Store, queueSize int, onDrop func()) *Mirror {
	if queueSize <= 0 {
		queueSize = 1
	}
	m := &Mirror{
		store:   store,
		queue:   make(chan op, queueSize),
		onDrop:  onDrop,
		done:    make(chan struct{}),
		timeout: writeTimeout,
	}
	go m.run()
	return m
}

func (m *Mirror) RoomOpened(room models.RoomSnapshot) {
	m.enqueue("save room "+room.Code, func(ctx context.Context) error {
		return m.store.SaveRoom(ctx, room)
	})
}

func (m *Mirror) RoomUpdated(room models.RoomSnapshot) {
	m.enqueue("save room "+room.Code, func(ctx context.Context) error {
		return m.store.SaveRoom(ctx, room)
	})
}

func (m *Mirror) RoomClosed(code string) {
	m.enqueue("delete room "+code, func(ctx context.Context) error {
		return m.store.DeleteRoom(ctx, code)
	})
}

func (m *Mirror) RoundFinished(record models.GameRecord) {
	m.enqueue("save record "+record.RoomCode, func(ctx context.Context) error {
		return m.store.SaveGameRecord(ctx, record)
	})
}

func (m *Mirror) enqueue(name string, run func(ctx context.Context) error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.closed {
		return
	}
	select {
	case m.queue <- op{name: name, run: run}:
	default:
		logger.Log.Warnf("Store queue full, dropped %s", name)
		if m.onDrop != nil {
			m.onDrop()
		}
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for o := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		if err := o.run(ctx); err != nil {
			logger.Log.Errorf("Store write failed (%s): %v", o.name, err)
		}
		cancel()
	}
}

// Close stops accepting writes and waits for queued ones to finish. It does
// not close the Store.
func (m *Mirror) Close() {
	m.mutex.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mutex.Unlock()
	<-m.done
}
