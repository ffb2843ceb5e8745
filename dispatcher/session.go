package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
)

// Session describes one connected client.
type Session struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Uploads     uint64    `json:"uploads"`
	DataRecords uint64    `json:"data_records"`
	Queued      int       `json:"queued"`
}

type job struct {
	event    string
	payload  Payload
	received time.Time
}

type session struct {
	id          string
	name        string
	remoteAddr  string
	connectedAt time.Time
	conn        Conn

	uploads atomic.Uint64
	data    atomic.Uint64

	// done wakes pushers waiting for room so close never waits on them.
	done     chan struct{}
	doneOnce sync.Once

	// mu guards closing inbox against concurrent pushes.
	mu     sync.RWMutex
	closed bool
	inbox  chan job
}

func newSession(conn Conn, name string, queueSize int) *session {
	return &session{
		id:          conn.ID(),
		name:        name,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now().UTC(),
		conn:        conn,
		done:        make(chan struct{}),
		inbox:       make(chan job, queueSize),
	}
}

// push enqueues j. With block unset a full inbox fails at once; otherwise
// push waits up to timeout for room.
func (s *session) push(ctx context.Context, j job, block bool, timeout time.Duration) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return pkgerrors.ErrClosed
	}

	select {
	case s.inbox <- j:
		return nil
	default:
	}
	if !block {
		return pkgerrors.ErrQueueFull
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.inbox <- j:
		return nil
	case <-timer.C:
		return pkgerrors.ErrQueueFull
	case <-s.done:
		return pkgerrors.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting work. Jobs already queued are still delivered.
func (s *session) close() {
	s.doneOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.inbox)
}

func (s *session) info() Session {
	return Session{
		ID:          s.id,
		Name:        s.name,
		RemoteAddr:  s.remoteAddr,
		ConnectedAt: s.connectedAt,
		Uploads:     s.uploads.Load(),
		DataRecords: s.data.Load(),
		Queued:      len(s.inbox),
	}
}
