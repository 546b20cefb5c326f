/*
Package registry is the in-memory presence registry of the service.

Key Architectural Concepts:
  - Virtual Cells: every online user is represented by an isolated Cell (actor)
    owning all live sessions (connections) of that identity. A Cell exists if and
    only if the user has at least one open session.
  - Ordered Fan-out: events for a user go through the Cell mailbox (FIFO), so two
    events routed in sequence reach every session in that sequence.
  - Full-set Presence: every registry change wakes one broadcaster goroutine that
    snapshots the whole online set and sends it to every session.
  - Lock Discipline: the registry lock only guards the map. Network-facing work
    (session sends, observers) always runs after it is released.
*/
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
)

var (
	// ErrCellStopped: the user's last session detached, so the cell is gone.
	ErrCellStopped = errors.New("registry: cell stopped")
	ErrMailboxFull = errors.New("registry: mailbox full")
)

// Celler defines the internal API for user-specific delivery units.
type Celler interface {
	Push(ev event.Eventer) error
	Attach(conn Connector)
	Detach(connID uuid.UUID) (conn Connector, removed, empty bool)
	Sessions() []Connector
	Stop()
}

// Cell implements [ISOLATED_DELIVERY] logic for a single user.
type Cell struct {
	// [IDENTITY]
	userID string

	// [MAILBOX]
	// Buffered channel that decouples routers from individual session writes.
	mailbox chan event.Eventer

	// [SESSIONS]
	// All live connections of the user (mobile, web, desktop).
	sessions map[uuid.UUID]Connector
	mu       sync.RWMutex

	sendTimeout time.Duration

	// [LIFECYCLE_CONTROL]
	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewCell(userID string, bufferSize int, sendTimeout time.Duration) *Cell {
	c := &Cell{
		userID:      userID,
		mailbox:     make(chan event.Eventer, bufferSize),
		sessions:    make(map[uuid.UUID]Connector),
		sendTimeout: sendTimeout,
		doneCh:      make(chan struct{}),
	}
	go c.loop()
	return c
}

// Push enqueues ev for fan-out.
func (c *Cell) Push(ev event.Eventer) error {
	select {
	case <-c.doneCh:
		return ErrCellStopped
	default:
	}

	select {
	case c.mailbox <- ev:
		return nil
	default:
		return ErrMailboxFull
	}
}

func (c *Cell) Attach(conn Connector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[conn.GetID()] = conn
}

func (c *Cell) Detach(connID uuid.UUID) (Connector, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.sessions[connID]
	if !ok {
		return nil, false, len(c.sessions) == 0
	}
	delete(c.sessions, connID)
	return conn, true, len(c.sessions) == 0
}

// Sessions returns a snapshot of the live connections.
func (c *Cell) Sessions() []Connector {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Connector, 0, len(c.sessions))
	for _, conn := range c.sessions {
		out = append(out, conn)
	}
	return out
}

func (c *Cell) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case ev := <-c.mailbox:
			c.deliver(ev)
		}
	}
}

func (c *Cell) deliver(ev event.Eventer) {
	// Snapshot first: a slow session must not block Attach/Detach.
	for _, conn := range c.Sessions() {
		conn.Send(ev, c.sendTimeout)
	}
}

func (c *Cell) Stop() {
	c.stopOnce.Do(func() { close(c.doneCh) })
}
