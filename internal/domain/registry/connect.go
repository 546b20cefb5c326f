package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (REGISTRY/HUB)
// This allows mocking and decoupling from the concrete implementation
type Connector interface {
	GetID() uuid.UUID
	GetUserID() string
	GetCreatedAt() time.Time
	GetMetadata() ConnectMetadata
	Send(ev event.Eventer, timeout time.Duration) bool // Thread-safe send with backpressure handling
	Recv() <-chan event.Eventer
	Done() <-chan struct{}
	Dropped() uint64
	Close() // Terminate connection and release resources
}

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type ConnectMetadata struct {
	Platform  string
	RemoteIP  string
	UserAgent string
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id        uuid.UUID
	userID    string
	metadata  ConnectMetadata
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc

	// mu guards sendCh against close while a Send is in flight.
	mu        sync.RWMutex
	closed    bool
	sendCh    chan event.Eventer
	closeOnce sync.Once

	droppedCount atomic.Uint64
}

// NewConnector creates a session handle bound to ctx: cancelling ctx aborts pending sends.
func NewConnector(ctx context.Context, userID string, bufferSize int, md ConnectMetadata) Connector {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	childCtx, cancel := context.WithCancel(ctx)

	return &connect{
		id:        uuid.New(),
		userID:    userID,
		metadata:  md,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan event.Eventer, bufferSize),
	}
}

// --- IMPLEMENTATION OF CONNECTOR INTERFACE ---

func (c *connect) GetID() uuid.UUID             { return c.id }
func (c *connect) GetUserID() string            { return c.userID }
func (c *connect) GetCreatedAt() time.Time      { return c.createdAt }
func (c *connect) GetMetadata() ConnectMetadata { return c.metadata }
func (c *connect) Recv() <-chan event.Eventer   { return c.sendCh }
func (c *connect) Done() <-chan struct{}        { return c.ctx.Done() }
func (c *connect) Dropped() uint64              { return c.droppedCount.Load() }

// Send enqueues ev into the session buffer.
//
// [PRIORITY_SHEDDING]
// Low priority events are dropped at once when the buffer is full. Anything
// else waits up to timeout for room, so transient jitter does not lose
// messages. Nothing is ever evicted from the buffer: that would reorder
// events of equal priority, and per-pair message order must hold.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}

	// 1. [FAST_PATH]
	select {
	case c.sendCh <- ev:
		return true
	default:
	}

	if ev.GetPriority() <= event.PriorityLow {
		c.droppedCount.Add(1)
		return false
	}

	// 2. [BOUNDED_WAIT] The session is saturated; wait for the writer to drain it.
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- ev:
		return true
	case <-timer.C:
		// 3. [BACKPRESSURE_THRESHOLD] persistent slow consumer
		c.droppedCount.Add(1)
		return false
	}
}

// Close terminates the session. Safe to call concurrently and repeatedly.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		// 1. [SIGNAL_ABORT] unblock any Send waiting for room before taking the write lock
		c.cancelFn()

		// 2. [UPSTREAM_NOTIFY] a closed channel tells the writer pump to exit after draining
		c.mu.Lock()
		c.closed = true
		close(c.sendCh)
		c.mu.Unlock()
	})
}
