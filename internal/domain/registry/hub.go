package registry

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// ErrHubClosed is returned by Register once Shutdown has started.
var ErrHubClosed = errors.New("registry: hub is shut down")

// Hubber defines the gateway for session management and event routing.
type Hubber interface {
	Register(conn Connector) error
	Unregister(userID string, connID uuid.UUID) bool
	Lookup(userID string) []Connector
	OnlineUserIDs() []string
	IsConnected(userID string) bool
	Deliver(userID string, ev event.Eventer) bool
	Stats() model.HubStats
}

// PresenceObserver is told which users came online and went offline since the
// previous broadcast. Calls are serialized on the broadcaster goroutine.
type PresenceObserver interface {
	OnPresenceChange(online, offline []string)
}

type hubConfig struct {
	mailboxSize int
	sendTimeout time.Duration
}

// Hub implements a [SCALABLE_REGISTRY] using the Virtual Cell pattern.
type Hub struct {
	mu     sync.RWMutex
	cells  map[string]*Cell
	closed bool

	config    hubConfig
	logger    *slog.Logger
	observers []PresenceObserver
	startedAt time.Time

	// [PRESENCE_BROADCASTER]
	// presenceCh coalesces change signals: one pending wakeup is enough because
	// the broadcaster always reads the latest state.
	presenceCh   chan struct{}
	doneCh       chan struct{}
	wg           sync.WaitGroup
	lastOnline   map[string]struct{}
	shutdownOnce sync.Once
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		cells: make(map[string]*Cell),
		config: hubConfig{
			mailboxSize: 1024,
			sendTimeout: 500 * time.Millisecond,
		},
		logger:     slog.Default(),
		startedAt:  time.Now(),
		presenceCh: make(chan struct{}, 1),
		doneCh:     make(chan struct{}),
		lastOnline: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.wg.Add(1)
	go h.broadcastLoop()

	return h
}

// Register attaches conn to its user's cell, creating the cell on first connection.
func (h *Hub) Register(conn Connector) error {
	if conn == nil || conn.GetUserID() == "" {
		return model.ErrInvalidIdentity
	}
	uID := conn.GetUserID()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}

	// [LAZY_INIT] Create cell only when first connection arrives.
	cell, ok := h.cells[uID]
	if !ok {
		cell = NewCell(uID, h.config.mailboxSize, h.config.sendTimeout)
		h.cells[uID] = cell
	}
	cell.Attach(conn)
	h.mu.Unlock()

	h.logger.Debug("SESSION_REGISTERED", "user_id", uID, "conn_id", conn.GetID(), "first", !ok)
	h.signalPresence()
	return nil
}

// Unregister detaches the session and closes it. The cell is reclaimed with its
// last session. Returns false if the session was not registered.
func (h *Hub) Unregister(userID string, connID uuid.UUID) bool {
	h.mu.Lock()
	cell, ok := h.cells[userID]
	if !ok {
		h.mu.Unlock()
		return false
	}

	conn, removed, empty := cell.Detach(connID)
	if empty {
		cell.Stop()
		delete(h.cells, userID)
	}
	h.mu.Unlock()

	if !removed {
		return false
	}

	conn.Close()
	h.logger.Debug("SESSION_UNREGISTERED", "user_id", userID, "conn_id", connID, "last", empty)
	h.signalPresence()
	return true
}

// Lookup returns a snapshot of the user's live sessions, empty when offline.
func (h *Hub) Lookup(userID string) []Connector {
	h.mu.RLock()
	cell, ok := h.cells[userID]
	h.mu.RUnlock()

	if !ok {
		return []Connector{}
	}
	return cell.Sessions()
}

func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.cells[userID]
	return ok
}

// OnlineUserIDs returns the sorted set of users with at least one session.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.cells))
	for uID := range h.cells {
		ids = append(ids, uID)
	}
	h.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Deliver routes ev into the user's [USER_CELL]. Returns false on miss or
// overflow; IsConnected tells the two apart afterwards.
func (h *Hub) Deliver(userID string, ev event.Eventer) bool {
	h.mu.RLock()
	cell, ok := h.cells[userID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	switch err := cell.Push(ev); {
	case err == nil:
		return true
	case errors.Is(err, ErrCellStopped):
		// raced with the last session detaching; the user is offline now
		h.logger.Debug("DELIVER_AFTER_DETACH", "user_id", userID, "event", ev.GetKind().String())
	default:
		h.logger.Warn("MAILBOX_OVERFLOW", "user_id", userID, "event", ev.GetKind().String())
	}
	return false
}

func (h *Hub) Stats() model.HubStats {
	h.mu.RLock()
	cells := make([]*Cell, 0, len(h.cells))
	for _, c := range h.cells {
		cells = append(cells, c)
	}
	h.mu.RUnlock()

	stats := model.HubStats{
		TotalUsers: len(cells),
		Uptime:     time.Since(h.startedAt),
		Users:      make([]model.UserStats, 0, len(cells)),
	}

	for _, c := range cells {
		us := model.UserStats{UserID: c.userID}
		for _, conn := range c.Sessions() {
			us.Connections++
			us.Dropped += conn.Dropped()
		}
		stats.TotalConnections += us.Connections
		stats.DroppedEvents += us.Dropped
		stats.Users = append(stats.Users, us)
	}

	slices.SortFunc(stats.Users, func(a, b model.UserStats) int {
		if a.Connections != b.Connections {
			return b.Connections - a.Connections
		}
		if a.UserID < b.UserID {
			return -1
		}
		if a.UserID > b.UserID {
			return 1
		}
		return 0
	})

	return stats
}

// Shutdown stops the broadcaster and every cell, tells each session why it is
// being closed, and closes it. Register fails afterwards.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		cells := h.cells
		h.cells = make(map[string]*Cell)
		h.mu.Unlock()

		close(h.doneCh)
		h.wg.Wait()

		for _, cell := range cells {
			cell.Stop()
			for _, conn := range cell.Sessions() {
				conn.Send(event.NewDisconnectedEvent(conn.GetUserID(), "server is shutting down", "SHUTDOWN"), h.config.sendTimeout)
				conn.Close()
			}
		}

		h.logger.Info("HUB_SHUTDOWN", "users", len(cells))
	})
}

func (h *Hub) signalPresence() {
	select {
	case h.presenceCh <- struct{}{}:
	default:
		// a wakeup is already pending and will observe this change
	}
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.doneCh:
			return
		case <-h.presenceCh:
			h.broadcastPresence()
		}
	}
}

// broadcastPresence sends the full online set to every live session.
func (h *Hub) broadcastPresence() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.cells))
	conns := make([]Connector, 0, len(h.cells))
	for uID, cell := range h.cells {
		ids = append(ids, uID)
		conns = append(conns, cell.Sessions()...)
	}
	h.mu.RUnlock()

	slices.Sort(ids)
	h.notifyObservers(ids)

	ev := event.NewOnlineUsersEvent(ids)
	for _, conn := range conns {
		conn.Send(ev, h.config.sendTimeout)
	}
}

func (h *Hub) notifyObservers(ids []string) {
	current := make(map[string]struct{}, len(ids))
	var online, offline []string

	for _, id := range ids {
		current[id] = struct{}{}
		if _, ok := h.lastOnline[id]; !ok {
			online = append(online, id)
		}
	}
	for id := range h.lastOnline {
		if _, ok := current[id]; !ok {
			offline = append(offline, id)
		}
	}
	h.lastOnline = current

	if len(online) == 0 && len(offline) == 0 {
		return
	}

	slices.Sort(offline)
	for _, o := range h.observers {
		o.OnPresenceChange(online, offline)
	}
}
