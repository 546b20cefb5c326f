package registry

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

type recordingObserver struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (o *recordingObserver) OnPresenceChange(online, offline []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.online = append(o.online, online...)
	o.offline = append(o.offline, offline...)
}

func (o *recordingObserver) snapshot() ([]string, []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.online), slices.Clone(o.offline)
}

func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	h := NewHub(append([]Option{WithSendTimeout(50 * time.Millisecond)}, opts...)...)
	t.Cleanup(h.Shutdown)
	return h
}

func connectUser(t *testing.T, h *Hub, userID string) Connector {
	t.Helper()
	conn := NewConnector(context.Background(), userID, 64, ConnectMetadata{})
	require.NoError(t, h.Register(conn))
	return conn
}

// waitForOnlineSet drains conn until a presence broadcast equal to want arrives.
func waitForOnlineSet(t *testing.T, conn Connector, want []string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-conn.Recv():
			require.True(t, ok, "connection closed before presence arrived")
			if ev.GetKind() != event.OnlineUsers {
				continue
			}
			if slices.Equal(ev.GetPayload().([]string), want) {
				return
			}
		case <-deadline:
			t.Fatalf("no getOnlineUsers broadcast with %v", want)
		}
	}
}

func TestHub_RegisterRejectsEmptyIdentity(t *testing.T) {
	h := newTestHub(t)

	err := h.Register(NewConnector(context.Background(), "", 1, ConnectMetadata{}))
	assert.ErrorIs(t, err, model.ErrInvalidIdentity)
	assert.ErrorIs(t, h.Register(nil), model.ErrInvalidIdentity)
	assert.Empty(t, h.OnlineUserIDs())
}

func TestHub_OnlineUserIDs(t *testing.T) {
	h := newTestHub(t)

	c1 := connectUser(t, h, "A")
	assert.Equal(t, []string{"A"}, h.OnlineUserIDs())

	c2 := connectUser(t, h, "B")
	assert.Equal(t, []string{"A", "B"}, h.OnlineUserIDs())

	waitForOnlineSet(t, c1, []string{"A", "B"})
	waitForOnlineSet(t, c2, []string{"A", "B"})
}

func TestHub_LookupTracksRegistrations(t *testing.T) {
	h := newTestHub(t)

	assert.Empty(t, h.Lookup("A"))

	c1 := connectUser(t, h, "A")
	c2 := connectUser(t, h, "A")

	ids := func() []string {
		var out []string
		for _, c := range h.Lookup("A") {
			out = append(out, c.GetID().String())
		}
		slices.Sort(out)
		return out
	}

	want := []string{c1.GetID().String(), c2.GetID().String()}
	slices.Sort(want)
	assert.Equal(t, want, ids())

	assert.True(t, h.Unregister("A", c1.GetID()))
	assert.Equal(t, []string{c2.GetID().String()}, ids())

	// idempotent
	assert.False(t, h.Unregister("A", c1.GetID()))
	assert.Equal(t, []string{c2.GetID().String()}, ids())

	assert.True(t, h.Unregister("A", c2.GetID()))
	assert.Empty(t, h.Lookup("A"))
	assert.False(t, h.IsConnected("A"))
	assert.False(t, h.Unregister("A", c2.GetID()))
}

func TestHub_UnregisterClosesConnection(t *testing.T) {
	h := newTestHub(t)
	conn := connectUser(t, h, "A")

	h.Unregister("A", conn.GetID())

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection was not closed")
	}
	assert.False(t, conn.Send(event.NewOnlineUsersEvent(nil), time.Millisecond))
}

func TestHub_MultiDeviceStaysOnline(t *testing.T) {
	obs := &recordingObserver{}
	h := newTestHub(t, WithPresenceObserver(obs))

	watcher := connectUser(t, h, "A")
	b1 := connectUser(t, h, "B")
	b2 := connectUser(t, h, "B")
	waitForOnlineSet(t, watcher, []string{"A", "B"})

	h.Unregister("B", b1.GetID())
	assert.True(t, h.IsConnected("B"))
	assert.Len(t, h.Lookup("B"), 1)
	waitForOnlineSet(t, watcher, []string{"A", "B"})

	_, offline := obs.snapshot()
	assert.NotContains(t, offline, "B")

	h.Unregister("B", b2.GetID())
	waitForOnlineSet(t, watcher, []string{"A"})

	require.Eventually(t, func() bool {
		_, offline := obs.snapshot()
		return slices.Contains(offline, "B")
	}, time.Second, 10*time.Millisecond)

	online, _ := obs.snapshot()
	assert.ElementsMatch(t, []string{"A", "B"}, online)
}

func TestHub_DeliverPreservesOrder(t *testing.T) {
	h := newTestHub(t)
	conn := connectUser(t, h, "B")

	const n = 50
	for i := range n {
		msg := &model.Message{SenderID: "A", ReceiverID: "B", Text: "m", CreatedAt: int64(i)}
		require.True(t, h.Deliver("B", event.NewMessageEvent(msg, "B")))
	}

	var got []int64
	deadline := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case ev := <-conn.Recv():
			if ev.GetKind() == event.NewMessage {
				got = append(got, ev.GetOccurredAt())
			}
		case <-deadline:
			t.Fatalf("received %d of %d messages", len(got), n)
		}
	}

	assert.True(t, slices.IsSorted(got))
}

func TestHub_DeliverToOfflineUser(t *testing.T) {
	h := newTestHub(t)
	msg := &model.Message{SenderID: "A", ReceiverID: "B", Text: "hi"}
	assert.False(t, h.Deliver("B", event.NewMessageEvent(msg, "B")))
}

func TestHub_Stats(t *testing.T) {
	h := newTestHub(t)
	connectUser(t, h, "A")
	connectUser(t, h, "B")
	connectUser(t, h, "B")

	stats := h.Stats()
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 3, stats.TotalConnections)
	require.Len(t, stats.Users, 2)
	assert.Equal(t, "B", stats.Users[0].UserID)
	assert.Equal(t, 2, stats.Users[0].Connections)
}

func TestHub_Shutdown(t *testing.T) {
	h := NewHub(WithSendTimeout(50 * time.Millisecond))
	conn := NewConnector(context.Background(), "A", 64, ConnectMetadata{})
	require.NoError(t, h.Register(conn))

	h.Shutdown()
	h.Shutdown()

	var kinds []event.EventKind
	for ev := range conn.Recv() {
		kinds = append(kinds, ev.GetKind())
	}
	assert.Contains(t, kinds, event.Disconnected)

	err := h.Register(NewConnector(context.Background(), "B", 1, ConnectMetadata{}))
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.Empty(t, h.OnlineUserIDs())
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	h := newTestHub(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := string(rune('a' + i%5))
			for range 20 {
				conn := NewConnector(context.Background(), userID, 8, ConnectMetadata{})
				if err := h.Register(conn); err != nil {
					t.Error(err)
					return
				}
				h.Lookup(userID)
				h.Unregister(userID, conn.GetID())
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, h.OnlineUserIDs())
	assert.Equal(t, 0, h.Stats().TotalConnections)
}

func TestHub_PresenceNotHeldUpByStalledSessions(t *testing.T) {
	h := newTestHub(t, WithSendTimeout(500*time.Millisecond))

	// never drained: the first broadcast fills each buffer
	stalled := []string{"s0", "s1", "s2", "s3", "s4"}
	for _, uID := range stalled {
		require.NoError(t, h.Register(NewConnector(context.Background(), uID, 1, ConnectMetadata{})))
	}

	healthy := connectUser(t, h, "h")
	waitForOnlineSet(t, healthy, []string{"h", "s0", "s1", "s2", "s3", "s4"})

	start := time.Now()
	connectUser(t, h, "n")
	waitForOnlineSet(t, healthy, []string{"h", "n", "s0", "s1", "s2", "s3", "s4"})

	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestOnlineUsersEventIsDroppedWhenBufferFull(t *testing.T) {
	conn := NewConnector(context.Background(), "A", 1, ConnectMetadata{})
	t.Cleanup(conn.Close)

	require.True(t, conn.Send(event.NewOnlineUsersEvent([]string{"A"}), time.Second))

	start := time.Now()
	assert.False(t, conn.Send(event.NewOnlineUsersEvent([]string{"A", "B"}), time.Second))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, uint64(1), conn.Dropped())
}

func TestCell_PushReportsStoppedAndFull(t *testing.T) {
	ev := event.NewOnlineUsersEvent(nil)

	// no loop: nothing drains the mailbox
	c := &Cell{userID: "A", mailbox: make(chan event.Eventer, 1), sessions: map[uuid.UUID]Connector{}, doneCh: make(chan struct{})}
	require.NoError(t, c.Push(ev))
	assert.ErrorIs(t, c.Push(ev), ErrMailboxFull)

	c.Stop()
	assert.ErrorIs(t, c.Push(ev), ErrCellStopped)
}
