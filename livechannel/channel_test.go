package livechannel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// fakeHub is a minimal push endpoint: acks every command, lets tests push
// events, and can refuse the first N connection attempts.
type fakeHub struct {
	srv    *httptest.Server
	reject int32

	mu    sync.Mutex
	conns []*websocket.Conn
	auths []string
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	h := &fakeHub{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&h.reject) > 0 {
			atomic.AddInt32(&h.reject, -1)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.mu.Lock()
		h.conns = append(h.conns, conn)
		h.auths = append(h.auths, r.Header.Get("Authorization"))
		h.mu.Unlock()
		go h.serve(conn)
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *fakeHub) serve(conn *websocket.Conn) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.ID == "" {
			continue
		}
		ack := Envelope{Event: "ack", ID: env.ID}
		if env.Event == "FailMe" {
			ack.Error = "command rejected"
		}
		h.mu.Lock()
		conn.WriteJSON(ack)
		h.mu.Unlock()
	}
}

func (h *fakeHub) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func (h *fakeHub) push(t *testing.T, event string, data interface{}) {
	t.Helper()
	b, err := json.Marshal(data)
	require.NoError(t, err)
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.conns)
	conn := h.conns[len(h.conns)-1]
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: b}))
}

func (h *fakeHub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		conn.Close()
	}
	h.conns = nil
}

func newTestChannel(h *fakeHub) *Channel {
	c := &Channel{
		URL:         h.url(),
		Dialer:      websocket.DefaultDialer,
		MaxAttempts: 3,
		BaseBackoff: 10 * time.Millisecond,
		subs:        make(map[string]map[int]Handler),
		watchers:    make(map[int]func(State)),
		pending:     make(map[string]chan error),
	}
	return c
}

func waitState(t *testing.T, states <-chan State, want State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func TestConnectDeliversEventsToAllSubscribers(t *testing.T) {
	hub := newFakeHub(t)
	c := newTestChannel(hub)
	defer c.Close()

	got := make(chan string, 4)
	c.Subscribe(EventReceiveMessage, func(data json.RawMessage) {
		var p MessagePayload
		require.NoError(t, json.Unmarshal(data, &p))
		got <- "first:" + p.Content
	})
	c.Subscribe(EventReceiveMessage, func(data json.RawMessage) {
		got <- "second"
	})

	require.NoError(t, c.Connect("tok123"))
	require.Equal(t, StateConnected, c.State())

	hub.push(t, EventReceiveMessage, MessagePayload{SenderID: "a", ReceiverID: "b", Content: "hi"})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-got:
			seen[s] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
	assert.True(t, seen["first:hi"])
	assert.True(t, seen["second"])

	// each handler fired exactly once
	select {
	case s := <-got:
		t.Fatalf("unexpected extra delivery: %v", s)
	case <-time.After(100 * time.Millisecond):
	}

	hub.mu.Lock()
	assert.Equal(t, "Bearer tok123", hub.auths[0])
	hub.mu.Unlock()
}

func TestConnectIdempotent(t *testing.T) {
	hub := newFakeHub(t)
	c := newTestChannel(hub)
	defer c.Close()

	require.NoError(t, c.Connect("tok"))
	require.NoError(t, c.Connect("tok"))
	require.NoError(t, c.Connect("tok"))

	time.Sleep(50 * time.Millisecond)
	hub.mu.Lock()
	assert.Len(t, hub.conns, 1)
	hub.mu.Unlock()
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := newFakeHub(t)
	c := newTestChannel(hub)
	defer c.Close()

	got := make(chan struct{}, 2)
	unsubscribe := c.Subscribe(EventReceiveStatusUpdate, func(json.RawMessage) {
		got <- struct{}{}
	})

	require.NoError(t, c.Connect("tok"))
	hub.push(t, EventReceiveStatusUpdate, StatusUpdatePayload{AppointmentID: "42", Status: "ACCEPTED"})
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	unsubscribe()
	hub.push(t, EventReceiveStatusUpdate, StatusUpdatePayload{AppointmentID: "42", Status: "REJECTED"})
	select {
	case <-got:
		t.Fatal("handler fired after unsubscribe")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestInvokeAck(t *testing.T) {
	hub := newFakeHub(t)
	c := newTestChannel(hub)
	defer c.Close()

	require.NoError(t, c.Connect("tok"))
	err := c.SendMessage(context.Background(), "a", "b", "hello")
	assert.NoError(t, err)
}

func TestInvokeAckError(t *testing.T) {
	hub := newFakeHub(t)
	c := newTestChannel(hub)
	defer c.Close()

	require.NoError(t, c.Connect("tok"))
	err := c.Invoke(context.Background(), "FailMe", map[string]string{})
	require.Error(t, err)

	var chErr *ChannelError
	require.ErrorAs(t, err, &chErr)
	assert.Equal(t, "command rejected", chErr.Reason)
}

func TestInvokeWhenNotConnected(t *testing.T) {
	hub := newFakeHub(t)
	c := newTestChannel(hub)

	err := c.SendMessage(context.Background(), "a", "b", "hello")
	require.Error(t, err)

	var chErr *ChannelError
	require.ErrorAs(t, err, &chErr)
	assert.Contains(t, chErr.Reason, "not connected")
}

func TestCloseSilencesBufferedEvents(t *testing.T) {
	hub := newFakeHub(t)
	c := newTestChannel(hub)

	fired := int32(0)
	c.Subscribe(EventReceiveMessage, func(json.RawMessage) {
		atomic.AddInt32(&fired, 1)
	})

	require.NoError(t, c.Connect("tok"))
	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())

	// synthetically deliver a frame that was buffered before teardown
	c.dispatch(Envelope{Event: EventReceiveMessage, Data: json.RawMessage(`{}`)})
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))

	// Close is idempotent
	require.NoError(t, c.Close())
}

func TestCloseDuringDialDiscardsConnection(t *testing.T) {
	hub := newFakeHub(t)
	c := newTestChannel(hub)

	fired := int32(0)
	c.Subscribe(EventReceiveMessage, func(json.RawMessage) {
		atomic.AddInt32(&fired, 1)
	})

	// a dial that was in flight when Close ran resolves afterwards; the
	// fresh connection must be discarded, not installed
	c.credential = "tok"
	conn, err := c.dial()
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c.adopt(conn)
	assert.Equal(t, StateClosed, c.State())

	// nothing reads from the discarded conn, so nothing can fire
	hub.mu.Lock()
	require.NotEmpty(t, hub.conns)
	hub.conns[len(hub.conns)-1].WriteJSON(Envelope{Event: EventReceiveMessage, Data: json.RawMessage(`{"content":"too late"}`)})
	hub.mu.Unlock()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestReconnectAfterDrop(t *testing.T) {
	hub := newFakeHub(t)
	c := newTestChannel(hub)
	defer c.Close()

	states := make(chan State, 16)
	c.OnStateChange(func(s State) { states <- s })

	got := make(chan string, 4)
	c.Subscribe(EventReceiveMessage, func(data json.RawMessage) {
		var p MessagePayload
		json.Unmarshal(data, &p)
		got <- p.Content
	})

	require.NoError(t, c.Connect("tok"))
	waitState(t, states, StateConnected)

	hub.dropAll()
	waitState(t, states, StateReconnecting)
	waitState(t, states, StateConnected)

	hub.push(t, EventReceiveMessage, MessagePayload{Content: "after outage"})
	select {
	case content := <-got:
		assert.Equal(t, "after outage", content)
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery after reconnect")
	}
}

func TestReconnectSurvivesFailedAttempts(t *testing.T) {
	hub := newFakeHub(t)
	atomic.StoreInt32(&hub.reject, 2) // first two dials bounce
	c := newTestChannel(hub)
	defer c.Close()

	states := make(chan State, 16)
	c.OnStateChange(func(s State) { states <- s })

	require.NoError(t, c.Connect("tok"))
	waitState(t, states, StateReconnecting)
	waitState(t, states, StateConnected)
}

func TestReconnectExhaustionSurfacesDisconnected(t *testing.T) {
	hub := newFakeHub(t)
	atomic.StoreInt32(&hub.reject, 100)
	c := newTestChannel(hub)
	c.MaxAttempts = 2

	states := make(chan State, 16)
	c.OnStateChange(func(s State) { states <- s })

	require.NoError(t, c.Connect("tok"))
	waitState(t, states, StateDisconnected)
	assert.Equal(t, StateDisconnected, c.State())
}
