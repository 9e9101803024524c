package livechannel

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hospital-app/hospital-client/config"
)

// State is the live channel connection state
type State int

// Connection states. Closed is terminal until the next Connect call.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler receives the data payload of one delivered event
type Handler func(data json.RawMessage)

// Channel maintains one authenticated websocket connection to the backend's
// push endpoint and fans incoming events out to subscribers. Handlers run on
// the read goroutine; keep them short or hand off.
type Channel struct {
	URL         string
	Dialer      *websocket.Dialer
	MaxAttempts int
	BaseBackoff time.Duration

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	credential string
	subs       map[string]map[int]Handler
	watchers   map[int]func(State)
	nextID     int
	pending    map[string]chan error
	pingStop   chan struct{}

	writeMu sync.Mutex
	pumps   sync.WaitGroup
}

// New creates a live channel client for the configured hub URL
func New(conf *config.Config) *Channel {
	return &Channel{
		URL:         conf.HubURL,
		Dialer:      websocket.DefaultDialer,
		MaxAttempts: 5,
		BaseBackoff: 500 * time.Millisecond,
		subs:        make(map[string]map[int]Handler),
		watchers:    make(map[int]func(State)),
		pending:     make(map[string]chan error),
	}
}

// State returns the current connection state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the push endpoint with the given credential. Calling while
// already Connected or Connecting is a no-op. A failed dial leaves the
// channel Reconnecting with retries running in the background; watchers see
// a final Disconnected if retries run out.
func (c *Channel) Connect(credential string) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateConnected, StateReconnecting:
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.credential = credential
	watchers := c.watcherSnapshot()
	c.mu.Unlock()
	fireWatchers(watchers, StateConnecting)

	conn, err := c.dial()
	if err != nil {
		zap.S().Warnw("failed to connect to live channel",
			"url", c.URL,
			"error", err,
		)
		c.transition(StateReconnecting)
		go c.reconnect()
		return nil
	}

	c.adopt(conn)
	return nil
}

// Close tears the channel down. After it returns no handler fires again,
// including for frames already read off the wire.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.failPendingLocked("channel closed")
	watchers := c.watcherSnapshot()
	c.mu.Unlock()

	fireWatchers(watchers, StateClosed)
	c.pumps.Wait()
	return nil
}

// Subscribe registers a handler for an event name and returns its
// unsubscribe func. Multiple handlers per event are allowed; each fires once
// per delivery.
func (c *Channel) Subscribe(event string, h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs[event] == nil {
		c.subs[event] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.subs[event][id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[event], id)
	}
}

// OnStateChange registers a watcher for connection state transitions and
// returns its unsubscribe func
func (c *Channel) OnStateChange(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers, id)
	}
}

// Invoke sends a command and waits for the backend's ack
func (c *Channel) Invoke(ctx context.Context, command string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return &ChannelError{Op: "invoke", Reason: "failed to marshal payload", Err: err}
	}

	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		return &ChannelError{Op: "invoke", Reason: "not connected, channel is " + state.String()}
	}
	id := uuid.New().String()
	ack := make(chan error, 1)
	c.pending[id] = ack
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteJSON(Envelope{Event: command, ID: id, Data: data})
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(id)
		return &ChannelError{Op: "invoke", Reason: "write failed", Err: err}
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		c.dropPending(id)
		return &ChannelError{Op: "invoke", Reason: "cancelled waiting for ack", Err: ctx.Err()}
	}
}

// SendMessage publishes a chat message through the channel
func (c *Channel) SendMessage(ctx context.Context, senderID, receiverID, content string) error {
	return c.Invoke(ctx, CommandSendMessage, MessagePayload{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	})
}

func (c *Channel) dial() (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.credential)
	conn, _, err := c.Dialer.Dial(c.URL, header)
	return conn, err
}

// adopt installs a freshly dialed connection and starts its pumps. A Close
// that raced the dial wins: the fresh connection is discarded so no handler
// can fire after Close has returned.
func (c *Channel) adopt(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = StateConnected
	stop := make(chan struct{})
	c.pingStop = stop
	watchers := c.watcherSnapshot()
	c.mu.Unlock()
	fireWatchers(watchers, StateConnected)

	c.pumps.Add(2)
	go c.readPump(conn)
	go c.pingLoop(conn, stop)
}

func (c *Channel) readPump(conn *websocket.Conn) {
	defer c.pumps.Done()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			zap.S().Warnw("dropping malformed frame",
				"error", err,
			)
			continue
		}
		if env.Event == ackEvent {
			c.resolveAck(env)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Channel) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	defer c.pumps.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (c *Channel) dispatch(env Envelope) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	handlers := make([]Handler, 0, len(c.subs[env.Event]))
	for _, h := range c.subs[env.Event] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(env.Data)
	}
}

func (c *Channel) resolveAck(env Envelope) {
	c.mu.Lock()
	ack, ok := c.pending[env.ID]
	delete(c.pending, env.ID)
	c.mu.Unlock()
	if !ok {
		return
	}
	if env.Error != "" {
		ack <- &ChannelError{Op: "invoke", Reason: env.Error}
		return
	}
	ack <- nil
}

// handleDrop runs when the read loop dies. A deliberate Close is left alone;
// anything else moves the channel to Reconnecting and kicks off retries.
func (c *Channel) handleDrop(conn *websocket.Conn, err error) {
	_ = conn.Close()

	c.mu.Lock()
	if c.state == StateClosed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	zap.S().Warnw("live channel connection lost",
		"error", err,
	)
	c.state = StateReconnecting
	c.conn = nil
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
	c.failPendingLocked("connection lost")
	watchers := c.watcherSnapshot()
	c.mu.Unlock()

	fireWatchers(watchers, StateReconnecting)
	go c.reconnect()
}

// reconnect retries the dial with growing backoff until it succeeds, the
// channel is closed, or attempts run out. Exhaustion surfaces as a final
// Disconnected state; events produced during the outage are lost unless the
// backend replays them.
func (c *Channel) reconnect() {
	backoff := c.BaseBackoff
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		time.Sleep(backoff)
		if backoff < 10*time.Second {
			backoff *= 2
		}

		c.mu.Lock()
		if c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		conn, err := c.dial()
		if err != nil {
			zap.S().Warnw("reconnect attempt failed",
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		c.mu.Lock()
		if c.state != StateReconnecting {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.mu.Unlock()

		zap.S().Infow("live channel reconnected",
			"attempt", attempt,
		)
		c.adopt(conn)
		return
	}

	c.transition(StateDisconnected)
	zap.S().Errorw("live channel reconnect attempts exhausted",
		"attempts", c.MaxAttempts,
	)
}

func (c *Channel) transition(to State) {
	c.mu.Lock()
	if c.state == StateClosed && to != StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = to
	watchers := c.watcherSnapshot()
	c.mu.Unlock()
	fireWatchers(watchers, to)
}

func (c *Channel) watcherSnapshot() []func(State) {
	fns := make([]func(State), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	return fns
}

func fireWatchers(fns []func(State), s State) {
	for _, fn := range fns {
		fn(s)
	}
}

func (c *Channel) failPendingLocked(reason string) {
	for id, ack := range c.pending {
		ack <- &ChannelError{Op: "invoke", Reason: reason}
		delete(c.pending, id)
	}
}

func (c *Channel) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
