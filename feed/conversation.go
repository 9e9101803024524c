package feed

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hospital-app/hospital-client/livechannel"
	"github.com/hospital-app/hospital-client/models"
)

// dedupeTolerance bounds how far apart two timestamps can be for the
// composite fallback key to treat them as the same message
const dedupeTolerance = time.Minute

// MessageStore is the REST surface the conversation synchronizer needs
type MessageStore interface {
	Messages(ctx context.Context) ([]models.Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

// Subscriber is the live channel surface the synchronizers need
type Subscriber interface {
	Subscribe(event string, h livechannel.Handler) func()
}

// Conversation reconciles the one-shot REST history with live deliveries
// into one ordered, deduplicated view of a single conversation. It tracks
// exactly one counterparty at a time; Open with a new counterparty replaces
// the previous scope without leaking its subscription.
type Conversation struct {
	Store   MessageStore
	Channel Subscriber
	SelfID  string

	mu          sync.Mutex
	generation  int
	scope       string
	messages    []models.Message
	seenIDs     map[string]struct{}
	unsubscribe func()
	onChange    func([]models.Message)
	closed      bool
}

// NewConversation creates a conversation synchronizer for the given user
func NewConversation(store MessageStore, channel Subscriber, selfID string) *Conversation {
	return &Conversation{
		Store:   store,
		Channel: channel,
		SelfID:  selfID,
	}
}

// OnChange sets the callback fired with a fresh copy of the view after every
// merge. Never fires after Close.
func (c *Conversation) OnChange(fn func([]models.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Open switches the conversation to the given counterparty: the previous
// scope's subscription is dropped, history is fetched once, and live
// deliveries for the pair are merged in. A snapshot response that arrives
// after a newer Open call is discarded.
func (c *Conversation) Open(ctx context.Context, counterpartyID string) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.scope = counterpartyID
	c.messages = nil
	c.seenIDs = make(map[string]struct{})
	c.closed = false
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	// live subscription goes up before the snapshot fetch so nothing lands
	// between the two; the dedupe rules absorb the overlap
	c.unsubscribe = c.Channel.Subscribe(livechannel.EventReceiveMessage, func(data json.RawMessage) {
		c.handleLive(gen, data)
	})
	c.mu.Unlock()

	history, err := c.Store.Messages(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if gen != c.generation {
		// a newer Open superseded this fetch
		c.mu.Unlock()
		return nil
	}
	for _, m := range history {
		if m.InConversation(c.SelfID, counterpartyID) {
			c.mergeLocked(m)
		}
	}
	c.notifyLocked()
	c.mu.Unlock()
	return nil
}

// Close drops the subscription and the in-memory view. Idempotent.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.closed = true
	c.scope = ""
	c.messages = nil
	c.seenIDs = nil
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// Scope returns the counterparty the conversation is currently open with,
// or "" when closed
func (c *Conversation) Scope() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// Messages returns a copy of the current view, ordered by CreatedAt ascending
func (c *Conversation) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Delete removes a message from the backend and the local view
func (c *Conversation) Delete(ctx context.Context, id string) error {
	if err := c.Store.DeleteMessage(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	for i, m := range c.messages {
		if m.ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			break
		}
	}
	c.notifyLocked()
	c.mu.Unlock()
	return nil
}

func (c *Conversation) handleLive(gen int, data json.RawMessage) {
	var p livechannel.MessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		zap.S().Warnw("dropping malformed live message",
			"error", err,
		)
		return
	}

	m := models.Message{
		ID:         p.ID,
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Content:    p.Content,
		CreatedAt:  time.Now(),
	}
	if p.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
			m.CreatedAt = t
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.closed {
		return
	}
	if !m.InConversation(c.SelfID, c.scope) {
		return
	}
	if c.mergeLocked(m) {
		c.notifyLocked()
	}
}

// mergeLocked inserts the message unless it is already in the view. Reports
// whether the view changed.
func (c *Conversation) mergeLocked(m models.Message) bool {
	if m.ID != "" {
		if _, dup := c.seenIDs[m.ID]; dup {
			return false
		}
		// a live delivery without an ID may already hold this message; adopt
		// the backend ID on that entry instead of inserting a second copy
		if i := c.equivalentIndexLocked(m); i >= 0 {
			if c.messages[i].ID == "" {
				c.messages[i].ID = m.ID
			}
			c.seenIDs[m.ID] = struct{}{}
			return false
		}
		c.seenIDs[m.ID] = struct{}{}
	} else if c.equivalentIndexLocked(m) >= 0 {
		return false
	}

	// keep the view non-decreasing by CreatedAt even when live deliveries
	// arrive out of order
	i := sort.Search(len(c.messages), func(i int) bool {
		return c.messages[i].CreatedAt.After(m.CreatedAt)
	})
	c.messages = append(c.messages, models.Message{})
	copy(c.messages[i+1:], c.messages[i:])
	c.messages[i] = m
	return true
}

// equivalentIndexLocked is the fallback identity check used when one side of
// a compare is missing an ID: same pair, same content, timestamps within
// tolerance. Returns the index of the matching entry, or -1.
func (c *Conversation) equivalentIndexLocked(m models.Message) int {
	for i, existing := range c.messages {
		if existing.SenderID != m.SenderID ||
			existing.ReceiverID != m.ReceiverID ||
			existing.Content != m.Content {
			continue
		}
		if existing.ID != "" && m.ID != "" && existing.ID != m.ID {
			continue
		}
		delta := existing.CreatedAt.Sub(m.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= dedupeTolerance {
			return i
		}
	}
	return -1
}

func (c *Conversation) notifyLocked() {
	if c.onChange == nil || c.closed {
		return
	}
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	c.onChange(out)
}
