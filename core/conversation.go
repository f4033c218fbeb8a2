package core

import (
	"sync"
	"time"
)

// Conversation is a stateful container tracking an ordered message history
// plus mutable derived context (customer identity, locale, extracted
// entities). It is safe for concurrent access.
//
// Contract:
//   - Context mutations update the Updated timestamp
//   - Messages returns a defensive copy to avoid external mutation
//   - ApplyContextDelta merges staged turn deltas atomically at turn end
//   - IdleSince reports how long the conversation has been untouched,
//     used by the router's garbage collection loop.
type Conversation struct {
	ID       string                 `json:"id"`
	Context  map[string]interface{} `json:"context"`
	History  []Message              `json:"history"`
	Created  time.Time              `json:"created"`
	Updated  time.Time              `json:"updated"`
	Metadata map[string]string      `json:"metadata"`
	mu       sync.RWMutex
}

// NewConversation creates a conversation with the given ID.
func NewConversation(id string) *Conversation {
	now := time.Now()
	return &Conversation{ID: id, Context: map[string]interface{}{}, History: []Message{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// GetContext returns the value and existence flag for a context key.
func (c *Conversation) GetContext(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.Context[key]
	return v, ok
}

// SetContext sets a key/value pair in conversation context updating the Updated timestamp.
func (c *Conversation) SetContext(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Context[key] = value
	c.Updated = time.Now()
}

// ApplyContextDelta merges the provided key/value pairs into Context.
func (c *Conversation) ApplyContextDelta(delta map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range delta {
		c.Context[k] = v
	}
	c.Updated = time.Now()
}

// AddMessage appends a message to the history updating the Updated timestamp.
func (c *Conversation) AddMessage(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.History = append(c.History, m)
	c.Updated = time.Now()
}

// Messages returns a defensive copy of the full message slice.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.History))
	copy(out, c.History)
	return out
}

// LastCustomerMessage returns the most recent customer-authored message and
// whether one exists.
func (c *Conversation) LastCustomerMessage() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].Role == RoleCustomer {
			return c.History[i], true
		}
	}
	return Message{}, false
}

// IdleSince returns the duration since the conversation was last touched.
func (c *Conversation) IdleSince(now time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return now.Sub(c.Updated)
}

// Clone returns a deep copy of the conversation safe for independent mutation.
func (c *Conversation) Clone() *Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := &Conversation{
		ID:       c.ID,
		Context:  make(map[string]interface{}, len(c.Context)),
		History:  make([]Message, len(c.History)),
		Created:  c.Created,
		Updated:  c.Updated,
		Metadata: make(map[string]string, len(c.Metadata)),
	}
	for k, v := range c.Context {
		clone.Context[k] = v
	}
	copy(clone.History, c.History)
	for k, v := range c.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
