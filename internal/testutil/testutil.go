// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing messages, envelopes and turn contexts. The
// helpers are intentionally minimal and not intended for production usage.
package testutil

import (
	"context"

	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/logging"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().Conversation("c1").Text("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	conversationID string
	taskID         string
	role           core.Role
	text           string
	fields         map[string]string
}

// NewMessageBuilder creates a builder with a fresh task id and customer role.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		conversationID: "conv-test",
		taskID:         core.NewID(),
		role:           core.RoleCustomer,
	}
}

// Conversation sets the conversation id (chainable).
func (b *MessageBuilder) Conversation(id string) *MessageBuilder { b.conversationID = id; return b }

// Task overrides the auto-generated task id (chainable).
func (b *MessageBuilder) Task(id string) *MessageBuilder { b.taskID = id; return b }

// Role sets the author role (chainable).
func (b *MessageBuilder) Role(r core.Role) *MessageBuilder { b.role = r; return b }

// Text sets the free text payload (chainable).
func (b *MessageBuilder) Text(t string) *MessageBuilder { b.text = t; return b }

// Field adds a structured field (chainable).
func (b *MessageBuilder) Field(k, v string) *MessageBuilder {
	if b.fields == nil {
		b.fields = map[string]string{}
	}
	b.fields[k] = v
	return b
}

// Build materializes the message.
func (b *MessageBuilder) Build() core.Message {
	return core.NewMessage(b.conversationID, b.taskID, b.role, core.Content{
		Text:             b.text,
		StructuredFields: b.fields,
	})
}

// BuildEnvelope materializes an inbound envelope with the same values.
func (b *MessageBuilder) BuildEnvelope() core.Envelope {
	return core.Envelope{
		ConversationID: b.conversationID,
		TaskID:         b.taskID,
		Role:           b.role,
		Content: core.Content{
			Text:             b.text,
			StructuredFields: b.fields,
		},
	}
}

// NewTurn builds a ready-to-use turn context over a fresh conversation.
func NewTurn(msg core.Message) *core.TurnContext {
	conv := core.NewConversation(msg.ConversationID)
	return core.NewTurnContext(context.Background(), msg, conv, logging.NewNoOpLogger())
}
