package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author class of a message.
type Role string

const (
	// RoleCustomer marks messages authored by the customer.
	RoleCustomer Role = "customer"
	// RoleAgent marks messages authored by the automated pipeline.
	RoleAgent Role = "agent"
	// RoleSystem marks control or operational messages.
	RoleSystem Role = "system"
)

// Content carries the free-text payload of a message plus optional
// structured fields supplied by the boundary (order ids, SKUs, locale hints).
type Content struct {
	Text             string            `json:"text"`
	StructuredFields map[string]string `json:"structured_fields,omitempty"`
}

// Message is the primary unit of communication between the boundary, the
// router and the pipeline stages. After dispatch it must be treated as
// immutable. It captures:
//   - Correlation (ConversationID, TaskID)
//   - Authorship (Role)
//   - Conversational content
//   - A causal pointer to the message it responds to
//   - High precision UTC timestamp
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	TaskID         string    `json:"task_id"`
	Role           Role      `json:"role"`
	Content        Content   `json:"content"`
	ReplyTo        string    `json:"reply_to,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewMessage creates a message bound to a conversation and pipeline traversal.
func NewMessage(conversationID, taskID string, role Role, content Content) Message {
	return Message{
		ID:             NewID(),
		ConversationID: conversationID,
		TaskID:         taskID,
		Role:           role,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}
}

// NewCustomerMessage is a convenience wrapper for a customer-authored text message.
func NewCustomerMessage(conversationID, taskID, text string) Message {
	return NewMessage(conversationID, taskID, RoleCustomer, Content{Text: text})
}

// ReplyMetadata is attached to outbound envelopes so the boundary can expose
// classification, escalation and cost details without reparsing the reply.
type ReplyMetadata struct {
	Intent           string  `json:"intent"`
	Confidence       float64 `json:"confidence"`
	Escalated        bool    `json:"escalated"`
	EscalationReason string  `json:"escalation_reason,omitempty"`
	Degraded         bool    `json:"degraded,omitempty"`
	LatencyMs        int64   `json:"latency_ms"`
	EstimatedCostUsd float64 `json:"estimated_cost_usd"`
}

// Envelope is the wire shape exchanged with the console/UI collaborator.
// Inbound envelopes omit Metadata; outbound envelopes carry it populated.
type Envelope struct {
	ConversationID string         `json:"conversationId"`
	TaskID         string         `json:"taskId"`
	Role           Role           `json:"role"`
	Content        Content        `json:"content"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       *ReplyMetadata `json:"metadata,omitempty"`
}

// ToMessage converts an inbound envelope into an immutable Message, filling
// in identifiers the boundary left blank.
func (e Envelope) ToMessage() Message {
	m := Message{
		ID:             NewID(),
		ConversationID: e.ConversationID,
		TaskID:         e.TaskID,
		Role:           e.Role,
		Content:        e.Content,
		Timestamp:      e.Timestamp,
	}
	if m.ConversationID == "" {
		m.ConversationID = NewID()
	}
	if m.TaskID == "" {
		m.TaskID = NewID()
	}
	if m.Role == "" {
		m.Role = RoleCustomer
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return m
}

// NewID generates a new unique identifier for messages, tasks and conversations.
func NewID() string { return uuid.NewString() }
