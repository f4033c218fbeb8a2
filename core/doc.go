// Package core provides the foundational domain types, interfaces and execution
// contexts used by ReplyPipe. It defines the core abstractions for:
//
//   - Messages and envelopes (immutable communication records)
//   - Conversations (stateful containers with message history and derived context)
//   - Intents, validation verdicts and escalation decisions (typed stage outputs)
//   - Stage (the unit of pipeline work) and TurnContext (scoped execution state)
//   - Money (exact integer-cent amounts for threshold comparisons)
//
// The package intentionally keeps implementation concerns (routing, gateway
// resilience, concrete stages) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
