// Package core provides the foundational domain types, interfaces and
// contracts used by IssueMesh. It defines the core abstractions for:
//
//   - Turns (append-only units of conversation history)
//   - Conversation states and their legal transitions
//   - Records (the single persisted document per session)
//   - Multi-agent routing bookkeeping (active agent, handoffs)
//   - Pluggable contracts for persistence, agent invocation and auditing
//
// The package intentionally keeps implementation concerns (persistence,
// routing, lifecycle management, concrete agents) out of scope, exposing
// small interfaces to enable custom backends and extensions.
package core
