// Package session manages conversation lifecycles: creating new sessions,
// resuming persisted ones, and exposing the single "current session" view
// consumed by the surrounding interactive surface. The Manager rehydrates
// the budget tracker and conversation state machine from the persisted
// record; resuming never resets counters.
package session
