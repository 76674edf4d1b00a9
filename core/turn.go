package core

import (
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	// SpeakerUser marks turns containing raw user input.
	SpeakerUser Speaker = "user"
	// SpeakerBA marks turns produced by the business analyst agent.
	SpeakerBA Speaker = "ba"
	// SpeakerTL marks turns produced by the tech lead agent.
	SpeakerTL Speaker = "tl"
	// SpeakerSystem marks engine-generated turns (handoffs, fallbacks).
	SpeakerSystem Speaker = "system"
)

// HandoffMeta describes a recorded transfer of active-agent status. It is
// attached to the system turn that documents the handoff.
type HandoffMeta struct {
	From   AgentRole `json:"from"`
	To     AgentRole `json:"to"`
	Reason string    `json:"reason,omitempty"`
}

// Turn is one recorded exchange unit in a conversation's history. After
// emission it must be treated as immutable: turns are append-only, never
// edited or removed.
//
// Sequence numbers are 1-based and strictly gapless: turn N carries exactly
// sequence N regardless of speaker interleaving.
type Turn struct {
	ID        string       `json:"id"`
	Sequence  int          `json:"sequence"`
	Speaker   Speaker      `json:"speaker"`
	Message   string       `json:"message"`
	Cost      float64      `json:"cost"`
	Timestamp time.Time    `json:"timestamp"`
	Handoff   *HandoffMeta `json:"handoff,omitempty"`
}

// NewTurn creates a turn with a fresh id and UTC timestamp. The sequence
// number is assigned by the conversation on append; callers leave it zero.
func NewTurn(speaker Speaker, message string, cost float64) Turn {
	return Turn{
		ID:        NewID(),
		Speaker:   speaker,
		Message:   message,
		Cost:      cost,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserTurn is a convenience wrapper for a user-authored turn.
func NewUserTurn(message string) Turn {
	return NewTurn(SpeakerUser, message, 0)
}

// NewSystemTurn creates an engine-authored audit turn. System turns carry no
// cost; they document handoffs, fallbacks and other orchestration events.
func NewSystemTurn(message string) Turn {
	return NewTurn(SpeakerSystem, message, 0)
}

// NewHandoffTurn creates the system turn documenting an agent handoff.
func NewHandoffTurn(from, to AgentRole, reason string) Turn {
	t := NewSystemTurn("handoff " + string(from) + " -> " + string(to) + ": " + reason)
	t.Handoff = &HandoffMeta{From: from, To: to, Reason: reason}
	return t
}

// NewID generates a new unique identifier for sessions and turns.
func NewID() string { return uuid.NewString() }
