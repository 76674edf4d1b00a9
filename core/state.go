package core

// ConversationState tracks where a conversation sits in its lifecycle from
// requirement gathering to finalized work items.
type ConversationState string

const (
	// StateGathering is the initial state: the agent is collecting context.
	StateGathering ConversationState = "gathering"
	// StateClarifying indicates the agent is asking follow-up questions.
	StateClarifying ConversationState = "clarifying"
	// StateProposing indicates draft work items are being formed.
	StateProposing ConversationState = "proposing"
	// StateReadyToFinalize indicates proposed items await user confirmation.
	StateReadyToFinalize ConversationState = "ready_to_finalize"
	// StateFinalized is terminal. Proposed items and state are frozen;
	// turns may still be appended for audit purposes.
	StateFinalized ConversationState = "finalized"
)

// transitions is the allowed-transition set. The gathering/clarifying pair
// may loop; proposing and ready_to_finalize may fall back to gathering when
// the user requests changes; finalized has no outgoing edges.
var transitions = map[ConversationState][]ConversationState{
	StateGathering:       {StateClarifying, StateProposing},
	StateClarifying:      {StateGathering, StateProposing},
	StateProposing:       {StateReadyToFinalize, StateGathering},
	StateReadyToFinalize: {StateFinalized, StateGathering},
	StateFinalized:       {},
}

// CanTransition reports whether moving from one state to another is legal.
// A no-op transition (from == to) is always allowed outside finalized.
func CanTransition(from, to ConversationState) bool {
	if from == to {
		return from != StateFinalized
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AgentRole identifies an agent variant participating in a conversation.
type AgentRole string

const (
	// RoleBA is the business analyst: the default, always-available agent.
	RoleBA AgentRole = "ba"
	// RoleTL is the tech lead, optional in degraded configurations.
	RoleTL AgentRole = "tl"
)

// Valid reports whether the role is one of the two known agent variants.
func (r AgentRole) Valid() bool { return r == RoleBA || r == RoleTL }

// Other returns the opposite role. Used by history filtering: each agent
// sees the other agent's turns but not its own prior output.
func (r AgentRole) Other() AgentRole {
	if r == RoleBA {
		return RoleTL
	}
	return RoleBA
}

// Speaker returns the speaker value attributed to turns from this role.
func (r AgentRole) Speaker() Speaker { return Speaker(r) }

// CollaborationState describes multi-agent cooperation status.
type CollaborationState string

const (
	// CollaborationActive means BA/TL cooperation is ongoing.
	CollaborationActive CollaborationState = "active"
	// CollaborationCompleted means cooperation finished normally.
	CollaborationCompleted CollaborationState = "completed"
	// CollaborationEscalated means the conversation left the normal flow.
	CollaborationEscalated CollaborationState = "escalated"
)

// ConversationKind distinguishes single-agent from multi-agent sessions.
type ConversationKind string

const (
	// KindSingle runs the business analyst alone. Intent detection is
	// disabled and no routing bookkeeping is kept.
	KindSingle ConversationKind = "single"
	// KindMulti runs BA and TL with handoff bookkeeping.
	KindMulti ConversationKind = "multi"
)

// MultiAgentRouting is the per-session routing ledger, present only for
// multi-agent conversations. Exactly one agent is active at any time.
type MultiAgentRouting struct {
	ActiveAgent   AgentRole          `json:"active_agent"`
	HandoffCount  int                `json:"handoff_count"`
	LastHandoff   *HandoffMeta       `json:"last_handoff,omitempty"`
	Collaboration CollaborationState `json:"collaboration_state"`
}

// NewMultiAgentRouting returns the initial routing ledger with the business
// analyst active and collaboration marked active.
func NewMultiAgentRouting() *MultiAgentRouting {
	return &MultiAgentRouting{ActiveAgent: RoleBA, Collaboration: CollaborationActive}
}

// Clone returns a deep copy safe for independent mutation.
func (m *MultiAgentRouting) Clone() *MultiAgentRouting {
	if m == nil {
		return nil
	}
	clone := *m
	if m.LastHandoff != nil {
		h := *m.LastHandoff
		clone.LastHandoff = &h
	}
	return &clone
}
