package core

import "time"

// RepoRef identifies the repository a session targets.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// String returns the owner/name form.
func (r RepoRef) String() string { return r.Owner + "/" + r.Name }

// WorkItem is a draft issue proposed by an agent, pending user confirmation.
type WorkItem struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Extension is one auditable budget grant. Extensions only ever increase
// limits; each grant is a distinct ledger entry and is never merged.
type Extension struct {
	Tokens    int       `json:"tokens"`
	Cost      float64   `json:"cost"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// BudgetSnapshot is the persisted shape of a token budget. Maximum values
// are intentionally absent: they are always derived as initial plus the sum
// of extensions, so a restored budget can never drift from its ledger.
type BudgetSnapshot struct {
	InitialTokens    int         `json:"initial_tokens"`
	InitialCost      float64     `json:"initial_cost"`
	WarningThreshold float64     `json:"warning_threshold"`
	Extensions       []Extension `json:"extensions,omitempty"`
	TokensUsed       int         `json:"tokens_used"`
	CostUsed         float64     `json:"cost_used"`
}

// Record is the single persisted document per session: the full conversation
// plus budget snapshot described by the persistence contract. It is stored
// and loaded as a whole; partial-field updates must load the record first so
// concurrently granted budget extensions are never clobbered.
type Record struct {
	SessionID      string             `json:"session_id"`
	Repo           RepoRef            `json:"repo"`
	Kind           ConversationKind   `json:"kind"`
	State          ConversationState  `json:"state"`
	History        []Turn             `json:"history"`
	ProposedIssues []WorkItem         `json:"proposed_issues,omitempty"`
	TotalCost      float64            `json:"total_cost"`
	TurnCount      int                `json:"turn_count"`
	TokenBudget    BudgetSnapshot     `json:"token_budget"`
	MultiAgent     *MultiAgentRouting `json:"multi_agent,omitempty"`
	Created        time.Time          `json:"created"`
	Updated        time.Time          `json:"updated"`
}

// NewRecord creates the initial record for a fresh session. Multi-agent
// sessions start with the routing ledger initialized; single-agent sessions
// carry none.
func NewRecord(sessionID string, repo RepoRef, kind ConversationKind, budget BudgetSnapshot) *Record {
	now := time.Now().UTC()
	rec := &Record{
		SessionID:   sessionID,
		Repo:        repo,
		Kind:        kind,
		State:       StateGathering,
		History:     []Turn{},
		TokenBudget: budget,
		Created:     now,
		Updated:     now,
	}
	if kind == KindMulti {
		rec.MultiAgent = NewMultiAgentRouting()
	}
	return rec
}

// Clone returns a deep copy of the record safe for independent mutation.
func (r *Record) Clone() *Record {
	clone := *r
	clone.History = make([]Turn, len(r.History))
	copy(clone.History, r.History)
	for i, t := range r.History {
		if t.Handoff != nil {
			h := *t.Handoff
			clone.History[i].Handoff = &h
		}
	}
	if r.ProposedIssues != nil {
		clone.ProposedIssues = make([]WorkItem, len(r.ProposedIssues))
		copy(clone.ProposedIssues, r.ProposedIssues)
	}
	if r.TokenBudget.Extensions != nil {
		clone.TokenBudget.Extensions = make([]Extension, len(r.TokenBudget.Extensions))
		copy(clone.TokenBudget.Extensions, r.TokenBudget.Extensions)
	}
	clone.MultiAgent = r.MultiAgent.Clone()
	return &clone
}
