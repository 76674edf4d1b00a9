package testutil

import (
	"github.com/hupe1980/issuemesh/core"
)

// RecordBuilder helps construct session records with fluent chaining.
// Example:
//
//	rec := NewRecordBuilder("sess-1").Multi().Turn(core.SpeakerUser, "hi").Build()
type RecordBuilder struct {
	id     string
	repo   core.RepoRef
	kind   core.ConversationKind
	budget core.BudgetSnapshot
	turns  []core.Turn
}

// NewRecordBuilder creates a builder for a single-agent record targeting a
// placeholder repository and default budget.
func NewRecordBuilder(id string) *RecordBuilder {
	return &RecordBuilder{
		id:     id,
		repo:   core.RepoRef{Owner: "octo", Name: "spoon"},
		kind:   core.KindSingle,
		budget: core.BudgetSnapshot{InitialTokens: 10000, InitialCost: 5, WarningThreshold: 0.8},
	}
}

// Repo sets the target repository (chainable).
func (b *RecordBuilder) Repo(owner, name string) *RecordBuilder {
	b.repo = core.RepoRef{Owner: owner, Name: name}
	return b
}

// Multi marks the record as a multi-agent conversation (chainable).
func (b *RecordBuilder) Multi() *RecordBuilder {
	b.kind = core.KindMulti
	return b
}

// Budget overrides the initial budget snapshot (chainable).
func (b *RecordBuilder) Budget(s core.BudgetSnapshot) *RecordBuilder {
	b.budget = s
	return b
}

// Turn appends a turn with the next sequence number (chainable).
func (b *RecordBuilder) Turn(speaker core.Speaker, message string) *RecordBuilder {
	t := core.NewTurn(speaker, message, 0)
	t.Sequence = len(b.turns) + 1
	b.turns = append(b.turns, t)
	return b
}

// Build returns the assembled record.
func (b *RecordBuilder) Build() *core.Record {
	rec := core.NewRecord(b.id, b.repo, b.kind, b.budget)
	rec.History = append(rec.History, b.turns...)
	rec.TurnCount = len(b.turns)
	return rec
}
