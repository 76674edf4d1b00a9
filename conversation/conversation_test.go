package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/issuemesh/core"
	"github.com/hupe1980/issuemesh/store"
)

func newConversation(t *testing.T, kind core.ConversationKind) (*Conversation, *store.InMemoryStore) {
	t.Helper()
	s := store.NewInMemoryStore()
	rec := core.NewRecord("s1", core.RepoRef{Owner: "octo", Name: "spoon"}, kind, core.BudgetSnapshot{InitialTokens: 10000, InitialCost: 5, WarningThreshold: 0.8})
	c, err := New(context.Background(), s, rec)
	require.NoError(t, err)
	return c, s
}

func TestConversation_TurnOrdering(t *testing.T) {
	ctx := context.Background()
	c, _ := newConversation(t, core.KindMulti)

	speakers := []core.Speaker{core.SpeakerUser, core.SpeakerBA, core.SpeakerUser, core.SpeakerSystem, core.SpeakerTL}
	for i, sp := range speakers {
		turn, err := c.AppendTurn(ctx, sp, "msg", 0.01, nil)
		require.NoError(t, err)
		assert.Equal(t, i+1, turn.Sequence, "sequence numbers must be gapless regardless of speaker interleaving")
	}
	assert.Equal(t, len(speakers), c.TurnCount())

	var seqs []int
	for turn := range c.History() {
		seqs = append(seqs, turn.Sequence)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seqs)
}

func TestConversation_AppendUpdatesTotals(t *testing.T) {
	ctx := context.Background()
	c, _ := newConversation(t, core.KindSingle)

	_, err := c.AppendTurn(ctx, core.SpeakerUser, "hi", 0, nil)
	require.NoError(t, err)
	_, err = c.AppendTurn(ctx, core.SpeakerBA, "hello", 0.25, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, c.TotalCost(), 1e-9)
	assert.Equal(t, 2, c.TurnCount())
}

func TestConversation_StateTransitions(t *testing.T) {
	ctx := context.Background()
	c, _ := newConversation(t, core.KindSingle)

	require.NoError(t, c.TransitionTo(ctx, core.StateClarifying))
	require.NoError(t, c.TransitionTo(ctx, core.StateGathering))
	require.NoError(t, c.TransitionTo(ctx, core.StateProposing))

	err := c.TransitionTo(ctx, core.StateClarifying)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidStateTransition))
	assert.Equal(t, core.StateProposing, c.State(), "failed transition must leave state unchanged")
}

func TestConversation_FinalizeGuards(t *testing.T) {
	ctx := context.Background()
	c, _ := newConversation(t, core.KindSingle)

	err := c.Finalize(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotReadyToFinalize))
	assert.Equal(t, core.StateGathering, c.State())

	require.NoError(t, c.TransitionTo(ctx, core.StateProposing))
	require.NoError(t, c.Finalize(ctx), "finalize from proposing is allowed")
	assert.Equal(t, core.StateFinalized, c.State())

	// Finalized is terminal: no transitions, no new proposals.
	err = c.TransitionTo(ctx, core.StateGathering)
	assert.True(t, errors.Is(err, core.ErrInvalidStateTransition))
	err = c.SetProposedItems(ctx, []core.WorkItem{{Title: "late"}})
	assert.True(t, errors.Is(err, core.ErrInvalidStateTransition))

	// Audit turns may still be appended after finalization.
	turn, err := c.AppendTurn(ctx, core.SpeakerSystem, "post-final audit", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, core.SpeakerSystem, turn.Speaker)
}

func TestConversation_SetProposedItems(t *testing.T) {
	ctx := context.Background()
	c, _ := newConversation(t, core.KindSingle)

	items := []core.WorkItem{{Title: "Add login", Body: "details"}, {Title: "Fix flaky test", Body: "more"}}
	require.NoError(t, c.SetProposedItems(ctx, items))
	assert.Equal(t, core.StateReadyToFinalize, c.State())
	assert.Equal(t, items, c.ProposedItems())

	// A fresh proposal supersedes the previous one.
	replacement := []core.WorkItem{{Title: "Only this", Body: "b"}}
	require.NoError(t, c.SetProposedItems(ctx, replacement))
	assert.Equal(t, replacement, c.ProposedItems())

	require.NoError(t, c.Finalize(ctx))
}

func TestConversation_RecordHandoff(t *testing.T) {
	ctx := context.Background()
	c, _ := newConversation(t, core.KindMulti)

	active, multi := c.ActiveAgent()
	require.True(t, multi)
	assert.Equal(t, core.RoleBA, active)

	turn, err := c.RecordHandoff(ctx, core.RoleBA, core.RoleTL, "api design question")
	require.NoError(t, err)
	assert.Equal(t, core.SpeakerSystem, turn.Speaker)
	require.NotNil(t, turn.Handoff)
	assert.Equal(t, core.RoleBA, turn.Handoff.From)
	assert.Equal(t, core.RoleTL, turn.Handoff.To)

	routing := c.Routing()
	assert.Equal(t, core.RoleTL, routing.ActiveAgent)
	assert.Equal(t, 1, routing.HandoffCount)
	require.NotNil(t, routing.LastHandoff)
	assert.Equal(t, "api design question", routing.LastHandoff.Reason)
}

func TestConversation_RecordHandoffSingleAgent(t *testing.T) {
	c, _ := newConversation(t, core.KindSingle)
	_, err := c.RecordHandoff(context.Background(), core.RoleBA, core.RoleTL, "nope")
	assert.Error(t, err)
}

func TestConversation_HistoryFilter(t *testing.T) {
	ctx := context.Background()
	c, _ := newConversation(t, core.KindMulti)

	_, err := c.AppendTurn(ctx, core.SpeakerUser, "u1", 0, nil)
	require.NoError(t, err)
	_, err = c.AppendTurn(ctx, core.SpeakerBA, "ba1", 0.1, nil)
	require.NoError(t, err)
	_, err = c.AppendTurn(ctx, core.SpeakerTL, "tl1", 0.1, nil)
	require.NoError(t, err)
	_, err = c.AppendTurn(ctx, core.SpeakerSystem, "sys1", 0, nil)
	require.NoError(t, err)

	// The tech lead sees user, system and BA turns but not its own output.
	var seen []string
	for turn := range c.HistoryFor(core.RoleTL) {
		seen = append(seen, turn.Message)
	}
	assert.Equal(t, []string{"u1", "ba1", "sys1"}, seen)

	seen = nil
	for turn := range c.HistoryFor(core.RoleBA) {
		seen = append(seen, turn.Message)
	}
	assert.Equal(t, []string{"u1", "tl1", "sys1"}, seen)

	// The sequence is restartable: a second pass yields the same turns.
	seq := c.HistoryFor(core.RoleBA)
	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	assert.Equal(t, first, second)
}

func TestConversation_Escalate(t *testing.T) {
	ctx := context.Background()
	c, _ := newConversation(t, core.KindMulti)

	require.NoError(t, c.Escalate(ctx, "user asked for a human"))
	assert.Equal(t, core.CollaborationEscalated, c.Routing().Collaboration)
	assert.Equal(t, 1, c.TurnCount())
}

func TestLoad_NotFound(t *testing.T) {
	s := store.NewInMemoryStore()
	_, err := Load(context.Background(), s, "unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConversationNotFound))
}

func TestConversation_PersistAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, s := newConversation(t, core.KindMulti)

	_, err := c.AppendTurn(ctx, core.SpeakerUser, "u1", 0, nil)
	require.NoError(t, err)
	_, err = c.AppendTurn(ctx, core.SpeakerBA, "ba1", 0.40, nil)
	require.NoError(t, err)
	c.Budget().RecordUsage(1200, 0.40)
	require.NoError(t, c.Budget().Extend(2000, 1.00, "user approved"))
	_, err = c.AppendTurn(ctx, core.SpeakerUser, "u2", 0, nil)
	require.NoError(t, err)

	loaded, err := Load(ctx, s, "s1")
	require.NoError(t, err)

	assert.Equal(t, 3, loaded.TurnCount())
	assert.InDelta(t, 0.40, loaded.TotalCost(), 1e-9)
	assert.Equal(t, 12000, loaded.Budget().MaxTokens(), "max tokens must be rederived from the extension ledger")
	assert.Equal(t, 1200, loaded.Budget().TokensUsed())

	var messages []string
	for turn := range loaded.History() {
		messages = append(messages, turn.Message)
	}
	assert.Equal(t, []string{"u1", "ba1", "u2"}, messages)
}
