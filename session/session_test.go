package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/issuemesh/core"
	"github.com/hupe1980/issuemesh/internal/testutil"
	"github.com/hupe1980/issuemesh/store"
)

func TestSession_StartAppendsOpeningTurn(t *testing.T) {
	ctx := context.Background()
	ba := testutil.NewScriptedInvoker(core.RoleBA, "hello, tell me about your feature").WithUsage(200, 0.02)
	m := NewManager(ba)

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindSingle)
	require.NoError(t, err)

	out, err := sess.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello, tell me about your feature", out.Response)
	assert.Equal(t, core.RoleBA, out.Agent)
	assert.Equal(t, 1, sess.Conversation().TurnCount())
	assert.Equal(t, 200, sess.Conversation().Budget().TokensUsed())

	calls := ba.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Seed, "octo/spoon")
}

func TestSession_SendAppendsUserAndAgentTurns(t *testing.T) {
	ctx := context.Background()
	ba := testutil.NewScriptedInvoker(core.RoleBA, "what problem does it solve?").WithUsage(300, 0.03)
	m := NewManager(ba)

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindSingle)
	require.NoError(t, err)

	out, err := sess.Send(ctx, "I want a login page")
	require.NoError(t, err)
	assert.Equal(t, "what problem does it solve?", out.Response)

	var speakers []core.Speaker
	for turn := range sess.Conversation().History() {
		speakers = append(speakers, turn.Speaker)
	}
	assert.Equal(t, []core.Speaker{core.SpeakerUser, core.SpeakerBA}, speakers)
	assert.InDelta(t, 0.03, sess.Conversation().TotalCost(), 1e-9)
}

func TestSession_SendExplicitSwitch(t *testing.T) {
	ctx := context.Background()
	ba := testutil.NewScriptedInvoker(core.RoleBA)
	tl := testutil.NewScriptedInvoker(core.RoleTL, "looks reasonable")
	m := NewManager(ba, func(o *Options) { o.TechLead = tl })

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindMulti)
	require.NoError(t, err)

	out, err := sess.Send(ctx, "@tl review this api design")
	require.NoError(t, err)
	assert.Equal(t, core.RoleTL, out.SwitchedTo)
	assert.Equal(t, core.RoleTL, out.Agent)
	assert.Equal(t, "looks reasonable", out.Response)

	routing := sess.Conversation().Routing()
	assert.Equal(t, core.RoleTL, routing.ActiveAgent)
	assert.Equal(t, 1, routing.HandoffCount)

	// Handoff turn, user turn, agent turn.
	assert.Equal(t, 3, sess.Conversation().TurnCount())
	calls := tl.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "review this api design", calls[0].Input)
}

func TestSession_SendBareSwitch(t *testing.T) {
	ctx := context.Background()
	ba := testutil.NewScriptedInvoker(core.RoleBA)
	tl := testutil.NewScriptedInvoker(core.RoleTL)
	m := NewManager(ba, func(o *Options) { o.TechLead = tl })

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindMulti)
	require.NoError(t, err)

	out, err := sess.Send(ctx, "switch")
	require.NoError(t, err)
	assert.Equal(t, core.RoleTL, out.SwitchedTo)
	assert.Empty(t, out.Response, "a bare switch invokes no agent")
	assert.Empty(t, ba.Calls())
	assert.Empty(t, tl.Calls())
}

func TestSession_SendSuggestsAutoSwitch(t *testing.T) {
	ctx := context.Background()
	ba := testutil.NewScriptedInvoker(core.RoleBA, "noted")
	tl := testutil.NewScriptedInvoker(core.RoleTL)
	m := NewManager(ba, func(o *Options) { o.TechLead = tl })

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindMulti)
	require.NoError(t, err)

	out, err := sess.Send(ctx, "how should the database schema look?")
	require.NoError(t, err)
	assert.Equal(t, core.RoleTL, out.Suggested, "intent differing from the active agent is surfaced")
	assert.Equal(t, core.RoleBA, out.Agent, "but never applied silently")
	assert.Empty(t, tl.Calls())
}

func TestSession_SendSwitchToUnavailableAgent(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testutil.NewScriptedInvoker(core.RoleBA))

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindMulti)
	require.NoError(t, err)

	_, err = sess.Send(ctx, "@tl anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAgentUnavailable))

	active, _ := sess.Conversation().ActiveAgent()
	assert.Equal(t, core.RoleBA, active)
}

func TestSession_BudgetWarningsSurface(t *testing.T) {
	ctx := context.Background()
	ba := testutil.NewScriptedInvoker(core.RoleBA).WithUsage(8500, 0.10)
	m := NewManager(ba)

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindSingle)
	require.NoError(t, err)

	out, err := sess.Send(ctx, "big request")
	require.NoError(t, err)
	assert.True(t, out.NearTokenLimit)
	assert.False(t, out.TokenLimitExceeded)

	out, err = sess.Send(ctx, "another big request")
	require.NoError(t, err)
	assert.True(t, out.TokenLimitExceeded, "exhaustion is a reported state, not an error")
}

func TestSession_ExtendBudget(t *testing.T) {
	ctx := context.Background()
	m := NewManager(testutil.NewScriptedInvoker(core.RoleBA))

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindSingle)
	require.NoError(t, err)

	require.NoError(t, sess.ExtendBudget(ctx, 2000, 1.00, "user approved"))
	assert.Equal(t, 12000, sess.Conversation().Budget().MaxTokens())
	assert.Equal(t, 1, sess.Conversation().TurnCount(), "the grant is documented as a system turn")

	err = sess.ExtendBudget(ctx, -5, 0, "bad")
	assert.True(t, errors.Is(err, core.ErrInvalidExtension))
}

func TestSession_StateHintTransitions(t *testing.T) {
	ctx := context.Background()
	ba := testutil.NewScriptedInvoker(core.RoleBA).WithState(core.StateClarifying)
	m := NewManager(ba)

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindSingle)
	require.NoError(t, err)

	out, err := sess.Send(ctx, "vague idea")
	require.NoError(t, err)
	assert.Equal(t, core.StateClarifying, out.State)

	// An illegal hint is dropped without failing the turn.
	ba.WithState(core.StateFinalized)
	out, err = sess.Send(ctx, "more detail")
	require.NoError(t, err)
	assert.Equal(t, core.StateClarifying, out.State)
}

func TestSession_ProposeAndFinalize(t *testing.T) {
	ctx := context.Background()
	ba := testutil.NewScriptedInvoker(core.RoleBA)
	m := NewManager(ba)

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindSingle)
	require.NoError(t, err)

	_, err = sess.Finalize(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotReadyToFinalize))

	items := []core.WorkItem{{Title: "Add login", Body: "details"}}
	require.NoError(t, sess.Propose(ctx, items))
	assert.Equal(t, core.StateReadyToFinalize, sess.Conversation().State())

	result, err := sess.Finalize(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, result.CreatedIssues)
	assert.Equal(t, core.StateFinalized, sess.Conversation().State())
}

func TestSession_PersistenceAcrossSendAndResume(t *testing.T) {
	ctx := context.Background()
	backing := store.NewInMemoryStore()
	ba := testutil.NewScriptedInvoker(core.RoleBA, "reply one", "reply two").WithUsage(500, 0.05)
	m := NewManager(ba, func(o *Options) { o.Store = backing })

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindSingle)
	require.NoError(t, err)
	_, err = sess.Send(ctx, "first")
	require.NoError(t, err)
	_, err = sess.Send(ctx, "second")
	require.NoError(t, err)

	m2 := NewManager(testutil.NewScriptedInvoker(core.RoleBA), func(o *Options) { o.Store = backing })
	resumed, err := m2.Resume(ctx, sess.ID(), "octo", "spoon")
	require.NoError(t, err)
	assert.Equal(t, 4, resumed.Conversation().TurnCount())
	assert.Equal(t, 1000, resumed.Conversation().Budget().TokensUsed())
	assert.InDelta(t, 0.10, resumed.Conversation().TotalCost(), 1e-9)
}
