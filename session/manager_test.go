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

func newManager(t *testing.T, s core.RecordStore) (*Manager, *testutil.ScriptedInvoker, *testutil.ScriptedInvoker) {
	t.Helper()
	ba := testutil.NewScriptedInvoker(core.RoleBA)
	tl := testutil.NewScriptedInvoker(core.RoleTL)
	m := NewManager(ba, func(o *Options) {
		o.Store = s
		o.TechLead = tl
	})
	return m, ba, tl
}

func TestManager_StartNew(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t, store.NewInMemoryStore())

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindMulti)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.ID())
	assert.Equal(t, core.StateGathering, sess.Conversation().State())
	assert.Equal(t, 10000, sess.Conversation().Budget().MaxTokens())
	assert.Contains(t, sess.Seed(), "octo/spoon")

	usage := m.CurrentUsage()
	assert.Equal(t, sess.ID(), usage.SessionID)
	assert.Equal(t, 0, usage.TurnCount)
}

func TestManager_ResumeUnknownSession(t *testing.T) {
	m, _, _ := newManager(t, store.NewInMemoryStore())
	_, err := m.Resume(context.Background(), "no-such-id", "octo", "spoon")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))
}

func TestManager_ResumeFidelity(t *testing.T) {
	ctx := context.Background()
	backing := store.NewInMemoryStore()
	m, _, _ := newManager(t, backing)

	sess, err := m.StartNew(ctx, "octo", "spoon", core.KindMulti)
	require.NoError(t, err)
	conv := sess.Conversation()

	_, err = conv.AppendTurn(ctx, core.SpeakerUser, "t1", 0, nil)
	require.NoError(t, err)
	_, err = conv.AppendTurn(ctx, core.SpeakerBA, "t2", 0.30, nil)
	require.NoError(t, err)
	require.NoError(t, conv.Budget().Extend(2000, 1.00, "user approved"))
	_, err = conv.AppendTurn(ctx, core.SpeakerUser, "t3", 0, nil)
	require.NoError(t, err)

	// Fresh manager over the same backing store simulates a restart.
	m2, _, _ := newManager(t, backing)
	resumed, err := m2.Resume(ctx, sess.ID(), "octo", "spoon")
	require.NoError(t, err)

	rconv := resumed.Conversation()
	assert.Equal(t, 3, rconv.TurnCount(), "resuming never resets counters")
	assert.InDelta(t, 0.30, rconv.TotalCost(), 1e-9)
	assert.Equal(t, 12000, rconv.Budget().MaxTokens(), "max tokens = initial + 2000")

	var messages []string
	for turn := range rconv.History() {
		messages = append(messages, turn.Message)
	}
	assert.Equal(t, []string{"t1", "t2", "t3"}, messages)

	usage := m2.CurrentUsage()
	assert.Equal(t, sess.ID(), usage.SessionID)
	assert.Equal(t, 3, usage.TurnCount)
	assert.InDelta(t, 0.30, usage.TotalCost, 1e-9)
}

func TestManager_CurrentUsageWithoutSession(t *testing.T) {
	m, _, _ := newManager(t, store.NewInMemoryStore())
	assert.Equal(t, Usage{}, m.CurrentUsage())
	assert.Nil(t, m.Current())
}
