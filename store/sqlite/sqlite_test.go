package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/issuemesh/core"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "issuemesh.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "missing", core.RecordKey)
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))

	rec := core.NewRecord("s1", core.RepoRef{Owner: "octo", Name: "spoon"}, core.KindSingle, core.BudgetSnapshot{InitialTokens: 10000, InitialCost: 5})
	rec.History = append(rec.History, core.NewUserTurn("hello"))
	rec.TurnCount = 1
	require.NoError(t, s.Set(ctx, "s1", core.RecordKey, rec))

	got, err := s.Get(ctx, "s1", core.RecordKey)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Len(t, got.History, 1)
	assert.Equal(t, 10000, got.TokenBudget.InitialTokens)

	// Overwrites replace the whole document.
	rec.TurnCount = 2
	rec.History = append(rec.History, core.NewSystemTurn("note"))
	require.NoError(t, s.Set(ctx, "s1", core.RecordKey, rec))
	got, err = s.Get(ctx, "s1", core.RecordKey)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TurnCount)
	assert.Len(t, got.History, 2)
}
