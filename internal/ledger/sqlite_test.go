package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "payline/pkg/logx"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "ledger.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()
	st := newSQLiteStore(t)
	ctx := context.Background()

	a := testAction("dest-a")
	b := testAction("dest-b")
	require.NoError(t, st.AppendPending(ctx, a))
	require.NoError(t, st.AppendPending(ctx, b))

	pending, err := st.LoadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.True(t, pending[0].Amount.Equal(a.Amount))
}

func TestSQLiteArchiveTerminal(t *testing.T) {
	t.Parallel()
	st := newSQLiteStore(t)
	ctx := context.Background()

	due := testAction("due")
	later := testAction("later")
	require.NoError(t, st.AppendPending(ctx, due))
	require.NoError(t, st.AppendPending(ctx, later))

	done := due
	done.MarkCompleted("tx1", "link1", time.Now())
	require.NoError(t, st.ArchiveTerminal(ctx, []Action{done}))

	pending, err := st.LoadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.ID, pending[0].ID)

	archive, err := st.LoadArchive(ctx)
	require.NoError(t, err)
	require.Len(t, archive, 1)
	assert.Equal(t, StatusCompleted, archive[0].Status)
}

func TestSQLiteSavePendingReplaces(t *testing.T) {
	t.Parallel()
	st := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendPending(ctx, testAction("old")))
	require.NoError(t, st.SavePending(ctx, []Action{testAction("new")}))

	pending, err := st.LoadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "new", pending[0].Destination)
}
