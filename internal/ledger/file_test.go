package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "payline/pkg/logx"
)

func newFileStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "ledger.json")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testAction(dest string) Action {
	return NewAction("", "cred", dest, decimal.RequireFromString("0.2"), time.Now().Add(time.Hour))
}

func TestFileStoreMissingFilesAreEmpty(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)
	ctx := context.Background()

	pending, err := st.LoadPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	archive, err := st.LoadArchive(ctx)
	require.NoError(t, err)
	assert.Empty(t, archive)
}

func TestFileStoreCorruptFileIsEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Path: filepath.Join(dir, "ledger.json")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger.pending.json"), []byte("{not json"), 0o600))

	pending, err := st.LoadPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFileStoreAppendAndLoadKeepsOrder(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)
	ctx := context.Background()

	a := testAction("dest-a")
	b := testAction("dest-b")
	require.NoError(t, st.AppendPending(ctx, a))
	require.NoError(t, st.AppendPending(ctx, b))

	pending, err := st.LoadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[1].ID)
	assert.Equal(t, StatusPending, pending[0].Status)
	assert.True(t, pending[0].Amount.Equal(decimal.RequireFromString("0.2")))
}

func TestFileStoreSavePendingReplaces(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendPending(ctx, testAction("old")))
	repl := testAction("new")
	require.NoError(t, st.SavePending(ctx, []Action{repl}))

	pending, err := st.LoadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "new", pending[0].Destination)
}

func TestFileStoreAppendArchivePreservesExisting(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)
	ctx := context.Background()

	first := testAction("one")
	first.MarkCompleted("tx1", "link1", time.Now())
	require.NoError(t, st.AppendArchive(ctx, []Action{first}))

	second := testAction("two")
	second.MarkFailed("boom", time.Now())
	require.NoError(t, st.AppendArchive(ctx, []Action{second}))

	archive, err := st.LoadArchive(ctx)
	require.NoError(t, err)
	require.Len(t, archive, 2)
	assert.Equal(t, first.ID, archive[0].ID)
	assert.Equal(t, StatusCompleted, archive[0].Status)
	assert.Equal(t, second.ID, archive[1].ID)
	assert.Equal(t, "boom", archive[1].Error)
}

func TestFileStoreArchiveTerminalMovesRecords(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)
	ctx := context.Background()

	due := testAction("due")
	later := testAction("later")
	require.NoError(t, st.AppendPending(ctx, due))
	require.NoError(t, st.AppendPending(ctx, later))

	done := due
	done.MarkCompleted("tx9", "link9", time.Now())
	require.NoError(t, st.ArchiveTerminal(ctx, []Action{done}))

	pending, err := st.LoadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.ID, pending[0].ID)

	archive, err := st.LoadArchive(ctx)
	require.NoError(t, err)
	require.Len(t, archive, 1)
	assert.Equal(t, due.ID, archive[0].ID)
	assert.Equal(t, StatusCompleted, archive[0].Status)
}

// An action enqueued after a cycle loaded its snapshot must survive the
// cycle's commit.
func TestFileStoreArchiveTerminalKeepsConcurrentAppends(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)
	ctx := context.Background()

	due := testAction("due")
	require.NoError(t, st.AppendPending(ctx, due))

	// Scheduler loads its snapshot here, then a new action arrives.
	late := testAction("late-arrival")
	require.NoError(t, st.AppendPending(ctx, late))

	done := due
	done.MarkFailed("gateway unreachable", time.Now())
	require.NoError(t, st.ArchiveTerminal(ctx, []Action{done}))

	pending, err := st.LoadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, late.ID, pending[0].ID)
}

func TestFileStoreSaveLeavesNoTempFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Path: filepath.Join(dir, "ledger.json")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.SavePending(context.Background(), []Action{testAction("x")}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestFileStoreClosedErrors(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)
	require.NoError(t, st.Close())

	err := st.AppendPending(context.Background(), testAction("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop())
	require.Error(t, err)
}
