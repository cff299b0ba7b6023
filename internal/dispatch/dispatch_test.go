package dispatch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payline/internal/eventbus"
	"payline/internal/gateway"
	"payline/internal/ledger"
	"payline/internal/session"
	logx "payline/pkg/logx"
)

type fakeExecutor struct {
	calls int
	last  gateway.Payment
	rcpt  *gateway.Receipt
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, p gateway.Payment) (*gateway.Receipt, error) {
	f.calls++
	f.last = p
	if f.err != nil {
		return nil, f.err
	}
	if f.rcpt != nil {
		return f.rcpt, nil
	}
	return &gateway.Receipt{TransactionID: "tx-ok", ConfirmationLink: "https://scan.example/tx/tx-ok?cluster=devnet"}, nil
}

type fixture struct {
	d        *Dispatcher
	sessions *session.Store
	store    ledger.Store
	exec     *fakeExecutor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := ledger.Open(ledger.Config{Path: filepath.Join(t.TempDir(), "ledger.json")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sessions := session.NewStore()
	exec := &fakeExecutor{}
	d := New(sessions, st, exec, eventbus.New(), logx.Nop())
	return &fixture{d: d, sessions: sessions, store: st, exec: exec}
}

func amt(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestDispatchActionValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.d.Dispatch(ctx, Request{})
	assert.ErrorIs(t, err, ErrMissingAction)

	_, err = f.d.Dispatch(ctx, Request{Action: "teleport"})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestRegister(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.d.Dispatch(ctx, Request{Action: "register", Alias: "bob"})
	assert.ErrorIs(t, err, ErrMissingRegistrationFields)

	resp, err := f.d.Dispatch(ctx, Request{Action: "register", Alias: "bob", Credential: "cred-1"})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "bob")

	got, ok := f.sessions.Resolve("bob")
	require.True(t, ok)
	assert.Equal(t, "cred-1", got)
}

func TestSendUnresolvableCredential(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.d.Dispatch(context.Background(), Request{
		Action: "send", Alias: "ghost", Destination: "dest", Amount: amt("1"),
	})
	assert.ErrorIs(t, err, ErrUnresolvableCredential)
	assert.Zero(t, f.exec.calls)
}

func TestSendMissingAmountCausesNoMutation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.d.Dispatch(ctx, Request{Action: "send", Credential: "cred", Destination: "dest"})
	assert.ErrorIs(t, err, ErrMissingTransferFields)
	assert.Zero(t, f.exec.calls)

	pending, err := f.store.LoadPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSendRejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.d.Dispatch(context.Background(), Request{
		Action: "send", Credential: "cred", Destination: "dest", Amount: amt("0"),
	})
	assert.ErrorIs(t, err, ErrMissingTransferFields)
}

func TestSendSuccess(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, err := f.d.Dispatch(context.Background(), Request{
		Action: "send", Credential: "cred", Destination: "dest", Amount: amt("0.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-ok", resp.ReceiptID)
	assert.NotEmpty(t, resp.ConfirmationLink)
	assert.Equal(t, 1, f.exec.calls)
	assert.Equal(t, "cred", f.exec.last.Credential)
	assert.True(t, f.exec.last.Amount.Equal(decimal.RequireFromString("0.5")))
}

func TestSendRegistersAliasOnFirstUse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.d.Dispatch(context.Background(), Request{
		Action: "send", Credential: "cred-new", Alias: "fresh", Destination: "dest", Amount: amt("1"),
	})
	require.NoError(t, err)

	got, ok := f.sessions.Resolve("fresh")
	require.True(t, ok)
	assert.Equal(t, "cred-new", got)
}

func TestSendDirectCredentialWinsWithoutOverwriting(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.sessions.Register("bob", "cred-old")

	_, err := f.d.Dispatch(context.Background(), Request{
		Action: "send", Credential: "cred-direct", Alias: "bob", Destination: "dest", Amount: amt("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "cred-direct", f.exec.last.Credential)

	// The pre-registered alias keeps its credential.
	got, _ := f.sessions.Resolve("bob")
	assert.Equal(t, "cred-old", got)
}

func TestSendPropagatesGatewayError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.exec.err = pkgerrors.New("insufficient funds")

	_, err := f.d.Dispatch(context.Background(), Request{
		Action: "send", Credential: "cred", Destination: "dest", Amount: amt("1"),
	})
	require.Error(t, err)
	assert.Equal(t, "insufficient funds", err.Error())
}

func TestScheduleAppendsPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	due := time.Now().Add(time.Hour)
	resp, err := f.d.Dispatch(ctx, Request{
		Action: "schedule", Credential: "cred", Alias: "bob",
		Destination: "dest", Amount: amt("0.2"), DueAt: &due,
	})
	require.NoError(t, err)
	assert.True(t, resp.Scheduled)
	assert.NotEmpty(t, resp.ActionID)

	pending, err := f.store.LoadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	a := pending[0]
	assert.Equal(t, ledger.StatusPending, a.Status)
	assert.Equal(t, "cred", a.Credential) // snapshot, not a live alias reference
	assert.Equal(t, "bob", a.Alias)
	assert.True(t, a.DueAt.Equal(due.UTC()))
}

func TestSchedulePastDueIsNotExecutedHere(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	due := time.Now().Add(-time.Hour)
	resp, err := f.d.Dispatch(context.Background(), Request{
		Action: "schedule", Credential: "cred", Destination: "dest", Amount: amt("1"), DueAt: &due,
	})
	require.NoError(t, err)
	assert.True(t, resp.Scheduled)
	// Deciding due-ness belongs to the scheduler loop.
	assert.Zero(t, f.exec.calls)
}

func TestScheduleRequiresDueAt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.d.Dispatch(context.Background(), Request{
		Action: "schedule", Credential: "cred", Destination: "dest", Amount: amt("1"),
	})
	assert.ErrorIs(t, err, ErrMissingTransferFields)
}
