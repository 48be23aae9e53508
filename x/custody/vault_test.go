package custody

import (
	"fmt"
	"testing"

	"github.com/iov-one/custodian"
	"github.com/iov-one/custodian/custodiantest"
	"github.com/iov-one/custodian/errors"
	"github.com/iov-one/custodian/store"
	"github.com/iov-one/custodian/x/authority"
	"github.com/iov-one/custodian/x/cash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptLedger wraps the real funds controller so that tests can force
// transfer failures and run arbitrary code while a transfer is in
// flight.
type scriptLedger struct {
	*cash.Controller
	moveErr      error
	tokenMoveErr error
	onMove       func()
}

func (l *scriptLedger) Move(db custodian.KVStore, src, dest custodian.Address, amount int64) error {
	if l.onMove != nil {
		l.onMove()
	}
	if l.moveErr != nil {
		return l.moveErr
	}
	return l.Controller.Move(db, src, dest, amount)
}

func (l *scriptLedger) MoveToken(db custodian.KVStore, token, src, dest custodian.Address, amount int64) error {
	if l.onMove != nil {
		l.onMove()
	}
	if l.tokenMoveErr != nil {
		return l.tokenMoveErr
	}
	return l.Controller.MoveToken(db, token, src, dest, amount)
}

// eventRecorder collects every published event in order.
type eventRecorder struct {
	events []Event
}

func (r *eventRecorder) Emit(e Event) {
	r.events = append(r.events, e)
}

// testVault is a fully wired engine with three signers and a quorum of
// two, the most common fixture in this suite.
type testVault struct {
	db      custodian.KVStore
	ctrl    *cash.Controller
	ledger  *scriptLedger
	vault   *Vault
	events  *eventRecorder
	custody custodian.Address
	a, b, c custodian.Address
}

func newTestVault(t testing.TB, opts ...Option) *testVault {
	t.Helper()

	tv := &testVault{
		db:      store.MemStore(),
		ctrl:    cash.NewController(),
		events:  &eventRecorder{},
		custody: custodiantest.NewSigner(),
		a:       custodiantest.NewSigner(),
		b:       custodiantest.NewSigner(),
		c:       custodiantest.NewSigner(),
	}
	auth, err := authority.New([]custodian.Address{tv.a, tv.b, tv.c}, 2)
	require.NoError(t, err)
	tv.ledger = &scriptLedger{Controller: tv.ctrl}

	opts = append([]Option{WithEmitter(tv.events)}, opts...)
	tv.vault, err = NewVault(tv.db, auth, tv.ledger, tv.custody, opts...)
	require.NoError(t, err)
	return tv
}

func (tv *testVault) deposit(t testing.TB, amount int64) {
	t.Helper()
	require.NoError(t, tv.ctrl.Deposit(tv.db, tv.custody, amount))
}

func (tv *testVault) depositToken(t testing.TB, token custodian.Address, amount int64) {
	t.Helper()
	require.NoError(t, tv.ctrl.DepositToken(tv.db, token, tv.custody, amount))
}

func TestNewVault(t *testing.T) {
	db := store.MemStore()
	auth, err := authority.New([]custodian.Address{custodiantest.NewSigner()}, 1)
	require.NoError(t, err)
	ledger := cash.NewController()
	custody := custodiantest.NewSigner()

	_, err = NewVault(nil, auth, ledger, custody)
	assert.True(t, errors.ErrEmpty.Is(err), "got %+v", err)

	_, err = NewVault(db, nil, ledger, custody)
	assert.True(t, errors.ErrEmpty.Is(err), "got %+v", err)

	_, err = NewVault(db, auth, nil, custody)
	assert.True(t, errors.ErrEmpty.Is(err), "got %+v", err)

	_, err = NewVault(db, auth, ledger, custodian.Address("x"))
	assert.True(t, errors.ErrInput.Is(err), "got %+v", err)

	v, err := NewVault(db, auth, ledger, custody)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Quorum())
	assert.Equal(t, 1, len(v.Signers()))
	assert.Equal(t, custody, v.Custody())
}

func TestNativeLifecycle(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)
	recipient := custodiantest.NewSigner()

	id, err := tv.vault.InitiateNative(tv.a, recipient, 300)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	req, err := tv.vault.NativeRequest(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), req.Approvals)
	assert.Equal(t, []custodian.Address{tv.a}, req.ApprovedBy)
	assert.False(t, req.Executed)

	// One more vote satisfies the quorum of two.
	require.NoError(t, tv.vault.ApproveNative(tv.b, id))
	req, err = tv.vault.NativeRequest(id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), req.Approvals)

	// Any signer can pull the trigger, voting is not required for it.
	require.NoError(t, tv.vault.ExecuteNative(tv.c, id))

	req, err = tv.vault.NativeRequest(id)
	require.NoError(t, err)
	assert.True(t, req.Executed)

	got, err := tv.ctrl.Balance(tv.db, tv.custody)
	require.NoError(t, err)
	assert.Equal(t, int64(700), got)
	got, err = tv.ctrl.Balance(tv.db, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got)

	wantEvents := []Event{
		InitiatedEvent{Class: ClassNative, ID: 0, Initiator: tv.a, Recipient: recipient, Amount: 300},
		ApprovedEvent{Class: ClassNative, ID: 0, Approver: tv.a, Approvals: 1},
		ApprovedEvent{Class: ClassNative, ID: 0, Approver: tv.b, Approvals: 2},
		ExecutedEvent{Class: ClassNative, ID: 0, Executor: tv.c},
	}
	assert.Equal(t, wantEvents, tv.events.events)
}

func TestNativeIDsAreSequential(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)
	recipient := custodiantest.NewSigner()

	for want := uint64(0); want < 3; want++ {
		id, err := tv.vault.InitiateNative(tv.a, recipient, 10)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestInitiateNativeValidation(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 100)
	recipient := custodiantest.NewSigner()

	_, err := tv.vault.InitiateNative(custodiantest.NewSigner(), recipient, 10)
	assert.True(t, errors.ErrUnauthorized.Is(err), "got %+v", err)

	_, err = tv.vault.InitiateNative(tv.a, nil, 10)
	assert.True(t, ErrInvalidRecipient.Is(err), "got %+v", err)

	_, err = tv.vault.InitiateNative(tv.a, recipient, 0)
	assert.True(t, ErrInvalidAmount.Is(err), "got %+v", err)

	_, err = tv.vault.InitiateNative(tv.a, recipient, -10)
	assert.True(t, ErrInvalidAmount.Is(err), "got %+v", err)

	// The custody pool holds 100 at this point.
	_, err = tv.vault.InitiateNative(tv.a, recipient, 101)
	assert.True(t, ErrInsufficientBalance.Is(err), "got %+v", err)

	// Failed initiations must not burn ids.
	id, err := tv.vault.InitiateNative(tv.a, recipient, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
}

func TestApproveValidation(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)

	id, err := tv.vault.InitiateNative(tv.a, custodiantest.NewSigner(), 100)
	require.NoError(t, err)

	err = tv.vault.ApproveNative(custodiantest.NewSigner(), id)
	assert.True(t, errors.ErrUnauthorized.Is(err), "got %+v", err)

	err = tv.vault.ApproveNative(tv.b, id+1)
	assert.True(t, errors.ErrNotFound.Is(err), "got %+v", err)

	// The initiator already voted by creating the request.
	err = tv.vault.ApproveNative(tv.a, id)
	assert.True(t, ErrDuplicateApproval.Is(err), "got %+v", err)

	require.NoError(t, tv.vault.ApproveNative(tv.b, id))
	err = tv.vault.ApproveNative(tv.b, id)
	assert.True(t, ErrDuplicateApproval.Is(err), "got %+v", err)

	// The failed votes must not have been counted.
	req, err := tv.vault.NativeRequest(id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), req.Approvals)
	assert.Equal(t, int(req.Approvals), len(req.ApprovedBy))
}

func TestApproveAfterExecute(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)

	id, err := tv.vault.InitiateNative(tv.a, custodiantest.NewSigner(), 100)
	require.NoError(t, err)
	require.NoError(t, tv.vault.ApproveNative(tv.b, id))
	require.NoError(t, tv.vault.ExecuteNative(tv.a, id))

	err = tv.vault.ApproveNative(tv.c, id)
	assert.True(t, ErrAlreadyExecuted.Is(err), "got %+v", err)
}

func TestExecuteValidation(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)
	recipient := custodiantest.NewSigner()

	id, err := tv.vault.InitiateNative(tv.a, recipient, 100)
	require.NoError(t, err)

	err = tv.vault.ExecuteNative(custodiantest.NewSigner(), id)
	assert.True(t, errors.ErrUnauthorized.Is(err), "got %+v", err)

	err = tv.vault.ExecuteNative(tv.a, id+1)
	assert.True(t, errors.ErrNotFound.Is(err), "got %+v", err)

	// A single approval does not satisfy the quorum of two.
	err = tv.vault.ExecuteNative(tv.a, id)
	assert.True(t, ErrQuorumNotReached.Is(err), "got %+v", err)

	// Nothing was paid out.
	got, err := tv.ctrl.Balance(tv.db, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestExecuteOnlyOnce(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)
	recipient := custodiantest.NewSigner()

	id, err := tv.vault.InitiateNative(tv.a, recipient, 100)
	require.NoError(t, err)
	require.NoError(t, tv.vault.ApproveNative(tv.b, id))

	require.NoError(t, tv.vault.ExecuteNative(tv.a, id))
	err = tv.vault.ExecuteNative(tv.b, id)
	assert.True(t, ErrAlreadyExecuted.Is(err), "got %+v", err)

	// The payout happened exactly once.
	got, err := tv.ctrl.Balance(tv.db, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)
}

func TestExecuteChecksBalanceAgain(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)
	recipient := custodiantest.NewSigner()

	id, err := tv.vault.InitiateNative(tv.a, recipient, 800)
	require.NoError(t, err)
	require.NoError(t, tv.vault.ApproveNative(tv.b, id))

	// Drain the pool below the requested amount after initiation.
	require.NoError(t, tv.ctrl.Move(tv.db, tv.custody, custodiantest.NewSigner(), 500))

	err = tv.vault.ExecuteNative(tv.c, id)
	assert.True(t, ErrInsufficientBalance.Is(err), "got %+v", err)

	// The request is still pending and executes fine once the pool is
	// funded again.
	req, err := tv.vault.NativeRequest(id)
	require.NoError(t, err)
	assert.False(t, req.Executed)

	tv.deposit(t, 500)
	require.NoError(t, tv.vault.ExecuteNative(tv.c, id))
}

func TestFailedTransferIsTerminal(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)
	recipient := custodiantest.NewSigner()

	id, err := tv.vault.InitiateNative(tv.a, recipient, 100)
	require.NoError(t, err)
	require.NoError(t, tv.vault.ApproveNative(tv.b, id))

	tv.ledger.moveErr = fmt.Errorf("wire is down")
	err = tv.vault.ExecuteNative(tv.c, id)
	assert.True(t, ErrTransferFailed.Is(err), "got %+v", err)

	// One shot means one shot. The request cannot be retried even
	// though no money moved.
	req, err := tv.vault.NativeRequest(id)
	require.NoError(t, err)
	assert.True(t, req.Executed)

	tv.ledger.moveErr = nil
	err = tv.vault.ExecuteNative(tv.c, id)
	assert.True(t, ErrAlreadyExecuted.Is(err), "got %+v", err)

	got, err := tv.ctrl.Balance(tv.db, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestReentrantExecuteDenied(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)

	id0, err := tv.vault.InitiateNative(tv.a, custodiantest.NewSigner(), 100)
	require.NoError(t, err)
	require.NoError(t, tv.vault.ApproveNative(tv.b, id0))

	id1, err := tv.vault.InitiateNative(tv.a, custodiantest.NewSigner(), 100)
	require.NoError(t, err)
	require.NoError(t, tv.vault.ApproveNative(tv.b, id1))

	// A malicious ledger calls back into the engine while the first
	// payout is in flight.
	var sameID, otherID error
	reentered := false
	tv.ledger.onMove = func() {
		if reentered {
			return
		}
		reentered = true
		sameID = tv.vault.ExecuteNative(tv.b, id0)
		otherID = tv.vault.ExecuteNative(tv.b, id1)
	}

	require.NoError(t, tv.vault.ExecuteNative(tv.c, id0))
	assert.True(t, ErrAlreadyExecuted.Is(sameID), "got %+v", sameID)
	assert.True(t, ErrReentrancy.Is(otherID), "got %+v", otherID)

	// The second request was not consumed by the denied attempt.
	req, err := tv.vault.NativeRequest(id1)
	require.NoError(t, err)
	assert.False(t, req.Executed)
	require.NoError(t, tv.vault.ExecuteNative(tv.c, id1))
}

func TestTokenLifecycle(t *testing.T) {
	tv := newTestVault(t)
	token := custodiantest.NewSigner()
	tv.depositToken(t, token, 500)
	recipient := custodiantest.NewSigner()

	// Token request ids are chosen by the caller.
	require.NoError(t, tv.vault.InitiateToken(tv.a, 5, token, recipient, 200))

	req, err := tv.vault.TokenRequest(5)
	require.NoError(t, err)
	assert.Equal(t, token, req.Asset)
	assert.Equal(t, int64(1), req.Approvals)

	require.NoError(t, tv.vault.ApproveToken(tv.b, 5))
	require.NoError(t, tv.vault.ExecuteToken(tv.c, 5))

	got, err := tv.ctrl.TokenBalance(tv.db, token, tv.custody)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got)
	got, err = tv.ctrl.TokenBalance(tv.db, token, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got)

	// Native funds were never touched.
	got, err = tv.ctrl.Balance(tv.db, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	err = tv.vault.ExecuteToken(tv.c, 5)
	assert.True(t, ErrAlreadyExecuted.Is(err), "got %+v", err)
}

func TestInitiateTokenValidation(t *testing.T) {
	tv := newTestVault(t)
	token := custodiantest.NewSigner()
	recipient := custodiantest.NewSigner()

	err := tv.vault.InitiateToken(custodiantest.NewSigner(), 1, token, recipient, 10)
	assert.True(t, errors.ErrUnauthorized.Is(err), "got %+v", err)

	err = tv.vault.InitiateToken(tv.a, 1, token, nil, 10)
	assert.True(t, ErrInvalidRecipient.Is(err), "got %+v", err)

	err = tv.vault.InitiateToken(tv.a, 1, token, recipient, 0)
	assert.True(t, ErrInvalidAmount.Is(err), "got %+v", err)

	err = tv.vault.InitiateToken(tv.a, 1, nil, recipient, 10)
	assert.True(t, ErrInvalidAsset.Is(err), "got %+v", err)

	// Unlike the native pipeline, no balance is required to initiate.
	require.NoError(t, tv.vault.InitiateToken(tv.a, 1, token, recipient, 10))
}

func TestTokenIDReuseReplacesRequest(t *testing.T) {
	tv := newTestVault(t)
	token := custodiantest.NewSigner()
	first := custodiantest.NewSigner()
	second := custodiantest.NewSigner()

	require.NoError(t, tv.vault.InitiateToken(tv.a, 5, token, first, 100))
	require.NoError(t, tv.vault.ApproveToken(tv.b, 5))

	// Reusing the id replaces the request, collected votes included.
	require.NoError(t, tv.vault.InitiateToken(tv.c, 5, token, second, 999))

	req, err := tv.vault.TokenRequest(5)
	require.NoError(t, err)
	assert.Equal(t, second, req.Recipient)
	assert.Equal(t, int64(999), req.Amount)
	assert.Equal(t, int64(1), req.Approvals)
	assert.Equal(t, []custodian.Address{tv.c}, req.ApprovedBy)
}

func TestStrictTokenIDs(t *testing.T) {
	tv := newTestVault(t, WithStrictTokenIDs())
	token := custodiantest.NewSigner()
	recipient := custodiantest.NewSigner()

	require.NoError(t, tv.vault.InitiateToken(tv.a, 5, token, recipient, 100))

	err := tv.vault.InitiateToken(tv.b, 5, token, recipient, 100)
	assert.True(t, errors.ErrDuplicate.Is(err), "got %+v", err)

	// The stored request was not modified.
	req, err := tv.vault.TokenRequest(5)
	require.NoError(t, err)
	assert.Equal(t, []custodian.Address{tv.a}, req.ApprovedBy)

	require.NoError(t, tv.vault.InitiateToken(tv.b, 6, token, recipient, 100))
}

func TestFailedTokenTransferIsTerminal(t *testing.T) {
	tv := newTestVault(t)
	token := custodiantest.NewSigner()
	tv.depositToken(t, token, 500)
	recipient := custodiantest.NewSigner()

	require.NoError(t, tv.vault.InitiateToken(tv.a, 0, token, recipient, 100))
	require.NoError(t, tv.vault.ApproveToken(tv.b, 0))

	tv.ledger.tokenMoveErr = fmt.Errorf("token contract reverted")
	err := tv.vault.ExecuteToken(tv.c, 0)
	assert.True(t, ErrTokenTransferFailed.Is(err), "got %+v", err)

	tv.ledger.tokenMoveErr = nil
	err = tv.vault.ExecuteToken(tv.c, 0)
	assert.True(t, ErrAlreadyExecuted.Is(err), "got %+v", err)
}

func TestExecuteTokenChecksBalance(t *testing.T) {
	tv := newTestVault(t)
	token := custodiantest.NewSigner()
	tv.depositToken(t, token, 50)
	recipient := custodiantest.NewSigner()

	require.NoError(t, tv.vault.InitiateToken(tv.a, 0, token, recipient, 100))
	require.NoError(t, tv.vault.ApproveToken(tv.b, 0))

	err := tv.vault.ExecuteToken(tv.c, 0)
	assert.True(t, ErrInsufficientBalance.Is(err), "got %+v", err)

	tv.depositToken(t, token, 50)
	require.NoError(t, tv.vault.ExecuteToken(tv.c, 0))
}

func TestHasApproved(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)

	id, err := tv.vault.InitiateNative(tv.a, custodiantest.NewSigner(), 100)
	require.NoError(t, err)

	ok, err := tv.vault.HasApprovedNative(id, tv.a)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = tv.vault.HasApprovedNative(id, tv.b)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = tv.vault.HasApprovedNative(id+1, tv.a)
	assert.True(t, errors.ErrNotFound.Is(err), "got %+v", err)

	token := custodiantest.NewSigner()
	require.NoError(t, tv.vault.InitiateToken(tv.b, 9, token, custodiantest.NewSigner(), 10))
	ok, err = tv.vault.HasApprovedToken(9, tv.b)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = tv.vault.HasApprovedToken(9, tv.a)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRequestIDListing(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)
	recipient := custodiantest.NewSigner()

	for i := 0; i < 3; i++ {
		id, err := tv.vault.InitiateNative(tv.a, recipient, 100)
		require.NoError(t, err)
		require.NoError(t, tv.vault.ApproveNative(tv.b, id))
	}
	require.NoError(t, tv.vault.ExecuteNative(tv.c, 1))

	ids, err := tv.vault.NativeRequestIDs(All)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2}, ids)

	ids, err = tv.vault.NativeRequestIDs(Pending)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2}, ids)

	ids, err = tv.vault.NativeRequestIDs(Executed)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)

	// Token pipeline ids live in their own namespace.
	ids, err = tv.vault.TokenRequestIDs(All)
	require.NoError(t, err)
	assert.Nil(t, ids)

	token := custodiantest.NewSigner()
	require.NoError(t, tv.vault.InitiateToken(tv.a, 7, token, recipient, 10))
	require.NoError(t, tv.vault.InitiateToken(tv.a, 3, token, recipient, 10))
	ids, err = tv.vault.TokenRequestIDs(All)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 7}, ids)
}

func TestDepositsDoNotTouchRequests(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)

	id, err := tv.vault.InitiateNative(tv.a, custodiantest.NewSigner(), 100)
	require.NoError(t, err)
	before, err := tv.vault.NativeRequest(id)
	require.NoError(t, err)

	// Unsolicited value is accepted without any side effect on the
	// request pipelines.
	tv.deposit(t, 500)
	token := custodiantest.NewSigner()
	tv.depositToken(t, token, 500)

	after, err := tv.vault.NativeRequest(id)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	ids, err := tv.vault.TokenRequestIDs(All)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestRequestCopiesAreDetached(t *testing.T) {
	tv := newTestVault(t)
	tv.deposit(t, 1000)

	id, err := tv.vault.InitiateNative(tv.a, custodiantest.NewSigner(), 100)
	require.NoError(t, err)

	req, err := tv.vault.NativeRequest(id)
	require.NoError(t, err)
	req.Executed = true
	req.Approvals = 99

	// Mutating the returned copy must not corrupt the stored state.
	fresh, err := tv.vault.NativeRequest(id)
	require.NoError(t, err)
	assert.False(t, fresh.Executed)
	assert.Equal(t, int64(1), fresh.Approvals)
}
