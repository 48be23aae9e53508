package custody

import (
	"sync"

	"github.com/iov-one/custodian"
	"github.com/iov-one/custodian/codec"
	"github.com/iov-one/custodian/errors"
	"github.com/iov-one/custodian/orm"
	"github.com/iov-one/custodian/x/authority"
)

// Vault is the approval engine. It guards a single custody account and
// runs two request pipelines against it, one for native funds and one
// for tokens. All operations are safe for concurrent use.
//
// The external ledger transfer during execution is invoked without any
// internal lock held. A call-scoped flag denies any execution started
// while a transfer is still in flight, so a ledger implementation that
// synchronously calls back into the Vault cannot trigger a second
// payout.
type Vault struct {
	mu        sync.Mutex
	executing bool

	db      custodian.KVStore
	auth    *authority.Authority
	ledger  Ledger
	custody custodian.Address
	emitter Emitter

	strictTokenIDs bool

	native    pipeline
	token     pipeline
	nativeSeq orm.Sequence
}

// pipeline bundles the storage of one request class.
type pipeline struct {
	class  Class
	bucket orm.ModelBucket
}

// Option configures optional Vault behaviour.
type Option func(*Vault)

// WithEmitter registers a receiver for lifecycle events.
func WithEmitter(e Emitter) Option {
	return func(v *Vault) { v.emitter = e }
}

// WithStrictTokenIDs makes token initiation reject an id that is
// already in use instead of silently replacing the stored request.
func WithStrictTokenIDs() Option {
	return func(v *Vault) { v.strictTokenIDs = true }
}

// NewVault returns a ready to use approval engine. The custody account
// is the source of every executed transfer. The authority is fixed for
// the lifetime of the Vault.
func NewVault(db custodian.KVStore, auth *authority.Authority, ledger Ledger, custody custodian.Address, opts ...Option) (*Vault, error) {
	if db == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "database")
	}
	if auth == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "authority")
	}
	if ledger == nil {
		return nil, errors.Wrap(errors.ErrEmpty, "ledger")
	}
	if err := custody.Validate(); err != nil {
		return nil, errors.Wrap(err, "custody account")
	}
	v := &Vault{
		db:      db,
		auth:    auth,
		ledger:  ledger,
		custody: custody.Clone(),
		emitter: NopEmitter{},
		native: pipeline{
			class:  ClassNative,
			bucket: orm.NewModelBucket(NativeBucketName),
		},
		token: pipeline{
			class:  ClassToken,
			bucket: orm.NewModelBucket(TokenBucketName),
		},
		nativeSeq: orm.NewSequence(NativeBucketName, "id"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Signers returns the member set of the fixed authority.
func (v *Vault) Signers() []custodian.Address {
	return v.auth.Signers()
}

// Quorum returns the approval threshold of the fixed authority.
func (v *Vault) Quorum() int {
	return v.auth.Quorum()
}

// Custody returns the account all executed transfers are paid from.
func (v *Vault) Custody() custodian.Address {
	return v.custody.Clone()
}

// InitiateNative creates a new native transfer request and returns its
// id. Ids are assigned sequentially starting at zero. The caller must
// be a signer and counts as the first approval. The custody account
// must cover the amount at this moment, though the balance can still
// drop before execution.
func (v *Vault) InitiateNative(caller, recipient custodian.Address, amount int64) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.auth.IsSigner(caller) {
		return 0, errors.Wrapf(errors.ErrUnauthorized, "%s is not a signer", caller)
	}
	if err := recipient.Validate(); err != nil {
		return 0, errors.Wrap(ErrInvalidRecipient, err.Error())
	}
	if amount <= 0 {
		return 0, errors.Wrapf(ErrInvalidAmount, "%d", amount)
	}
	balance, err := v.ledger.Balance(v.db, v.custody)
	if err != nil {
		return 0, errors.Wrap(err, "custody balance")
	}
	if balance < amount {
		return 0, errors.Wrapf(ErrInsufficientBalance, "%d < %d", balance, amount)
	}

	// The sequence starts counting at one but request ids are zero
	// based.
	id := uint64(v.nativeSeq.NextInt(v.db) - 1)
	req := &Request{
		Recipient:  recipient.Clone(),
		Amount:     amount,
		Approvals:  1,
		ApprovedBy: []custodian.Address{caller.Clone()},
	}
	if err := v.native.bucket.Put(v.db, requestKey(id), req); err != nil {
		return 0, errors.Wrap(err, "store request")
	}

	v.emitter.Emit(InitiatedEvent{
		Class:     ClassNative,
		ID:        id,
		Initiator: caller.Clone(),
		Recipient: req.Recipient,
		Amount:    amount,
	})
	v.emitter.Emit(ApprovedEvent{
		Class:     ClassNative,
		ID:        id,
		Approver:  caller.Clone(),
		Approvals: 1,
	})
	return id, nil
}

// InitiateToken creates a new token transfer request under the id
// chosen by the caller. The caller must be a signer and counts as the
// first approval. No balance check happens at initiation time.
//
// By default an existing request under the same id is silently
// replaced, votes included. Construct the Vault with WithStrictTokenIDs
// to reject a reused id instead.
func (v *Vault) InitiateToken(caller custodian.Address, id uint64, token, recipient custodian.Address, amount int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.auth.IsSigner(caller) {
		return errors.Wrapf(errors.ErrUnauthorized, "%s is not a signer", caller)
	}
	if err := token.Validate(); err != nil {
		return errors.Wrap(ErrInvalidAsset, err.Error())
	}
	if err := recipient.Validate(); err != nil {
		return errors.Wrap(ErrInvalidRecipient, err.Error())
	}
	if amount <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "%d", amount)
	}
	if v.strictTokenIDs && v.token.bucket.Has(v.db, requestKey(id)) {
		return errors.Wrapf(errors.ErrDuplicate, "token request %d already exists", id)
	}

	req := &Request{
		Recipient:  recipient.Clone(),
		Amount:     amount,
		Asset:      token.Clone(),
		Approvals:  1,
		ApprovedBy: []custodian.Address{caller.Clone()},
	}
	if err := v.token.bucket.Put(v.db, requestKey(id), req); err != nil {
		return errors.Wrap(err, "store request")
	}

	v.emitter.Emit(InitiatedEvent{
		Class:     ClassToken,
		ID:        id,
		Initiator: caller.Clone(),
		Recipient: req.Recipient,
		Amount:    amount,
		Asset:     req.Asset,
	})
	v.emitter.Emit(ApprovedEvent{
		Class:     ClassToken,
		ID:        id,
		Approver:  caller.Clone(),
		Approvals: 1,
	})
	return nil
}

// ApproveNative adds the caller's vote to a pending native request.
func (v *Vault) ApproveNative(caller custodian.Address, id uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.approve(v.native, caller, id)
}

// ApproveToken adds the caller's vote to a pending token request.
func (v *Vault) ApproveToken(caller custodian.Address, id uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.approve(v.token, caller, id)
}

func (v *Vault) approve(p pipeline, caller custodian.Address, id uint64) error {
	if !v.auth.IsSigner(caller) {
		return errors.Wrapf(errors.ErrUnauthorized, "%s is not a signer", caller)
	}
	var req Request
	if err := p.bucket.One(v.db, requestKey(id), &req); err != nil {
		return errors.Wrapf(err, "request %d", id)
	}
	if req.Executed {
		return errors.Wrapf(ErrAlreadyExecuted, "request %d", id)
	}
	if req.HasApproved(caller) {
		return errors.Wrapf(ErrDuplicateApproval, "%s already voted on request %d", caller, id)
	}
	req.ApprovedBy = append(req.ApprovedBy, caller.Clone())
	req.Approvals++
	if err := p.bucket.Put(v.db, requestKey(id), &req); err != nil {
		return errors.Wrap(err, "store request")
	}

	v.emitter.Emit(ApprovedEvent{
		Class:     p.class,
		ID:        id,
		Approver:  caller.Clone(),
		Approvals: req.Approvals,
	})
	return nil
}

// ExecuteNative releases the funds of a native request that collected
// a quorum of approvals. Execution is one shot. The request turns
// terminal before the ledger is invoked, and it stays terminal even
// when the ledger reports a failure.
func (v *Vault) ExecuteNative(caller custodian.Address, id uint64) error {
	v.mu.Lock()
	req, err := v.markExecuted(v.native, caller, id)
	if err != nil {
		v.mu.Unlock()
		return err
	}
	v.executing = true
	v.mu.Unlock()

	// External call. No lock is held so the ledger can block, but any
	// execution it triggers on this Vault is denied.
	moveErr := v.ledger.Move(v.db, v.custody, req.Recipient, req.Amount)

	v.mu.Lock()
	v.executing = false
	if moveErr == nil {
		v.emitter.Emit(ExecutedEvent{
			Class:    ClassNative,
			ID:       id,
			Executor: caller.Clone(),
		})
	}
	v.mu.Unlock()

	if moveErr != nil {
		return errors.Wrapf(ErrTransferFailed, "request %d: %s", id, moveErr)
	}
	return nil
}

// ExecuteToken releases the funds of a token request that collected a
// quorum of approvals. The same one shot policy as for ExecuteNative
// applies.
func (v *Vault) ExecuteToken(caller custodian.Address, id uint64) error {
	v.mu.Lock()
	req, err := v.markExecuted(v.token, caller, id)
	if err != nil {
		v.mu.Unlock()
		return err
	}
	v.executing = true
	v.mu.Unlock()

	moveErr := v.ledger.MoveToken(v.db, req.Asset, v.custody, req.Recipient, req.Amount)

	v.mu.Lock()
	v.executing = false
	if moveErr == nil {
		v.emitter.Emit(ExecutedEvent{
			Class:    ClassToken,
			ID:       id,
			Executor: caller.Clone(),
		})
	}
	v.mu.Unlock()

	if moveErr != nil {
		return errors.Wrapf(ErrTokenTransferFailed, "request %d: %s", id, moveErr)
	}
	return nil
}

// markExecuted validates all execution preconditions and persists the
// terminal state. It must be called with the lock held. On success the
// returned request is a private copy that can be read without the
// lock.
func (v *Vault) markExecuted(p pipeline, caller custodian.Address, id uint64) (*Request, error) {
	if !v.auth.IsSigner(caller) {
		return nil, errors.Wrapf(errors.ErrUnauthorized, "%s is not a signer", caller)
	}
	var req Request
	if err := p.bucket.One(v.db, requestKey(id), &req); err != nil {
		return nil, errors.Wrapf(err, "request %d", id)
	}
	if int(req.Approvals) < v.auth.Quorum() {
		return nil, errors.Wrapf(ErrQuorumNotReached, "%d of %d approvals", req.Approvals, v.auth.Quorum())
	}
	if req.Executed {
		return nil, errors.Wrapf(ErrAlreadyExecuted, "request %d", id)
	}
	if v.executing {
		return nil, errors.Wrapf(ErrReentrancy, "request %d", id)
	}
	switch p.class {
	case ClassNative:
		balance, err := v.ledger.Balance(v.db, v.custody)
		if err != nil {
			return nil, errors.Wrap(err, "custody balance")
		}
		if balance < req.Amount {
			return nil, errors.Wrapf(ErrInsufficientBalance, "%d < %d", balance, req.Amount)
		}
	case ClassToken:
		if req.Asset == nil {
			return nil, errors.Wrap(ErrInvalidAsset, "request without token")
		}
		balance, err := v.ledger.TokenBalance(v.db, req.Asset, v.custody)
		if err != nil {
			return nil, errors.Wrap(err, "custody balance")
		}
		if balance < req.Amount {
			return nil, errors.Wrapf(ErrInsufficientBalance, "%d < %d", balance, req.Amount)
		}
	}

	req.Executed = true
	if err := p.bucket.Put(v.db, requestKey(id), &req); err != nil {
		return nil, errors.Wrap(err, "store request")
	}
	return req.Copy(), nil
}

// NativeRequest returns a copy of the stored native request.
func (v *Vault) NativeRequest(id uint64) (*Request, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.request(v.native, id)
}

// TokenRequest returns a copy of the stored token request.
func (v *Vault) TokenRequest(id uint64) (*Request, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.request(v.token, id)
}

func (v *Vault) request(p pipeline, id uint64) (*Request, error) {
	var req Request
	if err := p.bucket.One(v.db, requestKey(id), &req); err != nil {
		return nil, errors.Wrapf(err, "request %d", id)
	}
	return req.Copy(), nil
}

// HasApprovedNative returns whether the given signer already voted on
// the native request.
func (v *Vault) HasApprovedNative(id uint64, signer custodian.Address) (bool, error) {
	req, err := v.NativeRequest(id)
	if err != nil {
		return false, err
	}
	return req.HasApproved(signer), nil
}

// HasApprovedToken returns whether the given signer already voted on
// the token request.
func (v *Vault) HasApprovedToken(id uint64, signer custodian.Address) (bool, error) {
	req, err := v.TokenRequest(id)
	if err != nil {
		return false, err
	}
	return req.HasApproved(signer), nil
}

// Filter selects which requests an id listing includes.
type Filter byte

const (
	// All lists every stored request.
	All Filter = iota
	// Pending lists only requests that were not executed yet.
	Pending
	// Executed lists only terminal requests.
	Executed
)

// NativeRequestIDs lists the ids of stored native requests matching
// the filter, in ascending order.
func (v *Vault) NativeRequestIDs(f Filter) ([]uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.requestIDs(v.native, f)
}

// TokenRequestIDs lists the ids of stored token requests matching the
// filter, in ascending order.
func (v *Vault) TokenRequestIDs(f Filter) ([]uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.requestIDs(v.token, f)
}

func (v *Vault) requestIDs(p pipeline, f Filter) ([]uint64, error) {
	var ids []uint64
	for _, m := range p.bucket.All(v.db) {
		if f != All {
			var req Request
			if err := codec.Unmarshal(m.Value, &req); err != nil {
				return nil, errors.Wrapf(err, "request %d", requestID(m.Key))
			}
			if f == Pending && req.Executed {
				continue
			}
			if f == Executed && !req.Executed {
				continue
			}
		}
		ids = append(ids, requestID(m.Key))
	}
	return ids, nil
}
