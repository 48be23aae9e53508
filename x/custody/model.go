package custody

import (
	"github.com/iov-one/custodian"
	"github.com/iov-one/custodian/errors"
	"github.com/iov-one/custodian/orm"
)

const (
	// NativeBucketName is the database bucket holding native transfer
	// requests.
	NativeBucketName = "ntrq"
	// TokenBucketName is the database bucket holding token transfer
	// requests.
	TokenBucketName = "tkrq"
)

// Request is a single transfer request as stored in the database. The
// same shape is used for both pipelines. For native requests Asset is
// nil, for token requests it holds the token identity.
type Request struct {
	// Recipient receives the funds on execution.
	Recipient custodian.Address
	// Amount is the requested quantity in the smallest unit.
	Amount int64
	// Asset is the token identity, nil for native funds.
	Asset custodian.Address
	// Approvals counts the collected votes, including the initiator.
	Approvals int64
	// ApprovedBy lists every signer that voted, in voting order.
	ApprovedBy []custodian.Address
	// Executed marks the request as terminal.
	Executed bool
}

var _ orm.Model = (*Request)(nil)

// Validate ensures the request is consistent before it is persisted.
func (r *Request) Validate() error {
	if err := r.Recipient.Validate(); err != nil {
		return errors.Wrap(ErrInvalidRecipient, err.Error())
	}
	if r.Amount <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "%d", r.Amount)
	}
	if r.Asset != nil {
		if err := r.Asset.Validate(); err != nil {
			return errors.Wrap(ErrInvalidAsset, err.Error())
		}
	}
	if r.Approvals < 1 {
		return errors.Wrap(errors.ErrState, "request without approvals")
	}
	if int(r.Approvals) != len(r.ApprovedBy) {
		return errors.Wrapf(errors.ErrState, "approval count %d does not match %d voters",
			r.Approvals, len(r.ApprovedBy))
	}
	seen := make(map[string]struct{}, len(r.ApprovedBy))
	for _, a := range r.ApprovedBy {
		if err := a.Validate(); err != nil {
			return errors.Wrap(err, "approver")
		}
		if _, ok := seen[string(a)]; ok {
			return errors.Wrapf(ErrDuplicateApproval, "%s voted twice", a)
		}
		seen[string(a)] = struct{}{}
	}
	return nil
}

// HasApproved returns whether the given address already voted on this
// request.
func (r *Request) HasApproved(signer custodian.Address) bool {
	for _, a := range r.ApprovedBy {
		if a.Equals(signer) {
			return true
		}
	}
	return false
}

// Copy produces an independent deep copy of the request.
func (r *Request) Copy() *Request {
	cpy := &Request{
		Recipient: r.Recipient.Clone(),
		Amount:    r.Amount,
		Asset:     r.Asset.Clone(),
		Approvals: r.Approvals,
		Executed:  r.Executed,
	}
	if r.ApprovedBy != nil {
		cpy.ApprovedBy = make([]custodian.Address, len(r.ApprovedBy))
		for i, a := range r.ApprovedBy {
			cpy.ApprovedBy[i] = a.Clone()
		}
	}
	return cpy
}

// requestKey encodes a request id as the fixed width primary key used
// by both request buckets. Big endian keeps the iteration order equal
// to the numeric order.
func requestKey(id uint64) []byte {
	return orm.EncodeSequence(int64(id))
}

// requestID is the inverse of requestKey.
func requestID(key []byte) uint64 {
	return uint64(orm.DecodeSequence(key))
}
