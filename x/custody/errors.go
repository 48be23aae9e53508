package custody

import "github.com/iov-one/custodian/errors"

// custody takes error codes 1200-1220
var (
	// ErrInvalidRecipient is returned when a request names no usable
	// destination account.
	ErrInvalidRecipient = errors.Register(1200, "invalid recipient")

	// ErrInvalidAmount is returned when a request amount is not a
	// positive quantity.
	ErrInvalidAmount = errors.Register(1201, "invalid amount")

	// ErrInvalidAsset is returned when a token request names no usable
	// token contract.
	ErrInvalidAsset = errors.Register(1202, "invalid asset")

	// ErrInsufficientBalance is returned when the custody balance does
	// not cover the requested amount at the checked moment.
	ErrInsufficientBalance = errors.Register(1203, "insufficient balance")

	// ErrAlreadyExecuted is returned for any operation attempted on a
	// terminal request.
	ErrAlreadyExecuted = errors.Register(1204, "already executed")

	// ErrDuplicateApproval is returned when a signer votes twice on the
	// same request.
	ErrDuplicateApproval = errors.Register(1205, "duplicate approval")

	// ErrQuorumNotReached is returned when execution is attempted
	// before enough approvals were collected.
	ErrQuorumNotReached = errors.Register(1206, "quorum not reached")

	// ErrTransferFailed is returned when the ledger service reported a
	// failure releasing native funds. The request stays executed.
	ErrTransferFailed = errors.Register(1207, "transfer failed")

	// ErrTokenTransferFailed is returned when the ledger service
	// reported a failure releasing token funds. The request stays
	// executed.
	ErrTokenTransferFailed = errors.Register(1208, "token transfer failed")

	// ErrReentrancy is returned when an execution is attempted while
	// another execution is waiting for the external transfer call to
	// return.
	ErrReentrancy = errors.Register(1209, "reentrant execution")
)
