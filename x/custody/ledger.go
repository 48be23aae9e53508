package custody

import "github.com/iov-one/custodian"

// Ledger is the funds service a Vault releases custody money through.
// The cash package provides the standard implementation. Move and
// MoveToken are the only operations invoked while an execution is in
// flight, and they are called without any Vault lock held, so an
// implementation backed by a remote service can block freely.
type Ledger interface {
	// Balance returns the native balance of an account. Unknown
	// accounts report zero.
	Balance(db custodian.ReadOnlyKVStore, account custodian.Address) (int64, error)

	// TokenBalance returns the balance an account holds in the given
	// token. Unknown accounts report zero.
	TokenBalance(db custodian.ReadOnlyKVStore, token, account custodian.Address) (int64, error)

	// Move transfers native funds between two accounts.
	Move(db custodian.KVStore, src, dest custodian.Address, amount int64) error

	// MoveToken transfers token funds between two accounts.
	MoveToken(db custodian.KVStore, token, src, dest custodian.Address, amount int64) error
}
