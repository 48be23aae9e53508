package cash

import (
	"github.com/iov-one/custodian"
	"github.com/iov-one/custodian/errors"
	"github.com/iov-one/custodian/orm"
)

// Controller moves funds between accounts. It owns all writes to the
// account bucket, no other writer exists.
type Controller struct {
	bucket orm.ModelBucket
}

// NewController returns a controller operating on the default account
// bucket.
func NewController() *Controller {
	return &Controller{bucket: NewBucket()}
}

// Balance returns the native balance of given account. Accounts that
// were never credited report zero.
func (c *Controller) Balance(db custodian.ReadOnlyKVStore, account custodian.Address) (int64, error) {
	acct, err := c.account(db, account)
	if err != nil {
		return 0, err
	}
	return acct.Balance(nil), nil
}

// TokenBalance returns the balance of given token held by an account.
func (c *Controller) TokenBalance(db custodian.ReadOnlyKVStore, token, account custodian.Address) (int64, error) {
	if err := token.Validate(); err != nil {
		return 0, errors.Wrap(err, "token")
	}
	acct, err := c.account(db, account)
	if err != nil {
		return 0, err
	}
	return acct.Balance(token), nil
}

// Move transfers the given amount of native funds from src to dest.
// If src doesn't hold sufficient funds, it fails.
func (c *Controller) Move(db custodian.KVStore, src, dest custodian.Address, amount int64) error {
	return c.move(db, nil, src, dest, amount)
}

// MoveToken transfers the given amount of a token from src to dest.
func (c *Controller) MoveToken(db custodian.KVStore, token, src, dest custodian.Address, amount int64) error {
	if err := token.Validate(); err != nil {
		return errors.Wrap(err, "token")
	}
	return c.move(db, token, src, dest, amount)
}

// Deposit credits the destination account with native funds. Receiving
// a deposit always succeeds and has no side effect beyond the balance
// change.
func (c *Controller) Deposit(db custodian.KVStore, dest custodian.Address, amount int64) error {
	return c.issue(db, nil, dest, amount)
}

// DepositToken credits the destination account with token funds.
func (c *Controller) DepositToken(db custodian.KVStore, token, dest custodian.Address, amount int64) error {
	if err := token.Validate(); err != nil {
		return errors.Wrap(err, "token")
	}
	return c.issue(db, token, dest, amount)
}

func (c *Controller) move(db custodian.KVStore, asset, src, dest custodian.Address, amount int64) error {
	if err := src.Validate(); err != nil {
		return errors.Wrap(err, "source")
	}
	if err := dest.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}

	sender, err := c.account(db, src)
	if err != nil {
		return err
	}
	if src.Equals(dest) {
		// A self transfer moves nothing but must still respect the
		// sufficiency rule.
		if amount <= 0 {
			return errors.Wrap(errors.ErrAmount, "must be positive")
		}
		if sender.Balance(asset) < amount {
			return errors.Wrapf(errors.ErrInsufficientAmount, "asset %s", asset)
		}
		return nil
	}
	recipient, err := c.account(db, dest)
	if err != nil {
		return err
	}
	if err := sender.Subtract(asset, amount); err != nil {
		return err
	}
	if err := recipient.Add(asset, amount); err != nil {
		return err
	}

	if err := c.bucket.Put(db, src, sender); err != nil {
		return err
	}
	return c.bucket.Put(db, dest, recipient)
}

func (c *Controller) issue(db custodian.KVStore, asset, dest custodian.Address, amount int64) error {
	if err := dest.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}
	recipient, err := c.account(db, dest)
	if err != nil {
		return err
	}
	if err := recipient.Add(asset, amount); err != nil {
		return err
	}
	return c.bucket.Put(db, dest, recipient)
}

// account loads an account record, returning an empty account for
// addresses that were never used.
func (c *Controller) account(db custodian.ReadOnlyKVStore, addr custodian.Address) (*Account, error) {
	var acct Account
	switch err := c.bucket.One(db, addr, &acct); {
	case err == nil:
		return &acct, nil
	case errors.ErrNotFound.Is(err):
		return &Account{}, nil
	default:
		return nil, err
	}
}
