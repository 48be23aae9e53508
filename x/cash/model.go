package cash

import (
	"math"

	"github.com/iov-one/custodian"
	"github.com/iov-one/custodian/errors"
	"github.com/iov-one/custodian/orm"
)

// BucketName is where we store the accounts.
const BucketName = "acct"

var _ orm.Model = (*Account)(nil)

// Account is the balance sheet of one address. The native balance and
// each token balance are tracked separately.
type Account struct {
	Balances []Balance
}

// Balance is the amount of one asset held by an account. A nil Asset
// denotes the native currency, otherwise Asset is the address of the
// token contract.
type Balance struct {
	Asset  custodian.Address
	Amount int64
}

// Validate ensures the account is consistent: no negative amounts, no
// malformed token addresses and no asset tracked twice.
func (a *Account) Validate() error {
	for i, b := range a.Balances {
		if b.Amount < 0 {
			return errors.Wrapf(errors.ErrAmount, "balance %d is negative", i)
		}
		if b.Asset != nil {
			if err := b.Asset.Validate(); err != nil {
				return errors.Wrapf(err, "balance %d", i)
			}
		}
		for _, prev := range a.Balances[:i] {
			if prev.Asset.Equals(b.Asset) {
				return errors.Wrapf(errors.ErrDuplicate, "asset %s", b.Asset)
			}
		}
	}
	return nil
}

// Balance returns the amount of given asset held by this account.
// Unknown assets report zero.
func (a *Account) Balance(asset custodian.Address) int64 {
	for _, b := range a.Balances {
		if b.Asset.Equals(asset) {
			return b.Amount
		}
	}
	return 0
}

// Add credits the account with given amount of an asset.
func (a *Account) Add(asset custodian.Address, amount int64) error {
	if amount <= 0 {
		return errors.Wrap(errors.ErrAmount, "must be positive")
	}
	for i, b := range a.Balances {
		if b.Asset.Equals(asset) {
			if b.Amount > math.MaxInt64-amount {
				return errors.Wrapf(errors.ErrOverflow, "asset %s", asset)
			}
			a.Balances[i].Amount += amount
			return nil
		}
	}
	a.Balances = append(a.Balances, Balance{Asset: asset.Clone(), Amount: amount})
	return nil
}

// Subtract debits the account by given amount of an asset. It fails
// with ErrInsufficientAmount when the account does not hold enough.
func (a *Account) Subtract(asset custodian.Address, amount int64) error {
	if amount <= 0 {
		return errors.Wrap(errors.ErrAmount, "must be positive")
	}
	for i, b := range a.Balances {
		if b.Asset.Equals(asset) {
			if b.Amount < amount {
				return errors.Wrapf(errors.ErrInsufficientAmount, "asset %s", asset)
			}
			a.Balances[i].Amount -= amount
			return nil
		}
	}
	return errors.Wrapf(errors.ErrInsufficientAmount, "asset %s", asset)
}

// NewBucket returns a bucket for keeping account records.
func NewBucket() orm.ModelBucket {
	return orm.NewModelBucket(BucketName)
}
