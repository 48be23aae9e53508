package cash

import (
	"math"
	"testing"

	"github.com/iov-one/custodian"
	"github.com/iov-one/custodian/custodiantest"
	"github.com/iov-one/custodian/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountAddSubtract(t *testing.T) {
	token := custodiantest.NewSigner()

	var acct Account
	require.NoError(t, acct.Add(nil, 100))
	require.NoError(t, acct.Add(token, 40))
	require.NoError(t, acct.Add(nil, 1))

	assert.Equal(t, int64(101), acct.Balance(nil))
	assert.Equal(t, int64(40), acct.Balance(token))

	require.NoError(t, acct.Subtract(nil, 100))
	assert.Equal(t, int64(1), acct.Balance(nil))

	err := acct.Subtract(token, 41)
	assert.True(t, errors.ErrInsufficientAmount.Is(err), "got %+v", err)
	assert.Equal(t, int64(40), acct.Balance(token))
}

func TestAccountSubtractUnknownAsset(t *testing.T) {
	var acct Account
	err := acct.Subtract(custodiantest.NewSigner(), 1)
	assert.True(t, errors.ErrInsufficientAmount.Is(err), "got %+v", err)
}

func TestAccountAddOverflow(t *testing.T) {
	var acct Account
	require.NoError(t, acct.Add(nil, math.MaxInt64))
	err := acct.Add(nil, 1)
	assert.True(t, errors.ErrOverflow.Is(err), "got %+v", err)
}

func TestAccountRejectsNonPositiveAmounts(t *testing.T) {
	var acct Account
	assert.True(t, errors.ErrAmount.Is(acct.Add(nil, 0)))
	assert.True(t, errors.ErrAmount.Is(acct.Add(nil, -5)))
	assert.True(t, errors.ErrAmount.Is(acct.Subtract(nil, 0)))
}

func TestAccountValidate(t *testing.T) {
	token := custodiantest.NewSigner()

	cases := map[string]struct {
		acct    Account
		wantErr *errors.Error
	}{
		"empty account": {
			acct: Account{},
		},
		"native and token balances": {
			acct: Account{Balances: []Balance{
				{Asset: nil, Amount: 5},
				{Asset: token, Amount: 10},
			}},
		},
		"negative amount": {
			acct:    Account{Balances: []Balance{{Asset: nil, Amount: -1}}},
			wantErr: errors.ErrAmount,
		},
		"duplicate asset": {
			acct: Account{Balances: []Balance{
				{Asset: token, Amount: 1},
				{Asset: token, Amount: 2},
			}},
			wantErr: errors.ErrDuplicate,
		},
		"malformed token address": {
			acct:    Account{Balances: []Balance{{Asset: custodian.Address("x"), Amount: 1}}},
			wantErr: errors.ErrInput,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			err := tc.acct.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, tc.wantErr.Is(err), "got %+v", err)
			}
		})
	}
}
