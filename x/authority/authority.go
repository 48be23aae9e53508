/*
Package authority holds the set of accounts that control custodied
funds.

An Authority is created once with a list of signer addresses and a
quorum threshold and never changes afterwards. It is a read-only
dependency shared by every stage of the transfer-request lifecycle:
it answers whether an account is a recognized signer and whether a
number of collected approvals satisfies the quorum.
*/
package authority

import (
	"github.com/iov-one/custodian"
	"github.com/iov-one/custodian/errors"
)

// ErrConfiguration is returned when the signer set or the quorum
// threshold violates a construction time invariant.
var ErrConfiguration = errors.Register(1100, "invalid configuration")

// To avoid burning CPU on signer lookups, this is the maximum number
// of signers allowed to control a single custody pool.
const maxSignersAllowed = 100

// Authority is the immutable signer set together with the quorum
// threshold. The zero value is not usable, always create instances
// through New.
type Authority struct {
	signers []custodian.Address
	quorum  int
}

// New validates and builds an Authority. It fails with ErrConfiguration
// when the signer list is empty, a signer address is malformed or
// repeated, or when the quorum is zero or greater than the number of
// signers.
func New(signers []custodian.Address, quorum int) (*Authority, error) {
	switch n := len(signers); {
	case n == 0:
		return nil, errors.Wrap(ErrConfiguration, "no signers")
	case n > maxSignersAllowed:
		return nil, errors.Wrap(ErrConfiguration, "too many signers")
	}
	if quorum < 1 {
		return nil, errors.Wrap(ErrConfiguration, "quorum must be greater than 0")
	}
	if quorum > len(signers) {
		return nil, errors.Wrap(ErrConfiguration, "quorum greater than the number of signers")
	}

	set := make([]custodian.Address, 0, len(signers))
	for i, s := range signers {
		if err := s.Validate(); err != nil {
			return nil, errors.Wrapf(err, "signer %d", i)
		}
		for _, present := range set {
			if present.Equals(s) {
				return nil, errors.Wrapf(ErrConfiguration, "duplicate signer %s", s)
			}
		}
		set = append(set, s.Clone())
	}

	return &Authority{
		signers: set,
		quorum:  quorum,
	}, nil
}

// IsSigner returns true iff given address belongs to the signer set.
func (a *Authority) IsSigner(addr custodian.Address) bool {
	for _, s := range a.signers {
		if s.Equals(addr) {
			return true
		}
	}
	return false
}

// Quorum returns the minimum number of distinct approvals required
// before a transfer request may be executed.
func (a *Authority) Quorum() int {
	return a.quorum
}

// SignerCount returns the size of the signer set.
func (a *Authority) SignerCount() int {
	return len(a.signers)
}

// Signers returns a copy of the signer set.
func (a *Authority) Signers() []custodian.Address {
	out := make([]custodian.Address, len(a.signers))
	for i, s := range a.signers {
		out[i] = s.Clone()
	}
	return out
}
