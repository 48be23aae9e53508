/*
Package custodiantest provides mocks and helpers for testing the
custodian engine.
*/
package custodiantest

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/iov-one/custodian"
)

// signerCounter is used to create unique test addresses.
var signerCounter int64

// NewSigner returns a new unique address that can be used in tests as
// a signer, recipient or token identity.
func NewSigner() custodian.Address {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(atomic.AddInt64(&signerCounter, 1)))
	return custodian.NewAddress(raw)
}
