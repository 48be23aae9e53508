/*
Package codec provides the serialization used for all persisted
records.

It is a thin wrapper for github.com/fxamacker/cbor/v2. The reason for
having it is to make sure the same encoding options are used
everywhere. Core Deterministic Encoding is set as the standard, see
https://www.rfc-editor.org/rfc/rfc8949.html#name-deterministically-encoded-c
so that encoding the same record always produces the same bytes.
*/
package codec

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/iov-one/custodian/errors"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// Marshal serializes given value using deterministic CBOR encoding.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := encMode.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.ErrType, err.Error())
	}
	return raw, nil
}

// Unmarshal deserializes CBOR data into given destination.
func Unmarshal(data []byte, v interface{}) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.ErrType, err.Error())
	}
	return nil
}
