package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalIsDeterministic(t *testing.T) {
	value := map[string]int64{"b": 2, "a": 1, "c": 3}

	first, err := Marshal(value)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Marshal(map[string]int64{"c": 3, "a": 1, "b": 2})
		require.NoError(t, err)
		if !bytes.Equal(first, again) {
			t.Fatalf("serialization %d differs: %x != %x", i, first, again)
		}
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var dest struct{ A int64 }
	if err := Unmarshal([]byte("not cbor at all"), &dest); err == nil {
		t.Fatal("expected an error")
	}
}
