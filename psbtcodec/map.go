package psbtcodec

import (
	"bytes"
	"sort"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Map is one key-value section of a packet. Keys are the raw key bytes,
// including the leading key type, stored as strings so that they can be
// used as map keys.
type Map map[string][]byte

// NewMap returns an empty map.
func NewMap() Map {
	return make(Map)
}

// Set stores a copy of value under key. Empty keys are not encodable
// since a zero length marks the end of a map.
func (m Map) Set(key, value []byte) error {
	if len(key) == 0 {
		return goverr.Errorf(goverr.ErrInvalidInput, "empty map key")
	}

	m[string(key)] = append([]byte{}, value...)

	return nil
}

// Get returns the value stored under key.
func (m Map) Get(key []byte) fn.Option[[]byte] {
	v, ok := m[string(key)]
	if !ok {
		return fn.None[[]byte]()
	}

	return fn.Some(v)
}

// Has reports whether key is present.
func (m Map) Has(key []byte) bool {
	_, ok := m[string(key)]
	return ok
}

// Delete removes key.
func (m Map) Delete(key []byte) {
	delete(m, string(key))
}

// Keys returns every key in ascending byte order.
func (m Map) Keys() [][]byte {
	keys := make([][]byte, 0, len(m))
	for k := range m {
		keys = append(keys, []byte(k))
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i], keys[j]) < 0
	})

	return keys
}

// KeysOfType returns, in ascending order, every key whose first byte is
// keyType.
func (m Map) KeysOfType(keyType byte) [][]byte {
	var keys [][]byte
	for _, k := range m.Keys() {
		if k[0] == keyType {
			keys = append(keys, k)
		}
	}

	return keys
}

// Clone returns a deep copy of m.
func (m Map) Clone() Map {
	c := make(Map, len(m))
	for k, v := range m {
		c[k] = append([]byte{}, v...)
	}

	return c
}

// typedKey builds a key of the given type followed by keyData.
func typedKey(keyType byte, keyData []byte) []byte {
	key := make([]byte, 0, 1+len(keyData))
	key = append(key, keyType)

	return append(key, keyData...)
}
