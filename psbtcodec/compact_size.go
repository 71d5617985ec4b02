package psbtcodec

import (
	"bytes"
	"errors"
	"io"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/btcsuite/btcd/wire"
)

// WriteCompactSize writes v using the Bitcoin compact size encoding: one
// byte below 0xfd, otherwise a 0xfd, 0xfe or 0xff marker followed by a
// little-endian uint16, uint32 or uint64.
func WriteCompactSize(w io.Writer, v uint64) error {
	return wire.WriteVarInt(w, 0, v)
}

// AppendCompactSize appends the compact size encoding of v to b.
func AppendCompactSize(b []byte, v uint64) []byte {
	var buf bytes.Buffer
	buf.Grow(CompactSizeLen(v))

	// Writes to a bytes.Buffer never fail.
	_ = wire.WriteVarInt(&buf, 0, v)

	return append(b, buf.Bytes()...)
}

// CompactSizeLen returns the number of bytes needed to encode v.
func CompactSizeLen(v uint64) int {
	return wire.VarIntSerializeSize(v)
}

// ReadCompactSize reads a compact size integer from r. Running out of
// data yields ErrTruncated and a value that could have been encoded in
// fewer bytes is rejected.
func ReadCompactSize(r io.Reader) (uint64, error) {
	v, err := wire.ReadVarInt(r, 0)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return 0, ErrTruncated

	case err != nil:
		return 0, goverr.Errorf(goverr.ErrInvalidInput,
			"invalid compact size: %v", err)
	}

	return v, nil
}

// DecodeCompactSize decodes the compact size integer at the start of b and
// returns it together with the number of bytes it occupied.
func DecodeCompactSize(b []byte) (uint64, int, error) {
	r := bytes.NewReader(b)

	v, err := ReadCompactSize(r)
	if err != nil {
		return 0, 0, err
	}

	return v, len(b) - r.Len(), nil
}
