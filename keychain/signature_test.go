package keychain

import (
	"bytes"
	"testing"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSignVerifyProperties checks that any message signed by a key verifies
// under that key, and that changing the message breaks verification.
func TestSignVerifyProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		secret := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(
			rt, "secret",
		)
		msg := rapid.SliceOf(rapid.Byte()).Draw(rt, "msg")

		kp, err := KeypairFromSecret(secret)
		if err != nil {
			// Zero or out of range scalars are covered by
			// TestKeypairFromSecret.
			return
		}

		sig, err := kp.Sign(msg)
		require.NoError(rt, err)

		ok, err := Verify(sig, msg, kp.PublicKey())
		require.NoError(rt, err)
		require.True(rt, ok)

		tampered := append(bytes.Clone(msg), 0x00)
		ok, err = Verify(sig, tampered, kp.PublicKey())
		require.NoError(rt, err)
		require.False(rt, ok)
	})
}

// TestSignDeterministicLowS asserts that signing is deterministic and always
// yields the low-S form.
func TestSignDeterministicLowS(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeypair()
	require.NoError(t, err)

	msg := []byte("release v1.2.3")
	for i := 0; i < 16; i++ {
		sig1, err := kp.Sign(msg)
		require.NoError(t, err)
		sig2, err := kp.Sign(msg)
		require.NoError(t, err)
		require.Equal(t, sig1, sig2)

		var s btcec.ModNScalar
		s.SetByteSlice(sig1[32:])
		require.False(t, s.IsOverHalfOrder())

		msg = append(msg, byte(i))
	}
}

// TestVerifyWrongKey checks that a signature does not verify under a
// different key.
func TestVerifyWrongKey(t *testing.T) {
	t.Parallel()

	signer, err := GenerateKeypair()
	require.NoError(t, err)
	other, err := GenerateKeypair()
	require.NoError(t, err)

	msg := []byte("budget")
	sig, err := signer.Sign(msg)
	require.NoError(t, err)

	ok, err := Verify(sig, msg, other.PublicKey())
	require.NoError(t, err)
	require.False(t, ok)
}

// TestVerifyMalformed checks that out of range r and s values are reported
// as format errors rather than a plain mismatch.
func TestVerifyMalformed(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeypair()
	require.NoError(t, err)

	msg := []byte("module")
	good, err := kp.Sign(msg)
	require.NoError(t, err)

	order := mustHex(t, curveOrderHex)

	zeroR := good
	copy(zeroR[:32], make([]byte, 32))

	zeroS := good
	copy(zeroS[32:], make([]byte, 32))

	bigR := good
	copy(bigR[:32], order)

	bigS := good
	copy(bigS[32:], order)

	for _, sig := range []Signature{zeroR, zeroS, bigR, bigS} {
		ok, err := Verify(sig, msg, kp.PublicKey())
		require.ErrorIs(t, err, goverr.ErrInvalidSignatureFormat)
		require.False(t, ok)
	}

	_, err = ParseSignature(good[:63])
	require.ErrorIs(t, err, goverr.ErrInvalidSignatureFormat)

	parsed, err := SignatureFromHex(good.String())
	require.NoError(t, err)
	require.Equal(t, good, parsed)
}

// TestSignNilKey checks that signing without a key fails cleanly.
func TestSignNilKey(t *testing.T) {
	t.Parallel()

	_, err := Sign(nil, []byte("x"))
	require.ErrorIs(t, err, goverr.ErrInvalidKey)
}
