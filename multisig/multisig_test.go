package multisig

import (
	"bytes"
	"testing"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testMsg = []byte("release v1.2.3")

// testKeypairs returns n deterministic keypairs.
func testKeypairs(t testing.TB, n int) []*keychain.Keypair {
	t.Helper()

	kps := make([]*keychain.Keypair, n)
	for i := range kps {
		secret := bytes.Repeat([]byte{byte(i + 1)}, keychain.SecretKeyLen)

		kp, err := keychain.KeypairFromSecret(secret)
		require.NoError(t, err)
		kps[i] = kp
	}

	return kps
}

func pubKeys(kps []*keychain.Keypair) []keychain.PublicKey {
	keys := make([]keychain.PublicKey, len(kps))
	for i, kp := range kps {
		keys[i] = kp.PublicKey()
	}

	return keys
}

func sign(t testing.TB, kp *keychain.Keypair, msg []byte) keychain.Signature {
	t.Helper()

	sig, err := kp.Sign(msg)
	require.NoError(t, err)

	return sig
}

// TestNewBounds checks that a policy can be built exactly when the
// threshold lies in [1, total] and the key count matches total.
func TestNewBounds(t *testing.T) {
	t.Parallel()

	pool := pubKeys(testKeypairs(t, 8))

	rapid.Check(t, func(rt *rapid.T) {
		threshold := rapid.IntRange(-2, 10).Draw(rt, "threshold")
		total := rapid.IntRange(-1, 10).Draw(rt, "total")
		numKeys := rapid.IntRange(0, len(pool)).Draw(rt, "keys")

		m, err := New(threshold, total, pool[:numKeys])

		valid := threshold >= 1 && threshold <= total &&
			numKeys == total
		if !valid {
			require.ErrorIs(rt, err, goverr.ErrInvalidMultisig)

			var thresholdErr *goverr.ThresholdError
			require.ErrorAs(rt, err, &thresholdErr)
			require.Equal(rt, threshold, thresholdErr.Threshold)
			require.Equal(rt, total, thresholdErr.Total)
			require.Equal(rt, numKeys, thresholdErr.Keys)

			return
		}

		require.NoError(rt, err)
		require.Equal(rt, threshold, m.Threshold())
		require.Equal(rt, total, m.Total())
		require.Equal(rt, pool[:numKeys], m.Keys())
	})
}

// TestVerifyThreshold checks that verification passes exactly when enough
// distinct members signed, whatever noise surrounds their signatures.
func TestVerifyThreshold(t *testing.T) {
	t.Parallel()

	kps := testKeypairs(t, 7)
	members, outsiders := kps[:5], kps[5:]

	// Signing is deterministic, so every signature can be made upfront.
	memberSigs := make([]keychain.Signature, len(members))
	for i, kp := range members {
		memberSigs[i] = sign(t, kp, testMsg)
	}
	noise := []keychain.Signature{
		sign(t, outsiders[0], testMsg),
		sign(t, outsiders[1], testMsg),
		sign(t, members[0], []byte("another message")),
		{},
	}

	rapid.Check(t, func(rt *rapid.T) {
		total := rapid.IntRange(1, len(members)).Draw(rt, "total")
		threshold := rapid.IntRange(1, total).Draw(rt, "threshold")

		m, err := New(threshold, total, pubKeys(members[:total]))
		require.NoError(rt, err)

		signers := rapid.SliceOfDistinct(
			rapid.IntRange(0, total-1), rapid.ID[int],
		).Draw(rt, "signers")

		var sigs []keychain.Signature
		for _, i := range signers {
			sigs = append(sigs, memberSigs[i])

			// Repeating a signature never earns a second credit.
			if rapid.Bool().Draw(rt, "repeat") {
				sigs = append(sigs, memberSigs[i])
			}
		}
		extra := rapid.SliceOf(
			rapid.SampledFrom(noise),
		).Draw(rt, "noise")
		sigs = append(sigs, extra...)

		perm := rapid.Permutation(sigs).Draw(rt, "order")

		want := len(signers) >= threshold
		require.Equal(rt, want, m.Verify(testMsg, perm))
		require.Len(rt, m.CollectValidSignatures(testMsg, perm),
			len(signers))

		err = m.RequireThreshold(testMsg, perm)
		if want {
			require.NoError(rt, err)
		} else {
			require.ErrorIs(rt, err, goverr.ErrInsufficientSignatures)
		}
	})
}

// TestDuplicateKeys checks that a key listed twice only counts once.
func TestDuplicateKeys(t *testing.T) {
	t.Parallel()

	kps := testKeypairs(t, 2)
	a, b := kps[0].PublicKey(), kps[1].PublicKey()

	m, err := New(2, 3, []keychain.PublicKey{a, a, b})
	require.NoError(t, err)

	sigA := sign(t, kps[0], testMsg)
	sigB := sign(t, kps[1], testMsg)

	require.False(t, m.Verify(testMsg, []keychain.Signature{sigA, sigA}))
	require.True(t, m.Verify(testMsg, []keychain.Signature{sigA, sigB}))
	require.Equal(t, []int{0, 2}, m.CollectValidSignatures(
		testMsg, []keychain.Signature{sigA, sigA, sigB},
	))
}

// TestCollectValidSignatures checks the reported positions and that
// malformed signatures are skipped.
func TestCollectValidSignatures(t *testing.T) {
	t.Parallel()

	kps := testKeypairs(t, 4)
	m, err := New(2, 3, pubKeys(kps[:3]))
	require.NoError(t, err)

	var overflow keychain.Signature
	for i := range overflow {
		overflow[i] = 0xff
	}

	sigs := []keychain.Signature{
		overflow,
		sign(t, kps[2], testMsg),
		{},
		sign(t, kps[3], testMsg),
		sign(t, kps[0], testMsg),
	}
	require.Equal(t, []int{1, 4}, m.CollectValidSignatures(testMsg, sigs))
	require.True(t, m.Verify(testMsg, sigs))

	require.Empty(t, m.CollectValidSignatures(testMsg, nil))
	require.False(t, m.Verify(testMsg, nil))

	err = m.RequireThreshold(testMsg, sigs[:2])
	var shortfall *goverr.InsufficientSignaturesError
	require.ErrorAs(t, err, &shortfall)
	require.Equal(t, 1, shortfall.Got)
	require.Equal(t, 2, shortfall.Need)
}

// TestKeysAreCopied checks that callers can not alter a policy.
func TestKeysAreCopied(t *testing.T) {
	t.Parallel()

	keys := pubKeys(testKeypairs(t, 2))
	first := keys[0]

	m, err := New(1, 2, keys)
	require.NoError(t, err)

	keys[0] = keys[1]
	require.Equal(t, first, m.Keys()[0])

	m.Keys()[0] = keys[1]
	require.Equal(t, first, m.Keys()[0])
	require.Equal(t, "1-of-2", m.String())
}

// TestRedeemScript checks the script layout and the key count limit.
func TestRedeemScript(t *testing.T) {
	t.Parallel()

	keys := pubKeys(testKeypairs(t, 3))
	m, err := New(2, 3, keys)
	require.NoError(t, err)

	script, err := m.RedeemScript()
	require.NoError(t, err)

	want := []byte{txscript.OP_2}
	for _, key := range keys {
		want = append(want, txscript.OP_DATA_33)
		want = append(want, key[:]...)
	}
	want = append(want, txscript.OP_3, txscript.OP_CHECKMULTISIG)
	require.Equal(t, want, script)

	class := txscript.GetScriptClass(script)
	require.Equal(t, txscript.MultiSigTy, class)

	many := make([]keychain.PublicKey, txscript.MaxPubKeysPerMultiSig+1)
	for i := range many {
		many[i] = keys[i%len(keys)]
	}
	m, err = New(1, len(many), many)
	require.NoError(t, err)

	_, err = m.RedeemScript()
	require.ErrorIs(t, err, goverr.ErrInvalidMultisig)
}

// TestParseThreshold checks descriptor parsing.
func TestParseThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input     string
		threshold int
		total     int
		valid     bool
	}{
		{input: "2-of-3", threshold: 2, total: 3, valid: true},
		{input: "10-of-15", threshold: 10, total: 15, valid: true},
		{input: "0-of-0", threshold: 0, total: 0, valid: true},
		{input: "2of3"},
		{input: "2-of-"},
		{input: "-of-3"},
		{input: "+2-of-3"},
		{input: "-1-of-3"},
		{input: "2-of-3-of-4"},
		{input: " 2-of-3"},
		{input: "two-of-three"},
		{input: ""},
	}

	for _, test := range tests {
		threshold, total, err := ParseThreshold(test.input)
		if !test.valid {
			require.ErrorIs(t, err, goverr.ErrInvalidInput, test.input)
			continue
		}

		require.NoError(t, err, test.input)
		require.Equal(t, test.threshold, threshold)
		require.Equal(t, test.total, total)
		require.Equal(t, test.input, FormatThreshold(threshold, total))
	}
}
