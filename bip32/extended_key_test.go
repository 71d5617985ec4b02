package bip32

import (
	"encoding/hex"
	"fmt"
	"math"
	"testing"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// testVector1Seed is the seed of the first BIP 32 test vector.
var testVector1Seed, _ = hex.DecodeString("000102030405060708090a0b0c0d0e0f")

// TestNewMasterVector checks master key derivation against the first BIP
// 32 test vector.
func TestNewMasterVector(t *testing.T) {
	t.Parallel()

	master, err := NewMaster(testVector1Seed)
	require.NoError(t, err)

	secret := master.SecretKey()
	require.Equal(t,
		"e8f32e723decf4051aefac8e2c93c9c5b214313817cdb01a1494b917c84"+
			"36b35", hex.EncodeToString(secret[:]))
	require.Equal(t,
		"873dff81c02f525623fd1fe5167eac3a55a049de3d314bb42ee227ffed3"+
			"7d508", hex.EncodeToString(master.ChainCode[:]))

	require.Zero(t, master.Depth)
	require.Zero(t, master.ChildNumber)
	require.Equal(t, [4]byte{}, master.ParentFingerprint)

	require.Equal(t,
		"xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPPqjiC"+
			"hkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi",
		master.EncodePrivate(&chaincfg.MainNetParams))

	pub, err := master.Public()
	require.NoError(t, err)
	require.Equal(t,
		"xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2g"+
			"Z29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8",
		pub.String())

	// Derivation is a pure function of the seed.
	again, err := NewMaster(testVector1Seed)
	require.NoError(t, err)
	require.Equal(t, master, again)
}

// TestNewMasterSeedLength checks the accepted seed lengths.
func TestNewMasterSeedLength(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, MinSeedBytes - 1, MaxSeedBytes + 1} {
		_, err := NewMaster(make([]byte, size))
		require.ErrorIs(t, err, goverr.ErrInvalidInput, size)
	}

	for _, size := range []int{MinSeedBytes, 32, MaxSeedBytes} {
		_, err := NewMaster(make([]byte, size))
		require.NoError(t, err, size)
	}
}

// hdkeychainPath derives path with btcutil's implementation for comparison.
func hdkeychainPath(t require.TestingT, seed []byte,
	path []uint32) *hdkeychain.ExtendedKey {

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	for _, index := range path {
		key, err = key.Derive(index)
		require.NoError(t, err)
	}

	return key
}

// TestDerivationMatchesHDKeychain checks private and public derivation
// against btcutil's hdkeychain for random seeds and paths.
func TestDerivationMatchesHDKeychain(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.SliceOfN(
			rapid.Byte(), MinSeedBytes, MaxSeedBytes,
		).Draw(rt, "seed")
		path := rapid.SliceOfN(rapid.Uint32(), 0, 4).Draw(rt, "path")

		master, err := NewMaster(seed)
		require.NoError(rt, err)

		child, err := master.DerivePath(path)
		require.NoError(rt, err)
		require.Equal(rt, uint8(len(path)), child.Depth)

		want := hdkeychainPath(rt, seed, path)
		require.Equal(
			rt, want.String(),
			child.EncodePrivate(&chaincfg.MainNetParams),
		)

		wantPub, err := want.Neuter()
		require.NoError(rt, err)

		pub, err := child.Public()
		require.NoError(rt, err)
		require.Equal(rt, wantPub.String(), pub.String())
	})
}

// TestPublicPrivateConsistency checks that deriving a non-hardened child
// publicly yields the public half of the privately derived child.
func TestPublicPrivateConsistency(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(rt, "seed")
		index := rapid.Uint32Range(0, HardenedKeyStart-1).Draw(
			rt, "index",
		)

		master, err := NewMaster(seed)
		require.NoError(rt, err)

		parent, err := DeriveChildPrivate(master, Hardened(0))
		require.NoError(rt, err)

		privChild, err := DeriveChildPrivate(parent, index)
		require.NoError(rt, err)
		want, err := privChild.Public()
		require.NoError(rt, err)

		parentPub, err := parent.Public()
		require.NoError(rt, err)
		got, err := DeriveChildPublic(parentPub, index)
		require.NoError(rt, err)

		require.Equal(rt, want, got)
	})
}

// TestHardenedFromPublic checks that hardened public derivation fails.
func TestHardenedFromPublic(t *testing.T) {
	t.Parallel()

	master, err := NewMaster(testVector1Seed)
	require.NoError(t, err)
	pub, err := master.Public()
	require.NoError(t, err)

	for _, index := range []uint32{HardenedKeyStart, math.MaxUint32} {
		_, err := DeriveChildPublic(pub, index)
		require.ErrorIs(t, err, goverr.ErrInvalidInput)
	}

	_, err = pub.DerivePath([]uint32{0, Hardened(1)})
	require.ErrorIs(t, err, goverr.ErrInvalidInput)
}

// TestChildMetadata checks depth, child number and parent fingerprint.
func TestChildMetadata(t *testing.T) {
	t.Parallel()

	master, err := NewMaster(testVector1Seed)
	require.NoError(t, err)

	child, err := DeriveChildPrivate(master, Hardened(0))
	require.NoError(t, err)

	fp, err := master.Fingerprint()
	require.NoError(t, err)

	// The fingerprint of the first test vector's master key.
	require.Equal(t, "3442193e", hex.EncodeToString(fp[:]))
	require.Equal(t, fp, child.ParentFingerprint)
	require.Equal(t, uint8(1), child.Depth)
	require.Equal(t, Hardened(0), child.ChildNumber)

	// The parent is left untouched.
	require.Zero(t, master.Depth)
}

// TestDepthLimit checks that the single byte depth field can not wrap.
func TestDepthLimit(t *testing.T) {
	t.Parallel()

	master, err := NewMaster(testVector1Seed)
	require.NoError(t, err)

	deep := master
	deep.Depth = math.MaxUint8

	_, err = DeriveChildPrivate(deep, 0)
	require.ErrorIs(t, err, goverr.ErrInvalidInput)

	pub, err := deep.Public()
	require.NoError(t, err)
	_, err = DeriveChildPublic(pub, 0)
	require.ErrorIs(t, err, goverr.ErrInvalidInput)
}

// TestKeypairBridge checks that a derived node signs with its own key.
func TestKeypairBridge(t *testing.T) {
	t.Parallel()

	master, err := NewMaster(testVector1Seed)
	require.NoError(t, err)

	kp, err := master.Keypair()
	require.NoError(t, err)

	pub, err := master.Public()
	require.NoError(t, err)
	require.Equal(t, pub.PublicKey, kp.PublicKey())

	sig, err := kp.Sign([]byte("hello"))
	require.NoError(t, err)
	ok, err := keychain.Verify(sig, []byte("hello"), pub.PublicKey)
	require.NoError(t, err)
	require.True(t, ok)
}

// TestFormattingHidesSecret checks that fmt never prints the secret.
func TestFormattingHidesSecret(t *testing.T) {
	t.Parallel()

	master, err := NewMaster(testVector1Seed)
	require.NoError(t, err)

	secret := master.SecretKey()
	secretHex := hex.EncodeToString(secret[:])
	for _, verb := range []string{"%v", "%+v", "%#v", "%s"} {
		require.NotContains(t, fmt.Sprintf(verb, master), secretHex)
	}
}
