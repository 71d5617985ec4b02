package bip44

import (
	"testing"

	"github.com/bitcoincommons/govkit/bip32"
	"github.com/bitcoincommons/govkit/goverr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// TestParsePath covers accepted and rejected path strings.
func TestParsePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		path  string
		want  Path
		canon string
		err   bool
	}{
		{
			name:  "canonical",
			path:  "m/44'/0'/0'/0/0",
			want:  NewPath(CoinTypeBitcoin, 0, ExternalChain, 0),
			canon: "m/44'/0'/0'/0/0",
		},
		{
			name: "h marker without prefix",
			path: "44h/1h/7h/1/42",
			want: NewPath(
				CoinTypeBitcoinTestnet, 7, InternalChain, 42,
			),
			canon: "m/44'/1'/7'/1/42",
		},
		{
			name:  "unregistered coin type",
			path:  "m/44'/1234'/0'/0/5",
			want:  NewPath(CoinType(1234), 0, ExternalChain, 5),
			canon: "m/44'/1234'/0'/0/5",
		},
		{name: "too few levels", path: "m/44'/0'/0'/0", err: true},
		{name: "too many levels", path: "m/44'/0'/0'/0/0/0", err: true},
		{name: "empty", path: "", err: true},
		{name: "wrong purpose", path: "m/49'/0'/0'/0/0", err: true},
		{
			name:  "no hardened markers",
			path:  "m/44/0/0/0/0",
			want:  NewPath(CoinTypeBitcoin, 0, ExternalChain, 0),
			canon: "m/44'/0'/0'/0/0",
		},
		{
			name: "unmarked purpose",
			path: "m/44/0'/3'/1/9",
			want: NewPath(
				CoinTypeBitcoin, 3, InternalChain, 9,
			),
			canon: "m/44'/0'/3'/1/9",
		},
		{
			name: "unmarked coin type",
			path: "m/44'/1/0'/0/0",
			want: NewPath(
				CoinTypeBitcoinTestnet, 0, ExternalChain, 0,
			),
			canon: "m/44'/1'/0'/0/0",
		},
		{name: "wrong unmarked purpose", path: "m/49/0/0/0/0", err: true},
		{name: "hardened change", path: "m/44'/0'/0'/0'/0", err: true},
		{name: "hardened index", path: "m/44'/0'/0'/0/0h", err: true},
		{name: "change two", path: "m/44'/0'/0'/2/0", err: true},
		{name: "not a number", path: "m/44'/x'/0'/0/0", err: true},
		{name: "negative", path: "m/44'/0'/-1'/0/0", err: true},
		{name: "signed", path: "m/44'/0'/+1'/0/0", err: true},
		{
			name: "account overflow",
			path: "m/44'/0'/2147483648'/0/0",
			err:  true,
		},
		{
			name: "index overflow",
			path: "m/44'/0'/0'/0/4294967296",
			err:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParsePath(test.path)
			if test.err {
				require.ErrorIs(t, err, goverr.ErrInvalidInput)
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.want, got)
			require.Equal(t, test.canon, got.String())

			reparsed, err := ParsePath(got.String())
			require.NoError(t, err)
			require.Equal(t, got, reparsed)
		})
	}
}

// TestPathIndices checks that the first three levels are hardened.
func TestPathIndices(t *testing.T) {
	t.Parallel()

	path := NewPath(CoinTypeEthereum, 2, InternalChain, 9)
	require.Equal(t, []uint32{
		bip32.HardenedKeyStart + 44,
		bip32.HardenedKeyStart + 60,
		bip32.HardenedKeyStart + 2,
		1,
		9,
	}, path.Indices())
}

// sequentialSeed returns the 32 bytes 0x00 through 0x1f.
func sequentialSeed() []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	return seed
}

// TestDeriveSequentialSeed derives the first two receiving keys from a
// fixed seed and checks that they differ and sit at depth five.
func TestDeriveSequentialSeed(t *testing.T) {
	t.Parallel()

	master, err := bip32.NewMaster(sequentialSeed())
	require.NoError(t, err)

	first, err := ParsePath("m/44'/0'/0'/0/0")
	require.NoError(t, err)
	second, err := ParsePath("m/44'/0'/0'/0/1")
	require.NoError(t, err)

	key0, err := first.Derive(master)
	require.NoError(t, err)
	key1, err := second.Derive(master)
	require.NoError(t, err)

	require.Equal(t, uint8(5), key0.Depth)
	require.Equal(t, uint8(5), key1.Depth)
	require.NotEqual(t, key0.SecretKey(), key1.SecretKey())

	pub0, err := key0.Public()
	require.NoError(t, err)
	pub1, err := key1.Public()
	require.NoError(t, err)
	require.NotEqual(t, pub0.PublicKey, pub1.PublicKey)

	// Walking the indices by hand gives the same key.
	manual, err := master.DerivePath(first.Indices())
	require.NoError(t, err)
	require.Equal(t, key0, manual)
}

// TestDeriveRejectsInvalidPath checks that an out of range path built by
// hand is rejected before any derivation happens.
func TestDeriveRejectsInvalidPath(t *testing.T) {
	t.Parallel()

	master, err := bip32.NewMaster(sequentialSeed())
	require.NoError(t, err)

	_, err = NewPath(CoinTypeBitcoin, 0, ChangeChain(2), 0).Derive(master)
	require.ErrorIs(t, err, goverr.ErrInvalidInput)

	_, err = NewPath(
		CoinTypeBitcoin, bip32.HardenedKeyStart, ExternalChain, 0,
	).Derive(master)
	require.ErrorIs(t, err, goverr.ErrInvalidInput)
}

// TestCoinTypeForNet checks the network to coin type mapping.
func TestCoinTypeForNet(t *testing.T) {
	t.Parallel()

	require.Equal(t, CoinTypeBitcoin,
		CoinTypeForNet(&chaincfg.MainNetParams))
	require.Equal(t, CoinTypeBitcoinTestnet,
		CoinTypeForNet(&chaincfg.TestNet3Params))
	require.Equal(t, CoinTypeBitcoinTestnet,
		CoinTypeForNet(&chaincfg.RegressionNetParams))

	require.Equal(t, "litecoin", CoinTypeLitecoin.String())
	require.Equal(t, "1234", CoinType(1234).String())
}
