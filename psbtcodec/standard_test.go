package psbtcodec

import (
	"encoding/binary"
	"testing"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestStandardBridge converts a packet carrying the common fields to the
// btcutil representation and back.
func TestStandardBridge(t *testing.T) {
	t.Parallel()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := keychain.NewPublicKey(priv.PubKey())

	sig := ecdsa.Sign(priv, chainhash.HashB([]byte("spend"))).Serialize()
	sig = append(sig, byte(txscript.SigHashAll))

	p, err := NewFromTx(testTx(1, 2))
	require.NoError(t, err)

	fp := [4]byte{0x34, 0x42, 0x19, 0x3e}
	path := []uint32{0x80000030, 0x80000000, 0x80000000, 0, 3}
	utxo := wire.NewTxOut(50_000, []byte{txscript.OP_0, 0x20})

	require.NoError(t, p.SetWitnessUtxo(0, utxo))
	require.NoError(t, p.AddPartialSignature(0, pub, sig))
	require.NoError(t, p.SetSighashType(0, SighashAll))
	require.NoError(t, p.AddBIP32Derivation(0, pub, fp, path))
	require.NoError(t, p.AddOutputBIP32Derivation(1, pub, fp, path))

	packet, err := p.ToStandard()
	require.NoError(t, err)

	require.Len(t, packet.Inputs, 1)
	require.Len(t, packet.Outputs, 2)

	input := packet.Inputs[0]
	require.Equal(t, utxo, input.WitnessUtxo)
	require.Equal(t, txscript.SigHashAll, input.SighashType)
	require.Len(t, input.PartialSigs, 1)
	require.Equal(t, pub[:], input.PartialSigs[0].PubKey)
	require.Equal(t, sig, input.PartialSigs[0].Signature)
	require.Len(t, input.Bip32Derivation, 1)
	require.Equal(t,
		binary.LittleEndian.Uint32(fp[:]),
		input.Bip32Derivation[0].MasterKeyFingerprint,
	)
	require.Equal(t, path, input.Bip32Derivation[0].Bip32Path)

	require.Empty(t, packet.Outputs[0].Bip32Derivation)
	require.Len(t, packet.Outputs[1].Bip32Derivation, 1)

	back, err := FromStandard(packet)
	require.NoError(t, err)
	require.Equal(t, p, back)
}

// TestToStandardErrors checks the cases the standard layout can not carry.
func TestToStandardErrors(t *testing.T) {
	t.Parallel()

	p, err := New([]byte{0x01, 0x02})
	require.NoError(t, err)
	_, err = p.ToStandard()
	require.ErrorIs(t, err, goverr.ErrSerialization)

	p, err = NewFromTx(testTx(1, 1))
	require.NoError(t, err)
	require.NoError(t, p.SetInputData(1, []byte{InputProprietary}, nil))
	_, err = p.ToStandard()
	require.ErrorIs(t, err, goverr.ErrInvalidInput)

	// A partial signature that is not DER is refused by the validating
	// parser.
	p, err = NewFromTx(testTx(1, 1))
	require.NoError(t, err)
	require.NoError(t, p.AddPartialSignature(0, testPubKey(t), []byte{1}))
	_, err = p.ToStandard()
	require.ErrorIs(t, err, goverr.ErrInvalidInput)
}
