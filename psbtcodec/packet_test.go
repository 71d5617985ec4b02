package psbtcodec

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// testTx returns an unsigned transaction with the given number of inputs
// and outputs.
func testTx(numInputs, numOutputs int) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for i := 0; i < numInputs; i++ {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{byte(i + 1)},
				Index: uint32(i),
			},
			Sequence: wire.MaxTxInSequenceNum,
		})
	}
	for i := 0; i < numOutputs; i++ {
		tx.AddTxOut(wire.NewTxOut(
			int64(1000*(i+1)), []byte{txscript.OP_TRUE},
		))
	}

	return tx
}

func testPubKey(t *testing.T) keychain.PublicKey {
	t.Helper()

	kp, err := keychain.GenerateKeypair()
	require.NoError(t, err)

	return kp.PublicKey()
}

// TestSerializeLayout pins the byte layout of a minimal packet.
func TestSerializeLayout(t *testing.T) {
	t.Parallel()

	p, err := New([]byte{0xaa})
	require.NoError(t, err)

	b, err := p.Bytes()
	require.NoError(t, err)

	want := "70736274ff" +
		// Global map: unsigned tx, then version, then terminator.
		"0100" + "01aa" +
		"01fb" + "0400000000" +
		"00" +
		// End of global map, no inputs, end of inputs, no outputs.
		"ff" + "ff"
	require.Equal(t, want, hex.EncodeToString(b))

	_, err = New(nil)
	require.ErrorIs(t, err, goverr.ErrInvalidInput)
}

// genMap draws a map with short non-empty keys.
func genMap(rt *rapid.T, label string) Map {
	m := NewMap()
	n := rapid.IntRange(0, 4).Draw(rt, label+" size")
	for i := 0; i < n; i++ {
		key := rapid.SliceOfN(rapid.Byte(), 1, 40).Draw(rt, label+" key")
		value := rapid.SliceOfN(rapid.Byte(), 0, 300).Draw(
			rt, label+" value",
		)
		require.NoError(rt, m.Set(key, value))
	}

	return m
}

// TestSerializeRoundTrip checks that any packet survives a serialize and
// deserialize cycle unchanged.
func TestSerializeRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		p := &Packet{
			Global: genMap(rt, "global"),
		}
		numInputs := rapid.IntRange(0, 3).Draw(rt, "inputs")
		for i := 0; i < numInputs; i++ {
			p.Inputs = append(p.Inputs, genMap(rt, "input"))
		}
		numOutputs := rapid.IntRange(0, 3).Draw(rt, "outputs")
		for i := 0; i < numOutputs; i++ {
			p.Outputs = append(p.Outputs, genMap(rt, "output"))
		}

		b, err := p.Bytes()
		require.NoError(rt, err)

		decoded, err := Deserialize(b)
		require.NoError(rt, err)
		require.Equal(rt, p, decoded)

		// Serialization is deterministic regardless of map order.
		again, err := decoded.Bytes()
		require.NoError(rt, err)
		require.Equal(rt, b, again)
	})
}

// TestDeserializeErrors checks the rejection of malformed packets.
func TestDeserializeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		err   error
	}{
		{name: "empty", input: "", err: ErrInvalidMagic},
		{name: "bad magic", input: "70736275ff00ffff",
			err: ErrInvalidMagic},
		{name: "no separator", input: "7073627400", err: ErrInvalidMagic},
		{name: "no global map", input: "70736274ff", err: ErrTruncated},
		{name: "truncated key length", input: "70736274fffd",
			err: ErrTruncated},
		{name: "truncated key", input: "70736274ff0300", err: ErrTruncated},
		{name: "truncated value", input: "70736274ff0100" + "05aa",
			err: ErrTruncated},
		{name: "oversized value", input: "70736274ff0100" + "feffffff00",
			err: ErrTruncated},
		{name: "missing global separator",
			input: "70736274ff" + "00", err: ErrTruncated},
		{name: "bad global separator",
			input: "70736274ff" + "00" + "00",
			err:   goverr.ErrInvalidInput},
		{name: "missing input separator",
			input: "70736274ff" + "00" + "ff" + "00",
			err:   ErrTruncated},
		{name: "duplicate key",
			input: "70736274ff" + "0101" + "00" + "0101" + "00" +
				"00" + "ff" + "ff",
			err: goverr.ErrInvalidInput},
		{name: "truncated output",
			input: "70736274ff" + "00" + "ff" + "ff" + "0101",
			err:   ErrTruncated},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := hex.DecodeString(test.input)
			require.NoError(t, err)

			_, err = Deserialize(b)
			require.ErrorIs(t, err, test.err)
			require.ErrorIs(t, err, goverr.ErrInvalidInput)
		})
	}
}

// TestBase64RoundTrip checks the base64 helpers.
func TestBase64RoundTrip(t *testing.T) {
	t.Parallel()

	p, err := NewFromTx(testTx(2, 1))
	require.NoError(t, err)
	require.NoError(t, p.SetSighashType(1, SighashAll))

	encoded, err := p.B64Encode()
	require.NoError(t, err)

	decoded, err := NewFromRawBytes(
		bytes.NewReader([]byte(encoded+"\n")), true,
	)
	require.NoError(t, err)
	require.Equal(t, p, decoded)
}

// TestPacketFields checks the typed helpers.
func TestPacketFields(t *testing.T) {
	t.Parallel()

	p, err := NewFromTx(testTx(1, 1))
	require.NoError(t, err)
	require.Len(t, p.Inputs, 1)
	require.Len(t, p.Outputs, 1)

	pub := testPubKey(t)
	require.NoError(t, p.AddPartialSignature(0, pub, []byte{1, 2, 3}))
	sigs, err := p.PartialSignatures(0)
	require.NoError(t, err)
	require.Equal(t, map[keychain.PublicKey][]byte{
		pub: {1, 2, 3},
	}, sigs)
	require.ErrorIs(t,
		p.AddPartialSignature(0, pub, nil), goverr.ErrInvalidInput,
	)

	fp := [4]byte{0xde, 0xad, 0xbe, 0xef}
	path := []uint32{0x8000002c, 0x80000000, 0x80000000, 0, 7}
	require.NoError(t, p.AddBIP32Derivation(0, pub, fp, path))
	require.NoError(t, p.AddOutputBIP32Derivation(0, pub, fp, path))

	value := p.Inputs[0].Get(
		typedKey(InputBip32Derivation, pub[:]),
	).UnwrapOr(nil)
	require.Equal(t, "deadbeef", hex.EncodeToString(value[:4]))

	gotFP, gotPath, err := BIP32Derivation(value)
	require.NoError(t, err)
	require.Equal(t, fp, gotFP)
	require.Equal(t, path, gotPath)

	require.NoError(t, p.SetSighashType(0, SighashSingleAnyoneCanPay))
	require.Equal(t, []byte{0x83, 0, 0, 0}, p.Inputs[0].Get(
		[]byte{InputSighashType},
	).UnwrapOr(nil))
	require.ErrorIs(t,
		p.SetSighashType(0, SighashType(0x04)), goverr.ErrInvalidInput,
	)

	// Setting data on a later input creates the maps in between.
	require.NoError(t, p.SetRedeemScript(3, []byte{txscript.OP_TRUE}))
	require.Len(t, p.Inputs, 4)
	require.ErrorIs(t,
		p.SetInputData(-1, []byte{1}, nil), goverr.ErrInvalidInput,
	)
	require.ErrorIs(t,
		p.SetOutputData(0, nil, []byte{1}), goverr.ErrInvalidInput,
	)

	_, err = p.PartialSignatures(9)
	require.ErrorIs(t, err, goverr.ErrInvalidInput)
}

// TestNewFromTxRejectsSigned checks that a signed transaction is refused.
func TestNewFromTxRejectsSigned(t *testing.T) {
	t.Parallel()

	tx := testTx(1, 1)
	tx.TxIn[0].SignatureScript = []byte{txscript.OP_TRUE}

	_, err := NewFromTx(tx)
	require.ErrorIs(t, err, goverr.ErrInvalidInput)
}

// TestSighashType checks the flag values against the script engine and
// their names.
func TestSighashType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		flag   SighashType
		script txscript.SigHashType
		name   string
	}{
		{SighashAll, txscript.SigHashAll, "SIGHASH_ALL"},
		{SighashNone, txscript.SigHashNone, "SIGHASH_NONE"},
		{SighashSingle, txscript.SigHashSingle, "SIGHASH_SINGLE"},
		{
			SighashAllAnyoneCanPay,
			txscript.SigHashAll | txscript.SigHashAnyOneCanPay,
			"SIGHASH_ALL|ANYONECANPAY",
		},
		{
			SighashNoneAnyoneCanPay,
			txscript.SigHashNone | txscript.SigHashAnyOneCanPay,
			"SIGHASH_NONE|ANYONECANPAY",
		},
		{
			SighashSingleAnyoneCanPay,
			txscript.SigHashSingle | txscript.SigHashAnyOneCanPay,
			"SIGHASH_SINGLE|ANYONECANPAY",
		},
	}
	for _, tc := range tests {
		require.True(t, tc.flag.Valid())
		require.Equal(t, uint32(tc.script), uint32(tc.flag))
		require.Equal(t, tc.name, tc.flag.String())
	}

	require.False(t, SighashType(0x04).Valid())
	require.Equal(t, "<unknown sighash 0x04>", SighashType(0x04).String())
}
