// Package psbtcodec implements a key-value map codec for partially signed
// bitcoin transactions, with helpers for the common BIP 174 fields and a
// bridge to btcutil's psbt package.
package psbtcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// Magic is the four byte prefix of every serialized packet.
var Magic = [4]byte{0x70, 0x73, 0x62, 0x74}

// Separator follows the magic and marks the end of a section.
const Separator byte = 0xff

// Global key types.
const (
	GlobalUnsignedTx  byte = 0x00
	GlobalXpub        byte = 0x01
	GlobalVersion     byte = 0xfb
	GlobalProprietary byte = 0xfc
)

// Input key types.
const (
	InputNonWitnessUtxo     byte = 0x00
	InputWitnessUtxo        byte = 0x01
	InputPartialSig         byte = 0x02
	InputSighashType        byte = 0x03
	InputRedeemScript       byte = 0x04
	InputWitnessScript      byte = 0x05
	InputBip32Derivation    byte = 0x06
	InputFinalScriptSig     byte = 0x07
	InputFinalScriptWitness byte = 0x08
	InputProprietary        byte = 0xfc
)

// Output key types.
const (
	OutputRedeemScript    byte = 0x00
	OutputWitnessScript   byte = 0x01
	OutputBip32Derivation byte = 0x02
	OutputProprietary     byte = 0xfc
)

// Version is the packet version written into the global map.
const Version uint32 = 0

// SighashType is the signature hash flag an input is to be signed with.
type SighashType uint8

// The legacy sighash flags.
const (
	SighashAll                SighashType = 0x01
	SighashNone               SighashType = 0x02
	SighashSingle             SighashType = 0x03
	SighashAllAnyoneCanPay    SighashType = 0x81
	SighashNoneAnyoneCanPay   SighashType = 0x82
	SighashSingleAnyoneCanPay SighashType = 0x83
)

// Valid reports whether s is one of the known flags.
func (s SighashType) Valid() bool {
	switch s {
	case SighashAll, SighashNone, SighashSingle, SighashAllAnyoneCanPay,
		SighashNoneAnyoneCanPay, SighashSingleAnyoneCanPay:

		return true
	}

	return false
}

// String returns the BIP143 style name of the flag.
func (s SighashType) String() string {
	switch s {
	case SighashAll:
		return "SIGHASH_ALL"
	case SighashNone:
		return "SIGHASH_NONE"
	case SighashSingle:
		return "SIGHASH_SINGLE"
	case SighashAllAnyoneCanPay:
		return "SIGHASH_ALL|ANYONECANPAY"
	case SighashNoneAnyoneCanPay:
		return "SIGHASH_NONE|ANYONECANPAY"
	case SighashSingleAnyoneCanPay:
		return "SIGHASH_SINGLE|ANYONECANPAY"
	default:
		return fmt.Sprintf("<unknown sighash 0x%02x>", uint8(s))
	}
}

// Packet is a partially signed transaction: a global map holding the
// unsigned transaction, one map per input and one map per output.
type Packet struct {
	Global  Map
	Inputs  []Map
	Outputs []Map
}

// New creates a packet around the serialized unsigned transaction. The
// input and output maps are created lazily as data is added.
func New(unsignedTx []byte) (*Packet, error) {
	if len(unsignedTx) == 0 {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"unsigned transaction is empty")
	}

	p := &Packet{
		Global: NewMap(),
	}
	_ = p.Global.Set([]byte{GlobalUnsignedTx}, unsignedTx)
	_ = p.Global.Set(
		[]byte{GlobalVersion},
		binary.LittleEndian.AppendUint32(nil, Version),
	)

	return p, nil
}

// NewFromTx creates a packet from a transaction without signatures, with
// one empty map per input and output.
func NewFromTx(tx *wire.MsgTx) (*Packet, error) {
	for i, txIn := range tx.TxIn {
		if len(txIn.SignatureScript) != 0 || len(txIn.Witness) != 0 {
			return nil, goverr.Errorf(goverr.ErrInvalidInput,
				"input %d of the transaction is signed", i)
		}
	}

	var buf bytes.Buffer
	if err := tx.SerializeNoWitness(&buf); err != nil {
		return nil, goverr.Errorf(goverr.ErrSerialization,
			"unable to serialize transaction: %v", err)
	}

	p, err := New(buf.Bytes())
	if err != nil {
		return nil, err
	}

	p.Inputs = make([]Map, len(tx.TxIn))
	for i := range p.Inputs {
		p.Inputs[i] = NewMap()
	}
	p.Outputs = make([]Map, len(tx.TxOut))
	for i := range p.Outputs {
		p.Outputs[i] = NewMap()
	}

	return p, nil
}

// UnsignedTx returns the raw unsigned transaction.
func (p *Packet) UnsignedTx() ([]byte, error) {
	return p.Global.Get([]byte{GlobalUnsignedTx}).UnwrapOrErr(
		goverr.Errorf(goverr.ErrInvalidInput,
			"packet has no unsigned transaction"),
	)
}

// MsgTx parses the unsigned transaction.
func (p *Packet) MsgTx() (*wire.MsgTx, error) {
	raw, err := p.UnsignedTx()
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.DeserializeNoWitness(bytes.NewReader(raw)); err != nil {
		return nil, goverr.Errorf(goverr.ErrSerialization,
			"unable to parse unsigned transaction: %v", err)
	}

	return tx, nil
}

// growMaps extends maps so that index is addressable.
func growMaps(maps []Map, index int) ([]Map, error) {
	if index < 0 {
		return maps, goverr.Errorf(goverr.ErrInvalidInput,
			"negative index %d", index)
	}

	for len(maps) <= index {
		maps = append(maps, NewMap())
	}

	return maps, nil
}

// SetInputData stores a raw entry in the map of input index, creating the
// map and any before it if needed.
func (p *Packet) SetInputData(index int, key, value []byte) error {
	inputs, err := growMaps(p.Inputs, index)
	if err != nil {
		return err
	}
	p.Inputs = inputs

	return p.Inputs[index].Set(key, value)
}

// SetOutputData stores a raw entry in the map of output index, creating
// the map and any before it if needed.
func (p *Packet) SetOutputData(index int, key, value []byte) error {
	outputs, err := growMaps(p.Outputs, index)
	if err != nil {
		return err
	}
	p.Outputs = outputs

	return p.Outputs[index].Set(key, value)
}

// AddPartialSignature records the signature of pub for input index. The
// signature is stored as-is; for script spends it is the DER signature
// followed by the sighash byte.
func (p *Packet) AddPartialSignature(index int, pub keychain.PublicKey,
	sig []byte) error {

	if len(sig) == 0 {
		return goverr.Errorf(goverr.ErrInvalidInput,
			"empty partial signature")
	}

	return p.SetInputData(index, typedKey(InputPartialSig, pub[:]), sig)
}

// PartialSignatures returns the partial signatures of input index keyed by
// public key.
func (p *Packet) PartialSignatures(
	index int) (map[keychain.PublicKey][]byte, error) {

	if index < 0 || index >= len(p.Inputs) {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"no input %d", index)
	}

	sigs := make(map[keychain.PublicKey][]byte)
	for _, key := range p.Inputs[index].KeysOfType(InputPartialSig) {
		pub, err := keychain.ParsePublicKey(key[1:])
		if err != nil {
			return nil, fmt.Errorf("partial signature key: %w", err)
		}
		sigs[pub] = p.Inputs[index][string(key)]
	}

	return sigs, nil
}

// bip32Value encodes a key origin as the master fingerprint followed by the
// path, each element a little-endian uint32.
func bip32Value(fingerprint [4]byte, path []uint32) []byte {
	return psbt.SerializeBIP32Derivation(
		binary.LittleEndian.Uint32(fingerprint[:]), path,
	)
}

// AddBIP32Derivation records the origin of pub for input index.
func (p *Packet) AddBIP32Derivation(index int, pub keychain.PublicKey,
	fingerprint [4]byte, path []uint32) error {

	return p.SetInputData(
		index, typedKey(InputBip32Derivation, pub[:]),
		bip32Value(fingerprint, path),
	)
}

// AddOutputBIP32Derivation records the origin of pub for output index.
func (p *Packet) AddOutputBIP32Derivation(index int, pub keychain.PublicKey,
	fingerprint [4]byte, path []uint32) error {

	return p.SetOutputData(
		index, typedKey(OutputBip32Derivation, pub[:]),
		bip32Value(fingerprint, path),
	)
}

// BIP32Derivation decodes a key origin value written by AddBIP32Derivation.
func BIP32Derivation(value []byte) ([4]byte, []uint32, error) {
	var fingerprint [4]byte

	fp, path, err := psbt.ReadBip32Derivation(value)
	if err != nil {
		return fingerprint, nil, goverr.Errorf(goverr.ErrInvalidInput,
			"invalid key origin: %v", err)
	}
	binary.LittleEndian.PutUint32(fingerprint[:], fp)

	return fingerprint, path, nil
}

// SetSighashType records the sighash flag for input index as a
// little-endian uint32.
func (p *Packet) SetSighashType(index int, sighash SighashType) error {
	if !sighash.Valid() {
		return goverr.Errorf(goverr.ErrInvalidInput,
			"unknown sighash type 0x%02x", uint8(sighash))
	}

	return p.SetInputData(
		index, []byte{InputSighashType},
		binary.LittleEndian.AppendUint32(nil, uint32(sighash)),
	)
}

// SetRedeemScript records the P2SH redeem script of input index.
func (p *Packet) SetRedeemScript(index int, script []byte) error {
	return p.SetInputData(index, []byte{InputRedeemScript}, script)
}

// SetWitnessScript records the P2WSH witness script of input index.
func (p *Packet) SetWitnessScript(index int, script []byte) error {
	return p.SetInputData(index, []byte{InputWitnessScript}, script)
}

// SetWitnessUtxo records the output spent by input index.
func (p *Packet) SetWitnessUtxo(index int, txOut *wire.TxOut) error {
	var buf bytes.Buffer
	if err := wire.WriteTxOut(&buf, 0, 0, txOut); err != nil {
		return goverr.Errorf(goverr.ErrSerialization,
			"unable to serialize output: %v", err)
	}

	return p.SetInputData(index, []byte{InputWitnessUtxo}, buf.Bytes())
}
