package psbtcodec

import (
	"bytes"

	"github.com/bitcoincommons/govkit/build"
	"github.com/bitcoincommons/govkit/goverr"
	"github.com/btcsuite/btcd/wire"
)

// signingKeyTypes are the input entries that only matter until the input
// is finalized.
var signingKeyTypes = []byte{
	InputPartialSig,
	InputSighashType,
	InputRedeemScript,
	InputWitnessScript,
	InputBip32Derivation,
}

// serializeWitness encodes a witness stack as an item count followed by
// each item with a length prefix.
func serializeWitness(witness wire.TxWitness) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCompactSize(&buf, uint64(len(witness))); err != nil {
		return nil, err
	}
	for _, item := range witness {
		if err := wire.WriteVarBytes(&buf, 0, item); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// parseWitness decodes the output of serializeWitness.
func parseWitness(b []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(b)

	count, err := ReadCompactSize(r)
	if err != nil {
		return nil, err
	}
	if count > uint64(r.Len()) {
		return nil, ErrTruncated
	}

	witness := make(wire.TxWitness, 0, count)
	for i := uint64(0); i < count; i++ {
		item, err := readVarBytes(r)
		if err != nil {
			return nil, err
		}
		witness = append(witness, item)
	}

	if r.Len() != 0 {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"%d trailing bytes after witness", r.Len())
	}

	return witness, nil
}

// FinalizeInput sets the final script sig and/or witness of input index and
// drops the entries that were only needed for signing. At least one of
// the two must be non-empty.
func (p *Packet) FinalizeInput(index int, scriptSig []byte,
	witness wire.TxWitness) error {

	if len(scriptSig) == 0 && len(witness) == 0 {
		return goverr.Errorf(goverr.ErrInvalidInput,
			"input %d needs a script sig or a witness", index)
	}

	var (
		finalWitness []byte
		err          error
	)
	if len(witness) != 0 {
		finalWitness, err = serializeWitness(witness)
		if err != nil {
			return goverr.Errorf(goverr.ErrSerialization,
				"unable to serialize witness: %v", err)
		}
	}

	inputs, err := growMaps(p.Inputs, index)
	if err != nil {
		return err
	}
	p.Inputs = inputs
	input := p.Inputs[index]

	for _, keyType := range signingKeyTypes {
		for _, key := range input.KeysOfType(keyType) {
			input.Delete(key)
		}
	}

	if len(scriptSig) != 0 {
		_ = input.Set([]byte{InputFinalScriptSig}, scriptSig)
	}
	if len(finalWitness) != 0 {
		_ = input.Set([]byte{InputFinalScriptWitness}, finalWitness)
	}

	log.Debugf("Finalized input %d", index)

	return nil
}

// IsFinalized reports whether every input carries a final script sig or
// a final witness.
func (p *Packet) IsFinalized() bool {
	for _, input := range p.Inputs {
		if !input.Has([]byte{InputFinalScriptSig}) &&
			!input.Has([]byte{InputFinalScriptWitness}) {

			return false
		}
	}

	return true
}

// ExtractMsgTx builds the signed transaction by moving the final scripts
// of every input into the unsigned transaction.
func (p *Packet) ExtractMsgTx() (*wire.MsgTx, error) {
	if !p.IsFinalized() {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"packet is not finalized")
	}

	tx, err := p.MsgTx()
	if err != nil {
		return nil, err
	}
	if len(tx.TxIn) != len(p.Inputs) {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"transaction has %d inputs but packet has %d",
			len(tx.TxIn), len(p.Inputs))
	}

	for i, input := range p.Inputs {
		tx.TxIn[i].SignatureScript = input.Get(
			[]byte{InputFinalScriptSig},
		).UnwrapOr(nil)

		raw := input.Get([]byte{InputFinalScriptWitness})
		if raw.IsNone() {
			continue
		}

		witness, err := parseWitness(raw.UnsafeFromSome())
		if err != nil {
			return nil, err
		}
		tx.TxIn[i].Witness = witness
	}

	log.Tracef("Extracted transaction %v: %v", tx.TxHash(),
		build.SpewLogClosure(tx))

	return tx, nil
}

// ExtractTransaction returns the serialized signed transaction, including
// witness data if any input has a witness.
func (p *Packet) ExtractTransaction() ([]byte, error) {
	tx, err := p.ExtractMsgTx()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, goverr.Errorf(goverr.ErrSerialization,
			"unable to serialize transaction: %v", err)
	}

	return buf.Bytes(), nil
}

// Combine merges the entries of other into p. Both packets must describe
// the same unsigned transaction with the same number of inputs and
// outputs. Where both carry a key, the value already in p is kept.
func (p *Packet) Combine(other *Packet) error {
	ours, err := p.UnsignedTx()
	if err != nil {
		return err
	}
	theirs, err := other.UnsignedTx()
	if err != nil {
		return err
	}
	if !bytes.Equal(ours, theirs) {
		return goverr.Errorf(goverr.ErrInvalidInput,
			"packets spend different transactions")
	}

	if len(p.Inputs) != len(other.Inputs) ||
		len(p.Outputs) != len(other.Outputs) {

		return goverr.Errorf(goverr.ErrInvalidInput,
			"packets have different input or output counts")
	}

	merge := func(dst, src Map) {
		for k, v := range src {
			if _, ok := dst[k]; !ok {
				dst[k] = append([]byte{}, v...)
			}
		}
	}

	merge(p.Global, other.Global)
	for i := range p.Inputs {
		merge(p.Inputs[i], other.Inputs[i])
	}
	for i := range p.Outputs {
		merge(p.Outputs[i], other.Outputs[i])
	}

	return nil
}
