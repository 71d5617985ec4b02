package psbtcodec

import (
	"bytes"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/btcsuite/btcd/btcutil/psbt"
)

// ToStandard converts the packet into btcutil's psbt representation, which
// validates every known field and can be handed to other BIP 174 tools.
// The standard encoding has no separators between sections, so the
// unsigned transaction must parse and the packet must not have more input
// or output maps than the transaction has inputs or outputs.
func (p *Packet) ToStandard() (*psbt.Packet, error) {
	tx, err := p.MsgTx()
	if err != nil {
		return nil, err
	}
	if len(p.Inputs) > len(tx.TxIn) || len(p.Outputs) > len(tx.TxOut) {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"packet has %d/%d input/output maps for a transaction "+
				"with %d/%d", len(p.Inputs), len(p.Outputs),
			len(tx.TxIn), len(tx.TxOut))
	}

	mapAt := func(maps []Map, i int) Map {
		if i < len(maps) {
			return maps[i]
		}
		return NewMap()
	}

	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(Separator)
	if err := writeMap(&buf, p.Global); err != nil {
		return nil, err
	}
	for i := range tx.TxIn {
		if err := writeMap(&buf, mapAt(p.Inputs, i)); err != nil {
			return nil, err
		}
	}
	for i := range tx.TxOut {
		if err := writeMap(&buf, mapAt(p.Outputs, i)); err != nil {
			return nil, err
		}
	}

	packet, err := psbt.NewFromRawBytes(&buf, false)
	if err != nil {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"packet is not valid BIP 174: %v", err)
	}

	return packet, nil
}

// FromStandard converts a btcutil psbt packet into a Packet.
func FromStandard(packet *psbt.Packet) (*Packet, error) {
	var buf bytes.Buffer
	if err := packet.Serialize(&buf); err != nil {
		return nil, goverr.Errorf(goverr.ErrSerialization,
			"unable to serialize packet: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	if err := readMagic(r); err != nil {
		return nil, err
	}

	global, err := readMap(r)
	if err != nil {
		return nil, err
	}

	p := &Packet{
		Global:  global,
		Inputs:  make([]Map, len(packet.UnsignedTx.TxIn)),
		Outputs: make([]Map, len(packet.UnsignedTx.TxOut)),
	}
	for i := range p.Inputs {
		if p.Inputs[i], err = readMap(r); err != nil {
			return nil, err
		}
	}
	for i := range p.Outputs {
		if p.Outputs[i], err = readMap(r); err != nil {
			return nil, err
		}
	}

	if r.Len() != 0 {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"%d trailing bytes after packet", r.Len())
	}

	return p, nil
}
