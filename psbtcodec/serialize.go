package psbtcodec

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/bitcoincommons/govkit/build"
	"github.com/bitcoincommons/govkit/goverr"
)

var (
	// ErrInvalidMagic is returned when data does not start with the
	// packet magic and separator.
	ErrInvalidMagic = fmt.Errorf("%w: invalid packet magic",
		goverr.ErrInvalidInput)

	// ErrTruncated is returned when a length field or the data it
	// announces runs past the end of the input.
	ErrTruncated = fmt.Errorf("%w: truncated packet",
		goverr.ErrInvalidInput)
)

// writeMap writes the entries of m in ascending key order followed by the
// zero length terminator.
func writeMap(w io.Writer, m Map) error {
	for _, key := range m.Keys() {
		if err := writeVarBytes(w, key); err != nil {
			return err
		}
		if err := writeVarBytes(w, m[string(key)]); err != nil {
			return err
		}
	}

	_, err := w.Write([]byte{0x00})
	return err
}

func writeVarBytes(w io.Writer, b []byte) error {
	if err := WriteCompactSize(w, uint64(len(b))); err != nil {
		return err
	}

	_, err := w.Write(b)
	return err
}

// Serialize writes the packet as the magic and separator, the global map,
// a separator, the input maps, a separator and the output maps.
func (p *Packet) Serialize(w io.Writer) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{Separator}); err != nil {
		return err
	}

	if err := writeMap(w, p.Global); err != nil {
		return err
	}
	if _, err := w.Write([]byte{Separator}); err != nil {
		return err
	}

	for _, input := range p.Inputs {
		if err := writeMap(w, input); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte{Separator}); err != nil {
		return err
	}

	for _, output := range p.Outputs {
		if err := writeMap(w, output); err != nil {
			return err
		}
	}

	return nil
}

// Bytes returns the serialized packet.
func (p *Packet) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		return nil, goverr.Errorf(goverr.ErrSerialization,
			"unable to serialize packet: %v", err)
	}

	return buf.Bytes(), nil
}

// B64Encode returns the base64 encoding of the serialized packet.
func (p *Packet) B64Encode() (string, error) {
	b, err := p.Bytes()
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

// readVarBytes reads a compact size length and that many bytes. The length
// is checked against the bytes left so a corrupt length can not trigger a
// huge allocation.
func readVarBytes(r *bytes.Reader) ([]byte, error) {
	n, err := ReadCompactSize(r)
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, ErrTruncated
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, ErrTruncated
	}

	return b, nil
}

// readMap reads entries up to and including the zero length terminator.
func readMap(r *bytes.Reader) (Map, error) {
	m := NewMap()
	for {
		key, err := readVarBytes(r)
		if err != nil {
			return nil, err
		}
		if len(key) == 0 {
			return m, nil
		}

		value, err := readVarBytes(r)
		if err != nil {
			return nil, err
		}

		if m.Has(key) {
			return nil, goverr.Errorf(goverr.ErrInvalidInput,
				"duplicate key %x", key)
		}
		m[string(key)] = value
	}
}

// expectSeparator consumes a single section separator.
func expectSeparator(r *bytes.Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return ErrTruncated
	}
	if b != Separator {
		return goverr.Errorf(goverr.ErrInvalidInput,
			"expected section separator, got 0x%02x", b)
	}

	return nil
}

// readMagic checks the magic and separator at the start of r.
func readMagic(r *bytes.Reader) error {
	var magic [5]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return ErrInvalidMagic
	}
	if !bytes.Equal(magic[:4], Magic[:]) || magic[4] != Separator {
		return ErrInvalidMagic
	}

	return nil
}

// Deserialize parses the layout written by Serialize.
func Deserialize(data []byte) (*Packet, error) {
	r := bytes.NewReader(data)
	if err := readMagic(r); err != nil {
		return nil, err
	}

	global, err := readMap(r)
	if err != nil {
		return nil, fmt.Errorf("global map: %w", err)
	}
	if err := expectSeparator(r); err != nil {
		return nil, fmt.Errorf("global map: %w", err)
	}

	p := &Packet{
		Global: global,
	}

	// A map never starts with the separator byte, since that would
	// announce a key longer than any input, so it marks the end of the
	// inputs.
	for {
		next, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", len(p.Inputs),
				ErrTruncated)
		}
		if next == Separator {
			break
		}
		_ = r.UnreadByte()

		input, err := readMap(r)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", len(p.Inputs),
				err)
		}
		p.Inputs = append(p.Inputs, input)
	}

	for r.Len() > 0 {
		output, err := readMap(r)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", len(p.Outputs),
				err)
		}
		p.Outputs = append(p.Outputs, output)
	}

	log.Tracef("Decoded packet with %d inputs and %d outputs: %v",
		len(p.Inputs), len(p.Outputs), build.SpewLogClosure(p))

	return p, nil
}

// NewFromRawBytes reads a whole packet from r, which holds either the raw
// bytes or, if b64 is set, their base64 encoding.
func NewFromRawBytes(r io.Reader, b64 bool) (*Packet, error) {
	if b64 {
		r = base64.NewDecoder(base64.StdEncoding, bufio.NewReader(r))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"unable to read packet: %v", err)
	}

	return Deserialize(data)
}
