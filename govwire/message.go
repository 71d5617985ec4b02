// Package govwire defines the governance messages that maintainers sign and
// their canonical byte encoding.
package govwire

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/lightningnetwork/lnd/tlv"
)

// MessageType is the leading discriminator byte of an encoded message.
type MessageType uint8

// The currently defined message types.
const (
	MsgRelease        MessageType = 0x01
	MsgModuleApproval MessageType = 0x02
	MsgBudgetDecision MessageType = 0x03
)

// String returns a human readable name for the message type.
func (t MessageType) String() string {
	switch t {
	case MsgRelease:
		return "Release"
	case MsgModuleApproval:
		return "ModuleApproval"
	case MsgBudgetDecision:
		return "BudgetDecision"
	default:
		return fmt.Sprintf("<unknown %d>", uint8(t))
	}
}

// Message is a governance decision that can be signed. The bytes returned
// by SigningBytes are the exact bytes handed to the signer: a single type
// byte followed by a TLV stream holding the message fields.
type Message interface {
	// MsgType returns the discriminator of the message.
	MsgType() MessageType

	// Encode writes the TLV body of the message, without the type byte.
	Encode(w io.Writer) error

	// Decode reads the TLV body of the message, without the type byte.
	Decode(r io.Reader) error

	// SigningBytes returns the canonical encoding of the message.
	SigningBytes() []byte

	// Description renders the message for humans. It plays no part in
	// signing.
	Description() string
}

// Record types shared by all messages. Every message carries exactly two
// fields.
const (
	firstFieldType  tlv.Type = 0
	secondFieldType tlv.Type = 2
)

// signingBytes encodes msg into memory. Writes to a bytes.Buffer cannot
// fail, so an error here is a programming bug.
func signingBytes(msg Message) []byte {
	var b bytes.Buffer
	b.WriteByte(byte(msg.MsgType()))
	if err := msg.Encode(&b); err != nil {
		panic(fmt.Sprintf("unable to encode %v into memory: %v",
			msg.MsgType(), err))
	}

	return b.Bytes()
}

// encodeFields writes the given records as a single TLV stream.
func encodeFields(w io.Writer, records ...tlv.Record) error {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// decodeFields reads a TLV stream and asserts that every given record was
// present and that nothing else was.
func decodeFields(r io.Reader, records ...tlv.Record) error {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	parsed, err := stream.DecodeWithParsedTypes(r)
	if err != nil {
		return goverr.Errorf(goverr.ErrMessageFormat,
			"invalid field stream: %v", err)
	}

	for _, record := range records {
		if _, ok := parsed[record.Type()]; !ok {
			return goverr.Errorf(goverr.ErrMessageFormat,
				"missing field %d", record.Type())
		}
	}
	if len(parsed) != len(records) {
		return goverr.Errorf(goverr.ErrMessageFormat,
			"%d unexpected fields", len(parsed)-len(records))
	}

	return nil
}

// decodeString converts a decoded byte field back into a string.
func decodeString(field string, b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", goverr.Errorf(goverr.ErrMessageFormat,
			"%s is not valid UTF-8", field)
	}

	return string(b), nil
}

// makeEmpty returns a new empty message of the given type.
func makeEmpty(msgType MessageType) (Message, error) {
	switch msgType {
	case MsgRelease:
		return &Release{}, nil
	case MsgModuleApproval:
		return &ModuleApproval{}, nil
	case MsgBudgetDecision:
		return &BudgetDecision{}, nil
	default:
		return nil, goverr.Errorf(goverr.ErrMessageFormat,
			"unknown message type %d", uint8(msgType))
	}
}

// Decode parses the output of SigningBytes back into a message. The input
// must be exactly one canonical encoding with no trailing data.
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, goverr.Errorf(goverr.ErrMessageFormat,
			"empty message")
	}

	msg, err := makeEmpty(MessageType(b[0]))
	if err != nil {
		return nil, err
	}

	if err := msg.Decode(bytes.NewReader(b[1:])); err != nil {
		return nil, err
	}

	// Every message has exactly one accepted encoding.
	if !bytes.Equal(msg.SigningBytes(), b) {
		return nil, goverr.Errorf(goverr.ErrMessageFormat,
			"non-canonical encoding")
	}

	return msg, nil
}
