package govwire

import (
	"fmt"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// BudgetDecision allocates an amount in satoshis to a stated purpose.
type BudgetDecision struct {
	Amount  uint64
	Purpose string
}

// A compile time check to ensure BudgetDecision implements the Message
// interface.
var _ Message = (*BudgetDecision)(nil)

// MsgType returns MsgBudgetDecision.
func (b *BudgetDecision) MsgType() MessageType {
	return MsgBudgetDecision
}

// Encode writes the amount as a fixed 8-byte big-endian integer followed by
// the purpose.
func (b *BudgetDecision) Encode(w io.Writer) error {
	amount := b.Amount
	purpose := []byte(b.Purpose)

	return encodeFields(w,
		tlv.MakePrimitiveRecord(firstFieldType, &amount),
		tlv.MakePrimitiveRecord(secondFieldType, &purpose),
	)
}

// Decode reads the amount and purpose fields.
func (b *BudgetDecision) Decode(r io.Reader) error {
	var (
		amount  uint64
		purpose []byte
	)

	err := decodeFields(r,
		tlv.MakePrimitiveRecord(firstFieldType, &amount),
		tlv.MakePrimitiveRecord(secondFieldType, &purpose),
	)
	if err != nil {
		return err
	}

	b.Amount = amount
	b.Purpose, err = decodeString("purpose", purpose)

	return err
}

// SigningBytes returns the canonical encoding of the decision.
func (b *BudgetDecision) SigningBytes() []byte {
	return signingBytes(b)
}

// Description renders the decision for humans.
func (b *BudgetDecision) Description() string {
	return fmt.Sprintf("Budget decision: %d sats for %s", b.Amount,
		b.Purpose)
}
