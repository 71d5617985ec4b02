package govwire

import (
	"fmt"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// ModuleApproval admits a named module at a specific version.
type ModuleApproval struct {
	ModuleName string
	Version    string
}

// A compile time check to ensure ModuleApproval implements the Message
// interface.
var _ Message = (*ModuleApproval)(nil)

// MsgType returns MsgModuleApproval.
func (m *ModuleApproval) MsgType() MessageType {
	return MsgModuleApproval
}

// Encode writes the module name and version fields.
func (m *ModuleApproval) Encode(w io.Writer) error {
	name := []byte(m.ModuleName)
	version := []byte(m.Version)

	return encodeFields(w,
		tlv.MakePrimitiveRecord(firstFieldType, &name),
		tlv.MakePrimitiveRecord(secondFieldType, &version),
	)
}

// Decode reads the module name and version fields.
func (m *ModuleApproval) Decode(r io.Reader) error {
	var name, version []byte

	err := decodeFields(r,
		tlv.MakePrimitiveRecord(firstFieldType, &name),
		tlv.MakePrimitiveRecord(secondFieldType, &version),
	)
	if err != nil {
		return err
	}

	if m.ModuleName, err = decodeString("module name", name); err != nil {
		return err
	}
	m.Version, err = decodeString("version", version)

	return err
}

// SigningBytes returns the canonical encoding of the approval.
func (m *ModuleApproval) SigningBytes() []byte {
	return signingBytes(m)
}

// Description renders the approval for humans.
func (m *ModuleApproval) Description() string {
	return fmt.Sprintf("Module approval: %s %s", m.ModuleName, m.Version)
}
