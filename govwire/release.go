package govwire

import (
	"fmt"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// Release approves a software release identified by its version string and
// the commit it was built from.
type Release struct {
	Version    string
	CommitHash string
}

// A compile time check to ensure Release implements the Message interface.
var _ Message = (*Release)(nil)

// MsgType returns MsgRelease.
func (r *Release) MsgType() MessageType {
	return MsgRelease
}

// Encode writes the version and commit hash fields.
func (r *Release) Encode(w io.Writer) error {
	version := []byte(r.Version)
	commit := []byte(r.CommitHash)

	return encodeFields(w,
		tlv.MakePrimitiveRecord(firstFieldType, &version),
		tlv.MakePrimitiveRecord(secondFieldType, &commit),
	)
}

// Decode reads the version and commit hash fields.
func (r *Release) Decode(rd io.Reader) error {
	var version, commit []byte

	err := decodeFields(rd,
		tlv.MakePrimitiveRecord(firstFieldType, &version),
		tlv.MakePrimitiveRecord(secondFieldType, &commit),
	)
	if err != nil {
		return err
	}

	if r.Version, err = decodeString("version", version); err != nil {
		return err
	}
	r.CommitHash, err = decodeString("commit hash", commit)

	return err
}

// SigningBytes returns the canonical encoding of the release.
func (r *Release) SigningBytes() []byte {
	return signingBytes(r)
}

// Description renders the release for humans.
func (r *Release) Description() string {
	return fmt.Sprintf("Release %s (commit %s)", r.Version, r.CommitHash)
}
