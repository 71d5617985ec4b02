// Package artifact binds release artifacts, such as binaries, verification
// bundles and checksum files, to a signable attestation over their SHA-256
// digest.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/lightningnetwork/lnd/tlv"
)

// Prefix is the first byte of every encoded attestation. It lies outside
// the range used by governance message types, so an attestation can never
// be mistaken for one of them.
const Prefix byte = 0x80

// DigestSize is the length of an artifact digest.
const DigestSize = sha256.Size

// Kind names what was hashed.
type Kind uint8

const (
	// KindBinary is a single executable.
	KindBinary Kind = 1

	// KindBundle is a verification bundle archive.
	KindBundle Kind = 2

	// KindChecksums is a SHA256SUMS style checksum file.
	KindChecksums Kind = 3
)

// String returns the name used on the command line.
func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindBundle:
		return "bundle"
	case KindChecksums:
		return "checksums"
	default:
		return fmt.Sprintf("<unknown kind %d>", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindBinary, KindBundle, KindChecksums} {
		if k.String() == s {
			return k, nil
		}
	}

	return 0, goverr.Errorf(goverr.ErrInvalidInput,
		"unknown artifact kind %q", s)
}

// The accepted binary types.
const (
	BinaryConsensus   = "consensus"
	BinaryProtocol    = "protocol"
	BinaryApplication = "application"
)

// Attestation states that an artifact with the given digest was approved.
// Which optional fields may be set depends on the kind: binaries carry a
// type, version and commit, bundles the digests of their inputs and
// checksum files a version.
type Attestation struct {
	Kind   Kind
	Digest [DigestSize]byte

	BinaryType string
	Version    string
	Commit     string

	SourceHash      string
	BuildConfigHash string
	SpecHash        string
}

const (
	kindType            tlv.Type = 0
	digestType          tlv.Type = 2
	binaryTypeType      tlv.Type = 4
	versionType         tlv.Type = 6
	commitType          tlv.Type = 8
	sourceHashType      tlv.Type = 10
	buildConfigHashType tlv.Type = 12
	specHashType        tlv.Type = 14
)

// Digest returns the SHA-256 digest of everything read from r.
func Digest(r io.Reader) ([DigestSize]byte, error) {
	var digest [DigestSize]byte

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return digest, err
	}
	copy(digest[:], h.Sum(nil))

	return digest, nil
}

// DigestFile returns the SHA-256 digest of the file at path.
func DigestFile(path string) ([DigestSize]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [DigestSize]byte{}, err
	}
	defer f.Close()

	return Digest(f)
}

// New creates an attestation of the given kind for the file at path. The
// optional fields are left for the caller to fill in.
func New(kind Kind, path string) (*Attestation, error) {
	digest, err := DigestFile(path)
	if err != nil {
		return nil, err
	}

	log.Debugf("Digest of %v %v is %x", kind, path, digest)

	return &Attestation{
		Kind:   kind,
		Digest: digest,
	}, nil
}

// DigestHex returns the hex encoding of the digest.
func (a *Attestation) DigestHex() string {
	return hex.EncodeToString(a.Digest[:])
}

// checkHexDigest accepts an empty string or 64 hex characters.
func checkHexDigest(name, s string) error {
	if s == "" {
		return nil
	}

	b, err := hex.DecodeString(s)
	if err != nil || len(b) != DigestSize {
		return goverr.Errorf(goverr.ErrInvalidInput,
			"%s must be %d hex characters", name, 2*DigestSize)
	}

	return nil
}

// Validate checks that only the fields of the attestation's kind are set
// and that they are well formed.
func (a *Attestation) Validate() error {
	for name, s := range a.fields() {
		if !utf8.ValidString(s) {
			return goverr.Errorf(goverr.ErrInvalidInput,
				"%s is not valid UTF-8", name)
		}
	}

	bundleFields := a.SourceHash != "" || a.BuildConfigHash != "" ||
		a.SpecHash != ""

	switch a.Kind {
	case KindBinary:
		switch a.BinaryType {
		case BinaryConsensus, BinaryProtocol, BinaryApplication:
		default:
			return goverr.Errorf(goverr.ErrInvalidInput,
				"binary type must be one of %s, got %q",
				strings.Join([]string{BinaryConsensus,
					BinaryProtocol, BinaryApplication},
					", "), a.BinaryType)
		}
		if bundleFields {
			return goverr.Errorf(goverr.ErrInvalidInput,
				"a binary carries no bundle digests")
		}

	case KindBundle:
		if a.BinaryType != "" || a.Version != "" || a.Commit != "" {
			return goverr.Errorf(goverr.ErrInvalidInput,
				"a bundle carries no binary type, version or "+
					"commit")
		}
		for name, s := range map[string]string{
			"source hash":       a.SourceHash,
			"build config hash": a.BuildConfigHash,
			"spec hash":         a.SpecHash,
		} {
			if err := checkHexDigest(name, s); err != nil {
				return err
			}
		}

	case KindChecksums:
		if a.BinaryType != "" || a.Commit != "" || bundleFields {
			return goverr.Errorf(goverr.ErrInvalidInput,
				"a checksum file carries only a version")
		}

	default:
		return goverr.Errorf(goverr.ErrInvalidInput,
			"unknown artifact kind %d", uint8(a.Kind))
	}

	return nil
}

// fields maps the optional string fields to their names.
func (a *Attestation) fields() map[string]string {
	return map[string]string{
		"binary type":       a.BinaryType,
		"version":           a.Version,
		"commit":            a.Commit,
		"source hash":       a.SourceHash,
		"build config hash": a.BuildConfigHash,
		"spec hash":         a.SpecHash,
	}
}

// optionalRecords returns a record for every optional field, reading from
// and writing to the given byte slices.
func optionalRecords(binaryType, version, commit, sourceHash,
	buildConfigHash, specHash *[]byte) []tlv.Record {

	return []tlv.Record{
		tlv.MakePrimitiveRecord(binaryTypeType, binaryType),
		tlv.MakePrimitiveRecord(versionType, version),
		tlv.MakePrimitiveRecord(commitType, commit),
		tlv.MakePrimitiveRecord(sourceHashType, sourceHash),
		tlv.MakePrimitiveRecord(buildConfigHashType, buildConfigHash),
		tlv.MakePrimitiveRecord(specHashType, specHash),
	}
}

// SigningBytes returns the canonical encoding of the attestation: Prefix
// followed by a TLV stream in which empty optional fields are omitted.
func (a *Attestation) SigningBytes() ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	kind := uint8(a.Kind)
	digest := a.Digest
	records := []tlv.Record{
		tlv.MakePrimitiveRecord(kindType, &kind),
		tlv.MakePrimitiveRecord(digestType, &digest),
	}

	values := [][]byte{
		[]byte(a.BinaryType), []byte(a.Version), []byte(a.Commit),
		[]byte(a.SourceHash), []byte(a.BuildConfigHash),
		[]byte(a.SpecHash),
	}
	optional := optionalRecords(
		&values[0], &values[1], &values[2], &values[3], &values[4],
		&values[5],
	)
	for i, record := range optional {
		if len(values[i]) != 0 {
			records = append(records, record)
		}
	}

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteByte(Prefix)
	if err := stream.Encode(&b); err != nil {
		return nil, goverr.Errorf(goverr.ErrSerialization,
			"unable to encode attestation: %v", err)
	}

	return b.Bytes(), nil
}

// Description renders the attestation for humans.
func (a *Attestation) Description() string {
	var extra []string
	for _, field := range []struct {
		name, value string
	}{
		{"type", a.BinaryType},
		{"version", a.Version},
		{"commit", a.Commit},
		{"source", a.SourceHash},
		{"build config", a.BuildConfigHash},
		{"spec", a.SpecHash},
	} {
		if field.value != "" {
			extra = append(extra, field.name+" "+field.value)
		}
	}

	desc := fmt.Sprintf("%v %s", a.Kind, a.DigestHex())
	if len(extra) > 0 {
		desc += " (" + strings.Join(extra, ", ") + ")"
	}

	return desc
}

// Decode parses the output of SigningBytes. Only the canonical encoding of
// a valid attestation is accepted.
func Decode(b []byte) (*Attestation, error) {
	if len(b) == 0 || b[0] != Prefix {
		return nil, goverr.Errorf(goverr.ErrMessageFormat,
			"missing attestation prefix")
	}

	var (
		kind   uint8
		digest [DigestSize]byte
		values = make([][]byte, 6)
	)
	records := append([]tlv.Record{
		tlv.MakePrimitiveRecord(kindType, &kind),
		tlv.MakePrimitiveRecord(digestType, &digest),
	}, optionalRecords(
		&values[0], &values[1], &values[2], &values[3], &values[4],
		&values[5],
	)...)

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	parsed, err := stream.DecodeWithParsedTypes(bytes.NewReader(b[1:]))
	if err != nil {
		return nil, goverr.Errorf(goverr.ErrMessageFormat,
			"invalid attestation stream: %v", err)
	}
	for _, required := range []tlv.Type{kindType, digestType} {
		if _, ok := parsed[required]; !ok {
			return nil, goverr.Errorf(goverr.ErrMessageFormat,
				"missing field %d", required)
		}
	}

	known := make(map[tlv.Type]struct{}, len(records))
	for _, record := range records {
		known[record.Type()] = struct{}{}
	}
	for typ := range parsed {
		if _, ok := known[typ]; !ok {
			return nil, goverr.Errorf(goverr.ErrMessageFormat,
				"unexpected field %d", typ)
		}
	}

	a := &Attestation{
		Kind:            Kind(kind),
		Digest:          digest,
		BinaryType:      string(values[0]),
		Version:         string(values[1]),
		Commit:          string(values[2]),
		SourceHash:      string(values[3]),
		BuildConfigHash: string(values[4]),
		SpecHash:        string(values[5]),
	}

	encoded, err := a.SigningBytes()
	if err != nil {
		return nil, goverr.Errorf(goverr.ErrMessageFormat,
			"invalid attestation: %v", err)
	}
	if !bytes.Equal(encoded, b) {
		return nil, goverr.Errorf(goverr.ErrMessageFormat,
			"non-canonical encoding")
	}

	return a, nil
}
