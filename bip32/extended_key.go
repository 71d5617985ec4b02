// Package bip32 implements hierarchical deterministic key derivation as
// described in BIP 32.
//
// Extended keys are plain values. Deriving a child never modifies the
// parent and the child shares no memory with it.
package bip32

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// HardenedKeyStart is the index of the first hardened child key.
	HardenedKeyStart uint32 = 0x80000000

	// MinSeedBytes is the minimum number of bytes allowed for a seed.
	MinSeedBytes = 16

	// MaxSeedBytes is the maximum number of bytes allowed for a seed.
	MaxSeedBytes = 64
)

// masterKey is the HMAC key used to derive the master node from a seed.
var masterKey = []byte("Bitcoin seed")

// Hardened returns the hardened form of index.
func Hardened(index uint32) uint32 {
	return index | HardenedKeyStart
}

// IsHardened reports whether index selects a hardened child.
func IsHardened(index uint32) bool {
	return index >= HardenedKeyStart
}

// ExtendedPrivateKey is a node of the key tree that holds a secret scalar.
type ExtendedPrivateKey struct {
	// Depth is the number of derivation steps from the master node.
	Depth uint8

	// ParentFingerprint is the first four bytes of HASH160 of the
	// parent's compressed public key. It is all zero for the master.
	ParentFingerprint [4]byte

	// ChildNumber is the index this key was derived at.
	ChildNumber uint32

	// ChainCode is the extra entropy needed to derive children.
	ChainCode [32]byte

	secret [32]byte
}

// ExtendedPublicKey is the public half of a node of the key tree.
type ExtendedPublicKey struct {
	Depth             uint8
	ParentFingerprint [4]byte
	ChildNumber       uint32
	ChainCode         [32]byte
	PublicKey         keychain.PublicKey
}

// NewMaster derives the master node from seed.
func NewMaster(seed []byte) (ExtendedPrivateKey, error) {
	var master ExtendedPrivateKey

	if len(seed) < MinSeedBytes || len(seed) > MaxSeedBytes {
		return master, goverr.Errorf(goverr.ErrInvalidInput,
			"seed must be between %d and %d bytes, got %d",
			MinSeedBytes, MaxSeedBytes, len(seed))
	}

	il, ir := calcI(masterKey, seed)

	var k btcec.ModNScalar
	if overflow := k.SetByteSlice(il); overflow || k.IsZero() {
		return master, goverr.Errorf(goverr.ErrInvalidKey,
			"seed produces an unusable master key")
	}

	master.secret = k.Bytes()
	copy(master.ChainCode[:], ir)

	log.Tracef("Derived master key from %d byte seed", len(seed))

	return master, nil
}

// calcI computes HMAC-SHA512 of data keyed by key and splits it into its
// left and right halves.
func calcI(key, data []byte) ([]byte, []byte) {
	mac := hmac.New(sha512.New, key)
	_, _ = mac.Write(data)
	i := mac.Sum(nil)

	return i[:32], i[32:]
}

// childData returns the HMAC input for a non-hardened child of pub.
func childData(pub []byte, index uint32) []byte {
	data := make([]byte, 0, 37)
	data = append(data, pub...)

	return binary.BigEndian.AppendUint32(data, index)
}

// fingerprint returns the first four bytes of HASH160(pub).
func fingerprint(pub []byte) [4]byte {
	var fp [4]byte
	copy(fp[:], btcutil.Hash160(pub)[:4])

	return fp
}

// scalar returns the secret as a scalar, rejecting values that can not be
// a private key.
func (k ExtendedPrivateKey) scalar() (btcec.ModNScalar, error) {
	var s btcec.ModNScalar
	overflow := s.SetBytes(&k.secret)
	if overflow != 0 || s.IsZero() {
		return s, goverr.Errorf(goverr.ErrInvalidKey,
			"extended key holds an invalid secret")
	}

	return s, nil
}

// SecretKey returns the 32-byte secret scalar.
func (k ExtendedPrivateKey) SecretKey() [32]byte {
	return k.secret
}

// Keypair returns the signing keypair of this node.
func (k ExtendedPrivateKey) Keypair() (*keychain.Keypair, error) {
	return keychain.KeypairFromSecret(k.secret[:])
}

// Public returns the extended public key of this node.
func (k ExtendedPrivateKey) Public() (ExtendedPublicKey, error) {
	s, err := k.scalar()
	if err != nil {
		return ExtendedPublicKey{}, err
	}

	return ExtendedPublicKey{
		Depth:             k.Depth,
		ParentFingerprint: k.ParentFingerprint,
		ChildNumber:       k.ChildNumber,
		ChainCode:         k.ChainCode,
		PublicKey: keychain.NewPublicKey(
			btcec.PrivKeyFromScalar(&s).PubKey(),
		),
	}, nil
}

// Fingerprint returns the identifier that children of this node carry as
// their parent fingerprint.
func (k ExtendedPrivateKey) Fingerprint() ([4]byte, error) {
	pub, err := k.Public()
	if err != nil {
		return [4]byte{}, err
	}

	return pub.Fingerprint(), nil
}

// String renders the public metadata of the key only.
func (k ExtendedPrivateKey) String() string {
	return fmt.Sprintf("ExtendedPrivateKey(depth=%d, child=%d, "+
		"parent=%x)", k.Depth, k.ChildNumber, k.ParentFingerprint)
}

// GoString keeps %#v from printing the secret.
func (k ExtendedPrivateKey) GoString() string {
	return k.String()
}

// Fingerprint returns the identifier that children of this node carry as
// their parent fingerprint.
func (k ExtendedPublicKey) Fingerprint() [4]byte {
	return fingerprint(k.PublicKey[:])
}

// DeriveChildPrivate derives the child of parent at index. Indices at or
// above HardenedKeyStart produce hardened children.
//
// If the derived scalar is out of range or zero the error wraps
// ErrInvalidKey; BIP 32 has the caller move on to the next index in that
// case.
func DeriveChildPrivate(parent ExtendedPrivateKey,
	index uint32) (ExtendedPrivateKey, error) {

	var child ExtendedPrivateKey

	if parent.Depth == math.MaxUint8 {
		return child, goverr.Errorf(goverr.ErrInvalidInput,
			"cannot derive beyond depth %d", math.MaxUint8)
	}

	k, err := parent.scalar()
	if err != nil {
		return child, err
	}
	parentPub := btcec.PrivKeyFromScalar(&k).PubKey().SerializeCompressed()

	var data []byte
	if IsHardened(index) {
		data = make([]byte, 0, 37)
		data = append(data, 0x00)
		data = append(data, parent.secret[:]...)
		data = binary.BigEndian.AppendUint32(data, index)
	} else {
		data = childData(parentPub, index)
	}

	il, ir := calcI(parent.ChainCode[:], data)

	var tweak btcec.ModNScalar
	if overflow := tweak.SetByteSlice(il); overflow {
		return child, goverr.Errorf(goverr.ErrInvalidKey,
			"child %d of this key is invalid", index)
	}

	tweak.Add(&k)
	if tweak.IsZero() {
		return child, goverr.Errorf(goverr.ErrInvalidKey,
			"child %d of this key is invalid", index)
	}

	child.Depth = parent.Depth + 1
	child.ParentFingerprint = fingerprint(parentPub)
	child.ChildNumber = index
	copy(child.ChainCode[:], ir)
	child.secret = tweak.Bytes()

	return child, nil
}

// DeriveChildPublic derives the public child of parent at index. Hardened
// children need the parent's secret and fail with ErrInvalidInput.
func DeriveChildPublic(parent ExtendedPublicKey,
	index uint32) (ExtendedPublicKey, error) {

	var child ExtendedPublicKey

	if IsHardened(index) {
		return child, goverr.Errorf(goverr.ErrInvalidInput,
			"cannot derive hardened child %d from a public key",
			index)
	}
	if parent.Depth == math.MaxUint8 {
		return child, goverr.Errorf(goverr.ErrInvalidInput,
			"cannot derive beyond depth %d", math.MaxUint8)
	}

	parentKey, err := parent.PublicKey.ECPubKey()
	if err != nil {
		return child, err
	}

	il, ir := calcI(parent.ChainCode[:], childData(
		parent.PublicKey[:], index,
	))

	var tweak btcec.ModNScalar
	if overflow := tweak.SetByteSlice(il); overflow {
		return child, goverr.Errorf(goverr.ErrInvalidKey,
			"child %d of this key is invalid", index)
	}

	// child = tweak*G + parent
	var tweakPoint, parentPoint, sum secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&tweak, &tweakPoint)
	parentKey.AsJacobian(&parentPoint)
	secp256k1.AddNonConst(&tweakPoint, &parentPoint, &sum)

	if sum.Z.IsZero() {
		return child, goverr.Errorf(goverr.ErrInvalidKey,
			"child %d of this key is the point at infinity", index)
	}
	sum.ToAffine()

	child.Depth = parent.Depth + 1
	child.ParentFingerprint = parent.Fingerprint()
	child.ChildNumber = index
	copy(child.ChainCode[:], ir)
	child.PublicKey = keychain.NewPublicKey(
		secp256k1.NewPublicKey(&sum.X, &sum.Y),
	)

	return child, nil
}

// DerivePath walks path from k, one DeriveChildPrivate step per index.
func (k ExtendedPrivateKey) DerivePath(path []uint32) (ExtendedPrivateKey,
	error) {

	key := k
	for i, index := range path {
		var err error
		key, err = DeriveChildPrivate(key, index)
		if err != nil {
			return ExtendedPrivateKey{}, fmt.Errorf("unable to "+
				"derive level %d: %w", i, err)
		}
	}

	return key, nil
}

// DerivePath walks path from k, one DeriveChildPublic step per index.
func (k ExtendedPublicKey) DerivePath(path []uint32) (ExtendedPublicKey,
	error) {

	key := k
	for i, index := range path {
		var err error
		key, err = DeriveChildPublic(key, index)
		if err != nil {
			return ExtendedPublicKey{}, fmt.Errorf("unable to "+
				"derive level %d: %w", i, err)
		}
	}

	return key, nil
}
