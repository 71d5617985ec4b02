package keychain

import (
	"encoding/hex"
	"fmt"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	// SecretKeyLen is the length of a serialized secret scalar.
	SecretKeyLen = 32

	// PublicKeyLen is the length of a compressed SEC1 public key.
	PublicKeyLen = btcec.PubKeyBytesLenCompressed
)

// PublicKey is a compressed secp256k1 public key. It is a comparable value
// type so two keys can be checked for equality with ==.
type PublicKey [PublicKeyLen]byte

// ParsePublicKey parses a compressed or uncompressed SEC1 public key and
// returns it in compressed form.
func ParsePublicKey(b []byte) (PublicKey, error) {
	var pub PublicKey

	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return pub, goverr.Errorf(goverr.ErrInvalidKey,
			"unable to parse public key: %v", err)
	}
	copy(pub[:], key.SerializeCompressed())

	return pub, nil
}

// PublicKeyFromHex parses a hex encoded public key.
func PublicKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, goverr.Errorf(goverr.ErrInvalidKey,
			"public key is not valid hex: %v", err)
	}

	return ParsePublicKey(b)
}

// NewPublicKey converts a btcec public key into its compressed form.
func NewPublicKey(key *btcec.PublicKey) PublicKey {
	var pub PublicKey
	copy(pub[:], key.SerializeCompressed())

	return pub
}

// ECPubKey returns the key as a point on the curve.
func (p PublicKey) ECPubKey() (*btcec.PublicKey, error) {
	key, err := btcec.ParsePubKey(p[:])
	if err != nil {
		return nil, goverr.Errorf(goverr.ErrInvalidKey,
			"public key is not on the curve: %v", err)
	}

	return key, nil
}

// Bytes returns a copy of the compressed key bytes.
func (p PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeyLen)
	copy(b, p[:])

	return b
}

// String returns the hex encoding of the compressed key.
func (p PublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// Keypair is a secp256k1 secret scalar together with its public point. The
// secret never appears in the output of String, GoString or the fmt verbs;
// it is only returned by SecretKeyBytes.
type Keypair struct {
	priv *btcec.PrivateKey
	pub  PublicKey
}

// GenerateKeypair creates a new keypair from the system's secure random
// source.
func GenerateKeypair() (*Keypair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, goverr.Errorf(goverr.ErrInvalidKey,
			"unable to generate key: %v", err)
	}

	log.Debugf("Generated keypair with public key %v",
		NewPublicKey(priv.PubKey()))

	return newKeypair(priv), nil
}

// KeypairFromSecret imports a 32-byte big-endian secret scalar. The scalar
// must be in the range [1, N-1] where N is the order of the curve.
func KeypairFromSecret(secret []byte) (*Keypair, error) {
	if len(secret) != SecretKeyLen {
		return nil, goverr.Errorf(goverr.ErrInvalidKey,
			"secret key must be %d bytes, got %d", SecretKeyLen,
			len(secret))
	}

	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(secret); overflow {
		return nil, goverr.Errorf(goverr.ErrInvalidKey,
			"secret key is not less than the curve order")
	}
	if scalar.IsZero() {
		return nil, goverr.Errorf(goverr.ErrInvalidKey,
			"secret key is zero")
	}

	return newKeypair(btcec.PrivKeyFromScalar(&scalar)), nil
}

// KeypairFromHex imports a hex encoded secret scalar.
func KeypairFromHex(s string) (*Keypair, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, goverr.Errorf(goverr.ErrInvalidKey,
			"secret key is not valid hex: %v", err)
	}

	return KeypairFromSecret(b)
}

func newKeypair(priv *btcec.PrivateKey) *Keypair {
	return &Keypair{
		priv: priv,
		pub:  NewPublicKey(priv.PubKey()),
	}
}

// PublicKey returns the compressed public key.
func (k *Keypair) PublicKey() PublicKey {
	return k.pub
}

// PrivKey returns the underlying btcec private key.
func (k *Keypair) PrivKey() *btcec.PrivateKey {
	return k.priv
}

// SecretKeyBytes returns the 32-byte secret scalar. Callers own the
// returned slice and are responsible for not persisting it in plaintext
// unless that was explicitly requested.
func (k *Keypair) SecretKeyBytes() []byte {
	return k.priv.Serialize()
}

// Sign signs msg with the keypair's secret key.
func (k *Keypair) Sign(msg []byte) (Signature, error) {
	return Sign(k.priv, msg)
}

// String renders the public half of the keypair only.
func (k *Keypair) String() string {
	return fmt.Sprintf("Keypair(%v)", k.pub)
}

// GoString renders the public half of the keypair only so that %#v does
// not dump the secret scalar.
func (k *Keypair) GoString() string {
	return k.String()
}
