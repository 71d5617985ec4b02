package keychain

import (
	"encoding/hex"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// SignatureLen is the length of a compact r || s signature.
const SignatureLen = 64

// Signature is an ECDSA signature over secp256k1 encoded as the 32-byte
// big-endian r value followed by the 32-byte big-endian s value.
type Signature [SignatureLen]byte

// ParseSignature copies a 64-byte compact signature. Only the length is
// checked here; range checks on r and s happen during verification.
func ParseSignature(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureLen {
		return sig, goverr.Errorf(goverr.ErrInvalidSignatureFormat,
			"signature must be %d bytes, got %d", SignatureLen,
			len(b))
	}
	copy(sig[:], b)

	return sig, nil
}

// SignatureFromHex parses a hex encoded compact signature.
func SignatureFromHex(s string) (Signature, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Signature{}, goverr.Errorf(
			goverr.ErrInvalidSignatureFormat,
			"signature is not valid hex: %v", err,
		)
	}

	return ParseSignature(b)
}

// Bytes returns a copy of the signature bytes.
func (s Signature) Bytes() []byte {
	b := make([]byte, SignatureLen)
	copy(b, s[:])

	return b
}

// String returns the hex encoding of the signature.
func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// CheckFormat returns ErrInvalidSignatureFormat if r or s is zero or not
// below the curve order. Such a signature can never verify.
func (s Signature) CheckFormat() error {
	_, err := s.ecdsa()
	return err
}

// ecdsa converts the compact form into a btcec signature, rejecting r or s
// values that are zero or not below the curve order.
func (s Signature) ecdsa() (*ecdsa.Signature, error) {
	var r, sv btcec.ModNScalar
	if overflow := r.SetByteSlice(s[:32]); overflow || r.IsZero() {
		return nil, goverr.Errorf(goverr.ErrInvalidSignatureFormat,
			"signature r value out of range")
	}
	if overflow := sv.SetByteSlice(s[32:]); overflow || sv.IsZero() {
		return nil, goverr.Errorf(goverr.ErrInvalidSignatureFormat,
			"signature s value out of range")
	}

	return ecdsa.NewSignature(&r, &sv), nil
}

// Digest returns the 32-byte digest that is actually signed for msg. ECDSA
// operates on a fixed size integer, so the message is hashed once with
// SHA-256 and nothing else is applied.
func Digest(msg []byte) []byte {
	return chainhash.HashB(msg)
}

// Sign produces a deterministic (RFC6979) low-S signature over msg.
func Sign(priv *btcec.PrivateKey, msg []byte) (Signature, error) {
	var sig Signature
	if priv == nil || priv.Key.IsZero() {
		return sig, goverr.Errorf(goverr.ErrInvalidKey,
			"secret key is missing or zero")
	}

	// The compact form carries a leading recovery byte followed by the
	// same r || s layout used here.
	compact := ecdsa.SignCompact(priv, Digest(msg), true)
	copy(sig[:], compact[1:])

	return sig, nil
}

// Verify reports whether sig is a valid signature of msg under pub. A
// well-formed signature that does not match returns false with a nil error;
// an error is only returned when the signature or key encoding is invalid.
func Verify(sig Signature, msg []byte, pub PublicKey) (bool, error) {
	ecSig, err := sig.ecdsa()
	if err != nil {
		return false, err
	}

	key, err := pub.ECPubKey()
	if err != nil {
		return false, err
	}

	return ecSig.Verify(Digest(msg), key), nil
}
