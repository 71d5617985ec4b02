// Package keyfile reads and writes the JSON records that carry governance
// keys and detached signatures between tools.
package keyfile

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// filePerms is used for every file written, since key files hold
	// secrets.
	filePerms = 0600

	dirPerms = 0700
)

// KeyFile is a keypair as stored on disk. The secret is held either in
// the clear in SecretKey or sealed in EncryptedSecret, never both. A file
// with neither only identifies a public key.
type KeyFile struct {
	PublicKey       string    `json:"public_key"`
	SecretKey       string    `json:"secret_key,omitempty"`
	EncryptedSecret *Envelope `json:"encrypted_secret_key,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewKeyFile builds the record for kp. If a passphrase is given the secret
// is sealed with it, bound to the public key.
func NewKeyFile(kp *keychain.Keypair, passphrase fn.Option[[]byte],
	clk clock.Clock) (*KeyFile, error) {

	pub := kp.PublicKey()
	kf := &KeyFile{
		PublicKey: pub.String(),
		CreatedAt: clk.Now().UTC().Truncate(time.Second),
	}

	if passphrase.IsNone() {
		kf.SecretKey = hex.EncodeToString(kp.SecretKeyBytes())
		return kf, nil
	}

	secret := kp.SecretKeyBytes()
	defer zero(secret)

	env, err := Seal(
		passphrase.UnsafeFromSome(), secret, pub[:], DefaultKDFParams,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to seal secret key: %w", err)
	}
	kf.EncryptedSecret = env

	return kf, nil
}

// PubKey parses the public key of the record.
func (k *KeyFile) PubKey() (keychain.PublicKey, error) {
	return keychain.PublicKeyFromHex(k.PublicKey)
}

// Encrypted reports whether the secret is sealed.
func (k *KeyFile) Encrypted() bool {
	return k.EncryptedSecret != nil
}

// HasSecret reports whether the record carries a secret in either form.
func (k *KeyFile) HasSecret() bool {
	return k.SecretKey != "" || k.EncryptedSecret != nil
}

// PublicOnly returns a copy of the record without its secret, suitable for
// handing to verifiers.
func (k *KeyFile) PublicOnly() *KeyFile {
	return &KeyFile{
		PublicKey: k.PublicKey,
		CreatedAt: k.CreatedAt,
	}
}

// Keypair recovers the keypair, opening the envelope with passphrase if
// the secret is sealed. The recovered key must match the recorded public
// key.
func (k *KeyFile) Keypair(
	passphrase fn.Option[[]byte]) (*keychain.Keypair, error) {

	pub, err := k.PubKey()
	if err != nil {
		return nil, err
	}

	var kp *keychain.Keypair
	switch {
	case k.SecretKey != "" && k.EncryptedSecret != nil:
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"key file holds both a plain and a sealed secret")

	case k.SecretKey != "":
		kp, err = keychain.KeypairFromHex(k.SecretKey)
		if err != nil {
			return nil, err
		}

	case k.EncryptedSecret != nil:
		pass, err := passphrase.UnwrapOrErr(ErrPassphraseRequired)
		if err != nil {
			return nil, err
		}

		secret, err := k.EncryptedSecret.Open(pass, pub[:])
		if err != nil {
			return nil, err
		}
		defer zero(secret)

		kp, err = keychain.KeypairFromSecret(secret)
		if err != nil {
			return nil, err
		}

	default:
		return nil, goverr.Errorf(goverr.ErrInvalidKey,
			"key file for %v holds no secret key", pub)
	}

	if kp.PublicKey() != pub {
		return nil, goverr.Errorf(goverr.ErrInvalidKey,
			"secret key does not match public key %v", pub)
	}

	return kp, nil
}

// SignatureFile is a detached signature as stored on disk.
type SignatureFile struct {
	Signature string    `json:"signature"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSignatureFile builds the record for sig.
func NewSignatureFile(sig keychain.Signature,
	clk clock.Clock) *SignatureFile {

	return &SignatureFile{
		Signature: sig.String(),
		CreatedAt: clk.Now().UTC().Truncate(time.Second),
	}
}

// Sig parses the signature of the record.
func (s *SignatureFile) Sig() (keychain.Signature, error) {
	return keychain.SignatureFromHex(s.Signature)
}

// writeJSON writes v as indented JSON, creating the parent directory if
// needed.
func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goverr.Errorf(goverr.ErrSerialization,
			"unable to encode %s: %v", path, err)
	}
	b = append(b, '\n')

	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return err
	}

	return os.WriteFile(path, b, filePerms)
}

func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(b, v); err != nil {
		return goverr.Errorf(goverr.ErrInvalidInput,
			"unable to parse %s: %v", path, err)
	}

	return nil
}

// WriteKeyFile stores kf at path, readable by the owner only.
func WriteKeyFile(path string, kf *KeyFile) error {
	if err := writeJSON(path, kf); err != nil {
		return err
	}

	log.Debugf("Wrote key file for %v to %v (encrypted=%v)",
		kf.PublicKey, path, kf.Encrypted())

	return nil
}

// ReadKeyFile loads the key file at path. Only the public key is checked
// here; the secret is parsed by Keypair.
func ReadKeyFile(path string) (*KeyFile, error) {
	var kf KeyFile
	if err := readJSON(path, &kf); err != nil {
		return nil, err
	}

	if _, err := kf.PubKey(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &kf, nil
}

// ReadPublicKey loads only the public key of the key file at path.
func ReadPublicKey(path string) (keychain.PublicKey, error) {
	kf, err := ReadKeyFile(path)
	if err != nil {
		return keychain.PublicKey{}, err
	}

	return kf.PubKey()
}

// WriteSignatureFile stores sf at path.
func WriteSignatureFile(path string, sf *SignatureFile) error {
	if err := writeJSON(path, sf); err != nil {
		return err
	}

	log.Debugf("Wrote signature file %v", path)

	return nil
}

// ReadSignatureFile loads and parses the signature file at path.
func ReadSignatureFile(path string) (keychain.Signature, *SignatureFile,
	error) {

	var sf SignatureFile
	if err := readJSON(path, &sf); err != nil {
		return keychain.Signature{}, nil, err
	}

	sig, err := sf.Sig()
	if err != nil {
		return keychain.Signature{}, nil, fmt.Errorf("%s: %w", path,
			err)
	}

	return sig, &sf, nil
}
