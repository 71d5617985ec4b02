package keyfile

import (
	"crypto/rand"
	"fmt"

	"github.com/bitcoincommons/govkit/goverr"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// envelopeVersion is the only envelope layout understood.
	envelopeVersion = 1

	// kdfArgon2id names the key derivation function in the envelope.
	kdfArgon2id = "argon2id"

	saltSize = 16
)

var (
	// ErrPassphraseRequired is returned when an encrypted secret is
	// opened without a passphrase.
	ErrPassphraseRequired = fmt.Errorf("%w: key file is encrypted, "+
		"passphrase required", goverr.ErrInvalidInput)

	// ErrAuthFailed is returned when the passphrase is wrong or the
	// envelope was tampered with.
	ErrAuthFailed = fmt.Errorf("%w: unable to decrypt secret key",
		goverr.ErrInvalidKey)
)

// KDFParams are the argon2id cost parameters.
type KDFParams struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// DefaultKDFParams are the parameters used for new envelopes.
var DefaultKDFParams = KDFParams{
	Time:     2,
	MemoryKB: 64 * 1024,
	Threads:  1,
}

// MaxKDFParams bounds the parameters accepted from an envelope, so that a
// crafted key file cannot make Open allocate gigabytes.
var MaxKDFParams = KDFParams{
	Time:     8,
	MemoryKB: 256 * 1024,
	Threads:  4,
}

// validate checks that every parameter is non-zero and within
// MaxKDFParams.
func (p KDFParams) validate() error {
	if p.Time == 0 || p.MemoryKB == 0 || p.Threads == 0 {
		return goverr.Errorf(goverr.ErrInvalidInput,
			"argon2id parameters must be non-zero")
	}

	if p.Time > MaxKDFParams.Time || p.MemoryKB > MaxKDFParams.MemoryKB ||
		p.Threads > MaxKDFParams.Threads {

		return goverr.Errorf(goverr.ErrInvalidInput,
			"argon2id parameters (time=%d, memory=%dKB, threads=%d) "+
				"exceed the limit (time=%d, memory=%dKB, "+
				"threads=%d)", p.Time, p.MemoryKB, p.Threads,
			MaxKDFParams.Time, MaxKDFParams.MemoryKB,
			MaxKDFParams.Threads)
	}

	return nil
}

// Envelope is a secret sealed with XChaCha20-Poly1305 under a key
// stretched from a passphrase with argon2id. The byte fields are base64
// in JSON.
type Envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

func deriveKey(passphrase, salt []byte, params KDFParams) []byte {
	return argon2.IDKey(
		passphrase, salt, params.Time, params.MemoryKB,
		params.Threads, chacha20poly1305.KeySize,
	)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Seal encrypts plaintext under passphrase. The additional data is
// authenticated but not stored, so the same value must be passed to Open.
func Seal(passphrase, plaintext, additionalData []byte,
	params KDFParams) (*Envelope, error) {

	if err := params.validate(); err != nil {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	key := deriveKey(passphrase, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Version:     envelopeVersion,
		KDF:         kdfArgon2id,
		KDFTime:     params.Time,
		KDFMemoryKB: params.MemoryKB,
		KDFThreads:  params.Threads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, plaintext, additionalData),
	}, nil
}

// Open decrypts the envelope.
func (e *Envelope) Open(passphrase, additionalData []byte) ([]byte, error) {
	switch {
	case e.Version != envelopeVersion:
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"unknown envelope version %d", e.Version)

	case e.KDF != kdfArgon2id:
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"unknown key derivation function %q", e.KDF)

	case len(e.Nonce) != chacha20poly1305.NonceSizeX:
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"invalid nonce length %d", len(e.Nonce))
	}

	params := KDFParams{
		Time:     e.KDFTime,
		MemoryKB: e.KDFMemoryKB,
		Threads:  e.KDFThreads,
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	key := deriveKey(passphrase, e.Salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, e.Nonce, e.Ciphertext, additionalData)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}
