package mnemonic

import (
	"crypto/sha512"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	// seedIterations is the PBKDF2 round count fixed by BIP 39.
	seedIterations = 2048

	// SeedLen is the length of the derived seed in bytes.
	SeedLen = 64

	saltPrefix = "mnemonic"
)

// ToSeed stretches the mnemonic and an optional passphrase into a 64-byte
// seed suitable for bip32.NewMaster. Both inputs are NFKD normalized
// first. The mnemonic is not validated; callers that accept user input
// should call Validate.
func ToSeed(m Mnemonic, passphrase string) []byte {
	password := norm.NFKD.Bytes([]byte(m.String()))
	salt := norm.NFKD.Bytes([]byte(saltPrefix + passphrase))

	return pbkdf2.Key(password, salt, seedIterations, SeedLen, sha512.New)
}
