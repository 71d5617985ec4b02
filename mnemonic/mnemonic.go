// Package mnemonic implements BIP 39 mnemonic sentences on top of the
// English word list shipped with go-bip39.
package mnemonic

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/tyler-smith/go-bip39"
)

var (
	// ErrInvalidWordCount is returned for sentences whose length does not
	// match any supported strength.
	ErrInvalidWordCount = fmt.Errorf("%w: unsupported word count",
		goverr.ErrInvalidInput)

	// ErrUnknownWord is returned when a word is missing from the word
	// list.
	ErrUnknownWord = fmt.Errorf("%w: unknown word", goverr.ErrInvalidInput)

	// ErrChecksumMismatch is returned when the trailing checksum bits do
	// not match the entropy.
	ErrChecksumMismatch = fmt.Errorf("%w: checksum mismatch",
		goverr.ErrInvalidInput)
)

// Strength is the amount of entropy, in bits, behind a mnemonic.
type Strength int

// The supported strengths. Every 32 bits of entropy add three words.
const (
	Strength128 Strength = 128
	Strength160 Strength = 160
	Strength192 Strength = 192
	Strength224 Strength = 224
	Strength256 Strength = 256
)

// WordCount returns the number of words a mnemonic of this strength has.
func (s Strength) WordCount() int {
	return int(s) / 32 * 3
}

// Validate returns an error if s is not a supported strength.
func (s Strength) Validate() error {
	switch s {
	case Strength128, Strength160, Strength192, Strength224, Strength256:
		return nil
	}

	return goverr.Errorf(goverr.ErrInvalidInput,
		"unsupported mnemonic strength %d", int(s))
}

// StrengthFromWordCount maps a word count back to its strength.
func StrengthFromWordCount(n int) (Strength, error) {
	if n%3 != 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidWordCount, n)
	}

	s := Strength(n / 3 * 32)
	if s.Validate() != nil {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidWordCount, n)
	}

	return s, nil
}

// Mnemonic is a BIP 39 sentence as a list of words.
type Mnemonic []string

// Parse splits s into words on any run of white space.
func Parse(s string) Mnemonic {
	return Mnemonic(strings.Fields(s))
}

// String joins the words with single spaces.
func (m Mnemonic) String() string {
	return strings.Join(m, " ")
}

var (
	wordIndexOnce sync.Once
	wordIndex     map[string]int
)

// lookupWord returns the position of word in the English word list.
func lookupWord(word string) (int, bool) {
	wordIndexOnce.Do(func() {
		list := bip39.GetWordList()
		wordIndex = make(map[string]int, len(list))
		for i, w := range list {
			wordIndex[w] = i
		}
	})

	i, ok := wordIndex[word]
	return i, ok
}

// Generate returns a new random mnemonic of the given strength.
func Generate(strength Strength) (Mnemonic, error) {
	if err := strength.Validate(); err != nil {
		return nil, err
	}

	entropy, err := bip39.NewEntropy(int(strength))
	if err != nil {
		return nil, fmt.Errorf("unable to read entropy: %w", err)
	}

	m, err := FromEntropy(entropy)
	if err != nil {
		return nil, err
	}

	log.Debugf("Generated %d word mnemonic", len(m))

	return m, nil
}

// Validate checks the word count, that every word is in the word list and
// the embedded checksum. Errors name the position of a bad word but never
// the word itself.
func Validate(m Mnemonic) error {
	if _, err := StrengthFromWordCount(len(m)); err != nil {
		return err
	}

	for i, word := range m {
		if _, ok := lookupWord(word); !ok {
			return fmt.Errorf("%w at position %d", ErrUnknownWord,
				i+1)
		}
	}

	// Word count and words are known good at this point, so the only
	// thing left for the decoder to reject is the checksum.
	if _, err := bip39.EntropyFromMnemonic(m.String()); err != nil {
		log.Tracef("Mnemonic rejected by decoder: %v", err)
		return ErrChecksumMismatch
	}

	return nil
}

// ToEntropy recovers the entropy encoded by a valid mnemonic.
func ToEntropy(m Mnemonic) ([]byte, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}

	entropy, err := bip39.EntropyFromMnemonic(m.String())
	if err != nil {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"invalid mnemonic: %v", err)
	}

	return entropy, nil
}

// FromEntropy encodes entropy of a supported strength as a mnemonic.
func FromEntropy(entropy []byte) (Mnemonic, error) {
	if err := Strength(len(entropy) * 8).Validate(); err != nil {
		return nil, err
	}

	sentence, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"unable to encode entropy: %v", err)
	}

	return Parse(sentence), nil
}
