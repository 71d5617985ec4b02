// Package goverr defines the error kinds shared by the governance
// cryptography packages. Every error returned by this module wraps exactly
// one of the sentinels below so callers can classify failures with
// errors.Is without parsing messages.
package goverr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned for malformed, zero or out-of-range scalars
	// and for byte strings that do not encode a curve point.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidInput is returned for malformed caller input such as a seed
	// of the wrong length, an unparsable path or threshold string, or a
	// truncated PSBT.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidMultisig is returned when a threshold configuration is
	// rejected at construction time.
	ErrInvalidMultisig = errors.New("invalid multisig configuration")

	// ErrInsufficientSignatures is returned when fewer valid signatures than
	// the threshold were supplied.
	ErrInsufficientSignatures = errors.New("insufficient signatures")

	// ErrSignatureVerification is returned when a signature that was
	// required to be valid does not verify.
	ErrSignatureVerification = errors.New("signature verification failed")

	// ErrInvalidSignatureFormat is returned for signature encodings that can
	// not represent a valid ECDSA signature.
	ErrInvalidSignatureFormat = errors.New("invalid signature format")

	// ErrMessageFormat is returned when governance message bytes can not be
	// decoded.
	ErrMessageFormat = errors.New("message format error")

	// ErrSerialization is returned when a record can not be encoded or
	// decoded.
	ErrSerialization = errors.New("serialization error")
)

// Errorf formats an error message and wraps kind so that errors.Is(err,
// kind) holds for the result.
func Errorf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// ThresholdError describes a rejected threshold configuration.
type ThresholdError struct {
	// Threshold is the requested number of required signatures.
	Threshold int

	// Total is the requested size of the key set.
	Total int

	// Keys is the number of public keys that were actually supplied.
	Keys int
}

// Error returns a human readable description of the mismatch.
func (e *ThresholdError) Error() string {
	switch {
	case e.Threshold < 1:
		return fmt.Sprintf("%v: threshold must be at least 1, got %d",
			ErrInvalidMultisig, e.Threshold)

	case e.Threshold > e.Total:
		return fmt.Sprintf("%v: threshold %d exceeds total %d",
			ErrInvalidMultisig, e.Threshold, e.Total)

	default:
		return fmt.Sprintf("%v: %d-of-%d requires %d public keys, "+
			"got %d", ErrInvalidMultisig, e.Threshold, e.Total,
			e.Total, e.Keys)
	}
}

// Unwrap returns ErrInvalidMultisig.
func (e *ThresholdError) Unwrap() error {
	return ErrInvalidMultisig
}

// InsufficientSignaturesError reports how many valid signatures were found
// against how many were needed.
type InsufficientSignaturesError struct {
	Got  int
	Need int
}

// Error returns a human readable description of the shortfall.
func (e *InsufficientSignaturesError) Error() string {
	return fmt.Sprintf("%v: got %d, need %d", ErrInsufficientSignatures,
		e.Got, e.Need)
}

// Unwrap returns ErrInsufficientSignatures.
func (e *InsufficientSignaturesError) Unwrap() error {
	return ErrInsufficientSignatures
}
