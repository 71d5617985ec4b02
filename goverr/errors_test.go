package goverr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorfWrapsKind(t *testing.T) {
	t.Parallel()

	err := Errorf(ErrInvalidInput, "seed must be %d-%d bytes", 16, 64)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.NotErrorIs(t, err, ErrInvalidKey)
	require.Equal(t, "invalid input: seed must be 16-64 bytes", err.Error())

	wrapped := fmt.Errorf("unable to derive master: %w", err)
	require.ErrorIs(t, wrapped, ErrInvalidInput)
}

func TestThresholdError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ThresholdError
		msg  string
	}{
		{
			name: "zero threshold",
			err:  &ThresholdError{Threshold: 0, Total: 3, Keys: 3},
			msg: "invalid multisig configuration: threshold " +
				"must be at least 1, got 0",
		},
		{
			name: "threshold above total",
			err:  &ThresholdError{Threshold: 4, Total: 3, Keys: 3},
			msg: "invalid multisig configuration: threshold 4 " +
				"exceeds total 3",
		},
		{
			name: "key count mismatch",
			err:  &ThresholdError{Threshold: 2, Total: 3, Keys: 2},
			msg: "invalid multisig configuration: 2-of-3 " +
				"requires 3 public keys, got 2",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.msg, tc.err.Error())
			require.ErrorIs(t, tc.err, ErrInvalidMultisig)

			var target *ThresholdError
			require.True(t, errors.As(tc.err, &target))
		})
	}
}

func TestInsufficientSignaturesError(t *testing.T) {
	t.Parallel()

	var err error = &InsufficientSignaturesError{Got: 2, Need: 3}
	require.ErrorIs(t, err, ErrInsufficientSignatures)
	require.Equal(t, "insufficient signatures: got 2, need 3", err.Error())
}
