// Package multisig implements N-of-M threshold verification of governance
// signatures against a fixed maintainer key set.
package multisig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/btcsuite/btcd/txscript"
)

// Multisig is a threshold policy over an ordered list of public keys. It is
// immutable once built and safe for concurrent use.
type Multisig struct {
	threshold int
	keys      []keychain.PublicKey

	// slots maps every key position to the position of the first
	// occurrence of the same key, so that a key listed twice still only
	// earns a single credit.
	slots []int
}

// New creates a threshold-of-total policy over keys. It fails if threshold
// is below one, exceeds total, or if the number of keys is not total.
func New(threshold, total int,
	keys []keychain.PublicKey) (*Multisig, error) {

	if threshold < 1 || threshold > total || len(keys) != total {
		return nil, &goverr.ThresholdError{
			Threshold: threshold,
			Total:     total,
			Keys:      len(keys),
		}
	}

	first := make(map[keychain.PublicKey]int, len(keys))
	slots := make([]int, len(keys))
	for i, key := range keys {
		if j, ok := first[key]; ok {
			log.Debugf("Key %v at position %d duplicates "+
				"position %d", key, i, j)

			slots[i] = j
			continue
		}

		first[key] = i
		slots[i] = i
	}

	return &Multisig{
		threshold: threshold,
		keys:      append([]keychain.PublicKey(nil), keys...),
		slots:     slots,
	}, nil
}

// Threshold is the number of distinct keys that must sign.
func (m *Multisig) Threshold() int {
	return m.threshold
}

// Total is the number of keys in the policy.
func (m *Multisig) Total() int {
	return len(m.keys)
}

// Keys returns a copy of the ordered key set.
func (m *Multisig) Keys() []keychain.PublicKey {
	return append([]keychain.PublicKey(nil), m.keys...)
}

// String renders the policy as its threshold descriptor.
func (m *Multisig) String() string {
	return FormatThreshold(m.threshold, len(m.keys))
}

// match walks sigs once and credits every valid signature to the first key
// that it validates against and that has not been credited yet. visit is
// called with the index of each credited signature and returning false
// stops the walk.
func (m *Multisig) match(msg []byte, sigs []keychain.Signature,
	visit func(int) bool) {

	used := make([]bool, len(m.keys))
	for i, sig := range sigs {
		if err := sig.CheckFormat(); err != nil {
			log.Debugf("Skipping signature %d: %v", i, err)
			continue
		}

		for j, key := range m.keys {
			slot := m.slots[j]
			if used[slot] {
				continue
			}

			ok, err := keychain.Verify(sig, msg, key)
			if err != nil {
				log.Debugf("Unable to check signature %d "+
					"against key %d: %v", i, j, err)
				continue
			}
			if !ok {
				continue
			}

			used[slot] = true
			if !visit(i) {
				return
			}

			break
		}
	}
}

// CollectValidSignatures returns the input positions of the signatures that
// validate against some key of the set. Each key is credited at most once,
// in first-match order.
func (m *Multisig) CollectValidSignatures(msg []byte,
	sigs []keychain.Signature) []int {

	var valid []int
	m.match(msg, sigs, func(i int) bool {
		valid = append(valid, i)
		return true
	})

	return valid
}

// Verify reports whether at least threshold signatures validate against
// distinct keys of the set. Malformed signatures are treated as
// non-matching.
func (m *Multisig) Verify(msg []byte, sigs []keychain.Signature) bool {
	var count int
	m.match(msg, sigs, func(int) bool {
		count++
		return count < m.threshold
	})

	log.Tracef("Counted %d of %d required signatures", count,
		m.threshold)

	return count >= m.threshold
}

// RequireThreshold is like Verify but reports a shortfall as an
// InsufficientSignaturesError.
func (m *Multisig) RequireThreshold(msg []byte,
	sigs []keychain.Signature) error {

	valid := m.CollectValidSignatures(msg, sigs)
	if len(valid) < m.threshold {
		return &goverr.InsufficientSignaturesError{
			Got:  len(valid),
			Need: m.threshold,
		}
	}

	return nil
}

// RedeemScript returns the bare CHECKMULTISIG script for the key set in
// its configured order.
func (m *Multisig) RedeemScript() ([]byte, error) {
	if len(m.keys) > txscript.MaxPubKeysPerMultiSig {
		return nil, goverr.Errorf(goverr.ErrInvalidMultisig,
			"%d keys exceeds the script limit of %d", len(m.keys),
			txscript.MaxPubKeysPerMultiSig)
	}

	bldr := txscript.NewScriptBuilder()
	bldr.AddInt64(int64(m.threshold))
	for _, key := range m.keys {
		bldr.AddData(key[:])
	}
	bldr.AddInt64(int64(len(m.keys)))
	bldr.AddOp(txscript.OP_CHECKMULTISIG)

	return bldr.Script()
}

// FormatThreshold renders a threshold descriptor such as "3-of-5".
func FormatThreshold(threshold, total int) string {
	return fmt.Sprintf("%d-of-%d", threshold, total)
}

// ParseThreshold parses a "<threshold>-of-<total>" descriptor. Only plain
// decimal numbers are accepted on either side; range checks are left to
// New.
func ParseThreshold(s string) (int, int, error) {
	parts := strings.Split(s, "-of-")
	if len(parts) != 2 {
		return 0, 0, goverr.Errorf(goverr.ErrInvalidInput,
			"threshold %q is not of the form <threshold>-of-<total>",
			s)
	}

	threshold, err := parseCount(parts[0])
	if err != nil {
		return 0, 0, goverr.Errorf(goverr.ErrInvalidInput,
			"invalid threshold in %q: %v", s, err)
	}
	total, err := parseCount(parts[1])
	if err != nil {
		return 0, 0, goverr.Errorf(goverr.ErrInvalidInput,
			"invalid total in %q: %v", s, err)
	}

	return threshold, total, nil
}

func parseCount(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("unexpected character %q", c)
		}
	}

	return strconv.Atoi(s)
}
