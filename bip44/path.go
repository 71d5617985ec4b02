// Package bip44 implements the BIP 44 multi-account hierarchy on top of
// the bip32 package.
package bip44

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bitcoincommons/govkit/bip32"
	"github.com/bitcoincommons/govkit/goverr"
	"github.com/btcsuite/btcd/chaincfg"
)

// Purpose is the fixed first level of every BIP 44 path.
const Purpose uint32 = 44

// CoinType selects the second, per-chain level of the hierarchy. Values are
// taken from SLIP 44; any value below 2^31 is accepted.
type CoinType uint32

// Registered coin types with a name.
const (
	CoinTypeBitcoin        CoinType = 0
	CoinTypeBitcoinTestnet CoinType = 1
	CoinTypeLitecoin       CoinType = 2
	CoinTypeDogecoin       CoinType = 3
	CoinTypeEthereum       CoinType = 60
)

// String returns the name of well known coin types and the number
// otherwise.
func (c CoinType) String() string {
	switch c {
	case CoinTypeBitcoin:
		return "bitcoin"
	case CoinTypeBitcoinTestnet:
		return "testnet"
	case CoinTypeLitecoin:
		return "litecoin"
	case CoinTypeDogecoin:
		return "dogecoin"
	case CoinTypeEthereum:
		return "ethereum"
	default:
		return strconv.FormatUint(uint64(c), 10)
	}
}

// CoinTypeForNet returns the coin type used for a bitcoin network: the
// main network uses 0 and every test network uses 1.
func CoinTypeForNet(net *chaincfg.Params) CoinType {
	if net.Net == chaincfg.MainNetParams.Net {
		return CoinTypeBitcoin
	}

	return CoinTypeBitcoinTestnet
}

// ChangeChain is the fourth level of a path.
type ChangeChain uint32

const (
	// ExternalChain holds addresses handed out to others.
	ExternalChain ChangeChain = 0

	// InternalChain holds change addresses.
	InternalChain ChangeChain = 1
)

// Path is a full BIP 44 path down to a single address key.
type Path struct {
	Purpose      uint32
	CoinType     CoinType
	Account      uint32
	Change       ChangeChain
	AddressIndex uint32
}

// NewPath returns the path m/44'/coin'/account'/change/index.
func NewPath(coin CoinType, account uint32, change ChangeChain,
	index uint32) Path {

	return Path{
		Purpose:      Purpose,
		CoinType:     coin,
		Account:      account,
		Change:       change,
		AddressIndex: index,
	}
}

// Validate checks that every level fits its hardened or non-hardened
// range.
func (p Path) Validate() error {
	switch {
	case p.Purpose != Purpose:
		return goverr.Errorf(goverr.ErrInvalidInput,
			"purpose must be %d, got %d", Purpose, p.Purpose)

	case bip32.IsHardened(uint32(p.CoinType)):
		return goverr.Errorf(goverr.ErrInvalidInput,
			"coin type %d out of range", uint32(p.CoinType))

	case bip32.IsHardened(p.Account):
		return goverr.Errorf(goverr.ErrInvalidInput,
			"account %d out of range", p.Account)

	case p.Change != ExternalChain && p.Change != InternalChain:
		return goverr.Errorf(goverr.ErrInvalidInput,
			"change must be 0 or 1, got %d", p.Change)

	case bip32.IsHardened(p.AddressIndex):
		return goverr.Errorf(goverr.ErrInvalidInput,
			"address index %d out of range", p.AddressIndex)
	}

	return nil
}

// Indices returns the five child indices of the path with the first three
// hardened.
func (p Path) Indices() []uint32 {
	return []uint32{
		bip32.Hardened(p.Purpose),
		bip32.Hardened(uint32(p.CoinType)),
		bip32.Hardened(p.Account),
		uint32(p.Change),
		p.AddressIndex,
	}
}

// Derive walks the path from master one private derivation at a time.
func (p Path) Derive(
	master bip32.ExtendedPrivateKey) (bip32.ExtendedPrivateKey, error) {

	if err := p.Validate(); err != nil {
		return bip32.ExtendedPrivateKey{}, err
	}

	key, err := master.DerivePath(p.Indices())
	if err != nil {
		return bip32.ExtendedPrivateKey{}, fmt.Errorf("unable to "+
			"derive %v: %w", p, err)
	}

	return key, nil
}

// String renders the path in its canonical form, e.g. m/44'/0'/0'/0/0.
func (p Path) String() string {
	return fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", p.Purpose,
		uint32(p.CoinType), p.Account, uint32(p.Change),
		p.AddressIndex)
}

// ParsePath parses m/44'/coin'/account'/change/index. The leading "m/" is
// optional. The first three levels are always derived hardened, so their
// marker, either ' or h, may be omitted. The last two must not carry one.
func ParsePath(s string) (Path, error) {
	var path Path

	parts := strings.Split(strings.TrimPrefix(s, "m/"), "/")
	if len(parts) != 5 {
		return path, goverr.Errorf(goverr.ErrInvalidInput,
			"path %q must have 5 levels: "+
				"purpose'/coin'/account'/change/index", s)
	}

	names := []string{
		"purpose", "coin type", "account", "change", "address index",
	}
	values := make([]uint32, len(parts))
	for i, part := range parts {
		hardened := strings.HasSuffix(part, "'") ||
			strings.HasSuffix(part, "h")
		if hardened {
			part = part[:len(part)-1]
		}

		if i >= 3 && hardened {
			return path, goverr.Errorf(goverr.ErrInvalidInput,
				"%s in %q must not be hardened", names[i], s)
		}

		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return path, goverr.Errorf(goverr.ErrInvalidInput,
				"invalid %s %q in %q", names[i], part, s)
		}
		values[i] = uint32(v)
	}

	path = Path{
		Purpose:      values[0],
		CoinType:     CoinType(values[1]),
		Account:      values[2],
		Change:       ChangeChain(values[3]),
		AddressIndex: values[4],
	}
	if err := path.Validate(); err != nil {
		return Path{}, err
	}

	return path, nil
}
