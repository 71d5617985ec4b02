package bip44

import (
	"fmt"

	"github.com/bitcoincommons/govkit/bip32"
	"github.com/bitcoincommons/govkit/goverr"
)

// Wallet binds a master key to a single coin type.
type Wallet struct {
	master bip32.ExtendedPrivateKey
	coin   CoinType
}

// NewWallet returns a wallet for coin rooted at master.
func NewWallet(master bip32.ExtendedPrivateKey, coin CoinType) *Wallet {
	return &Wallet{
		master: master,
		coin:   coin,
	}
}

// NewWalletFromSeed derives the master key from seed and returns a wallet
// for coin rooted at it.
func NewWalletFromSeed(seed []byte, coin CoinType) (*Wallet, error) {
	master, err := bip32.NewMaster(seed)
	if err != nil {
		return nil, err
	}

	return NewWallet(master, coin), nil
}

// CoinType returns the coin type of the wallet.
func (w *Wallet) CoinType() CoinType {
	return w.coin
}

// DeriveKey derives the key at m/44'/coin'/account'/change/index.
func (w *Wallet) DeriveKey(account uint32, change ChangeChain,
	index uint32) (bip32.ExtendedPrivateKey, error) {

	path := NewPath(w.coin, account, change, index)
	log.Tracef("Deriving %v", path)

	return path.Derive(w.master)
}

// ReceivingKey derives an external chain key.
func (w *Wallet) ReceivingKey(account,
	index uint32) (bip32.ExtendedPrivateKey, error) {

	return w.DeriveKey(account, ExternalChain, index)
}

// ChangeKey derives an internal chain key.
func (w *Wallet) ChangeKey(account,
	index uint32) (bip32.ExtendedPrivateKey, error) {

	return w.DeriveKey(account, InternalChain, index)
}

// AccountKey derives the private key at m/44'/coin'/account'.
func (w *Wallet) AccountKey(account uint32) (bip32.ExtendedPrivateKey,
	error) {

	if bip32.IsHardened(account) {
		return bip32.ExtendedPrivateKey{}, goverr.Errorf(
			goverr.ErrInvalidInput, "account %d out of range",
			account,
		)
	}

	return w.master.DerivePath([]uint32{
		bip32.Hardened(Purpose),
		bip32.Hardened(uint32(w.coin)),
		bip32.Hardened(account),
	})
}

// AccountXpub returns the extended public key of an account. Every
// receiving and change key of the account can be derived from it without
// the master secret.
func (w *Wallet) AccountXpub(account uint32) (bip32.ExtendedPublicKey,
	error) {

	key, err := w.AccountKey(account)
	if err != nil {
		return bip32.ExtendedPublicKey{}, err
	}

	return key.Public()
}

// DeriveFromAccountXpub derives the public key at change/index below an
// account level extended public key.
func DeriveFromAccountXpub(account bip32.ExtendedPublicKey,
	change ChangeChain, index uint32) (bip32.ExtendedPublicKey, error) {

	if account.Depth != 3 {
		return bip32.ExtendedPublicKey{}, goverr.Errorf(
			goverr.ErrInvalidInput, "expected an account key at "+
				"depth 3, got depth %d", account.Depth,
		)
	}
	if change != ExternalChain && change != InternalChain {
		return bip32.ExtendedPublicKey{}, goverr.Errorf(
			goverr.ErrInvalidInput, "change must be 0 or 1, got %d",
			change,
		)
	}

	key, err := account.DerivePath([]uint32{uint32(change), index})
	if err != nil {
		return bip32.ExtendedPublicKey{}, fmt.Errorf("unable to "+
			"derive %d/%d: %w", change, index, err)
	}

	return key, nil
}
