package bip32

import (
	"bytes"
	"encoding/binary"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// serializedKeyLen is the length of a serialized extended key without
	// its checksum: version(4) depth(1) parent(4) child(4) chain(32)
	// key(33).
	serializedKeyLen = 78

	checksumLen = 4
)

// serialize lays out the common extended key fields followed by keyData.
func serialize(version [4]byte, depth uint8, parent [4]byte, child uint32,
	chainCode [32]byte, keyData []byte) string {

	buf := make([]byte, 0, serializedKeyLen+checksumLen)
	buf = append(buf, version[:]...)
	buf = append(buf, depth)
	buf = append(buf, parent[:]...)
	buf = binary.BigEndian.AppendUint32(buf, child)
	buf = append(buf, chainCode[:]...)
	buf = append(buf, keyData...)

	checksum := chainhash.DoubleHashB(buf)[:checksumLen]
	buf = append(buf, checksum...)

	return base58.Encode(buf)
}

// EncodePrivate returns the Base58Check xprv-style encoding of the key for
// the given network. The result contains the secret.
func (k ExtendedPrivateKey) EncodePrivate(net *chaincfg.Params) string {
	keyData := make([]byte, 0, 33)
	keyData = append(keyData, 0x00)
	keyData = append(keyData, k.secret[:]...)

	return serialize(
		net.HDPrivateKeyID, k.Depth, k.ParentFingerprint,
		k.ChildNumber, k.ChainCode, keyData,
	)
}

// Encode returns the Base58Check xpub-style encoding of the key for the
// given network.
func (k ExtendedPublicKey) Encode(net *chaincfg.Params) string {
	return serialize(
		net.HDPublicKeyID, k.Depth, k.ParentFingerprint,
		k.ChildNumber, k.ChainCode, k.PublicKey[:],
	)
}

// String returns the mainnet encoding of the key.
func (k ExtendedPublicKey) String() string {
	return k.Encode(&chaincfg.MainNetParams)
}

// decode checks the checksum and version of an encoded extended key and
// returns the raw payload.
func decode(s string, version [4]byte) ([]byte, error) {
	payload := base58.Decode(s)
	if len(payload) != serializedKeyLen+checksumLen {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"extended key has invalid length %d", len(payload))
	}

	data := payload[:serializedKeyLen]
	checksum := chainhash.DoubleHashB(data)[:checksumLen]
	if !bytes.Equal(checksum, payload[serializedKeyLen:]) {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"extended key checksum mismatch")
	}

	if !bytes.Equal(data[:4], version[:]) {
		return nil, goverr.Errorf(goverr.ErrInvalidInput,
			"extended key version %x does not match network",
			data[:4])
	}

	return data, nil
}

// parseHeader fills in the fields shared by both key kinds.
func parseHeader(data []byte) (uint8, [4]byte, uint32, [32]byte) {
	var (
		parent    [4]byte
		chainCode [32]byte
	)
	depth := data[4]
	copy(parent[:], data[5:9])
	child := binary.BigEndian.Uint32(data[9:13])
	copy(chainCode[:], data[13:45])

	return depth, parent, child, chainCode
}

// ParseExtendedPublicKey decodes an xpub-style string for the given
// network.
func ParseExtendedPublicKey(s string,
	net *chaincfg.Params) (ExtendedPublicKey, error) {

	var key ExtendedPublicKey

	data, err := decode(s, net.HDPublicKeyID)
	if err != nil {
		return key, err
	}

	key.Depth, key.ParentFingerprint, key.ChildNumber, key.ChainCode =
		parseHeader(data)

	key.PublicKey, err = keychain.ParsePublicKey(data[45:])
	if err != nil {
		return ExtendedPublicKey{}, err
	}

	return key, nil
}

// ParseExtendedPrivateKey decodes an xprv-style string for the given
// network.
func ParseExtendedPrivateKey(s string,
	net *chaincfg.Params) (ExtendedPrivateKey, error) {

	var key ExtendedPrivateKey

	data, err := decode(s, net.HDPrivateKeyID)
	if err != nil {
		return key, err
	}

	if data[45] != 0x00 {
		return key, goverr.Errorf(goverr.ErrInvalidInput,
			"extended private key has no secret marker")
	}

	key.Depth, key.ParentFingerprint, key.ChildNumber, key.ChainCode =
		parseHeader(data)
	copy(key.secret[:], data[46:])

	if _, err := key.scalar(); err != nil {
		return ExtendedPrivateKey{}, err
	}

	return key, nil
}
