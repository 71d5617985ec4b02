// Package govkit is a toolkit for maintainer governance of Bitcoin software
// releases. Maintainers sign canonical governance messages with secp256k1
// keys, and a release, module approval or budget decision is accepted once
// a threshold of the maintainer set has signed it.
//
// The subpackages provide the pieces:
//
//   - keychain: keypairs, public keys and compact ECDSA signatures
//   - govwire: the canonical encoding of governance messages
//   - multisig: threshold verification over a maintainer key set
//   - bip32, bip44, mnemonic: hierarchical deterministic key management
//   - psbtcodec: partially signed transaction maps
//   - keyfile: on-disk key and signature records
//   - artifact: signable attestations over release binaries and bundles
//
// The govctl command exposes all of them on the command line.
package govkit
