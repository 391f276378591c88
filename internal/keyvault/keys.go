package keyvault

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

// DefaultPath is the first BIP84 receive key on testnet.
const DefaultPath = "m/84'/1'/0'/0/0"

// GeneratedKey is a freshly created key with its recovery material.
type GeneratedKey struct {
	Mnemonic string `json:"mnemonic"`
	Path     string `json:"path"`
	WIF      string `json:"wif"`
	Address  string `json:"address"`
}

// GenerateKey creates a 24-word mnemonic and derives the key at DefaultPath.
func GenerateKey(params *chaincfg.Params) (*GeneratedKey, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return KeyFromMnemonic(mnemonic, "", DefaultPath, params)
}

// KeyFromMnemonic derives the key at path from mnemonic and passphrase.
func KeyFromMnemonic(mnemonic, passphrase, path string, params *chaincfg.Params) (*GeneratedKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	rootKey, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	key, err := DeriveKeyFromPath(rootKey, path)
	if err != nil {
		return nil, err
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}
	wif, err := btcutil.NewWIF(priv, params, true)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WIF: %w", err)
	}
	addr, err := P2WPKHAddress(wif.SerializePubKey(), params)
	if err != nil {
		return nil, err
	}

	return &GeneratedKey{
		Mnemonic: mnemonic,
		Path:     path,
		WIF:      wif.String(),
		Address:  addr.EncodeAddress(),
	}, nil
}

// DeriveKeyFromPath derives the extended key at a path like m/84'/1'/0'/0/0.
func DeriveKeyFromPath(rootKey *hdkeychain.ExtendedKey, path string) (*hdkeychain.ExtendedKey, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimPrefix(path, "m"), "/"), "/")
	key := rootKey
	for _, part := range parts {
		if part == "" {
			continue
		}
		var index uint32
		if strings.HasSuffix(part, "'") {
			index64, err := strconv.ParseUint(part[:len(part)-1], 10, 31)
			if err != nil {
				return nil, fmt.Errorf("invalid path component %s: %w", part, err)
			}
			index = hdkeychain.HardenedKeyStart + uint32(index64)
		} else {
			index64, err := strconv.ParseUint(part, 10, 31)
			if err != nil {
				return nil, fmt.Errorf("invalid path component %s: %w", part, err)
			}
			index = uint32(index64)
		}
		var err error
		key, err = key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key: %w", err)
		}
	}
	return key, nil
}

// P2WPKHAddress returns the native segwit address for a compressed public key.
func P2WPKHAddress(pubKey []byte, params *chaincfg.Params) (*btcutil.AddressWitnessPubKeyHash, error) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pubKey), params)
	if err != nil {
		return nil, fmt.Errorf("failed to create P2WPKH address: %w", err)
	}
	return addr, nil
}
