package keyvault

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	ErrWrongNetwork   = errors.New("key belongs to a different network")
	ErrSessionExpired = errors.New("signing session expired")
)

// Signer signs P2WPKH inputs without exposing the private key.
type Signer interface {
	Address() *btcutil.AddressWitnessPubKeyHash
	SignP2WPKH(tx *wire.MsgTx, idx int, prevOut *wire.TxOut, hashes *txscript.TxSigHashes) (wire.TxWitness, error)
}

// KeySigner holds a single private key in memory.
type KeySigner struct {
	priv *btcec.PrivateKey
	addr *btcutil.AddressWitnessPubKeyHash
}

// NewKeySigner decodes a WIF for params.
func NewKeySigner(wifStr string, params *chaincfg.Params) (*KeySigner, error) {
	wif, err := btcutil.DecodeWIF(wifStr)
	if err != nil {
		return nil, fmt.Errorf("invalid WIF: %w", err)
	}
	if !wif.IsForNet(params) {
		return nil, ErrWrongNetwork
	}
	return newKeySigner(wif.PrivKey, params)
}

func newKeySigner(priv *btcec.PrivateKey, params *chaincfg.Params) (*KeySigner, error) {
	addr, err := P2WPKHAddress(priv.PubKey().SerializeCompressed(), params)
	if err != nil {
		return nil, err
	}
	return &KeySigner{priv: priv, addr: addr}, nil
}

func (k *KeySigner) Address() *btcutil.AddressWitnessPubKeyHash {
	return k.addr
}

func (k *KeySigner) SignP2WPKH(tx *wire.MsgTx, idx int, prevOut *wire.TxOut, hashes *txscript.TxSigHashes) (wire.TxWitness, error) {
	witness, err := txscript.WitnessSignature(tx, hashes, idx, prevOut.Value, prevOut.PkScript, txscript.SigHashAll, k.priv, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create witness signature: %w", err)
	}
	return witness, nil
}

// zero overwrites the private scalar.
func (k *KeySigner) zero() {
	if k.priv != nil {
		k.priv.Zero()
		k.priv = nil
	}
}
