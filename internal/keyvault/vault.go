package keyvault

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var ErrBadPassphrase = errors.New("wrong passphrase or corrupted vault")

// scrypt parameters; tests lower scryptN.
var scryptN = 1 << 15

const (
	scryptR = 8
	scryptP = 1
)

// Vault is a WIF sealed under a passphrase. Only the address is readable
// without the passphrase.
type Vault struct {
	Network string `json:"network"`
	Address string `json:"address"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Box     []byte `json:"box"`
}

func deriveKey(passphrase string, salt []byte) (*[32]byte, error) {
	k, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, err
	}
	var key [32]byte
	copy(key[:], k)
	return &key, nil
}

// Seal encrypts wifStr under passphrase.
func Seal(wifStr, passphrase string, params *chaincfg.Params) (*Vault, error) {
	signer, err := NewKeySigner(wifStr, params)
	if err != nil {
		return nil, err
	}
	defer signer.zero()

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return &Vault{
		Network: params.Name,
		Address: signer.Address().EncodeAddress(),
		Salt:    salt,
		Nonce:   nonce[:],
		Box:     secretbox.Seal(nil, []byte(wifStr), &nonce, key),
	}, nil
}

// Save writes the vault to path with owner-only permissions.
func (v *Vault) Save(path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadVault reads a vault written by Save.
func LoadVault(path string) (*Vault, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v Vault
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode vault: %w", err)
	}
	return &v, nil
}

// Open decrypts the key into a session usable for ttl.
func (v *Vault) Open(passphrase string, ttl time.Duration, params *chaincfg.Params) (*Session, error) {
	if v.Network != params.Name {
		return nil, ErrWrongNetwork
	}
	if len(v.Nonce) != 24 {
		return nil, ErrBadPassphrase
	}
	key, err := deriveKey(passphrase, v.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var nonce [24]byte
	copy(nonce[:], v.Nonce)

	plain, ok := secretbox.Open(nil, v.Box, &nonce, key)
	if !ok {
		return nil, ErrBadPassphrase
	}
	wif, err := btcutil.DecodeWIF(string(plain))
	for i := range plain {
		plain[i] = 0
	}
	if err != nil {
		return nil, ErrBadPassphrase
	}

	signer, err := newKeySigner(wif.PrivKey, params)
	if err != nil {
		return nil, err
	}
	return &Session{signer: signer, addr: signer.Address(), expires: time.Now().Add(ttl), now: time.Now}, nil
}

// Session is a time-limited Signer over an opened vault. The address stays
// readable after the key is wiped.
type Session struct {
	mu      sync.Mutex
	signer  *KeySigner
	addr    *btcutil.AddressWitnessPubKeyHash
	expires time.Time
	now     func() time.Time
}

func (s *Session) Address() *btcutil.AddressWitnessPubKeyHash {
	return s.addr
}

// Expired reports whether the session can no longer sign.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signer == nil || s.now().After(s.expires)
}

func (s *Session) SignP2WPKH(tx *wire.MsgTx, idx int, prevOut *wire.TxOut, hashes *txscript.TxSigHashes) (wire.TxWitness, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signer == nil || s.now().After(s.expires) {
		s.closeLocked()
		return nil, ErrSessionExpired
	}
	return s.signer.SignP2WPKH(tx, idx, prevOut, hashes)
}

// Close wipes the key. Further signing fails with ErrSessionExpired.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.signer != nil {
		s.signer.zero()
		s.signer = nil
	}
}
