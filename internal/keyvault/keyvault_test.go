package keyvault

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	scryptN = 1 << 10
}

const bip84Mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestKeyFromMnemonicBIP84Vector(t *testing.T) {
	k, err := KeyFromMnemonic(bip84Mnemonic, "", "m/84'/0'/0'/0/0", &chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", k.Address)
}

func TestGenerateKeyTestnet(t *testing.T) {
	k, err := GenerateKey(&chaincfg.TestNet3Params)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(k.Mnemonic), 24)
	assert.Equal(t, DefaultPath, k.Path)
	assert.True(t, strings.HasPrefix(k.Address, "tb1q"))

	signer, err := NewKeySigner(k.WIF, &chaincfg.TestNet3Params)
	require.NoError(t, err)
	assert.Equal(t, k.Address, signer.Address().EncodeAddress())
}

func TestNewKeySignerRejectsOtherNetwork(t *testing.T) {
	k, err := KeyFromMnemonic(bip84Mnemonic, "", "m/84'/0'/0'/0/0", &chaincfg.MainNetParams)
	require.NoError(t, err)
	_, err = NewKeySigner(k.WIF, &chaincfg.TestNet3Params)
	assert.ErrorIs(t, err, ErrWrongNetwork)
}

func TestDeriveKeyFromPathInvalid(t *testing.T) {
	_, err := KeyFromMnemonic(bip84Mnemonic, "", "m/84'/x/0", &chaincfg.TestNet3Params)
	assert.ErrorContains(t, err, "invalid path component")
}

func signOnce(t *testing.T, s Signer) error {
	t.Helper()
	pkScript, err := txscript.PayToAddrScript(s.Address())
	require.NoError(t, err)
	prevOut := wire.NewTxOut(50000, pkScript)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{1}, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(49000, pkScript))

	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, 50000)
	hashes := txscript.NewTxSigHashes(tx, fetcher)
	w, err := s.SignP2WPKH(tx, 0, prevOut, hashes)
	if err != nil {
		return err
	}
	tx.TxIn[0].Witness = w

	vm, err := txscript.NewEngine(pkScript, tx, 0, txscript.StandardVerifyFlags, nil, hashes, 50000, fetcher)
	require.NoError(t, err)
	return vm.Execute()
}

func TestVaultSealOpenSign(t *testing.T) {
	params := &chaincfg.TestNet3Params
	k, err := GenerateKey(params)
	require.NoError(t, err)

	v, err := Seal(k.WIF, "correct horse", params)
	require.NoError(t, err)
	assert.Equal(t, k.Address, v.Address)
	assert.NotContains(t, string(v.Box), k.WIF)

	path := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, v.Save(path))
	loaded, err := LoadVault(path)
	require.NoError(t, err)

	_, err = loaded.Open("wrong", time.Minute, params)
	assert.ErrorIs(t, err, ErrBadPassphrase)

	sess, err := loaded.Open("correct horse", time.Minute, params)
	require.NoError(t, err)
	assert.Equal(t, k.Address, sess.Address().EncodeAddress())
	assert.NoError(t, signOnce(t, sess))

	sess.Close()
	_, err = sess.SignP2WPKH(wire.NewMsgTx(2), 0, wire.NewTxOut(1, nil), nil)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionExpires(t *testing.T) {
	params := &chaincfg.TestNet3Params
	k, err := GenerateKey(params)
	require.NoError(t, err)
	v, err := Seal(k.WIF, "pw", params)
	require.NoError(t, err)

	sess, err := v.Open("pw", time.Minute, params)
	require.NoError(t, err)
	sess.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	assert.ErrorIs(t, signOnce(t, sess), ErrSessionExpired)
}

func TestSessionKeepsAddressAfterClose(t *testing.T) {
	params := &chaincfg.TestNet3Params
	k, err := GenerateKey(params)
	require.NoError(t, err)
	v, err := Seal(k.WIF, "pw", params)
	require.NoError(t, err)

	sess, err := v.Open("pw", time.Minute, params)
	require.NoError(t, err)
	assert.False(t, sess.Expired())

	sess.Close()
	assert.True(t, sess.Expired())
	require.NotNil(t, sess.Address())
	assert.Equal(t, k.Address, sess.Address().EncodeAddress())
	assert.ErrorIs(t, signOnce(t, sess), ErrSessionExpired)
}

func TestVaultWrongNetwork(t *testing.T) {
	k, err := GenerateKey(&chaincfg.TestNet3Params)
	require.NoError(t, err)
	v, err := Seal(k.WIF, "pw", &chaincfg.TestNet3Params)
	require.NoError(t, err)

	_, err = v.Open("pw", time.Minute, &chaincfg.MainNetParams)
	assert.ErrorIs(t, err, ErrWrongNetwork)
}
