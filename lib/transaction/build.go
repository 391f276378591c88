package transaction

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Maphikza/iqube-ops/internal/keyvault"
	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/lib/explorer"
)

// PlanSpend picks the largest UTXO and sizes a one-in, one-out spend back to
// address using the default fee policy.
func PlanSpend(address string, utxos []explorer.Utxo, feeRate int64) (Plan, error) {
	return DefaultFeePolicy().PlanSpend(address, utxos, feeRate)
}

// PlanSpend sizes the spend with the policy's fee buffer and dust limit.
func (p FeePolicy) PlanSpend(address string, utxos []explorer.Utxo, feeRate int64) (Plan, error) {
	p = p.withDefaults()
	utxo, err := SelectLargest(utxos)
	if err != nil {
		return Plan{}, err
	}

	vsize := EstimateVSize(1, 1)
	fee := btcutil.Amount(vsize * feeRate)
	output := btcutil.Amount(utxo.Value) - fee - p.FeeBuffer

	plan := Plan{
		Address: address,
		UTXO:    utxo,
		FeeRate: feeRate,
		VSize:   vsize,
		Fee:     fee,
		Output:  output,
	}
	if output <= p.DustLimit {
		return plan, fmt.Errorf("%w: input %d, fee %d, output %d", ErrDustOutput, utxo.Value, int64(fee), int64(output))
	}
	return plan, nil
}

// DecodeTx parses a raw transaction hex string.
func DecodeTx(txHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(txHex))
	if err != nil {
		return nil, fmt.Errorf("invalid transaction hex: %w", err)
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}
	return &tx, nil
}

// EncodeTx serializes tx to hex.
func EncodeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// BuildAndSign assembles the transaction for plan, spending an output of
// prevTx, and signs it with signer.
func BuildAndSign(plan Plan, prevTx *wire.MsgTx, signer keyvault.Signer, enableRBF bool) (*wire.MsgTx, error) {
	prevHash, err := chainhash.NewHashFromStr(plan.UTXO.TxID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse txid: %w", err)
	}
	if prevTx.TxHash() != *prevHash {
		return nil, fmt.Errorf("%w: fetched %s, want %s", ErrPrevOutMismatch, prevTx.TxHash(), prevHash)
	}
	if int(plan.UTXO.Vout) >= len(prevTx.TxOut) {
		return nil, fmt.Errorf("%w: output %d missing", ErrPrevOutMismatch, plan.UTXO.Vout)
	}
	prevOut := prevTx.TxOut[plan.UTXO.Vout]
	if prevOut.Value != plan.UTXO.Value {
		return nil, fmt.Errorf("%w: value %d, want %d", ErrPrevOutMismatch, prevOut.Value, plan.UTXO.Value)
	}

	pkScript, err := txscript.PayToAddrScript(signer.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to create output script: %w", err)
	}
	if !bytes.Equal(prevOut.PkScript, pkScript) {
		return nil, fmt.Errorf("%w: output not paid to %s", ErrPrevOutMismatch, signer.Address().EncodeAddress())
	}

	tx := wire.NewMsgTx(2)
	txIn := wire.NewTxIn(wire.NewOutPoint(prevHash, plan.UTXO.Vout), nil, nil)
	if enableRBF {
		txIn.Sequence = RBFSequenceNumber
	}
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(int64(plan.Output), pkScript))

	fetcher := txscript.NewCannedPrevOutputFetcher(prevOut.PkScript, prevOut.Value)
	hashes := txscript.NewTxSigHashes(tx, fetcher)

	witness, err := signer.SignP2WPKH(tx, 0, prevOut, hashes)
	if err != nil {
		logger.Error("Failed to sign input", "error", err)
		return nil, err
	}
	tx.TxIn[0].Witness = witness

	if _, err := verifySignature(tx, 0, prevOut.PkScript, prevOut.Value); err != nil {
		logger.Error("Signature verification failed", "error", err)
		return nil, err
	}
	return tx, nil
}

func verifySignature(tx *wire.MsgTx, index int, scriptPubKey []byte, amount int64) (bool, error) {
	flags := txscript.StandardVerifyFlags
	prevOutputs := txscript.NewCannedPrevOutputFetcher(scriptPubKey, amount)

	engine, err := txscript.NewEngine(scriptPubKey, tx, index, flags, nil, nil, amount, prevOutputs)
	if err != nil {
		return false, fmt.Errorf("failed to create script engine: %w", err)
	}
	if err := engine.Execute(); err != nil {
		return false, fmt.Errorf("failed to execute script: %w", err)
	}
	return true, nil
}
