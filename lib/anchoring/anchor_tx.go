package anchoring

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/Maphikza/iqube-ops/internal/ledger"
	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/lib/explorer"
	"github.com/Maphikza/iqube-ops/lib/transaction"
)

// UTXOSource lists an address's outputs and serves raw transactions, which
// is enough to recover each output's script.
type UTXOSource interface {
	UTXOs(ctx context.Context, address string) ([]explorer.Utxo, error)
	TxHex(ctx context.Context, txid string) (string, error)
}

// FetchSignerUTXOs returns address's outputs in the signer service's shape,
// with the locking script taken from the funding transaction.
func FetchSignerUTXOs(ctx context.Context, src UTXOSource, address string) ([]ledger.UTXO, error) {
	utxos, err := src.UTXOs(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch UTXOs: %w", err)
	}

	// outputs of one funding tx share a lookup
	txs := make(map[string]*wire.MsgTx)
	out := make([]ledger.UTXO, 0, len(utxos))
	for _, u := range utxos {
		tx, ok := txs[u.TxID]
		if !ok {
			hexTx, err := src.TxHex(ctx, u.TxID)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch transaction %s: %w", u.TxID, err)
			}
			if tx, err = transaction.DecodeTx(hexTx); err != nil {
				return nil, err
			}
			txs[u.TxID] = tx
		}
		if int(u.Vout) >= len(tx.TxOut) {
			return nil, fmt.Errorf("%w: %s has no output %d", transaction.ErrPrevOutMismatch, u.TxID, u.Vout)
		}
		out = append(out, ledger.UTXO{
			TxID:         u.TxID,
			Vout:         u.Vout,
			Amount:       uint64(u.Value),
			ScriptPubKey: tx.TxOut[u.Vout].PkScript,
		})
	}
	return out, nil
}

// CreateSignBroadcastAnchor has the signer service build, sign and broadcast
// a transaction committing dataRoot, and returns the txid.
func (s *Service) CreateSignBroadcastAnchor(ctx context.Context, dataRoot string, utxos []ledger.UTXO, amount uint64, derivationPath [][]byte) (string, error) {
	txid, err := s.createSignBroadcast(ctx, dataRoot, utxos, amount, derivationPath)
	s.record(KindAnchorTx, map[string]interface{}{
		"dataRoot": dataRoot,
		"amount":   amount,
		"inputs":   len(utxos),
		"txid":     txid,
	}, err)
	return txid, err
}

func (s *Service) createSignBroadcast(ctx context.Context, dataRoot string, utxos []ledger.UTXO, amount uint64, derivationPath [][]byte) (string, error) {
	unsigned, err := s.ledger.CreateAnchorTransaction(ctx, dataRoot, utxos, amount)
	if err != nil {
		return "", fmt.Errorf("create_anchor_transaction failed: %w", err)
	}
	signed, err := s.ledger.SignTransaction(ctx, unsigned, derivationPath)
	if err != nil {
		return "", fmt.Errorf("sign_transaction failed: %w", err)
	}
	txid, err := s.ledger.BroadcastTransaction(ctx, signed.RawTx)
	if err != nil {
		return "", fmt.Errorf("broadcast_transaction failed: %w", err)
	}
	logger.Info("Anchor transaction broadcast", "data_root", dataRoot, "txid", txid)
	return txid, nil
}
