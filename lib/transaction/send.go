package transaction

import (
	"context"
	"errors"
	"fmt"

	opsdb "github.com/Maphikza/iqube-ops/internal/database"
	"github.com/Maphikza/iqube-ops/internal/keyvault"
	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/internal/metrics"
	"github.com/Maphikza/iqube-ops/lib/explorer"
)

// Sender runs the full flow: discover UTXOs, look up fees, select, build,
// sign and broadcast. Steps are not retried.
type Sender struct {
	src       ChainSource
	recorder  Recorder
	EnableRBF bool
	Policy    FeePolicy
}

// NewSender returns a Sender over src with the default fee policy. recorder
// may be nil.
func NewSender(src ChainSource, recorder Recorder) *Sender {
	return &Sender{src: src, recorder: recorder, Policy: DefaultFeePolicy()}
}

// Prepare discovers UTXOs and fees for address and returns the spend plan.
func (s *Sender) Prepare(ctx context.Context, address string) (Plan, error) {
	utxos, err := s.src.UTXOs(ctx, address)
	if err != nil {
		logger.Error("Failed to fetch UTXOs", "address", address, "error", err)
		return Plan{}, fmt.Errorf("failed to fetch UTXOs: %w", err)
	}
	logger.Info("Found unspent outputs", "address", address, "count", len(utxos))

	feeRate := s.Policy.FeeRate(ctx, s.src)
	plan, err := s.Policy.PlanSpend(address, utxos, feeRate)
	if err != nil {
		logger.Error("Failed to plan spend", "address", address, "error", err)
		return plan, err
	}
	logger.Info("Selected UTXO", "txid", plan.UTXO.TxID, "vout", plan.UTXO.Vout, "value", plan.UTXO.Value,
		"fee_rate", plan.FeeRate, "fee", int64(plan.Fee), "output", int64(plan.Output))
	return plan, nil
}

// Send spends the largest UTXO of signer's address back to itself.
func (s *Sender) Send(ctx context.Context, signer keyvault.Signer) (*Result, error) {
	if exp, ok := signer.(interface{ Expired() bool }); ok && exp.Expired() {
		return nil, keyvault.ErrSessionExpired
	}
	addr := signer.Address()
	if addr == nil {
		return nil, keyvault.ErrSessionExpired
	}
	address := addr.EncodeAddress()

	plan, err := s.Prepare(ctx, address)
	if err != nil {
		return nil, err
	}

	prevHex, err := s.src.TxHex(ctx, plan.UTXO.TxID)
	if err != nil {
		logger.Error("Failed to fetch previous transaction", "txid", plan.UTXO.TxID, "error", err)
		return nil, fmt.Errorf("failed to fetch previous transaction: %w", err)
	}
	prevTx, err := DecodeTx(prevHex)
	if err != nil {
		return nil, err
	}

	tx, err := BuildAndSign(plan, prevTx, signer, s.EnableRBF)
	if err != nil {
		return nil, err
	}
	rawTx, err := EncodeTx(tx)
	if err != nil {
		return nil, err
	}
	txid := tx.TxHash().String()
	metrics.TransactionsBuilt.Inc()

	if s.recorder != nil {
		if err := s.recorder.SaveBroadcast(opsdb.Broadcast{
			TxID:        txid,
			RawTx:       rawTx,
			Address:     address,
			FeeRate:     plan.FeeRate,
			Fee:         int64(plan.Fee),
			InputValue:  plan.UTXO.Value,
			OutputValue: int64(plan.Output),
		}); err != nil {
			logger.Warn("Failed to record transaction", "txid", txid, "error", err)
		}
	}

	broadcastID, err := s.src.Broadcast(ctx, rawTx)
	if err != nil {
		metrics.TransactionsBroadcast.WithLabelValues("failed").Inc()
		s.updateRecord(txid, opsdb.BroadcastFailed, err.Error())
		logger.Error("Broadcast failed", "txid", txid, "error", err)

		var ue *explorer.UpstreamError
		if errors.As(err, &ue) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	metrics.TransactionsBroadcast.WithLabelValues("ok").Inc()
	s.updateRecord(txid, opsdb.BroadcastSent, broadcastID)
	logger.Info("Transaction broadcast", "txid", txid, "reported_txid", broadcastID)

	if broadcastID != "" {
		txid = broadcastID
	}
	return &Result{TxID: txid, RawTx: rawTx, Plan: plan}, nil
}

func (s *Sender) updateRecord(txid, status, detail string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.UpdateBroadcastStatus(txid, status, detail); err != nil {
		logger.Warn("Failed to update transaction record", "txid", txid, "error", err)
	}
}
