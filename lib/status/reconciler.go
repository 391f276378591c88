package status

import (
	"context"
	"encoding/hex"

	"github.com/Maphikza/iqube-ops/internal/ledger"
	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/internal/metrics"
)

// Reconciler derives anchor and dual-lock status from the ledger services.
// Statuses are computed on every call and never cached.
type Reconciler struct {
	batches       BatchReader
	messages      MessageReader
	depth         DepthResolver
	mode          MatchMode
	requiredDepth int64
}

type Option func(*Reconciler)

func WithMatchMode(m MatchMode) Option {
	return func(r *Reconciler) { r.mode = m }
}

// WithDepthResolver replaces the fixed confirmation count of anchored
// batches with the depth reported by d.
func WithDepthResolver(d DepthResolver) Option {
	return func(r *Reconciler) { r.depth = d }
}

func WithRequiredDepth(n int64) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.requiredDepth = n
		}
	}
}

func NewReconciler(batches BatchReader, messages MessageReader, opts ...Option) *Reconciler {
	r := &Reconciler{
		batches:       batches,
		messages:      messages,
		mode:          MatchLatest,
		requiredDepth: AnchoredConfirmations,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) Mode() MatchMode { return r.mode }

func last8(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[len(s)-8:]
}

func first12(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12]
}

// GetAnchorStatus never fails; an unreachable service yields a
// SourceFallback status.
func (r *Reconciler) GetAnchorStatus(ctx context.Context, id string) AnchorStatus {
	st := r.anchorStatus(ctx, id)
	st.RequiredDepth = r.requiredDepth
	metrics.StatusLookups.WithLabelValues("anchor", string(st.Source)).Inc()
	return st
}

func (r *Reconciler) anchorStatus(ctx context.Context, id string) AnchorStatus {
	batches, err := r.batches.GetBatches(ctx)
	if err != nil {
		logger.Warn("Failed to get real anchor status, using fallback", "id", id, "error", err)
		return anchorFallback(id, SourceFallback)
	}
	if len(batches) == 0 {
		return anchorFallback(id, SourceEmpty)
	}

	var batch ledger.MerkleBatch
	if r.mode == MatchExact {
		found := false
		for i := len(batches) - 1; i >= 0; i-- {
			if batches[i].Root == id || batches[i].HasReceipt(id) {
				batch, found = batches[i], true
				break
			}
		}
		if !found {
			return AnchorStatus{Source: SourceNotFound}
		}
	} else {
		batch = batches[len(batches)-1]
	}

	if batch.BitcoinAnchorTxID == nil || *batch.BitcoinAnchorTxID == "" {
		return AnchorStatus{
			TransactionHash: "pending_anchor_" + first12(batch.Root),
			Source:          SourcePending,
		}
	}

	st := AnchorStatus{
		TransactionHash:   *batch.BitcoinAnchorTxID,
		ConfirmationCount: AnchoredConfirmations,
		BlockHeight:       DefaultAnchorHeight,
		Confirmed:         true,
		Source:            SourceLive,
	}
	if batch.BitcoinBlockHeight != nil && *batch.BitcoinBlockHeight != 0 {
		st.BlockHeight = int64(*batch.BitcoinBlockHeight)
	}
	r.resolveDepth(ctx, &st)
	return st
}

// resolveDepth overwrites the recorded confirmation data with the explorer's
// when the anchor id is a real txid. Lookup failures keep the recorded values.
func (r *Reconciler) resolveDepth(ctx context.Context, st *AnchorStatus) {
	if r.depth == nil || !isTxID(st.TransactionHash) {
		return
	}
	d, err := r.depth.Confirmations(ctx, st.TransactionHash)
	if err != nil {
		logger.Warn("Failed to resolve anchor depth", "txid", st.TransactionHash, "error", err)
		return
	}
	st.ConfirmationCount = d.Confirmations
	if d.BlockHeight != 0 {
		st.BlockHeight = d.BlockHeight
	}
	st.Confirmed = d.Confirmations >= r.requiredDepth
}

func isTxID(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func anchorFallback(id string, src Source) AnchorStatus {
	return AnchorStatus{
		TransactionHash:   "mock_btc_txid_" + last8(id),
		ConfirmationCount: AnchoredConfirmations,
		BlockHeight:       FallbackAnchorHeight,
		Confirmed:         true,
		Source:            src,
	}
}

// GetDualLockStatus never fails; an unreachable service yields a
// SourceFallback status.
func (r *Reconciler) GetDualLockStatus(ctx context.Context, id string) DualLockStatus {
	st, err := r.dualLockStatus(ctx, id)
	if err != nil {
		logger.Warn("Failed to get real dual lock status, using fallback", "id", id, "error", err)
		st = DualLockStatus{
			EVMTransactionHash: "mock_evm_tx_hash_" + last8(id),
			ICPReceiptID:       "mock_icp_receipt_" + last8(id),
			Locked:             true,
			Source:             SourceFallback,
		}
	}
	st.UnlockHeight = UnlockHeight
	metrics.StatusLookups.WithLabelValues("dual_lock", string(st.Source)).Inc()
	return st
}

func (r *Reconciler) dualLockStatus(ctx context.Context, id string) (DualLockStatus, error) {
	pending, err := r.messages.GetPendingMessages(ctx)
	if err != nil {
		return DualLockStatus{}, err
	}

	if r.mode == MatchExact {
		for _, m := range pending {
			if m.ID == id {
				return pendingLock(m), nil
			}
		}
	} else if len(pending) > 0 {
		return pendingLock(pending[0]), nil
	}

	ready, err := r.messages.GetReadyMessages(ctx)
	if err != nil {
		return DualLockStatus{}, err
	}

	if r.mode == MatchExact {
		for i := len(ready) - 1; i >= 0; i-- {
			if ready[i].ID == id {
				return readyLock(ready[i]), nil
			}
		}
		if len(pending) > 0 || len(ready) > 0 {
			return DualLockStatus{Source: SourceNotFound}, nil
		}
	} else if len(ready) > 0 {
		return readyLock(ready[len(ready)-1]), nil
	}

	return DualLockStatus{
		EVMTransactionHash: "live_no_pending_messages",
		ICPReceiptID:       "live_cross_chain_empty",
		Source:             SourceEmpty,
	}, nil
}

// pendingLock and readyLock substitute placeholder ids for a message that
// arrived without one.
func pendingLock(m ledger.DVNMessage) DualLockStatus {
	return DualLockStatus{
		EVMTransactionHash: "live_evm_tx_" + orDefault(last8(m.ID), "pending"),
		ICPReceiptID:       orDefault(m.ID, "live_icp_receipt"),
		Locked:             false,
		Source:             SourceLive,
	}
}

func readyLock(m ledger.DVNMessage) DualLockStatus {
	return DualLockStatus{
		EVMTransactionHash: "live_cross_chain_" + orDefault(last8(m.ID), "ready"),
		ICPReceiptID:       orDefault(m.ID, "live_ready_receipt"),
		Locked:             true,
		Source:             SourceLive,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
