package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Maphikza/iqube-ops/internal/logger"
)

// FeeRecommendation is mempool.space's /v1/fees/recommended reply.
type FeeRecommendation struct {
	FastestFee  int `json:"fastestFee"`
	HalfHourFee int `json:"halfHourFee"`
	HourFee     int `json:"hourFee"`
	EconomyFee  int `json:"economyFee"`
	MinimumFee  int `json:"minimumFee"`
}

// Indexer reads chain state from a primary explorer and retries once on a
// secondary when the primary fails. A not-found reply is final.
type Indexer struct {
	primary   *Esplora
	secondary *Esplora
}

func NewIndexer(primary, secondary *Esplora) *Indexer {
	return &Indexer{primary: primary, secondary: secondary}
}

func withFailover[T any](ix *Indexer, op string, fn func(*Esplora) (T, error)) (T, error) {
	v, err := fn(ix.primary)
	if err == nil || ix.secondary == nil || errors.Is(err, ErrNotFound) {
		return v, err
	}
	logger.Warn("Primary explorer failed, trying secondary", "op", op, "primary", ix.primary.BaseURL(), "error", err)
	return fn(ix.secondary)
}

func (ix *Indexer) FeeEstimates(ctx context.Context) (FeeEstimates, error) {
	return withFailover(ix, "fee-estimates", func(e *Esplora) (FeeEstimates, error) { return e.FeeEstimates(ctx) })
}

func (ix *Indexer) UTXOs(ctx context.Context, address string) ([]Utxo, error) {
	return withFailover(ix, "utxos", func(e *Esplora) ([]Utxo, error) { return e.UTXOs(ctx, address) })
}

func (ix *Indexer) TxHex(ctx context.Context, txid string) (string, error) {
	return withFailover(ix, "txhex", func(e *Esplora) (string, error) { return e.TxHex(ctx, txid) })
}

func (ix *Indexer) TxStatus(ctx context.Context, txid string) (TxStatus, error) {
	return withFailover(ix, "tx-status", func(e *Esplora) (TxStatus, error) { return e.TxStatus(ctx, txid) })
}

func (ix *Indexer) TipHeight(ctx context.Context) (int64, error) {
	return withFailover(ix, "tip-height", func(e *Esplora) (int64, error) { return e.TipHeight(ctx) })
}

func (ix *Indexer) Confirmations(ctx context.Context, txid string) (Depth, error) {
	return withFailover(ix, "confirmations", func(e *Esplora) (Depth, error) { return e.Confirmations(ctx, txid) })
}

// Broadcast tries each explorer in turn. An explorer that rejects the
// transaction outright is not retried elsewhere.
func (ix *Indexer) Broadcast(ctx context.Context, txHex string) (string, error) {
	txid, err := ix.primary.Broadcast(ctx, txHex)
	if err == nil || ix.secondary == nil {
		return txid, err
	}
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Status < 500 {
		return "", err
	}
	logger.Warn("Broadcast via primary failed, trying secondary", "error", err)
	return ix.secondary.Broadcast(ctx, txHex)
}

// WaitForConfirmations polls until txid reaches requiredDepth, an error
// occurs or ctx ends.
func (ix *Indexer) WaitForConfirmations(ctx context.Context, txid string, requiredDepth int64, interval time.Duration) (Depth, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		d, err := ix.Confirmations(ctx, txid)
		if err != nil {
			return Depth{}, err
		}
		if d.Anchored(requiredDepth) {
			return d, nil
		}
		logger.Debug("Waiting for confirmations", "txid", txid, "have", d.Confirmations, "want", requiredDepth)

		select {
		case <-ctx.Done():
			return d, ctx.Err()
		case <-ticker.C:
		}
	}
}

// RecommendedFees reads mempool.space's fee recommendation from mempool.
func RecommendedFees(ctx context.Context, mempool *Esplora) (FeeRecommendation, error) {
	resp, err := mempool.Get(ctx, "v1", "fees", "recommended")
	if err != nil {
		return FeeRecommendation{}, err
	}
	if err := upstream(resp); err != nil {
		return FeeRecommendation{}, err
	}
	var rec FeeRecommendation
	if err := json.Unmarshal(resp.Body, &rec); err != nil {
		return FeeRecommendation{}, fmt.Errorf("failed to decode fee recommendation: %w", err)
	}
	return rec, nil
}
