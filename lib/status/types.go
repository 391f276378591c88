package status

import (
	"context"

	"github.com/Maphikza/iqube-ops/internal/ledger"
	"github.com/Maphikza/iqube-ops/lib/explorer"
)

// Source says where a status value came from.
type Source string

const (
	SourceLive     Source = "live"
	SourcePending  Source = "pending"
	SourceEmpty    Source = "empty"
	SourceNotFound Source = "not_found"
	SourceFallback Source = "fallback"
)

// MatchMode selects how an id is matched against service records.
type MatchMode string

const (
	// MatchLatest ignores the id and reports on the newest record.
	MatchLatest MatchMode = "latest"
	// MatchExact reports on the record that carries the id.
	MatchExact MatchMode = "exact"
)

// ParseMatchMode maps a config value to a mode, defaulting to MatchLatest.
func ParseMatchMode(s string) MatchMode {
	if MatchMode(s) == MatchExact {
		return MatchExact
	}
	return MatchLatest
}

const (
	AnchoredConfirmations = 6
	DefaultAnchorHeight   = 800000
	FallbackAnchorHeight  = 850000
	UnlockHeight          = 851000
)

// AnchorStatus is the Bitcoin anchoring state of an iQube.
type AnchorStatus struct {
	TransactionHash   string `json:"btcTxHash"`
	ConfirmationCount int64  `json:"confirmations"`
	BlockHeight       int64  `json:"blockHeight"`
	Confirmed         bool   `json:"isConfirmed"`
	RequiredDepth     int64  `json:"requiredDepth"`
	Source            Source `json:"source"`
}

// DualLockStatus is the cross-chain lock state of an iQube.
type DualLockStatus struct {
	EVMTransactionHash string `json:"evmTxHash"`
	ICPReceiptID       string `json:"icpReceiptId"`
	Locked             bool   `json:"isLocked"`
	UnlockHeight       int64  `json:"unlockHeight"`
	Source             Source `json:"source"`
}

type BatchReader interface {
	GetBatches(ctx context.Context) ([]ledger.MerkleBatch, error)
}

type MessageReader interface {
	GetPendingMessages(ctx context.Context) ([]ledger.DVNMessage, error)
	GetReadyMessages(ctx context.Context) ([]ledger.DVNMessage, error)
}

// DepthResolver looks up the real confirmation depth of a Bitcoin txid.
type DepthResolver interface {
	Confirmations(ctx context.Context, txid string) (explorer.Depth, error)
}
