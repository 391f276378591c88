package transaction

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil"

	opsdb "github.com/Maphikza/iqube-ops/internal/database"
	"github.com/Maphikza/iqube-ops/lib/explorer"
)

const (
	RBFSequenceNumber = 0xffffffff - 2
	DustThreshold     = btcutil.Amount(546) // satoshis
	DefaultFeeRate    = int64(5)            // sat/vB
	FeeBuffer         = btcutil.Amount(100) // satoshis kept on top of the fee

	TxOverheadVSize   = 11
	P2WPKHInputVSize  = 68
	P2WPKHOutputVSize = 31
)

// FeePolicy holds the spend parameters an operator may tune. A zero
// DefaultFeeRate or DustLimit, or a negative FeeBuffer, means the package
// default.
type FeePolicy struct {
	DefaultFeeRate int64          // sat/vB used when no estimate is usable
	FeeBuffer      btcutil.Amount // kept on top of the fee
	DustLimit      btcutil.Amount // outputs at or below are rejected
}

// DefaultFeePolicy returns the package defaults.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{DefaultFeeRate: DefaultFeeRate, FeeBuffer: FeeBuffer, DustLimit: DustThreshold}
}

func (p FeePolicy) withDefaults() FeePolicy {
	if p.DefaultFeeRate <= 0 {
		p.DefaultFeeRate = DefaultFeeRate
	}
	if p.FeeBuffer < 0 {
		p.FeeBuffer = FeeBuffer
	}
	if p.DustLimit <= 0 {
		p.DustLimit = DustThreshold
	}
	return p
}

var (
	ErrNoUTXOs         = errors.New("no UTXOs available for address")
	ErrDustOutput      = errors.New("output would be at or below the dust threshold")
	ErrPrevOutMismatch = errors.New("previous transaction does not match UTXO")
)

// ChainSource provides the chain data needed to assemble and publish a
// transaction. explorer.ProxyClient, explorer.Esplora and explorer.Indexer
// all satisfy it.
type ChainSource interface {
	FeeEstimates(ctx context.Context) (explorer.FeeEstimates, error)
	UTXOs(ctx context.Context, address string) ([]explorer.Utxo, error)
	TxHex(ctx context.Context, txid string) (string, error)
	Broadcast(ctx context.Context, txHex string) (string, error)
}

// Recorder keeps a record of every transaction before and after broadcast.
type Recorder interface {
	SaveBroadcast(b opsdb.Broadcast) error
	UpdateBroadcastStatus(txid, status, detail string) error
}

// Plan is the spend decided before signing.
type Plan struct {
	Address string         `json:"address"`
	UTXO    explorer.Utxo  `json:"utxo"`
	FeeRate int64          `json:"fee_rate"`
	VSize   int64          `json:"vsize"`
	Fee     btcutil.Amount `json:"fee"`
	Output  btcutil.Amount `json:"output"`
}

// Result describes a signed and broadcast transaction.
type Result struct {
	TxID  string `json:"txid"`
	RawTx string `json:"raw_tx"`
	Plan  Plan   `json:"plan"`
}
