package explorer

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the explorer has no record of a transaction.
var ErrNotFound = errors.New("not found")

// Utxo is an unspent output as reported by an esplora-compatible explorer.
type Utxo struct {
	TxID   string   `json:"txid"`
	Vout   uint32   `json:"vout"`
	Value  int64    `json:"value"`
	Status TxStatus `json:"status"`
}

type TxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
	BlockTime   int64  `json:"block_time,omitempty"`
}

// FeeEstimates maps a confirmation target in blocks ("1", "2", ...) to a
// fee rate in sat/vB.
type FeeEstimates map[string]float64

// Response is a raw upstream reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// UpstreamError carries a non-2xx explorer reply verbatim.
type UpstreamError struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.Body)
}

// Depth is the confirmation state of one transaction.
type Depth struct {
	Confirmations int64
	BlockHeight   int64
}

// Anchored reports whether the transaction is buried at least requiredDepth
// blocks deep. A non-positive requiredDepth only asks for one confirmation.
func (d Depth) Anchored(requiredDepth int64) bool {
	if requiredDepth < 1 {
		requiredDepth = 1
	}
	return d.Confirmations >= requiredDepth
}
