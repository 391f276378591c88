package opsdb

import (
	"encoding/json"
	"time"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"

	BroadcastBuilt  = "built"
	BroadcastSent   = "broadcast"
	BroadcastFailed = "failed"

	ChallengeUnused  = "unused"
	ChallengeUsed    = "used"
	ChallengeExpired = "expired"

	LastAddressKey = "last_btc_address"
)

// Result is an entry in the result log shown to operators.
type Result struct {
	ID        uint            `json:"id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"timestamp"`
}

type Broadcast struct {
	TxID        string    `json:"txid"`
	RawTx       string    `json:"raw_tx"`
	Address     string    `json:"address"`
	FeeRate     int64     `json:"fee_rate"`
	Fee         int64     `json:"fee"`
	InputValue  int64     `json:"input_value"`
	OutputValue int64     `json:"output_value"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Challenge struct {
	Challenge string    `json:"challenge"`
	Hash      string    `json:"hash"`
	Status    string    `json:"status"` // "unused", "used", "expired"
	Npub      string    `json:"npub"`
	CreatedAt time.Time `json:"created_at"`
	UsedAt    time.Time `json:"used_at,omitempty"`
	ExpiredAt time.Time `json:"expired_at,omitempty"`
}
