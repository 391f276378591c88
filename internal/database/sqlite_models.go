package opsdb

import (
	"time"

	"gorm.io/gorm"
)

// SQLiteResult is one entry of the operations result log
type SQLiteResult struct {
	gorm.Model
	Type   string `gorm:"index"`
	Status string `gorm:"index"` // success or error
	Data   string // JSON payload
	Error  string
}

// SQLiteBroadcast stores a locally assembled transaction and its broadcast outcome
type SQLiteBroadcast struct {
	gorm.Model
	TxID        string `gorm:"uniqueIndex"`
	RawTx       string
	Address     string `gorm:"index"`
	FeeRate     int64
	Fee         int64
	InputValue  int64
	OutputValue int64
	Status      string `gorm:"index"` // built, broadcast, failed
	Detail      string
}

// SQLiteChallenge represents an auth challenge
type SQLiteChallenge struct {
	gorm.Model
	Challenge string    `gorm:"uniqueIndex"`
	Hash      string    `gorm:"uniqueIndex"`
	Status    string    `gorm:"index"` // unused, used, expired
	Npub      string    `gorm:"index"`
	CreatedAt time.Time `gorm:"index"`
	UsedAt    *time.Time
	ExpiredAt *time.Time
}

// SQLiteMetadata stores miscellaneous key/value pairs
type SQLiteMetadata struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex"`
	Value string
}
