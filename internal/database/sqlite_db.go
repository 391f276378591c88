package opsdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	oplog "github.com/Maphikza/iqube-ops/internal/logger"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store wraps the SQLite database holding the result log, broadcast records,
// login challenges and metadata.
type Store struct {
	db *gorm.DB
}

// InitSQLiteDB opens (creating if needed) the database at dbPath and migrates
// the schema. ":memory:" gives a private in-memory database.
func InitSQLiteDB(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
	}

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(
		&SQLiteResult{},
		&SQLiteBroadcast{},
		&SQLiteChallenge{},
		&SQLiteMetadata{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	oplog.Info("SQLite database initialized", "path", dbPath)
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordResult appends an entry to the result log. A non-nil opErr marks the
// entry as an error.
func (s *Store) RecordResult(kind string, data interface{}, opErr error) error {
	row := SQLiteResult{Type: kind, Status: ResultSuccess}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode result data: %w", err)
		}
		row.Data = string(payload)
	}
	if opErr != nil {
		row.Status = ResultError
		row.Error = opErr.Error()
	}
	return s.db.Create(&row).Error
}

// RecentResults returns the newest limit entries, newest first.
func (s *Store) RecentResults(limit int) ([]Result, error) {
	var rows []SQLiteResult
	if err := s.db.Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, r := range rows {
		res := Result{
			ID:        r.ID,
			Type:      r.Type,
			Status:    r.Status,
			Error:     r.Error,
			CreatedAt: r.CreatedAt,
		}
		if r.Data != "" {
			res.Data = json.RawMessage(r.Data)
		}
		results = append(results, res)
	}
	return results, nil
}

// SaveBroadcast stores a newly built transaction.
func (s *Store) SaveBroadcast(b Broadcast) error {
	row := SQLiteBroadcast{
		TxID:        b.TxID,
		RawTx:       b.RawTx,
		Address:     b.Address,
		FeeRate:     b.FeeRate,
		Fee:         b.Fee,
		InputValue:  b.InputValue,
		OutputValue: b.OutputValue,
		Status:      b.Status,
		Detail:      b.Detail,
	}
	if row.Status == "" {
		row.Status = BroadcastBuilt
	}
	return s.db.Create(&row).Error
}

// UpdateBroadcastStatus records the outcome of a broadcast attempt.
func (s *Store) UpdateBroadcastStatus(txid, status, detail string) error {
	result := s.db.Model(&SQLiteBroadcast{}).
		Where("tx_id = ?", txid).
		Updates(map[string]interface{}{
			"status": status,
			"detail": detail,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBroadcast looks up a stored transaction by txid.
func (s *Store) GetBroadcast(txid string) (*Broadcast, error) {
	var row SQLiteBroadcast
	if err := s.db.Where("tx_id = ?", txid).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Broadcast{
		TxID:        row.TxID,
		RawTx:       row.RawTx,
		Address:     row.Address,
		FeeRate:     row.FeeRate,
		Fee:         row.Fee,
		InputValue:  row.InputValue,
		OutputValue: row.OutputValue,
		Status:      row.Status,
		Detail:      row.Detail,
		CreatedAt:   row.CreatedAt,
	}, nil
}

// SaveChallenge stores a login challenge
func (s *Store) SaveChallenge(challenge Challenge) error {
	row := SQLiteChallenge{
		Challenge: challenge.Challenge,
		Hash:      challenge.Hash,
		Status:    challenge.Status,
		Npub:      challenge.Npub,
		CreatedAt: challenge.CreatedAt,
	}

	if !challenge.UsedAt.IsZero() {
		row.UsedAt = &challenge.UsedAt
	}

	if !challenge.ExpiredAt.IsZero() {
		row.ExpiredAt = &challenge.ExpiredAt
	}

	return s.db.Create(&row).Error
}

// GetChallenge retrieves a challenge by its hash
func (s *Store) GetChallenge(hash string) (*Challenge, error) {
	var row SQLiteChallenge

	if err := s.db.Where("hash = ?", hash).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	challenge := Challenge{
		Challenge: row.Challenge,
		Hash:      row.Hash,
		Status:    row.Status,
		Npub:      row.Npub,
		CreatedAt: row.CreatedAt,
	}

	if row.UsedAt != nil {
		challenge.UsedAt = *row.UsedAt
	}

	if row.ExpiredAt != nil {
		challenge.ExpiredAt = *row.ExpiredAt
	}

	return &challenge, nil
}

// MarkChallengeAsUsed flips a challenge to used
func (s *Store) MarkChallengeAsUsed(hash string) error {
	now := time.Now()

	result := s.db.Model(&SQLiteChallenge{}).
		Where("hash = ?", hash).
		Updates(map[string]interface{}{
			"status":  ChallengeUsed,
			"used_at": now,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ExpireOldChallenges marks unused challenges older than maxAge as expired
func (s *Store) ExpireOldChallenges(maxAge time.Duration) error {
	now := time.Now()
	return s.db.Model(&SQLiteChallenge{}).
		Where("status = ? AND created_at < ?", ChallengeUnused, now.Add(-maxAge)).
		Updates(map[string]interface{}{
			"status":     ChallengeExpired,
			"expired_at": now,
		}).Error
}

// SetMetadata upserts a key/value pair.
func (s *Store) SetMetadata(key, value string) error {
	var row SQLiteMetadata
	err := s.db.Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&SQLiteMetadata{Key: key, Value: value}).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&row).Update("value", value).Error
}

// GetMetadata returns the value stored under key.
func (s *Store) GetMetadata(key string) (string, error) {
	var row SQLiteMetadata
	if err := s.db.Where("key = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return row.Value, nil
}
