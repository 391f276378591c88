package opsdb

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := InitSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordResultAndRecent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordResult("submit", map[string]string{"receiptId": "r1"}, nil))
	require.NoError(t, s.RecordResult("mint", nil, errors.New("canister unreachable")))

	results, err := s.RecentResults(10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "mint", results[0].Type)
	assert.Equal(t, ResultError, results[0].Status)
	assert.Equal(t, "canister unreachable", results[0].Error)
	assert.Empty(t, results[0].Data)

	assert.Equal(t, "submit", results[1].Type)
	assert.Equal(t, ResultSuccess, results[1].Status)
	assert.JSONEq(t, `{"receiptId":"r1"}`, string(results[1].Data))
}

func TestRecentResultsLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 12; i++ {
		require.NoError(t, s.RecordResult("anchor", i, nil))
	}
	results, err := s.RecentResults(10)
	require.NoError(t, err)
	assert.Len(t, results, 10)
	assert.JSONEq(t, `11`, string(results[0].Data))
}

func TestBroadcastLifecycle(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveBroadcast(Broadcast{
		TxID:        "abc",
		RawTx:       "0200",
		Address:     "tb1qexample",
		FeeRate:     5,
		Fee:         550,
		InputValue:  50000,
		OutputValue: 49350,
	}))

	b, err := s.GetBroadcast("abc")
	require.NoError(t, err)
	assert.Equal(t, BroadcastBuilt, b.Status)
	assert.Equal(t, int64(49350), b.OutputValue)

	require.NoError(t, s.UpdateBroadcastStatus("abc", BroadcastSent, "abc"))
	b, err = s.GetBroadcast("abc")
	require.NoError(t, err)
	assert.Equal(t, BroadcastSent, b.Status)

	assert.ErrorIs(t, s.UpdateBroadcastStatus("missing", BroadcastFailed, ""), ErrNotFound)
	_, err = s.GetBroadcast("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChallengeLifecycle(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveChallenge(Challenge{
		Challenge: "nonce",
		Hash:      "h1",
		Status:    ChallengeUnused,
		CreatedAt: time.Now(),
	}))

	c, err := s.GetChallenge("h1")
	require.NoError(t, err)
	assert.Equal(t, ChallengeUnused, c.Status)

	require.NoError(t, s.MarkChallengeAsUsed("h1"))
	c, err = s.GetChallenge("h1")
	require.NoError(t, err)
	assert.Equal(t, ChallengeUsed, c.Status)
	assert.False(t, c.UsedAt.IsZero())

	assert.ErrorIs(t, s.MarkChallengeAsUsed("nope"), ErrNotFound)
}

func TestMetadataUpsert(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetMetadata(LastAddressKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetMetadata(LastAddressKey, "tb1qa"))
	require.NoError(t, s.SetMetadata(LastAddressKey, "tb1qb"))

	v, err := s.GetMetadata(LastAddressKey)
	require.NoError(t, err)
	assert.Equal(t, "tb1qb", v)
}
