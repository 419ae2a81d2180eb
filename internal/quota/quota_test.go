package quota

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerCountsDistinctAddresses(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	for i, addr := range []string{"addr1", "addr2", "addr3"} {
		allowed, used, err := ledger.Record(ctx, "user1", "free", addr, 5)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i+1, used)
	}
}

func TestMemoryLedgerRepeatAddressIsFree(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	_, _, err := ledger.Record(ctx, "user1", "free", "addr1", 1)
	require.NoError(t, err)

	// The limit is exhausted, but the same address stays allowed.
	allowed, used, err := ledger.Record(ctx, "user1", "free", "addr1", 1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, used)
}

func TestMemoryLedgerRejectsOverLimit(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	_, _, err := ledger.Record(ctx, "user1", "free", "addr1", 1)
	require.NoError(t, err)

	allowed, used, err := ledger.Record(ctx, "user1", "free", "addr2", 1)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 1, used)
}

func TestMemoryLedgerIsolatesUsersAndTiers(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	_, _, err := ledger.Record(ctx, "user1", "free", "addr1", 1)
	require.NoError(t, err)

	allowed, _, err := ledger.Record(ctx, "user2", "free", "addr2", 1)
	require.NoError(t, err)
	assert.True(t, allowed, "other users have their own bucket")

	allowed, _, err = ledger.Record(ctx, "user1", "pro", "addr2", 1)
	require.NoError(t, err)
	assert.True(t, allowed, "tiers have separate buckets")
}

func TestMemoryLedgerExhaustedQuotaSurvivesOtherUsers(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	_, _, err := ledger.Record(ctx, "user1", "free", "addr1", 1)
	require.NoError(t, err)

	// user2's first record of the day must not reset user1's bucket.
	allowed, _, err := ledger.Record(ctx, "user2", "free", "addr1", 1)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, used, err := ledger.Record(ctx, "user1", "free", "addr2", 1)
	require.NoError(t, err)
	assert.False(t, allowed, "user1's exhausted allowance must hold")
	assert.Equal(t, 1, used)

	// Same for a tier change mid-day.
	_, _, err = ledger.Record(ctx, "user1", "pro", "addr3", 1)
	require.NoError(t, err)

	allowed, used, err = ledger.Record(ctx, "user1", "free", "addr2", 1)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 1, used)
}

func TestMemoryLedgerResetsOnNewDay(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	day := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return day }

	_, _, err := ledger.Record(ctx, "user1", "free", "addr1", 1)
	require.NoError(t, err)

	ledger.now = func() time.Time { return day.Add(2 * time.Hour) }

	allowed, used, err := ledger.Record(ctx, "user1", "free", "addr2", 1)
	require.NoError(t, err)
	assert.True(t, allowed, "new UTC day starts a fresh allowance")
	assert.Equal(t, 1, used)
}

func TestRedisLedgerRecord(t *testing.T) {
	client, mock := redismock.NewClientMock()
	ledger := NewRedisLedger(client)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	key := "quota:user1:free:2025-06-01"
	ttl := int(untilNextUTCDay(now).Seconds())
	mock.ExpectEvalSha(recordScript.Hash(), []string{key}, "addr1", 5, ttl).
		SetVal([]interface{}{int64(1), int64(3)})

	allowed, used, err := ledger.Record(context.Background(), "user1", "free", "addr1", 5)

	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 3, used)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedgerRejection(t *testing.T) {
	client, mock := redismock.NewClientMock()
	ledger := NewRedisLedger(client)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	key := "quota:user1:free:2025-06-01"
	ttl := int(untilNextUTCDay(now).Seconds())
	mock.ExpectEvalSha(recordScript.Hash(), []string{key}, "addr9", 5, ttl).
		SetVal([]interface{}{int64(0), int64(5)})

	allowed, used, err := ledger.Record(context.Background(), "user1", "free", "addr9", 5)

	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 5, used)
	assert.NoError(t, mock.ExpectationsWereMet())
}
