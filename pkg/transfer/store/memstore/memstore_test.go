package memstore

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/store"
)

func newRecord(now time.Time) *transfer.Record {
	return &transfer.Record{
		ID:                 uuid.NewString(),
		OwnerID:            "owner-1",
		SourceChain:        "ethereum",
		DestinationChain:   "arbitrum",
		Asset:              "USDC",
		Amount:             big.NewInt(100),
		DestinationAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Kind:               transfer.KindTransfer,
		Status:             transfer.StatusPending,
		SlippageTolerance:  decimal.RequireFromString("0.005"),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestStore_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	rec := newRecord(now)
	require.NoError(t, s.Create(ctx, rec))

	claimed, err := s.Claim(ctx, rec.ID, "a", now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "a", claimed.Claim.Owner)

	_, err = s.Claim(ctx, rec.ID, "b", now.Add(time.Second), time.Minute)
	assert.ErrorIs(t, err, transfer.ErrClaimConflict)

	list, err := s.ListClaimable(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.Renew(ctx, rec.ID, "a", now.Add(50*time.Second), time.Minute))
	// renewed lease outlives the original expiry
	_, err = s.Claim(ctx, rec.ID, "b", now.Add(90*time.Second), time.Minute)
	assert.ErrorIs(t, err, transfer.ErrClaimConflict)

	_, err = s.Claim(ctx, rec.ID, "b", now.Add(3*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Save(ctx, claimed, "a", now.Add(3*time.Minute)), transfer.ErrClaimLost)

	require.NoError(t, s.Release(ctx, rec.ID, "b"))
	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Claim)
}

func TestStore_SaveKeepsImmutableFields(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	rec := newRecord(now)
	require.NoError(t, s.Create(ctx, rec))
	claimed, err := s.Claim(ctx, rec.ID, "a", now, time.Minute)
	require.NoError(t, err)

	claimed.Amount = big.NewInt(1)
	claimed.AttemptCount = 2
	require.NoError(t, s.Save(ctx, claimed, "a", now))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Amount.Int64())
	assert.Equal(t, 2, got.AttemptCount)
	require.NotNil(t, got.Claim)
	assert.Equal(t, "a", got.Claim.Owner)
}

func TestStore_SourceEventUnique(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	idx := uint(1)

	first := newRecord(now)
	first.SourceTxHash = "0xabc"
	first.SourceLogIndex = &idx
	first.Status = transfer.StatusBridging
	require.NoError(t, s.Create(ctx, first))

	second := newRecord(now)
	require.NoError(t, s.Create(ctx, second))
	claimed, err := s.Claim(ctx, second.ID, "a", now, time.Minute)
	require.NoError(t, err)
	claimed.SourceTxHash = "0xabc"
	claimed.SourceLogIndex = &idx
	assert.ErrorIs(t, s.Save(ctx, claimed, "a", now), store.ErrDuplicateSourceEvent)

	bound, err := s.SourceEventBound(ctx, "ethereum", "0xabc", 1, second.ID)
	require.NoError(t, err)
	assert.True(t, bound)
	bound, err = s.SourceEventBound(ctx, "ethereum", "0xabc", 1, first.ID)
	require.NoError(t, err)
	assert.False(t, bound)
}

func TestStore_BackoffHidesRecords(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	rec := newRecord(now)
	next := now.Add(time.Minute)
	rec.NextAttemptAt = &next
	require.NoError(t, s.Create(ctx, rec))

	list, err := s.ListClaimable(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = s.ListClaimable(ctx, now.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_FaultInjection(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	boom := errors.New("boom")

	rec := newRecord(now)
	require.NoError(t, s.Create(ctx, rec))
	s.SetFault(func(op, _ string) error {
		if op == "claim" {
			return boom
		}
		return nil
	})
	_, err := s.Claim(ctx, rec.ID, "a", now, time.Minute)
	assert.ErrorIs(t, err, boom)

	s.SetFault(nil)
	_, err = s.Claim(ctx, rec.ID, "a", now, time.Minute)
	assert.NoError(t, err)
}

func TestStore_CancelAndRetry(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	rec := newRecord(now)
	require.NoError(t, s.Create(ctx, rec))

	_, err := s.ResetForRetry(ctx, rec.ID, now)
	assert.ErrorIs(t, err, transfer.ErrNotFailed)

	got, err := s.Cancel(ctx, rec.ID, now)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusFailed, got.Status)
	assert.Equal(t, transfer.ReasonCancelled, got.FailureReason)

	got, err = s.ResetForRetry(ctx, rec.ID, now)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusPending, got.Status)

	_, err = s.Cancel(ctx, uuid.NewString(), now)
	assert.ErrorIs(t, err, transfer.ErrNotFound)
}

func TestStore_CursorMonotonic(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	c, err := s.GetCursor(ctx, "ethereum")
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, s.SetCursor(ctx, "ethereum", 10, now))
	require.NoError(t, s.SetCursor(ctx, "ethereum", 5, now))
	c, err = s.GetCursor(ctx, "ethereum")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), c.LastHeadBlock)
}
