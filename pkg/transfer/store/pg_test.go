package store

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chainsafe/xchain-orchestrator/pkg/pgutil"
	mghelper "github.com/chainsafe/xchain-orchestrator/pkg/pgutil/migrations"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

func setupStore(t *testing.T) (context.Context, *pgStore) {
	t.Helper()
	ctx := context.Background()
	db := pgutil.SetupTestDB(t)

	if err := mghelper.CreateSchema(ctx, db, &TransferDao{}, &ChainCursorDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	if err := mghelper.CreateModelCompositeIndex(ctx, db, &TransferDao{}, "idx_transfers_source_event", true,
		"source_chain", "source_tx_hash", "source_log_index"); err != nil {
		t.Fatalf("failed to create source event index: %v", err)
	}

	return ctx, NewStore(db)
}

func newTestRecord(owner string, now time.Time) *transfer.Record {
	return &transfer.Record{
		ID:                 uuid.NewString(),
		OwnerID:            owner,
		SourceChain:        "ethereum",
		DestinationChain:   "arbitrum",
		Asset:              "USDC",
		Amount:             big.NewInt(100_000_000),
		DestinationAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Kind:               transfer.KindTransfer,
		Status:             transfer.StatusPending,
		SlippageTolerance:  decimal.RequireFromString("0.005"),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestPGStore_CreateGetRoundTrip(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	rec := newTestRecord("owner-1", now)
	rec.Kind = transfer.KindSwap
	rec.DestinationAsset = "WETH"
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Amount.Cmp(rec.Amount) != 0 {
		t.Fatalf("amount mismatch: got %s want %s", got.Amount, rec.Amount)
	}
	if !got.SlippageTolerance.Equal(rec.SlippageTolerance) {
		t.Fatalf("slippage mismatch: got %s want %s", got.SlippageTolerance, rec.SlippageTolerance)
	}
	if got.Kind != transfer.KindSwap || got.DestinationAsset != "WETH" || got.Status != transfer.StatusPending {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Claim != nil || got.SourceLogIndex != nil {
		t.Fatalf("expected empty claim and source event, got %+v", got)
	}

	if _, err := s.Get(ctx, uuid.NewString()); !errors.Is(err, transfer.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStore_ClaimIsExclusive(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Now().UTC()

	rec := newTestRecord("owner-1", now)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	claimed, err := s.Claim(ctx, rec.ID, "worker-a", now, time.Minute)
	if err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}
	if claimed.Claim == nil || claimed.Claim.Owner != "worker-a" {
		t.Fatalf("expected claim by worker-a, got %+v", claimed.Claim)
	}

	if _, err := s.Claim(ctx, rec.ID, "worker-b", now.Add(30*time.Second), time.Minute); !errors.Is(err, transfer.ErrClaimConflict) {
		t.Fatalf("expected ErrClaimConflict for live lease, got %v", err)
	}

	// expired leases can be taken over
	if _, err := s.Claim(ctx, rec.ID, "worker-b", now.Add(2*time.Minute), time.Minute); err != nil {
		t.Fatalf("Claim() after expiry failed: %v", err)
	}

	// the previous owner can no longer save
	claimed.AttemptCount = 1
	if err := s.Save(ctx, claimed, "worker-a", now.Add(2*time.Minute)); !errors.Is(err, transfer.ErrClaimLost) {
		t.Fatalf("expected ErrClaimLost, got %v", err)
	}
	if err := s.Renew(ctx, rec.ID, "worker-a", now.Add(2*time.Minute), time.Minute); !errors.Is(err, transfer.ErrClaimLost) {
		t.Fatalf("expected ErrClaimLost on renew, got %v", err)
	}
}

func TestPGStore_SaveAndRelease(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	rec := newTestRecord("owner-1", now)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	claimed, err := s.Claim(ctx, rec.ID, "worker-a", now, time.Minute)
	if err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}

	logIndex := uint(4)
	block := uint64(120)
	claimed.SourceTxHash = "0xaaaa"
	claimed.SourceLogIndex = &logIndex
	claimed.SourceBlockNumber = &block
	claimed.ScanCursor = 118
	claimed.Relay = &transfer.RelayReceipt{Adapter: "generic", CorrelationID: "0x01", SentAt: now}
	if err := claimed.TransitionTo(transfer.StatusBridging, now); err != nil {
		t.Fatalf("TransitionTo() failed: %v", err)
	}
	if err := s.Save(ctx, claimed, "worker-a", now.Add(time.Second)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.Release(ctx, rec.ID, "worker-a"); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Status != transfer.StatusBridging || got.SourceTxHash != "0xaaaa" || got.ScanCursor != 118 {
		t.Fatalf("unexpected saved state: %+v", got)
	}
	if got.SourceLogIndex == nil || *got.SourceLogIndex != 4 {
		t.Fatalf("expected log index 4, got %v", got.SourceLogIndex)
	}
	if got.Relay == nil || got.Relay.Adapter != "generic" {
		t.Fatalf("expected relay receipt, got %+v", got.Relay)
	}
	if got.Claim != nil {
		t.Fatalf("expected claim released, got %+v", got.Claim)
	}

	bound, err := s.SourceEventBound(ctx, "ethereum", "0xaaaa", 4, uuid.NewString())
	if err != nil {
		t.Fatalf("SourceEventBound() failed: %v", err)
	}
	if !bound {
		t.Fatal("expected source event to be bound")
	}
	bound, err = s.SourceEventBound(ctx, "ethereum", "0xaaaa", 4, rec.ID)
	if err != nil {
		t.Fatalf("SourceEventBound() failed: %v", err)
	}
	if bound {
		t.Fatal("expected own record to be excluded")
	}
}

func TestPGStore_DuplicateSourceEvent(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Now().UTC()

	logIndex := uint(0)
	first := newTestRecord("owner-1", now)
	first.SourceTxHash = "0xbbbb"
	first.SourceLogIndex = &logIndex
	first.Status = transfer.StatusBridging
	if err := s.Create(ctx, first); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	second := newTestRecord("owner-2", now)
	if err := s.Create(ctx, second); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	claimed, err := s.Claim(ctx, second.ID, "worker-a", now, time.Minute)
	if err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}
	claimed.SourceTxHash = "0xbbbb"
	claimed.SourceLogIndex = &logIndex
	if err := s.Save(ctx, claimed, "worker-a", now); !errors.Is(err, ErrDuplicateSourceEvent) {
		t.Fatalf("expected ErrDuplicateSourceEvent, got %v", err)
	}
}

func TestPGStore_ListClaimable(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Now().UTC()

	ready := newTestRecord("owner-1", now)
	backoff := newTestRecord("owner-1", now)
	later := now.Add(time.Hour)
	backoff.NextAttemptAt = &later
	done := newTestRecord("owner-1", now)
	done.Status = transfer.StatusCompleted
	done.DestinationTxHash = "0xdone"
	for _, rec := range []*transfer.Record{ready, backoff, done} {
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	got, err := s.ListClaimable(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListClaimable() failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != ready.ID {
		t.Fatalf("expected only the ready record, got %d records", len(got))
	}

	if _, err := s.Claim(ctx, ready.ID, "worker-a", now, time.Minute); err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}
	got, err = s.ListClaimable(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListClaimable() failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected claimed record to be hidden, got %d", len(got))
	}
}

func TestPGStore_ResetForRetryAndCancel(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Now().UTC()

	rec := newTestRecord("owner-1", now)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if _, err := s.ResetForRetry(ctx, rec.ID, now); !errors.Is(err, transfer.ErrNotFailed) {
		t.Fatalf("expected ErrNotFailed, got %v", err)
	}

	cancelled, err := s.Cancel(ctx, rec.ID, now)
	if err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}
	if cancelled.Status != transfer.StatusFailed || cancelled.FailureReason != transfer.ReasonCancelled {
		t.Fatalf("unexpected cancelled record: %+v", cancelled)
	}

	reset, err := s.ResetForRetry(ctx, rec.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ResetForRetry() failed: %v", err)
	}
	if reset.Status != transfer.StatusPending || reset.FailureReason != "" || reset.AttemptCount != 0 {
		t.Fatalf("unexpected reset record: %+v", reset)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Status != transfer.StatusPending {
		t.Fatalf("expected persisted pending status, got %s", got.Status)
	}
}

func TestPGStore_ListFilters(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Now().UTC()

	for i, owner := range []string{"owner-1", "owner-1", "owner-2"} {
		rec := newTestRecord(owner, now.Add(time.Duration(i)*time.Second))
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	got, err := s.List(ctx, WithOwner("owner-1"))
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records for owner-1, got %d", len(got))
	}

	got, err = s.List(ctx, WithStatus(transfer.StatusFailed))
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no failed records, got %d", len(got))
	}

	got, err = s.List(ctx, WithPage(1, 0))
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected page of 1, got %d", len(got))
	}
}

func TestPGStore_Cursor(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Now().UTC()

	cursor, err := s.GetCursor(ctx, "ethereum")
	if err != nil {
		t.Fatalf("GetCursor() failed: %v", err)
	}
	if cursor != nil {
		t.Fatalf("expected no cursor, got %+v", cursor)
	}

	if err := s.SetCursor(ctx, "ethereum", 200, now); err != nil {
		t.Fatalf("SetCursor() failed: %v", err)
	}
	// cursors never move backwards
	if err := s.SetCursor(ctx, "ethereum", 150, now); err != nil {
		t.Fatalf("SetCursor() failed: %v", err)
	}

	cursor, err = s.GetCursor(ctx, "ethereum")
	if err != nil {
		t.Fatalf("GetCursor() failed: %v", err)
	}
	if cursor == nil || cursor.LastHeadBlock != 200 {
		t.Fatalf("expected head 200, got %+v", cursor)
	}
}
