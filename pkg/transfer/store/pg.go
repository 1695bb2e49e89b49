package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

type pgStore struct {
	db *bun.DB
}

var _ Store = (*pgStore)(nil)

// NewStore creates a new postgres implementation of the transfer store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func activeStatuses() []string {
	out := make([]string, len(transfer.ActiveStatuses))
	for i, s := range transfer.ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

func isIntegrityViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}

func (s *pgStore) Create(ctx context.Context, rec *transfer.Record) error {
	_, err := s.db.NewInsert().
		Model(toTransferDao(rec)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id string) (*transfer.Record, error) {
	return s.get(ctx, s.db, id, false)
}

func (s *pgStore) get(ctx context.Context, db bun.IDB, id string, forUpdate bool) (*transfer.Record, error) {
	dao := new(TransferDao)
	query := db.NewSelect().Model(dao).Where("t.id = ?", id)
	if forUpdate {
		query = query.For("UPDATE")
	}
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transfer.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	return toRecord(dao), nil
}

func (s *pgStore) List(ctx context.Context, opts ...QueryOption) ([]*transfer.Record, error) {
	options := BuildQueryOptions(opts...)

	var daos []TransferDao
	query := s.db.NewSelect().Model(&daos)
	if options.OwnerID != nil {
		query = query.Where("t.owner_id = ?", *options.OwnerID)
	}
	if options.Status != nil {
		query = query.Where("t.status = ?", string(*options.Status))
	}
	err := query.
		Order("t.created_at DESC").
		Limit(options.Limit).
		Offset(options.Offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	records := make([]*transfer.Record, len(daos))
	for i := range daos {
		records[i] = toRecord(&daos[i])
	}
	return records, nil
}

func (s *pgStore) ListClaimable(ctx context.Context, now time.Time, limit int) ([]*transfer.Record, error) {
	var daos []TransferDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("t.status IN (?)", bun.In(activeStatuses())).
		Where("(t.claim_owner IS NULL OR t.claim_expires_at < ?)", now).
		Where("(t.next_attempt_at IS NULL OR t.next_attempt_at <= ?)", now).
		Order("t.updated_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list claimable transfers: %w", err)
	}

	records := make([]*transfer.Record, len(daos))
	for i := range daos {
		records[i] = toRecord(&daos[i])
	}
	return records, nil
}

func (s *pgStore) Claim(ctx context.Context, id, owner string, now time.Time, lease time.Duration) (*transfer.Record, error) {
	res, err := s.db.NewUpdate().
		Model((*TransferDao)(nil)).
		Set("claim_owner = ?", owner).
		Set("claim_expires_at = ?", now.Add(lease)).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(activeStatuses())).
		Where("(claim_owner IS NULL OR claim_expires_at < ?)", now).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim transfer: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, transfer.ErrClaimConflict
	}
	return s.Get(ctx, id)
}

func (s *pgStore) Renew(ctx context.Context, id, owner string, now time.Time, lease time.Duration) error {
	res, err := s.db.NewUpdate().
		Model((*TransferDao)(nil)).
		Set("claim_expires_at = ?", now.Add(lease)).
		Where("id = ?", id).
		Where("claim_owner = ?", owner).
		Where("claim_expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to renew claim: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return transfer.ErrClaimLost
	}
	return nil
}

func (s *pgStore) Release(ctx context.Context, id, owner string) error {
	_, err := s.db.NewUpdate().
		Model((*TransferDao)(nil)).
		Set("claim_owner = NULL").
		Set("claim_expires_at = NULL").
		Where("id = ?", id).
		Where("claim_owner = ?", owner).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

func (s *pgStore) Save(ctx context.Context, rec *transfer.Record, owner string, now time.Time) error {
	dao := toTransferDao(rec)
	dao.UpdatedAt = now

	res, err := s.db.NewUpdate().
		Model(dao).
		Column(mutableColumns...).
		WherePK().
		Where("claim_owner = ?", owner).
		Where("claim_expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		if isIntegrityViolation(err) {
			return ErrDuplicateSourceEvent
		}
		return fmt.Errorf("failed to save transfer: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return transfer.ErrClaimLost
	}
	rec.UpdatedAt = now
	return nil
}

// mutate applies fn to the locked row and writes the result back.
func (s *pgStore) mutate(ctx context.Context, id string, now time.Time, fn func(*transfer.Record) error) (*transfer.Record, error) {
	var out *transfer.Record
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rec, err := s.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}

		dao := toTransferDao(rec)
		dao.UpdatedAt = now
		_, err = tx.NewUpdate().
			Model(dao).
			Column(append(mutableColumns, "claim_owner", "claim_expires_at")...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update transfer: %w", err)
		}
		rec.UpdatedAt = now
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *pgStore) ResetForRetry(ctx context.Context, id string, now time.Time) (*transfer.Record, error) {
	return s.mutate(ctx, id, now, func(rec *transfer.Record) error {
		return rec.ResetForRetry(now)
	})
}

func (s *pgStore) Cancel(ctx context.Context, id string, now time.Time) (*transfer.Record, error) {
	return s.mutate(ctx, id, now, func(rec *transfer.Record) error {
		return rec.Cancel(now)
	})
}

func (s *pgStore) SourceEventBound(ctx context.Context, chain, txHash string, logIndex uint, excludeID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*TransferDao)(nil)).
		Where("t.source_chain = ?", chain).
		Where("t.source_tx_hash = ?", txHash).
		Where("t.source_log_index = ?", int64(logIndex)).
		Where("t.id <> ?", excludeID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check source event: %w", err)
	}
	return exists, nil
}

func (s *pgStore) GetCursor(ctx context.Context, chainID string) (*ChainCursor, error) {
	dao := new(ChainCursorDao)
	err := s.db.NewSelect().Model(dao).Where("cc.chain_id = ?", chainID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get chain cursor: %w", err)
	}
	return toChainCursor(dao), nil
}

func (s *pgStore) SetCursor(ctx context.Context, chainID string, head uint64, now time.Time) error {
	dao := &ChainCursorDao{
		ChainID:       chainID,
		LastHeadBlock: int64(head),
		UpdatedAt:     now,
	}
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (chain_id) DO UPDATE").
		Set("last_head_block = GREATEST(cc.last_head_block, EXCLUDED.last_head_block)").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set chain cursor: %w", err)
	}
	return nil
}
