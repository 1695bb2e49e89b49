package store

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// TransferDao maps to the 'transfers' table.
type TransferDao struct {
	bun.BaseModel      `bun:"table:transfers,alias:t"`
	ID                 string                  `bun:"id,pk,type:varchar(36)"`
	OwnerID            string                  `bun:"owner_id,notnull,type:varchar(255)"`
	SourceChain        string                  `bun:"source_chain,notnull,type:varchar(64)"`
	DestinationChain   string                  `bun:"destination_chain,notnull,type:varchar(64)"`
	Asset              string                  `bun:"asset,notnull,type:varchar(32)"`
	DestinationAsset   *string                 `bun:"destination_asset,type:varchar(32)"`
	Amount             string                  `bun:"amount,notnull,type:numeric(78,0)"`
	DestinationAddress string                  `bun:"destination_address,notnull,type:varchar(128)"`
	Kind               string                  `bun:"kind,notnull,type:varchar(16)"`
	Status             string                  `bun:"status,notnull,type:varchar(16)"`
	SlippageTolerance  string                  `bun:"slippage_tolerance,notnull,type:numeric(10,6)"`
	SourceTxHash       *string                 `bun:"source_tx_hash,type:varchar(66)"`
	SourceLogIndex     *int64                  `bun:"source_log_index"`
	SourceBlockNumber  *int64                  `bun:"source_block_number"`
	ScanCursor         int64                   `bun:"scan_cursor,notnull,default:0"`
	Relay              *transfer.RelayReceipt  `bun:"relay,type:jsonb"`
	PendingDestTxHash  *string                 `bun:"pending_dest_tx_hash,type:varchar(66)"`
	BroadcastAt        *time.Time              `bun:"broadcast_at"`
	DestinationTxHash  *string                 `bun:"destination_tx_hash,type:varchar(66)"`
	Quote              *transfer.QuoteSnapshot `bun:"quote,type:jsonb"`
	FailureReason      *string                 `bun:"failure_reason,type:varchar(64)"`
	LastError          *string                 `bun:"last_error,type:text"`
	ClaimOwner         *string                 `bun:"claim_owner,type:varchar(64)"`
	ClaimExpiresAt     *time.Time              `bun:"claim_expires_at"`
	AttemptCount       int                     `bun:"attempt_count,notnull,default:0"`
	NextAttemptAt      *time.Time              `bun:"next_attempt_at"`
	CreatedAt          time.Time               `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time               `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	CompletedAt        *time.Time              `bun:"completed_at"`
}

// ChainCursorDao maps to the 'chain_cursors' table.
type ChainCursorDao struct {
	bun.BaseModel `bun:"table:chain_cursors,alias:cc"`
	ChainID       string    `bun:"chain_id,pk,type:varchar(64)"`
	LastHeadBlock int64     `bun:"last_head_block,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// mutableColumns are the columns a claimed worker may write. Identity,
// amount and the claim itself are excluded.
var mutableColumns = []string{
	"status",
	"source_tx_hash",
	"source_log_index",
	"source_block_number",
	"scan_cursor",
	"relay",
	"pending_dest_tx_hash",
	"broadcast_at",
	"destination_tx_hash",
	"quote",
	"failure_reason",
	"last_error",
	"attempt_count",
	"next_attempt_at",
	"updated_at",
	"completed_at",
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toTransferDao converts a transfer.Record to TransferDao.
func toTransferDao(rec *transfer.Record) *TransferDao {
	dao := &TransferDao{
		ID:                 rec.ID,
		OwnerID:            rec.OwnerID,
		SourceChain:        rec.SourceChain,
		DestinationChain:   rec.DestinationChain,
		Asset:              rec.Asset,
		DestinationAsset:   optString(rec.DestinationAsset),
		DestinationAddress: rec.DestinationAddress,
		Kind:               string(rec.Kind),
		Status:             string(rec.Status),
		SlippageTolerance:  rec.SlippageTolerance.String(),
		SourceTxHash:       optString(rec.SourceTxHash),
		ScanCursor:         int64(rec.ScanCursor),
		Relay:              rec.Relay,
		PendingDestTxHash:  optString(rec.PendingDestTxHash),
		BroadcastAt:        rec.BroadcastAt,
		DestinationTxHash:  optString(rec.DestinationTxHash),
		Quote:              rec.Quote,
		FailureReason:      optString(string(rec.FailureReason)),
		LastError:          optString(rec.LastError),
		AttemptCount:       rec.AttemptCount,
		NextAttemptAt:      rec.NextAttemptAt,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
		CompletedAt:        rec.CompletedAt,
	}
	if rec.Amount != nil {
		dao.Amount = rec.Amount.String()
	}
	if rec.SourceLogIndex != nil {
		v := int64(*rec.SourceLogIndex)
		dao.SourceLogIndex = &v
	}
	if rec.SourceBlockNumber != nil {
		v := int64(*rec.SourceBlockNumber)
		dao.SourceBlockNumber = &v
	}
	if rec.Claim != nil {
		dao.ClaimOwner = optString(rec.Claim.Owner)
		expires := rec.Claim.ExpiresAt
		dao.ClaimExpiresAt = &expires
	}
	return dao
}

// toRecord converts a TransferDao to transfer.Record.
func toRecord(dao *TransferDao) *transfer.Record {
	rec := &transfer.Record{
		ID:                 dao.ID,
		OwnerID:            dao.OwnerID,
		SourceChain:        dao.SourceChain,
		DestinationChain:   dao.DestinationChain,
		Asset:              dao.Asset,
		DestinationAsset:   derefString(dao.DestinationAsset),
		DestinationAddress: dao.DestinationAddress,
		Kind:               transfer.Kind(dao.Kind),
		Status:             transfer.Status(dao.Status),
		SourceTxHash:       derefString(dao.SourceTxHash),
		ScanCursor:         uint64(dao.ScanCursor),
		Relay:              dao.Relay,
		PendingDestTxHash:  derefString(dao.PendingDestTxHash),
		BroadcastAt:        dao.BroadcastAt,
		DestinationTxHash:  derefString(dao.DestinationTxHash),
		Quote:              dao.Quote,
		FailureReason:      transfer.Reason(derefString(dao.FailureReason)),
		LastError:          derefString(dao.LastError),
		AttemptCount:       dao.AttemptCount,
		NextAttemptAt:      dao.NextAttemptAt,
		CreatedAt:          dao.CreatedAt,
		UpdatedAt:          dao.UpdatedAt,
		CompletedAt:        dao.CompletedAt,
	}
	if amount, ok := new(big.Int).SetString(dao.Amount, 10); ok {
		rec.Amount = amount
	}
	if slippage, err := decimal.NewFromString(dao.SlippageTolerance); err == nil {
		rec.SlippageTolerance = slippage
	}
	if dao.SourceLogIndex != nil {
		v := uint(*dao.SourceLogIndex)
		rec.SourceLogIndex = &v
	}
	if dao.SourceBlockNumber != nil {
		v := uint64(*dao.SourceBlockNumber)
		rec.SourceBlockNumber = &v
	}
	if dao.ClaimOwner != nil && dao.ClaimExpiresAt != nil {
		rec.Claim = &transfer.Claim{Owner: *dao.ClaimOwner, ExpiresAt: *dao.ClaimExpiresAt}
	}
	return rec
}

func toChainCursor(dao *ChainCursorDao) *ChainCursor {
	return &ChainCursor{
		ChainID:       dao.ChainID,
		LastHeadBlock: uint64(dao.LastHeadBlock),
		UpdatedAt:     dao.UpdatedAt,
	}
}
