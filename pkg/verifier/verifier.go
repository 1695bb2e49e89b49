// Package verifier confirms the source-chain lock event that backs a
// transfer record.
package verifier

import (
	"context"
	"fmt"
	"math/big"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/internal/metrics"
	"github.com/chainsafe/xchain-orchestrator/pkg/chain"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum"
	"github.com/chainsafe/xchain-orchestrator/pkg/ethereum/contracts"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// Store is the persistence the verifier needs.
type Store interface {
	SourceEventBound(ctx context.Context, chain, txHash string, logIndex uint, excludeID string) (bool, error)
	SetCursor(ctx context.Context, chainID string, head uint64, now time.Time) error
}

// SourceEvent identifies a confirmed lock event.
type SourceEvent struct {
	TxHash        common.Hash
	LogIndex      uint
	BlockNumber   uint64
	Sender        common.Address
	Confirmations uint64
}

// Result is the outcome of one verification pass. Event is nil when the
// lock has not been observed yet; Cursor is the last block scanned and must
// be persisted with the record.
type Result struct {
	Event  *SourceEvent
	Cursor uint64
}

// Verifier scans a bounded block range of the source chain.
type Verifier struct {
	registry *chain.Registry
	store    Store
	cfg      config.VerifierConfig
	logger   *zap.Logger
}

// New creates a verifier.
func New(registry *chain.Registry, store Store, cfg config.VerifierConfig, logger *zap.Logger) *Verifier {
	return &Verifier{
		registry: registry,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// ScanWindow returns the inclusive block range to scan given the chain head
// and the record's cursor. ok is false when no block is deep enough yet or
// the cursor already covers every confirmed block.
func ScanWindow(head, cursor, minConfirmations, maxRange uint64) (from, to uint64, ok bool) {
	if minConfirmations == 0 {
		minConfirmations = 1
	}
	if head+1 < minConfirmations {
		return 0, 0, false
	}
	// a block has head-block+1 confirmations
	to = head + 1 - minConfirmations

	from = cursor + 1
	if head > maxRange && head-maxRange > from {
		from = head - maxRange
	}
	if from > to {
		return 0, 0, false
	}
	return from, to, true
}

// Verify looks for the lock event matching rec. A nil Event with a nil
// error means "not yet"; once the record is older than the wait window the
// permanent source_event_not_found error is returned instead.
func (v *Verifier) Verify(ctx context.Context, rec *transfer.Record, now time.Time) (*Result, error) {
	src, err := v.registry.Get(rec.SourceChain)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	dst, err := v.registry.Get(rec.DestinationChain)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	asset, err := v.registry.Asset(rec.SourceChain, rec.Asset)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	recipient, err := ethereum.ParseAddress(rec.DestinationAddress)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonDestinationRejected, err)
	}

	head, err := src.Client().BlockNumber(ctx)
	if err != nil {
		return nil, ethereum.ClassifyError("eth_blockNumber", err)
	}
	if err := v.store.SetCursor(ctx, src.ID, head, now); err != nil {
		v.logger.Warn("Failed to checkpoint chain head", zap.String("chain", src.ID), zap.Error(err))
	}
	metrics.LastScannedBlock.WithLabelValues(src.ID).Set(float64(head))

	result := &Result{Cursor: rec.ScanCursor}
	from, to, ok := ScanWindow(head, rec.ScanCursor, v.cfg.MinConfirmations, v.cfg.MaxScanRange)
	if ok {
		event, err := v.scan(ctx, src, dst, asset, recipient, rec, from, to, head)
		if err != nil {
			return nil, err
		}
		result.Cursor = to
		if event != nil {
			result.Event = event
			return result, nil
		}
	}

	if now.Sub(rec.CreatedAt) > v.cfg.MaxWait {
		return result, transfer.Permanent(transfer.ReasonSourceEventNotFound,
			fmt.Errorf("no lock event on %s within %s", src.ID, v.cfg.MaxWait))
	}
	return result, nil
}

func (v *Verifier) scan(
	ctx context.Context,
	src, dst *chain.Chain,
	asset chain.Asset,
	recipient common.Address,
	rec *transfer.Record,
	from, to, head uint64,
) (*SourceEvent, error) {
	logs, err := src.Client().FilterLogs(ctx, geth.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{src.BridgeContract},
		Topics: [][]common.Hash{
			{contracts.TransferLockedTopic},
			{common.BytesToHash(asset.Address.Bytes())},
		},
	})
	if err != nil {
		return nil, ethereum.ClassifyError("eth_getLogs", err)
	}

	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := contracts.UnpackTransferLocked(l)
		if err != nil {
			v.logger.Debug("Skipping undecodable log", zap.String("tx_hash", l.TxHash.Hex()), zap.Error(err))
			continue
		}
		if ev.Recipient != recipient || ev.Amount.Cmp(rec.Amount) != 0 || ev.DestChainID.Cmp(dst.ChainID) != 0 {
			continue
		}

		bound, err := v.store.SourceEventBound(ctx, src.ID, ev.TxHash.Hex(), ev.LogIndex, rec.ID)
		if err != nil {
			return nil, transfer.Transient("source event lookup", err)
		}
		if bound {
			v.logger.Debug("Lock event already bound to another transfer",
				zap.String("transfer_id", rec.ID),
				zap.String("tx_hash", ev.TxHash.Hex()),
				zap.Uint("log_index", ev.LogIndex))
			continue
		}

		return &SourceEvent{
			TxHash:        ev.TxHash,
			LogIndex:      ev.LogIndex,
			BlockNumber:   ev.BlockNumber,
			Sender:        ev.Sender,
			Confirmations: ethereum.Confirmations(head, ev.BlockNumber),
		}, nil
	}
	return nil, nil
}
