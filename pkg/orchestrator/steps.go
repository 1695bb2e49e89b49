package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/pkg/bridge"
	"github.com/chainsafe/xchain-orchestrator/pkg/executor"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// StepResult is the state a step wants the record to move to. Next equal
// to the current status means the step is waiting on an external event.
type StepResult struct {
	Next transfer.Status
}

func stay(rec *transfer.Record) StepResult {
	return StepResult{Next: rec.Status}
}

// step dispatches on status. Every step re-reads observable chain state
// before it submits anything, so a step interrupted after a broadcast is
// safe to run again.
func (o *Orchestrator) step(ctx context.Context, rec *transfer.Record, now time.Time) (StepResult, error) {
	switch rec.Status {
	case transfer.StatusPending:
		return o.stepPending(ctx, rec, now)
	case transfer.StatusBridging:
		return o.stepBridging(ctx, rec, now)
	case transfer.StatusSwapping:
		return o.completeDestination(ctx, rec, now)
	}
	return stay(rec), fmt.Errorf("no step for status %s", rec.Status)
}

func (o *Orchestrator) stepPending(ctx context.Context, rec *transfer.Record, now time.Time) (StepResult, error) {
	// A retried record keeps its verified source event.
	if rec.SourceTxHash != "" {
		return StepResult{Next: transfer.StatusBridging}, nil
	}

	res, err := o.verifier.Verify(ctx, rec, now)
	if res != nil && res.Cursor > rec.ScanCursor {
		rec.ScanCursor = res.Cursor
	}
	if err != nil {
		return stay(rec), err
	}
	if res == nil || res.Event == nil {
		return stay(rec), nil
	}

	logIndex := res.Event.LogIndex
	block := res.Event.BlockNumber
	rec.SourceTxHash = res.Event.TxHash.Hex()
	rec.SourceLogIndex = &logIndex
	rec.SourceBlockNumber = &block
	o.logger.Info("Source lock confirmed",
		zap.String("transfer_id", rec.ID),
		zap.String("source_tx_hash", rec.SourceTxHash),
		zap.Uint64("block", block),
		zap.Uint64("confirmations", res.Event.Confirmations))
	return StepResult{Next: transfer.StatusBridging}, nil
}

func (o *Orchestrator) stepBridging(ctx context.Context, rec *transfer.Record, now time.Time) (StepResult, error) {
	if rec.Relay.Delivered() {
		return o.afterDelivery(ctx, rec, now)
	}

	adapter, msg, err := o.relayer.Prepare(rec)
	if err != nil {
		return stay(rec), err
	}

	if rec.Relay == nil {
		receipt, err := adapter.LookupRelay(ctx, msg)
		if err != nil {
			return stay(rec), err
		}
		if receipt == nil {
			receipt, err = adapter.SendMessage(ctx, msg)
			if err != nil {
				return stay(rec), err
			}
			o.logger.Info("Relay submitted",
				zap.String("transfer_id", rec.ID),
				zap.String("adapter", receipt.Adapter),
				zap.String("correlation_id", receipt.CorrelationID),
				zap.String("tx_hash", receipt.TxHash))
		}
		rec.Relay = receipt
	} else if rec.Relay.Adapter != adapter.Name() {
		adapter, err = o.relayer.ByName(rec.Relay.Adapter)
		if err != nil {
			return stay(rec), transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
		}
	}

	state, err := adapter.RelayStatus(ctx, msg.Source, rec.Relay)
	if err != nil {
		return stay(rec), err
	}
	switch state {
	case bridge.RelayFailed:
		return stay(rec), transfer.Permanent(transfer.ReasonRelayFailed,
			fmt.Errorf("%s reported relay %s as failed", rec.Relay.Adapter, rec.Relay.CorrelationID))
	case bridge.RelayInFlight:
		return stay(rec), nil
	}

	delivered := now
	rec.Relay.DeliveredAt = &delivered
	return o.afterDelivery(ctx, rec, now)
}

func (o *Orchestrator) afterDelivery(ctx context.Context, rec *transfer.Record, now time.Time) (StepResult, error) {
	if rec.Kind == transfer.KindSwap {
		return StepResult{Next: transfer.StatusSwapping}, nil
	}
	return o.completeDestination(ctx, rec, now)
}

// completeDestination submits the destination transaction, or polls the
// one already broadcast.
func (o *Orchestrator) completeDestination(ctx context.Context, rec *transfer.Record, now time.Time) (StepResult, error) {
	if rec.PendingDestTxHash != "" {
		res, done, err := o.confirmPending(ctx, rec, now)
		if done || err != nil {
			return res, err
		}
	}

	var quote *transfer.QuoteSnapshot
	if rec.Kind == transfer.KindSwap {
		q, err := o.quoter.ForRecord(ctx, rec)
		if err != nil {
			return stay(rec), err
		}
		if q.LowConfidence && !o.cfg.AllowLowConfidence {
			return stay(rec), transfer.Transient("quote", errors.New("price served from stale cache"))
		}
		rec.Quote = q
		quote = q
	}

	sub, err := o.executor.Complete(ctx, rec, quote, o.now)
	if err != nil {
		return stay(rec), err
	}
	if sub.AlreadyCompleted {
		return o.completed(rec, sub.TxHash)
	}

	sent := o.now()
	rec.PendingDestTxHash = sub.TxHash
	rec.BroadcastAt = &sent
	return stay(rec), nil
}

// confirmPending reports done when the step outcome is decided without a
// new submission.
func (o *Orchestrator) confirmPending(ctx context.Context, rec *transfer.Record, now time.Time) (StepResult, bool, error) {
	conf, err := o.executor.Confirm(ctx, rec)
	if err != nil {
		return stay(rec), true, err
	}

	switch conf.State {
	case executor.StateConfirmed:
		res, err := o.completed(rec, conf.TxHash)
		return res, true, err

	case executor.StateReverted:
		rec.PendingDestTxHash = ""
		rec.BroadcastAt = nil
		var slippage *transfer.SlippageExceededError
		if errors.As(conf.Err, &slippage) && rec.Quote != nil {
			slippage.AmountOutMin = rec.Quote.AmountOutMin
		}
		return stay(rec), true, conf.Err
	}

	timedOut := rec.BroadcastAt == nil || now.Sub(*rec.BroadcastAt) > o.cfg.ConfirmationTimeout
	if !timedOut {
		return stay(rec), true, nil
	}

	// Past the confirmation timeout the chain is the source of truth.
	hash, done, err := o.executor.Completion(ctx, rec)
	if err != nil {
		return stay(rec), true, err
	}
	if done {
		res, err := o.completed(rec, hash)
		return res, true, err
	}
	if conf.State == executor.StatePending {
		o.logger.Warn("Destination transaction still unconfirmed",
			zap.String("transfer_id", rec.ID),
			zap.String("tx_hash", rec.PendingDestTxHash))
		return stay(rec), true, nil
	}

	o.logger.Warn("Destination transaction dropped, re-broadcasting",
		zap.String("transfer_id", rec.ID),
		zap.String("tx_hash", rec.PendingDestTxHash))
	rec.PendingDestTxHash = ""
	rec.BroadcastAt = nil
	return stay(rec), false, nil
}

func (o *Orchestrator) completed(rec *transfer.Record, txHash string) (StepResult, error) {
	if txHash == "" {
		return stay(rec), transfer.Transient("completion lookup",
			errors.New("transfer completed on destination but the completing transaction was not found"))
	}
	if err := rec.SetDestinationTxHash(txHash); err != nil {
		return stay(rec), transfer.Permanent(transfer.ReasonContractRejected, err)
	}
	return StepResult{Next: transfer.StatusCompleted}, nil
}
