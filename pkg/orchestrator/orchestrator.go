// Package orchestrator drives transfer records through their lifecycle.
// A single ticker lists claimable records and fans them out to a bounded
// worker pool; each worker claims a record, runs the step for its status
// and persists the outcome under the claim.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainsafe/xchain-orchestrator/internal/metrics"
	"github.com/chainsafe/xchain-orchestrator/pkg/bridge"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/executor"
	"github.com/chainsafe/xchain-orchestrator/pkg/statesync"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/store"
	"github.com/chainsafe/xchain-orchestrator/pkg/verifier"
)

// Verifier confirms source lock events.
type Verifier interface {
	Verify(ctx context.Context, rec *transfer.Record, now time.Time) (*verifier.Result, error)
}

// Relayer selects the bridge adapter of a record.
type Relayer interface {
	Prepare(rec *transfer.Record) (bridge.Adapter, bridge.Message, error)
	ByName(name string) (bridge.Adapter, error)
}

// Quoter prices the destination leg of swap records.
type Quoter interface {
	ForRecord(ctx context.Context, rec *transfer.Record) (*transfer.QuoteSnapshot, error)
}

// Executor submits and confirms destination transactions.
type Executor interface {
	Complete(ctx context.Context, rec *transfer.Record, quote *transfer.QuoteSnapshot, now func() time.Time) (*executor.Submission, error)
	Confirm(ctx context.Context, rec *transfer.Record) (*executor.Confirmation, error)
	Completion(ctx context.Context, rec *transfer.Record) (string, bool, error)
}

// Config tunes the orchestrator.
type Config struct {
	config.OrchestratorConfig
	AllowLowConfidence    bool
	AutoRequoteOnSlippage bool
}

// NewConfig collects the orchestrator settings from the loaded configuration.
func NewConfig(cfg *config.Config) Config {
	return Config{
		OrchestratorConfig:    cfg.Orchestrator,
		AllowLowConfidence:    cfg.Quote.AllowLowConfidence,
		AutoRequoteOnSlippage: cfg.Swap.AutoRequoteOnSlippage,
	}
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithOwner sets the claim owner id. It must be unique per process.
func WithOwner(owner string) Option {
	return func(o *Orchestrator) { o.owner = owner }
}

// Orchestrator is the scheduler.
type Orchestrator struct {
	cfg      Config
	store    store.ClaimStore
	verifier Verifier
	relayer  Relayer
	quoter   Quoter
	executor Executor
	emitter  statesync.Emitter
	logger   *zap.Logger

	owner string
	now   func() time.Time
	ready atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an orchestrator.
func New(
	cfg Config,
	claims store.ClaimStore,
	v Verifier,
	relayer Relayer,
	quoter Quoter,
	exec Executor,
	emitter statesync.Emitter,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		store:    claims,
		verifier: v,
		relayer:  relayer,
		quoter:   quoter,
		executor: exec,
		emitter:  emitter,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.owner == "" {
		host, _ := os.Hostname()
		o.owner = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	return o
}

// Owner returns the claim owner id of this process.
func (o *Orchestrator) Owner() string {
	return o.owner
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.logger.Info("Starting orchestrator",
		zap.String("owner", o.owner),
		zap.Duration("tick_interval", o.cfg.TickInterval),
		zap.Int("workers", o.cfg.Workers))

	o.wg.Add(1)
	go o.run(ctx)
	o.ready.Store(true)
	return nil
}

// Stop waits for the in-flight tick to finish.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.logger.Info("Stopping orchestrator")
		o.ready.Store(false)
		close(o.stopCh)
		o.wg.Wait()
		o.logger.Info("Orchestrator stopped")
	})
}

// IsReady reports whether the loop is running.
func (o *Orchestrator) IsReady() bool {
	return o.ready.Load()
}

func (o *Orchestrator) run(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-o.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if err := o.Tick(ctx); err != nil && ctx.Err() == nil {
			o.logger.Error("Tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick processes one batch of claimable records.
func (o *Orchestrator) Tick(ctx context.Context) error {
	records, err := o.store.ListClaimable(ctx, o.now(), o.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list claimable transfers: %w", err)
	}

	counts := make(map[transfer.Status]int, len(transfer.ActiveStatuses))
	for _, rec := range records {
		counts[rec.Status]++
	}
	for _, s := range transfer.ActiveStatuses {
		metrics.ClaimableTransfers.WithLabelValues(string(s)).Set(float64(counts[s]))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, rec := range records {
		id := rec.ID
		g.Go(func() error {
			o.process(gctx, id)
			return nil
		})
	}
	return g.Wait()
}

// process owns one record for the duration of a step. Errors never escape.
func (o *Orchestrator) process(ctx context.Context, id string) {
	claimedAt := o.now()
	rec, err := o.store.Claim(ctx, id, o.owner, claimedAt, o.cfg.LeaseDuration)
	if err != nil {
		if errors.Is(err, transfer.ErrClaimConflict) {
			metrics.ClaimConflicts.Inc()
			return
		}
		o.logger.Warn("Failed to claim transfer", zap.String("transfer_id", id), zap.Error(err))
		return
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.store.Release(releaseCtx, id, o.owner); err != nil {
			o.logger.Warn("Failed to release claim", zap.String("transfer_id", id), zap.Error(err))
		}
	}()

	logger := o.logger.With(zap.String("transfer_id", rec.ID), zap.String("status", string(rec.Status)))
	before := rec.Snapshot()
	work := rec.Clone()

	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	renewDone := o.keepLease(stepCtx, cancel, id, logger)
	start := time.Now()
	result, stepErr := o.step(stepCtx, work, claimedAt)
	cancel()
	lost := <-renewDone
	metrics.StepDuration.WithLabelValues(string(before.Status)).Observe(time.Since(start).Seconds())
	if lost {
		logger.Warn("Claim lost during step, discarding outcome")
		return
	}

	now := o.now()
	if now.Sub(claimedAt) > o.cfg.LeaseDuration/2 {
		if err := o.store.Renew(ctx, id, o.owner, now, o.cfg.LeaseDuration); err != nil {
			logger.Warn("Claim lost during step, discarding outcome", zap.Error(err))
			return
		}
	}

	o.apply(work, result, stepErr, now, logger)

	if err := o.store.Save(ctx, work, o.owner, now); err != nil {
		switch {
		case errors.Is(err, transfer.ErrClaimLost):
			logger.Warn("Claim lost before save, discarding outcome")
		case errors.Is(err, store.ErrDuplicateSourceEvent):
			logger.Warn("Source event bound by another transfer, rescanning")
		default:
			logger.Error("Failed to save transfer", zap.Error(err))
		}
		return
	}

	after := work.Snapshot()
	if after.Status != before.Status {
		metrics.TransfersTotal.WithLabelValues(string(work.Kind), string(after.Status)).Inc()
		if after.Status.IsTerminal() {
			metrics.TransferDuration.WithLabelValues(string(work.Kind), string(after.Status)).
				Observe(now.Sub(work.CreatedAt).Seconds())
		}
		logger.Info("Transfer status changed",
			zap.String("next", string(after.Status)),
			zap.String("failure_reason", string(after.FailureReason)))
	}
	if after.Status != before.Status || after.AttemptCount != before.AttemptCount ||
		after.SourceTxHash != before.SourceTxHash {
		o.emitter.Emit(after)
	}
}

// keepLease renews the claim every third of the lease until ctx is done.
// When a renewal fails the step is cancelled and true is sent on the
// returned channel.
func (o *Orchestrator) keepLease(ctx context.Context, cancel context.CancelFunc, id string, logger *zap.Logger) <-chan bool {
	done := make(chan bool, 1)
	interval := o.cfg.LeaseDuration / 3
	if interval <= 0 {
		done <- false
		return done
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				done <- false
				return
			case <-ticker.C:
				if err := o.store.Renew(ctx, id, o.owner, o.now(), o.cfg.LeaseDuration); err != nil {
					if ctx.Err() != nil {
						done <- false
						return
					}
					logger.Warn("Failed to renew claim", zap.Error(err))
					if errors.Is(err, transfer.ErrClaimLost) {
						cancel()
						done <- true
						return
					}
				}
			}
		}
	}()
	return done
}

// apply folds the step outcome into rec: a status transition on success,
// backoff or failure otherwise.
func (o *Orchestrator) apply(rec *transfer.Record, result StepResult, stepErr error, now time.Time, logger *zap.Logger) {
	if stepErr == nil {
		if result.Next != "" && result.Next != rec.Status {
			if err := rec.TransitionTo(result.Next, now); err != nil {
				logger.Error("Step produced an invalid transition", zap.Error(err))
				return
			}
		}
		rec.LastError = ""
		rec.NextAttemptAt = nil
		return
	}

	class := classOf(stepErr)
	metrics.StepErrors.WithLabelValues(string(rec.Status), class).Inc()

	var (
		expired  *transfer.QuoteExpiredError
		slippage *transfer.SlippageExceededError
	)
	switch {
	case errors.As(stepErr, &expired):
		// re-quote on the next tick without spending an attempt
		rec.Quote = nil
		rec.LastError = stepErr.Error()
		rec.NextAttemptAt = nil
		logger.Info("Quote expired, re-quoting", zap.Error(stepErr))
		return

	case errors.As(stepErr, &slippage) && o.cfg.AutoRequoteOnSlippage:
		rec.Quote = nil
		o.backoff(rec, stepErr, now, logger)
		return

	case errors.As(stepErr, &slippage):
		o.fail(rec, transfer.ReasonSlippageExceeded, stepErr, now, logger)
		return
	}

	if reason, ok := transfer.PermanentReason(stepErr); ok {
		o.fail(rec, reason, stepErr, now, logger)
		return
	}
	o.backoff(rec, stepErr, now, logger)
}

func (o *Orchestrator) backoff(rec *transfer.Record, stepErr error, now time.Time, logger *zap.Logger) {
	rec.AttemptCount++
	rec.LastError = stepErr.Error()
	if rec.AttemptCount > o.cfg.MaxAttempts {
		o.fail(rec, transfer.ReasonMaxAttemptsExceeded, stepErr, now, logger)
		return
	}
	next := now.Add(Backoff(o.cfg.BackoffBase, o.cfg.BackoffMax, rec.AttemptCount))
	rec.NextAttemptAt = &next
	logger.Warn("Step failed, backing off",
		zap.Int("attempt", rec.AttemptCount),
		zap.Time("next_attempt_at", next),
		zap.Error(stepErr))
}

func (o *Orchestrator) fail(rec *transfer.Record, reason transfer.Reason, stepErr error, now time.Time, logger *zap.Logger) {
	if err := rec.Fail(reason, stepErr.Error(), now); err != nil {
		logger.Error("Failed to mark transfer failed", zap.Error(err))
		return
	}
	logger.Warn("Transfer failed", zap.String("reason", string(reason)), zap.Error(stepErr))
}

// Backoff returns min(base·2^(attempt-1), maxDelay).
func Backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		if d >= maxDelay/2 {
			return maxDelay
		}
		d *= 2
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

func classOf(err error) string {
	var (
		expired  *transfer.QuoteExpiredError
		slippage *transfer.SlippageExceededError
	)
	switch {
	case errors.As(err, &expired):
		return "quote_expired"
	case errors.As(err, &slippage):
		return "slippage"
	case transfer.IsTransient(err):
		return "transient"
	}
	if _, ok := transfer.PermanentReason(err); ok {
		return "permanent"
	}
	return "unclassified"
}
