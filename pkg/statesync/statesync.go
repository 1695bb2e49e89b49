// Package statesync publishes transfer status snapshots to observers.
// Emission never blocks the caller: snapshots are buffered and dropped
// when the buffer is full.
package statesync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/internal/metrics"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// publishTimeout bounds a single sink publish.
const publishTimeout = 5 * time.Second

// Sink receives snapshots.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap transfer.Snapshot) error
	Close() error
}

// Emitter is the producer side used by the orchestrator and intake.
type Emitter interface {
	Emit(snap transfer.Snapshot) bool
}

// Synchronizer fans snapshots out to its sinks from a single goroutine.
type Synchronizer struct {
	sinks  []Sink
	queue  chan transfer.Snapshot
	logger *zap.Logger

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

var _ Emitter = (*Synchronizer)(nil)

// New creates a synchronizer buffering up to bufferSize snapshots.
func New(bufferSize int, logger *zap.Logger, sinks ...Sink) *Synchronizer {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Synchronizer{
		sinks:  sinks,
		queue:  make(chan transfer.Snapshot, bufferSize),
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Emit queues snap and reports whether it was accepted.
func (s *Synchronizer) Emit(snap transfer.Snapshot) bool {
	select {
	case s.queue <- snap:
		return true
	default:
		metrics.StateSyncDropped.Inc()
		s.logger.Warn("Dropping status snapshot, buffer full",
			zap.String("transfer_id", snap.ID),
			zap.String("status", string(snap.Status)))
		return false
	}
}

// Start runs the delivery loop until ctx is cancelled or Stop is called.
func (s *Synchronizer) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				s.drain()
				return
			case <-s.stopCh:
				s.drain()
				return
			case snap := <-s.queue:
				s.deliver(snap)
			}
		}
	}()
}

// Stop flushes queued snapshots and closes the sinks.
func (s *Synchronizer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		for _, sink := range s.sinks {
			err = multierr.Append(err, sink.Close())
		}
	})
	return err
}

func (s *Synchronizer) drain() {
	for {
		select {
		case snap := <-s.queue:
			s.deliver(snap)
		default:
			return
		}
	}
}

func (s *Synchronizer) deliver(snap transfer.Snapshot) {
	for _, sink := range s.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := sink.Publish(ctx, snap)
		cancel()
		if err != nil {
			s.logger.Warn("Failed to publish status snapshot",
				zap.String("sink", sink.Name()),
				zap.String("transfer_id", snap.ID),
				zap.Error(err))
		}
	}
}
