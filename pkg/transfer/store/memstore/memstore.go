// Package memstore is an in-process implementation of store.Store. It backs
// the memory database driver and the orchestrator tests, and applies the
// same claim and uniqueness rules as the postgres store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/store"
)

// FaultFunc is consulted before every operation. A non-nil error is
// returned to the caller without touching state.
type FaultFunc func(op, id string) error

// Store keeps records in a map guarded by a single mutex.
type Store struct {
	mu      sync.Mutex
	records map[string]*transfer.Record
	cursors map[string]*store.ChainCursor
	fault   FaultFunc
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]*transfer.Record),
		cursors: make(map[string]*store.ChainCursor),
	}
}

// SetFault installs fn as the fault injector. Pass nil to clear it.
func (s *Store) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *Store) inject(op, id string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, id)
}

func (s *Store) Create(_ context.Context, rec *transfer.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inject("create", rec.ID); err != nil {
		return err
	}
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("failed to create transfer: duplicate id %s", rec.ID)
	}
	if s.boundLocked(rec) {
		return store.ErrDuplicateSourceEvent
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*transfer.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inject("get", id); err != nil {
		return nil, err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, transfer.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) List(_ context.Context, opts ...store.QueryOption) ([]*transfer.Record, error) {
	options := store.BuildQueryOptions(opts...)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*transfer.Record
	for _, rec := range s.records {
		if options.OwnerID != nil && rec.OwnerID != *options.OwnerID {
			continue
		}
		if options.Status != nil && rec.Status != *options.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if options.Offset >= len(out) {
		return []*transfer.Record{}, nil
	}
	out = out[options.Offset:]
	if len(out) > options.Limit {
		out = out[:options.Limit]
	}
	clones := make([]*transfer.Record, len(out))
	for i, rec := range out {
		clones[i] = rec.Clone()
	}
	return clones, nil
}

func isActive(status transfer.Status) bool {
	for _, s := range transfer.ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *Store) ListClaimable(_ context.Context, now time.Time, limit int) ([]*transfer.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inject("list_claimable", ""); err != nil {
		return nil, err
	}

	var out []*transfer.Record
	for _, rec := range s.records {
		if !isActive(rec.Status) || rec.Claim.Active(now) {
			continue
		}
		if rec.NextAttemptAt != nil && rec.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	clones := make([]*transfer.Record, len(out))
	for i, rec := range out {
		clones[i] = rec.Clone()
	}
	return clones, nil
}

func (s *Store) Claim(_ context.Context, id, owner string, now time.Time, lease time.Duration) (*transfer.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inject("claim", id); err != nil {
		return nil, err
	}
	rec, ok := s.records[id]
	if !ok || !isActive(rec.Status) || rec.Claim.Active(now) {
		return nil, transfer.ErrClaimConflict
	}
	rec.Claim = &transfer.Claim{Owner: owner, ExpiresAt: now.Add(lease)}
	return rec.Clone(), nil
}

func (s *Store) Renew(_ context.Context, id, owner string, now time.Time, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inject("renew", id); err != nil {
		return err
	}
	rec, ok := s.records[id]
	if !ok || !s.holds(rec, owner, now) {
		return transfer.ErrClaimLost
	}
	rec.Claim.ExpiresAt = now.Add(lease)
	return nil
}

func (s *Store) Release(_ context.Context, id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inject("release", id); err != nil {
		return err
	}
	rec, ok := s.records[id]
	if ok && rec.Claim != nil && rec.Claim.Owner == owner {
		rec.Claim = nil
	}
	return nil
}

func (s *Store) holds(rec *transfer.Record, owner string, now time.Time) bool {
	return rec.Claim != nil && rec.Claim.Owner == owner && rec.Claim.ExpiresAt.After(now)
}

func (s *Store) Save(_ context.Context, rec *transfer.Record, owner string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inject("save", rec.ID); err != nil {
		return err
	}
	cur, ok := s.records[rec.ID]
	if !ok || !s.holds(cur, owner, now) {
		return transfer.ErrClaimLost
	}
	if s.boundLocked(rec) {
		return store.ErrDuplicateSourceEvent
	}

	next := rec.Clone()
	// identity, amount and the claim are not writable through Save
	next.OwnerID = cur.OwnerID
	next.SourceChain = cur.SourceChain
	next.DestinationChain = cur.DestinationChain
	next.Asset = cur.Asset
	next.DestinationAsset = cur.DestinationAsset
	next.Amount = cur.Amount
	next.DestinationAddress = cur.DestinationAddress
	next.Kind = cur.Kind
	next.SlippageTolerance = cur.SlippageTolerance
	next.CreatedAt = cur.CreatedAt
	next.Claim = cur.Claim
	next.UpdatedAt = now
	s.records[rec.ID] = next

	rec.UpdatedAt = now
	return nil
}

func (s *Store) mutate(id string, now time.Time, fn func(*transfer.Record) error) (*transfer.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inject("mutate", id); err != nil {
		return nil, err
	}
	cur, ok := s.records[id]
	if !ok {
		return nil, transfer.ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	s.records[id] = next
	return next.Clone(), nil
}

func (s *Store) ResetForRetry(_ context.Context, id string, now time.Time) (*transfer.Record, error) {
	return s.mutate(id, now, func(rec *transfer.Record) error {
		return rec.ResetForRetry(now)
	})
}

func (s *Store) Cancel(_ context.Context, id string, now time.Time) (*transfer.Record, error) {
	return s.mutate(id, now, func(rec *transfer.Record) error {
		return rec.Cancel(now)
	})
}

// boundLocked reports whether rec's source event is held by another record.
func (s *Store) boundLocked(rec *transfer.Record) bool {
	if rec.SourceTxHash == "" || rec.SourceLogIndex == nil {
		return false
	}
	return s.sourceEventBoundLocked(rec.SourceChain, rec.SourceTxHash, *rec.SourceLogIndex, rec.ID)
}

func (s *Store) sourceEventBoundLocked(chain, txHash string, logIndex uint, excludeID string) bool {
	for id, other := range s.records {
		if id == excludeID || other.SourceLogIndex == nil {
			continue
		}
		if other.SourceChain == chain && other.SourceTxHash == txHash && *other.SourceLogIndex == logIndex {
			return true
		}
	}
	return false
}

func (s *Store) SourceEventBound(_ context.Context, chain, txHash string, logIndex uint, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inject("source_event_bound", excludeID); err != nil {
		return false, err
	}
	return s.sourceEventBoundLocked(chain, txHash, logIndex, excludeID), nil
}

func (s *Store) GetCursor(_ context.Context, chainID string) (*store.ChainCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[chainID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) SetCursor(_ context.Context, chainID string, head uint64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inject("set_cursor", chainID); err != nil {
		return err
	}
	c, ok := s.cursors[chainID]
	if !ok {
		s.cursors[chainID] = &store.ChainCursor{ChainID: chainID, LastHeadBlock: head, UpdatedAt: now}
		return nil
	}
	if head > c.LastHeadBlock {
		c.LastHeadBlock = head
	}
	c.UpdatedAt = now
	return nil
}
