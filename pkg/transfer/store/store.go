// Package store persists transfer records and chain cursors, and implements
// the compare-and-set claim protocol that lets several orchestrator
// replicas share one table.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// ErrDuplicateSourceEvent is returned when a save would bind a source event
// already recorded on another transfer.
var ErrDuplicateSourceEvent = errors.New("source event already bound to another transfer")

// ChainCursor is the last chain head the verifier observed for a chain.
type ChainCursor struct {
	ChainID       string
	LastHeadBlock uint64
	UpdatedAt     time.Time
}

// ClaimStore is the lease protocol used by the orchestrator.
type ClaimStore interface {
	// ListClaimable returns active records with no live claim whose backoff has elapsed.
	ListClaimable(ctx context.Context, now time.Time, limit int) ([]*transfer.Record, error)
	// Claim takes the lease on id if no other owner holds a live one.
	Claim(ctx context.Context, id, owner string, now time.Time, lease time.Duration) (*transfer.Record, error)
	// Renew extends a lease still held by owner.
	Renew(ctx context.Context, id, owner string, now time.Time, lease time.Duration) error
	// Release drops the lease held by owner.
	Release(ctx context.Context, id, owner string) error
	// Save writes the mutable state of rec while owner still holds the lease.
	Save(ctx context.Context, rec *transfer.Record, owner string, now time.Time) error
}

// CursorStore persists chain head checkpoints.
type CursorStore interface {
	GetCursor(ctx context.Context, chainID string) (*ChainCursor, error)
	SetCursor(ctx context.Context, chainID string, head uint64, now time.Time) error
}

// Store defines transfer record persistence
type Store interface {
	ClaimStore
	CursorStore
	Create(ctx context.Context, rec *transfer.Record) error
	Get(ctx context.Context, id string) (*transfer.Record, error)
	List(ctx context.Context, opts ...QueryOption) ([]*transfer.Record, error)
	// ResetForRetry moves a FAILED record back to PENDING.
	ResetForRetry(ctx context.Context, id string, now time.Time) (*transfer.Record, error)
	// Cancel fails a record that has not committed funds on the source chain.
	Cancel(ctx context.Context, id string, now time.Time) (*transfer.Record, error)
	// SourceEventBound reports whether another record already holds the event.
	SourceEventBound(ctx context.Context, chain, txHash string, logIndex uint, excludeID string) (bool, error)
}

// QueryOptions defines filters for listing records
type QueryOptions struct {
	OwnerID *string
	Status  *transfer.Status
	Limit   int
	Offset  int
}

// QueryOption is a functional option for listing records
type QueryOption func(*QueryOptions)

// WithOwner filters by owner id
func WithOwner(ownerID string) QueryOption {
	return func(opts *QueryOptions) {
		opts.OwnerID = &ownerID
	}
}

// WithStatus filters by status
func WithStatus(status transfer.Status) QueryOption {
	return func(opts *QueryOptions) {
		opts.Status = &status
	}
}

// WithPage sets limit and offset
func WithPage(limit, offset int) QueryOption {
	return func(opts *QueryOptions) {
		opts.Limit = limit
		opts.Offset = offset
	}
}

// DefaultListLimit caps unpaginated list queries.
const DefaultListLimit = 100

// BuildQueryOptions applies opts over the defaults.
func BuildQueryOptions(opts ...QueryOption) *QueryOptions {
	options := &QueryOptions{Limit: DefaultListLimit}
	for _, opt := range opts {
		opt(options)
	}
	if options.Limit <= 0 || options.Limit > 1000 {
		options.Limit = DefaultListLimit
	}
	if options.Offset < 0 {
		options.Offset = 0
	}
	return options
}
