// Package transfer holds the domain model of a cross-chain value movement:
// the durable record, its status graph and the error taxonomy used to
// classify step failures.
package transfer

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a transfer record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusBridging  Status = "bridging"
	StatusSwapping  Status = "swapping"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ActiveStatuses are the statuses the orchestrator drives forward.
var ActiveStatuses = []Status{StatusPending, StatusBridging, StatusSwapping}

// IsTerminal reports whether no automatic step applies to the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusBridging, StatusSwapping, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Kind distinguishes a plain bridge transfer from a bridge-then-swap.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindSwap     Kind = "swap"
)

// transitions is the full status graph. FAILED -> PENDING is only reachable
// through ResetForRetry.
var transitions = map[Status][]Status{
	StatusPending:  {StatusBridging, StatusFailed},
	StatusBridging: {StatusSwapping, StatusCompleted, StatusFailed},
	StatusSwapping: {StatusCompleted, StatusFailed},
	StatusFailed:   {StatusPending},
}

// CanTransition reports whether the graph has an edge from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Claim is the lease a worker holds on a record while processing it.
type Claim struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Active reports whether the lease is still held at now.
func (c *Claim) Active(now time.Time) bool {
	return c != nil && c.Owner != "" && now.Before(c.ExpiresAt)
}

// RelayReceipt is the persisted outcome of handing the transfer to a bridge protocol.
type RelayReceipt struct {
	Adapter       string     `json:"adapter"`
	PayloadKind   string     `json:"payload_kind"`
	CorrelationID string     `json:"correlation_id"`
	TxHash        string     `json:"tx_hash,omitempty"`
	SentAt        time.Time  `json:"sent_at"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

// Delivered reports whether the protocol confirmed delivery on the destination side.
func (r *RelayReceipt) Delivered() bool {
	return r != nil && r.DeliveredAt != nil
}

// Record is the durable unit of work for one cross-chain value movement.
type Record struct {
	ID                 string
	OwnerID            string
	SourceChain        string
	DestinationChain   string
	Asset              string
	DestinationAsset   string
	Amount             *big.Int
	DestinationAddress string
	Kind               Kind
	Status             Status
	SlippageTolerance  decimal.Decimal

	SourceTxHash      string
	SourceLogIndex    *uint
	SourceBlockNumber *uint64
	ScanCursor        uint64

	Relay             *RelayReceipt
	PendingDestTxHash string
	BroadcastAt       *time.Time
	DestinationTxHash string
	Quote             *QuoteSnapshot

	FailureReason Reason
	LastError     string
	Claim         *Claim
	AttemptCount  int
	NextAttemptAt *time.Time

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// OutputAsset is the asset the recipient ends up holding.
func (r *Record) OutputAsset() string {
	if r.Kind == KindSwap && r.DestinationAsset != "" {
		return r.DestinationAsset
	}
	return r.Asset
}

// TransitionTo moves the record along the status graph, enforcing the
// kind-specific edges and the COMPLETED precondition.
func (r *Record) TransitionTo(to Status, now time.Time) error {
	if !CanTransition(r.Status, to) || (r.Status == StatusFailed && to == StatusPending) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	switch {
	case to == StatusSwapping && r.Kind != KindSwap:
		return fmt.Errorf("%w: %s record cannot enter %s", ErrInvalidTransition, r.Kind, to)
	case r.Status == StatusBridging && to == StatusCompleted && r.Kind == KindSwap:
		return fmt.Errorf("%w: swap record must pass through %s", ErrInvalidTransition, StatusSwapping)
	case to == StatusCompleted && r.DestinationTxHash == "":
		return fmt.Errorf("%w: destination tx hash not set", ErrInvalidTransition)
	}

	r.Status = to
	r.UpdatedAt = now
	if to == StatusCompleted {
		r.CompletedAt = &now
	}
	return nil
}

// Fail moves the record to FAILED with a machine-readable reason.
func (r *Record) Fail(reason Reason, detail string, now time.Time) error {
	if err := r.TransitionTo(StatusFailed, now); err != nil {
		return err
	}
	r.FailureReason = reason
	r.LastError = detail
	r.NextAttemptAt = nil
	return nil
}

// SetDestinationTxHash records the confirmed destination transaction. The
// hash can be written once; repeating the same value is a no-op.
func (r *Record) SetDestinationTxHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("empty destination tx hash")
	}
	if r.DestinationTxHash != "" && r.DestinationTxHash != hash {
		return ErrDestinationHashSet
	}
	r.DestinationTxHash = hash
	r.PendingDestTxHash = ""
	return nil
}

// ResetForRetry is the operator-initiated FAILED -> PENDING regression. The
// verified source event is kept; everything derived from later steps is
// cleared so the next pass re-checks chain state and fetches a fresh quote.
func (r *Record) ResetForRetry(now time.Time) error {
	if r.Status != StatusFailed {
		return ErrNotFailed
	}
	r.Status = StatusPending
	r.FailureReason = ""
	r.LastError = ""
	r.Claim = nil
	r.AttemptCount = 0
	r.NextAttemptAt = nil
	r.Relay = nil
	r.Quote = nil
	r.PendingDestTxHash = ""
	r.BroadcastAt = nil
	r.UpdatedAt = now
	return nil
}

// Cancel flips a record that has not committed funds on-chain to FAILED.
func (r *Record) Cancel(now time.Time) error {
	if r.SourceTxHash != "" {
		return ErrAlreadyCommitted
	}
	if r.Status.IsTerminal() {
		return fmt.Errorf("%w: record is %s", ErrInvalidTransition, r.Status)
	}
	if r.Claim.Active(now) {
		return ErrClaimConflict
	}
	return r.Fail(ReasonCancelled, "cancelled by owner", now)
}

// Snapshot is the status view emitted to observers and returned to clients.
type Snapshot struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Kind              Kind      `json:"kind"`
	Status            Status    `json:"status"`
	SourceTxHash      string    `json:"source_tx_hash,omitempty"`
	DestinationTxHash string    `json:"destination_tx_hash,omitempty"`
	FailureReason     Reason    `json:"failure_reason,omitempty"`
	AttemptCount      int       `json:"attempt_count"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Snapshot returns the observable state of the record.
func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		ID:                r.ID,
		OwnerID:           r.OwnerID,
		Kind:              r.Kind,
		Status:            r.Status,
		SourceTxHash:      r.SourceTxHash,
		DestinationTxHash: r.DestinationTxHash,
		FailureReason:     r.FailureReason,
		AttemptCount:      r.AttemptCount,
		UpdatedAt:         r.UpdatedAt,
	}
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Amount != nil {
		c.Amount = new(big.Int).Set(r.Amount)
	}
	if r.SourceLogIndex != nil {
		v := *r.SourceLogIndex
		c.SourceLogIndex = &v
	}
	if r.SourceBlockNumber != nil {
		v := *r.SourceBlockNumber
		c.SourceBlockNumber = &v
	}
	if r.Relay != nil {
		relay := *r.Relay
		c.Relay = &relay
	}
	if r.Quote != nil {
		c.Quote = r.Quote.Clone()
	}
	if r.Claim != nil {
		claim := *r.Claim
		c.Claim = &claim
	}
	return &c
}
