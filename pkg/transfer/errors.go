package transfer

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	ErrNotFound           = errors.New("transfer not found")
	ErrNotFailed          = errors.New("not_failed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrDestinationHashSet = errors.New("destination tx hash already set")
	ErrClaimConflict      = errors.New("record is claimed by another worker")
	ErrClaimLost          = errors.New("claim lost before save")
	ErrAlreadyCommitted   = errors.New("funds already committed on source chain")
)

// Reason is the machine-readable code carried by every FAILED record.
type Reason string

const (
	ReasonSourceEventNotFound   Reason = "source_event_not_found"
	ReasonMaxAttemptsExceeded   Reason = "max_attempts_exceeded"
	ReasonSlippageExceeded      Reason = "slippage_exceeded"
	ReasonInsufficientLiquidity Reason = "insufficient_liquidity"
	ReasonDestinationRejected   Reason = "destination_rejected"
	ReasonInsufficientFunds     Reason = "insufficient_funds"
	ReasonContractRejected      Reason = "contract_rejected"
	ReasonMalformedRoute        Reason = "malformed_route"
	ReasonRelayFailed           Reason = "relay_failed"
	ReasonCancelled             Reason = "cancelled"
	ReasonUnsupportedRoute      Reason = "unsupported_route"
	ReasonQuoteUnavailable      Reason = "quote_unavailable"
)

// ValidationError rejects a request at intake. Nothing is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransientChainError is safe to retry after backoff (timeouts, nonce
// contention, congestion, provider outages).
type TransientChainError struct {
	Op  string
	Err error
}

func (e *TransientChainError) Error() string {
	return fmt.Sprintf("transient %s: %v", e.Op, e.Err)
}

func (e *TransientChainError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientChainError{Op: op, Err: err}
}

// PermanentChainError is terminal: the record fails with Reason.
type PermanentChainError struct {
	Reason Reason
	Err    error
}

func (e *PermanentChainError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *PermanentChainError) Unwrap() error { return e.Err }

// Permanent wraps err as terminal with the given reason.
func Permanent(reason Reason, err error) error {
	if err == nil {
		err = errors.New(string(reason))
	}
	return &PermanentChainError{Reason: reason, Err: err}
}

// QuoteExpiredError forces a re-quote. It never fails the record.
type QuoteExpiredError struct {
	ValidUntil time.Time
}

func (e *QuoteExpiredError) Error() string {
	if e.ValidUntil.IsZero() {
		return "quote missing"
	}
	return fmt.Sprintf("quote expired at %s", e.ValidUntil.Format(time.RFC3339))
}

// SlippageExceededError reports an execution whose output fell below the
// quoted minimum.
type SlippageExceededError struct {
	AmountOutMin *big.Int
	Err          error
}

func (e *SlippageExceededError) Error() string {
	if e.AmountOutMin != nil {
		return fmt.Sprintf("slippage exceeded (min out %s): %v", e.AmountOutMin, e.Err)
	}
	return fmt.Sprintf("slippage exceeded: %v", e.Err)
}

func (e *SlippageExceededError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a TransientChainError.
func IsTransient(err error) bool {
	var t *TransientChainError
	return errors.As(err, &t)
}

// PermanentReason returns the failure reason when err is permanent.
func PermanentReason(err error) (Reason, bool) {
	var p *PermanentChainError
	if errors.As(err, &p) {
		return p.Reason, true
	}
	return "", false
}
