package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// AcceptRequest is an intake request. OwnerID is taken from the caller's
// credentials, never from the body.
type AcceptRequest struct {
	OwnerID            string           `json:"-" validate:"required"`
	SourceChain        string           `json:"source_chain" validate:"required"`
	DestinationChain   string           `json:"destination_chain" validate:"required,nefield=SourceChain"`
	Asset              string           `json:"asset" validate:"required,alphanum"`
	DestinationAsset   string           `json:"destination_asset,omitzero" validate:"omitempty,alphanum"`
	Amount             string           `json:"amount" validate:"required,number"`
	DestinationAddress string           `json:"destination_address" validate:"required"`
	Kind               transfer.Kind    `json:"kind" validate:"required,oneof=transfer swap"`
	SlippageTolerance  *decimal.Decimal `json:"slippage_tolerance,omitempty"`
}

// AcceptResponse is returned by a successful intake.
type AcceptResponse struct {
	ID     string          `json:"id"`
	Status transfer.Status `json:"status"`
}

// QuoteRequest is a dry-run quote for a prospective transfer.
type QuoteRequest struct {
	SourceChain       string           `json:"source_chain" validate:"required"`
	DestinationChain  string           `json:"destination_chain" validate:"required,nefield=SourceChain"`
	Asset             string           `json:"asset" validate:"required,alphanum"`
	DestinationAsset  string           `json:"destination_asset,omitzero" validate:"omitempty,alphanum"`
	Amount            string           `json:"amount" validate:"required,number"`
	SlippageTolerance *decimal.Decimal `json:"slippage_tolerance,omitempty"`
}

// ListRequest filters a listing. An empty OwnerID lists every owner and is
// only allowed for operators.
type ListRequest struct {
	OwnerID string
	Status  transfer.Status
	Limit   int
	Offset  int
}

// StatusResponse is the externally visible view of a record.
type StatusResponse struct {
	ID                     string                  `json:"id"`
	OwnerID                string                  `json:"owner_id"`
	Kind                   transfer.Kind           `json:"kind"`
	Status                 transfer.Status         `json:"status"`
	SourceChain            string                  `json:"source_chain"`
	DestinationChain       string                  `json:"destination_chain"`
	Asset                  string                  `json:"asset"`
	DestinationAsset       string                  `json:"destination_asset,omitzero"`
	Amount                 string                  `json:"amount"`
	DestinationAddress     string                  `json:"destination_address"`
	SourceTxHash           string                  `json:"source_tx_hash,omitzero"`
	DestinationTxHash      string                  `json:"destination_tx_hash,omitzero"`
	FailureReason          transfer.Reason         `json:"failure_reason,omitzero"`
	LastError              string                  `json:"last_error,omitzero"`
	AttemptCount           int                     `json:"attempt_count"`
	Quote                  *transfer.QuoteSnapshot `json:"quote,omitempty"`
	CreatedAt              time.Time               `json:"created_at"`
	UpdatedAt              time.Time               `json:"updated_at"`
	CompletedAt            *time.Time              `json:"completed_at,omitempty"`
	EstimatedTimeRemaining int64                   `json:"estimated_time_remaining_seconds"`
}

func newStatusResponse(rec *transfer.Record, remaining time.Duration) *StatusResponse {
	resp := &StatusResponse{
		ID:                     rec.ID,
		OwnerID:                rec.OwnerID,
		Kind:                   rec.Kind,
		Status:                 rec.Status,
		SourceChain:            rec.SourceChain,
		DestinationChain:       rec.DestinationChain,
		Asset:                  rec.Asset,
		DestinationAsset:       rec.DestinationAsset,
		DestinationAddress:     rec.DestinationAddress,
		SourceTxHash:           rec.SourceTxHash,
		DestinationTxHash:      rec.DestinationTxHash,
		FailureReason:          rec.FailureReason,
		LastError:              rec.LastError,
		AttemptCount:           rec.AttemptCount,
		Quote:                  rec.Quote,
		CreatedAt:              rec.CreatedAt,
		UpdatedAt:              rec.UpdatedAt,
		CompletedAt:            rec.CompletedAt,
		EstimatedTimeRemaining: int64(remaining.Seconds()),
	}
	if rec.Amount != nil {
		resp.Amount = rec.Amount.String()
	}
	return resp
}
