// Package service is the intake and status surface of the orchestrator:
// it accepts new transfers, reports their progress and exposes the
// operator retry and owner cancel actions.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/internal/metrics"
	apperrors "github.com/chainsafe/xchain-orchestrator/pkg/app/errors"
	"github.com/chainsafe/xchain-orchestrator/pkg/chain"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/quote"
	"github.com/chainsafe/xchain-orchestrator/pkg/statesync"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/store"
)

// defaultBlockTime is assumed for chains configured without a block time.
const defaultBlockTime = 12 * time.Second

// Store is the narrow data-access interface of the intake service.
//
//go:generate mockery --name Store --output mocks --outpkg mocks --filename mock_store.go --with-expecter
type Store interface {
	Create(ctx context.Context, rec *transfer.Record) error
	Get(ctx context.Context, id string) (*transfer.Record, error)
	List(ctx context.Context, opts ...store.QueryOption) ([]*transfer.Record, error)
	ResetForRetry(ctx context.Context, id string, now time.Time) (*transfer.Record, error)
	Cancel(ctx context.Context, id string, now time.Time) (*transfer.Record, error)
}

// Quoter prices prospective transfers.
type Quoter interface {
	Quote(ctx context.Context, req quote.Request) (*transfer.QuoteSnapshot, error)
}

// Service defines the intake and status operations.
//
//go:generate mockery --name Service --output mocks --outpkg mocks --filename mock_service.go --with-expecter
type Service interface {
	Accept(ctx context.Context, req *AcceptRequest) (*AcceptResponse, error)
	Get(ctx context.Context, id string) (*StatusResponse, error)
	List(ctx context.Context, req *ListRequest) ([]*StatusResponse, error)
	Retry(ctx context.Context, id string) (*StatusResponse, error)
	Cancel(ctx context.Context, id string) (*StatusResponse, error)
	Quote(ctx context.Context, req *QuoteRequest) (*transfer.QuoteSnapshot, error)
}

// Config holds the intake limits.
type Config struct {
	DefaultSlippage  decimal.Decimal
	MaxSlippage      decimal.Decimal
	MinConfirmations uint64
}

// NewConfig collects the intake settings from the loaded configuration.
func NewConfig(cfg *config.Config) Config {
	return Config{
		DefaultSlippage:  decimal.NewFromFloat(cfg.Quote.DefaultSlippage),
		MaxSlippage:      decimal.NewFromFloat(cfg.Quote.MaxSlippage),
		MinConfirmations: cfg.Verifier.MinConfirmations,
	}
}

type transferService struct {
	store    Store
	registry *chain.Registry
	quoter   Quoter
	emitter  statesync.Emitter
	cfg      Config
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the intake service.
func NewService(
	st Store,
	registry *chain.Registry,
	quoter Quoter,
	emitter statesync.Emitter,
	cfg Config,
	logger *zap.Logger,
) Service {
	return &transferService{
		store:    st,
		registry: registry,
		quoter:   quoter,
		emitter:  emitter,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Accept validates req and persists a PENDING record. No chain I/O happens
// here; the orchestrator picks the record up on its next tick.
func (s *transferService) Accept(ctx context.Context, req *AcceptRequest) (*AcceptResponse, error) {
	if err := s.checkStruct(req); err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, badRequest(err)
	}
	slippage, err := s.slippage(req.SlippageTolerance)
	if err != nil {
		return nil, badRequest(err)
	}
	if err := s.checkRoute(req); err != nil {
		return nil, badRequest(err)
	}

	now := s.now()
	rec := &transfer.Record{
		ID:                 uuid.NewString(),
		OwnerID:            req.OwnerID,
		SourceChain:        req.SourceChain,
		DestinationChain:   req.DestinationChain,
		Asset:              strings.ToUpper(req.Asset),
		Amount:             amount,
		DestinationAddress: req.DestinationAddress,
		Kind:               req.Kind,
		Status:             transfer.StatusPending,
		SlippageTolerance:  slippage,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.Kind == transfer.KindSwap {
		rec.DestinationAsset = strings.ToUpper(req.DestinationAsset)
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist transfer: %w", err)
	}
	metrics.TransfersCreated.WithLabelValues(string(rec.Kind)).Inc()
	s.emitter.Emit(rec.Snapshot())

	return &AcceptResponse{ID: rec.ID, Status: rec.Status}, nil
}

func (s *transferService) checkStruct(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return badRequest(transfer.Invalid(toSnake(f.Field()), "failed %q check", f.Tag()))
		}
		return badRequest(transfer.Invalid("", "%s", err.Error()))
	}
	return nil
}

// checkRoute resolves every chain and asset the record will need.
func (s *transferService) checkRoute(req *AcceptRequest) error {
	if _, err := s.registry.Get(req.SourceChain); err != nil {
		return transfer.Invalid("source_chain", "%v", err)
	}
	dst, err := s.registry.Get(req.DestinationChain)
	if err != nil {
		return transfer.Invalid("destination_chain", "%v", err)
	}
	if _, err := s.registry.Asset(req.SourceChain, req.Asset); err != nil {
		return transfer.Invalid("asset", "%v", err)
	}
	if _, err := s.registry.Asset(req.DestinationChain, req.Asset); err != nil {
		return transfer.Invalid("asset", "%v", err)
	}
	if err := s.registry.ValidateAddress(req.DestinationChain, req.DestinationAddress); err != nil {
		return transfer.Invalid("destination_address", "%v", err)
	}

	if req.Kind != transfer.KindSwap {
		if req.DestinationAsset != "" && !strings.EqualFold(req.DestinationAsset, req.Asset) {
			return transfer.Invalid("destination_asset", "only swap transfers change the asset")
		}
		return nil
	}
	if req.DestinationAsset == "" {
		return transfer.Invalid("destination_asset", "required for swaps")
	}
	if strings.EqualFold(req.DestinationAsset, req.Asset) {
		return transfer.Invalid("destination_asset", "must differ from asset")
	}
	if _, err := s.registry.Asset(req.DestinationChain, req.DestinationAsset); err != nil {
		return transfer.Invalid("destination_asset", "%v", err)
	}
	if !dst.HasAggregator() {
		return transfer.Invalid("destination_chain", "swaps are not supported on %s", dst.ID)
	}
	return nil
}

func (s *transferService) slippage(in *decimal.Decimal) (decimal.Decimal, error) {
	if in == nil {
		return s.cfg.DefaultSlippage, nil
	}
	if !in.IsPositive() || in.GreaterThan(s.cfg.MaxSlippage) {
		return decimal.Zero, transfer.Invalid("slippage_tolerance", "must be in (0, %s]", s.cfg.MaxSlippage)
	}
	return *in, nil
}

// Get returns the status view of a record.
func (s *transferService) Get(ctx context.Context, id string) (*StatusResponse, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return s.view(rec), nil
}

// List returns records newest first.
func (s *transferService) List(ctx context.Context, req *ListRequest) ([]*StatusResponse, error) {
	opts := []store.QueryOption{store.WithPage(req.Limit, req.Offset)}
	if req.OwnerID != "" {
		opts = append(opts, store.WithOwner(req.OwnerID))
	}
	if req.Status != "" {
		if !req.Status.Valid() {
			return nil, badRequest(transfer.Invalid("status", "unknown status %q", req.Status))
		}
		opts = append(opts, store.WithStatus(req.Status))
	}

	records, err := s.store.List(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	out := make([]*StatusResponse, len(records))
	for i, rec := range records {
		out[i] = s.view(rec)
	}
	return out, nil
}

// Retry resets a FAILED record to PENDING.
func (s *transferService) Retry(ctx context.Context, id string) (*StatusResponse, error) {
	rec, err := s.store.ResetForRetry(ctx, id, s.now())
	if err != nil {
		switch {
		case errors.Is(err, transfer.ErrNotFailed):
			return nil, apperrors.ConflictError(err, "not_failed")
		default:
			return nil, notFound(err)
		}
	}
	s.logger.Info("Transfer reset for retry", zap.String("transfer_id", rec.ID))
	s.emitter.Emit(rec.Snapshot())
	return s.view(rec), nil
}

// Cancel fails a record whose funds are not yet committed on-chain.
func (s *transferService) Cancel(ctx context.Context, id string) (*StatusResponse, error) {
	rec, err := s.store.Cancel(ctx, id, s.now())
	if err != nil {
		switch {
		case errors.Is(err, transfer.ErrAlreadyCommitted):
			return nil, apperrors.ConflictError(err, "already_committed")
		case errors.Is(err, transfer.ErrClaimConflict):
			return nil, apperrors.ConflictError(err, "in_progress")
		case errors.Is(err, transfer.ErrInvalidTransition):
			return nil, apperrors.ConflictError(err, "terminal")
		default:
			return nil, notFound(err)
		}
	}
	s.emitter.Emit(rec.Snapshot())
	return s.view(rec), nil
}

// Quote prices a prospective transfer without persisting anything.
func (s *transferService) Quote(ctx context.Context, req *QuoteRequest) (*transfer.QuoteSnapshot, error) {
	if err := s.checkStruct(req); err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, badRequest(err)
	}
	slippage, err := s.slippage(req.SlippageTolerance)
	if err != nil {
		return nil, badRequest(err)
	}

	q, err := s.quoter.Quote(ctx, quote.Request{
		FromAsset:         req.Asset,
		ToAsset:           req.DestinationAsset,
		SourceChain:       req.SourceChain,
		DestChain:         req.DestinationChain,
		AmountIn:          amount,
		SlippageTolerance: slippage,
	})
	if err != nil {
		return nil, quoteError(err)
	}
	return q, nil
}

func (s *transferService) view(rec *transfer.Record) *StatusResponse {
	return newStatusResponse(rec, s.estimateRemaining(rec))
}

// estimateRemaining adds up the block-time cost of the stages still ahead
// of rec: source confirmations, relay delivery and destination confirmations.
func (s *transferService) estimateRemaining(rec *transfer.Record) time.Duration {
	if rec.Status.IsTerminal() {
		return 0
	}
	blockTime := func(id string) time.Duration {
		c, err := s.registry.Get(id)
		if err != nil || c.BlockTime <= 0 {
			return defaultBlockTime
		}
		return c.BlockTime
	}
	src, dst := blockTime(rec.SourceChain), blockTime(rec.DestinationChain)
	confs := time.Duration(s.cfg.MinConfirmations)

	destination := dst * confs
	relay := 2 * src
	var remaining time.Duration
	switch rec.Status {
	case transfer.StatusPending:
		remaining = src*confs + relay + destination
	case transfer.StatusBridging:
		remaining = destination
		if !rec.Relay.Delivered() {
			remaining += relay
		}
	case transfer.StatusSwapping:
		remaining = destination
	}
	if rec.NextAttemptAt != nil {
		if wait := rec.NextAttemptAt.Sub(s.now()); wait > 0 {
			remaining += wait
		}
	}
	return remaining
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, transfer.Invalid("amount", "must be an integer in base units")
	}
	if amount.Sign() <= 0 {
		return nil, transfer.Invalid("amount", "must be positive")
	}
	return amount, nil
}

func badRequest(err error) error {
	var verr *transfer.ValidationError
	if errors.As(err, &verr) {
		return apperrors.BadRequestError(err, verr.Error())
	}
	return apperrors.BadRequestError(err, "invalid request")
}

func notFound(err error) error {
	if errors.Is(err, transfer.ErrNotFound) {
		return apperrors.ResourceNotFoundError(err, "transfer not found")
	}
	return fmt.Errorf("failed to load transfer: %w", err)
}

func quoteError(err error) error {
	var verr *transfer.ValidationError
	if errors.As(err, &verr) {
		return apperrors.BadRequestError(err, verr.Error())
	}
	if reason, ok := transfer.PermanentReason(err); ok {
		return apperrors.BadRequestError(err, string(reason))
	}
	if transfer.IsTransient(err) {
		return apperrors.DependencyError(err, "quote temporarily unavailable")
	}
	return fmt.Errorf("failed to quote: %w", err)
}

// toSnake converts a Go field name to its json tag form.
func toSnake(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
