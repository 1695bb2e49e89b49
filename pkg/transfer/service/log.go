package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

const serviceName = "TransferService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the transfer Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) done(method string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		ls.logger.Error(method+" failed", append(fields, zap.Error(err))...)
		return
	}
	ls.logger.Info(method+" completed", fields...)
}

// Accept wraps the service method with logging
func (ls *logService) Accept(ctx context.Context, req *AcceptRequest) (resp *AcceptResponse, err error) {
	start := time.Now()
	fields := []zap.Field{
		zap.String("owner_id", req.OwnerID),
		zap.String("kind", string(req.Kind)),
		zap.String("route", req.SourceChain+"->"+req.DestinationChain),
		zap.String("asset", req.Asset),
		zap.String("amount", req.Amount),
	}
	defer func() {
		if resp != nil {
			fields = append(fields, zap.String("transfer_id", resp.ID))
		}
		ls.done("Accept", start, err, fields...)
	}()
	return ls.svc.Accept(ctx, req)
}

// Get is read-heavy and only logs failures
func (ls *logService) Get(ctx context.Context, id string) (*StatusResponse, error) {
	resp, err := ls.svc.Get(ctx, id)
	if err != nil {
		ls.logger.Debug("Get failed", zap.String("transfer_id", id), zap.Error(err))
	}
	return resp, err
}

// List is read-heavy and only logs failures
func (ls *logService) List(ctx context.Context, req *ListRequest) ([]*StatusResponse, error) {
	resp, err := ls.svc.List(ctx, req)
	if err != nil {
		ls.logger.Debug("List failed", zap.String("owner_id", req.OwnerID), zap.Error(err))
	}
	return resp, err
}

// Retry wraps the service method with logging
func (ls *logService) Retry(ctx context.Context, id string) (resp *StatusResponse, err error) {
	start := time.Now()
	defer func() { ls.done("Retry", start, err, zap.String("transfer_id", id)) }()
	return ls.svc.Retry(ctx, id)
}

// Cancel wraps the service method with logging
func (ls *logService) Cancel(ctx context.Context, id string) (resp *StatusResponse, err error) {
	start := time.Now()
	defer func() { ls.done("Cancel", start, err, zap.String("transfer_id", id)) }()
	return ls.svc.Cancel(ctx, id)
}

// Quote wraps the service method with logging
func (ls *logService) Quote(ctx context.Context, req *QuoteRequest) (q *transfer.QuoteSnapshot, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("route", req.SourceChain+"->"+req.DestinationChain),
			zap.String("asset", req.Asset),
			zap.String("amount", req.Amount),
		}
		if q != nil {
			fields = append(fields,
				zap.String("estimated_amount_out", q.EstimatedAmountOut.String()),
				zap.String("price_impact", q.PriceImpact.String()),
				zap.Bool("low_confidence", q.LowConfidence))
		}
		ls.done("Quote", start, err, fields...)
	}()
	return ls.svc.Quote(ctx, req)
}
