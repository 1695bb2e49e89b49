// Package quote prices a value movement: the USD rate between the bridged
// and the output asset, a capped non-linear price impact against the
// configured liquidity depth, the bridge fee and the slippage bound that
// authorizes execution.
package quote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/internal/metrics"
	"github.com/chainsafe/xchain-orchestrator/pkg/bridge"
	"github.com/chainsafe/xchain-orchestrator/pkg/chain"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/price"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// rateScale is the number of decimal places kept for exchange rates.
const rateScale = 18

// Request describes the movement to price.
type Request struct {
	FromAsset         string
	ToAsset           string
	SourceChain       string
	DestChain         string
	AmountIn          *big.Int
	SlippageTolerance decimal.Decimal
	// RecordID and Recipient, when known, make the bridge fee estimate exact.
	RecordID  string
	Recipient string
}

// Engine produces quote snapshots.
type Engine struct {
	registry *chain.Registry
	selector *bridge.Selector
	prices   price.Source
	cfg      config.QuoteConfig
	logger   *zap.Logger
	now      func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for quote validity.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a quote engine.
func New(registry *chain.Registry, selector *bridge.Selector, prices price.Source, cfg config.QuoteConfig, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		selector: selector,
		prices:   prices,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PriceImpact returns min(cap, k·ratio^1.5) where ratio is the trade size
// over the liquidity depth.
func PriceImpact(sizeUSD, liquidityUSD, coefficient, impactCap float64) float64 {
	if sizeUSD <= 0 || liquidityUSD <= 0 {
		return 0
	}
	impact := coefficient * math.Pow(sizeUSD/liquidityUSD, 1.5)
	return math.Min(impactCap, impact)
}

// ForRecord prices the destination leg of a swap record.
func (e *Engine) ForRecord(ctx context.Context, rec *transfer.Record) (*transfer.QuoteSnapshot, error) {
	return e.Quote(ctx, Request{
		FromAsset:         rec.Asset,
		ToAsset:           rec.OutputAsset(),
		SourceChain:       rec.SourceChain,
		DestChain:         rec.DestinationChain,
		AmountIn:          rec.Amount,
		SlippageTolerance: rec.SlippageTolerance,
		RecordID:          rec.ID,
		Recipient:         rec.DestinationAddress,
	})
}

// Quote prices req. AmountIn is in source chain base units.
func (e *Engine) Quote(ctx context.Context, req Request) (*transfer.QuoteSnapshot, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, transfer.Invalid("amount", "must be positive")
	}
	slippage := req.SlippageTolerance
	if slippage.IsZero() {
		slippage = decimal.NewFromFloat(e.cfg.DefaultSlippage)
	}
	if slippage.IsNegative() || slippage.GreaterThan(decimal.NewFromFloat(e.cfg.MaxSlippage)) {
		return nil, transfer.Invalid("slippage_tolerance", "must be in (0, %v]", e.cfg.MaxSlippage)
	}
	toAsset := req.ToAsset
	if toAsset == "" {
		toAsset = req.FromAsset
	}

	src, err := e.registry.Get(req.SourceChain)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	dst, err := e.registry.Get(req.DestChain)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	srcAsset, err := e.registry.Asset(src.ID, req.FromAsset)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	bridged, err := e.registry.Asset(dst.ID, req.FromAsset)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	output, err := e.registry.Asset(dst.ID, toAsset)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	swap := output.Symbol != bridged.Symbol
	if swap && !dst.HasAggregator() {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute,
			fmt.Errorf("chain %s has no aggregator router", dst.ID))
	}

	amountIn := chain.ConvertAmount(req.AmountIn, srcAsset.Decimals, bridged.Decimals)
	now := e.now().UTC()
	snap := &transfer.QuoteSnapshot{
		SourceChain:       src.ID,
		DestinationChain:  dst.ID,
		SourceAsset:       bridged.Symbol,
		DestAsset:         output.Symbol,
		AmountIn:          amountIn,
		Rate:              decimal.NewFromInt(1),
		PriceImpact:       decimal.Zero,
		GasEstimate:       e.cfg.CompleteGasLimit,
		Route:             []string{bridged.Address.Hex()},
		SlippageTolerance: slippage,
		CreatedAt:         now,
		ValidUntil:        now.Add(e.cfg.Validity),
	}

	if swap {
		if err := e.priceSwap(ctx, snap, bridged, output, amountIn); err != nil {
			return nil, err
		}
	} else {
		snap.EstimatedAmountOut = new(big.Int).Set(amountIn)
	}
	if snap.EstimatedAmountOut.Sign() <= 0 {
		return nil, transfer.Permanent(transfer.ReasonQuoteUnavailable, errors.New("amount too small to produce output"))
	}
	snap.AmountOutMin = transfer.AmountOutMin(snap.EstimatedAmountOut, slippage)

	fee, err := e.bridgeFee(ctx, req, src, dst, srcAsset, bridged)
	if err != nil {
		return nil, err
	}
	snap.BridgeFee = fee

	metrics.QuotePriceImpact.WithLabelValues(dst.ID, output.Symbol).Observe(snap.PriceImpact.InexactFloat64())
	e.logger.Debug("Quote produced",
		zap.String("source_chain", src.ID),
		zap.String("destination_chain", dst.ID),
		zap.String("from", bridged.Symbol),
		zap.String("to", output.Symbol),
		zap.String("amount_in", amountIn.String()),
		zap.String("estimated_out", snap.EstimatedAmountOut.String()),
		zap.String("price_impact", snap.PriceImpact.String()),
		zap.Bool("low_confidence", snap.LowConfidence))
	return snap, nil
}

func (e *Engine) priceSwap(ctx context.Context, snap *transfer.QuoteSnapshot, in, out chain.Asset, amountIn *big.Int) error {
	pIn, err := e.getPrice(ctx, in.Symbol)
	if err != nil {
		return err
	}
	pOut, err := e.getPrice(ctx, out.Symbol)
	if err != nil {
		return err
	}
	if !pIn.USD.IsPositive() || !pOut.USD.IsPositive() {
		return transfer.Permanent(transfer.ReasonQuoteUnavailable,
			fmt.Errorf("non-positive price for %s/%s", in.Symbol, out.Symbol))
	}

	units := decimal.NewFromBigInt(amountIn, -int32(in.Decimals))
	sizeUSD := units.Mul(pIn.USD).InexactFloat64()
	if out.LiquidityUSD <= 0 || sizeUSD > out.LiquidityUSD {
		return transfer.Permanent(transfer.ReasonInsufficientLiquidity,
			fmt.Errorf("trade of %.2f USD exceeds %s liquidity of %.2f USD", sizeUSD, out.Symbol, out.LiquidityUSD))
	}
	impact := decimal.NewFromFloat(PriceImpact(sizeUSD, out.LiquidityUSD, e.cfg.ImpactCoefficient, e.cfg.ImpactCap))
	rate := pIn.USD.DivRound(pOut.USD, rateScale)

	snap.Rate = rate
	snap.PriceImpact = impact
	snap.EstimatedAmountOut = units.Mul(rate).
		Mul(decimal.NewFromInt(1).Sub(impact)).
		Shift(int32(out.Decimals)).
		Floor().
		BigInt()
	snap.GasEstimate = e.cfg.SwapGasLimit
	snap.Route = []string{in.Address.Hex(), out.Address.Hex()}
	snap.LowConfidence = pIn.LowConfidence || pOut.LowConfidence
	return nil
}

// getPrice treats a missing price as retryable: the feed or the cache may
// recover before the record runs out of attempts.
func (e *Engine) getPrice(ctx context.Context, symbol string) (*price.Price, error) {
	p, err := e.prices.GetPrice(ctx, symbol)
	if err != nil {
		return nil, transfer.Transient("price "+symbol, err)
	}
	return p, nil
}

func (e *Engine) bridgeFee(ctx context.Context, req Request, src, dst *chain.Chain, srcAsset, dstAsset chain.Asset) (*big.Int, error) {
	adapter, err := e.selector.For(src, dst, srcAsset)
	if err != nil {
		return nil, transfer.Permanent(transfer.ReasonUnsupportedRoute, err)
	}
	recordID := req.RecordID
	if recordID == "" {
		recordID = "quote"
	}
	var recipient common.Address
	if req.Recipient != "" && common.IsHexAddress(req.Recipient) {
		recipient = common.HexToAddress(req.Recipient)
	}
	msg := bridge.Message{
		RecordID:    recordID,
		Source:      src,
		Destination: dst,
		Payload: adapter.NewPayload(bridge.Route{
			RecordID:    recordID,
			Source:      src,
			Destination: dst,
			SourceAsset: srcAsset,
			DestAsset:   dstAsset,
			Recipient:   recipient,
			Amount:      req.AmountIn,
		}),
	}
	fee, err := adapter.EstimateFee(ctx, msg)
	if err != nil {
		return nil, bridge.Classify(err)
	}
	return fee.Fee, nil
}
