package quote

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/pkg/bridge"
	"github.com/chainsafe/xchain-orchestrator/pkg/chain/chaintest"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
	"github.com/chainsafe/xchain-orchestrator/pkg/price"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

var testQuoteConfig = config.QuoteConfig{
	Validity:          30 * time.Second,
	ImpactCap:         0.10,
	ImpactCoefficient: 1.0,
	DefaultSlippage:   0.005,
	MaxSlippage:       0.05,
	CompleteGasLimit:  200_000,
	SwapGasLimit:      400_000,
}

func newTestEngine(t *testing.T, prices price.Source) (*Engine, time.Time) {
	t.Helper()
	env := chaintest.New(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := New(env.Registry, bridge.NewSelector(env.Registry), prices, testQuoteConfig, zap.NewNop(),
		WithClock(func() time.Time { return now }))
	return e, now
}

func units(n int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

func TestPriceImpact(t *testing.T) {
	cases := []struct {
		name      string
		size, liq float64
		want      float64
	}{
		{"empty trade", 0, 1000, 0},
		{"no liquidity", 10, 0, 0},
		{"small trade", 1000, 1_000_000, 0.0000316},
		{"quarter of pool", 250_000, 1_000_000, 0.1},
		{"capped", 900_000, 1_000_000, 0.1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, PriceImpact(tc.size, tc.liq, 1.0, 0.1), 1e-6)
		})
	}
}

func TestQuote_Swap(t *testing.T) {
	e, now := newTestEngine(t, price.NewStaticSource(map[string]float64{"X": 1, "Y": 2}))

	q, err := e.Quote(context.Background(), Request{
		FromAsset:   chaintest.AssetX,
		ToAsset:     chaintest.AssetY,
		SourceChain: chaintest.ChainA,
		DestChain:   chaintest.ChainB,
		AmountIn:    units(1000, 6),
	})
	require.NoError(t, err)

	assert.Equal(t, "X", q.SourceAsset)
	assert.Equal(t, "Y", q.DestAsset)
	assert.True(t, q.Rate.Equal(decimal.RequireFromString("0.5")), "rate %s", q.Rate)
	assert.True(t, q.PriceImpact.IsPositive())
	assert.True(t, q.PriceImpact.LessThan(decimal.RequireFromString("0.0001")))

	// 1000 X at 0.5 less ~0.003% impact.
	assert.Equal(t, -1, q.EstimatedAmountOut.Cmp(units(500, 6)))
	assert.Equal(t, 1, q.EstimatedAmountOut.Cmp(units(499, 6)))
	assert.Equal(t, 0, q.AmountOutMin.Cmp(transfer.AmountOutMin(q.EstimatedAmountOut, decimal.NewFromFloat(0.005))))

	assert.Equal(t, []string{chaintest.TokenXB.Hex(), chaintest.TokenYB.Hex()}, q.Route)
	assert.Equal(t, uint64(400_000), q.GasEstimate)
	assert.Equal(t, int64(1000), q.BridgeFee.Int64())
	assert.Equal(t, now.Add(30*time.Second), q.ValidUntil)
	assert.True(t, q.Valid(now))
	assert.False(t, q.Valid(q.ValidUntil))
	assert.False(t, q.LowConfidence)
}

func TestQuote_Transfer(t *testing.T) {
	e, _ := newTestEngine(t, price.NewStaticSource(nil))

	q, err := e.Quote(context.Background(), Request{
		FromAsset:         chaintest.AssetP,
		SourceChain:       chaintest.ChainA,
		DestChain:         chaintest.ChainB,
		AmountIn:          units(3, 18),
		SlippageTolerance: decimal.NewFromFloat(0.01),
	})
	require.NoError(t, err)

	assert.True(t, q.Rate.Equal(decimal.NewFromInt(1)))
	assert.True(t, q.PriceImpact.IsZero())
	assert.Equal(t, 0, q.EstimatedAmountOut.Cmp(units(3, 18)))
	assert.Equal(t, int64(500), q.BridgeFee.Int64(), "native portal fee")
	assert.Equal(t, uint64(200_000), q.GasEstimate)
}

func TestQuote_InsufficientLiquidity(t *testing.T) {
	e, _ := newTestEngine(t, price.NewStaticSource(map[string]float64{"X": 1, "Y": 1}))

	_, err := e.Quote(context.Background(), Request{
		FromAsset:   chaintest.AssetX,
		ToAsset:     chaintest.AssetY,
		SourceChain: chaintest.ChainA,
		DestChain:   chaintest.ChainB,
		AmountIn:    units(2_000_000, 6),
	})
	reason, ok := transfer.PermanentReason(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, transfer.ReasonInsufficientLiquidity, reason)
}

func TestQuote_MissingPriceIsTransient(t *testing.T) {
	prices := price.NewStaticSource(map[string]float64{"X": 1, "Y": 1})
	prices.Delete("Y")
	e, _ := newTestEngine(t, prices)

	_, err := e.Quote(context.Background(), Request{
		FromAsset:   chaintest.AssetX,
		ToAsset:     chaintest.AssetY,
		SourceChain: chaintest.ChainA,
		DestChain:   chaintest.ChainB,
		AmountIn:    units(1, 6),
	})
	require.Error(t, err)
	assert.True(t, transfer.IsTransient(err))
	assert.True(t, errors.Is(err, price.ErrUnavailable))
}

type staleSource struct{}

func (staleSource) GetPrice(_ context.Context, symbol string) (*price.Price, error) {
	return &price.Price{Symbol: symbol, USD: decimal.NewFromInt(1), LowConfidence: symbol == "Y"}, nil
}

func TestQuote_LowConfidencePropagates(t *testing.T) {
	e, _ := newTestEngine(t, staleSource{})

	q, err := e.Quote(context.Background(), Request{
		FromAsset:   chaintest.AssetX,
		ToAsset:     chaintest.AssetY,
		SourceChain: chaintest.ChainA,
		DestChain:   chaintest.ChainB,
		AmountIn:    units(10, 6),
	})
	require.NoError(t, err)
	assert.True(t, q.LowConfidence)
}

func TestQuote_Rejections(t *testing.T) {
	e, _ := newTestEngine(t, price.NewStaticSource(map[string]float64{"X": 1, "Y": 1, "P": 1}))
	ctx := context.Background()

	_, err := e.Quote(ctx, Request{FromAsset: "X", SourceChain: chaintest.ChainA, DestChain: chaintest.ChainB, AmountIn: big.NewInt(0)})
	var verr *transfer.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = e.Quote(ctx, Request{
		FromAsset: "X", SourceChain: chaintest.ChainA, DestChain: chaintest.ChainB,
		AmountIn: big.NewInt(10), SlippageTolerance: decimal.NewFromFloat(0.2),
	})
	assert.True(t, errors.As(err, &verr))

	// chain-a has no aggregator router
	_, err = e.Quote(ctx, Request{FromAsset: "X", ToAsset: "P", SourceChain: chaintest.ChainB, DestChain: chaintest.ChainA, AmountIn: big.NewInt(10)})
	reason, ok := transfer.PermanentReason(err)
	require.True(t, ok)
	assert.Equal(t, transfer.ReasonUnsupportedRoute, reason)

	_, err = e.Quote(ctx, Request{FromAsset: "DAI", SourceChain: chaintest.ChainA, DestChain: chaintest.ChainB, AmountIn: big.NewInt(10)})
	reason, _ = transfer.PermanentReason(err)
	assert.Equal(t, transfer.ReasonUnsupportedRoute, reason)
}
