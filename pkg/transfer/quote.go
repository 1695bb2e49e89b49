package transfer

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSnapshot is a priced route for a value movement. It is produced fresh
// for every execution attempt and is persisted only on swap records.
type QuoteSnapshot struct {
	SourceChain        string          `json:"source_chain"`
	DestinationChain   string          `json:"destination_chain"`
	SourceAsset        string          `json:"source_asset"`
	DestAsset          string          `json:"dest_asset"`
	AmountIn           *big.Int        `json:"amount_in"`
	EstimatedAmountOut *big.Int        `json:"estimated_amount_out"`
	AmountOutMin       *big.Int        `json:"amount_out_min"`
	Rate               decimal.Decimal `json:"rate"`
	PriceImpact        decimal.Decimal `json:"price_impact"`
	BridgeFee          *big.Int        `json:"bridge_fee"`
	GasEstimate        uint64          `json:"gas_estimate"`
	Route              []string        `json:"route"`
	SlippageTolerance  decimal.Decimal `json:"slippage_tolerance"`
	LowConfidence      bool            `json:"low_confidence"`
	CreatedAt          time.Time       `json:"created_at"`
	ValidUntil         time.Time       `json:"valid_until"`
}

// Valid reports whether the quote may still authorize execution at now.
func (q *QuoteSnapshot) Valid(now time.Time) bool {
	return q != nil && now.Before(q.ValidUntil)
}

// Clone returns a deep copy.
func (q *QuoteSnapshot) Clone() *QuoteSnapshot {
	if q == nil {
		return nil
	}
	c := *q
	c.AmountIn = cloneInt(q.AmountIn)
	c.EstimatedAmountOut = cloneInt(q.EstimatedAmountOut)
	c.AmountOutMin = cloneInt(q.AmountOutMin)
	c.BridgeFee = cloneInt(q.BridgeFee)
	c.Route = append([]string(nil), q.Route...)
	return &c
}

// AmountOutMin computes estimatedOut × (1 − slippage), rounded down.
func AmountOutMin(estimatedOut *big.Int, slippage decimal.Decimal) *big.Int {
	if estimatedOut == nil {
		return new(big.Int)
	}
	factor := decimal.NewFromInt(1).Sub(slippage)
	if factor.IsNegative() {
		return new(big.Int)
	}
	return decimal.NewFromBigInt(estimatedOut, 0).Mul(factor).Floor().BigInt()
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
