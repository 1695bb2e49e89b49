// Package price provides USD prices for assets. Live prices come from an
// HTTP feed; a bounded LRU cache serves the last known price with a
// reduced-confidence flag while the feed is unavailable.
package price

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when no price, fresh or cached, is known.
var ErrUnavailable = errors.New("price unavailable")

// Price is a USD quote for one unit of an asset.
type Price struct {
	Symbol    string
	USD       decimal.Decimal
	FetchedAt time.Time
	// LowConfidence is set when the price was served from cache after the
	// live feed failed.
	LowConfidence bool
}

// Source returns the current USD price of an asset symbol.
type Source interface {
	GetPrice(ctx context.Context, symbol string) (*Price, error)
}

// StaticSource serves fixed prices, for development and tests.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	now    func() time.Time
}

// NewStaticSource builds a source from a symbol to USD map.
func NewStaticSource(prices map[string]float64) *StaticSource {
	s := &StaticSource{prices: make(map[string]decimal.Decimal, len(prices)), now: time.Now}
	for symbol, usd := range prices {
		s.prices[strings.ToUpper(symbol)] = decimal.NewFromFloat(usd)
	}
	return s
}

// Delete removes symbol, making it unavailable.
func (s *StaticSource) Delete(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, strings.ToUpper(symbol))
}

// Set changes the price of symbol.
func (s *StaticSource) Set(symbol string, usd decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[strings.ToUpper(symbol)] = usd
}

// GetPrice implements Source
func (s *StaticSource) GetPrice(_ context.Context, symbol string) (*Price, error) {
	s.mu.RLock()
	usd, ok := s.prices[strings.ToUpper(symbol)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, symbol)
	}
	return &Price{Symbol: strings.ToUpper(symbol), USD: usd, FetchedAt: s.now()}, nil
}
