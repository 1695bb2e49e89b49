package price

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/internal/metrics"
)

// CachedSource wraps a live source. Successful lookups refresh the cache;
// failures fall back to a cached price no older than maxStale, flagged
// LowConfidence.
type CachedSource struct {
	live     Source
	cache    *lru.Cache[string, Price]
	maxStale time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewCachedSource creates a fallback cache holding up to size symbols.
func NewCachedSource(live Source, size int, maxStale time.Duration, logger *zap.Logger) (*CachedSource, error) {
	cache, err := lru.New[string, Price](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create price cache: %w", err)
	}
	return &CachedSource{
		live:     live,
		cache:    cache,
		maxStale: maxStale,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// GetPrice implements Source
func (c *CachedSource) GetPrice(ctx context.Context, symbol string) (*Price, error) {
	symbol = strings.ToUpper(symbol)

	p, err := c.live.GetPrice(ctx, symbol)
	if err == nil {
		c.cache.Add(symbol, *p)
		return p, nil
	}

	cached, ok := c.cache.Get(symbol)
	if !ok || (c.maxStale > 0 && c.now().Sub(cached.FetchedAt) > c.maxStale) {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol, err)
	}

	metrics.PriceFallbacks.WithLabelValues(symbol).Inc()
	c.logger.Warn("Serving cached price",
		zap.String("symbol", symbol),
		zap.Time("fetched_at", cached.FetchedAt),
		zap.Error(err))
	cached.LowConfidence = true
	return &cached, nil
}
