package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxFetchRetries = 2

// HTTPSource fetches prices from GET {baseURL}/prices/{symbol}, which
// answers {"symbol":"ETH","usd":"3120.55"}.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPSource creates a price feed client.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type priceResponse struct {
	Symbol string          `json:"symbol"`
	USD    decimal.Decimal `json:"usd"`
}

// GetPrice implements Source
func (s *HTTPSource) GetPrice(ctx context.Context, symbol string) (*Price, error) {
	symbol = strings.ToUpper(symbol)
	endpoint := fmt.Sprintf("%s/prices/%s", s.baseURL, url.PathEscape(symbol))

	var out priceResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrUnavailable, symbol))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("price feed returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("price feed returned %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode price response: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	err := backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxFetchRetries), ctx),
		func(err error, wait time.Duration) {
			s.logger.Debug("Retrying price fetch", zap.String("symbol", symbol), zap.Duration("wait", wait), zap.Error(err))
		})
	if err != nil {
		return nil, err
	}
	if !out.USD.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive price for %s", ErrUnavailable, symbol)
	}
	return &Price{Symbol: symbol, USD: out.USD, FetchedAt: time.Now()}, nil
}
