package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
	"github.com/ruimcosta/investrack-backend/internal/domain"
	"github.com/ruimcosta/investrack-backend/internal/logger"
)

// quoteResponse is the quote endpoint's JSON payload. Prices travel as
// strings to keep decimal precision across the wire.
type quoteResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Client implements domain.PriceService against an HTTP quote endpoint.
// Quotes are cached with a TTL and requests are rate limited, so a cascade
// recomputing many dates does not hammer the provider with repeated lookups
// for the same ticker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *gocache.Cache
	limiter    *rate.Limiter
}

// NewClient creates a new price client.
// requestsPerSecond bounds outbound calls; cacheTTL bounds quote staleness.
func NewClient(baseURL string, cacheTTL time.Duration, requestsPerSecond float64) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		cache:      gocache.New(cacheTTL, 2*cacheTTL),
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// GetCurrentPrice returns the current price for a ticker, serving from cache
// when a fresh quote is available. A missing quote maps to
// domain.ErrPriceUnavailable so callers can degrade instead of failing.
func (c *Client) GetCurrentPrice(ctx context.Context, tickerID string) (decimal.Decimal, error) {
	if cached, found := c.cache.Get(tickerID); found {
		return cached.(decimal.Decimal), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("price lookup rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/quote?symbol=%s", c.baseURL, url.QueryEscape(tickerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.L.Warn("quote request failed", "ticker", tickerID, "error", err)
		return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Zero, domain.ErrPriceUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: quote endpoint returned %d", domain.ErrPriceUnavailable, resp.StatusCode)
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode quote response: %w", err)
	}

	price, err := decimal.NewFromString(quote.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse quote price %q: %w", quote.Price, err)
	}

	c.cache.Set(tickerID, price, gocache.DefaultExpiration)
	return price, nil
}
