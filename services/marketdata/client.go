package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Endpoint classes. Each class has its own circuit breaker so a degraded
// news feed does not block quote fetches and vice versa.
const (
	endpointQuote       = "quote"
	endpointNews        = "news"
	endpointCompanyNews = "company-news"
)

// Default client configuration
const (
	DefaultNewsCacheTTL   = 10 * time.Minute
	DefaultRequestTimeout = 15 * time.Second
)

// Quote represents a realtime quote from the provider
type Quote struct {
	Current       decimal.Decimal `json:"c"`
	Change        decimal.Decimal `json:"d"`
	PercentChange decimal.Decimal `json:"dp"`
	High          decimal.Decimal `json:"h"`
	Low           decimal.Decimal `json:"l"`
	Open          decimal.Decimal `json:"o"`
	PrevClose     decimal.Decimal `json:"pc"`
}

// NewsItem represents a single news article from the provider
type NewsItem struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// ClientConfig holds configuration for the market data client
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	NewsCacheTTL   time.Duration
	Breaker        CircuitBreakerConfig // Name is overridden per endpoint class
}

// Client wraps the external quote/news provider. Quote requests always hit
// the provider (prices must be fresh for trading decisions); news requests
// are read-through cached per (category, minId) with a fixed TTL. All calls
// pass through a per-endpoint circuit breaker and return *MarketError on
// failure.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	newsCache *newsCache

	breakerMu  sync.Mutex
	breakers   map[string]*CircuitBreaker
	breakerCfg CircuitBreakerConfig
}

// NewClient creates a market data client
func NewClient(cfg ClientConfig) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.NewsCacheTTL <= 0 {
		cfg.NewsCacheTTL = DefaultNewsCacheTTL
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker = DefaultCircuitBreakerConfig("")
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		newsCache:  newNewsCache(cfg.NewsCacheTTL),
		breakers:   make(map[string]*CircuitBreaker),
		breakerCfg: cfg.Breaker,
	}
}

// GetQuote fetches the current quote for a symbol. Never served from cache.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	requestURL := fmt.Sprintf("%squote?symbol=%s&token=%s", c.baseURL, url.QueryEscape(symbol), c.apiKey)

	body, err := c.doRequest(ctx, endpointQuote, requestURL)
	if err != nil {
		return nil, err
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		c.breaker(endpointQuote).RecordFailure()
		return nil, newMarketError(ErrKindBadResponse, endpointQuote, fmt.Errorf("failed to parse quote: %w", err))
	}

	// The provider returns an all-zero quote for unknown symbols; treat it
	// as a bad response rather than handing a zero price to callers.
	if quote.Current.IsZero() && quote.PrevClose.IsZero() && quote.Open.IsZero() {
		c.breaker(endpointQuote).RecordFailure()
		return nil, newMarketError(ErrKindBadResponse, endpointQuote, fmt.Errorf("empty quote for symbol %s", symbol))
	}

	c.breaker(endpointQuote).RecordSuccess()
	return &quote, nil
}

// GetMarketNews fetches general market news for a category. Responses are
// cached per (category, minId); within the TTL window repeated calls are
// served from cache without a provider round trip. Pass minID=0 for no
// minimum article id.
func (c *Client) GetMarketNews(ctx context.Context, category string, minID int64) ([]NewsItem, error) {
	cacheKey := fmt.Sprintf("%s_%d", category, minID)

	return c.newsCache.fetchThrough(cacheKey, func() ([]NewsItem, error) {
		requestURL := fmt.Sprintf("%snews?category=%s&token=%s", c.baseURL, url.QueryEscape(category), c.apiKey)
		if minID > 0 {
			requestURL += "&minId=" + strconv.FormatInt(minID, 10)
		}
		return c.fetchNews(ctx, endpointNews, requestURL)
	})
}

// GetCompanyNews fetches news for a company between two dates (YYYY-MM-DD).
func (c *Client) GetCompanyNews(ctx context.Context, symbol, from, to string) ([]NewsItem, error) {
	requestURL := fmt.Sprintf("%scompany-news?symbol=%s&from=%s&to=%s&token=%s",
		c.baseURL, url.QueryEscape(symbol), url.QueryEscape(from), url.QueryEscape(to), c.apiKey)
	return c.fetchNews(ctx, endpointCompanyNews, requestURL)
}

// PurgeExpiredNews evicts expired news cache entries. Called periodically
// by the scheduler; correctness does not depend on it since reads check
// freshness themselves.
func (c *Client) PurgeExpiredNews() {
	c.newsCache.purgeExpired()
}

// BreakerStates returns the current per-endpoint circuit states (for the
// status endpoint).
func (c *Client) BreakerStates() map[string]string {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()

	states := make(map[string]string, len(c.breakers))
	for name, cb := range c.breakers {
		states[name] = cb.State().String()
	}
	return states
}

// fetchNews performs a news request and decodes the article list.
func (c *Client) fetchNews(ctx context.Context, endpoint, requestURL string) ([]NewsItem, error) {
	body, err := c.doRequest(ctx, endpoint, requestURL)
	if err != nil {
		return nil, err
	}

	var items []NewsItem
	if err := json.Unmarshal(body, &items); err != nil {
		c.breaker(endpoint).RecordFailure()
		return nil, newMarketError(ErrKindBadResponse, endpoint, fmt.Errorf("failed to parse news: %w", err))
	}

	c.breaker(endpoint).RecordSuccess()
	return items, nil
}

// doRequest executes one HTTP GET through the endpoint's circuit breaker.
// The breaker decision for response-level failures is made here; payload
// decoding failures are recorded by the caller.
func (c *Client) doRequest(ctx context.Context, endpoint, requestURL string) ([]byte, error) {
	cb := c.breaker(endpoint)
	if !cb.Allow() {
		return nil, newMarketError(ErrKindCircuitOpen, endpoint, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		cb.RecordFailure()
		return nil, newMarketError(ErrKindNetwork, endpoint, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cb.RecordFailure()
		return nil, newMarketError(ErrKindNetwork, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		cb.RecordFailure()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("Provider %s returned status %d: %s", endpoint, resp.StatusCode, string(snippet))
		return nil, newMarketError(ErrKindBadResponse, endpoint, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		cb.RecordFailure()
		return nil, newMarketError(ErrKindNetwork, endpoint, fmt.Errorf("failed to read response: %w", err))
	}

	return body, nil
}

// breaker returns the circuit breaker for an endpoint class, creating it on
// first use.
func (c *Client) breaker(endpoint string) *CircuitBreaker {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()

	cb, ok := c.breakers[endpoint]
	if !ok {
		cfg := c.breakerCfg
		cfg.Name = endpoint
		cb = NewCircuitBreaker(cfg)
		c.breakers[endpoint] = cb
	}
	return cb
}
