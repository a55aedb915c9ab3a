package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quotePayload = `{"c":261.74,"d":3.26,"dp":1.26,"h":263.31,"l":260.68,"o":261.07,"pc":258.48}`

const newsPayload = `[
	{"category":"general","datetime":1756700000,"headline":"Markets rally","id":101,"image":"","related":"","source":"wire","summary":"...","url":"https://example.com/101"},
	{"category":"general","datetime":1756700100,"headline":"Fed minutes","id":102,"image":"","related":"","source":"wire","summary":"...","url":"https://example.com/102"}
]`

func newTestClient(baseURL string, newsTTL time.Duration) *Client {
	return NewClient(ClientConfig{
		BaseURL:      baseURL + "/",
		APIKey:       "test-key",
		NewsCacheTTL: newsTTL,
		Breaker: CircuitBreakerConfig{
			FailureThreshold: 3,
			Cooldown:         time.Minute,
		},
	})
}

func TestGetQuoteParsesProviderFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		w.Write([]byte(quotePayload))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	quote, err := client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "261.74", quote.Current.String())
	assert.Equal(t, "258.48", quote.PrevClose.String())
	assert.Equal(t, "1.26", quote.PercentChange.String())
}

func TestGetQuoteNeverCached(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte(quotePayload))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	for i := 0; i < 3; i++ {
		_, err := client.GetQuote(context.Background(), "AAPL")
		require.NoError(t, err)
	}

	assert.EqualValues(t, 3, hits, "every quote request must reach the provider")
}

func TestGetQuoteRejectsEmptyQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c":0,"d":0,"dp":0,"h":0,"l":0,"o":0,"pc":0}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	_, err := client.GetQuote(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, IsBadResponse(err))
}

func TestGetQuoteMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c": "not-a-number`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	_, err := client.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, IsBadResponse(err))
}

func TestGetQuoteNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	_, err := client.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, IsBadResponse(err))
}

func TestGetQuoteNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(server.URL, 0)
	_, err := client.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
}

func TestCircuitOpensAfterThreeFailuresAndFailsFast(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	for i := 0; i < 3; i++ {
		_, err := client.GetQuote(context.Background(), "AAPL")
		require.Error(t, err)
		assert.True(t, IsBadResponse(err))
	}
	require.EqualValues(t, 3, hits)

	// Fourth call must fail fast without a network round trip
	_, err := client.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, IsCircuitOpen(err))
	assert.EqualValues(t, 3, hits, "open circuit must not hit the provider")
}

func TestBreakersAreIsolatedPerEndpointClass(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/quote" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(newsPayload))
	}))
	defer server.Close()

	client := newTestClient(server.URL, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := client.GetQuote(context.Background(), "AAPL")
		require.Error(t, err)
	}
	_, err := client.GetQuote(context.Background(), "AAPL")
	assert.True(t, IsCircuitOpen(err))

	// News endpoint still works through its own breaker
	items, err := client.GetMarketNews(context.Background(), "general", 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestMarketNewsServedFromCacheWithinTTL(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		assert.Equal(t, "/news", r.URL.Path)
		w.Write([]byte(newsPayload))
	}))
	defer server.Close()

	client := newTestClient(server.URL, time.Minute)

	first, err := client.GetMarketNews(context.Background(), "general", 0)
	require.NoError(t, err)
	second, err := client.GetMarketNews(context.Background(), "general", 0)
	require.NoError(t, err)

	assert.EqualValues(t, 1, hits, "identical (category, minId) within TTL must cost one round trip")
	assert.Equal(t, first, second)
	assert.Equal(t, int64(101), first[0].ID)
	assert.Equal(t, "Markets rally", first[0].Headline)
}

func TestMarketNewsCacheKeyIncludesMinID(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte(newsPayload))
	}))
	defer server.Close()

	client := newTestClient(server.URL, time.Minute)

	_, err := client.GetMarketNews(context.Background(), "general", 0)
	require.NoError(t, err)
	_, err = client.GetMarketNews(context.Background(), "general", 100)
	require.NoError(t, err)

	assert.EqualValues(t, 2, hits, "different minId is a different cache key")
}

func TestMarketNewsRefetchedAfterTTLExpiry(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte(newsPayload))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 30*time.Millisecond)

	_, err := client.GetMarketNews(context.Background(), "general", 0)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	_, err = client.GetMarketNews(context.Background(), "general", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits, "expired entry must trigger a fresh provider call")
}

func TestGetCompanyNewsBuildsDateRangeRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company-news", r.URL.Path)
		assert.Equal(t, "MSFT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2026-08-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-08-31", r.URL.Query().Get("to"))
		w.Write([]byte(newsPayload))
	}))
	defer server.Close()

	client := newTestClient(server.URL, time.Minute)
	items, err := client.GetCompanyNews(context.Background(), "MSFT", "2026-08-01", "2026-08-31")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
