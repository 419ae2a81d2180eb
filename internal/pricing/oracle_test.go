package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tad-z/BlockTrace-api/internal/config"
)

func newTestOracle(t *testing.T, handler http.HandlerFunc) *Oracle {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	oracle := NewOracle(&config.PricingConfig{
		BaseURL:         server.URL,
		Timeout:         2 * time.Second,
		CacheTTL:        5 * time.Minute,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(oracle.Stop)
	return oracle
}

func TestGetPriceFromUpstream(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"ethereum": {"usd": 3210.55}}`))
	})

	price := oracle.GetPrice(context.Background(), "ETH")

	assert.True(t, price.Equal(decimal.RequireFromString("3210.55")), "got %s", price)
}

func TestGetPriceCachesResult(t *testing.T) {
	var calls atomic.Int32
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"solana": {"usd": 150}}`))
	})

	first := oracle.GetPrice(context.Background(), "SOL")
	second := oracle.GetPrice(context.Background(), "SOL")

	assert.True(t, first.Equal(second))
	assert.Equal(t, int32(1), calls.Load(), "second lookup must hit the cache")
}

func TestGetPriceUnknownSymbol(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unknown symbols must not reach upstream")
	})

	price := oracle.GetPrice(context.Background(), "NOTACOIN")

	assert.True(t, price.IsZero())
}

func TestGetPriceFallbackOnRateLimit(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	price := oracle.GetPrice(context.Background(), "ETH")

	assert.True(t, price.Equal(decimal.RequireFromString("4300.73")), "got %s", price)
}

func TestGetPriceFallbackZeroWithoutDefault(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	// BONK is a known symbol but carries no hard-coded default.
	price := oracle.GetPrice(context.Background(), "BONK")

	assert.True(t, price.IsZero())
}

func TestPrefetchWarmsCache(t *testing.T) {
	var calls atomic.Int32
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		ids := r.URL.Query().Get("ids")
		assert.Contains(t, ids, "ethereum")
		assert.Contains(t, ids, "usd-coin")
		w.Write([]byte(`{"ethereum": {"usd": 3000}, "usd-coin": {"usd": 1.0}}`))
	})

	oracle.Prefetch(context.Background(), []string{"ETH", "USDC", "NOTACOIN"})

	assert.True(t, oracle.GetPrice(context.Background(), "ETH").Equal(decimal.NewFromInt(3000)))
	assert.True(t, oracle.GetPrice(context.Background(), "USDC").Equal(decimal.RequireFromString("1.0")))
	assert.Equal(t, int32(1), calls.Load(), "prefetch plus cached lookups must make one upstream call")
}

func TestPrefetchFailureNonFatal(t *testing.T) {
	requests := make([]string, 0, 2)
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query().Get("ids"))
		if len(requests) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ethereum": {"usd": 2900}}`))
	})

	oracle.Prefetch(context.Background(), []string{"ETH"})
	price := oracle.GetPrice(context.Background(), "ETH")

	require.Len(t, requests, 2)
	assert.True(t, price.Equal(decimal.NewFromInt(2900)))
}

func TestGetPriceWrappedSOLSharesID(t *testing.T) {
	var calls atomic.Int32
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"solana": {"usd": 151.2}}`))
	})

	sol := oracle.GetPrice(context.Background(), "SOL")
	wsol := oracle.GetPrice(context.Background(), "WSOL")

	// SOL and WSOL map to the same CoinGecko id but cache per symbol.
	assert.True(t, sol.Equal(wsol))
	assert.Equal(t, int32(2), calls.Load())
}
