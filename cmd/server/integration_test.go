package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gin-gonic/gin"

	"github.com/Tad-z/BlockTrace-api/internal/chain"
	"github.com/Tad-z/BlockTrace-api/internal/config"
	"github.com/Tad-z/BlockTrace-api/internal/engine"
	"github.com/Tad-z/BlockTrace-api/internal/handlers"
	"github.com/Tad-z/BlockTrace-api/internal/middleware"
	"github.com/Tad-z/BlockTrace-api/internal/models"
	"github.com/Tad-z/BlockTrace-api/internal/quota"
	"github.com/Tad-z/BlockTrace-api/internal/resultcache"
	"github.com/Tad-z/BlockTrace-api/pkg/metrics"
	"github.com/Tad-z/BlockTrace-api/pkg/ratelimiter"
)

const testWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

// stubChain is an in-process chain.Client with canned transfer history.
// Every listed signature resolves to one incoming 1.5 SOL transfer.
type stubChain struct {
	signatures   int
	balance      decimal.Decimal
	counterparty string

	listCalls   atomic.Int64
	detailCalls atomic.Int64
}

func newStubChain(signatures int) *stubChain {
	return &stubChain{
		signatures:   signatures,
		balance:      decimal.NewFromFloat(12.5),
		counterparty: "9yLhw5FX1DbskPsBLBKEbxZdF2RYdzXL51i9AJitWBJa",
	}
}

func (s *stubChain) Name() string           { return "solana" }
func (s *stubChain) NativeSymbol() string   { return "SOL" }
func (s *stubChain) KnownSymbols() []string { return []string{"SOL", "USDC"} }

func (s *stubChain) ValidateAddress(address string) error {
	if len(address) < 32 {
		return fmt.Errorf("invalid address %q", address)
	}
	return nil
}

func (s *stubChain) NormalizeAddress(address string) string { return address }

func (s *stubChain) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	return s.balance, nil
}

func (s *stubChain) ListTransferSignatures(ctx context.Context, address string, limit int) ([]chain.SignatureInfo, error) {
	s.listCalls.Add(1)
	n := s.signatures
	if n > limit {
		n = limit
	}
	sigs := make([]chain.SignatureInfo, 0, n)
	for i := 0; i < n; i++ {
		sigs = append(sigs, chain.SignatureInfo{
			Hash:       fmt.Sprintf("%s-sig-%d", address, i),
			ObservedAt: time.Now().Add(-time.Duration(i) * time.Minute),
		})
	}
	return sigs, nil
}

func (s *stubChain) GetTransferDetail(ctx context.Context, sig chain.SignatureInfo) (*chain.RawTransferEvent, error) {
	s.detailCalls.Add(1)
	return &chain.RawTransferEvent{
		Hash:      sig.Hash,
		Timestamp: sig.ObservedAt,
		Fee:       decimal.New(5000, -9),
		Status:    models.StatusSuccess,
	}, nil
}

func (s *stubChain) Normalize(raw *chain.RawTransferEvent, queriedAddress string) []models.Transfer {
	return []models.Transfer{{
		Hash:        raw.Hash,
		Timestamp:   raw.Timestamp,
		Chain:       "solana",
		Source:      s.counterparty,
		Destination: queriedAddress,
		Amount:      decimal.NewFromFloat(1.5),
		Direction:   models.DirectionIncoming,
		TokenSymbol: "SOL",
		Fee:         raw.Fee,
		Status:      raw.Status,
	}}
}

func (s *stubChain) Ping(ctx context.Context) error { return nil }

// stubPrices prices SOL at a fixed rate and everything else at zero.
type stubPrices struct{}

func (stubPrices) GetPrice(ctx context.Context, symbol string) decimal.Decimal {
	if symbol == "SOL" {
		return decimal.NewFromInt(200)
	}
	return decimal.Zero
}

func (stubPrices) Prefetch(ctx context.Context, symbols []string) {}

type testServer struct {
	router *gin.Engine
	stub   *stubChain
}

// newIntegrationServer assembles the full HTTP stack (middleware, auth,
// engine, in-memory quota and result cache) around a stub chain client.
func newIntegrationServer(t *testing.T, signatures int, requestsPerMinute int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.LoadConfig()
	cfg.Auth.APIKeys = map[string]config.APIKeyInfo{
		"free-key": {UserID: "free-user", Tier: "free"},
		"pro-key":  {UserID: "pro-user", Tier: "pro"},
	}
	cfg.Batch.InterBatchDelay = 0
	cfg.RateLimit.RequestsPerMinute = requestsPerMinute

	stub := newStubChain(signatures)
	chains := chain.Registry{"solana": stub}

	collector := metrics.NewCollector()
	processor := engine.NewProcessor(cfg.Batch, stubPrices{}, collector)
	eng := engine.New(chains, stubPrices{}, processor, quota.NewMemoryLedger(), resultcache.NewMemoryStore(), cfg.ResultCache, collector)

	limiter := ratelimiter.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowSize, cfg.RateLimit.CleanupInterval)
	t.Cleanup(limiter.Stop)

	healthHandler := handlers.NewHealthHandler(chains, nil, collector)
	router := handlers.NewRouter(eng, healthHandler)

	ginEngine := gin.New()
	ginEngine.Use(middleware.MetricsMiddleware(collector))
	ginEngine.Use(limiter.Middleware())
	router.SetupHealthRoutes(ginEngine)
	router.SetupRoutes(ginEngine, middleware.AuthMiddleware(&cfg.Auth))

	return &testServer{router: ginEngine, stub: stub}
}

func (ts *testServer) analyzeWallet(apiKey, address string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{
		"wallet_address": address,
		"chain":          "solana",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/wallet", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestIntegrationWalletAnalysis(t *testing.T) {
	ts := newIntegrationServer(t, 3, 100)

	w := ts.analyzeWallet("pro-key", testWallet)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result models.AggregationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, testWallet, result.WalletAddress)
	assert.Equal(t, "solana", result.Chain)
	assert.Equal(t, "pro", result.SubscriptionTier)
	assert.True(t, result.Balance.Equal(decimal.NewFromFloat(12.5)))
	assert.Equal(t, 3, result.TotalTransactions)

	// Queried wallet plus the single counterparty.
	require.Len(t, result.GraphData.Nodes, 2)
	assert.Equal(t, testWallet, result.GraphData.Nodes[0].FullAddress)
	assert.Len(t, result.GraphData.Edges, 3)

	assert.Equal(t, 3, result.Summary.TotalIncoming)
	assert.Equal(t, 0, result.Summary.TotalOutgoing)
	assert.True(t, result.Summary.NativeVolume.Equal(decimal.NewFromFloat(4.5)))
	assert.Equal(t, []string{"SOL"}, result.Summary.TokensFound)

	// Prices flow through to USD equivalents: 1.5 SOL at 200.
	assert.True(t, result.GraphData.Edges[0].USDEquivalent.Equal(decimal.NewFromInt(300)))

	require.NotNil(t, result.QuotaInfo)
	assert.Equal(t, 1, result.QuotaInfo.AddressesUsedToday)
	assert.Equal(t, 50, result.QuotaInfo.DailyLimit)
}

func TestIntegrationResultCaching(t *testing.T) {
	ts := newIntegrationServer(t, 2, 100)

	w := ts.analyzeWallet("pro-key", testWallet)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), ts.stub.listCalls.Load())
	assert.Equal(t, int64(2), ts.stub.detailCalls.Load())

	// Second request for the same wallet is served from the result cache.
	w = ts.analyzeWallet("pro-key", testWallet)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), ts.stub.listCalls.Load())
	assert.Equal(t, int64(2), ts.stub.detailCalls.Load())

	var result models.AggregationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotNil(t, result.QuotaInfo)
	assert.Equal(t, 1, result.QuotaInfo.AddressesUsedToday)
}

func TestIntegrationQuotaEnforcement(t *testing.T) {
	ts := newIntegrationServer(t, 1, 100)

	// Free tier allows 5 distinct addresses per day.
	for i := 0; i < 5; i++ {
		address := fmt.Sprintf("FreeTierWallet%02dxxxxxxxxxxxxxxxxxxxx", i)
		w := ts.analyzeWallet("free-key", address)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := ts.analyzeWallet("free-key", "FreeTierWallet99xxxxxxxxxxxxxxxxxxxx")
	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "QUOTA_EXCEEDED", errObj["code"])

	// A previously analyzed address stays free.
	w = ts.analyzeWallet("free-key", "FreeTierWallet00xxxxxxxxxxxxxxxxxxxx")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIntegrationAuthRequired(t *testing.T) {
	ts := newIntegrationServer(t, 1, 100)

	w := ts.analyzeWallet("", testWallet)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.analyzeWallet("no-such-key", testWallet)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIntegrationInvalidRequests(t *testing.T) {
	ts := newIntegrationServer(t, 1, 100)

	t.Run("UnsupportedChain", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"wallet_address": testWallet,
			"chain":          "dogecoin",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/wallet", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer pro-key")
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("InvalidAddress", func(t *testing.T) {
		w := ts.analyzeWallet("pro-key", "tooshort")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/wallet", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer pro-key")
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestIntegrationHealthEndpoints(t *testing.T) {
	ts := newIntegrationServer(t, 1, 100)

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/status"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "metrics")
}

func TestIntegrationRateLimiting(t *testing.T) {
	ts := newIntegrationServer(t, 1, 3)

	limited := 0
	for i := 0; i < 6; i++ {
		w := ts.analyzeWallet("pro-key", testWallet)
		if w.Code == http.StatusTooManyRequests {
			limited++
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		}
	}
	assert.Equal(t, 3, limited)
}
