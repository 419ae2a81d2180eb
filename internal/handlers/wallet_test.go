package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tad-z/BlockTrace-api/internal/config"
	"github.com/Tad-z/BlockTrace-api/internal/engine"
	"github.com/Tad-z/BlockTrace-api/internal/middleware"
	"github.com/Tad-z/BlockTrace-api/internal/models"
)

type fakeAggregator struct {
	lastRequest  engine.Request
	lastDeadline time.Time
	result       *models.AggregationResult
	err          error
}

func (f *fakeAggregator) Aggregate(ctx context.Context, req engine.Request) (*models.AggregationResult, error) {
	f.lastRequest = req
	f.lastDeadline, _ = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func setupTestServer(aggregator Aggregator) *gin.Engine {
	gin.SetMode(gin.TestMode)

	auth := &config.AuthConfig{APIKeys: map[string]config.APIKeyInfo{
		"test-key": {UserID: "user1", Tier: "pro"},
	}}

	server := gin.New()
	router := NewRouter(aggregator, NewHealthHandler(nil, nil, nil))
	router.SetupRoutes(server, middleware.AuthMiddleware(auth))
	return server
}

func postWallet(t *testing.T, server *gin.Engine, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/wallet", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return resp
}

func TestAnalyzeWalletSuccess(t *testing.T) {
	aggregator := &fakeAggregator{result: &models.AggregationResult{
		WalletAddress:     "wallet1",
		Balance:           decimal.NewFromFloat(2.5),
		Chain:             "solana",
		SubscriptionTier:  "pro",
		TotalTransactions: 3,
	}}
	server := setupTestServer(aggregator)

	recorder := postWallet(t, server, "test-key", `{"wallet_address": "wallet1", "chain": "solana"}`)

	require.Equal(t, http.StatusOK, recorder.Code)

	var result models.AggregationResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, "wallet1", result.WalletAddress)
	assert.Equal(t, 3, result.TotalTransactions)

	// Identity and tier come from the API key, not the body.
	assert.Equal(t, "user1", aggregator.lastRequest.User)
	assert.Equal(t, "pro", aggregator.lastRequest.Tier)
	assert.Equal(t, "solana", aggregator.lastRequest.Chain)
}

func TestAnalyzeWalletBoundsRequestDuration(t *testing.T) {
	aggregator := &fakeAggregator{result: &models.AggregationResult{}}
	server := setupTestServer(aggregator)

	start := time.Now()
	recorder := postWallet(t, server, "test-key", `{"wallet_address": "wallet1", "chain": "solana"}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.False(t, aggregator.lastDeadline.IsZero(), "aggregation context must carry a deadline")
	assert.WithinDuration(t, start.Add(analysisTimeout), aggregator.lastDeadline, time.Second)
}

func TestAnalyzeWalletMissingAPIKey(t *testing.T) {
	server := setupTestServer(&fakeAggregator{})

	recorder := postWallet(t, server, "", `{"wallet_address": "wallet1", "chain": "solana"}`)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, models.ErrorCodeMissingAPIKey, decodeError(t, recorder).Error.Code)
}

func TestAnalyzeWalletInvalidAPIKey(t *testing.T) {
	server := setupTestServer(&fakeAggregator{})

	recorder := postWallet(t, server, "wrong-key", `{"wallet_address": "wallet1", "chain": "solana"}`)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, models.ErrorCodeInvalidAPIKey, decodeError(t, recorder).Error.Code)
}

func TestAnalyzeWalletMalformedJSON(t *testing.T) {
	server := setupTestServer(&fakeAggregator{})

	recorder := postWallet(t, server, "test-key", `{"wallet_address": `)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, models.ErrorCodeMalformedJSON, decodeError(t, recorder).Error.Code)
}

func TestAnalyzeWalletMissingFields(t *testing.T) {
	server := setupTestServer(&fakeAggregator{})

	recorder := postWallet(t, server, "test-key", `{"chain": "solana"}`)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, models.ErrorCodeInvalidRequest, decodeError(t, recorder).Error.Code)
}

func TestAnalyzeWalletQuotaExceeded(t *testing.T) {
	aggregator := &fakeAggregator{
		err: models.NewAppError(models.ErrorCodeQuotaExceeded, "daily address quota exceeded"),
	}
	server := setupTestServer(aggregator)

	recorder := postWallet(t, server, "test-key", `{"wallet_address": "wallet1", "chain": "solana"}`)

	require.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, models.ErrorCodeQuotaExceeded, decodeError(t, recorder).Error.Code)
}

func TestAnalyzeWalletInvalidAddress(t *testing.T) {
	aggregator := &fakeAggregator{
		err: models.NewAppError(models.ErrorCodeInvalidAddress, "invalid Solana address"),
	}
	server := setupTestServer(aggregator)

	recorder := postWallet(t, server, "test-key", `{"wallet_address": "???", "chain": "solana"}`)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, models.ErrorCodeInvalidAddress, decodeError(t, recorder).Error.Code)
}

func TestAnalyzeWalletUnsupportedChain(t *testing.T) {
	aggregator := &fakeAggregator{
		err: models.NewAppError(models.ErrorCodeUnsupportedChain, `chain "dogecoin" is not supported`),
	}
	server := setupTestServer(aggregator)

	recorder := postWallet(t, server, "test-key", `{"wallet_address": "wallet1", "chain": "dogecoin"}`)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, models.ErrorCodeUnsupportedChain, decodeError(t, recorder).Error.Code)
}

func TestAnalyzeWalletInternalErrorHidesCause(t *testing.T) {
	aggregator := &fakeAggregator{
		err: assert.AnError,
	}
	server := setupTestServer(aggregator)

	recorder := postWallet(t, server, "test-key", `{"wallet_address": "wallet1", "chain": "solana"}`)

	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	resp := decodeError(t, recorder)
	assert.Equal(t, models.ErrorCodeInternalError, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, assert.AnError.Error())
}
