package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tad-z/BlockTrace-api/internal/engine"
	"github.com/Tad-z/BlockTrace-api/internal/middleware"
	"github.com/Tad-z/BlockTrace-api/internal/models"
	"github.com/Tad-z/BlockTrace-api/pkg/logger"
)

// Aggregator runs one wallet aggregation. Satisfied by *engine.Engine.
type Aggregator interface {
	Aggregate(ctx context.Context, req engine.Request) (*models.AggregationResult, error)
}

// analysisTimeout bounds one aggregation end to end. Per-RPC timeouts only
// cap individual calls; a stalling provider could otherwise hold a request
// for the whole batch schedule.
const analysisTimeout = 60 * time.Second

// WalletRequest is the body of POST /api/wallet.
type WalletRequest struct {
	WalletAddress string `json:"wallet_address"`
	Chain         string `json:"chain"`
}

// WalletHandler serves wallet aggregation requests.
type WalletHandler struct {
	aggregator Aggregator
}

// NewWalletHandler creates a WalletHandler backed by aggregator.
func NewWalletHandler(aggregator Aggregator) *WalletHandler {
	return &WalletHandler{aggregator: aggregator}
}

// AnalyzeWallet handles POST /api/wallet requests. Identity and tier come
// from the authentication middleware, never from the request body.
func (h *WalletHandler) AnalyzeWallet(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid JSON in request",
			zap.Error(err),
			zap.String("content_type", c.GetHeader("Content-Type")),
		)

		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		)
		models.HandleError(c, appErr, log)
		return
	}

	if req.WalletAddress == "" || req.Chain == "" {
		appErr := models.NewAppErrorWithDetails(
			models.ErrorCodeInvalidRequest,
			"Missing required fields",
			"wallet_address and chain are required",
		)
		models.HandleError(c, appErr, log)
		return
	}

	log.Info("Processing wallet aggregation",
		zap.String("chain", req.Chain),
		zap.String("wallet_address", req.WalletAddress),
	)

	ctx, cancel := context.WithTimeout(c.Request.Context(), analysisTimeout)
	defer cancel()

	result, err := h.aggregator.Aggregate(ctx, engine.Request{
		User:          c.GetString(middleware.ContextKeyUserID),
		Tier:          c.GetString(middleware.ContextKeyTier),
		Chain:         req.Chain,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	log.Info("Wallet aggregation completed",
		zap.String("chain", result.Chain),
		zap.Int("total_transactions", result.TotalTransactions),
	)

	c.JSON(http.StatusOK, result)
}
