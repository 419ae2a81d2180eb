package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tad-z/BlockTrace-api/internal/config"
	"github.com/Tad-z/BlockTrace-api/internal/models"
	"github.com/Tad-z/BlockTrace-api/pkg/logger"
)

// Context keys populated by AuthMiddleware for downstream handlers.
const (
	ContextKeyUserID = "user_id"
	ContextKeyTier   = "tier"
)

// AuthMiddleware authenticates requests against the configured API keys
// and attaches the caller's identity and subscription tier to the request
// context.
func AuthMiddleware(auth *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.GetLogger().WithContext(c.Request.Context())

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Missing API key in Authorization header",
				zap.String("client_ip", c.ClientIP()),
				zap.String("user_agent", c.Request.UserAgent()),
			)

			appErr := models.NewAppErrorWithDetails(
				models.ErrorCodeMissingAPIKey,
				"API key is required",
				"Provide API key in Authorization header",
			)
			models.HandleError(c, appErr, log)
			c.Abort()
			return
		}

		// Accept both "Bearer <key>" and a bare "<key>".
		apiKey := strings.TrimSpace(authHeader)
		if strings.HasPrefix(strings.ToLower(apiKey), "bearer") {
			apiKey = strings.TrimSpace(apiKey[6:])
		}

		if apiKey == "" {
			log.Warn("Empty API key after parsing Authorization header",
				zap.String("client_ip", c.ClientIP()),
			)

			appErr := models.NewAppErrorWithDetails(
				models.ErrorCodeInvalidAPIKey,
				"Invalid API key format",
				"API key cannot be empty",
			)
			models.HandleError(c, appErr, log)
			c.Abort()
			return
		}

		info, ok := auth.APIKeys[apiKey]
		if !ok {
			log.Warn("API key validation failed",
				zap.String("client_ip", c.ClientIP()),
			)

			models.HandleError(c, models.NewAppError(models.ErrorCodeInvalidAPIKey, "Invalid API key"), log)
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, info.UserID)
		c.Set(ContextKeyTier, info.Tier)

		ctx := logger.ContextWithUserID(c.Request.Context(), info.UserID)
		c.Request = c.Request.WithContext(ctx)

		log.Debug("Authentication successful",
			zap.String("user_id", info.UserID),
			zap.String("tier", info.Tier),
		)

		c.Next()
	}
}
