package service

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/openshelf/shelfcast/internal/config"
)

// AuthService guards the job trigger endpoints: the cron caller presents a
// shared-secret bearer token, manual admin triggers present a TOTP code.
type AuthService struct {
	logger *zap.Logger
	config *config.AuthConfig
}

func NewAuthService(logger *zap.Logger, cfg *config.AuthConfig) *AuthService {
	return &AuthService{
		logger: logger,
		config: cfg,
	}
}

// TriggerMiddleware rejects requests whose bearer token does not match the
// configured trigger secret. No core logic runs on a mismatch.
func (a *AuthService) TriggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || a.config.TriggerSecret == "" || token != a.config.TriggerSecret {
			a.logger.Warn("Trigger request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminMiddleware validates a one-time TOTP code from the X-TOTP-Code
// header for manually triggered runs.
func (a *AuthService) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.GetHeader("X-TOTP-Code")
		if a.config.TOTPSecret == "" || !totp.Validate(code, a.config.TOTPSecret) {
			a.logger.Warn("Admin request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
