package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redhat-data-and-ai/userpool/pkg/config"
	"github.com/redhat-data-and-ai/userpool/pkg/logger"
)

// APIKeyHeader carries the client's API key
const APIKeyHeader = "X-API-Key"

func APIKeyAuth(cfg *config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.APIServer.Auth.Enabled {
			c.Next()
			return
		}

		apiKey := c.GetHeader(APIKeyHeader)

		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "API key required",
				"hint":  "Add " + APIKeyHeader + " header",
			})
			c.Abort()
			return
		}

		valid := false
		for _, validKey := range cfg.APIServer.Auth.APIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				valid = true
				break
			}
		}

		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		logger.Logger(c.Request.Context()).Debug("API request authenticated")
		c.Next()
	}
}
