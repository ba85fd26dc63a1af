package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminToken rejects requests that do not carry the configured admin token.
// With no token configured every guarded route is closed.
func AdminToken(token string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			logger.WithFields(logrus.Fields{
				"path":      c.FullPath(),
				"client_ip": c.ClientIP(),
			}).Warn("Rejected request without valid admin token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "missing or invalid " + AdminTokenHeader,
			})
			return
		}
		c.Next()
	}
}
