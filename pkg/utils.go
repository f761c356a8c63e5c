package pkg

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// GetClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func GetClientIP(c *gin.Context) string {
	forwarded, _, _ := strings.Cut(c.GetHeader("X-Forwarded-For"), ",")

	for _, candidate := range []string{forwarded, c.GetHeader("X-Real-IP"), c.ClientIP()} {
		if ip := strings.TrimSpace(candidate); ip != "" {
			return ip
		}
	}

	return "unknown"
}
