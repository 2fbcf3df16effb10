package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"minigame_bot/internal/auth"
)

// AdminAuth guards the admin endpoints with a bearer JWT.
func AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		sub, err := auth.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("admin", sub)
		c.Next()
	}
}
