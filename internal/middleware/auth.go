package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"voicedesk-backend/pkg/jwt"
)

// AuthMiddleware creates a Gin middleware that validates agent JWT tokens.
// On success it sets agent_id, team_id, and role in the Gin context.
func AuthMiddleware(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		// Validate JWT audience claim
		validAudience := false
		for _, aud := range claims.Audience {
			if aud == "voicedesk-api" {
				validAudience = true
				break
			}
		}
		if !validAudience {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token audience"})
			c.Abort()
			return
		}

		c.Set("agent_id", claims.AgentID)
		c.Set("team_id", claims.TeamID)
		c.Set("role", claims.Role)
		c.Next()
	}
}
