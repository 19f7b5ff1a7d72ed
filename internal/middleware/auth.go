package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/demandly/casefile-backend/internal/modules/auth"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

const attorneyIDKey = "attorney_id"

type AuthMiddleware struct {
	log  *logger.Logger
	auth auth.Service
}

func NewAuthMiddleware(baseLog *logger.Logger, authService auth.Service) *AuthMiddleware {
	return &AuthMiddleware{log: baseLog.With("middleware", "AuthMiddleware"), auth: authService}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		attorneyID, err := am.auth.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		c.Set(attorneyIDKey, attorneyID)
		c.Next()
	}
}

// AttorneyID returns the authenticated attorney for the request. Only valid
// after RequireAuth has run.
func AttorneyID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(attorneyIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return c.Query("token")
}
