package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/finpulse-backend/internal/http/response"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

// ContextSubjectKey holds the authenticated token subject on the gin context.
const ContextSubjectKey = "auth_subject"

// AuthMiddleware checks HS256 bearer tokens. With an empty secret every
// request passes.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), secret: []byte(strings.TrimSpace(secret))}
}

func (am *AuthMiddleware) Enabled() bool {
	return am != nil && len(am.secret) > 0
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() {
			c.Next()
			return
		}
		tokenString := bearerToken(c)
		if tokenString == "" {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		claims := &jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return am.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !parsed.Valid {
			if err == nil {
				err = errors.New("invalid token")
			}
			am.log.Debug("Rejected token", "error", err)
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		c.Set(ContextSubjectKey, claims.Subject)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
