package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

func signed(t *testing.T, secret string, method jwt.SigningMethod, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "ops-cron",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const secret = "s3cret"
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{name: "disabled", secret: "", header: "", want: http.StatusOK},
		{name: "missing token", secret: secret, header: "", want: http.StatusUnauthorized},
		{name: "valid", secret: secret, header: "Bearer " + signed(t, secret, jwt.SigningMethodHS256, future), want: http.StatusOK},
		{name: "wrong secret", secret: secret, header: "Bearer " + signed(t, "other", jwt.SigningMethodHS256, future), want: http.StatusUnauthorized},
		{name: "expired", secret: secret, header: "Bearer " + signed(t, secret, jwt.SigningMethodHS256, time.Now().Add(-time.Minute)), want: http.StatusUnauthorized},
		{name: "wrong alg", secret: secret, header: "Bearer " + signed(t, secret, jwt.SigningMethodHS384, future), want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			am := NewAuthMiddleware(logger.Nop(), tc.secret)
			r := gin.New()
			var subject string
			r.GET("/api/x", am.RequireAuth(), func(c *gin.Context) {
				subject = c.GetString(ContextSubjectKey)
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
			if tc.name == "valid" && subject != "ops-cron" {
				t.Fatalf("subject = %q", subject)
			}
		})
	}
}
