package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{name: "default dev origin", origin: "http://localhost:5173", allowed: true},
		{name: "configured origin", origins: []string{"https://ops.finpulse.example"}, origin: "https://ops.finpulse.example", allowed: true},
		{name: "unknown origin", origins: []string{"https://ops.finpulse.example"}, origin: "https://evil.example", allowed: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tc.origins))
			r.OPTIONS("/api/runs/pipeline", func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodOptions, "/api/runs/pipeline", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Fatalf("Access-Control-Allow-Origin = %q, want %q", got, tc.origin)
			}
			if !tc.allowed && got != "" {
				t.Fatalf("unexpected Access-Control-Allow-Origin %q", got)
			}
		})
	}
}
