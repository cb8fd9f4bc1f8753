package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/internal/ping", ServiceAuthMiddleware(secret), func(c *gin.Context) {
		authed, _ := c.Get("service_auth")
		c.JSON(http.StatusOK, gin.H{"service_auth": authed})
	})
	return r
}

func TestServiceAuthMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		header   string
		expected int
	}{
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic abc", http.StatusUnauthorized},
		{"empty token", "s3cret", "Bearer ", http.StatusUnauthorized},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"unconfigured secret", "", "Bearer s3cret", http.StatusInternalServerError},
		{"valid token", "s3cret", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/internal/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			newRouter(tt.secret).ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}
