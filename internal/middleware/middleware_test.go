package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"hostpanel/internal/middleware"
)

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal_server_error")
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestRequestID_KeepsInbound(t *testing.T) {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.RequestIDFrom(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "req-123", rr.Body.String())
	assert.Equal(t, "req-123", rr.Header().Get("X-Request-Id"))
}

func TestCORS(t *testing.T) {
	testCases := []struct {
		name         string
		allowed      []string
		origin       string
		method       string
		expectOrigin string
		expectStatus int
	}{
		{
			name:         "allow all reflects origin",
			origin:       "https://panel.example.com",
			method:       http.MethodGet,
			expectOrigin: "https://panel.example.com",
			expectStatus: http.StatusOK,
		},
		{
			name:         "listed origin",
			allowed:      []string{" https://panel.example.com "},
			origin:       "https://panel.example.com",
			method:       http.MethodGet,
			expectOrigin: "https://panel.example.com",
			expectStatus: http.StatusOK,
		},
		{
			name:         "unlisted origin",
			allowed:      []string{"https://panel.example.com"},
			origin:       "https://evil.example.com",
			method:       http.MethodGet,
			expectStatus: http.StatusOK,
		},
		{
			name:         "preflight",
			origin:       "https://panel.example.com",
			method:       http.MethodOptions,
			expectOrigin: "https://panel.example.com",
			expectStatus: http.StatusNoContent,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(middleware.CORS(tc.allowed))
			router.Any("/", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(tc.method, "/", nil)
			req.Header.Set("Origin", tc.origin)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectStatus, rr.Code)
			assert.Equal(t, tc.expectOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		})
	}
}
