package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/postureboard/postureboard/internal/server"
)

func TestRateLimiterRejectsAboveBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := gin.New()
	router.Use(server.RateLimiter(ctx, 1, 2))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		router.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("burst requests = %v, want first two 200", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", statuses[2])
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "198.51.100.9:4000"
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other client = %d, want 200 (limits are per IP)", w.Code)
	}
}

func TestRateLimiterServesAfterContextCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())

	router := gin.New()
	router.Use(server.RateLimiter(ctx, 10, 10))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Cancelling only stops the cleanup goroutine; live traffic still flows.
	cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "203.0.113.8:4000"
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("request after cancel = %d, want 200", w.Code)
	}
}
