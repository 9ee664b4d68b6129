package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/postureboard/postureboard/internal/health"
)

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	checker *health.Checker
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Register registers health routes directly on the engine; they bypass
// auth and rate limiting.
func (h *HealthHandler) Register(router *gin.Engine) {
	router.GET("/healthz", h.Liveness)
	router.GET("/readyz", h.Readiness)
}

// Liveness handles GET /healthz.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz — pings registered dependencies.
func (h *HealthHandler) Readiness(c *gin.Context) {
	statuses, ready := h.checker.Check(c.Request.Context())
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": ready, "checks": statuses})
}
