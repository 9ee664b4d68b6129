package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/identity"
	"github.com/postureboard/postureboard/internal/tenant"
	"go.uber.org/zap"
)

// TenantHandler handles managed-tenant administration.
type TenantHandler struct {
	repo   *tenant.Repository
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(repo *tenant.Repository, tokens *identity.TokenIssuer, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{repo: repo, tokens: tokens, logger: logger}
}

// Register registers tenant routes on the given router group.
func (h *TenantHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/tenants", identity.RequireToken(h.tokens), h.ListTenants)
	rg.GET("/tenants/:id", identity.RequireToken(h.tokens), h.GetTenant)
	rg.POST("/tenants", identity.RequireRole(h.tokens, identity.RoleAdmin), h.CreateTenant)
}

// CreateTenant handles POST /tenants.
func (h *TenantHandler) CreateTenant(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	t := &tenant.Tenant{Name: req.Name, Active: true}
	if err := h.repo.Create(c.Request.Context(), t); err != nil {
		h.logger.Error("create tenant", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tenant"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tenant": t})
}

// GetTenant handles GET /tenants/:id.
func (h *TenantHandler) GetTenant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}

	t, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get tenant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": t})
}

// ListTenants handles GET /tenants — returns all active tenants.
func (h *TenantHandler) ListTenants(c *gin.Context) {
	tenants, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("list tenants", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tenants"})
		return
	}
	if tenants == nil {
		tenants = []tenant.Tenant{}
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants, "count": len(tenants)})
}
