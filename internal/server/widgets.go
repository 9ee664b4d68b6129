package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/identity"
	"github.com/postureboard/postureboard/internal/widget"
	"go.uber.org/zap"
)

// WidgetHandler handles widget definition administration, per-tenant
// overrides, and on-demand maturity calculation.
type WidgetHandler struct {
	repo     *widget.Repository
	maturity *widget.MaturityCalculator
	tokens   *identity.TokenIssuer
	logger   *zap.Logger
}

// NewWidgetHandler creates a new WidgetHandler.
func NewWidgetHandler(repo *widget.Repository, maturity *widget.MaturityCalculator, tokens *identity.TokenIssuer, logger *zap.Logger) *WidgetHandler {
	return &WidgetHandler{repo: repo, maturity: maturity, tokens: tokens, logger: logger}
}

// Register registers widget routes on the given router group.
func (h *WidgetHandler) Register(rg *gin.RouterGroup) {
	widgets := rg.Group("/widgets", identity.RequireToken(h.tokens))
	{
		widgets.GET("", h.ListDefinitions)
		widgets.GET("/:id", h.GetDefinition)
	}
	admin := rg.Group("/widgets", identity.RequireRole(h.tokens, identity.RoleAdmin))
	{
		admin.POST("", h.CreateDefinition)
		admin.PUT("/:id", h.UpdateDefinition)
	}

	tenants := rg.Group("/tenants/:id", identity.RequireToken(h.tokens))
	{
		tenants.GET("/widgets", h.ListOverrides)
		tenants.GET("/maturity", h.GetMaturity)
	}
	rg.PUT("/tenants/:id/widgets/:widgetID",
		identity.RequireRole(h.tokens, identity.RoleAdmin, identity.RoleAnalyst),
		h.UpsertOverride,
	)
}

// CreateDefinition handles POST /widgets.
func (h *WidgetHandler) CreateDefinition(c *gin.Context) {
	var def widget.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if def.Key == "" || def.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key and title are required"})
		return
	}
	if def.PointsAvailable <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "points_available must be positive"})
		return
	}

	if err := h.repo.CreateDefinition(c.Request.Context(), &def); err != nil {
		if errors.Is(err, widget.ErrDuplicateKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "widget key already exists"})
			return
		}
		h.logger.Error("create widget definition", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create widget"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"widget": def})
}

// UpdateDefinition handles PUT /widgets/:id.
func (h *WidgetHandler) UpdateDefinition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid widget ID"})
		return
	}

	var def widget.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	def.ID = id

	if err := h.repo.UpdateDefinition(c.Request.Context(), &def); err != nil {
		if errors.Is(err, widget.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "widget not found"})
			return
		}
		h.logger.Error("update widget definition", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update widget"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"widget": def})
}

// GetDefinition handles GET /widgets/:id.
func (h *WidgetHandler) GetDefinition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid widget ID"})
		return
	}

	def, err := h.repo.GetDefinition(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, widget.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "widget not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get widget"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"widget": def})
}

// ListDefinitions handles GET /widgets.
func (h *WidgetHandler) ListDefinitions(c *gin.Context) {
	defs, err := h.repo.ListDefinitions(c.Request.Context())
	if err != nil {
		h.logger.Error("list widget definitions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list widgets"})
		return
	}
	if defs == nil {
		defs = []widget.Definition{}
	}
	c.JSON(http.StatusOK, gin.H{"widgets": defs, "count": len(defs)})
}

// ListOverrides handles GET /tenants/:id/widgets.
func (h *WidgetHandler) ListOverrides(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}

	overrides, err := h.repo.ListOverrides(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("list widget overrides", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list overrides"})
		return
	}
	if overrides == nil {
		overrides = []widget.Override{}
	}
	c.JSON(http.StatusOK, gin.H{"overrides": overrides, "count": len(overrides)})
}

// UpsertOverride handles PUT /tenants/:id/widgets/:widgetID — enables or
// disables a widget for a tenant and sets the manual value where applicable.
func (h *WidgetHandler) UpsertOverride(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}
	widgetID, err := uuid.Parse(c.Param("widgetID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid widget ID"})
		return
	}

	var req struct {
		Enabled bool     `json:"enabled"`
		Value   *float64 `json:"value"`
		Manual  bool     `json:"manual"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o := &widget.Override{
		TenantID: tenantID,
		WidgetID: widgetID,
		Enabled:  req.Enabled,
		Value:    req.Value,
		Manual:   req.Manual,
	}
	if err := h.repo.UpsertOverride(c.Request.Context(), o); err != nil {
		h.logger.Error("upsert widget override", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save override"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"override": o})
}

// GetMaturity handles GET /tenants/:id/maturity — runs the live maturity
// calculation across all enabled widgets.
func (h *WidgetHandler) GetMaturity(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}

	result, err := h.maturity.Calculate(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("calculate maturity",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "maturity calculation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"maturity": result})
}
