package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/identity"
	"github.com/postureboard/postureboard/internal/users"
	"go.uber.org/zap"
)

// AuthHandler handles operator login and account administration.
type AuthHandler struct {
	svc    *users.Service
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *users.Service, tokens *identity.TokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens, logger: logger}
}

// Register registers auth and operator routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/change-password", identity.RequireToken(h.tokens), h.ChangePassword)

	ops := rg.Group("/operators", identity.RequireRole(h.tokens, identity.RoleAdmin))
	{
		ops.GET("", h.ListOperators)
		ops.POST("", h.CreateOperator)
		ops.PATCH("/:id/role", h.SetRole)
		ops.PATCH("/:id/active", h.SetActive)
	}
}

// Login handles POST /auth/login — verifies credentials and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "operator": op})
}

// ChangePassword handles POST /auth/change-password for the authenticated operator.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims := identity.ClaimsFromCtx(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id, err := uuid.Parse(claims.AccountID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account ID in token"})
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "current password incorrect"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}

// CreateOperator handles POST /operators — registers a new operator account.
func (h *AuthHandler) CreateOperator(c *gin.Context) {
	var req struct {
		Email       string        `json:"email"`
		Password    string        `json:"password"`
		DisplayName string        `json:"display_name"`
		Role        identity.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op, err := h.svc.Create(c.Request.Context(), req.Email, req.Password, req.DisplayName, req.Role)
	if err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"operator": op})
}

// ListOperators handles GET /operators.
func (h *AuthHandler) ListOperators(c *gin.Context) {
	ops, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list operators", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list operators"})
		return
	}
	if ops == nil {
		ops = []users.Operator{}
	}
	c.JSON(http.StatusOK, gin.H{"operators": ops, "count": len(ops)})
}

// SetRole handles PATCH /operators/:id/role.
func (h *AuthHandler) SetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid operator ID"})
		return
	}

	var req struct {
		Role identity.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.SetRole(c.Request.Context(), id, req.Role); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "operator not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "role updated"})
}

// SetActive handles PATCH /operators/:id/active.
func (h *AuthHandler) SetActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid operator ID"})
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.SetActive(c.Request.Context(), id, req.Active); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "operator not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update operator"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "operator updated"})
}
