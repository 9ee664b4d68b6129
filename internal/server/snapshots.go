package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/identity"
	"github.com/postureboard/postureboard/internal/snapshot"
	"go.uber.org/zap"
)

// SnapshotHandler handles on-demand snapshot capture and score history.
type SnapshotHandler struct {
	svc    *snapshot.Service
	store  *snapshot.Repository
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(svc *snapshot.Service, store *snapshot.Repository, tokens *identity.TokenIssuer, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{svc: svc, store: store, tokens: tokens, logger: logger}
}

// Register registers snapshot routes on the given router group.
func (h *SnapshotHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/tenants/:id/snapshots", identity.RequireToken(h.tokens), h.ListSnapshots)
	rg.POST("/tenants/:id/snapshots",
		identity.RequireRole(h.tokens, identity.RoleAdmin, identity.RoleAnalyst),
		h.CaptureSnapshot,
	)
}

// CaptureSnapshot handles POST /tenants/:id/snapshots — captures today's
// score snapshot. Re-running on the same day overwrites the existing row.
func (h *SnapshotHandler) CaptureSnapshot(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}

	snap, err := h.svc.Capture(c.Request.Context(), tenantID)
	if err != nil {
		RecordSnapshot(false)
		h.logger.Error("capture snapshot",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot capture failed"})
		return
	}

	RecordSnapshot(true)
	c.JSON(http.StatusCreated, gin.H{"snapshot": snap})
}

// ListSnapshots handles GET /tenants/:id/snapshots — returns snapshot
// history for the tenant. Optional ?from= and ?to= bound the range
// (YYYY-MM-DD); the default window is the trailing 12 months.
func (h *SnapshotHandler) ListSnapshots(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, -snapshot.RetentionMonths, 0)
	to := now

	if s := c.Query("from"); s != "" {
		from, err = time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, want YYYY-MM-DD"})
			return
		}
	}
	if s := c.Query("to"); s != "" {
		to, err = time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, want YYYY-MM-DD"})
			return
		}
	}

	snaps, err := h.store.ListRange(c.Request.Context(), tenantID, from, to)
	if err != nil {
		h.logger.Error("list snapshots", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list snapshots"})
		return
	}
	if snaps == nil {
		snaps = []snapshot.ScoreSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps, "count": len(snaps)})
}
