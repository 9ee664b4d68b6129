package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/audit"
	"github.com/postureboard/postureboard/internal/distribution"
	"github.com/postureboard/postureboard/internal/identity"
	"github.com/postureboard/postureboard/internal/report"
	"github.com/postureboard/postureboard/internal/report/render"
	"go.uber.org/zap"
)

// auditLister returns lifecycle audit entries for a report.
type auditLister interface {
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]audit.Entry, error)
}

// ReportHandler handles quarterly report CRUD, lifecycle transitions,
// PDF rendering, and distribution.
type ReportHandler struct {
	svc    *report.Service
	dist   *distribution.Service
	audits auditLister
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(svc *report.Service, dist *distribution.Service, audits auditLister, tokens *identity.TokenIssuer, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, dist: dist, audits: audits, tokens: tokens, logger: logger}
}

// Register registers report routes on the given router group.
func (h *ReportHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/tenants/:id/reports", identity.RequireToken(h.tokens), h.ListReports)
	rg.POST("/tenants/:id/reports",
		identity.RequireRole(h.tokens, identity.RoleAdmin, identity.RoleAnalyst),
		h.CreateReport,
	)

	reports := rg.Group("/reports", identity.RequireToken(h.tokens))
	{
		reports.GET("/:id", h.GetReport)
		reports.PATCH("/:id", h.UpdateReport)
		reports.POST("/:id/transition", h.Transition)
		reports.GET("/:id/pdf", h.RenderPDF)
		reports.GET("/:id/recipients", h.ListRecipients)
		reports.GET("/:id/audit", h.ListAudit)
	}
	rg.POST("/reports/:id/recipients",
		identity.RequireRole(h.tokens, identity.RoleAdmin),
		h.AddRecipient,
	)
	rg.POST("/reports/:id/distribute",
		identity.RequireRole(h.tokens, identity.RoleAdmin, identity.RoleManager),
		h.Distribute,
	)
}

// actorFromCtx builds the lifecycle actor from the session claims.
func actorFromCtx(c *gin.Context) (report.Actor, bool) {
	claims := identity.ClaimsFromCtx(c)
	if claims == nil {
		return report.Actor{}, false
	}
	return report.Actor{ID: claims.AccountID, Role: claims.Role}, true
}

// CreateReport handles POST /tenants/:id/reports — generates the quarterly
// report with metrics frozen at creation time. ?force=true replaces an
// existing report for the period.
func (h *ReportHandler) CreateReport(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}

	var req struct {
		Quarter int `json:"quarter"`
		Year    int `json:"year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quarter < 1 || req.Quarter > 4 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quarter must be 1-4"})
		return
	}

	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	actor, ok := actorFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	rep, err := h.svc.CreateForPeriod(c.Request.Context(), tenantID, req.Quarter, req.Year, actor.ID, force)
	if err != nil {
		if errors.Is(err, report.ErrDuplicatePeriod) {
			c.JSON(http.StatusConflict, gin.H{"error": "report already exists for period; retry with ?force=true to replace"})
			return
		}
		if errors.Is(err, report.ErrSentImmutable) {
			c.JSON(http.StatusConflict, gin.H{"error": "report for period was already sent and cannot be replaced"})
			return
		}
		h.logger.Error("create report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report creation failed"})
		return
	}

	RecordReportCreated()
	c.JSON(http.StatusCreated, gin.H{"report": rep})
}

// ListReports handles GET /tenants/:id/reports.
func (h *ReportHandler) ListReports(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}

	reps, err := h.svc.ListForTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("list reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}
	if reps == nil {
		reps = []report.Report{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": reps, "count": len(reps)})
}

// GetReport handles GET /reports/:id.
func (h *ReportHandler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	rep, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": rep})
}

// UpdateReport handles PATCH /reports/:id — updates the free-text fields.
func (h *ReportHandler) UpdateReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}
	actor, ok := actorFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		Summary         *string `json:"summary"`
		Recommendations *string `json:"recommendations"`
		AnalystComments *string `json:"analyst_comments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rep, err := h.svc.UpdateFields(c.Request.Context(), id, actor, report.FieldUpdate{
		Summary:         req.Summary,
		Recommendations: req.Recommendations,
		AnalystComments: req.AnalystComments,
	})
	if err != nil {
		h.respondLifecycleError(c, err, "update report")
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": rep})
}

// Transition handles POST /reports/:id/transition — advances the report
// one step through the approval chain.
func (h *ReportHandler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}
	actor, ok := actorFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		Target report.Status `json:"target"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rep, err := h.svc.ApplyTransition(c.Request.Context(), id, req.Target, actor)
	if err != nil {
		h.respondLifecycleError(c, err, "transition report")
		return
	}

	RecordTransition(string(rep.Status))
	c.JSON(http.StatusOK, gin.H{"report": rep})
}

// RenderPDF handles GET /reports/:id/pdf — streams the rendered report.
// Rendering is deterministic, so the same report always produces the
// same bytes.
func (h *ReportHandler) RenderPDF(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	rep, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get report"})
		return
	}

	pdf, err := render.Render(rep)
	if err != nil {
		h.logger.Error("render report pdf", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pdf rendering failed"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+render.Filename(rep)+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// AddRecipient handles POST /reports/:id/recipients.
func (h *ReportHandler) AddRecipient(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}
	actor, ok := actorFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	rec, err := h.svc.AddRecipient(c.Request.Context(), id, actor, req.Email, req.Name)
	if err != nil {
		h.respondLifecycleError(c, err, "add recipient")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recipient": rec})
}

// ListRecipients handles GET /reports/:id/recipients.
func (h *ReportHandler) ListRecipients(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	recs, err := h.svc.Recipients(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list recipients", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recipients"})
		return
	}
	if recs == nil {
		recs = []report.Recipient{}
	}
	c.JSON(http.StatusOK, gin.H{"recipients": recs, "count": len(recs)})
}

// Distribute handles POST /reports/:id/distribute — emails the rendered
// report to every pending recipient. The report moves to sent only when
// every recipient has been delivered.
func (h *ReportHandler) Distribute(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	result, err := h.dist.Distribute(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		case errors.Is(err, distribution.ErrNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": "report is not approved for distribution"})
		case errors.Is(err, distribution.ErrNoRecipients):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "report has no recipients"})
		default:
			h.logger.Error("distribute report", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "distribution failed"})
		}
		return
	}

	for range result.Sent {
		RecordReportEmail(true)
	}
	for range result.Failed {
		RecordReportEmail(false)
	}

	status := http.StatusOK
	if !result.Complete() {
		// Partial delivery: report stays in manager_ready for a retry.
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"result": result, "complete": result.Complete()})
}

// ListAudit handles GET /reports/:id/audit — returns the transition history.
func (h *ReportHandler) ListAudit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report ID"})
		return
	}

	entries, err := h.audits.ListByReport(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list audit entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit entries"})
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// respondLifecycleError maps service errors to HTTP statuses.
func (h *ReportHandler) respondLifecycleError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, report.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	case errors.Is(err, report.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "role not permitted"})
	case errors.Is(err, report.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "report is not in the required state"})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
