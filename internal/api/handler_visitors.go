package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"park-timer-backend/internal/model"
	"park-timer-backend/internal/parse"
)

// dayParam returns the ?date= operating day, defaulting to today.
func (h *Handler) dayParam(c *gin.Context) (string, bool) {
	raw := c.Query("date")
	if raw == "" {
		return h.engine.Today(), true
	}
	day, err := parse.ParseDay(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'date' format. Use YYYY-MM-DD."})
		return "", false
	}
	return day, true
}

// ListVisitors handles GET /api/visitors.
func (h *Handler) ListVisitors(c *gin.Context) {
	day, ok := h.dayParam(c)
	if !ok {
		return
	}
	visitors, err := h.store.GetVisitorsByDate(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}
	if visitors == nil {
		visitors = []model.Visitor{}
	}
	c.JSON(http.StatusOK, visitors)
}

type createVisitorRequest struct {
	Type         model.VisitorType `json:"type" binding:"required"`
	PersonID     string            `json:"personId"`
	GuardianID   string            `json:"guardianId"`
	Name         string            `json:"name" binding:"required"`
	TimeMinutes  int               `json:"timeMinutes" binding:"required,gt=0"`
	RegisteredBy string            `json:"registeredBy"`
	Date         string            `json:"date"`
}

// CreateVisitor handles POST /api/visitors. The payment flow calls it once
// per paid attendee; the visitor starts out pending.
func (h *Handler) CreateVisitor(c *gin.Context) {
	var req createVisitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	day := h.engine.Today()
	if req.Date != "" {
		parsed, err := parse.ParseDay(req.Date)
		if err != nil {
			badRequest(c)
			return
		}
		day = parsed
	}

	v, err := h.store.AddVisitor(c.Request.Context(), &model.Visitor{
		Type:         req.Type,
		PersonID:     req.PersonID,
		GuardianID:   req.GuardianID,
		Name:         req.Name,
		TimeMinutes:  req.TimeMinutes,
		RegisteredBy: req.RegisteredBy,
		Date:         day,
		Paid:         true,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.invalidateSummary(v.Date)
	c.JSON(http.StatusCreated, v)
}

// GetVisitor handles GET /api/visitors/:id.
func (h *Handler) GetVisitor(c *gin.Context) {
	v, err := h.store.GetVisitor(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// StartVisitor handles POST /api/visitors/:id/start.
func (h *Handler) StartVisitor(c *gin.Context) {
	v, err := h.engine.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.invalidateSummary(v.Date)
	c.JSON(http.StatusOK, v)
}

type renewRequest struct {
	ExtraMinutes int `json:"extra_minutes" binding:"required"`
}

// RenewVisitor handles POST /api/visitors/:id/renew.
func (h *Handler) RenewVisitor(c *gin.Context) {
	var req renewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	v, err := h.engine.Renew(c.Request.Context(), c.Param("id"), req.ExtraMinutes)
	if err != nil {
		writeError(c, err)
		return
	}
	h.invalidateSummary(v.Date)
	c.JSON(http.StatusOK, v)
}

// CompleteVisitor handles POST /api/visitors/:id/complete.
func (h *Handler) CompleteVisitor(c *gin.Context) {
	v, err := h.engine.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.invalidateSummary(v.Date)
	c.JSON(http.StatusOK, v)
}
