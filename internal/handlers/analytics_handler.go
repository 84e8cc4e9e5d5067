package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "github.com/fossbin/propease/internal/errors"
	"github.com/fossbin/propease/internal/services"
)

// AnalyticsHandler serves the read-only reports.
type AnalyticsHandler struct {
	service services.AnalyticsService
	now     func() time.Time
}

// NewAnalyticsHandler creates a new AnalyticsHandler instance.
func NewAnalyticsHandler(service services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, now: time.Now}
}

// Snapshot handles GET /api/v1/admin/analytics.
func (h *AnalyticsHandler) Snapshot(c *gin.Context) {
	asOf, ok := parseAsOf(c, h.now)
	if !ok {
		return
	}
	snap, err := h.service.Snapshot(c.Request.Context(), actor(c), asOf)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// OwnerReport handles GET /api/v1/owners/me/analytics.
func (h *AnalyticsHandler) OwnerReport(c *gin.Context) {
	asOf, ok := parseAsOf(c, h.now)
	if !ok {
		return
	}
	report, err := h.service.OwnerReport(c.Request.Context(), actor(c), asOf)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
