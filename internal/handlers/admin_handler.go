package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/fossbin/propease/internal/errors"
	"github.com/fossbin/propease/internal/models"
	"github.com/fossbin/propease/internal/services"
)

// AdminHandler exposes the approval gate to administrators.
type AdminHandler struct {
	service services.ApprovalService
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(service services.ApprovalService) *AdminHandler {
	return &AdminHandler{service: service}
}

// RejectRequest is the body of the reject endpoint.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

type propertyAction func(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error)

func (h *AdminHandler) run(c *gin.Context, action propertyAction) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := action(c.Request.Context(), actor(c), id)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Approve handles POST /api/v1/admin/properties/:id/approve.
func (h *AdminHandler) Approve(c *gin.Context) { h.run(c, h.service.Approve) }

// Disable handles POST /api/v1/admin/properties/:id/disable.
func (h *AdminHandler) Disable(c *gin.Context) { h.run(c, h.service.Disable) }

// Enable handles POST /api/v1/admin/properties/:id/enable.
func (h *AdminHandler) Enable(c *gin.Context) { h.run(c, h.service.Enable) }

// Verify handles POST /api/v1/admin/properties/:id/verify.
func (h *AdminHandler) Verify(c *gin.Context) { h.run(c, h.service.Verify) }

// Unverify handles POST /api/v1/admin/properties/:id/unverify.
func (h *AdminHandler) Unverify(c *gin.Context) { h.run(c, h.service.Unverify) }

// Reject handles POST /api/v1/admin/properties/:id/reject.
func (h *AdminHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}
	h.run(c, func(ctx context.Context, a models.Actor, id uuid.UUID) (*models.Property, error) {
		return h.service.Reject(ctx, a, id, req.Reason)
	})
}
