package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apierrors "github.com/fossbin/propease/internal/errors"
	"github.com/fossbin/propease/internal/models"
	"github.com/fossbin/propease/internal/services"
)

// ApplicationHandler handles application-related HTTP requests.
type ApplicationHandler struct {
	service services.ApplicationService
}

// NewApplicationHandler creates a new ApplicationHandler instance.
func NewApplicationHandler(service services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// ApplicationRequest is the body of POST /api/v1/properties/:id/applications.
// Start, End and Cadence apply to leases and subscriptions only.
type ApplicationRequest struct {
	Bid       *string  `json:"bid"`
	Start     *string  `json:"start" binding:"omitempty,datetime=2006-01-02"`
	End       *string  `json:"end" binding:"omitempty,datetime=2006-01-02"`
	Cadence   string   `json:"cadence" binding:"omitempty,oneof=Monthly Quarterly"`
	Message   string   `json:"message" binding:"max=2000"`
	Documents []string `json:"documents" binding:"dive,required"`
}

// DecisionRequest is the body of POST /api/v1/applications/:id/decision.
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=Approved Rejected"`
	Reason   string `json:"reason" binding:"max=1000"`
}

// ApplicationListResponse wraps an application listing.
type ApplicationListResponse struct {
	Applications []models.Application `json:"applications"`
	Count        int                  `json:"count"`
}

func (r ApplicationRequest) draft(c *gin.Context) (services.ApplicationDraft, bool) {
	draft := services.ApplicationDraft{
		Terms:     models.Terms{Cadence: models.Cadence(r.Cadence)},
		Message:   r.Message,
		Documents: r.Documents,
	}
	if r.Bid != nil {
		bid, err := models.ParseMoney(*r.Bid)
		if err != nil {
			apierrors.BadRequest(c, "Invalid bid", map[string]interface{}{"bid": err.Error()})
			return draft, false
		}
		draft.Bid = &bid
	}

	var err error
	if draft.Terms.Start, err = parseDate(r.Start); err != nil {
		apierrors.BadRequest(c, "Invalid start", map[string]interface{}{"start": err.Error()})
		return draft, false
	}
	if draft.Terms.End, err = parseDate(r.End); err != nil {
		apierrors.BadRequest(c, "Invalid end", map[string]interface{}{"end": err.Error()})
		return draft, false
	}
	return draft, true
}

// Submit handles POST /api/v1/properties/:id/applications.
func (h *ApplicationHandler) Submit(c *gin.Context) {
	propertyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}
	draft, ok := req.draft(c)
	if !ok {
		return
	}

	app, err := h.service.Submit(c.Request.Context(), actor(c), propertyID, draft)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// Decide handles POST /api/v1/applications/:id/decision.
func (h *ApplicationHandler) Decide(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	app, err := h.service.Decide(c.Request.Context(), actor(c), id, services.Decision(req.Decision), req.Reason)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// Get handles GET /api/v1/applications/:id.
func (h *ApplicationHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	app, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// ListByProperty handles GET /api/v1/properties/:id/applications.
func (h *ApplicationHandler) ListByProperty(c *gin.Context) {
	propertyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	apps, err := h.service.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	respondApplications(c, apps)
}

// ListByApplicant handles GET /api/v1/applications?applicant=.
// Without a query parameter the caller's own applications are listed.
func (h *ApplicationHandler) ListByApplicant(c *gin.Context) {
	applicant := strings.TrimSpace(c.Query("applicant"))
	if applicant == "" {
		applicant = actor(c).ID
	}
	apps, err := h.service.ListByApplicant(c.Request.Context(), applicant)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	respondApplications(c, apps)
}

func respondApplications(c *gin.Context, apps []models.Application) {
	if apps == nil {
		apps = []models.Application{}
	}
	c.JSON(http.StatusOK, ApplicationListResponse{Applications: apps, Count: len(apps)})
}
