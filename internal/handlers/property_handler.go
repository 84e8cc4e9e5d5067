package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apierrors "github.com/fossbin/propease/internal/errors"
	"github.com/fossbin/propease/internal/middleware"
	"github.com/fossbin/propease/internal/models"
	"github.com/fossbin/propease/internal/services"
)

// defaultRadiusMeters applies when near is given without radius_m.
const defaultRadiusMeters = 1000

// PropertyHandler handles property-related HTTP requests.
type PropertyHandler struct {
	service services.PropertyService
}

// NewPropertyHandler creates a new PropertyHandler instance.
func NewPropertyHandler(service services.PropertyService) *PropertyHandler {
	return &PropertyHandler{
		service: service,
	}
}

// LocationRequest is the address and coordinates of a listing.
type LocationRequest struct {
	Lat         *float64 `json:"lat" binding:"required"`
	Lng         *float64 `json:"lng" binding:"required"`
	AddressLine string   `json:"addressLine" binding:"required"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Country     string   `json:"country"`
	Zipcode     string   `json:"zipcode"`
}

// PropertyRequest is the body of submit and resubmit.
type PropertyRequest struct {
	Location    LocationRequest `json:"location"`
	Title       string          `json:"title" binding:"required,max=200"`
	Description string          `json:"description" binding:"max=5000"`
	Type        string          `json:"type" binding:"required,oneof=Apartment PG Land Villa"`
	Kind        string          `json:"transactionKind" binding:"required,oneof=Sale Lease Subscription"`
	Price       string          `json:"price" binding:"required"`
	Photos      []string        `json:"photos" binding:"dive,required"`
	Capacity    int             `json:"capacity" binding:"required,gte=1"`
	Negotiable  bool            `json:"negotiable"`
}

// PropertyListQuery holds the filters of GET /api/v1/properties.
type PropertyListQuery struct {
	Verified *bool   `form:"verified"`
	Owner    string  `form:"owner"`
	Status   string  `form:"status"`
	Approval string  `form:"approval"`
	Type     string  `form:"type"`
	Kind     string  `form:"kind"`
	Near     string  `form:"near"`
	RadiusM  float64 `form:"radius_m" binding:"omitempty,gt=0"`
}

// StatusRequest is the body of PATCH /api/v1/properties/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PropertyListResponse wraps a property listing.
type PropertyListResponse struct {
	Properties []models.Property `json:"properties"`
	Count      int               `json:"count"`
}

func (r PropertyRequest) draft(c *gin.Context) (services.PropertyDraft, bool) {
	price, err := models.ParseMoney(r.Price)
	if err != nil {
		apierrors.BadRequest(c, "Invalid price", map[string]interface{}{"price": err.Error()})
		return services.PropertyDraft{}, false
	}
	return services.PropertyDraft{
		Title:       r.Title,
		Description: r.Description,
		Type:        models.PropertyType(r.Type),
		Kind:        models.TransactionKind(r.Kind),
		Price:       price,
		Negotiable:  r.Negotiable,
		Capacity:    r.Capacity,
		Location: models.Location{
			AddressLine: r.Location.AddressLine,
			City:        r.Location.City,
			State:       r.Location.State,
			Country:     r.Location.Country,
			Zipcode:     r.Location.Zipcode,
			Point:       models.NewPoint(*r.Location.Lat, *r.Location.Lng),
		},
		Photos: r.Photos,
	}, true
}

// Submit handles POST /api/v1/properties.
func (h *PropertyHandler) Submit(c *gin.Context) {
	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}
	draft, ok := req.draft(c)
	if !ok {
		return
	}

	p, err := h.service.Submit(c.Request.Context(), actor(c), draft)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Resubmit handles PUT /api/v1/properties/:id.
func (h *PropertyHandler) Resubmit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}
	draft, ok := req.draft(c)
	if !ok {
		return
	}

	p, err := h.service.Resubmit(c.Request.Context(), actor(c), id, draft)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Get handles GET /api/v1/properties/:id.
func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// List handles GET /api/v1/properties.
// near=lat,lng restricts results to radius_m meters around the point.
func (h *PropertyHandler) List(c *gin.Context) {
	var q PropertyListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	filter := models.PropertyFilter{
		OwnerID:  strings.TrimSpace(q.Owner),
		Status:   models.PropertyStatus(q.Status),
		Approval: models.ApprovalStatus(q.Approval),
		Type:     models.PropertyType(q.Type),
		Kind:     models.TransactionKind(q.Kind),
		Verified: q.Verified,
	}
	if q.Near != "" {
		center, err := parseNear(q.Near)
		if err != nil {
			apierrors.BadRequest(c, "Invalid near", map[string]interface{}{"near": err.Error()})
			return
		}
		radius := q.RadiusM
		if radius == 0 {
			radius = defaultRadiusMeters
		}
		filter.Near = &models.Radius{Center: center, Meters: radius}
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Debug("Listing properties", map[string]interface{}{
			"status": q.Status,
			"kind":   q.Kind,
			"near":   q.Near,
		})
	}

	props, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	if props == nil {
		props = []models.Property{}
	}
	c.JSON(http.StatusOK, PropertyListResponse{Properties: props, Count: len(props)})
}

// ChangeStatus handles PATCH /api/v1/properties/:id/status.
func (h *PropertyHandler) ChangeStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	p, err := h.service.ChangeStatus(c.Request.Context(), actor(c), id, models.PropertyStatus(req.Status))
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
