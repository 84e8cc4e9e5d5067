package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// PropertyType is the physical category of a listing.
type PropertyType string

const (
	PropertyApartment PropertyType = "Apartment"
	PropertyPG        PropertyType = "PG"
	PropertyLand      PropertyType = "Land"
	PropertyVilla     PropertyType = "Villa"
)

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyApartment, PropertyPG, PropertyLand, PropertyVilla:
		return true
	}
	return false
}

// Supports reports whether a property of this type can be offered under kind.
func (t PropertyType) Supports(kind TransactionKind) bool {
	switch t {
	case PropertyPG:
		return kind == KindSubscription
	case PropertyLand:
		return kind == KindSale || kind == KindLease
	default:
		return kind.Valid()
	}
}

// PropertyStatus is the occupancy axis of a property. Values are mutually exclusive.
type PropertyStatus string

const (
	StatusAvailable        PropertyStatus = "Available"
	StatusUnderTransaction PropertyStatus = "UnderTransaction"
	StatusOccupied         PropertyStatus = "Occupied"
	StatusSold             PropertyStatus = "Sold"
	StatusDisabled         PropertyStatus = "Disabled"
)

// Valid reports whether s is a known status.
func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusUnderTransaction, StatusOccupied, StatusSold, StatusDisabled:
		return true
	}
	return false
}

// ApprovalStatus is the administrative axis of a property.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PendingApproval"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// Valid reports whether s is a known approval status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// Location is the physical address of a property.
type Location struct {
	AddressLine string `json:"addressLine"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	Zipcode     string `json:"zipcode,omitempty"`
	Point       Point  `json:"point"`
}

// Property is a listing owned by a provider.
type Property struct {
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Location        Location        `json:"location"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	OwnerID         string          `json:"ownerId"`
	Type            PropertyType    `json:"type"`
	Kind            TransactionKind `json:"transactionKind"`
	Status          PropertyStatus  `json:"status"`
	Approval        ApprovalStatus  `json:"approvalStatus"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	Photos          []string        `json:"photos,omitempty"`
	Price           Money           `json:"price"`
	Capacity        int             `json:"capacity"`
	Occupancy       int             `json:"occupancy"`
	ID              uuid.UUID       `json:"id"`
	Negotiable      bool            `json:"negotiable"`
	Verified        bool            `json:"verified"`
}

// Eligible reports whether the property can receive new applications.
func (p *Property) Eligible() bool {
	return p.Status == StatusAvailable && p.Approval == ApprovalApproved
}

// Clone returns a deep copy.
func (p Property) Clone() Property {
	p.Photos = slices.Clone(p.Photos)
	return p
}

// PropertyFilter narrows property listings. Zero values are ignored.
type PropertyFilter struct {
	OwnerID  string
	Status   PropertyStatus
	Approval ApprovalStatus
	Type     PropertyType
	Kind     TransactionKind
	Verified *bool
	Near     *Radius
}

// Matches reports whether p satisfies the filter.
func (f PropertyFilter) Matches(p *Property) bool {
	if f.OwnerID != "" && p.OwnerID != f.OwnerID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Approval != "" && p.Approval != f.Approval {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.Kind != "" && p.Kind != f.Kind {
		return false
	}
	if f.Verified != nil && p.Verified != *f.Verified {
		return false
	}
	if f.Near != nil && !f.Near.Contains(p.Location.Point) {
		return false
	}
	return true
}
