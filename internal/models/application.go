package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the resolution state of an application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "Pending"
	ApplicationApproved ApplicationStatus = "Approved"
	ApplicationRejected ApplicationStatus = "Rejected"
)

// AutoRejectionReason is recorded on applications rejected because a competing one was approved.
const AutoRejectionReason = "another application for this property was approved"

// Cadence is the billing period length of a tenancy.
type Cadence string

const (
	CadenceMonthly   Cadence = "Monthly"
	CadenceQuarterly Cadence = "Quarterly"
)

// Months returns the number of calendar months in one period, or 0 for an unknown cadence.
func (c Cadence) Months() int {
	switch c {
	case CadenceMonthly:
		return 1
	case CadenceQuarterly:
		return 3
	}
	return 0
}

// Terms holds the kind-specific fields of an application.
// Lease uses Start/End; Subscription uses Cadence and Start/End; Sale uses neither.
type Terms struct {
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
	Cadence Cadence    `json:"cadence,omitempty"`
}

// Application is a prospective occupant's request against one property.
type Application struct {
	CreatedAt       time.Time         `json:"createdAt"`
	DecidedAt       *time.Time        `json:"decidedAt,omitempty"`
	Bid             *Money            `json:"bid,omitempty"`
	TransactionID   *uuid.UUID        `json:"transactionId,omitempty"`
	Terms           Terms             `json:"terms"`
	ApplicantID     string            `json:"applicantId"`
	Message         string            `json:"message,omitempty"`
	Status          ApplicationStatus `json:"status"`
	DecidedBy       string            `json:"decidedBy,omitempty"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	Documents       []string          `json:"documents,omitempty"`
	ID              uuid.UUID         `json:"id"`
	PropertyID      uuid.UUID         `json:"propertyId"`
	AutoRejected    bool              `json:"autoRejected"`
}

// Clone returns a deep copy.
func (a Application) Clone() Application {
	a.Documents = slices.Clone(a.Documents)
	if a.Bid != nil {
		bid := *a.Bid
		a.Bid = &bid
	}
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		a.DecidedAt = &t
	}
	if a.TransactionID != nil {
		id := *a.TransactionID
		a.TransactionID = &id
	}
	if a.Terms.Start != nil {
		t := *a.Terms.Start
		a.Terms.Start = &t
	}
	if a.Terms.End != nil {
		t := *a.Terms.End
		a.Terms.End = &t
	}
	return a
}

// ApplicationFilter narrows application listings. Zero values are ignored.
type ApplicationFilter struct {
	PropertyID  *uuid.UUID
	ApplicantID string
	Status      ApplicationStatus
}

// Matches reports whether a satisfies the filter.
func (f ApplicationFilter) Matches(a *Application) bool {
	if f.PropertyID != nil && a.PropertyID != *f.PropertyID {
		return false
	}
	if f.ApplicantID != "" && a.ApplicantID != f.ApplicantID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}
