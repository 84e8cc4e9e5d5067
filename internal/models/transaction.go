package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionKind discriminates the Transaction union.
type TransactionKind string

const (
	KindLease        TransactionKind = "Lease"
	KindSubscription TransactionKind = "Subscription"
	KindSale         TransactionKind = "Sale"
)

// Valid reports whether k is a known kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindLease, KindSubscription, KindSale:
		return true
	}
	return false
}

// Periodic reports whether the kind bills per period.
func (k TransactionKind) Periodic() bool {
	return k == KindLease || k == KindSubscription
}

// TerminatorRole records who ended a tenancy.
type TerminatorRole string

const (
	TerminatedByOwner        TerminatorRole = "owner"
	TerminatedByCounterparty TerminatorRole = "counterparty"
	TerminatedByAdmin        TerminatorRole = "admin"
	TerminatedBySystem       TerminatorRole = "system"
)

// SystemActorID is the actor recorded for automatic expiry.
const SystemActorID = "system"

// Termination is the record left on a tenancy when it ends early or expires.
type Termination struct {
	At     time.Time      `json:"terminatedAt"`
	By     string         `json:"terminatedBy"`
	Role   TerminatorRole `json:"terminatedByRole"`
	Reason string         `json:"reason"`
}

// Tenancy is the Lease/Subscription payload.
type Tenancy struct {
	StartDate      time.Time    `json:"startDate"`
	EndDate        time.Time    `json:"endDate"`
	Termination    *Termination `json:"termination,omitempty"`
	Cadence        Cadence      `json:"cadence"`
	AgreementRef   string       `json:"agreementRef"`
	Amount         Money        `json:"amount"`
	LastPaidPeriod int          `json:"lastPaidPeriod"`
}

// SaleRecord is the Sale payload.
type SaleRecord struct {
	SaleDate time.Time `json:"saleDate"`
	DeedRef  string    `json:"deedRef"`
	Price    Money     `json:"salePrice"`
}

// Transaction is the binding record created when an application is approved.
// Exactly one of Tenancy or Sale is set, matching Kind.
type Transaction struct {
	CreatedAt      time.Time       `json:"createdAt"`
	Tenancy        *Tenancy        `json:"tenancy,omitempty"`
	Sale           *SaleRecord     `json:"sale,omitempty"`
	Kind           TransactionKind `json:"kind"`
	CounterpartyID string          `json:"counterpartyId"`
	OwnerID        string          `json:"ownerId"`
	ID             uuid.UUID       `json:"id"`
	PropertyID     uuid.UUID       `json:"propertyId"`
	ApplicationID  uuid.UUID       `json:"applicationId"`
}

// Check verifies the union is well formed.
func (t *Transaction) Check() error {
	switch t.Kind {
	case KindLease, KindSubscription:
		if t.Tenancy == nil || t.Sale != nil {
			return fmt.Errorf("transaction %s: %s requires tenancy payload only", t.ID, t.Kind)
		}
	case KindSale:
		if t.Sale == nil || t.Tenancy != nil {
			return fmt.Errorf("transaction %s: sale requires sale payload only", t.ID)
		}
	default:
		return fmt.Errorf("transaction %s: unknown kind %q", t.ID, t.Kind)
	}
	return nil
}

// Active reports whether the transaction still holds its property.
// A Sale is permanently active; a tenancy is active until terminated.
func (t *Transaction) Active() bool {
	switch t.Kind {
	case KindSale:
		return true
	case KindLease, KindSubscription:
		return t.Tenancy != nil && t.Tenancy.Termination == nil
	}
	return false
}

// PastEnd reports whether now falls after the last day of the tenancy.
func (t *Tenancy) PastEnd(now time.Time) bool {
	return !now.Before(t.EndDate.AddDate(0, 0, 1))
}

// Clone returns a deep copy.
func (t Transaction) Clone() Transaction {
	if t.Tenancy != nil {
		ten := *t.Tenancy
		if ten.Termination != nil {
			term := *ten.Termination
			ten.Termination = &term
		}
		t.Tenancy = &ten
	}
	if t.Sale != nil {
		s := *t.Sale
		t.Sale = &s
	}
	return t
}

// TransactionFilter narrows transaction listings. Zero values are ignored.
type TransactionFilter struct {
	PropertyID     *uuid.UUID
	CounterpartyID string
	Kind           TransactionKind
	ActiveOnly     bool
}

// Matches reports whether t satisfies the filter.
func (f TransactionFilter) Matches(t *Transaction) bool {
	if f.PropertyID != nil && t.PropertyID != *f.PropertyID {
		return false
	}
	if f.CounterpartyID != "" && t.CounterpartyID != f.CounterpartyID {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.ActiveOnly && !t.Active() {
		return false
	}
	return true
}

// DateOf truncates t to a UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
