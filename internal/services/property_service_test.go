package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/models"
)

func TestPropertySubmit(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Properties.Submit(f.ctx, owner, leaseDraft())
	require.NoError(t, err)

	assert.Equal(t, owner.ID, p.OwnerID)
	assert.Equal(t, models.StatusAvailable, p.Status)
	assert.Equal(t, models.ApprovalPending, p.Approval)
	assert.False(t, p.Eligible())
	assert.Equal(t, f.clock.Now(), p.CreatedAt)
	assert.Equal(t, []events.Type{events.PropertySubmitted}, f.events.types())

	stored, err := f.svc.Properties.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, stored.Title)
}

func TestPropertySubmit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *PropertyDraft)
	}{
		{"blank title", func(d *PropertyDraft) { d.Title = "  " }},
		{"unknown type", func(d *PropertyDraft) { d.Type = "Castle" }},
		{"unknown kind", func(d *PropertyDraft) { d.Kind = "Barter" }},
		{"pg cannot be leased", func(d *PropertyDraft) { d.Type = models.PropertyPG }},
		{"land cannot be subscribed", func(d *PropertyDraft) {
			d.Type = models.PropertyLand
			d.Kind = models.KindSubscription
		}},
		{"zero price", func(d *PropertyDraft) { d.Price = 0 }},
		{"negative price", func(d *PropertyDraft) { d.Price = -1 }},
		{"zero capacity", func(d *PropertyDraft) { d.Capacity = 0 }},
		{"missing address", func(d *PropertyDraft) { d.Location.AddressLine = "" }},
		{"latitude out of range", func(d *PropertyDraft) { d.Location.Point = models.NewPoint(91, 10) }},
		{"blank photo ref", func(d *PropertyDraft) { d.Photos = []string{""} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := leaseDraft()
			tt.mutate(&d)

			p, err := f.svc.Properties.Submit(f.ctx, owner, d)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Nil(t, p)
			assert.Empty(t, f.events.types())
		})
	}
}

func TestPropertySubmit_RequiresOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Properties.Submit(f.ctx, models.Actor{}, leaseDraft())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPropertyGet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Properties.Get(f.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPropertyResubmit(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Properties.Submit(f.ctx, owner, leaseDraft())
	require.NoError(t, err)

	_, err = f.svc.Properties.Resubmit(f.ctx, owner, p.ID, leaseDraft())
	assert.ErrorIs(t, err, ErrInvalidState, "only rejected listings can be resubmitted")

	_, err = f.svc.Approvals.Reject(f.ctx, admin, p.ID, "photos are blurry")
	require.NoError(t, err)

	_, err = f.svc.Properties.Resubmit(f.ctx, outsider, p.ID, leaseDraft())
	assert.ErrorIs(t, err, ErrNotAuthorized)

	d := leaseDraft()
	d.Title = "2BHK with new photos"
	p, err = f.svc.Properties.Resubmit(f.ctx, owner, p.ID, d)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, p.Approval)
	assert.Empty(t, p.RejectionReason)
	assert.Equal(t, "2BHK with new photos", p.Title)
	assert.Equal(t, 1, f.events.count(events.PropertyResubmitted))
}

func TestPropertyList(t *testing.T) {
	f := newFixture(t)
	listed := f.listed(t, leaseDraft())

	far := leaseDraft()
	far.Location.Point = models.NewPoint(19.0760, 72.8777)
	_, err := f.svc.Properties.Submit(f.ctx, owner, far)
	require.NoError(t, err)

	eligible, err := f.svc.Properties.List(f.ctx, models.PropertyFilter{
		Status:   models.StatusAvailable,
		Approval: models.ApprovalApproved,
	})
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, listed.ID, eligible[0].ID)

	near, err := f.svc.Properties.List(f.ctx, models.PropertyFilter{
		Near: &models.Radius{Center: models.NewPoint(12.97, 77.59), Meters: 5000},
	})
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, listed.ID, near[0].ID)
}

func TestPropertyList_InvalidFilter(t *testing.T) {
	f := newFixture(t)

	for name, filter := range map[string]models.PropertyFilter{
		"status":       {Status: "Haunted"},
		"approval":     {Approval: "Maybe"},
		"type":         {Type: "Castle"},
		"kind":         {Kind: "Barter"},
		"radius":       {Near: &models.Radius{Center: models.NewPoint(0, 0), Meters: 0}},
		"large radius": {Near: &models.Radius{Center: models.NewPoint(0, 0), Meters: MaxRadiusMeters + 1}},
		"center":       {Near: &models.Radius{Center: models.NewPoint(0, 200), Meters: 100}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Properties.List(f.ctx, filter)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPropertyChangeStatus(t *testing.T) {
	f := newFixture(t)
	p := f.listed(t, leaseDraft())

	for _, status := range []models.PropertyStatus{models.StatusOccupied, models.StatusSold, models.StatusUnderTransaction, models.StatusAvailable} {
		_, err := f.svc.Properties.ChangeStatus(f.ctx, admin, p.ID, status)
		assert.ErrorIs(t, err, ErrForbiddenTransition, "status %s", status)
	}

	_, err := f.svc.Properties.ChangeStatus(f.ctx, admin, p.ID, "Haunted")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Properties.ChangeStatus(f.ctx, owner, p.ID, models.StatusDisabled)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	disabled, err := f.svc.Properties.ChangeStatus(f.ctx, admin, p.ID, models.StatusDisabled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisabled, disabled.Status)

	enabled, err := f.svc.Properties.ChangeStatus(f.ctx, admin, p.ID, models.StatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, enabled.Status)
}

func TestOccupiedStatus(t *testing.T) {
	tenancy := &models.Transaction{
		Kind:    models.KindLease,
		Tenancy: &models.Tenancy{StartDate: date(2024, time.February, 1), EndDate: date(2024, time.July, 31)},
	}
	sale := &models.Transaction{Kind: models.KindSale, Sale: &models.SaleRecord{}}

	assert.Equal(t, models.StatusUnderTransaction, occupiedStatus(tenancy, date(2024, time.January, 31).Add(23*time.Hour)))
	assert.Equal(t, models.StatusOccupied, occupiedStatus(tenancy, date(2024, time.February, 1)))
	assert.Equal(t, models.StatusSold, occupiedStatus(sale, date(2024, time.February, 1)))
}

func TestRelease(t *testing.T) {
	now := date(2024, time.March, 1)
	tests := []struct {
		name     string
		status   models.PropertyStatus
		approval models.ApprovalStatus
		want     models.PropertyStatus
	}{
		{"approved occupied", models.StatusOccupied, models.ApprovalApproved, models.StatusAvailable},
		{"approved pending start", models.StatusUnderTransaction, models.ApprovalApproved, models.StatusAvailable},
		{"disabled stays disabled", models.StatusDisabled, models.ApprovalApproved, models.StatusDisabled},
		{"rejected is not re-listed", models.StatusOccupied, models.ApprovalRejected, models.StatusDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &models.Property{Status: tt.status, Approval: tt.approval}
			release(p, now)
			assert.Equal(t, tt.want, p.Status)
			assert.Equal(t, now, p.UpdatedAt)
		})
	}
}
