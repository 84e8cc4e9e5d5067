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

func TestApprove(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Properties.Submit(f.ctx, owner, leaseDraft())
	require.NoError(t, err)

	_, err = f.svc.Approvals.Approve(f.ctx, owner, p.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	p, err = f.svc.Approvals.Approve(f.ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, p.Approval)
	assert.True(t, p.Eligible())

	_, err = f.svc.Approvals.Approve(f.ctx, admin, p.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Approvals.Approve(f.ctx, admin, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	p := f.listed(t, leaseDraft())

	_, err := f.svc.Approvals.Reject(f.ctx, admin, p.ID, " ")
	assert.ErrorIs(t, err, ErrValidation)

	p, err = f.svc.Approvals.Reject(f.ctx, admin, p.ID, "duplicate listing")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, p.Approval)
	assert.Equal(t, "duplicate listing", p.RejectionReason)
	assert.Equal(t, models.StatusAvailable, p.Status)
	assert.False(t, p.Eligible())

	_, err = f.svc.Approvals.Reject(f.ctx, admin, p.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Applications.Submit(f.ctx, seeker, p.ID, ApplicationDraft{
		Terms: leaseTerms(date(2024, time.February, 1), date(2024, time.July, 31)),
	})
	assert.ErrorIs(t, err, ErrPropertyNotEligible)
}

func TestDisableEnable(t *testing.T) {
	f := newFixture(t)
	p := f.listed(t, leaseDraft())
	f.events.reset()

	p, err := f.svc.Approvals.Disable(f.ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisabled, p.Status)
	assert.False(t, p.Eligible())
	assert.Equal(t, []events.Type{events.PropertyDisabled, events.PropertyStatus}, f.events.types())

	_, err = f.svc.Approvals.Disable(f.ctx, admin, p.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	p, err = f.svc.Approvals.Enable(f.ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, p.Status)
	assert.True(t, p.Eligible())

	_, err = f.svc.Approvals.Enable(f.ctx, admin, p.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestEnable_RestoresTransactionStatus(t *testing.T) {
	f := newFixture(t)
	p, _ := f.activeLease(t)
	require.Equal(t, models.StatusUnderTransaction, p.Status)

	_, err := f.svc.Approvals.Disable(f.ctx, admin, p.ID)
	require.NoError(t, err)

	f.clock.Set(date(2024, time.March, 1))
	p, err = f.svc.Approvals.Enable(f.ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOccupied, p.Status)
}

func TestEnable_RejectedPropertyStaysDisabled(t *testing.T) {
	f := newFixture(t)
	p := f.listed(t, leaseDraft())

	_, err := f.svc.Approvals.Disable(f.ctx, admin, p.ID)
	require.NoError(t, err)
	_, err = f.svc.Approvals.Reject(f.ctx, admin, p.ID, "fraudulent")
	require.NoError(t, err)

	_, err = f.svc.Approvals.Enable(f.ctx, admin, p.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	p, err = f.svc.Properties.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisabled, p.Status)
}

func TestDisable_SoldProperty(t *testing.T) {
	f := newFixture(t)
	p := f.listed(t, draftFor(models.PropertyVilla, models.KindSale, "2500000"))
	app, err := f.svc.Applications.Submit(f.ctx, seeker, p.ID, ApplicationDraft{})
	require.NoError(t, err)
	_, err = f.svc.Applications.Decide(f.ctx, owner, app.ID, DecisionApprove, "")
	require.NoError(t, err)

	_, err = f.svc.Approvals.Disable(f.ctx, admin, p.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestVerify_DoesNotAffectEligibility(t *testing.T) {
	f := newFixture(t)
	pending, err := f.svc.Properties.Submit(f.ctx, owner, leaseDraft())
	require.NoError(t, err)

	pending, err = f.svc.Approvals.Verify(f.ctx, admin, pending.ID)
	require.NoError(t, err)
	assert.True(t, pending.Verified)
	assert.False(t, pending.Eligible())

	listed := f.listed(t, leaseDraft())
	listed, err = f.svc.Approvals.Verify(f.ctx, admin, listed.ID)
	require.NoError(t, err)
	assert.True(t, listed.Eligible())

	listed, err = f.svc.Approvals.Unverify(f.ctx, admin, listed.ID)
	require.NoError(t, err)
	assert.False(t, listed.Verified)
	assert.True(t, listed.Eligible())

	_, err = f.svc.Approvals.Verify(f.ctx, owner, listed.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	assert.Equal(t, 2, f.events.count(events.PropertyVerified))
	assert.Equal(t, 1, f.events.count(events.PropertyUnverified))
}
