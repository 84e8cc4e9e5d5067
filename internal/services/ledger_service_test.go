package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/models"
)

func TestTerminate_ReleasesProperty(t *testing.T) {
	f := newFixture(t)
	p, tx := f.activeLease(t)
	f.clock.Set(date(2024, time.April, 15))
	f.events.reset()

	ended, err := f.svc.Ledger.Terminate(f.ctx, seeker, tx.ID, "relocating")
	require.NoError(t, err)
	require.NotNil(t, ended.Tenancy.Termination)
	assert.Equal(t, seeker.ID, ended.Tenancy.Termination.By)
	assert.Equal(t, models.TerminatedByCounterparty, ended.Tenancy.Termination.Role)
	assert.Equal(t, "relocating", ended.Tenancy.Termination.Reason)
	assert.Equal(t, date(2024, time.April, 15), ended.Tenancy.Termination.At)
	assert.False(t, ended.Active())

	prop, err := f.svc.Properties.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, prop.Status)
	assert.True(t, prop.Eligible())

	assert.Equal(t, []events.Type{events.TransactionTerminated, events.PropertyStatus}, f.events.types())

	obs, err := f.svc.Payments.ListObligations(f.ctx, tx.ID, date(2024, time.December, 1))
	require.NoError(t, err)
	assert.Len(t, obs, 3, "obligations stop at the termination date")

	active, err := f.svc.Ledger.ListActive(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestTerminate_Roles(t *testing.T) {
	tests := []struct {
		actor models.Actor
		role  models.TerminatorRole
	}{
		{owner, models.TerminatedByOwner},
		{seeker, models.TerminatedByCounterparty},
		{admin, models.TerminatedByAdmin},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			f := newFixture(t)
			_, tx := f.activeLease(t)

			ended, err := f.svc.Ledger.Terminate(f.ctx, tt.actor, tx.ID, "done")
			require.NoError(t, err)
			assert.Equal(t, tt.role, ended.Tenancy.Termination.Role)
		})
	}
}

func TestTerminate_Errors(t *testing.T) {
	f := newFixture(t)
	_, tx := f.activeLease(t)

	_, err := f.svc.Ledger.Terminate(f.ctx, outsider, tx.ID, "because")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = f.svc.Ledger.Terminate(f.ctx, owner, tx.ID, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Ledger.Terminate(f.ctx, owner, uuid.New(), "because")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Ledger.Terminate(f.ctx, owner, tx.ID, "tenant left")
	require.NoError(t, err)
	_, err = f.svc.Ledger.Terminate(f.ctx, owner, tx.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTerminate_SaleIsImmutable(t *testing.T) {
	f := newFixture(t)
	p := f.listed(t, draftFor(models.PropertyLand, models.KindSale, "900000"))
	app, err := f.svc.Applications.Submit(f.ctx, seeker, p.ID, ApplicationDraft{})
	require.NoError(t, err)
	app, err = f.svc.Applications.Decide(f.ctx, owner, app.ID, DecisionApprove, "")
	require.NoError(t, err)

	_, err = f.svc.Ledger.Terminate(f.ctx, admin, *app.TransactionID, "undo")
	assert.ErrorIs(t, err, ErrImmutableRecord)

	expired, err := f.svc.Ledger.ExpireIfPastEnd(f.ctx, *app.TransactionID, date(2099, time.January, 1))
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestTerminate_DisabledPropertyStaysDisabled(t *testing.T) {
	f := newFixture(t)
	p, tx := f.activeLease(t)

	_, err := f.svc.Approvals.Disable(f.ctx, admin, p.ID)
	require.NoError(t, err)
	_, err = f.svc.Ledger.Terminate(f.ctx, owner, tx.ID, "tenant left")
	require.NoError(t, err)

	prop, err := f.svc.Properties.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisabled, prop.Status)
}

func TestTerminate_RejectedPropertyBecomesDisabled(t *testing.T) {
	f := newFixture(t)
	p, tx := f.activeLease(t)

	_, err := f.svc.Approvals.Reject(f.ctx, admin, p.ID, "listing revoked")
	require.NoError(t, err)
	_, err = f.svc.Ledger.Terminate(f.ctx, owner, tx.ID, "tenant left")
	require.NoError(t, err)

	prop, err := f.svc.Properties.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisabled, prop.Status)
}

func TestExpireIfPastEnd(t *testing.T) {
	f := newFixture(t)
	p, tx := f.activeLease(t)

	expired, err := f.svc.Ledger.ExpireIfPastEnd(f.ctx, tx.ID, date(2024, time.July, 31).Add(23*time.Hour))
	require.NoError(t, err)
	assert.False(t, expired, "the end date itself is still part of the term")

	f.events.reset()
	expired, err = f.svc.Ledger.ExpireIfPastEnd(f.ctx, tx.ID, date(2024, time.August, 1))
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Equal(t, []events.Type{events.TransactionExpired, events.PropertyStatus}, f.events.types())

	again, err := f.svc.Ledger.ExpireIfPastEnd(f.ctx, tx.ID, date(2024, time.August, 2))
	require.NoError(t, err)
	assert.False(t, again)

	ended, err := f.svc.Ledger.Get(f.ctx, tx.ID)
	require.NoError(t, err)
	term := ended.Tenancy.Termination
	require.NotNil(t, term)
	assert.Equal(t, models.SystemActorID, term.By)
	assert.Equal(t, models.TerminatedBySystem, term.Role)
	assert.Equal(t, ExpiryReason, term.Reason)
	assert.Equal(t, date(2024, time.August, 1), term.At)

	prop, err := f.svc.Properties.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, prop.Status)
}

func TestExpire_RacesWithTerminate(t *testing.T) {
	f := newFixture(t)
	_, tx := f.activeLease(t)
	f.clock.Set(date(2024, time.August, 3))

	var (
		wg         sync.WaitGroup
		expired    bool
		expireErr  error
		terminated error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		expired, expireErr = f.svc.Ledger.ExpireIfPastEnd(f.ctx, tx.ID, date(2024, time.August, 3))
	}()
	go func() {
		defer wg.Done()
		_, terminated = f.svc.Ledger.Terminate(f.ctx, owner, tx.ID, "moving out")
	}()
	wg.Wait()

	require.NoError(t, expireErr)
	if expired {
		assert.True(t, errors.Is(terminated, ErrInvalidState))
	} else {
		assert.NoError(t, terminated)
	}
	assert.Equal(t, 1, f.events.count(events.TransactionExpired)+f.events.count(events.TransactionTerminated))
}

func TestSweep(t *testing.T) {
	f := newFixture(t)

	// Finished: Feb 1 to Jul 31.
	finishedProp, finished := f.activeLease(t)

	// Started but unpaid: Apr 1 to Dec 31, still UnderTransaction until the sweep runs.
	running := f.listed(t, leaseDraft())
	app := f.apply(t, seeker2, running.ID, leaseTerms(date(2024, time.April, 1), date(2024, time.December, 31)))
	_, err := f.svc.Applications.Decide(f.ctx, owner, app.ID, DecisionApprove, "")
	require.NoError(t, err)

	f.events.reset()
	report, err := f.svc.Ledger.Sweep(f.ctx, date(2024, time.August, 2))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Expired: 1, Promoted: 1, Overdue: 1}, report)

	done, err := f.svc.Ledger.Get(f.ctx, finished.ID)
	require.NoError(t, err)
	assert.False(t, done.Active())

	prop, err := f.svc.Properties.Get(f.ctx, finishedProp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, prop.Status)

	occupied, err := f.svc.Properties.Get(f.ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOccupied, occupied.Status)

	assert.Equal(t, 1, f.events.count(events.TransactionExpired))
	assert.Equal(t, 1, f.events.count(events.ObligationOverdue))

	again, err := f.svc.Ledger.Sweep(f.ctx, date(2024, time.August, 2))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Overdue: 1}, again)
}

func TestLedgerListing(t *testing.T) {
	f := newFixture(t)
	p, tx := f.activeLease(t)

	byProperty, err := f.svc.Ledger.ListByProperty(f.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, byProperty, 1)
	assert.Equal(t, tx.ID, byProperty[0].ID)

	mine, err := f.svc.Ledger.ListByCounterparty(f.ctx, seeker.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := f.svc.Ledger.ListByCounterparty(f.ctx, seeker2.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.Ledger.ListByCounterparty(f.ctx, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Ledger.Get(f.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
