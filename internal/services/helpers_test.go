package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fossbin/propease/internal/billing"
	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/models"
	"github.com/fossbin/propease/internal/repository"
)

var (
	admin    = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
	owner    = models.Actor{ID: "owner-1", Role: models.RoleOwner}
	seeker   = models.Actor{ID: "seeker-1", Role: models.RoleSeeker}
	seeker2  = models.Actor{ID: "seeker-2", Role: models.RoleSeeker}
	outsider = models.Actor{ID: "stranger", Role: models.RoleSeeker}
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// recorder is a Publisher that keeps everything it is given.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(evs ...events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) count(t events.Type) int {
	n := 0
	for _, typ := range r.types() {
		if typ == t {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	ctx    context.Context
	store  *repository.MemoryStore
	events *recorder
	clock  *clock
	svc    *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		store:  repository.NewMemoryStore(),
		events: &recorder{},
		clock:  &clock{now: time.Date(2024, time.January, 10, 10, 0, 0, 0, time.UTC)},
	}
	f.svc = New(Dependencies{
		Store:   f.store,
		Events:  f.events,
		Now:     f.clock.Now,
		Billing: billing.DefaultPolicy(),
	})
	return f
}

func draftFor(typ models.PropertyType, kind models.TransactionKind, price string) PropertyDraft {
	return PropertyDraft{
		Title:    "2BHK near the lake",
		Type:     typ,
		Kind:     kind,
		Price:    models.MustMoney(price),
		Capacity: 3,
		Location: models.Location{
			AddressLine: "12 MG Road",
			City:        "Bengaluru",
			Point:       models.NewPoint(12.9716, 77.5946),
		},
		Photos: []string{"photos/front.jpg"},
	}
}

func leaseDraft() PropertyDraft {
	return draftFor(models.PropertyApartment, models.KindLease, "10000")
}

// listed submits and approves a property.
func (f *fixture) listed(t *testing.T, draft PropertyDraft) *models.Property {
	t.Helper()
	p, err := f.svc.Properties.Submit(f.ctx, owner, draft)
	require.NoError(t, err)
	p, err = f.svc.Approvals.Approve(f.ctx, admin, p.ID)
	require.NoError(t, err)
	return p
}

func leaseTerms(start, end time.Time) models.Terms {
	return models.Terms{Start: &start, End: &end}
}

func (f *fixture) apply(t *testing.T, actor models.Actor, propertyID uuid.UUID, terms models.Terms) *models.Application {
	t.Helper()
	app, err := f.svc.Applications.Submit(f.ctx, actor, propertyID, ApplicationDraft{
		Terms:     terms,
		Documents: []string{"kyc/id.pdf"},
	})
	require.NoError(t, err)
	return app
}

// activeLease lists a lease property running Feb 1 to Jul 31 2024 for seeker.
func (f *fixture) activeLease(t *testing.T) (*models.Property, *models.Transaction) {
	t.Helper()
	p := f.listed(t, leaseDraft())
	app := f.apply(t, seeker, p.ID, leaseTerms(date(2024, time.February, 1), date(2024, time.July, 31)))
	app, err := f.svc.Applications.Decide(f.ctx, owner, app.ID, DecisionApprove, "")
	require.NoError(t, err)
	require.NotNil(t, app.TransactionID)
	tx, err := f.svc.Ledger.Get(f.ctx, *app.TransactionID)
	require.NoError(t, err)
	p, err = f.svc.Properties.Get(f.ctx, p.ID)
	require.NoError(t, err)
	return p, tx
}
