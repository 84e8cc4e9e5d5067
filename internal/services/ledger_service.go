package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fossbin/propease/internal/billing"
	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/models"
	"github.com/fossbin/propease/internal/repository"
)

// ExpiryReason is recorded on tenancies ended by the system at their end date.
const ExpiryReason = "lease term ended"

// SweepReport summarises one background sweep.
type SweepReport struct {
	Expired  int `json:"expired"`
	Promoted int `json:"promoted"`
	Overdue  int `json:"overdue"`
}

// LedgerService manages transactions after they are created by an approved application.
type LedgerService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Transaction, error)
	ListByCounterparty(ctx context.Context, counterpartyID string) ([]models.Transaction, error)
	ListActive(ctx context.Context) ([]models.Transaction, error)
	// Terminate ends a lease or subscription early and releases its property.
	Terminate(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.Transaction, error)
	// ExpireIfPastEnd terminates a tenancy whose end date has passed. It is
	// idempotent and reports whether this call expired the transaction.
	ExpireIfPastEnd(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// Sweep expires finished tenancies, moves started ones to Occupied and
	// announces overdue obligations.
	Sweep(ctx context.Context, now time.Time) (SweepReport, error)
}

type ledgerService struct {
	deps Dependencies
	log  *logger.Logger
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(deps Dependencies) LedgerService {
	return newLedger(deps.withDefaults())
}

func newLedger(deps Dependencies) *ledgerService {
	return &ledgerService{deps: deps, log: deps.Log.Component("ledger")}
}

// create records the transaction for an approved application. It runs inside
// the caller's unit of work with the property already locked.
func (l *ledgerService) create(ctx context.Context, r repository.Repositories, app *models.Application, p *models.Property, now time.Time) (*models.Transaction, error) {
	amount := p.Price
	if app.Bid != nil {
		amount = *app.Bid
	}

	t := &models.Transaction{
		ID:             uuid.New(),
		Kind:           p.Kind,
		PropertyID:     p.ID,
		ApplicationID:  app.ID,
		CounterpartyID: app.ApplicantID,
		OwnerID:        p.OwnerID,
		CreatedAt:      now,
	}

	switch p.Kind {
	case models.KindLease, models.KindSubscription:
		if app.Terms.Start == nil || app.Terms.End == nil {
			return nil, fmt.Errorf("%w: application %s has no tenancy dates", ErrValidation, app.ID)
		}
		tenancy := &models.Tenancy{
			StartDate: models.DateOf(*app.Terms.Start),
			EndDate:   models.DateOf(*app.Terms.End),
			Amount:    amount,
		}
		if p.Kind == models.KindLease {
			tenancy.Cadence = models.CadenceMonthly
			tenancy.AgreementRef = fmt.Sprintf("agreements/lease_%s.pdf", t.ID)
		} else {
			tenancy.Cadence = app.Terms.Cadence
			tenancy.AgreementRef = fmt.Sprintf("contracts/sub_%s.pdf", t.ID)
		}
		t.Tenancy = tenancy
	case models.KindSale:
		t.Sale = &models.SaleRecord{
			SaleDate: now,
			Price:    amount,
			DeedRef:  fmt.Sprintf("deeds/sale_%s.pdf", t.ID),
		}
	}
	if err := t.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := r.Transactions().Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: property %s already has an active transaction", ErrPropertyNotEligible, p.ID)
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return t, nil
}

func (l *ledgerService) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return loadTransaction(ctx, l.deps.Store, id, false)
}

func (l *ledgerService) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Transaction, error) {
	return l.list(ctx, models.TransactionFilter{PropertyID: &propertyID})
}

func (l *ledgerService) ListByCounterparty(ctx context.Context, counterpartyID string) ([]models.Transaction, error) {
	if counterpartyID == "" {
		return nil, fmt.Errorf("%w: counterparty id is required", ErrValidation)
	}
	return l.list(ctx, models.TransactionFilter{CounterpartyID: counterpartyID})
}

func (l *ledgerService) ListActive(ctx context.Context) ([]models.Transaction, error) {
	return l.list(ctx, models.TransactionFilter{ActiveOnly: true})
}

func (l *ledgerService) list(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	txs, err := l.deps.Store.Transactions().List(ctx, filter)
	if err != nil {
		l.log.Error("Failed to list transactions", err, nil)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (l *ledgerService) Terminate(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.Transaction, error) {
	reason = strings.TrimSpace(reason)
	t, _, err := l.end(ctx, id, l.deps.now(), func(t *models.Transaction) (*models.Termination, error) {
		if t.Kind == models.KindSale {
			return nil, fmt.Errorf("%w: sale %s cannot be terminated", ErrImmutableRecord, t.ID)
		}
		role, ok := terminatorRole(actor, t)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a party to transaction %s", ErrNotAuthorized, actor.ID, t.ID)
		}
		if !t.Active() {
			return nil, fmt.Errorf("%w: transaction %s is already terminated", ErrInvalidState, t.ID)
		}
		if reason == "" {
			return nil, fmt.Errorf("%w: termination reason is required", ErrValidation)
		}
		return &models.Termination{By: actor.ID, Role: role, Reason: reason}, nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (l *ledgerService) ExpireIfPastEnd(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	now = now.UTC()
	_, expired, err := l.end(ctx, id, now, func(t *models.Transaction) (*models.Termination, error) {
		if t.Kind == models.KindSale || !t.Active() || !t.Tenancy.PastEnd(now) {
			return nil, nil
		}
		return &models.Termination{
			By:     models.SystemActorID,
			Role:   models.TerminatedBySystem,
			Reason: ExpiryReason,
		}, nil
	})
	return expired, err
}

// decideTermination inspects a locked transaction and returns the termination
// to apply, nil to leave it alone, or an error to abort.
type decideTermination func(t *models.Transaction) (*models.Termination, error)

// end applies a termination under the property and transaction locks and
// releases the property in the same unit of work.
func (l *ledgerService) end(ctx context.Context, id uuid.UUID, now time.Time, decide decideTermination) (*models.Transaction, bool, error) {
	// The property id never changes, so it is safe to read it before locking.
	current, err := loadTransaction(ctx, l.deps.Store, id, false)
	if err != nil {
		return nil, false, err
	}

	unlockProperty := l.deps.Locks.Lock(propertyKey(current.PropertyID))
	defer unlockProperty()
	unlockTx := l.deps.Locks.Lock(transactionKey(id))
	defer unlockTx()

	var (
		out     *models.Transaction
		applied bool
		emitted []events.Event
	)
	err = l.deps.Store.WithinTx(ctx, func(r repository.Repositories) error {
		p, err := loadProperty(ctx, r, current.PropertyID, true)
		if err != nil {
			return err
		}
		t, err := loadTransaction(ctx, r, id, true)
		if err != nil {
			return err
		}
		term, err := decide(t)
		if err != nil {
			return err
		}
		out = t
		if term == nil {
			return nil
		}

		term.At = now
		t.Tenancy.Termination = term
		if err := r.Transactions().Update(ctx, t); err != nil {
			return fmt.Errorf("failed to update transaction %s: %w", t.ID, err)
		}

		from := p.Status
		release(p, now)
		if err := r.Properties().Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update property %s: %w", p.ID, err)
		}

		typ := events.TransactionTerminated
		if term.Role == models.TerminatedBySystem {
			typ = events.TransactionExpired
		}
		emitted = []events.Event{
			events.New(typ, t.ID, term.By, now, map[string]any{
				"propertyId": p.ID.String(),
				"role":       string(term.Role),
				"reason":     term.Reason,
			}),
			statusEvent(p, from, term.By, now),
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if applied {
		term := out.Tenancy.Termination
		l.log.Info("Transaction terminated", logger.Fields{
			"transaction_id": id.String(),
			"property_id":    out.PropertyID.String(),
			"terminated_by":  term.By,
			"role":           string(term.Role),
		})
		l.deps.Events.Publish(emitted...)
	}
	return out, applied, nil
}

func terminatorRole(actor models.Actor, t *models.Transaction) (models.TerminatorRole, bool) {
	switch {
	case actor.ID != "" && actor.ID == t.OwnerID:
		return models.TerminatedByOwner, true
	case actor.ID != "" && actor.ID == t.CounterpartyID:
		return models.TerminatedByCounterparty, true
	case actor.IsAdmin():
		return models.TerminatedByAdmin, true
	}
	return "", false
}

func (l *ledgerService) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	now = now.UTC()
	var report SweepReport

	active, err := l.ListActive(ctx)
	if err != nil {
		return report, err
	}

	var errs []error
	for i := range active {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		t := &active[i]
		if t.Kind == models.KindSale {
			continue
		}

		expired, err := l.ExpireIfPastEnd(ctx, t.ID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", t.ID, err))
			continue
		}
		if expired {
			report.Expired++
			continue
		}

		promoted, err := l.promote(ctx, t.PropertyID, t.ID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("promote %s: %w", t.PropertyID, err))
		} else if promoted {
			report.Promoted++
		}

		overdue, err := l.announceOverdue(ctx, t, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("overdue %s: %w", t.ID, err))
		} else if overdue {
			report.Overdue++
		}
	}

	err = errors.Join(errs...)
	fields := logger.Fields{
		"expired":  report.Expired,
		"promoted": report.Promoted,
		"overdue":  report.Overdue,
		"scanned":  len(active),
	}
	if err != nil {
		l.log.Error("Sweep finished with errors", err, fields)
	} else {
		l.log.Info("Sweep finished", fields)
	}
	return report, err
}

// promote moves a property from UnderTransaction to Occupied once its tenancy has started.
func (l *ledgerService) promote(ctx context.Context, propertyID, txID uuid.UUID, now time.Time) (bool, error) {
	unlock := l.deps.Locks.Lock(propertyKey(propertyID))
	defer unlock()

	var (
		promoted bool
		event    events.Event
	)
	err := l.deps.Store.WithinTx(ctx, func(r repository.Repositories) error {
		p, err := loadProperty(ctx, r, propertyID, true)
		if err != nil {
			return err
		}
		if p.Status != models.StatusUnderTransaction {
			return nil
		}
		t, err := loadTransaction(ctx, r, txID, false)
		if err != nil {
			return err
		}
		if !t.Active() || occupiedStatus(t, now) != models.StatusOccupied {
			return nil
		}

		from := p.Status
		markUnderTransaction(p, t, now)
		if err := r.Properties().Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update property %s: %w", p.ID, err)
		}
		event = statusEvent(p, from, models.SystemActorID, now)
		promoted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if promoted {
		l.deps.Events.Publish(event)
	}
	return promoted, nil
}

func (l *ledgerService) announceOverdue(ctx context.Context, t *models.Transaction, now time.Time) (bool, error) {
	payments, err := l.deps.Store.Transactions().Payments(ctx, t.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load payments: %w", err)
	}

	var (
		periods     []int
		outstanding models.Money
	)
	for _, ob := range billing.Obligations(t, payments, now, l.deps.Billing) {
		if ob.Overdue {
			periods = append(periods, ob.PeriodID)
			outstanding += ob.Total
		}
	}
	if len(periods) == 0 {
		return false, nil
	}

	l.deps.Events.Publish(events.New(events.ObligationOverdue, t.ID, models.SystemActorID, now, map[string]any{
		"counterpartyId": t.CounterpartyID,
		"periods":        periods,
		"outstanding":    outstanding.String(),
	}))
	return true, nil
}

// loadTransaction fetches a transaction, optionally row-locked, mapping a missing row to ErrNotFound.
func loadTransaction(ctx context.Context, r repository.Repositories, id uuid.UUID, forUpdate bool) (*models.Transaction, error) {
	get := r.Transactions().Get
	if forUpdate {
		get = r.Transactions().GetForUpdate
	}
	t, err := get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return t, nil
}
