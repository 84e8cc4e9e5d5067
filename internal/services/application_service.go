package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/models"
	"github.com/fossbin/propease/internal/repository"
)

// Decision is the outcome an owner or admin gives a pending application.
type Decision string

const (
	DecisionApprove Decision = "Approved"
	DecisionReject  Decision = "Rejected"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// ApplicationDraft is the applicant-supplied part of an application.
type ApplicationDraft struct {
	Bid       *models.Money
	Terms     models.Terms
	Message   string
	Documents []string
}

func (d ApplicationDraft) validate(kind models.TransactionKind) error {
	var problems []string
	if d.Bid != nil && *d.Bid <= 0 {
		problems = append(problems, "bid must be greater than zero")
	}
	for _, ref := range d.Documents {
		if strings.TrimSpace(ref) == "" {
			problems = append(problems, "document references must be non-empty")
			break
		}
	}

	t := d.Terms
	switch kind {
	case models.KindLease, models.KindSubscription:
		if t.Start == nil || t.End == nil {
			problems = append(problems, "start and end dates are required")
		} else if !models.DateOf(*t.Start).Before(models.DateOf(*t.End)) {
			problems = append(problems, "start date must be before end date")
		}
		if kind == models.KindLease && t.Cadence != "" && t.Cadence != models.CadenceMonthly {
			problems = append(problems, "leases are billed monthly")
		}
		if kind == models.KindSubscription && t.Cadence.Months() == 0 {
			problems = append(problems, fmt.Sprintf("subscription cadence must be %s or %s", models.CadenceMonthly, models.CadenceQuarterly))
		}
	case models.KindSale:
		if t.Start != nil || t.End != nil || t.Cadence != "" {
			problems = append(problems, "sale applications do not take tenancy terms")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// ApplicationService manages applications against properties.
type ApplicationService interface {
	Submit(ctx context.Context, actor models.Actor, propertyID uuid.UUID, draft ApplicationDraft) (*models.Application, error)
	// Decide resolves a pending application. Approval creates the transaction,
	// moves the property out of Available and auto-rejects every other
	// pending application for the property, all in one unit of work.
	Decide(ctx context.Context, actor models.Actor, id uuid.UUID, decision Decision, reason string) (*models.Application, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Application, error)
	ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error)
}

type applicationService struct {
	deps   Dependencies
	log    *logger.Logger
	ledger *ledgerService
}

// NewApplicationService creates a new instance of ApplicationService.
func NewApplicationService(deps Dependencies) ApplicationService {
	deps = deps.withDefaults()
	return &applicationService{
		deps:   deps,
		log:    deps.Log.Component("applications"),
		ledger: newLedger(deps),
	}
}

func (s *applicationService) Submit(ctx context.Context, actor models.Actor, propertyID uuid.UUID, draft ApplicationDraft) (*models.Application, error) {
	if actor.ID == "" {
		return nil, fmt.Errorf("%w: applicant id is required", ErrValidation)
	}

	unlock := s.deps.Locks.Lock(propertyKey(propertyID))
	defer unlock()

	now := s.deps.now()
	var app *models.Application
	err := s.deps.Store.WithinTx(ctx, func(r repository.Repositories) error {
		p, err := loadProperty(ctx, r, propertyID, true)
		if err != nil {
			return err
		}
		if !p.Eligible() {
			return fmt.Errorf("%w: property %s is %s/%s", ErrPropertyNotEligible, p.ID, p.Status, p.Approval)
		}
		if p.OwnerID == actor.ID {
			return fmt.Errorf("%w: owners cannot apply to their own property", ErrValidation)
		}
		if err := draft.validate(p.Kind); err != nil {
			return err
		}

		pending, err := r.Applications().List(ctx, models.ApplicationFilter{
			PropertyID:  &propertyID,
			ApplicantID: actor.ID,
			Status:      models.ApplicationPending,
		})
		if err != nil {
			return fmt.Errorf("failed to list applications: %w", err)
		}
		if len(pending) > 0 {
			return fmt.Errorf("%w: applicant already has a pending application for property %s", ErrValidation, propertyID)
		}

		terms := draft.Terms
		if p.Kind == models.KindLease {
			terms.Cadence = models.CadenceMonthly
		}
		app = &models.Application{
			ID:          uuid.New(),
			PropertyID:  propertyID,
			ApplicantID: actor.ID,
			Message:     draft.Message,
			Bid:         draft.Bid,
			Terms:       terms,
			Documents:   append([]string(nil), draft.Documents...),
			Status:      models.ApplicationPending,
			CreatedAt:   now,
		}
		if err := r.Applications().Create(ctx, app); err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Warn("Application rejected at submission", logger.Fields{
			"property_id":  propertyID.String(),
			"applicant_id": actor.ID,
			"error":        err.Error(),
		})
		return nil, err
	}

	s.log.Info("Application submitted", logger.Fields{
		"application_id": app.ID.String(),
		"property_id":    propertyID.String(),
		"applicant_id":   actor.ID,
	})
	s.deps.Events.Publish(events.New(events.ApplicationSubmitted, app.ID, actor.ID, now, map[string]any{
		"propertyId": propertyID.String(),
	}))
	return app, nil
}

func (s *applicationService) Decide(ctx context.Context, actor models.Actor, id uuid.UUID, decision Decision, reason string) (*models.Application, error) {
	if !decision.Valid() {
		return nil, fmt.Errorf("%w: decision must be %s or %s", ErrValidation, DecisionApprove, DecisionReject)
	}
	reason = strings.TrimSpace(reason)

	// The property id never changes, so it is safe to read it before locking.
	current, err := loadApplication(ctx, s.deps.Store, id)
	if err != nil {
		return nil, err
	}

	unlock := s.deps.Locks.Lock(propertyKey(current.PropertyID))
	defer unlock()

	now := s.deps.now()
	var (
		out     *models.Application
		emitted []events.Event
	)
	err = s.deps.Store.WithinTx(ctx, func(r repository.Repositories) error {
		p, err := loadProperty(ctx, r, current.PropertyID, true)
		if err != nil {
			return err
		}
		app, err := loadApplication(ctx, r, id)
		if err != nil {
			return err
		}
		if actor.ID != p.OwnerID && !actor.IsAdmin() {
			return fmt.Errorf("%w: only the owner or an admin may decide application %s", ErrNotAuthorized, id)
		}
		if app.Status != models.ApplicationPending {
			if decision == DecisionApprove && app.AutoRejected {
				return fmt.Errorf("%w: another application for property %s was approved", ErrPropertyNotEligible, p.ID)
			}
			return fmt.Errorf("%w: application %s is %s", ErrAlreadyResolved, id, app.Status)
		}

		app.DecidedBy = actor.ID
		app.DecidedAt = &now

		if decision == DecisionReject {
			app.Status = models.ApplicationRejected
			app.RejectionReason = reason
			if err := r.Applications().Update(ctx, app); err != nil {
				return fmt.Errorf("failed to update application %s: %w", id, err)
			}
			out = app
			emitted = append(emitted, events.New(events.ApplicationRejected, app.ID, actor.ID, now, map[string]any{
				"propertyId": p.ID.String(),
				"reason":     reason,
			}))
			return nil
		}

		if !p.Eligible() {
			return fmt.Errorf("%w: property %s is %s/%s", ErrPropertyNotEligible, p.ID, p.Status, p.Approval)
		}
		tx, err := s.ledger.create(ctx, r, app, p, now)
		if err != nil {
			return err
		}

		from := p.Status
		markUnderTransaction(p, tx, now)
		if err := r.Properties().Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update property %s: %w", p.ID, err)
		}

		app.Status = models.ApplicationApproved
		app.TransactionID = &tx.ID
		if err := r.Applications().Update(ctx, app); err != nil {
			return fmt.Errorf("failed to update application %s: %w", id, err)
		}
		out = app

		emitted = append(emitted,
			events.New(events.ApplicationApproved, app.ID, actor.ID, now, map[string]any{
				"propertyId":    p.ID.String(),
				"transactionId": tx.ID.String(),
			}),
			events.New(events.TransactionCreated, tx.ID, actor.ID, now, map[string]any{
				"propertyId":     p.ID.String(),
				"kind":           string(tx.Kind),
				"counterpartyId": tx.CounterpartyID,
			}),
			statusEvent(p, from, actor.ID, now),
		)

		others, err := r.Applications().List(ctx, models.ApplicationFilter{PropertyID: &p.ID, Status: models.ApplicationPending})
		if err != nil {
			return fmt.Errorf("failed to list pending applications: %w", err)
		}
		for i := range others {
			other := &others[i]
			if other.ID == app.ID {
				continue
			}
			other.Status = models.ApplicationRejected
			other.AutoRejected = true
			other.RejectionReason = models.AutoRejectionReason
			other.DecidedBy = actor.ID
			other.DecidedAt = &now
			if err := r.Applications().Update(ctx, other); err != nil {
				return fmt.Errorf("failed to auto-reject application %s: %w", other.ID, err)
			}
			emitted = append(emitted, events.New(events.ApplicationAutoRejected, other.ID, actor.ID, now, map[string]any{
				"propertyId": p.ID.String(),
			}))
		}
		return nil
	})
	if err != nil {
		s.log.Warn("Application decision failed", logger.Fields{
			"application_id": id.String(),
			"decision":       string(decision),
			"actor_id":       actor.ID,
			"error":          err.Error(),
		})
		return nil, err
	}

	fields := logger.Fields{
		"application_id": id.String(),
		"property_id":    out.PropertyID.String(),
		"decision":       string(decision),
		"actor_id":       actor.ID,
	}
	if out.TransactionID != nil {
		fields["transaction_id"] = out.TransactionID.String()
	}
	s.log.Info("Application decided", fields)
	s.deps.Events.Publish(emitted...)
	return out, nil
}

func (s *applicationService) Get(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return loadApplication(ctx, s.deps.Store, id)
}

func (s *applicationService) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Application, error) {
	if _, err := loadProperty(ctx, s.deps.Store, propertyID, false); err != nil {
		return nil, err
	}
	return s.list(ctx, models.ApplicationFilter{PropertyID: &propertyID})
}

func (s *applicationService) ListByApplicant(ctx context.Context, applicantID string) ([]models.Application, error) {
	if applicantID == "" {
		return nil, fmt.Errorf("%w: applicant id is required", ErrValidation)
	}
	return s.list(ctx, models.ApplicationFilter{ApplicantID: applicantID})
}

func (s *applicationService) list(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	apps, err := s.deps.Store.Applications().List(ctx, filter)
	if err != nil {
		s.log.Error("Failed to list applications", err, nil)
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

func loadApplication(ctx context.Context, r repository.Repositories, id uuid.UUID) (*models.Application, error) {
	a, err := r.Applications().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load application %s: %w", id, err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: application %s", ErrNotFound, id)
	}
	return a, nil
}
