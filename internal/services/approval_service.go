package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/models"
	"github.com/fossbin/propease/internal/repository"
)

// ApprovalService is the administrative overlay on the property registry.
// Every operation requires an admin actor.
type ApprovalService interface {
	Approve(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error)
	Reject(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.Property, error)
	Disable(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error)
	Enable(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error)
	Verify(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error)
	Unverify(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error)
}

type approvalService struct {
	deps Dependencies
	log  *logger.Logger
}

// NewApprovalService creates a new instance of ApprovalService.
func NewApprovalService(deps Dependencies) ApprovalService {
	return newApprovalService(deps.withDefaults())
}

func newApprovalService(deps Dependencies) *approvalService {
	return &approvalService{deps: deps, log: deps.Log.Component("approvals")}
}

// mutation changes p in place and returns the events describing the change.
type mutation func(ctx context.Context, r repository.Repositories, p *models.Property, now time.Time) ([]events.Event, error)

// mutate runs fn on a locked property inside one unit of work and publishes
// its events after commit.
func (s *approvalService) mutate(ctx context.Context, actor models.Actor, id uuid.UUID, op string, fn mutation) (*models.Property, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: %s requires the admin role", ErrNotAuthorized, op)
	}

	unlock := s.deps.Locks.Lock(propertyKey(id))
	defer unlock()

	now := s.deps.now()
	var (
		out     *models.Property
		emitted []events.Event
	)
	err := s.deps.Store.WithinTx(ctx, func(r repository.Repositories) error {
		p, err := loadProperty(ctx, r, id, true)
		if err != nil {
			return err
		}
		emitted, err = fn(ctx, r, p, now)
		if err != nil {
			return err
		}
		p.UpdatedAt = now
		if err := r.Properties().Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update property %s: %w", id, err)
		}
		out = p
		return nil
	})
	if err != nil {
		s.log.Warn("Approval operation failed", logger.Fields{
			"op":          op,
			"property_id": id.String(),
			"actor_id":    actor.ID,
			"error":       err.Error(),
		})
		return nil, err
	}

	s.log.Info("Approval operation applied", logger.Fields{
		"op":          op,
		"property_id": id.String(),
		"actor_id":    actor.ID,
		"status":      string(out.Status),
		"approval":    string(out.Approval),
	})
	s.deps.Events.Publish(emitted...)
	return out, nil
}

func (s *approvalService) Approve(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error) {
	return s.mutate(ctx, actor, id, "approve", func(_ context.Context, _ repository.Repositories, p *models.Property, now time.Time) ([]events.Event, error) {
		if p.Approval != models.ApprovalPending {
			return nil, fmt.Errorf("%w: property %s is %s, not pending approval", ErrInvalidState, p.ID, p.Approval)
		}
		p.Approval = models.ApprovalApproved
		p.RejectionReason = ""
		return []events.Event{events.New(events.PropertyApproved, p.ID, actor.ID, now, nil)}, nil
	})
}

func (s *approvalService) Reject(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.Property, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	return s.mutate(ctx, actor, id, "reject", func(_ context.Context, _ repository.Repositories, p *models.Property, now time.Time) ([]events.Event, error) {
		if p.Approval == models.ApprovalRejected {
			return nil, fmt.Errorf("%w: property %s is already rejected", ErrInvalidState, p.ID)
		}
		p.Approval = models.ApprovalRejected
		p.RejectionReason = reason
		return []events.Event{events.New(events.PropertyRejected, p.ID, actor.ID, now, map[string]any{"reason": reason})}, nil
	})
}

func (s *approvalService) Disable(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error) {
	return s.mutate(ctx, actor, id, "disable", func(_ context.Context, _ repository.Repositories, p *models.Property, now time.Time) ([]events.Event, error) {
		switch p.Status {
		case models.StatusSold:
			return nil, fmt.Errorf("%w: sold property %s cannot be disabled", ErrInvalidState, p.ID)
		case models.StatusDisabled:
			return nil, fmt.Errorf("%w: property %s is already disabled", ErrInvalidState, p.ID)
		}
		from := p.Status
		p.Status = models.StatusDisabled
		return []events.Event{
			events.New(events.PropertyDisabled, p.ID, actor.ID, now, nil),
			statusEvent(p, from, actor.ID, now),
		}, nil
	})
}

func (s *approvalService) Enable(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error) {
	return s.mutate(ctx, actor, id, "enable", func(ctx context.Context, r repository.Repositories, p *models.Property, now time.Time) ([]events.Event, error) {
		if p.Status != models.StatusDisabled {
			return nil, fmt.Errorf("%w: property %s is %s, not disabled", ErrInvalidState, p.ID, p.Status)
		}

		active, err := activeTransaction(ctx, r, p.ID)
		if err != nil {
			return nil, err
		}
		switch {
		case active != nil:
			p.Status = occupiedStatus(active, now)
		case p.Approval == models.ApprovalApproved:
			p.Status = models.StatusAvailable
		default:
			return nil, fmt.Errorf("%w: property %s is %s and cannot be re-listed", ErrInvalidState, p.ID, p.Approval)
		}
		return []events.Event{
			events.New(events.PropertyEnabled, p.ID, actor.ID, now, nil),
			statusEvent(p, models.StatusDisabled, actor.ID, now),
		}, nil
	})
}

func (s *approvalService) Verify(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error) {
	return s.setVerified(ctx, actor, id, true)
}

func (s *approvalService) Unverify(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error) {
	return s.setVerified(ctx, actor, id, false)
}

func (s *approvalService) setVerified(ctx context.Context, actor models.Actor, id uuid.UUID, verified bool) (*models.Property, error) {
	op, typ := "verify", events.PropertyVerified
	if !verified {
		op, typ = "unverify", events.PropertyUnverified
	}
	return s.mutate(ctx, actor, id, op, func(_ context.Context, _ repository.Repositories, p *models.Property, now time.Time) ([]events.Event, error) {
		if p.Verified == verified {
			return nil, nil
		}
		p.Verified = verified
		return []events.Event{events.New(typ, p.ID, actor.ID, now, nil)}, nil
	})
}

// activeTransaction returns the transaction currently holding a property, or nil.
func activeTransaction(ctx context.Context, r repository.Repositories, propertyID uuid.UUID) (*models.Transaction, error) {
	txs, err := r.Transactions().List(ctx, models.TransactionFilter{PropertyID: &propertyID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for property %s: %w", propertyID, err)
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}
