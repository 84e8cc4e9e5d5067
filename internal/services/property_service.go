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

// Nearby search bounds.
const (
	MinRadiusMeters = 1
	MaxRadiusMeters = 50000
)

// PropertyDraft is the owner-supplied content of a listing.
type PropertyDraft struct {
	Title       string
	Description string
	Type        models.PropertyType
	Kind        models.TransactionKind
	Price       models.Money
	Negotiable  bool
	Capacity    int
	Location    models.Location
	Photos      []string
}

func (d PropertyDraft) validate() error {
	var problems []string
	if strings.TrimSpace(d.Title) == "" {
		problems = append(problems, "title is required")
	}
	if !d.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown property type %q", d.Type))
	}
	if !d.Kind.Valid() {
		problems = append(problems, fmt.Sprintf("unknown transaction kind %q", d.Kind))
	} else if d.Type.Valid() && !d.Type.Supports(d.Kind) {
		problems = append(problems, fmt.Sprintf("%s property cannot be offered as %s", d.Type, d.Kind))
	}
	if d.Price <= 0 {
		problems = append(problems, "price must be greater than zero")
	}
	if d.Capacity <= 0 {
		problems = append(problems, "capacity must be greater than zero")
	}
	if strings.TrimSpace(d.Location.AddressLine) == "" {
		problems = append(problems, "location address is required")
	}
	if !d.Location.Point.Valid() {
		problems = append(problems, fmt.Sprintf("coordinates out of range (lat=%f, lng=%f)",
			d.Location.Point.Lat(), d.Location.Point.Lng()))
	}
	for _, ref := range d.Photos {
		if strings.TrimSpace(ref) == "" {
			problems = append(problems, "photo references must be non-empty")
			break
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (d PropertyDraft) apply(p *models.Property) {
	p.Title = strings.TrimSpace(d.Title)
	p.Description = d.Description
	p.Type = d.Type
	p.Kind = d.Kind
	p.Price = d.Price
	p.Negotiable = d.Negotiable
	p.Capacity = d.Capacity
	p.Location = d.Location
	p.Photos = append([]string(nil), d.Photos...)
}

// PropertyService is the owner-facing side of the property registry.
type PropertyService interface {
	// Submit creates a listing in PendingApproval with status Available.
	Submit(ctx context.Context, actor models.Actor, draft PropertyDraft) (*models.Property, error)
	// Resubmit replaces the content of a Rejected listing and returns it to PendingApproval.
	Resubmit(ctx context.Context, actor models.Actor, id uuid.UUID, draft PropertyDraft) (*models.Property, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Property, error)
	List(ctx context.Context, filter models.PropertyFilter) ([]models.Property, error)
	// ChangeStatus is the external status API. Only administrative
	// disable/enable are reachable; every other target is ErrForbiddenTransition.
	ChangeStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status models.PropertyStatus) (*models.Property, error)
}

type propertyService struct {
	deps  Dependencies
	log   *logger.Logger
	admin *approvalService
}

// NewPropertyService creates a new instance of PropertyService.
func NewPropertyService(deps Dependencies) PropertyService {
	deps = deps.withDefaults()
	return &propertyService{
		deps:  deps,
		log:   deps.Log.Component("properties"),
		admin: newApprovalService(deps),
	}
}

func (s *propertyService) Submit(ctx context.Context, actor models.Actor, draft PropertyDraft) (*models.Property, error) {
	if actor.ID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if err := draft.validate(); err != nil {
		s.log.Warn("Rejected property draft", logger.Fields{"owner_id": actor.ID, "error": err.Error()})
		return nil, err
	}

	now := s.deps.now()
	p := &models.Property{
		ID:        uuid.New(),
		OwnerID:   actor.ID,
		Status:    models.StatusAvailable,
		Approval:  models.ApprovalPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	draft.apply(p)

	if err := s.deps.Store.Properties().Create(ctx, p); err != nil {
		s.log.Error("Failed to create property", err, logger.Fields{"owner_id": actor.ID})
		return nil, fmt.Errorf("failed to create property: %w", err)
	}

	s.log.Info("Property submitted", logger.Fields{"property_id": p.ID.String(), "owner_id": actor.ID})
	s.deps.Events.Publish(events.New(events.PropertySubmitted, p.ID, actor.ID, now, map[string]any{
		"type": string(p.Type),
		"kind": string(p.Kind),
	}))
	return p, nil
}

func (s *propertyService) Resubmit(ctx context.Context, actor models.Actor, id uuid.UUID, draft PropertyDraft) (*models.Property, error) {
	if err := draft.validate(); err != nil {
		return nil, err
	}

	unlock := s.deps.Locks.Lock(propertyKey(id))
	defer unlock()

	now := s.deps.now()
	var out *models.Property
	err := s.deps.Store.WithinTx(ctx, func(r repository.Repositories) error {
		p, err := loadProperty(ctx, r, id, true)
		if err != nil {
			return err
		}
		if p.OwnerID != actor.ID {
			return fmt.Errorf("%w: only the owner may resubmit property %s", ErrNotAuthorized, id)
		}
		if p.Approval != models.ApprovalRejected {
			return fmt.Errorf("%w: property %s is %s, only rejected listings can be resubmitted", ErrInvalidState, id, p.Approval)
		}
		if draft.Kind != p.Kind {
			// Pending applications carry terms for the old kind.
			if has, err := hasPendingApplications(ctx, r, id); err != nil {
				return err
			} else if has {
				return fmt.Errorf("%w: cannot change transaction kind while applications are pending", ErrInvalidState)
			}
		}

		draft.apply(p)
		p.Approval = models.ApprovalPending
		p.RejectionReason = ""
		p.UpdatedAt = now
		if err := r.Properties().Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Property resubmitted", logger.Fields{"property_id": id.String(), "owner_id": actor.ID})
	s.deps.Events.Publish(events.New(events.PropertyResubmitted, id, actor.ID, now, nil))
	return out, nil
}

func (s *propertyService) Get(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return loadProperty(ctx, s.deps.Store, id, false)
}

func (s *propertyService) List(ctx context.Context, filter models.PropertyFilter) ([]models.Property, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	if filter.Approval != "" && !filter.Approval.Valid() {
		return nil, fmt.Errorf("%w: unknown approval status %q", ErrValidation, filter.Approval)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown property type %q", ErrValidation, filter.Type)
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, filter.Kind)
	}
	if n := filter.Near; n != nil {
		if !n.Center.Valid() {
			return nil, fmt.Errorf("%w: search center out of range", ErrValidation)
		}
		if n.Meters < MinRadiusMeters || n.Meters > MaxRadiusMeters {
			return nil, fmt.Errorf("%w: radius must be between %d and %d meters", ErrValidation, MinRadiusMeters, MaxRadiusMeters)
		}
	}

	props, err := s.deps.Store.Properties().List(ctx, filter)
	if err != nil {
		s.log.Error("Failed to list properties", err, nil)
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return props, nil
}

func (s *propertyService) ChangeStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status models.PropertyStatus) (*models.Property, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	switch status {
	case models.StatusDisabled:
		return s.admin.Disable(ctx, actor, id)
	case models.StatusAvailable:
		p, err := loadProperty(ctx, s.deps.Store, id, false)
		if err != nil {
			return nil, err
		}
		if p.Status == models.StatusDisabled {
			return s.admin.Enable(ctx, actor, id)
		}
	}
	return nil, fmt.Errorf("%w: %s is set only by the transaction ledger", ErrForbiddenTransition, status)
}

// loadProperty fetches a property, optionally row-locked, mapping a missing row to ErrNotFound.
func loadProperty(ctx context.Context, r repository.Repositories, id uuid.UUID, forUpdate bool) (*models.Property, error) {
	get := r.Properties().Get
	if forUpdate {
		get = r.Properties().GetForUpdate
	}
	p, err := get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load property %s: %w", id, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: property %s", ErrNotFound, id)
	}
	return p, nil
}

func hasPendingApplications(ctx context.Context, r repository.Repositories, propertyID uuid.UUID) (bool, error) {
	apps, err := r.Applications().List(ctx, models.ApplicationFilter{PropertyID: &propertyID, Status: models.ApplicationPending})
	if err != nil {
		return false, fmt.Errorf("failed to list applications for property %s: %w", propertyID, err)
	}
	return len(apps) > 0, nil
}

// occupiedStatus is the status a property takes while t is its active transaction.
func occupiedStatus(t *models.Transaction, now time.Time) models.PropertyStatus {
	switch t.Kind {
	case models.KindSale:
		return models.StatusSold
	default:
		if models.DateOf(now).Before(models.DateOf(t.Tenancy.StartDate)) {
			return models.StatusUnderTransaction
		}
		return models.StatusOccupied
	}
}

// markUnderTransaction flips p to the status implied by its new transaction.
// Only the ledger calls it.
func markUnderTransaction(p *models.Property, t *models.Transaction, now time.Time) {
	p.Status = occupiedStatus(t, now)
	p.UpdatedAt = now
}

// release returns p to the market after its transaction ends. A property
// that was disabled or is no longer approved is not re-listed.
func release(p *models.Property, now time.Time) {
	if p.Status != models.StatusDisabled && p.Approval == models.ApprovalApproved {
		p.Status = models.StatusAvailable
	} else {
		p.Status = models.StatusDisabled
	}
	p.UpdatedAt = now
}

func statusEvent(p *models.Property, from models.PropertyStatus, actorID string, now time.Time) events.Event {
	return events.New(events.PropertyStatus, p.ID, actorID, now, map[string]any{
		"from": string(from),
		"to":   string(p.Status),
	})
}
