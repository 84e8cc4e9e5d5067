package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fossbin/propease/internal/billing"
	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/metrics"
	"github.com/fossbin/propease/internal/models"
	"github.com/fossbin/propease/internal/repository"
)

// PaymentService derives obligations and records in-order payments.
type PaymentService interface {
	// ListObligations returns the schedule of a transaction as of asOf.
	ListObligations(ctx context.Context, txID uuid.UUID, asOf time.Time) ([]models.Obligation, error)
	// Pay settles the next unpaid period. Periods must be paid strictly in order.
	Pay(ctx context.Context, actor models.Actor, txID uuid.UUID, periodID int) (*models.Obligation, error)
}

type paymentService struct {
	deps Dependencies
	log  *logger.Logger
}

// NewPaymentService creates a new instance of PaymentService.
func NewPaymentService(deps Dependencies) PaymentService {
	deps = deps.withDefaults()
	return &paymentService{deps: deps, log: deps.Log.Component("payments")}
}

func (s *paymentService) ListObligations(ctx context.Context, txID uuid.UUID, asOf time.Time) ([]models.Obligation, error) {
	t, err := loadTransaction(ctx, s.deps.Store, txID, false)
	if err != nil {
		return nil, err
	}
	payments, err := s.deps.Store.Transactions().Payments(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments for %s: %w", txID, err)
	}
	return billing.Obligations(t, payments, asOf.UTC(), s.deps.Billing), nil
}

func (s *paymentService) Pay(ctx context.Context, actor models.Actor, txID uuid.UUID, periodID int) (*models.Obligation, error) {
	unlock := s.deps.Locks.Lock(transactionKey(txID))
	defer unlock()

	now := s.deps.now()
	var (
		payment *models.Payment
		tx      *models.Transaction
		dueDate time.Time
	)
	err := s.deps.Store.WithinTx(ctx, func(r repository.Repositories) error {
		t, err := loadTransaction(ctx, r, txID, true)
		if err != nil {
			return err
		}
		if t.Kind == models.KindSale {
			return fmt.Errorf("%w: sale %s has no payable periods", ErrImmutableRecord, txID)
		}
		if actor.ID != t.CounterpartyID && actor.ID != t.OwnerID && !actor.IsAdmin() {
			return fmt.Errorf("%w: %s is not a party to transaction %s", ErrNotAuthorized, actor.ID, txID)
		}

		ten := t.Tenancy
		switch {
		case periodID < 1:
			return fmt.Errorf("%w: period id must be at least 1", ErrValidation)
		case periodID <= ten.LastPaidPeriod:
			return fmt.Errorf("%w: period %d of %s", ErrDuplicatePayment, periodID, txID)
		case periodID != ten.LastPaidPeriod+1:
			return fmt.Errorf("%w: period %d requested, next payable is %d", ErrOutOfOrderPayment, periodID, ten.LastPaidPeriod+1)
		case periodID > billing.SchedulePeriods(ten):
			return fmt.Errorf("%w: period %d is beyond the billable schedule of %s", ErrValidation, periodID, txID)
		}

		dueDate = billing.PeriodStart(ten.StartDate, ten.Cadence, periodID)
		payment = &models.Payment{
			ID:            uuid.New(),
			TransactionID: txID,
			PeriodID:      periodID,
			Amount:        ten.Amount,
			LateFee:       s.deps.Billing.LateFee(ten.Amount, dueDate, now),
			PaidAt:        now,
			PaidBy:        actor.ID,
		}
		if err := r.Transactions().RecordPayment(ctx, payment); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: period %d of %s", ErrDuplicatePayment, periodID, txID)
			}
			return fmt.Errorf("failed to record payment: %w", err)
		}

		ten.LastPaidPeriod = periodID
		if err := r.Transactions().Update(ctx, t); err != nil {
			return fmt.Errorf("failed to update transaction %s: %w", txID, err)
		}
		tx = t
		return nil
	})
	if err != nil {
		s.log.Warn("Payment refused", logger.Fields{
			"transaction_id": txID.String(),
			"period_id":      periodID,
			"actor_id":       actor.ID,
			"error":          err.Error(),
		})
		return nil, err
	}

	late := payment.LateFee > 0
	s.log.Info("Payment recorded", logger.Fields{
		"transaction_id": txID.String(),
		"period_id":      periodID,
		"amount":         payment.Amount.String(),
		"late_fee":       payment.LateFee.String(),
	})
	metrics.RecordPayment(string(tx.Kind), late, int64(payment.Total()))
	s.deps.Events.Publish(events.New(events.ObligationPaid, txID, actor.ID, now, map[string]any{
		"periodId": periodID,
		"amount":   payment.Amount.String(),
		"lateFee":  payment.LateFee.String(),
		"late":     late,
	}))

	paidAt := payment.PaidAt
	return &models.Obligation{
		TransactionID: txID,
		PeriodID:      periodID,
		Label:         dueDate.Format(time.DateOnly),
		DueDate:       dueDate,
		Amount:        payment.Amount,
		LateFee:       payment.LateFee,
		Total:         payment.Total(),
		Status:        models.ObligationPaid,
		PaidAt:        &paidAt,
		Recurring:     true,
	}, nil
}
