// Package services implements the property, application, ledger and payment
// lifecycle. Every mutating operation takes an explicit models.Actor.
//
// Lifecycle mutations touching a property run under that property's key in
// the KeyedMutex and inside one Store.WithinTx. Payment mutations run under
// the transaction's key. When both are needed the property key is taken first.
package services

import (
	"time"

	"github.com/fossbin/propease/internal/billing"
	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/repository"
)

// Dependencies are shared by every service.
type Dependencies struct {
	Store   repository.Store
	Events  events.Publisher
	Log     *logger.Logger
	Locks   *KeyedMutex
	Now     func() time.Time
	Billing billing.Policy
	// ZScoreThreshold flags analytics anomalies when |z| exceeds it.
	ZScoreThreshold float64
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Events == nil {
		d.Events = events.Discard
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Locks == nil {
		d.Locks = NewKeyedMutex()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Billing == (billing.Policy{}) {
		d.Billing = billing.DefaultPolicy()
	}
	if d.ZScoreThreshold <= 0 {
		d.ZScoreThreshold = 1.5
	}
	return d
}

func (d Dependencies) now() time.Time {
	return d.Now().UTC()
}

// Services bundles every service over one set of dependencies.
type Services struct {
	Properties   PropertyService
	Approvals    ApprovalService
	Applications ApplicationService
	Ledger       LedgerService
	Payments     PaymentService
	Analytics    AnalyticsService
}

// New wires every service. Locks are shared so property and transaction
// scopes are consistent across services.
func New(deps Dependencies) *Services {
	deps = deps.withDefaults()
	return &Services{
		Properties:   NewPropertyService(deps),
		Approvals:    NewApprovalService(deps),
		Applications: NewApplicationService(deps),
		Ledger:       NewLedgerService(deps),
		Payments:     NewPaymentService(deps),
		Analytics:    NewAnalyticsService(deps),
	}
}
