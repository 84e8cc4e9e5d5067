package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/fossbin/propease/internal/billing"
	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/models"
)

// KindSummary aggregates the transactions of one kind.
type KindSummary struct {
	Kind        models.TransactionKind `json:"kind"`
	Count       int                    `json:"count"`
	Active      int                    `json:"active"`
	Revenue     models.Money           `json:"revenue"`
	Outstanding models.Money           `json:"outstanding"`
	ZScore      float64                `json:"zScore"`
	Anomaly     bool                   `json:"anomaly"`
}

// Snapshot is the read-only platform view for administrators.
type Snapshot struct {
	AsOf               time.Time                     `json:"asOf"`
	PropertiesByStatus map[models.PropertyStatus]int `json:"propertiesByStatus"`
	PendingApprovals   int                           `json:"pendingApprovals"`
	Kinds              []KindSummary                 `json:"kinds"`
	Revenue            models.Money                  `json:"revenue"`
	Outstanding        models.Money                  `json:"outstanding"`
}

// PropertyEarnings is one row of an owner's report.
type PropertyEarnings struct {
	PropertyID   uuid.UUID    `json:"propertyId"`
	Title        string       `json:"title"`
	Earnings     models.Money `json:"earnings"`
	Applications int          `json:"applications"`
	Bookings     int          `json:"bookings"`
	ZScore       float64      `json:"zScore"`
	Anomaly      bool         `json:"anomaly"`
}

// OwnerReport is the provider view over their own properties.
type OwnerReport struct {
	AsOf       time.Time          `json:"asOf"`
	OwnerID    string             `json:"ownerId"`
	Properties []PropertyEarnings `json:"properties"`
	Earnings   models.Money       `json:"earnings"`
}

// AnalyticsService computes read-only reports. It never mutates state.
type AnalyticsService interface {
	Snapshot(ctx context.Context, actor models.Actor, asOf time.Time) (*Snapshot, error)
	OwnerReport(ctx context.Context, actor models.Actor, asOf time.Time) (*OwnerReport, error)
}

type analyticsService struct {
	deps Dependencies
	log  *logger.Logger
}

// NewAnalyticsService creates a new instance of AnalyticsService.
func NewAnalyticsService(deps Dependencies) AnalyticsService {
	deps = deps.withDefaults()
	return &analyticsService{deps: deps, log: deps.Log.Component("analytics")}
}

var reportKinds = []models.TransactionKind{models.KindLease, models.KindSubscription, models.KindSale}

func (s *analyticsService) Snapshot(ctx context.Context, actor models.Actor, asOf time.Time) (*Snapshot, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: analytics snapshot requires the admin role", ErrNotAuthorized)
	}
	asOf = asOf.UTC()

	props, err := s.deps.Store.Properties().List(ctx, models.PropertyFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	txs, err := s.deps.Store.Transactions().List(ctx, models.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	snap := &Snapshot{
		AsOf:               asOf,
		PropertiesByStatus: make(map[models.PropertyStatus]int),
	}
	for i := range props {
		snap.PropertiesByStatus[props[i].Status]++
		if props[i].Approval == models.ApprovalPending {
			snap.PendingApprovals++
		}
	}

	byKind := make(map[models.TransactionKind]*KindSummary, len(reportKinds))
	for _, k := range reportKinds {
		byKind[k] = &KindSummary{Kind: k}
	}
	for i := range txs {
		t := &txs[i]
		sum, ok := byKind[t.Kind]
		if !ok {
			continue
		}
		collected, outstanding, err := s.settle(ctx, t, asOf)
		if err != nil {
			return nil, err
		}
		sum.Count++
		if t.Active() {
			sum.Active++
		}
		sum.Revenue += collected
		sum.Outstanding += outstanding
	}

	revenue := make([]float64, len(reportKinds))
	for i, k := range reportKinds {
		revenue[i] = float64(byKind[k].Revenue)
	}
	for i, z := range zScores(revenue) {
		sum := byKind[reportKinds[i]]
		sum.ZScore = z
		sum.Anomaly = math.Abs(z) > s.deps.ZScoreThreshold
		snap.Kinds = append(snap.Kinds, *sum)
		snap.Revenue += sum.Revenue
		snap.Outstanding += sum.Outstanding
	}

	s.log.Debug("Analytics snapshot computed", logger.Fields{
		"properties":   len(props),
		"transactions": len(txs),
	})
	return snap, nil
}

func (s *analyticsService) OwnerReport(ctx context.Context, actor models.Actor, asOf time.Time) (*OwnerReport, error) {
	if actor.ID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	asOf = asOf.UTC()

	props, err := s.deps.Store.Properties().List(ctx, models.PropertyFilter{OwnerID: actor.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	report := &OwnerReport{AsOf: asOf, OwnerID: actor.ID, Properties: make([]PropertyEarnings, 0, len(props))}
	earnings := make([]float64, 0, len(props))
	for i := range props {
		p := &props[i]
		row := PropertyEarnings{PropertyID: p.ID, Title: p.Title}

		apps, err := s.deps.Store.Applications().List(ctx, models.ApplicationFilter{PropertyID: &p.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to list applications: %w", err)
		}
		row.Applications = len(apps)
		for j := range apps {
			if apps[j].Status == models.ApplicationApproved {
				row.Bookings++
			}
		}

		txs, err := s.deps.Store.Transactions().List(ctx, models.TransactionFilter{PropertyID: &p.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to list transactions: %w", err)
		}
		for j := range txs {
			collected, _, err := s.settle(ctx, &txs[j], asOf)
			if err != nil {
				return nil, err
			}
			row.Earnings += collected
		}

		report.Properties = append(report.Properties, row)
		report.Earnings += row.Earnings
		earnings = append(earnings, float64(row.Earnings))
	}

	for i, z := range zScores(earnings) {
		report.Properties[i].ZScore = z
		report.Properties[i].Anomaly = math.Abs(z) > s.deps.ZScoreThreshold
	}
	return report, nil
}

// settle returns what a transaction has collected and what it still owes as of asOf.
func (s *analyticsService) settle(ctx context.Context, t *models.Transaction, asOf time.Time) (collected, outstanding models.Money, err error) {
	if t.Kind == models.KindSale {
		if t.Sale != nil && !t.Sale.SaleDate.After(asOf) {
			collected = t.Sale.Price
		}
		return collected, 0, nil
	}

	payments, err := s.deps.Store.Transactions().Payments(ctx, t.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load payments for %s: %w", t.ID, err)
	}
	for _, p := range payments {
		if !p.PaidAt.After(asOf) {
			collected += p.Total()
		}
	}
	outstanding = billing.Outstanding(billing.Obligations(t, payments, asOf, s.deps.Billing))
	return collected, outstanding, nil
}

// zScores standardises values against their population mean and deviation.
// A zero deviation is treated as 1 so uniform inputs score 0.
func zScores(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(values)))
	if std == 0 {
		std = 1
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
