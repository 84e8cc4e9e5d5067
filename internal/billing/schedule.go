// Package billing derives payment obligations from transactions.
// Everything here is a pure function of its inputs; no clocks, no storage.
package billing

import (
	"time"

	"github.com/fossbin/propease/internal/models"
)

// Policy configures late fee assessment.
type Policy struct {
	// GraceDays is how many days after a period's due date it may be paid without a fee.
	GraceDays int
	// LateFeeBasisPoints is the fee charged on a late period, in 1/100 of a percent.
	LateFeeBasisPoints int64
}

// DefaultPolicy is five days of grace and a 5% late fee.
func DefaultPolicy() Policy {
	return Policy{GraceDays: 5, LateFeeBasisPoints: 500}
}

// Late reports whether a period due on due is late when settled at at.
func (p Policy) Late(due, at time.Time) bool {
	return models.DateOf(at).After(models.DateOf(due).AddDate(0, 0, p.GraceDays))
}

// LateFee returns the fee owed on amount for a period due on due, settled at at.
func (p Policy) LateFee(amount models.Money, due, at time.Time) models.Money {
	if !p.Late(due, at) {
		return 0
	}
	return amount.BasisPoints(p.LateFeeBasisPoints)
}

// PeriodStart returns the due date of the 1-based period k of a tenancy.
// Month arithmetic clamps to the last day of the month, so a tenancy starting
// on Jan 31 bills on Feb 29/28, Mar 31, Apr 30 and so on.
func PeriodStart(start time.Time, cadence models.Cadence, k int) time.Time {
	return addMonthsClamped(models.DateOf(start), cadence.Months()*(k-1))
}

func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

// billableEnd is the last date on which a new period may start.
func billableEnd(t *models.Tenancy) time.Time {
	end := models.DateOf(t.EndDate)
	if t.Termination != nil {
		if term := models.DateOf(t.Termination.At); term.Before(end) {
			end = term
		}
	}
	return end
}

// ElapsedPeriods counts the periods of t whose due date is on or before asOf,
// capped at the end date and any termination.
func ElapsedPeriods(t *models.Tenancy, asOf time.Time) int {
	limit := billableEnd(t)
	if d := models.DateOf(asOf); d.Before(limit) {
		limit = d
	}
	return countUntil(t, limit)
}

// SchedulePeriods counts every billable period of t regardless of the current date.
func SchedulePeriods(t *models.Tenancy) int {
	return countUntil(t, billableEnd(t))
}

func countUntil(t *models.Tenancy, limit time.Time) int {
	if t.Cadence.Months() == 0 {
		return 0
	}
	n := 0
	for !PeriodStart(t.StartDate, t.Cadence, n+1).After(limit) {
		n++
	}
	return n
}

// Obligations lists the obligations of tx as of asOf, oldest first.
// payments supplies the late fee and settlement time of paid periods; a paid
// period without a matching record is reported with no fee.
func Obligations(tx *models.Transaction, payments []models.Payment, asOf time.Time, policy Policy) []models.Obligation {
	switch tx.Kind {
	case models.KindSale:
		return saleObligations(tx)
	case models.KindLease, models.KindSubscription:
		return tenancyObligations(tx, payments, asOf, policy)
	}
	return nil
}

func saleObligations(tx *models.Transaction) []models.Obligation {
	s := tx.Sale
	if s == nil {
		return nil
	}
	paidAt := s.SaleDate
	return []models.Obligation{{
		TransactionID: tx.ID,
		PeriodID:      1,
		Label:         models.DateOf(s.SaleDate).Format(time.DateOnly),
		DueDate:       models.DateOf(s.SaleDate),
		PaidAt:        &paidAt,
		Amount:        s.Price,
		Total:         s.Price,
		Status:        models.ObligationPaid,
	}}
}

func tenancyObligations(tx *models.Transaction, payments []models.Payment, asOf time.Time, policy Policy) []models.Obligation {
	t := tx.Tenancy
	if t == nil {
		return nil
	}

	byPeriod := make(map[int]models.Payment, len(payments))
	for _, p := range payments {
		byPeriod[p.PeriodID] = p
	}

	n := ElapsedPeriods(t, asOf)
	out := make([]models.Obligation, 0, n)
	for k := 1; k <= n; k++ {
		due := PeriodStart(t.StartDate, t.Cadence, k)
		ob := models.Obligation{
			TransactionID: tx.ID,
			PeriodID:      k,
			Label:         due.Format(time.DateOnly),
			DueDate:       due,
			Amount:        t.Amount,
			Recurring:     true,
		}
		if k <= t.LastPaidPeriod {
			ob.Status = models.ObligationPaid
			if p, ok := byPeriod[k]; ok {
				paidAt := p.PaidAt
				ob.PaidAt = &paidAt
				ob.LateFee = p.LateFee
			}
		} else {
			ob.Status = models.ObligationPending
			if policy.Late(due, asOf) {
				ob.Overdue = true
				ob.LateFee = policy.LateFee(t.Amount, due, asOf)
			}
		}
		ob.Total = ob.Amount + ob.LateFee
		out = append(out, ob)
	}
	return out
}

// Outstanding sums the totals of pending obligations.
func Outstanding(obligations []models.Obligation) models.Money {
	var sum models.Money
	for _, ob := range obligations {
		if ob.Status == models.ObligationPending {
			sum += ob.Total
		}
	}
	return sum
}

// Collected sums the totals of paid obligations.
func Collected(obligations []models.Obligation) models.Money {
	var sum models.Money
	for _, ob := range obligations {
		if ob.Status == models.ObligationPaid {
			sum += ob.Total
		}
	}
	return sum
}
