package models

import (
	"time"

	"github.com/google/uuid"
)

// ObligationStatus is the payment state of one billing period.
type ObligationStatus string

const (
	ObligationPaid    ObligationStatus = "Paid"
	ObligationPending ObligationStatus = "PendingPayment"
)

// Obligation is one billing period's amount due, derived from a transaction.
type Obligation struct {
	DueDate       time.Time        `json:"dueDate"`
	PaidAt        *time.Time       `json:"paidAt,omitempty"`
	Label         string           `json:"period"`
	Status        ObligationStatus `json:"status"`
	Amount        Money            `json:"amount"`
	LateFee       Money            `json:"lateFee"`
	Total         Money            `json:"total"`
	PeriodID      int              `json:"periodId"`
	TransactionID uuid.UUID        `json:"transactionId"`
	Recurring     bool             `json:"recurring"`
	Overdue       bool             `json:"overdue"`
}

// Payment records the settlement of one period.
type Payment struct {
	PaidAt        time.Time `json:"paidAt"`
	PaidBy        string    `json:"paidBy"`
	Amount        Money     `json:"amount"`
	LateFee       Money     `json:"lateFee"`
	PeriodID      int       `json:"periodId"`
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transactionId"`
}

// Total is the amount charged including the late fee.
func (p Payment) Total() Money {
	return p.Amount + p.LateFee
}
