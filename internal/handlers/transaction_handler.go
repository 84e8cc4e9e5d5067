package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "github.com/fossbin/propease/internal/errors"
	"github.com/fossbin/propease/internal/models"
	"github.com/fossbin/propease/internal/services"
)

// TransactionHandler exposes the ledger and payment schedule.
type TransactionHandler struct {
	ledger   services.LedgerService
	payments services.PaymentService
	now      func() time.Time
}

// NewTransactionHandler creates a new TransactionHandler instance.
func NewTransactionHandler(ledger services.LedgerService, payments services.PaymentService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, payments: payments, now: time.Now}
}

// TerminateRequest is the body of POST /api/v1/transactions/:id/terminate.
type TerminateRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// PaymentRequest is the body of POST /api/v1/transactions/:id/payments.
type PaymentRequest struct {
	PeriodID int `json:"periodId" binding:"required,gte=1"`
}

// TransactionListResponse wraps a transaction listing.
type TransactionListResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
}

// ObligationsResponse is the payment schedule of one transaction.
type ObligationsResponse struct {
	AsOf        time.Time           `json:"asOf"`
	Obligations []models.Obligation `json:"obligations"`
	Count       int                 `json:"count"`
}

// Get handles GET /api/v1/transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// ListByProperty handles GET /api/v1/properties/:id/transactions.
func (h *TransactionHandler) ListByProperty(c *gin.Context) {
	propertyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	txs, err := h.ledger.ListByProperty(c.Request.Context(), propertyID)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	respondTransactions(c, txs)
}

// List handles GET /api/v1/transactions.
// counterparty= lists that party's transactions; active=true lists every
// active transaction. Otherwise the caller's own transactions are listed.
func (h *TransactionHandler) List(c *gin.Context) {
	var (
		txs []models.Transaction
		err error
	)
	if c.Query("active") == "true" {
		txs, err = h.ledger.ListActive(c.Request.Context())
	} else {
		counterparty := strings.TrimSpace(c.Query("counterparty"))
		if counterparty == "" {
			counterparty = actor(c).ID
		}
		txs, err = h.ledger.ListByCounterparty(c.Request.Context(), counterparty)
	}
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	respondTransactions(c, txs)
}

// Terminate handles POST /api/v1/transactions/:id/terminate.
func (h *TransactionHandler) Terminate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req TerminateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	t, err := h.ledger.Terminate(c.Request.Context(), actor(c), id, req.Reason)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Obligations handles GET /api/v1/transactions/:id/obligations?as_of=.
func (h *TransactionHandler) Obligations(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	asOf, ok := parseAsOf(c, h.now)
	if !ok {
		return
	}

	obs, err := h.payments.ListObligations(c.Request.Context(), id, asOf)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	if obs == nil {
		obs = []models.Obligation{}
	}
	c.JSON(http.StatusOK, ObligationsResponse{AsOf: asOf, Obligations: obs, Count: len(obs)})
}

// Pay handles POST /api/v1/transactions/:id/payments.
func (h *TransactionHandler) Pay(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	ob, err := h.payments.Pay(c.Request.Context(), actor(c), id, req.PeriodID)
	if err != nil {
		apierrors.FromService(c, err)
		return
	}
	c.JSON(http.StatusCreated, ob)
}

func respondTransactions(c *gin.Context, txs []models.Transaction) {
	if txs == nil {
		txs = []models.Transaction{}
	}
	c.JSON(http.StatusOK, TransactionListResponse{Transactions: txs, Count: len(txs)})
}
