package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AliAlkhamasi/bank-ledger-service/internal/domain"
	"github.com/AliAlkhamasi/bank-ledger-service/internal/metrics"
)

// Ledger is the part of the ledger service the HTTP layer depends on.
type Ledger interface {
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Account, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Account, error)
	Transfer(ctx context.Context, sourceID, targetID int64, amount decimal.Decimal) (*domain.Account, *domain.Account, error)
	AccountStatement(ctx context.Context, accountID int64) (*domain.Account, []domain.Transaction, error)
	GetCustomer(ctx context.Context, customerID int64) (*domain.CustomerDetails, error)
	SearchCustomers(ctx context.Context, search domain.CustomerSearch) (*domain.CustomerPage, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	Summary(ctx context.Context) (*domain.BranchSummary, error)
}

// Handler serves the cashier operations and browsing screens over
// JSON. Authorization happens upstream; no role input reaches the
// ledger.
type Handler struct {
	ledger  Ledger
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(ledger Ledger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, metrics: m, logger: logger}
}

type moneyRequest struct {
	Amount string `json:"amount"`
}

type transferRequest struct {
	TargetAccountID int64  `json:"target_account_id"`
	Amount          string `json:"amount"`
}

// Deposit handles POST /api/accounts/{accountID}/deposit.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	amount, ok := h.amount(w, r)
	if !ok {
		return
	}

	start := time.Now()
	account, err := h.ledger.Deposit(r.Context(), accountID, amount)
	h.metrics.ObserveOperation("deposit", err, time.Since(start))
	if err != nil {
		h.logError(r, "deposit failed", err)
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, newAccountResponse(account))
}

// Withdraw handles POST /api/accounts/{accountID}/withdraw.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	amount, ok := h.amount(w, r)
	if !ok {
		return
	}

	start := time.Now()
	account, err := h.ledger.Withdraw(r.Context(), accountID, amount)
	h.metrics.ObserveOperation("withdraw", err, time.Since(start))
	if err != nil {
		h.logError(r, "withdraw failed", err)
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, newAccountResponse(account))
}

// Transfer handles POST /api/accounts/{accountID}/transfer.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to parse request body")
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	start := time.Now()
	source, target, err := h.ledger.Transfer(r.Context(), sourceID, req.TargetAccountID, amount)
	h.metrics.ObserveOperation("transfer", err, time.Since(start))
	if err != nil {
		h.logError(r, "transfer failed", err)
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]accountResponse{
		"source_account": newAccountResponse(source),
		"target_account": newAccountResponse(target),
	})
}

// GetAccount handles GET /api/accounts/{accountID}: the account and its
// transaction history, newest first.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	account, transactions, err := h.ledger.AccountStatement(r.Context(), accountID)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"account":      newAccountResponse(account),
		"transactions": newTransactionResponses(transactions),
	})
}

// GetCustomer handles GET /api/customers/{customerID}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil || customerID <= 0 {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_CUSTOMER_ID", "customer id must be a positive integer")
		return
	}

	details, err := h.ledger.GetCustomer(r.Context(), customerID)
	if err != nil {
		sendDomainError(w, err)
		return
	}

	accounts := make([]accountResponse, 0, len(details.Accounts))
	for i := range details.Accounts {
		accounts = append(accounts, newAccountResponse(&details.Accounts[i]))
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"customer": map[string]any{
			"id":         details.Customer.ID,
			"given_name": details.Customer.GivenName,
			"surname":    details.Customer.Surname,
			"city":       details.Customer.City,
		},
		"accounts":      accounts,
		"total_balance": details.TotalBalance.StringFixed(domain.AmountScale),
	})
}

// SearchCustomers handles GET /api/customers with q, sort_column,
// sort_order, and page query parameters.
func (h *Handler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))

	result, err := h.ledger.SearchCustomers(r.Context(), domain.CustomerSearch{
		Query:      query.Get("q"),
		SortColumn: query.Get("sort_column"),
		SortOrder:  query.Get("sort_order"),
		Page:       page,
	})
	if err != nil {
		sendDomainError(w, err)
		return
	}

	customers := make([]map[string]any, 0, len(result.Customers))
	for _, customer := range result.Customers {
		customers = append(customers, map[string]any{
			"id":         customer.ID,
			"given_name": customer.GivenName,
			"surname":    customer.Surname,
			"city":       customer.City,
		})
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"page":      result.Page,
		"pages":     result.Pages,
		"total":     result.Total,
	})
}

// ListTransactions handles GET /api/transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.ledger.ListTransactions(r.Context())
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"transactions": newTransactionResponses(transactions),
	})
}

// Summary handles GET /api/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.Summary(r.Context())
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"customers":     summary.Customers,
		"accounts":      summary.Accounts,
		"total_balance": summary.TotalBalance.StringFixed(domain.AmountScale),
	})
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || id <= 0 {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_ACCOUNT_ID", "account id must be a positive integer")
		return 0, false
	}
	return id, true
}

// amount decodes the request body and parses its amount. Body decode
// failures and bad amounts both classify as invalid amount: the field
// is the body's only payload.
func (h *Handler) amount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req moneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendDomainError(w, domain.ErrInvalidAmount)
		return decimal.Zero, false
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		sendDomainError(w, err)
		return decimal.Zero, false
	}
	return amount, true
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	h.logger.Info(msg,
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}
