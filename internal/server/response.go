package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/AliAlkhamasi/bank-ledger-service/internal/domain"
)

// errorResponse is the JSON envelope for all failures.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type accountResponse struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	Balance    string `json:"balance"`
	UpdatedAt  string `json:"updated_at"`
}

type transactionResponse struct {
	ID         int64  `json:"id"`
	AccountID  int64  `json:"account_id"`
	Type       string `json:"type"`
	Operation  string `json:"operation"`
	Amount     string `json:"amount"`
	NewBalance string `json:"new_balance"`
	Date       string `json:"date"`
}

func newAccountResponse(account *domain.Account) accountResponse {
	return accountResponse{
		ID:         account.ID,
		CustomerID: account.CustomerID,
		Balance:    account.Balance.StringFixed(domain.AmountScale),
		UpdatedAt:  account.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func newTransactionResponses(transactions []domain.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		out = append(out, transactionResponse{
			ID:         t.ID,
			AccountID:  t.AccountID,
			Type:       string(t.Type),
			Operation:  string(t.Operation),
			Amount:     t.Amount.StringFixed(domain.AmountScale),
			NewBalance: t.NewBalance.StringFixed(domain.AmountScale),
			Date:       t.Date.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sendErrorResponse(w http.ResponseWriter, status int, code, message string) {
	sendJSON(w, status, errorResponse{Code: code, Message: message})
}

// sendDomainError maps ledger errors onto HTTP statuses. The core only
// classifies failures; the status codes live here at the boundary.
func sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	case errors.Is(err, domain.ErrSameAccount):
		sendErrorResponse(w, http.StatusBadRequest, "SAME_ACCOUNT", err.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		sendErrorResponse(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrCustomerNotFound):
		sendErrorResponse(w, http.StatusNotFound, "CUSTOMER_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		sendErrorResponse(w, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error())
	case errors.Is(err, domain.ErrPersistenceConflict):
		sendErrorResponse(w, http.StatusConflict, "CONFLICT", err.Error())
	default:
		sendErrorResponse(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
