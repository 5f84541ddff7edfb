package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money flow relative to the account
// a transaction is recorded on.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeDebit  TransactionType = "DEBIT"
)

// TransactionOperation is the business reason behind a transaction.
type TransactionOperation string

const (
	OperationDepositCash   TransactionOperation = "DEPOSIT_CASH"
	OperationATMWithdrawal TransactionOperation = "ATM_WITHDRAWAL"
	OperationTransfer      TransactionOperation = "TRANSFER"
)

// Account is a customer-owned account holding a running balance.
// The balance is never negative and only changes through the ledger
// service operations, each of which appends a matching Transaction.
type Account struct {
	ID         int64
	CustomerID int64
	Balance    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Transaction is one immutable entry of the transaction log.
// NewBalance is the account balance immediately after the entry was
// applied, so the log justifies the balance on its own: summing the
// signed amounts of an account's transactions yields its balance.
type Transaction struct {
	ID         int64
	AccountID  int64
	Type       TransactionType
	Operation  TransactionOperation
	Amount     decimal.Decimal
	NewBalance decimal.Decimal
	Date       time.Time
}

// SignedAmount returns the amount with the sign implied by the
// transaction type: positive for credits, negative for debits.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionTypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Customer owns zero or more accounts. The ledger never mutates
// customers; they are carried for the browsing and search screens.
type Customer struct {
	ID        int64
	GivenName string
	Surname   string
	City      string
}

// CustomerDetails is a customer together with their accounts and the
// sum of those accounts' balances.
type CustomerDetails struct {
	Customer     Customer
	Accounts     []Account
	TotalBalance decimal.Decimal
}

// CustomerSearch describes a customer search request. Query matches
// given name, surname, or city by substring.
type CustomerSearch struct {
	Query      string
	SortColumn string
	SortOrder  string
	Page       int
	PerPage    int
}

// CustomerPage is one page of search results.
type CustomerPage struct {
	Customers []Customer
	Page      int
	Pages     int
	Total     int64
}

// BranchSummary holds the aggregates shown on the start page.
type BranchSummary struct {
	Customers    int64
	Accounts     int64
	TotalBalance decimal.Decimal
}
