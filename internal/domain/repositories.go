package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AccountRepository is the account store the ledger runs against.
type AccountRepository interface {
	// GetByID retrieves an account. Returns ErrAccountNotFound if the id
	// doesn't resolve.
	GetByID(ctx context.Context, id int64) (*Account, error)

	// Lock retrieves an account and holds a row-level lock on it for the
	// duration of the surrounding transaction. Must be called within a
	// transaction context.
	Lock(ctx context.Context, id int64) (*Account, error)

	// UpdateBalance persists a new balance for the account. Must be
	// called within a transaction context.
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal, updatedAt time.Time) error

	// ListByCustomer returns the accounts owned by a customer.
	ListByCustomer(ctx context.Context, customerID int64) ([]Account, error)
}

// TransactionRepository is the append-only transaction log. Records are
// never updated or deleted once written.
type TransactionRepository interface {
	// Append writes a transaction record and fills in its store-assigned
	// id. Must be called within a transaction context.
	Append(ctx context.Context, transaction *Transaction) error

	// ListByAccount returns an account's transactions, newest first.
	ListByAccount(ctx context.Context, accountID int64) ([]Transaction, error)

	// List returns all transactions, newest first.
	List(ctx context.Context) ([]Transaction, error)
}

// CustomerRepository serves the browsing screens.
type CustomerRepository interface {
	// GetByID retrieves a customer. Returns ErrCustomerNotFound if the
	// id doesn't resolve.
	GetByID(ctx context.Context, id int64) (*Customer, error)

	// Search returns one page of customers matching the query.
	Search(ctx context.Context, search CustomerSearch) (*CustomerPage, error)

	// Summary returns the branch-wide aggregates.
	Summary(ctx context.Context) (*BranchSummary, error)
}

// TransactionManager runs a function within one store transaction.
// If the function returns an error the transaction is rolled back,
// otherwise it is committed. The active transaction travels in the
// context handed to the function.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher publishes ledger events to external systems after they
// commit. Publishing is best-effort; a failure never undoes the
// committed operation.
type EventPublisher interface {
	PublishOperationCompleted(ctx context.Context, event OperationEvent) error
}
