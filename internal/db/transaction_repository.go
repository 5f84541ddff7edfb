package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/AliAlkhamasi/bank-ledger-service/internal/domain"
)

// TransactionRepository implements domain.TransactionRepository using
// PostgreSQL. The transactions table is append-only: no update or
// delete statement exists anywhere in this package.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Append writes a transaction record and fills in its BIGSERIAL id.
// Ids are monotonically increasing; because the account row lock is
// held while appending, id order matches commit order per account.
func (r *TransactionRepository) Append(ctx context.Context, t *domain.Transaction) error {
	const query = `
		INSERT INTO transactions (account_id, type, operation, amount, new_balance, date)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6)
		RETURNING id
	`

	err := activeQuerier(ctx, r.pool).QueryRow(ctx, query,
		t.AccountID,
		string(t.Type),
		string(t.Operation),
		t.Amount.StringFixed(domain.AmountScale),
		t.NewBalance.StringFixed(domain.AmountScale),
		t.Date,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// ListByAccount returns an account's transactions, newest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	const query = `
		SELECT id, account_id, type, operation, amount::text, new_balance::text, date
		FROM transactions
		WHERE account_id = $1
		ORDER BY date DESC, id DESC
	`

	rows, err := activeQuerier(ctx, r.pool).Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// List returns all transactions, newest first.
func (r *TransactionRepository) List(ctx context.Context) ([]domain.Transaction, error) {
	const query = `
		SELECT id, account_id, type, operation, amount::text, new_balance::text, date
		FROM transactions
		ORDER BY date DESC, id DESC
	`

	rows, err := activeQuerier(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var txType, operation, amount, newBalance string

		err := rows.Scan(&t.ID, &t.AccountID, &txType, &operation, &amount, &newBalance, &t.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Type = domain.TransactionType(txType)
		t.Operation = domain.TransactionOperation(operation)
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
		}
		if t.NewBalance, err = decimal.NewFromString(newBalance); err != nil {
			return nil, fmt.Errorf("failed to parse stored balance %q: %w", newBalance, err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}
