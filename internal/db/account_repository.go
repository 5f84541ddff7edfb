package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/AliAlkhamasi/bank-ledger-service/internal/domain"
)

// AccountRepository implements domain.AccountRepository using
// PostgreSQL. Balances are NUMERIC columns scanned through text into
// decimals; no floating point on the money path.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const selectAccount = `
	SELECT id, customer_id, balance::text, created_at, updated_at
	FROM accounts
	WHERE id = $1
`

// GetByID retrieves an account by its id.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := activeQuerier(ctx, r.pool).QueryRow(ctx, selectAccount, id)
	return scanAccount(row)
}

// Lock retrieves an account and takes a row-level lock on it with
// SELECT ... FOR UPDATE. Must be called within a transaction context;
// the lock is held until that transaction ends.
func (r *AccountRepository) Lock(ctx context.Context, id int64) (*domain.Account, error) {
	row := activeQuerier(ctx, r.pool).QueryRow(ctx, selectAccount+`	FOR UPDATE`, id)
	return scanAccount(row)
}

// UpdateBalance persists a new balance for the account.
func (r *AccountRepository) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal, updatedAt time.Time) error {
	const query = `
		UPDATE accounts
		SET balance = $2::numeric,
		    updated_at = $3
		WHERE id = $1
	`

	tag, err := activeQuerier(ctx, r.pool).Exec(ctx, query, id, balance.StringFixed(domain.AmountScale), updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// ListByCustomer returns the accounts owned by a customer, oldest
// first.
func (r *AccountRepository) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Account, error) {
	const query = `
		SELECT id, customer_id, balance::text, created_at, updated_at
		FROM accounts
		WHERE customer_id = $1
		ORDER BY id
	`

	rows, err := activeQuerier(ctx, r.pool).Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	var balance string

	err := row.Scan(
		&account.ID,
		&account.CustomerID,
		&balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored balance %q: %w", balance, err)
	}
	return &account, nil
}
