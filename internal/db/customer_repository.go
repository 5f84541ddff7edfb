package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/AliAlkhamasi/bank-ledger-service/internal/domain"
)

// CustomerRepository implements domain.CustomerRepository using
// PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// GetByID retrieves a customer by its id.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	const query = `
		SELECT id, given_name, surname, city
		FROM customers
		WHERE id = $1
	`

	var customer domain.Customer
	err := activeQuerier(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&customer.ID,
		&customer.GivenName,
		&customer.Surname,
		&customer.City,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}

// sortColumns whitelists the columns customer search may order by.
// Anything else falls back to id.
var sortColumns = map[string]string{
	"id":         "id",
	"given_name": "given_name",
	"surname":    "surname",
	"city":       "city",
}

// Search returns one page of customers whose given name, surname, or
// city contains the query, case-insensitively.
func (r *CustomerRepository) Search(ctx context.Context, search domain.CustomerSearch) (*domain.CustomerPage, error) {
	column, ok := sortColumns[search.SortColumn]
	if !ok {
		column = "id"
	}
	direction := "ASC"
	if search.SortOrder == "desc" {
		direction = "DESC"
	}

	const countQuery = `
		SELECT COUNT(*)
		FROM customers
		WHERE given_name ILIKE '%' || $1 || '%'
		   OR surname ILIKE '%' || $1 || '%'
		   OR city ILIKE '%' || $1 || '%'
	`

	q := activeQuerier(ctx, r.pool)

	var total int64
	if err := q.QueryRow(ctx, countQuery, search.Query).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count customers: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, given_name, surname, city
		FROM customers
		WHERE given_name ILIKE '%%' || $1 || '%%'
		   OR surname ILIKE '%%' || $1 || '%%'
		   OR city ILIKE '%%' || $1 || '%%'
		ORDER BY %s %s
		LIMIT $2 OFFSET $3
	`, column, direction)

	offset := (search.Page - 1) * search.PerPage
	rows, err := q.Query(ctx, query, search.Query, search.PerPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.GivenName, &customer.Surname, &customer.City); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}

	pages := int(total) / search.PerPage
	if int(total)%search.PerPage != 0 {
		pages++
	}
	return &domain.CustomerPage{
		Customers: customers,
		Page:      search.Page,
		Pages:     pages,
		Total:     total,
	}, nil
}

// Summary returns the branch-wide aggregates shown on the start page.
func (r *CustomerRepository) Summary(ctx context.Context) (*domain.BranchSummary, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM accounts),
			(SELECT COALESCE(SUM(balance), 0)::text FROM accounts)
	`

	var summary domain.BranchSummary
	var total string
	err := activeQuerier(ctx, r.pool).QueryRow(ctx, query).Scan(
		&summary.Customers,
		&summary.Accounts,
		&total,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	if summary.TotalBalance, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("failed to parse total balance %q: %w", total, err)
	}
	return &summary, nil
}
