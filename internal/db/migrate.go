package db

import (
	"context"
	"embed"
	"fmt"
	"sort"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies the embedded schema. Statements are idempotent
// (IF NOT EXISTS), so running at every startup is safe.
func Migrate(ctx context.Context, pool *Pool) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}
	return nil
}

// Seed loads a small demo branch (customers and accounts) when the
// customers table is empty. Used for local development only.
func Seed(ctx context.Context, pool *Pool) error {
	var customers int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&customers); err != nil {
		return fmt.Errorf("failed to check seed state: %w", err)
	}
	if customers > 0 {
		return nil
	}

	const seed = `
		INSERT INTO customers (given_name, surname, city) VALUES
			('Astrid', 'Lindqvist', 'Stockholm'),
			('Erik', 'Johansson', 'Goteborg'),
			('Maja', 'Nilsson', 'Malmo');
		INSERT INTO accounts (customer_id, balance) VALUES
			(1, 1000.00),
			(1, 250.00),
			(2, 300.00),
			(3, 0.00);
	`
	if _, err := pool.Exec(ctx, seed); err != nil {
		return fmt.Errorf("failed to seed demo data: %w", err)
	}
	return nil
}
