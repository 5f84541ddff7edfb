package domain

import "errors"

var (
	// ErrInvalidAmount is returned when an amount is missing, malformed,
	// zero, negative, or carries more than two decimal places.
	ErrInvalidAmount = errors.New("invalid amount: must be a positive decimal with at most two decimal places")

	// ErrAccountNotFound is returned when an account id doesn't resolve.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCustomerNotFound is returned when a customer id doesn't resolve.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInsufficientFunds is returned when a withdrawal or transfer
	// would take the account balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSameAccount is returned when a transfer names the same account
	// on both sides.
	ErrSameAccount = errors.New("source and target must be different accounts")

	// ErrPersistenceConflict is returned when the store aborts an
	// operation because of a concurrent modification. Nothing was
	// committed; the caller may safely retry.
	ErrPersistenceConflict = errors.New("persistence conflict, operation can be retried")
)
