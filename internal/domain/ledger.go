package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OperationEvent describes a committed ledger operation.
type OperationEvent struct {
	OperationID     uuid.UUID
	Operation       TransactionOperation
	AccountID       int64
	TargetAccountID int64 // set for transfers only
	Amount          decimal.Decimal
	CompletedAt     time.Time
}

// LedgerService executes the balance-affecting operations. It is the
// only mutation path for account balances; every successful operation
// appends matching transaction records in the same store transaction.
type LedgerService struct {
	accounts     AccountRepository
	transactions TransactionRepository
	customers    CustomerRepository
	txManager    TransactionManager
	events       EventPublisher
	logger       *zap.Logger
}

// NewLedgerService creates a LedgerService. Pass nil for events to
// disable event publishing; pass nil for logger to log nowhere.
func NewLedgerService(
	accounts AccountRepository,
	transactions TransactionRepository,
	customers CustomerRepository,
	txManager TransactionManager,
	events EventPublisher,
	logger *zap.Logger,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		accounts:     accounts,
		transactions: transactions,
		customers:    customers,
		txManager:    txManager,
		events:       events,
		logger:       logger,
	}
}

// Deposit credits amount to the account and appends a
// CREDIT/DEPOSIT_CASH record carrying the new running balance.
func (s *LedgerService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var account *Account
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		account, err = s.accounts.Lock(txCtx, accountID)
		if err != nil {
			return err
		}
		return s.apply(txCtx, account, TransactionTypeCredit, OperationDepositCash, amount)
	})
	if err != nil {
		return nil, err
	}

	s.publish(OperationEvent{
		OperationID: uuid.New(),
		Operation:   OperationDepositCash,
		AccountID:   accountID,
		Amount:      amount,
		CompletedAt: account.UpdatedAt,
	})
	return account, nil
}

// Withdraw debits amount from the account and appends a
// DEBIT/ATM_WITHDRAWAL record. Returns ErrInsufficientFunds, with no
// side effects, when the balance doesn't cover the amount.
func (s *LedgerService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (*Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var account *Account
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		account, err = s.accounts.Lock(txCtx, accountID)
		if err != nil {
			return err
		}
		if account.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		return s.apply(txCtx, account, TransactionTypeDebit, OperationATMWithdrawal, amount)
	})
	if err != nil {
		return nil, err
	}

	s.publish(OperationEvent{
		OperationID: uuid.New(),
		Operation:   OperationATMWithdrawal,
		AccountID:   accountID,
		Amount:      amount,
		CompletedAt: account.UpdatedAt,
	})
	return account, nil
}

// Transfer moves amount from the source account to the target account.
// Both legs commit in one store transaction or neither does. Each leg
// gets its own record whose running balance is computed from that
// account's balance before the transfer; the legs are never netted
// against each other. Self-transfers are rejected with ErrSameAccount.
func (s *LedgerService) Transfer(ctx context.Context, sourceID, targetID int64, amount decimal.Decimal) (*Account, *Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}
	if sourceID == targetID {
		return nil, nil, ErrSameAccount
	}

	var source, target *Account
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		// Lock rows in ascending id order so concurrent transfers over
		// the same pair of accounts cannot deadlock.
		if sourceID < targetID {
			if source, err = s.lockSide(txCtx, sourceID, "source"); err != nil {
				return err
			}
			if target, err = s.lockSide(txCtx, targetID, "target"); err != nil {
				return err
			}
		} else {
			if target, err = s.lockSide(txCtx, targetID, "target"); err != nil {
				return err
			}
			if source, err = s.lockSide(txCtx, sourceID, "source"); err != nil {
				return err
			}
		}
		if source.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		if err := s.apply(txCtx, source, TransactionTypeDebit, OperationTransfer, amount); err != nil {
			return err
		}
		return s.apply(txCtx, target, TransactionTypeCredit, OperationTransfer, amount)
	})
	if err != nil {
		return nil, nil, err
	}

	s.publish(OperationEvent{
		OperationID:     uuid.New(),
		Operation:       OperationTransfer,
		AccountID:       sourceID,
		TargetAccountID: targetID,
		Amount:          amount,
		CompletedAt:     source.UpdatedAt,
	})
	return source, target, nil
}

// apply moves the account balance in the direction of txType, persists
// it, and appends the matching transaction record. The caller holds the
// account's row lock.
func (s *LedgerService) apply(ctx context.Context, account *Account, txType TransactionType, operation TransactionOperation, amount decimal.Decimal) error {
	now := time.Now()
	var balance decimal.Decimal
	if txType == TransactionTypeDebit {
		balance = account.Balance.Sub(amount)
	} else {
		balance = account.Balance.Add(amount)
	}
	if err := s.accounts.UpdateBalance(ctx, account.ID, balance, now); err != nil {
		return err
	}
	record := &Transaction{
		AccountID:  account.ID,
		Type:       txType,
		Operation:  operation,
		Amount:     amount,
		NewBalance: balance,
		Date:       now,
	}
	if err := s.transactions.Append(ctx, record); err != nil {
		return err
	}
	account.Balance = balance
	account.UpdatedAt = now
	return nil
}

func (s *LedgerService) lockSide(ctx context.Context, id int64, side string) (*Account, error) {
	account, err := s.accounts.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s account %d: %w", side, id, err)
	}
	return account, nil
}

// publish emits the event after the transaction committed. Best-effort:
// a broker failure must not make the committed operation appear failed.
func (s *LedgerService) publish(event OperationEvent) {
	if s.events == nil {
		return
	}
	go func() {
		if err := s.events.PublishOperationCompleted(context.Background(), event); err != nil {
			s.logger.Warn("failed to publish operation event",
				zap.String("operation", string(event.Operation)),
				zap.String("operation_id", event.OperationID.String()),
				zap.Error(err),
			)
		}
	}()
}

// GetAccount retrieves an account's current state.
func (s *LedgerService) GetAccount(ctx context.Context, accountID int64) (*Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

// AccountStatement retrieves an account together with its transaction
// history, newest first.
func (s *LedgerService) AccountStatement(ctx context.Context, accountID int64) (*Account, []Transaction, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	transactions, err := s.transactions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	return account, transactions, nil
}

// GetCustomer retrieves a customer with their accounts and total
// balance.
func (s *LedgerService) GetCustomer(ctx context.Context, customerID int64) (*CustomerDetails, error) {
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, account := range accounts {
		total = total.Add(account.Balance)
	}
	return &CustomerDetails{
		Customer:     *customer,
		Accounts:     accounts,
		TotalBalance: total,
	}, nil
}

// SearchCustomers returns one page of customers matching the search.
// Page numbers below one and unknown sort inputs fall back to defaults.
func (s *LedgerService) SearchCustomers(ctx context.Context, search CustomerSearch) (*CustomerPage, error) {
	if search.Page < 1 {
		search.Page = 1
	}
	if search.PerPage < 1 {
		search.PerPage = DefaultCustomersPerPage
	}
	if search.SortOrder != "desc" {
		search.SortOrder = "asc"
	}
	return s.customers.Search(ctx, search)
}

// DefaultCustomersPerPage is the customer search page size.
const DefaultCustomersPerPage = 50

// ListTransactions returns the full transaction log, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return s.transactions.List(ctx)
}

// Summary returns the branch-wide aggregates for the start page.
func (s *LedgerService) Summary(ctx context.Context) (*BranchSummary, error) {
	return s.customers.Summary(ctx)
}
