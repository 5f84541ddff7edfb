package domain_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AliAlkhamasi/bank-ledger-service/internal/domain"
)

// memoryStore is an in-memory implementation of the repository and
// transaction-manager interfaces. WithTransaction serializes operations
// under one mutex and restores a snapshot when the function fails, so
// the rollback contract can be asserted without a database.
type memoryStore struct {
	mu        sync.Mutex
	nextTxID  int64
	accounts  map[int64]*domain.Account
	customers map[int64]*domain.Customer
	log       []domain.Transaction

	lastSearch domain.CustomerSearch
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts:  make(map[int64]*domain.Account),
		customers: make(map[int64]*domain.Customer),
	}
}

func (m *memoryStore) addAccount(id, customerID int64, balance string) {
	m.accounts[id] = &domain.Account{
		ID:         id,
		CustomerID: customerID,
		Balance:    decimal.RequireFromString(balance),
	}
}

func (m *memoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[int64]*domain.Account, len(m.accounts))
	for id, account := range m.accounts {
		cp := *account
		snapshot[id] = &cp
	}
	logLen := len(m.log)
	nextTxID := m.nextTxID

	if err := fn(ctx); err != nil {
		m.accounts = snapshot
		m.log = m.log[:logLen]
		m.nextTxID = nextTxID
		return err
	}
	return nil
}

func (m *memoryStore) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (m *memoryStore) Lock(ctx context.Context, id int64) (*domain.Account, error) {
	return m.GetByID(ctx, id)
}

func (m *memoryStore) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal, updatedAt time.Time) error {
	account, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.Balance = balance
	account.UpdatedAt = updatedAt
	return nil
}

func (m *memoryStore) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Account, error) {
	var out []domain.Account
	for _, account := range m.accounts {
		if account.CustomerID == customerID {
			out = append(out, *account)
		}
	}
	return out, nil
}

func (m *memoryStore) Append(ctx context.Context, transaction *domain.Transaction) error {
	m.nextTxID++
	transaction.ID = m.nextTxID
	m.log = append(m.log, *transaction)
	return nil
}

func (m *memoryStore) ListByAccount(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for i := len(m.log) - 1; i >= 0; i-- {
		if m.log[i].AccountID == accountID {
			out = append(out, m.log[i])
		}
	}
	return out, nil
}

func (m *memoryStore) List(ctx context.Context) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(m.log))
	for i := len(m.log) - 1; i >= 0; i-- {
		out = append(out, m.log[i])
	}
	return out, nil
}

func (m *memoryStore) GetCustomerByID(ctx context.Context, id int64) (*domain.Customer, error) {
	customer, ok := m.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	cp := *customer
	return &cp, nil
}

func (m *memoryStore) Search(ctx context.Context, search domain.CustomerSearch) (*domain.CustomerPage, error) {
	m.lastSearch = search
	return &domain.CustomerPage{Page: search.Page}, nil
}

func (m *memoryStore) Summary(ctx context.Context) (*domain.BranchSummary, error) {
	total := decimal.Zero
	for _, account := range m.accounts {
		total = total.Add(account.Balance)
	}
	return &domain.BranchSummary{
		Customers:    int64(len(m.customers)),
		Accounts:     int64(len(m.accounts)),
		TotalBalance: total,
	}, nil
}

// customerRepo adapts memoryStore to domain.CustomerRepository; the
// account store already claims GetByID for accounts.
type customerRepo struct{ *memoryStore }

func (r customerRepo) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	return r.GetCustomerByID(ctx, id)
}

func newService(store *memoryStore) *domain.LedgerService {
	return domain.NewLedgerService(store, store, customerRepo{store}, store, nil, nil)
}

func amt(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestDeposit(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1000.00")
	service := newService(store)

	account, err := service.Deposit(context.Background(), 1, amt("200.00"))
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if !account.Balance.Equal(amt("1200.00")) {
		t.Errorf("expected balance 1200.00, got %s", account.Balance)
	}

	if len(store.log) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(store.log))
	}
	record := store.log[0]
	if record.Type != domain.TransactionTypeCredit {
		t.Errorf("expected CREDIT, got %s", record.Type)
	}
	if record.Operation != domain.OperationDepositCash {
		t.Errorf("expected DEPOSIT_CASH, got %s", record.Operation)
	}
	if !record.Amount.Equal(amt("200.00")) {
		t.Errorf("expected amount 200.00, got %s", record.Amount)
	}
	if !record.NewBalance.Equal(amt("1200.00")) {
		t.Errorf("expected new balance 1200.00, got %s", record.NewBalance)
	}
	if record.Date.IsZero() {
		t.Error("expected transaction date to be set")
	}
}

func TestDeposit_InvalidAmount(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1000.00")
	service := newService(store)

	for _, amount := range []decimal.Decimal{decimal.Zero, amt("-100"), amt("0.001")} {
		// Re-running the same rejected input must keep producing the
		// same error with no state change.
		for i := 0; i < 3; i++ {
			_, err := service.Deposit(context.Background(), 1, amount)
			if !errors.Is(err, domain.ErrInvalidAmount) {
				t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
			}
		}
	}

	if len(store.log) != 0 {
		t.Errorf("expected no transactions, got %d", len(store.log))
	}
	if !store.accounts[1].Balance.Equal(amt("1000.00")) {
		t.Errorf("balance changed: %s", store.accounts[1].Balance)
	}
}

func TestDeposit_AccountNotFound(t *testing.T) {
	service := newService(newMemoryStore())

	_, err := service.Deposit(context.Background(), 42, amt("100"))
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1000.00")
	service := newService(store)

	account, err := service.Withdraw(context.Background(), 1, amt("250.50"))
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if !account.Balance.Equal(amt("749.50")) {
		t.Errorf("expected balance 749.50, got %s", account.Balance)
	}

	record := store.log[0]
	if record.Type != domain.TransactionTypeDebit || record.Operation != domain.OperationATMWithdrawal {
		t.Errorf("expected DEBIT/ATM_WITHDRAWAL, got %s/%s", record.Type, record.Operation)
	}
	if !record.NewBalance.Equal(amt("749.50")) {
		t.Errorf("expected new balance 749.50, got %s", record.NewBalance)
	}
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1200.00")
	service := newService(store)

	for i := 0; i < 3; i++ {
		_, err := service.Withdraw(context.Background(), 1, amt("1300.00"))
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
	}

	if !store.accounts[1].Balance.Equal(amt("1200.00")) {
		t.Errorf("balance changed: %s", store.accounts[1].Balance)
	}
	if len(store.log) != 0 {
		t.Errorf("expected no transactions, got %d", len(store.log))
	}
}

func TestWithdraw_ExactBalance(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "100.00")
	service := newService(store)

	account, err := service.Withdraw(context.Background(), 1, amt("100.00"))
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if !account.Balance.IsZero() {
		t.Errorf("expected zero balance, got %s", account.Balance)
	}
}

func TestTransfer(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1200.00")
	store.addAccount(2, 2, "300.00")
	service := newService(store)

	source, target, err := service.Transfer(context.Background(), 1, 2, amt("500.00"))
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if !source.Balance.Equal(amt("700.00")) {
		t.Errorf("expected source balance 700.00, got %s", source.Balance)
	}
	if !target.Balance.Equal(amt("800.00")) {
		t.Errorf("expected target balance 800.00, got %s", target.Balance)
	}

	if len(store.log) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(store.log))
	}
	debit, credit := store.log[0], store.log[1]
	if debit.AccountID != 1 || debit.Type != domain.TransactionTypeDebit || debit.Operation != domain.OperationTransfer {
		t.Errorf("unexpected debit leg: %+v", debit)
	}
	if !debit.NewBalance.Equal(amt("700.00")) {
		t.Errorf("expected debit new balance 700.00, got %s", debit.NewBalance)
	}
	if credit.AccountID != 2 || credit.Type != domain.TransactionTypeCredit || credit.Operation != domain.OperationTransfer {
		t.Errorf("unexpected credit leg: %+v", credit)
	}
	if !credit.NewBalance.Equal(amt("800.00")) {
		t.Errorf("expected credit new balance 800.00, got %s", credit.NewBalance)
	}
	if credit.ID <= debit.ID {
		t.Errorf("expected monotonically assigned ids, got %d then %d", debit.ID, credit.ID)
	}
}

func TestTransfer_SameAccount(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1000.00")
	service := newService(store)

	_, _, err := service.Transfer(context.Background(), 1, 1, amt("100"))
	if !errors.Is(err, domain.ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	if len(store.log) != 0 {
		t.Errorf("expected no transactions, got %d", len(store.log))
	}
}

func TestTransfer_AccountNotFound(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1000.00")
	service := newService(store)

	_, _, err := service.Transfer(context.Background(), 1, 99, amt("100"))
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "target") {
		t.Errorf("error should name the failing side: %v", err)
	}

	_, _, err = service.Transfer(context.Background(), 98, 1, amt("100"))
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "source") {
		t.Errorf("error should name the failing side: %v", err)
	}

	if !store.accounts[1].Balance.Equal(amt("1000.00")) {
		t.Errorf("balance changed: %s", store.accounts[1].Balance)
	}
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "50.00")
	store.addAccount(2, 2, "300.00")
	service := newService(store)

	_, _, err := service.Transfer(context.Background(), 1, 2, amt("100.00"))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !store.accounts[1].Balance.Equal(amt("50.00")) || !store.accounts[2].Balance.Equal(amt("300.00")) {
		t.Error("balances changed on rejected transfer")
	}
	if len(store.log) != 0 {
		t.Errorf("expected no transactions, got %d", len(store.log))
	}
}

func TestTransfer_StoreFailureRollsBack(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1000.00")
	store.addAccount(2, 2, "300.00")
	service := newService(store)

	// First leg debits and appends, then the credit-leg append fails.
	// The whole operation must leave no trace.
	failure := errors.New("disk full")
	calls := 0
	storeWithFailure := &flakyAppend{memoryStore: store, failOn: 2, err: failure, calls: &calls}
	service = domain.NewLedgerService(store, storeWithFailure, customerRepo{store}, store, nil, nil)

	_, _, err := service.Transfer(context.Background(), 1, 2, amt("100.00"))
	if !errors.Is(err, failure) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if !store.accounts[1].Balance.Equal(amt("1000.00")) {
		t.Errorf("source balance not rolled back: %s", store.accounts[1].Balance)
	}
	if !store.accounts[2].Balance.Equal(amt("300.00")) {
		t.Errorf("target balance not rolled back: %s", store.accounts[2].Balance)
	}
	if len(store.log) != 0 {
		t.Errorf("expected empty log after rollback, got %d entries", len(store.log))
	}
}

// flakyAppend fails the n-th Append call.
type flakyAppend struct {
	*memoryStore
	failOn int
	err    error
	calls  *int
}

func (f *flakyAppend) Append(ctx context.Context, transaction *domain.Transaction) error {
	*f.calls++
	if *f.calls == f.failOn {
		return f.err
	}
	return f.memoryStore.Append(ctx, transaction)
}

// TestCashierScenario runs the reference teller flow end to end.
func TestCashierScenario(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1000.00")
	store.addAccount(2, 1, "300.00")
	service := newService(store)
	ctx := context.Background()

	account, err := service.Deposit(ctx, 1, amt("200.00"))
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if !account.Balance.Equal(amt("1200.00")) {
		t.Errorf("expected 1200.00 after deposit, got %s", account.Balance)
	}

	if _, err := service.Withdraw(ctx, 1, amt("1300.00")); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !store.accounts[1].Balance.Equal(amt("1200.00")) {
		t.Errorf("balance changed on rejected withdrawal: %s", store.accounts[1].Balance)
	}

	source, target, err := service.Transfer(ctx, 1, 2, amt("500.00"))
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if !source.Balance.Equal(amt("700.00")) {
		t.Errorf("expected source 700.00, got %s", source.Balance)
	}
	if !target.Balance.Equal(amt("800.00")) {
		t.Errorf("expected target 800.00, got %s", target.Balance)
	}
	if len(store.log) != 3 {
		t.Errorf("expected 3 transactions, got %d", len(store.log))
	}
}

// TestBalanceEqualsSignedSum asserts the ledger invariant: an account's
// balance equals the signed sum of its transactions and never goes
// negative.
func TestBalanceEqualsSignedSum(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "0.00")
	store.addAccount(2, 1, "0.00")
	service := newService(store)
	ctx := context.Background()

	steps := []func() error{
		func() error { _, err := service.Deposit(ctx, 1, amt("1000.00")); return err },
		func() error { _, err := service.Deposit(ctx, 2, amt("50.25")); return err },
		func() error { _, err := service.Withdraw(ctx, 1, amt("199.99")); return err },
		func() error { _, _, err := service.Transfer(ctx, 1, 2, amt("300.01")); return err },
		func() error { _, err := service.Withdraw(ctx, 2, amt("350.26")); return err },
		func() error { _, err := service.Withdraw(ctx, 2, amt("0.01")); return err }, // rejected
	}
	for i, step := range steps {
		if err := step(); err != nil && i != len(steps)-1 {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	for _, accountID := range []int64{1, 2} {
		sum := decimal.Zero
		for _, record := range store.log {
			if record.AccountID == accountID {
				sum = sum.Add(record.SignedAmount())
			}
		}
		balance := store.accounts[accountID].Balance
		if !balance.Equal(sum) {
			t.Errorf("account %d: balance %s != signed sum %s", accountID, balance, sum)
		}
		if balance.IsNegative() {
			t.Errorf("account %d: negative balance %s", accountID, balance)
		}
	}
}

// TestConcurrentDepositWithdraw runs a deposit and a withdrawal against
// the same account at the same time; both must land with no lost
// update.
func TestConcurrentDepositWithdraw(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1000.00")
	service := newService(store)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := service.Deposit(context.Background(), 1, amt("100.00")); err != nil {
			t.Errorf("Deposit failed: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := service.Withdraw(context.Background(), 1, amt("100.00")); err != nil {
			t.Errorf("Withdraw failed: %v", err)
		}
	}()
	wg.Wait()

	if !store.accounts[1].Balance.Equal(amt("1000.00")) {
		t.Errorf("expected final balance 1000.00, got %s", store.accounts[1].Balance)
	}
	if len(store.log) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(store.log))
	}
}

func TestGetCustomer(t *testing.T) {
	store := newMemoryStore()
	store.customers[7] = &domain.Customer{ID: 7, GivenName: "Astrid", Surname: "Lind", City: "Malmo"}
	store.addAccount(1, 7, "100.00")
	store.addAccount(2, 7, "250.50")
	store.addAccount(3, 8, "999.00")
	service := newService(store)

	details, err := service.GetCustomer(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if len(details.Accounts) != 2 {
		t.Errorf("expected 2 accounts, got %d", len(details.Accounts))
	}
	if !details.TotalBalance.Equal(amt("350.50")) {
		t.Errorf("expected total 350.50, got %s", details.TotalBalance)
	}

	if _, err := service.GetCustomer(context.Background(), 404); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestSearchCustomers_Defaults(t *testing.T) {
	store := newMemoryStore()
	service := newService(store)

	_, err := service.SearchCustomers(context.Background(), domain.CustomerSearch{Page: 0, SortOrder: "sideways"})
	if err != nil {
		t.Fatalf("SearchCustomers failed: %v", err)
	}
	if store.lastSearch.Page != 1 {
		t.Errorf("expected page clamped to 1, got %d", store.lastSearch.Page)
	}
	if store.lastSearch.PerPage != domain.DefaultCustomersPerPage {
		t.Errorf("expected default page size, got %d", store.lastSearch.PerPage)
	}
	if store.lastSearch.SortOrder != "asc" {
		t.Errorf("expected sort order asc, got %s", store.lastSearch.SortOrder)
	}
}

// capturePublisher records events for assertions.
type capturePublisher struct {
	events chan domain.OperationEvent
}

func (p *capturePublisher) PublishOperationCompleted(ctx context.Context, event domain.OperationEvent) error {
	p.events <- event
	return nil
}

func TestTransferPublishesEvent(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, 1, "1000.00")
	store.addAccount(2, 2, "0.00")
	publisher := &capturePublisher{events: make(chan domain.OperationEvent, 1)}
	service := domain.NewLedgerService(store, store, customerRepo{store}, store, publisher, nil)

	if _, _, err := service.Transfer(context.Background(), 1, 2, amt("25.00")); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	select {
	case event := <-publisher.events:
		if event.Operation != domain.OperationTransfer {
			t.Errorf("expected TRANSFER event, got %s", event.Operation)
		}
		if event.AccountID != 1 || event.TargetAccountID != 2 {
			t.Errorf("unexpected accounts on event: %+v", event)
		}
		if !event.Amount.Equal(amt("25.00")) {
			t.Errorf("expected amount 25.00, got %s", event.Amount)
		}
		if event.OperationID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Error("expected a generated operation id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for published event")
	}
}
