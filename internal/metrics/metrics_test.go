package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AliAlkhamasi/bank-ledger-service/internal/domain"
)

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{domain.ErrInvalidAmount, "invalid"},
		{domain.ErrSameAccount, "invalid"},
		{domain.ErrAccountNotFound, "not_found"},
		{fmt.Errorf("source account 3: %w", domain.ErrAccountNotFound), "not_found"},
		{domain.ErrInsufficientFunds, "insufficient_funds"},
		{domain.ErrPersistenceConflict, "conflict"},
		{errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		if got := resultLabel(tt.err); got != tt.want {
			t.Errorf("resultLabel(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	m.ObserveOperation("deposit", nil, 5*time.Millisecond)
	m.ObserveOperation("deposit", domain.ErrInvalidAmount, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}

	var observed int
	for _, family := range families {
		if family.GetName() == "test_ledger_operations_total" {
			for _, metric := range family.GetMetric() {
				observed += int(metric.GetCounter().GetValue())
			}
		}
	}
	if observed != 2 {
		t.Errorf("expected 2 observed operations, got %d", observed)
	}
}

func TestObserveOperation_NilReceiver(t *testing.T) {
	var m *Metrics
	// Must not panic when metrics are disabled.
	m.ObserveOperation("deposit", nil, time.Millisecond)
}
