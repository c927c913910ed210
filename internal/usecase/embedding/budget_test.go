package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

func newTracker(daily, monthly int64, action BudgetAction) *BudgetTracker {
	return NewBudgetTracker("openai", Limits{Daily: daily, Monthly: monthly}, action, zap.NewNop())
}

func TestBudgetTracker_Check(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		action  BudgetAction
		record  int64
		wantErr error
	}{
		{"daily reject", Limits{Daily: 100}, BudgetActionReject, 100, domain.ErrEmbeddingQuotaExceeded},
		{"monthly reject", Limits{Monthly: 500}, BudgetActionReject, 500, domain.ErrEmbeddingQuotaExceeded},
		{"warn allows", Limits{Daily: 100}, BudgetActionWarn, 200, nil},
		{"unlimited", Limits{}, BudgetActionReject, 999_999_999, nil},
		{"below limit", Limits{Daily: 1000, Monthly: 10000}, BudgetActionReject, 500, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bt := NewBudgetTracker("openai", tt.limits, tt.action, zap.NewNop())
			bt.Record(tt.record)

			err := bt.Check(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBudgetTracker_Remaining(t *testing.T) {
	bt := newTracker(1000, 10000, BudgetActionWarn)
	bt.Record(300)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("expected daily remaining 700, got %d", got)
	}
	if got := bt.RemainingMonthly(); got != 9700 {
		t.Errorf("expected monthly remaining 9700, got %d", got)
	}

	bt.Record(5000)
	if got := bt.RemainingDaily(); got != 0 {
		t.Errorf("expected remaining clamped to 0, got %d", got)
	}
}

func TestBudgetTracker_RemainingUnlimited(t *testing.T) {
	bt := newTracker(0, 0, BudgetActionWarn)
	if bt.RemainingDaily() != -1 || bt.RemainingMonthly() != -1 {
		t.Errorf("expected -1 for unlimited, got %d / %d", bt.RemainingDaily(), bt.RemainingMonthly())
	}
}

func TestBudgetTracker_DayRollover(t *testing.T) {
	now := time.Date(2026, 10, 19, 23, 59, 0, 0, time.UTC)
	bt := newTracker(100, 1000, BudgetActionReject)
	bt.now = func() time.Time { return now }
	bt.dayStart, bt.monStart = periodStarts(now)

	bt.Record(100)
	if err := bt.Check(context.Background()); err == nil {
		t.Fatal("expected quota error before midnight")
	}

	now = now.Add(2 * time.Minute)
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected daily counter reset after midnight, got %v", err)
	}
	u := bt.Usage()
	if u.DailyUsed != 0 || u.MonthlyUsed != 100 {
		t.Errorf("expected daily=0 monthly=100, got %+v", u)
	}
}

func TestBudgetTracker_Keys(t *testing.T) {
	bt := newTracker(0, 0, BudgetActionWarn)
	at := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)

	if got, want := bt.key("daily", at), "courseadvisor:budget:openai:daily:2026-03-07"; got != want {
		t.Errorf("daily key: got %q, want %q", got, want)
	}
	if got, want := bt.key("monthly", at), "courseadvisor:budget:openai:monthly:2026-03"; got != want {
		t.Errorf("monthly key: got %q, want %q", got, want)
	}
}

type mockBudgetStore struct {
	mu     sync.Mutex
	data   map[string]int64
	getErr error
	setErr error
}

func newMockBudgetStore() *mockBudgetStore {
	return &mockBudgetStore{data: make(map[string]int64)}
}

func (m *mockBudgetStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] += val
	return nil
}

func (m *mockBudgetStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

func TestBudgetTracker_WithStore_LoadsValues(t *testing.T) {
	store := newMockBudgetStore()
	bt := newTracker(1000, 10000, BudgetActionReject)
	now := bt.now()
	store.data[bt.key("daily", now)] = 300
	store.data[bt.key("monthly", now)] = 5000

	bt.WithStore(context.Background(), store)

	u := bt.Usage()
	if u.DailyUsed != 300 || u.MonthlyUsed != 5000 {
		t.Errorf("expected 300/5000, got %d/%d", u.DailyUsed, u.MonthlyUsed)
	}
}

func TestBudgetTracker_Record_PersistsToStore(t *testing.T) {
	store := newMockBudgetStore()
	bt := newTracker(10000, 100000, BudgetActionWarn).WithStore(context.Background(), store)

	bt.Record(100)
	bt.Record(200)

	now := bt.now()
	store.mu.Lock()
	daily, monthly := store.data[bt.key("daily", now)], store.data[bt.key("monthly", now)]
	store.mu.Unlock()

	if daily != 300 || monthly != 300 {
		t.Errorf("expected store 300/300, got %d/%d", daily, monthly)
	}
	if bt.Usage().DailyUsed != 300 {
		t.Errorf("expected in-memory 300, got %d", bt.Usage().DailyUsed)
	}
}

func TestBudgetTracker_StoreErrorsAreNotFatal(t *testing.T) {
	store := newMockBudgetStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("write timeout")

	bt := newTracker(1000, 10000, BudgetActionReject).WithStore(context.Background(), store)
	if bt.Usage().DailyUsed != 0 {
		t.Errorf("expected 0 on load error, got %d", bt.Usage().DailyUsed)
	}

	bt.Record(50)
	if bt.Usage().DailyUsed != 50 {
		t.Errorf("expected in-memory 50 despite store error, got %d", bt.Usage().DailyUsed)
	}
}

func TestBudgetTracker_UsageSnapshot(t *testing.T) {
	bt := newTracker(10, 20, BudgetActionWarn)
	bt.Record(4)

	want := BudgetUsage{Provider: "openai", DailyUsed: 4, DailyLimit: 10, MonthlyUsed: 4, MonthlyLimit: 20}
	if got := bt.Usage(); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
