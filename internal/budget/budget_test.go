package budget

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCommitDeductsBothCounters(t *testing.T) {
	daily := NewDailyCounter(100)
	ledger := NewLedger(10, daily)

	if err := ledger.Commit("t1", 4); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if got := ledger.Spent(); got != 4 {
		t.Errorf("run spent = %v, want 4", got)
	}
	if got := ledger.Remaining(); got != 6 {
		t.Errorf("run remaining = %v, want 6", got)
	}
	if got := daily.Spent(); got != 4 {
		t.Errorf("daily spent = %v, want 4", got)
	}
}

func TestCommitIdempotentPerTaskID(t *testing.T) {
	daily := NewDailyCounter(100)
	ledger := NewLedger(10, daily)

	if err := ledger.Commit("t1", 4); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := ledger.Commit("t1", 4); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	if got := ledger.Spent(); got != 4 {
		t.Errorf("spent after duplicate commit = %v, want 4", got)
	}
	if got := daily.Spent(); got != 4 {
		t.Errorf("daily spent after duplicate commit = %v, want 4", got)
	}
}

func TestCommitRefusesRunOverrun(t *testing.T) {
	daily := NewDailyCounter(100)
	ledger := NewLedger(10, daily)

	if err := ledger.Commit("t1", 8); err != nil {
		t.Fatalf("commit: %v", err)
	}

	err := ledger.Commit("t2", 5)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}

	// Already-committed costs remain unchanged after the refusal.
	if got := ledger.Spent(); got != 8 {
		t.Errorf("spent = %v, want 8", got)
	}
	if got := daily.Spent(); got != 8 {
		t.Errorf("daily spent = %v, want 8", got)
	}
}

func TestCommitRefusesDailyOverrun(t *testing.T) {
	daily := NewDailyCounter(10)
	ledger := NewLedger(0, daily) // unlimited run budget

	if err := ledger.Commit("t1", 7); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := ledger.Commit("t2", 5); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if got := daily.Spent(); got != 7 {
		t.Errorf("daily spent = %v, want 7", got)
	}
}

func TestReserveDoesNotMutate(t *testing.T) {
	daily := NewDailyCounter(100)
	ledger := NewLedger(10, daily)

	if !ledger.Reserve(10) {
		t.Error("expected reserve within limit to pass")
	}
	if ledger.Reserve(11) {
		t.Error("expected reserve above run limit to fail")
	}

	if got := ledger.Spent(); got != 0 {
		t.Errorf("reserve mutated run spend: %v", got)
	}
	if got := daily.Spent(); got != 0 {
		t.Errorf("reserve mutated daily spend: %v", got)
	}
}

func TestReserveChecksDailyCap(t *testing.T) {
	daily := NewDailyCounter(5)
	ledger := NewLedger(100, daily)

	if ledger.Reserve(6) {
		t.Error("expected reserve above daily cap to fail")
	}
	if !ledger.Reserve(5) {
		t.Error("expected reserve at daily cap to pass")
	}
}

func TestDailyCounterLazyUTCReset(t *testing.T) {
	daily := NewDailyCounter(10)
	now := time.Date(2026, 8, 24, 23, 50, 0, 0, time.UTC)
	daily.SetClock(func() time.Time { return now })

	ledger := NewLedger(0, daily)
	if err := ledger.Commit("t1", 9); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ledger.Reserve(2) {
		t.Error("expected reserve to fail before midnight")
	}

	// Cross UTC midnight; the reset happens on next access.
	now = now.Add(15 * time.Minute)
	if got := daily.Remaining(); got != 10 {
		t.Errorf("remaining after day change = %v, want 10", got)
	}
	if err := ledger.Commit("t2", 9); err != nil {
		t.Fatalf("commit after reset: %v", err)
	}
}

func TestConcurrentCommitsNeverOverrun(t *testing.T) {
	daily := NewDailyCounter(50)
	ledgers := []*Ledger{
		NewLedger(30, daily),
		NewLedger(30, daily),
	}

	var wg sync.WaitGroup
	for li, ledger := range ledgers {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(l *Ledger, li, i int) {
				defer wg.Done()
				_ = l.Commit(taskID(li, i), 2)
			}(ledger, li, i)
		}
	}
	wg.Wait()

	total := ledgers[0].Spent() + ledgers[1].Spent()
	if total > 50 {
		t.Errorf("daily total %v exceeds cap 50", total)
	}
	if daily.Spent() != total {
		t.Errorf("daily spent %v != sum of ledgers %v", daily.Spent(), total)
	}
	for i, l := range ledgers {
		if l.Spent() > 30 {
			t.Errorf("ledger %d spent %v exceeds run limit 30", i, l.Spent())
		}
	}
}

func taskID(ledger, n int) string {
	return string(rune('a'+ledger)) + "-" + string(rune('0'+n/10)) + string(rune('0'+n%10))
}
