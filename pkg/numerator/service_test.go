package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates per-key DB sequences.
type mockQuerier struct {
	mu   sync.Mutex
	vals map[string]int64
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{vals: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, _ := args[0].(string)
	if len(args) == 2 {
		// SetNextNumber path
		if v, ok := args[1].(int64); ok {
			m.vals[key] = v
			return &mockRow{val: v}
		}
	}
	m.vals[key]++
	return &mockRow{val: m.vals[key]}
}

func TestGetNextNumber_PrefixYear(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, FrameworkContractConfig(), period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "РД-2026-001" {
		t.Errorf("expected РД-2026-001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, FrameworkContractConfig(), period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "РД-2026-002" {
		t.Errorf("expected РД-2026-002, got %s", num)
	}

	// Different prefix has an independent sequence.
	num, err = svc.GetNextNumber(ctx, EstimateConfig(), period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "СМ-2026-001" {
		t.Errorf("expected СМ-2026-001, got %s", num)
	}
}

func TestGetNextNumber_SeqDate(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	period := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, TechnicalProposalConfig(), period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "1_05.03.26" {
		t.Errorf("expected 1_05.03.26, got %s", num)
	}
}

func TestNextSuffix(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()

	num, err := svc.NextSuffix(ctx, "7_05.03.26")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "7_05.03.26-01" {
		t.Errorf("expected 7_05.03.26-01, got %s", num)
	}

	num, _ = svc.NextSuffix(ctx, "7_05.03.26")
	if num != "7_05.03.26-02" {
		t.Errorf("expected 7_05.03.26-02, got %s", num)
	}
}

func TestGetNextNumber_YearReset(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()

	y1 := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	y2 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	num, _ := svc.GetNextNumber(ctx, MountingProposalConfig(), y1)
	if num != "МП-2025-001" {
		t.Errorf("expected МП-2025-001, got %s", num)
	}

	// New year starts a fresh sequence.
	num, _ = svc.GetNextNumber(ctx, MountingProposalConfig(), y2)
	if num != "МП-2026-001" {
		t.Errorf("expected МП-2026-001, got %s", num)
	}
}
