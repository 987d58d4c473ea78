package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "pharmastock/internal/core/numerator"
)

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

// mockQuerier simulates sys_sequences for a single key.
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
	err          error
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return &mockRow{err: m.err}
	}

	increment := int64(1)
	if len(args) == 2 {
		if v, ok := args[1].(int64); ok {
			increment = v
		}
	}
	m.currentValue += increment
	return &mockRow{val: m.currentValue}
}

var period = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("INV")

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "INV-2024-00001" {
		t.Errorf("expected INV-2024-00001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "INV-2024-00002" {
		t.Errorf("expected INV-2024-00002, got %s", num)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("INV")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "INV-2024-00001" {
		t.Errorf("expected INV-2024-00001, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected reserved value 10, got %d", q.currentValue)
	}

	for i := 0; i < 9; i++ {
		if _, err := svc.GetNextNumber(ctx, cfg, opts, period); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if q.calls != 1 {
		t.Errorf("expected range served from memory, got %d queries", q.calls)
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "INV-2024-00011" {
		t.Errorf("expected INV-2024-00011, got %s", num)
	}
	if q.currentValue != 20 {
		t.Errorf("expected reserved value 20, got %d", q.currentValue)
	}
}

func TestGetNextNumber_QueryError(t *testing.T) {
	svc := New(&mockQuerier{err: errors.New("db down")})
	if _, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig("INV"), nil, period); err == nil {
		t.Fatal("expected error")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		cfg  corenumerator.Config
		num  int64
		want string
	}{
		{"default", corenumerator.DefaultConfig("INV"), 7, "INV-2024-00007"},
		{"no year", corenumerator.Config{Prefix: "INV", PadWidth: 3}, 1, "INV-001"},
		{"zero pad width", corenumerator.Config{Prefix: "X", IncludeYear: true}, 12, "X-2024-00012"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatNumber(tt.cfg, period, tt.num); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestBuildKey(t *testing.T) {
	if got := buildKey(corenumerator.Config{Prefix: "INV", ResetPeriod: "month"}, period); got != "INV_2024_03" {
		t.Errorf("unexpected key %s", got)
	}
	if got := buildKey(corenumerator.Config{Prefix: "INV", ResetPeriod: "never"}, period); got != "INV" {
		t.Errorf("unexpected key %s", got)
	}
}
