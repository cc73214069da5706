package parallel

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{"empty", 0, 4},
		{"fewer items than workers", 3, 8},
		{"uneven split", 101, 4},
		{"default workers", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.items)
			ParallelizeWithWorkers(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, n := range seen {
				if n != 1 {
					t.Errorf("item %d visited %d times", i, n)
				}
			}
		})
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("unexpected range [%d, %d)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("expected one sequential call, got %d", calls)
	}
}

func TestForEach(t *testing.T) {
	var sum int64
	err := ForEach(context.Background(), 100, 4, "sum", func(i int) error {
		atomic.AddInt64(&sum, int64(i))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach() error = %v", err)
	}
	if sum != 4950 {
		t.Errorf("sum = %d, want 4950", sum)
	}
}

func TestForEachReturnsError(t *testing.T) {
	boom := errors.New("tree failed")
	err := ForEach(context.Background(), 20, 2, "fit", func(i int) error {
		if i == 7 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("ForEach() error = %v, want %v", err, boom)
	}
}

func TestForEachRecoversPanic(t *testing.T) {
	err := ForEach(context.Background(), 5, 1, "fit tree", func(i int) error {
		if i == 3 {
			panic("bad split")
		}
		return nil
	})
	var pe *errors.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if pe.Operation != "fit tree" {
		t.Errorf("Operation = %q", pe.Operation)
	}
}

func TestForEachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := ForEach(ctx, 10, 2, "noop", func(i int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ForEach() error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("expected no calls after cancellation, got %d", calls)
	}
}

func TestWorkers(t *testing.T) {
	if Workers(3) != 3 {
		t.Error("Workers(3) should be 3")
	}
	if Workers(-1) < 1 {
		t.Error("Workers(-1) should be at least 1")
	}
}
