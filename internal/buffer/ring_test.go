package buffer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRing_PushPopOrder(t *testing.T) {
	r := NewRing[int](10, 100)

	for i := 0; i < 5; i++ {
		if _, err := r.Push(i); err != nil {
			t.Fatalf("Push(%d) error = %v", i, err)
		}
	}

	got, ok := r.PopBatch(context.Background(), 0)
	if !ok {
		t.Fatal("PopBatch() returned false")
	}
	for i, v := range got {
		if v != i {
			t.Errorf("item %d = %d, want %d", i, v, i)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRing_GrowAt70Percent(t *testing.T) {
	r := NewRing[int](10, 100)
	for i := 0; i < 7; i++ {
		r.Push(i)
	}

	stats := r.Stats()
	if stats.Capacity != 20 {
		t.Errorf("Capacity = %d, want 20", stats.Capacity)
	}
	if stats.Resizes != 1 {
		t.Errorf("Resizes = %d, want 1", stats.Resizes)
	}

	got := r.Drain()
	if len(got) != 7 || got[0] != 0 || got[6] != 6 {
		t.Errorf("Drain() = %v, want 0..6", got)
	}
}

func TestRing_OverwritesOldestAtLimit(t *testing.T) {
	r := NewRing[int](4, 4)

	dropped, err := r.Push(1, 2, 3, 4, 5, 6)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}

	got := r.Drain()
	want := []int{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("Drain() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if s := r.Stats(); s.Dropped != 2 || s.Pushed != 6 || s.Popped != 4 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestRing_PopBatchMax(t *testing.T) {
	r := NewRing[int](8, 8)
	r.Push(1, 2, 3, 4, 5)

	got, _ := r.PopBatch(context.Background(), 2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("first batch = %v, want [1 2]", got)
	}
	got, _ = r.PopBatch(context.Background(), 10)
	if len(got) != 3 || got[0] != 3 {
		t.Errorf("second batch = %v, want [3 4 5]", got)
	}
}

func TestRing_PopBatchBlocksUntilPush(t *testing.T) {
	r := NewRing[int](4, 16)

	var wg sync.WaitGroup
	var got []int
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, _ = r.PopBatch(context.Background(), 0)
	}()

	time.Sleep(20 * time.Millisecond)
	r.Push(42)
	wg.Wait()

	if len(got) != 1 || got[0] != 42 {
		t.Errorf("PopBatch() = %v, want [42]", got)
	}
}

func TestRing_PopBatchContextCancel(t *testing.T) {
	r := NewRing[int](4, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	items, ok := r.PopBatch(ctx, 0)
	if ok || items != nil {
		t.Errorf("PopBatch() = %v, %v; want nil, false", items, ok)
	}
}

func TestRing_Close(t *testing.T) {
	r := NewRing[int](4, 16)
	r.Push(1, 2)
	r.Close()

	if _, err := r.Push(3); !errors.Is(err, ErrClosed) {
		t.Errorf("Push() after Close error = %v, want ErrClosed", err)
	}

	items, ok := r.PopBatch(context.Background(), 0)
	if !ok || len(items) != 2 {
		t.Errorf("PopBatch() = %v, %v; want remaining items", items, ok)
	}

	items, ok = r.PopBatch(context.Background(), 0)
	if ok || items != nil {
		t.Errorf("PopBatch() on drained closed ring = %v, %v", items, ok)
	}

	// Double close is a no-op.
	r.Close()
}

func TestRing_ConcurrentProducers(t *testing.T) {
	r := NewRing[int](16, 10000)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				r.Push(i)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", r.Len())
	}
}
