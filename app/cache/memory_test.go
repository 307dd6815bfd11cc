package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemory_GetSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, hit, _ := m.Get(ctx, "missing"); hit {
		t.Error("Expected miss for unknown key")
	}

	if err := m.Set(ctx, "key", "value", time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, hit, err := m.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit || val != "value" {
		t.Errorf("Expected hit with value, got hit=%v val=%q", hit, val)
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	current := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	m.Set(ctx, "key", "value", time.Hour)

	if _, hit, _ := m.Get(ctx, "key"); !hit {
		t.Fatal("Expected hit before expiry")
	}

	current = current.Add(2 * time.Hour)

	if _, hit, _ := m.Get(ctx, "key"); hit {
		t.Error("Expected miss after expiry")
	}
}

func TestMemory_DeletePrefix(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, "copy:rule-a:sku-1:f1", "a", time.Hour)
	m.Set(ctx, "copy:rule-a:sku-2:f2", "b", time.Hour)
	m.Set(ctx, "copy:rule-b:sku-1:f3", "c", time.Hour)

	deleted, err := m.DeletePrefix(ctx, "copy:rule-a:")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted entries, got %d", deleted)
	}

	if _, hit, _ := m.Get(ctx, "copy:rule-b:sku-1:f3"); !hit {
		t.Error("Expected entries under other prefixes to survive")
	}
}

func TestMemory_TryAcquire(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := m.TryAcquire(ctx, "quota:r:2026-08-30", 3)
		if err != nil {
			t.Fatalf("TryAcquire failed: %v", err)
		}
		if !ok {
			t.Fatalf("Expected acquire %d to succeed", i+1)
		}
	}

	if ok, _ := m.TryAcquire(ctx, "quota:r:2026-08-30", 3); ok {
		t.Error("Expected acquire beyond the limit to fail")
	}

	if current, _ := m.Current(ctx, "quota:r:2026-08-30"); current != 3 {
		t.Errorf("Expected counter 3, got %d", current)
	}
}

func TestMemory_Release(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.TryAcquire(ctx, "key", 1)

	if ok, _ := m.TryAcquire(ctx, "key", 1); ok {
		t.Fatal("Expected limit to be reached")
	}

	if err := m.Release(ctx, "key"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if ok, _ := m.TryAcquire(ctx, "key", 1); !ok {
		t.Error("Expected acquire to succeed after release")
	}

	// Releasing an empty counter must not go negative.
	m.Release(ctx, "empty")
	if current, _ := m.Current(ctx, "empty"); current != 0 {
		t.Errorf("Expected counter to stay at 0, got %d", current)
	}
}

func TestMemory_Reset(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.TryAcquire(ctx, "key", 5)
	m.TryAcquire(ctx, "key", 5)

	if err := m.Reset(ctx, "key"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if current, _ := m.Current(ctx, "key"); current != 0 {
		t.Errorf("Expected counter reset to 0, got %d", current)
	}
}

func TestMemory_TryAcquireAtomicUnderConcurrency(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const limit = 10
	const goroutines = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.TryAcquire(ctx, "key", limit)
			if err != nil {
				t.Errorf("TryAcquire failed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != limit {
		t.Errorf("Expected exactly %d successful acquires, got %d", limit, acquired)
	}
}
