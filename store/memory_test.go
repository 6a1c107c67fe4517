package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, ok, err := s.Get(ctx); ok || err != nil {
		t.Fatalf("expected empty slot, ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "", time.Time{}); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
	if err := s.Set(ctx, "t1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "t2", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok, err := s.Get(ctx)
	if err != nil || !ok || got != "t2" {
		t.Fatalf("expected t2, got %q ok=%v err=%v", got, ok, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx); ok {
		t.Fatal("expected empty slot after Clear")
	}
}

func TestMemoryStoreConcurrentClearNeverPartial(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	const tok = "header.payload.signature"

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = s.Set(ctx, tok, time.Time{})
				_ = s.Clear(ctx)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				got, ok, _ := s.Get(ctx)
				if ok && got != tok {
					t.Errorf("observed partial credential %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
