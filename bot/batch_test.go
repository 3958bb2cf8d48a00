package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{"alice@example.com", "a.b+tag@sub.example.org"}
	for _, addr := range valid {
		if err := ValidateEmail(addr); err != nil {
			t.Fatalf("ValidateEmail(%q) = %v, want nil", addr, err)
		}
	}
	invalid := []string{"", "   ", "not-an-email", "Alice <alice@example.com>", "@example.com", "alice@"}
	for _, addr := range invalid {
		if err := ValidateEmail(addr); err == nil {
			t.Fatalf("ValidateEmail(%q) = nil, want error", addr)
		}
	}
}

func TestRunBatchMixedOutcome(t *testing.T) {
	items := []string{"alice@example.com", "bad-address", "bob@example.com", "carol@example.com"}
	var mu sync.Mutex
	var called []string
	res := runBatch(context.Background(), items, 2, 0, ValidateEmail, func(ctx context.Context, item string) error {
		mu.Lock()
		called = append(called, item)
		mu.Unlock()
		if item == "carol@example.com" {
			return fmt.Errorf("remote rejected")
		}
		return nil
	})

	if res.Total != 4 {
		t.Fatalf("Total = %d, want 4", res.Total)
	}
	if res.Succeeded != 2 {
		t.Fatalf("Succeeded = %d, want 2", res.Succeeded)
	}
	if res.Failed != 2 {
		t.Fatalf("Failed = %d, want 2", res.Failed)
	}
	if res.Succeeded+res.Failed != res.Total {
		t.Fatalf("counts do not add up: %+v", res)
	}
	if _, ok := res.Errors["bad-address"]; !ok {
		t.Fatal("validation failure missing from Errors")
	}
	if _, ok := res.Errors["carol@example.com"]; !ok {
		t.Fatal("remote failure missing from Errors")
	}

	// The invalid item never reaches the worker.
	sort.Strings(called)
	for _, c := range called {
		if c == "bad-address" {
			t.Fatal("invalid item was passed to fn")
		}
	}
	sort.Strings(res.Passed)
	want := []string{"alice@example.com", "bob@example.com"}
	if len(res.Passed) != 2 || res.Passed[0] != want[0] || res.Passed[1] != want[1] {
		t.Fatalf("Passed = %v, want %v", res.Passed, want)
	}
}

func TestRunBatchAlternatingValidInvalid(t *testing.T) {
	// A large alternating batch keeps workers from earlier valid items in
	// flight while later invalid items are recorded on the caller goroutine.
	var items []string
	for i := 0; i < 100; i++ {
		items = append(items, fmt.Sprintf("user%d@example.com", i), fmt.Sprintf("bad-address-%d", i))
	}
	res := runBatch(context.Background(), items, 4, 0, ValidateEmail, func(ctx context.Context, item string) error {
		return nil
	})

	if res.Total != 200 {
		t.Fatalf("Total = %d, want 200", res.Total)
	}
	if res.Succeeded != 100 {
		t.Fatalf("Succeeded = %d, want 100", res.Succeeded)
	}
	if res.Failed != 100 {
		t.Fatalf("Failed = %d, want 100", res.Failed)
	}
	if res.Succeeded+res.Failed != res.Total {
		t.Fatalf("counts do not add up: %+v", res)
	}
	if len(res.Errors) != 100 {
		t.Fatalf("len(Errors) = %d, want 100", len(res.Errors))
	}
}

func TestRunBatchEmpty(t *testing.T) {
	res := runBatch(context.Background(), nil, 2, 0, ValidateEmail, func(ctx context.Context, item string) error {
		t.Fatal("fn called for empty batch")
		return nil
	})
	if res.Total != 0 || res.Succeeded != 0 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.err() != nil {
		t.Fatalf("err = %v, want nil", res.err())
	}
}

func TestBatchResultErr(t *testing.T) {
	ok := BatchResult{Total: 3, Succeeded: 3}
	if ok.err() != nil {
		t.Fatalf("err = %v for clean batch", ok.err())
	}
	bad := BatchResult{Total: 3, Succeeded: 1, Failed: 2}
	if bad.err() == nil {
		t.Fatal("expected error for partial failure")
	}
}

func TestRunBatchCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := runBatch(ctx, []string{"a@example.com", "b@example.com"}, 1, 0, nil, func(ctx context.Context, item string) error {
		return ctx.Err()
	})
	if res.Succeeded != 0 {
		t.Fatalf("Succeeded = %d with canceled context, want 0", res.Succeeded)
	}
	if res.Failed != 2 {
		t.Fatalf("Failed = %d, want 2", res.Failed)
	}
}
