package bot

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the aggregate status of a multi-item membership operation.
// Side effects of succeeded items are not rolled back when others fail.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int
	Passed    []string
	Errors    map[string]error
}

func (r BatchResult) err() error {
	if r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("batch: %d of %d items failed", r.Failed, r.Total)
}

// ValidateEmail rejects malformed addresses before any remote call is made.
func ValidateEmail(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("email is required")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("malformed email %q", addr)
	}
	if parsed.Address != addr {
		return fmt.Errorf("malformed email %q", addr)
	}
	return nil
}

// runBatch processes items with bounded concurrency and a fixed inter-item
// pacing delay, so multi-address operations respect platform rate limits
// instead of fanning out unbounded. Items failing validation fail
// individually without aborting the batch.
func runBatch(ctx context.Context, items []string, maxConc int, pace time.Duration, validate func(string) error, fn func(ctx context.Context, item string) error) BatchResult {
	result := BatchResult{
		Total:  len(items),
		Errors: make(map[string]error),
	}
	if maxConc <= 0 {
		maxConc = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConc)

	// Workers from earlier items may still be running while later items are
	// validated and paced here, so every result write goes through mu.
	fail := func(item string, err error) {
		mu.Lock()
		result.Failed++
		result.Errors[item] = err
		mu.Unlock()
	}

	for i, item := range items {
		if validate != nil {
			if err := validate(item); err != nil {
				fail(item, err)
				continue
			}
		}
		if i > 0 && pace > 0 {
			if err := sleepWithContext(ctx, pace); err != nil {
				fail(item, err)
				continue
			}
		}
		item := item
		g.Go(func() error {
			if err := fn(gctx, item); err != nil {
				fail(item, err)
				return nil
			}
			mu.Lock()
			result.Succeeded++
			result.Passed = append(result.Passed, item)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return result
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
