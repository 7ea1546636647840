package engine

import (
	"context"
	"time"
)

// pollInterval is how often WaitAny re-checks the page.
var pollInterval = 250 * time.Millisecond

// WaitAny polls page until one of the selector groups matches and returns the
// index of the first matching group, or -1 when timeout expires first.
// Groups are checked in order on every poll, so an earlier group wins ties.
func WaitAny(ctx context.Context, page Page, groups [][]string, timeout time.Duration) (int, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if i := matchGroup(waitCtx, page, groups); i >= 0 {
			return i, nil
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return -1, err
			}
			return -1, nil
		case <-ticker.C:
		}
	}
}

func matchGroup(ctx context.Context, page Page, groups [][]string) int {
	for i, group := range groups {
		for _, sel := range group {
			ok, err := page.Has(ctx, sel)
			if err == nil && ok {
				return i
			}
		}
	}
	return -1
}
