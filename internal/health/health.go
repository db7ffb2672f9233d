// Package health provides readiness checks for the feed service's backing stores.
package health

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single dependency check.
const DefaultTimeout = 2 * time.Second

// withTimeout applies DefaultTimeout unless ctx already has an earlier deadline.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < DefaultTimeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}
