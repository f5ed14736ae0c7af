package tools

import (
	"context"
	"log"
)

// TaskFunc is a unit of background work.
type TaskFunc func(ctx context.Context) error

// Dispatch runs the task in a separate goroutine, fire-and-forget. Used for
// best-effort cleanup that must never block or fail the primary operation;
// an error is logged under the given name and dropped.
func Dispatch(ctx context.Context, name string, fn TaskFunc) {
	go func() {
		if err := fn(ctx); err != nil {
			log.Printf("[WARN] %s: %v", name, err)
		}
	}()
}
