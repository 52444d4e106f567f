// Package groutine starts named goroutines. The name shows up as a
// pprof label, which makes session poll loops and scan timers easy to
// tell apart in goroutine dumps.
package groutine

import (
	"context"
	"runtime/pprof"
)

// Go runs fn on a new goroutine labeled with name. A nil parent
// context falls back to context.Background().
func Go(parent context.Context, name string, fn func(ctx context.Context)) {
	if parent == nil {
		parent = context.Background()
	}
	go pprof.Do(parent, pprof.Labels("goroutine_name", name), fn)
}
