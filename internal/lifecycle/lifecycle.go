// Package lifecycle holds the process-wide shutting-down state.
package lifecycle

import (
	"sync/atomic"
	"time"
)

var shutdownStarted atomic.Int64 // unix nanos; 0 while serving

// BeginShutdown marks the process as draining. It reports false if shutdown had already
// begun. Call when SIGTERM/SIGINT is received.
func BeginShutdown() bool {
	return shutdownStarted.CompareAndSwap(0, time.Now().UnixNano())
}

// IsShuttingDown returns true once BeginShutdown has been called.
// Health handler returns 503 with status shutting-down while true.
func IsShuttingDown() bool {
	return shutdownStarted.Load() != 0
}

// ShutdownStartedAt returns when shutdown began, or the zero time while serving.
func ShutdownStartedAt() time.Time {
	n := shutdownStarted.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Reset returns to the serving state. For tests only.
func Reset() {
	shutdownStarted.Store(0)
}
