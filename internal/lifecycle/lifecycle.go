// Package lifecycle holds process-wide drain state read by the health endpoint.
package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	since        atomic.Int64
)

// BeginShutdown marks the process as draining. It reports whether this call
// started the drain; later calls keep the original start time.
func BeginShutdown(now time.Time) bool {
	if !shuttingDown.CompareAndSwap(false, true) {
		return false
	}
	since.Store(now.UnixNano())
	return true
}

// SetShuttingDown forces the flag. Clearing it also clears the start time.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
	if !v {
		since.Store(0)
	}
}

// IsShuttingDown reports whether the status server should refuse new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// ShutdownSince returns when BeginShutdown first ran, or zero.
func ShutdownSince() time.Time {
	n := since.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
