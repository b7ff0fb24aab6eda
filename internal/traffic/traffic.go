// Package traffic keeps short sliding windows of backend call outcomes and
// status server denials. The health endpoint reads them.
package traffic

import (
	"sync"
	"time"
)

// retention caps how far back any window can look.
const retention = 5 * time.Minute

var defaultTracker = New()

// RecordSuccess records a backend call that got a usable answer.
func RecordSuccess() { defaultTracker.RecordSuccess() }

// RecordError records a backend call that failed (transport, 5xx, malformed body).
func RecordError() { defaultTracker.RecordError() }

// RecordDenied records a status server rate-limit denial.
func RecordDenied() { defaultTracker.RecordDenied() }

// ErrorRate returns backend (errors, errors+successes) within window.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// DenialCount returns status server denials within window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// Reset clears the default tracker. For tests.
func Reset() { defaultTracker.Reset() }

// Tracker holds outcome timestamps, oldest first.
type Tracker struct {
	mu        sync.Mutex
	now       func() time.Time
	successes []time.Time
	errors    []time.Time
	denials   []time.Time
}

// New returns an empty tracker on the wall clock.
func New() *Tracker {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty tracker reading time from now.
func NewWithClock(now func() time.Time) *Tracker {
	return &Tracker{now: now}
}

func (t *Tracker) RecordSuccess() { t.record(&t.successes) }

func (t *Tracker) RecordError() { t.record(&t.errors) }

func (t *Tracker) RecordDenied() { t.record(&t.denials) }

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// ErrorRate returns (errors, errors+successes) within window.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errors = countSince(t.errors, cutoff)
	return errors, errors + countSince(t.successes, cutoff)
}

// DenialCount returns denials within window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.denials, t.now().Add(-window))
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes, t.errors, t.denials = nil, nil, nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops entries older than retention. Caller holds t.mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	for _, slice := range []*[]time.Time{&t.successes, &t.errors, &t.denials} {
		times := *slice
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
}
