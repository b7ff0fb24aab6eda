package lifecycle

import (
	"testing"
	"time"
)

func TestIsShuttingDown_DefaultFalse(t *testing.T) {
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false by default")
	}
	if !ShutdownSince().IsZero() {
		t.Error("ShutdownSince() should be zero before shutdown")
	}
}

func TestBeginShutdown_FirstCallWins(t *testing.T) {
	defer SetShuttingDown(false)
	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !BeginShutdown(first) {
		t.Fatal("BeginShutdown() = false on first call")
	}
	if BeginShutdown(first.Add(time.Minute)) {
		t.Error("BeginShutdown() = true on second call")
	}
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after BeginShutdown")
	}
	if got := ShutdownSince(); !got.Equal(first) {
		t.Errorf("ShutdownSince() = %v, want %v", got, first)
	}
}

func TestSetShuttingDown_FalseResets(t *testing.T) {
	BeginShutdown(time.Now())
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after reset")
	}
	if !ShutdownSince().IsZero() {
		t.Error("ShutdownSince() not cleared by reset")
	}
}
