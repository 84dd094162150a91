package worker

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestHeartbeatWritesOnCadence(t *testing.T) {
	var writes atomic.Int64
	hb := startHeartbeat(10*time.Millisecond, func() {
		writes.Add(1)
	})

	time.Sleep(60 * time.Millisecond)
	if !hb.stopAndWait(time.Second) {
		t.Fatal("heartbeat did not acknowledge stop")
	}

	if got := writes.Load(); got < 2 {
		t.Errorf("expected at least 2 heartbeat writes, got %d", got)
	}
}

func TestHeartbeatNoWritesAfterJoin(t *testing.T) {
	var writes atomic.Int64
	hb := startHeartbeat(5*time.Millisecond, func() {
		writes.Add(1)
	})

	time.Sleep(20 * time.Millisecond)
	if !hb.stopAndWait(time.Second) {
		t.Fatal("heartbeat did not acknowledge stop")
	}

	settled := writes.Load()
	time.Sleep(30 * time.Millisecond)
	if got := writes.Load(); got != settled {
		t.Errorf("heartbeat wrote after join: %d -> %d", settled, got)
	}
}

func TestHeartbeatStopWaitsForDelayedAck(t *testing.T) {
	var writes atomic.Int64
	hb := startHeartbeat(5*time.Millisecond, func() {
		writes.Add(1)
	})
	// Widen the window between the stop signal and the done ack so a
	// premature teardown would be observable.
	hb.beforeAck = func() {
		time.Sleep(50 * time.Millisecond)
	}

	start := time.Now()
	if !hb.stopAndWait(time.Second) {
		t.Fatal("heartbeat did not acknowledge stop")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("stopAndWait returned in %s, before the delayed ack", elapsed)
	}

	settled := writes.Load()
	time.Sleep(30 * time.Millisecond)
	if got := writes.Load(); got != settled {
		t.Errorf("heartbeat wrote after delayed join: %d -> %d", settled, got)
	}
}

func TestHeartbeatStopTimesOut(t *testing.T) {
	hb := startHeartbeat(5*time.Millisecond, func() {})
	hb.beforeAck = func() {
		time.Sleep(200 * time.Millisecond)
	}

	if hb.stopAndWait(10 * time.Millisecond) {
		t.Error("expected stopAndWait to time out while ack was delayed")
	}
	// The goroutine still finishes; a second wait succeeds.
	if !hb.stopAndWait(time.Second) {
		t.Error("second stopAndWait should observe the ack")
	}
}

func TestHeartbeatStopIdempotent(t *testing.T) {
	hb := startHeartbeat(5*time.Millisecond, func() {})
	if !hb.stopAndWait(time.Second) {
		t.Fatal("first stop failed")
	}
	if !hb.stopAndWait(time.Second) {
		t.Fatal("second stop failed")
	}
}
