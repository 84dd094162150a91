package worker

import (
	"sync"
	"time"
)

// heartbeat is the background liveness unit that runs for the whole RUNNING
// window. It records nil-percent progress events ("still working") on the
// poll cadence. Failures to record are discarded: liveness reporting must
// never affect the task outcome.
type heartbeat struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// beforeAck, when set, runs after the stop signal is observed and
	// before the done ack. Tests use it to widen the stop/teardown race
	// window.
	beforeAck func()
}

// startHeartbeat launches the liveness goroutine for one task attempt.
// The write function is invoked once immediately and then on each tick.
func startHeartbeat(interval time.Duration, write func()) *heartbeat {
	hb := &heartbeat{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(hb.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			write()

			select {
			case <-hb.stop:
				if hb.beforeAck != nil {
					hb.beforeAck()
				}
				return
			case <-ticker.C:
			}
		}
	}()

	return hb
}

// stopAndWait signals the heartbeat to stop and waits up to timeout for the
// acknowledgement. The caller must not tear down the work dir until this
// returns, otherwise a late write could race the deletion. Returns false if
// the ack did not arrive in time. Safe to call more than once.
func (hb *heartbeat) stopAndWait(timeout time.Duration) bool {
	hb.stopOnce.Do(func() {
		close(hb.stop)
	})

	select {
	case <-hb.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
