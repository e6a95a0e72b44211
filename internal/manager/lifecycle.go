package manager

import (
	"fmt"

	"github.com/relaymesh/tunnelmgr/internal/tunnelset"
)

// randJitter samples a uniform random duration in [0, max) using the
// manager's own RNG. The RNG is shared mutable state, so it lives
// under the same lock that protects the sets.
func (m *Manager) randJitter(max int64) int64 {
	if max <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Int64N(max)
}

// invariantViolation panics with a descriptive message. An unexpected
// state reached in a transition switch is a bug, not flow control;
// the panic is recovered only at the top of each background
// goroutine's run loop so it can be logged before the process goes
// down.
func invariantViolation(rec *tunnelset.Record, where string) {
	panic(fmt.Sprintf("tunnelmgr: invariant violation: tunnel %s (id=%d) in unexpected state %s at %s",
		rec.URL, rec.ID, rec.State, where))
}

// recoverAndLog is deferred at the top of every background task
// goroutine. It logs a panic (an invariant violation or allocation
// failure) before re-raising it, so the failure is visible in logs
// but still terminates the process — these are bugs, not recoverable
// flow control.
func (m *Manager) recoverAndLog(task string) {
	if r := recover(); r != nil {
		m.log.Error("fatal error in background task, process will abort", "task", task, "error", r)
		panic(r)
	}
}

// free releases a record: if rec is Opening, defer destruction to the
// in-flight activate task by marking it Deleting; if it is already
// Deleting, a destruction is already in flight elsewhere and this
// call is a no-op; otherwise close the driver (unlocked — Close may
// block) and drop the handle.
//
// free does not touch set membership: callers are responsible for
// removing rec from whichever sets it belongs to before or after
// calling free, as appropriate to their own transition.
func (m *Manager) free(rec *tunnelset.Record) {
	m.mu.Lock()
	switch rec.State {
	case tunnelset.Opening:
		rec.State = tunnelset.Deleting
		m.mu.Unlock()
		return
	case tunnelset.Deleting:
		m.mu.Unlock()
		return
	default:
		handle := rec.Driver
		rec.Driver = nil
		m.mu.Unlock()
		m.driver.Close(handle)
		return
	}
}
