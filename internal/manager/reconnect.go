package manager

import (
	"context"
	"time"

	"github.com/relaymesh/tunnelmgr/internal/tunnelset"
)

// runReconnectController polls the active set for timed-out tunnels
// and spawns a reconnect task for each one it finds, never more than
// one concurrently per tunnel (guarded by Record.Reconnect). It never
// exits on its own; only ctx cancellation stops it.
func (m *Manager) runReconnectController(ctx context.Context) {
	defer m.recoverAndLog("reconnect-controller")

	log := m.log.With("subsystem", "reconnect-controller")
	log.Info("starting")

	for {
		delay := m.cfg.ReconnectPollInterval + time.Duration(m.randJitter(int64(m.cfg.ReconnectPollJitter)))
		if !sleepCtx(ctx, delay) {
			return
		}

		now := time.Now().UnixNano()
		var toReconnect []string

		m.mu.Lock()
		for i := 0; i < m.active.Len(); i++ {
			rec := m.active.At(i)
			if rec.Reconnect {
				continue
			}
			if m.driver.Timeout(rec.Driver, now) {
				rec.Reconnect = true
				toReconnect = append(toReconnect, rec.URL)
			}
		}
		m.mu.Unlock()

		for _, url := range toReconnect {
			m.wg.Add(1)
			go func(url string) {
				defer m.wg.Done()
				m.runReconnectTask(ctx, url)
			}(url)
		}
	}
}

// runReconnectTask builds a fresh record for url, activates it, and
// atomically swaps it in for the old instance in both sets. The
// `reconnect` guard on the *old* record is only ever cleared by that
// record being freed — on the success path via the displaced-old-
// record free below, on the failure path because the *new* record
// (marked Dead) was never flagged true to begin with.
func (m *Manager) runReconnectTask(ctx context.Context, url string) {
	defer m.recoverAndLog("reconnect-task")

	log := m.log.With("subsystem", "reconnect-task", "url", url)

	next := tunnelset.New(url, tunnelset.InitAge)
	next.State = tunnelset.Opening
	m.mu.Lock()
	next.ID = m.allocID()
	m.mu.Unlock()

	outcome := m.tryActivate(ctx, next)

	if outcome == outcomeOpened {
		m.mu.Lock()
		next.State = tunnelset.Open
		activeOld := m.active.Replace(next)
		cacheOld := m.cache.Replace(next)
		m.mu.Unlock()

		switch {
		case activeOld != nil:
			m.free(activeOld)
			log.Info("reconnected, old instance replaced")
			m.tel.ObserveReconnect(true)
		case cacheOld != nil:
			// Only the cache held a reference: an admin op removed
			// it from active concurrently. The new instance never
			// made it live; tear it down.
			m.mu.Lock()
			handle := next.Driver
			next.Driver = nil
			next.State = tunnelset.Dead
			m.mu.Unlock()
			m.driver.Close(handle)
			m.free(cacheOld)
			log.Info("reconnect raced with admin removal, deactivated")
			m.tel.ObserveReconnect(false)
		default:
			// Neither set had the URL any more: deactivated
			// concurrently by an admin op. Discard the new instance.
			m.free(next)
			log.Info("reconnect target no longer tracked, discarding new instance")
			m.tel.ObserveReconnect(false)
		}
	} else {
		m.mu.Lock()
		m.active.Delete(url)
		handle := next.Driver
		next.Driver = nil
		next.State = tunnelset.Dead
		m.mu.Unlock()
		m.driver.Close(handle)
		m.free(next)
		log.Warn("reconnect failed")
		m.tel.ObserveReconnect(false)
	}

	m.mu.Lock()
	m.persist()
	m.mu.Unlock()
}
