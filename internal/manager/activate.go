package manager

import (
	"context"
	"time"

	"github.com/relaymesh/tunnelmgr/internal/backoff"
	"github.com/relaymesh/tunnelmgr/internal/tunnelset"
)

// activateOutcome is the tri-state result of tryActivate. A plain
// success/failure boolean is not enough once the record's state can
// flip away from Opening mid-loop; the caller's finalisation switch
// still keys off the state itself as the source of truth.
type activateOutcome int

const (
	outcomeOpened activateOutcome = iota
	outcomeFailed
	outcomeAborted // state changed away from Opening mid-loop (admin intervention)
)

// runActivateManager starts initial openings. It repeatedly scans the
// cache for Closed candidates (up to cfg.MaxInitOpen - len(active) + 1
// per round), spawns an activate task for each, then sleeps
// cfg.ActivateScanInterval + jitter. It exits once a round finds no
// candidate and the active set has already reached cfg.MaxInitOpen.
func (m *Manager) runActivateManager(ctx context.Context) {
	defer m.recoverAndLog("activate-manager")

	log := m.log.With("subsystem", "activate-manager")
	log.Info("starting")

	for {
		if ctx.Err() != nil {
			return
		}

		found := m.scanAndSpawn(ctx)

		m.mu.Lock()
		steadyState := m.active.Len() >= m.cfg.MaxInitOpen
		m.mu.Unlock()

		if !found && steadyState {
			log.Info("reached steady state, exiting")
			return
		}

		stagger := m.randJitter(int64(m.cfg.ActivateScanJitter))
		if !sleepCtx(ctx, m.cfg.ActivateScanInterval+time.Duration(stagger)) {
			return
		}
	}
}

// scanAndSpawn performs one scan round and reports whether any
// candidate was found.
func (m *Manager) scanAndSpawn(ctx context.Context) bool {
	m.mu.Lock()
	budget := m.cfg.MaxInitOpen - m.active.Len() + 1
	var candidates []*tunnelset.Record
	if budget > 0 {
		for i := 0; i < m.cache.Len() && len(candidates) < budget; i++ {
			rec := m.cache.At(i)
			if rec.State == tunnelset.Closed {
				rec.State = tunnelset.Opening
				candidates = append(candidates, rec)
			}
		}
	}
	m.mu.Unlock()

	for _, rec := range candidates {
		m.wg.Add(1)
		go func(rec *tunnelset.Record) {
			defer m.wg.Done()
			m.runActivateTask(ctx, rec)
		}(rec)
	}

	return len(candidates) > 0
}

// runActivateTask performs tryActivate, then finalises the record's
// state under the lock according to where it landed, and finally
// persists the cache.
func (m *Manager) runActivateTask(ctx context.Context, rec *tunnelset.Record) {
	defer m.recoverAndLog("activate-task")

	log := m.log.With("subsystem", "activate-task", "url", rec.URL, "id", rec.ID)

	outcome := m.tryActivate(ctx, rec)

	m.mu.Lock()
	switch rec.State {
	case tunnelset.Deleting:
		// Promote to Open momentarily so free() takes its "close the
		// driver and destroy" branch instead of its Deleting no-op.
		rec.State = tunnelset.Open
		m.mu.Unlock()
		m.free(rec)
		log.Info("activation finalized into deletion")

	case tunnelset.Closing:
		handle := rec.Driver
		m.mu.Unlock()
		m.driver.Close(handle)
		m.mu.Lock()
		rec.Driver = nil
		rec.State = tunnelset.Closed
		m.mu.Unlock()
		log.Info("activation cancelled by delete, tunnel closed")

	case tunnelset.Opening:
		switch outcome {
		case outcomeOpened:
			rec.State = tunnelset.Open
			rec.Age = tunnelset.InitAge
			m.active.Insert(rec)
			m.mu.Unlock()
			m.tel.ObserveActivate(true)
			log.Info("tunnel activated")
		default: // outcomeFailed or outcomeAborted-but-state-still-Opening
			rec.State = tunnelset.Dead
			if rec.Age > 0 {
				rec.Age--
			}
			m.mu.Unlock()
			m.tel.ObserveActivate(false)
			log.Info("activation gave up, tunnel marked dead", "age", rec.Age)
		}

	default:
		m.mu.Unlock()
		invariantViolation(rec, "activate-task finalisation")
	}

	m.mu.Lock()
	m.persist()
	m.mu.Unlock()
}

// tryActivate attempts to open rec's driver handle, making up to
// cfg.MaxRetries attempts in total with jittered exponential backoff
// between them (base
// cfg.ActivateBase, multiplier cfg.ActivateMultiplier). It aborts
// early if rec's state is observed to no longer be Opening (an admin
// operation intervened). The driver's Open call always runs without
// the lock held; only the jitter sample is taken under lock.
func (m *Manager) tryActivate(ctx context.Context, rec *tunnelset.Record) activateOutcome {
	bo := backoff.New(m.cfg.ActivateBase, 0, m.cfg.ActivateMultiplier)

	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		m.mu.Lock()
		state := rec.State
		m.mu.Unlock()
		if state != tunnelset.Opening {
			return outcomeAborted
		}

		handle, err := m.driver.Open(ctx, rec.URL)
		if err == nil {
			m.mu.Lock()
			rec.Driver = handle
			m.mu.Unlock()
			return outcomeOpened
		}

		if attempt == m.cfg.MaxRetries-1 {
			break
		}

		delay := bo.Next() + time.Duration(m.randJitter(int64(m.cfg.ActivateJitter)))
		if !sleepCtx(ctx, delay) {
			return outcomeAborted
		}
	}

	return outcomeFailed
}
