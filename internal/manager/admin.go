package manager

import (
	"strings"

	"github.com/relaymesh/tunnelmgr/internal/core"
	"github.com/relaymesh/tunnelmgr/internal/tunnelset"
)

// Add validates the URL and either creates a new Closed record or
// reuses an existing one (unless it is already Open or Opening, in
// which case the call is rejected). Either way it transitions the
// record to Opening, spawns an activate task, and persists the cache.
func (m *Manager) Add(url string) error {
	if err := m.validateURL(url); err != nil {
		m.log.Warn("rejecting add: invalid URL", "url", url, "error", err)
		return err
	}

	m.mu.Lock()
	rec := m.cache.Get(url)
	if rec == nil {
		rec = tunnelset.New(url, tunnelset.InitAge)
		rec.ID = m.allocID()
		m.cache.Insert(rec)
	} else if rec.State == tunnelset.Open || rec.State == tunnelset.Opening {
		m.mu.Unlock()
		m.log.Warn("rejecting add: tunnel already open or opening", "url", url)
		return &core.ErrAlreadyActive{URL: url}
	}
	rec.State = tunnelset.Opening
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runActivateTask(m.backgroundCtx(), rec)
	}()

	m.mu.Lock()
	m.persist()
	m.mu.Unlock()

	return nil
}

// Delete removes url from the active set first, unconditionally and
// before the resulting record's state is even inspected, then falls
// back to the cache.
//
// The same state-driven transition applies regardless of which set
// the record was found through, since an in-flight activate task can
// own a record that is only cache-resident (e.g. one added via Add
// and not yet promoted to active): Opening → Closing (the activate
// task finalises it to Closed once tryActivate returns); Closing and
// Deleting are left alone (already being torn down); Open is closed
// synchronously; a terminal Closed/Dead cache-only record is freed
// outright. Unknown URLs are logged and ignored.
func (m *Manager) Delete(url string) error {
	m.mu.Lock()

	rec := m.active.Delete(url)
	if rec == nil {
		rec = m.cache.Get(url)
	}
	if rec == nil {
		m.mu.Unlock()
		m.log.Warn("delete of unknown tunnel", "url", url)
		return &core.ErrTunnelNotFound{URL: url}
	}

	switch rec.State {
	case tunnelset.Opening:
		rec.State = tunnelset.Closing
		m.mu.Unlock()
	case tunnelset.Closing, tunnelset.Deleting:
		m.mu.Unlock()
	case tunnelset.Open:
		handle := rec.Driver
		m.mu.Unlock()
		m.driver.Close(handle)
		m.mu.Lock()
		rec.Driver = nil
		rec.State = tunnelset.Closed
		m.mu.Unlock()
	case tunnelset.Closed, tunnelset.Dead:
		m.cache.Delete(url)
		m.mu.Unlock()
		m.free(rec)
	default:
		m.mu.Unlock()
		invariantViolation(rec, "admin delete")
	}

	m.mu.Lock()
	m.persist()
	m.mu.Unlock()
	return nil
}

// Ready reports whether at least one tunnel is currently active.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.Len() > 0
}

// SetKind selects which set Snapshot enumerates.
type SetKind int

const (
	SetActive SetKind = iota
	SetCache
)

// Snapshot returns the URLs currently in the requested set, in
// current set order.
func (m *Manager) Snapshot(kind SetKind) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case SetActive:
		return m.active.URLs()
	default:
		return m.cache.URLs()
	}
}

// validateURL enforces the length bound and no-internal-spaces rule
// (the persistence format depends on space as a field separator),
// then delegates to the driver's own syntactic validator.
func (m *Manager) validateURL(url string) error {
	if len(url) == 0 || len(url) > tunnelset.MaxURLLen || strings.ContainsAny(url, " \t\n") {
		return &core.ErrInvalidURL{URL: url}
	}
	if err := m.driver.ParseURL(url); err != nil {
		return &core.ErrInvalidURL{URL: url}
	}
	return nil
}
