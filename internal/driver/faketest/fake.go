// Package faketest provides a hand-written core.Driver fake for unit
// tests: no mocking library, just a struct with injectable behaviour
// and a recorded call log.
package faketest

import (
	"context"
	"fmt"
	"sync"
)

// Session is the fake's handle type, exported so tests can inspect it
// directly via a type assertion.
type Session struct {
	URL    string
	Closed bool
}

// Driver is a core.Driver fake. A Driver from New behaves like an
// always-succeeding driver with a 1500-byte MTU and no timeouts; set
// the exported fields to inject failures. The zero value is not ready
// for use: its Open writes to a nil map and its MTU returns 0.
type Driver struct {
	mu sync.Mutex

	// OpenFailures is the number of leading Open calls (per URL) that
	// return OpenErr before one finally succeeds. 0 means never fail.
	OpenFailures map[string]int
	OpenErr      error

	// WriteErr, if set, is returned by every Write call.
	WriteErr error

	// MTUValue is returned by MTU as is; 0 is the "send impossible"
	// response.
	MTUValue int

	// TimedOut, if set, is consulted by Timeout for the given URL.
	TimedOut map[string]bool

	// ParseErr, if set, is returned by ParseURL for URLs in this set.
	ParseErr map[string]error

	openCalls  []string
	closeCalls int
	writeCalls int
	attempts   map[string]int
}

// New constructs a Driver with a default MTU of 1500.
func New() *Driver {
	return &Driver{
		MTUValue: 1500,
		attempts: make(map[string]int),
	}
}

// Open implements core.Driver. It fails OpenFailures[url] times before
// succeeding (or forever, if OpenFailures[url] is negative).
func (d *Driver) Open(ctx context.Context, url string) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.openCalls = append(d.openCalls, url)
	d.attempts[url]++

	if n, ok := d.OpenFailures[url]; ok && (n < 0 || d.attempts[url] <= n) {
		if d.OpenErr != nil {
			return nil, d.OpenErr
		}
		return nil, fmt.Errorf("faketest: open %s: injected failure", url)
	}

	return &Session{URL: url}, nil
}

// Close marks the session closed. A nil handle is a no-op.
func (d *Driver) Close(h any) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeCalls++
	h.(*Session).Closed = true
}

// Write records the call and returns WriteErr.
func (d *Driver) Write(h any, packet []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeCalls++
	return d.WriteErr
}

// MTU returns MTUValue unconditionally.
func (d *Driver) MTU(h any, configuredMTU int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.MTUValue
}

// FragmentationRequired is a no-op; it records nothing.
func (d *Driver) FragmentationRequired(h any, mtu int, original []byte) {}

// Timeout reports TimedOut[session.URL].
func (d *Driver) Timeout(h any, now int64) bool {
	if h == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.TimedOut[h.(*Session).URL]
}

// ParseURL returns ParseErr[url] if present, else nil.
func (d *Driver) ParseURL(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ParseErr[url]
}

// OpenCalls returns the URLs passed to Open, in call order.
func (d *Driver) OpenCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.openCalls))
	copy(out, d.openCalls)
	return out
}

// CloseCalls returns how many times Close was called.
func (d *Driver) CloseCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeCalls
}

// WriteCalls returns how many times Write was called.
func (d *Driver) WriteCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeCalls
}
