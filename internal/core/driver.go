// Package core declares the domain-layer boundary between the tunnel
// manager and the opaque transport it relays packets through.
// Infrastructure adapters (internal/driver/...) implement Driver;
// internal/manager consumes it.
package core

import "context"

// Driver is the transport-driver boundary consumed by the manager.
// The concrete tunnel protocol — URL parsing, handshake, framing, MTU
// discovery, packet write, timeout query, close — lives entirely on
// the other side of this interface.
//
// Handle is an opaque, driver-defined session object. The manager
// never inspects it; it only stores it on a Record and passes it back
// to Close/Write/MTU/FragmentationRequired/Timeout.
type Driver interface {
	// Open establishes a session for url. It blocks until the
	// session is ready or establishment fails. Open must be safe to
	// call without the manager's lock held.
	Open(ctx context.Context, url string) (handle any, err error)

	// Close tears down handle. Close must be idempotent for a nil
	// handle (a no-op).
	Close(handle any)

	// Write sends one IP packet over handle.
	Write(handle any, packet []byte) error

	// MTU returns the usable MTU for handle given the locally
	// configured MTU. A return of 0 signals "send is currently
	// impossible".
	MTU(handle any, configuredMTU int) int

	// FragmentationRequired notifies the driver that a packet
	// exceeded mtu; the driver owns the downgrade response (e.g.
	// emitting an ICMP "fragmentation needed" back upstream).
	FragmentationRequired(handle any, mtu int, original []byte)

	// Timeout reports whether the session behind handle has timed
	// out as of now and should be reconnected.
	Timeout(handle any, now int64) bool

	// ParseURL syntactically validates url with no side effects.
	ParseURL(url string) error
}
