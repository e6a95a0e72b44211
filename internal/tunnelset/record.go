// Package tunnelset holds the per-tunnel state record and the ordered
// collections ("sets") that the manager keeps it in. Nothing in this
// package synchronizes access: every method assumes the caller already
// holds the manager's global lock.
package tunnelset

import "fmt"

// MaxURLLen bounds the length of a tunnel URL. The persistence format
// uses a space as a field separator, so URLs may not contain one.
const MaxURLLen = 1024

// InitAge is the starting age given to new and freshly-opened tunnels.
const InitAge = 16

// WeightMin and WeightMax bound a record's selection weight.
const (
	WeightMin = 0.005
	WeightMax = 1.0
)

// State is the lifecycle position of a Record.
type State int

const (
	Closed State = iota
	Opening
	Open
	Dead
	Closing
	Deleting
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Dead:
		return "dead"
	case Closing:
		return "closing"
	case Deleting:
		return "deleting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Record is the per-tunnel state record. A Record may be referenced
// from the cache set, the active set, or both simultaneously — when
// both, it is the same object, never a copy.
type Record struct {
	URL   string
	ID    uint16
	State State

	// Age is a persistence hysteresis counter in [0, 255]. It
	// decreases by one (saturating at 0) on a failed activation and
	// resets to InitAge on a successful open. Records with Age == 0
	// are omitted from persistence.
	Age uint8

	// Weight is the selection weight in [WeightMin, WeightMax].
	Weight float64

	// Reconnect is a re-entry guard: set true while a reconnect task
	// is in flight for this tunnel, so the reconnect controller never
	// starts a second one concurrently for the same tunnel.
	Reconnect bool

	// Driver is the opaque transport-driver handle, non-nil only
	// while State is Open, or while a background task is in the
	// middle of completing an Opening/Closing transition.
	Driver any
}

// New creates a Record in the Closed state with the given persisted
// age. Weight starts at WeightMax.
func New(url string, age uint8) *Record {
	return &Record{
		URL:    url,
		State:  Closed,
		Age:    age,
		Weight: WeightMax,
	}
}

// ClampWeight clamps w into [WeightMin, WeightMax].
func ClampWeight(w float64) float64 {
	if w < WeightMin {
		return WeightMin
	}
	if w > WeightMax {
		return WeightMax
	}
	return w
}
