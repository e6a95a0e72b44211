// Package manager implements the tunnel manager core: the lifecycle
// state machine, the reconnect controller, the weighted selector, and
// the administrative surface, all bundled into a single Manager
// object constructed once at startup so multiple instances can
// coexist in tests.
package manager

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relaymesh/tunnelmgr/internal/core"
	"github.com/relaymesh/tunnelmgr/internal/store"
	"github.com/relaymesh/tunnelmgr/internal/tunnelset"
)

// HistorySize is the number of slots in the flow-history table.
const HistorySize = 1024

// MaxInitOpen is the target size of the active set at steady state.
const MaxInitOpen = 8

// MaxRetries bounds the number of open attempts per activation.
const MaxRetries = 3

// historyEntry is one flow-history slot: the last hash and tunnel id
// selected for that slot.
type historyEntry struct {
	hash uint32
	id   uint16
	set  bool
}

// Config bundles the manager's tunable knobs. Zero-value fields other
// than CachePath are replaced with the compiled defaults in New.
type Config struct {
	CachePath string

	MaxInitOpen int
	MaxRetries  int
	HistorySize int

	ActivateBase       time.Duration // backoff base delay (default 10s)
	ActivateJitter     time.Duration // backoff jitter window (default 1s)
	ActivateMultiplier int64         // backoff multiplier (default 6)

	ActivateScanInterval time.Duration // sleep between activate-manager scans (default 150s)
	ActivateScanJitter   time.Duration // added stagger window (default 10s)

	ReconnectPollInterval time.Duration // sleep between reconnect polls (default 1s)
	ReconnectPollJitter   time.Duration // added jitter window (default 1s)

	PunishFactor float64 // default 0.75
	RewardFactor float64 // default 1.15

	ConfiguredMTU int // passed to Driver.MTU
}

func (c *Config) setDefaults() {
	if c.MaxInitOpen == 0 {
		c.MaxInitOpen = MaxInitOpen
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = MaxRetries
	}
	if c.HistorySize == 0 {
		c.HistorySize = HistorySize
	}
	if c.ActivateBase == 0 {
		c.ActivateBase = 10 * time.Second
	}
	if c.ActivateJitter == 0 {
		c.ActivateJitter = 1 * time.Second
	}
	if c.ActivateMultiplier == 0 {
		c.ActivateMultiplier = 6
	}
	if c.ActivateScanInterval == 0 {
		c.ActivateScanInterval = 150 * time.Second
	}
	if c.ActivateScanJitter == 0 {
		c.ActivateScanJitter = 10 * time.Second
	}
	if c.ReconnectPollInterval == 0 {
		c.ReconnectPollInterval = 1 * time.Second
	}
	if c.ReconnectPollJitter == 0 {
		c.ReconnectPollJitter = 1 * time.Second
	}
	if c.PunishFactor == 0 {
		c.PunishFactor = 0.75
	}
	if c.RewardFactor == 0 {
		c.RewardFactor = 1.15
	}
	if c.ConfiguredMTU == 0 {
		c.ConfiguredMTU = 1500
	}
}

// Telemetry receives selection/lifecycle events. A nil Telemetry is
// valid; every method is a no-op guard in Manager.
type Telemetry interface {
	ObservePick(punished, rewarded bool)
	ObserveActivate(success bool)
	ObserveReconnect(success bool)
}

// Manager bundles the global lock, both tunnel sets, the RNG, the
// flow-history table and the monotonic id counter. Construct one with
// New and run it with Run.
type Manager struct {
	cfg    Config
	driver core.Driver
	log    *slog.Logger
	tel    Telemetry

	mu      sync.Mutex
	cache   tunnelset.Set
	active  tunnelset.Set
	history []historyEntry
	nextID  uint16
	rng     *rand.Rand
	runCtx  context.Context

	wg sync.WaitGroup
}

// nopTelemetry satisfies Telemetry without recording anything.
type nopTelemetry struct{}

func (nopTelemetry) ObservePick(_, _ bool)  {}
func (nopTelemetry) ObserveActivate(_ bool) {}
func (nopTelemetry) ObserveReconnect(_ bool) {}

// New constructs a Manager. driver must not be nil. A nil tel is
// replaced with a no-op implementation.
func New(cfg Config, driver core.Driver, tel Telemetry) *Manager {
	cfg.setDefaults()
	if tel == nil {
		tel = nopTelemetry{}
	}
	return &Manager{
		cfg:     cfg,
		driver:  driver,
		log:     slog.Default().With("component", "tunnel-manager"),
		tel:     tel,
		history: make([]historyEntry, cfg.HistorySize),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Init loads the cache file (startup sequence step "file_read") into
// the cache set. Decode problems are logged during load; Init itself
// returns nothing. It must be called before Run.
func (m *Manager) Init() {
	entries := store.Read(m.cfg.CachePath)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		rec := tunnelset.New(e.URL, e.Age)
		rec.ID = m.allocID()
		m.cache.Insert(rec)
	}
	m.log.Info("cache loaded", "path", m.cfg.CachePath, "tunnels", len(entries))
}

// allocID returns the next process-unique 16-bit id. Must be called
// with mu held.
func (m *Manager) allocID() uint16 {
	id := m.nextID
	m.nextID++
	return id
}

// Run starts the activate manager and the reconnect controller and
// blocks until ctx is cancelled or either exits with an error, then
// waits for every in-flight background task (activate/reconnect
// tasks spawned along the way) to finish.
func (m *Manager) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	m.mu.Lock()
	m.runCtx = egCtx
	m.mu.Unlock()

	eg.Go(func() error {
		m.runActivateManager(egCtx)
		return nil
	})
	eg.Go(func() error {
		m.runReconnectController(egCtx)
		return nil
	})

	err := eg.Wait()
	m.wg.Wait() // drain any activate/reconnect tasks still in flight
	return err
}

// persist writes the current cache contents to disk. Called with mu
// held for the whole operation; directory I/O is assumed bounded.
func (m *Manager) persist() {
	entries := make([]store.Entry, 0, m.cache.Len())
	m.cache.Each(func(r *tunnelset.Record) {
		entries = append(entries, store.Entry{URL: r.URL, Age: r.Age})
	})
	store.Write(m.cfg.CachePath, entries)
}

// backgroundCtx returns the context background tasks spawned outside
// of Run's own fan-out (e.g. Add's activate task) should use: the
// context Run is currently running under, or context.Background() if
// Run has not started yet (e.g. in tests that call Add directly).
func (m *Manager) backgroundCtx() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runCtx != nil {
		return m.runCtx
	}
	return context.Background()
}

// sleepCtx blocks for d or until ctx is done, reporting which.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
