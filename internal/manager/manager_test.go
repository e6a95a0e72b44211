package manager

import (
	"context"
	"testing"
	"time"

	"github.com/relaymesh/tunnelmgr/internal/driver/faketest"
	"github.com/relaymesh/tunnelmgr/internal/store"
)

// TestColdStartActivatesUpToMaxInitOpen exercises the startup scenario:
// nine cached tunnels, one of which always fails to open, should
// settle at MaxInitOpen=8 active tunnels with the activate manager
// exiting once it reaches steady state.
func TestColdStartActivatesUpToMaxInitOpen(t *testing.T) {
	drv := faketest.New()
	badURL := "chisel://bad:1/1"
	drv.OpenFailures = map[string]int{badURL: -1}

	cachePath := t.TempDir() + "/tunnels.cache"
	var entries []store.Entry
	entries = append(entries, store.Entry{URL: badURL, Age: 16})
	for i := 0; i < 8; i++ {
		entries = append(entries, store.Entry{URL: urlFor(i), Age: 16})
	}
	store.Write(cachePath, entries)

	cfg := Config{
		CachePath:            cachePath,
		MaxInitOpen:          8,
		MaxRetries:           2,
		ActivateBase:         time.Millisecond,
		ActivateJitter:       time.Millisecond,
		ActivateScanInterval: 5 * time.Millisecond,
		ActivateScanJitter:   time.Millisecond,
	}
	m := New(cfg, drv, nil)
	m.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.runActivateManager(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("activate manager did not reach steady state in time")
	}
	m.wg.Wait()

	if got := m.Snapshot(SetActive); len(got) != 8 {
		t.Fatalf("expected 8 active tunnels, got %d: %v", len(got), got)
	}
}

func urlFor(i int) string {
	return "chisel://good" + string(rune('a'+i)) + ":1/1"
}
