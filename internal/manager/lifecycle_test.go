package manager

import (
	"testing"

	"github.com/relaymesh/tunnelmgr/internal/driver/faketest"
	"github.com/relaymesh/tunnelmgr/internal/tunnelset"
)

func TestFreeOnOpeningDefersToDeleting(t *testing.T) {
	drv := faketest.New()
	m := newTestManager(t, drv)

	rec := tunnelset.New("chisel://host:1/1", tunnelset.InitAge)
	rec.State = tunnelset.Opening

	m.free(rec)

	if rec.State != tunnelset.Deleting {
		t.Fatalf("expected Deleting, got %s", rec.State)
	}
}

func TestFreeOnDeletingIsNoop(t *testing.T) {
	drv := faketest.New()
	m := newTestManager(t, drv)

	rec := tunnelset.New("chisel://host:1/1", tunnelset.InitAge)
	rec.State = tunnelset.Deleting

	m.free(rec)

	if rec.State != tunnelset.Deleting {
		t.Fatalf("expected state to remain Deleting, got %s", rec.State)
	}
	if drv.CloseCalls() != 0 {
		t.Fatal("expected no Close call for an already-Deleting record")
	}
}

func TestFreeOnClosedClosesDriver(t *testing.T) {
	drv := faketest.New()
	m := newTestManager(t, drv)

	rec := tunnelset.New("chisel://host:1/1", tunnelset.InitAge)
	rec.State = tunnelset.Closed
	rec.Driver = &faketest.Session{URL: rec.URL}

	m.free(rec)

	if drv.CloseCalls() != 1 {
		t.Fatalf("expected exactly one Close call, got %d", drv.CloseCalls())
	}
	if rec.Driver != nil {
		t.Fatal("expected driver handle cleared")
	}
}

func TestInvariantViolationPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected invariantViolation to panic")
		}
	}()
	invariantViolation(tunnelset.New("chisel://host:1/1", 0), "test")
}

func TestRecoverAndLogRePanics(t *testing.T) {
	drv := faketest.New()
	m := newTestManager(t, drv)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected the panic to be re-raised after logging")
		}
	}()

	func() {
		defer m.recoverAndLog("test-task")
		panic("boom")
	}()
}

func TestRandJitterZeroMaxReturnsZero(t *testing.T) {
	drv := faketest.New()
	m := newTestManager(t, drv)
	if got := m.randJitter(0); got != 0 {
		t.Fatalf("expected 0 for max<=0, got %d", got)
	}
}

func TestRandJitterBounded(t *testing.T) {
	drv := faketest.New()
	m := newTestManager(t, drv)
	for i := 0; i < 100; i++ {
		got := m.randJitter(1000)
		if got < 0 || got >= 1000 {
			t.Fatalf("jitter %d out of bounds [0, 1000)", got)
		}
	}
}
