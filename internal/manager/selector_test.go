package manager

import (
	"testing"

	"github.com/relaymesh/tunnelmgr/internal/driver/faketest"
	"github.com/relaymesh/tunnelmgr/internal/tunnelset"
)

func activeRecord(id uint16, weight float64) *tunnelset.Record {
	return &tunnelset.Record{ID: id, State: tunnelset.Open, Weight: weight}
}

func TestSelectNilOnEmptyActiveSet(t *testing.T) {
	m := newTestManager(t, faketest.New())
	if rec := m.Select(12345, 0); rec != nil {
		t.Fatalf("expected nil on empty active set, got %v", rec)
	}
}

func TestSelectIsDeterministicForSameHash(t *testing.T) {
	m := newTestManager(t, faketest.New())
	m.active.Insert(activeRecord(1, 1.0))
	m.active.Insert(activeRecord(2, 1.0))
	m.active.Insert(activeRecord(3, 1.0))

	first := m.Select(0xABCD1234, 0)
	if first == nil {
		t.Fatal("expected a selection")
	}

	// The hash lands in its history slot and records the chosen id.
	slot := int(uint64(0xABCD1234) % uint64(len(m.history)))
	if !m.history[slot].set || m.history[slot].id != first.ID {
		t.Fatalf("expected history slot %d to record id %d, got %+v", slot, first.ID, m.history[slot])
	}

	// Every weight is at the 1.0 ceiling, so the reward leaves the
	// weights unchanged and an identical repeat-0 call picks the same
	// tunnel again.
	if again := m.Select(0xABCD1234, 0); again != first {
		t.Fatalf("expected the same tunnel on an identical repeat-0 call, got id %d, want %d", again.ID, first.ID)
	}
}

func TestSelectPunishesRetransmitCollision(t *testing.T) {
	m := newTestManager(t, faketest.New())
	bad := activeRecord(1, 1.0)
	good := activeRecord(2, 1.0)
	m.active.Insert(bad)
	m.active.Insert(good)

	hash := uint64(42)
	first := m.Select(hash, 0)
	if first == nil {
		t.Fatal("expected a selection")
	}
	startWeight := first.Weight

	// Same hash, repeat != 0: simulates a retransmit of a packet that
	// collided in the history table, which should punish whichever
	// record was selected for that slot last time.
	m.Select(hash, 1)

	if first.Weight >= startWeight {
		t.Fatalf("expected punished record's weight to drop below %v, got %v", startWeight, first.Weight)
	}
}

func TestSelectClampsWeightAtFloor(t *testing.T) {
	m := newTestManager(t, faketest.New())
	rec := activeRecord(1, tunnelset.WeightMin)
	m.active.Insert(rec)

	hash := uint64(7)
	m.Select(hash, 0)
	for i := 0; i < 20; i++ {
		m.Select(hash, uint32(i+1))
	}

	if rec.Weight < tunnelset.WeightMin {
		t.Fatalf("expected weight to stay clamped at floor %v, got %v", tunnelset.WeightMin, rec.Weight)
	}
}

func TestSelectClampsWeightAtCeiling(t *testing.T) {
	m := newTestManager(t, faketest.New())
	rec := activeRecord(1, tunnelset.WeightMax)
	m.active.Insert(rec)

	for i := 0; i < 17; i++ {
		m.Select(uint64(i*9999), 0)
	}

	if rec.Weight > tunnelset.WeightMax {
		t.Fatalf("expected weight to stay clamped at ceiling %v, got %v", tunnelset.WeightMax, rec.Weight)
	}
}
