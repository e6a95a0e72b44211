package manager

import (
	"github.com/relaymesh/tunnelmgr/internal/tunnelset"
)

// Select performs the per-packet weighted pick. The caller must hold
// m.mu. It returns nil if the active set is empty.
//
// Steps:
//  1. slot = hash mod HistorySize; h32 = (hash>>32) xor (hash&0xffffffff)
//  2. wh = h32 * (repeat+1), 32-bit wraparound multiplication
//  3. total = sum of active weights
//  4. pick = (wh / 2^32) * total
//  5. walk active left-to-right subtracting weights; stop at the
//     first index where pick < weight[i]
//  6. if repeat != 0 and history[slot].hash == h32: punish the
//     record with that id (x0.75, clamped); if it's the current
//     candidate, advance the candidate index by one (mod len(active))
//  7. reward the (possibly advanced) candidate (x1.15, clamped)
//  8. history[slot] = (h32, candidate.id)
func (m *Manager) Select(hash uint64, repeat uint32) *tunnelset.Record {
	if m.active.Len() == 0 {
		return nil
	}

	slot := int(hash % uint64(len(m.history)))
	h32 := uint32(hash>>32) ^ uint32(hash&0xffffffff)
	wh := h32 * (repeat + 1) // 32-bit multiply, wraps

	var total float64
	for i := 0; i < m.active.Len(); i++ {
		total += m.active.At(i).Weight
	}

	pick := (float64(wh) / 4294967296.0) * total

	idx := 0
	for idx < m.active.Len()-1 && pick >= m.active.At(idx).Weight {
		pick -= m.active.At(idx).Weight
		idx++
	}

	punished := false
	if repeat != 0 {
		entry := m.history[slot]
		if entry.set && entry.hash == h32 {
			for i := 0; i < m.active.Len(); i++ {
				bad := m.active.At(i)
				if bad.ID == entry.id {
					bad.Weight = tunnelset.ClampWeight(bad.Weight * m.cfg.PunishFactor)
					if i == idx {
						idx = (idx + 1) % m.active.Len()
					}
					punished = true
					break
				}
			}
		}
	}

	candidate := m.active.At(idx)
	candidate.Weight = tunnelset.ClampWeight(candidate.Weight * m.cfg.RewardFactor)

	m.history[slot] = historyEntry{hash: h32, id: candidate.ID, set: true}

	m.tel.ObservePick(punished, true)
	return candidate
}
