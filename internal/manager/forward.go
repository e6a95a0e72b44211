package manager

import "encoding/binary"

// Forward implements the packet-forwarding path:
//  1. acquire the lock
//  2. select a tunnel; on none available, unlock, warn, fail
//  3. query the driver's MTU; a zero MTU means send is impossible
//  4. compute each packet's IPv4 total length; if any exceeds MTU,
//     invoke the driver's fragmentation-required hook and return ok
//     (the hook owns the downgrade response)
//  5. otherwise hand every packet to the driver's write function
//  6. unlock, return ok
//
// primary is the packet used for the fragmentation-required
// notification; packets is the (possibly larger, e.g. after upstream
// splitting) set of packets to actually send.
func (m *Manager) Forward(primary []byte, packets [][]byte, hash uint64, repeat uint32) bool {
	m.mu.Lock()

	rec := m.Select(hash, repeat)
	if rec == nil {
		m.mu.Unlock()
		m.log.Warn("unable to tunnel packet: no suitable tunnel is open")
		return false
	}

	mtu := m.driver.MTU(rec.Driver, m.cfg.ConfiguredMTU)
	if mtu == 0 {
		m.mu.Unlock()
		m.log.Warn("unable to tunnel packet: driver reports MTU 0 (send impossible)")
		return false
	}

	for _, pkt := range packets {
		if ipv4TotalLen(pkt) > mtu {
			m.driver.FragmentationRequired(rec.Driver, mtu, primary)
			m.mu.Unlock()
			return true
		}
	}

	for _, pkt := range packets {
		if err := m.driver.Write(rec.Driver, pkt); err != nil {
			// Write failures are not explicitly handled here: the
			// higher-level retransmission path is expected to supply
			// repeat > 0 on a subsequent call, which feeds the
			// selector's punishment mechanism.
			m.log.Debug("driver write failed", "error", err)
		}
	}

	m.mu.Unlock()
	return true
}

// ipv4TotalLen reads the 16-bit total-length field (bytes 2-3) of an
// IPv4 header. Callers are expected to supply well-formed IPv4
// packets (validated upstream, outside this core); a packet shorter
// than the field's offset is treated as zero length so it never
// spuriously trips the MTU check.
func ipv4TotalLen(pkt []byte) int {
	if len(pkt) < 4 {
		return 0
	}
	return int(binary.BigEndian.Uint16(pkt[2:4]))
}
