// package correlate implements the passive correlation engine: it
// observes instruction and status packets flowing on a bus it does not
// drive, reconstructing each device's control table contents and
// tracking liveness and error statistics.
package correlate

import (
	"sync"
	"time"

	"busscope.dev/deviceid"
	"busscope.dev/devicetable"
	"busscope.dev/instruction"
	"busscope.dev/packet"
)

// ErrorKind classifies an anomaly observed on the bus.
type ErrorKind int

const (
	// ErrUnexpectedStatus is a status packet with no pending instruction
	// to pair it with.
	ErrUnexpectedStatus ErrorKind = iota
	// ErrDeviceIDMismatch is a status packet whose device id does not
	// match the pending instruction's target (exact id, broadcast, or
	// membership in a sync/bulk device list).
	ErrDeviceIDMismatch
	// ErrMalformedInstruction is an instruction packet whose parameters
	// failed to decode.
	ErrMalformedInstruction
	// ErrChecksumMismatch is a packet discarded by the packet parser
	// before it ever reached the correlation engine.
	ErrChecksumMismatch
	// ErrProtocolAlert is a status packet reporting the device-side
	// alert bit in its error field.
	ErrProtocolAlert
	// ErrInvalidStatusLen is a status reply whose data length does not
	// match what the pending instruction promised (a Ping reply not
	// carrying exactly model+firmware, or a Read reply whose length
	// does not match the requested byte count).
	ErrInvalidStatusLen
	// ErrInvalidWrite is a write that failed the target table's bounds
	// check (instruction-driven or a Read reply written back into the
	// table).
	ErrInvalidWrite
)

const alertBit = 0b0100_0000

// alivenessTimeout bounds how long a device may go without a status
// reply before it is considered disconnected.
const alivenessTimeout = 2 * time.Second

// pendingRead remembers where a Read/SyncRead/BulkRead instruction asked
// a device to read from, so the matching status reply can be written
// into that device's table at the right address.
type pendingRead struct {
	addr uint16
	len  uint16
}

// pendingOp tracks the instruction awaiting a status reply on this bus.
type pendingOp struct {
	deviceIDs map[byte]struct{} // nil means broadcast: any device may reply
	reads     map[byte]pendingRead
	isPing    bool
}

// Engine is a single bus's correlation state. Its zero value is ready to
// use. The exported methods are safe to call from multiple goroutines —
// an ingestion loop calling Observe typically races a UI reader or the
// CBOR diagnostics snapshot calling Table/Counters/Devices.
type Engine struct {
	mu sync.Mutex

	tables   deviceid.Map[devicetable.ControlTable]
	lastSeen deviceid.Map[time.Time]
	counters [7]int

	pending *pendingOp
}

// Table returns the current control table for id, defaulting to Unknown
// if the device has never been observed.
func (e *Engine) Table(id byte) devicetable.ControlTable {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tables.Get(id); ok {
		return t
	}
	return devicetable.Unknown{}
}

// Counters returns a snapshot of how many times each ErrorKind has been
// observed since the engine was created.
func (e *Engine) Counters() map[ErrorKind]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[ErrorKind]int, len(e.counters))
	for i, n := range e.counters {
		out[ErrorKind(i)] = n
	}
	return out
}

func (e *Engine) count(k ErrorKind) {
	e.counters[k]++
}

// Devices returns the set of device ids the engine currently holds a
// table for, in ascending order.
func (e *Engine) Devices() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []byte
	e.tables.Each(func(id byte, _ devicetable.ControlTable) bool {
		out = append(out, id)
		return true
	})
	return out
}

// ExpireStale marks any device not heard from within alivenessTimeout of
// now as Disconnected, replacing its last known table.
func (e *Engine) ExpireStale(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables.Each(func(id byte, _ devicetable.ControlTable) bool {
		seen, ok := e.lastSeen.Get(id)
		if ok && now.Sub(seen) > alivenessTimeout {
			e.tables.Set(id, devicetable.Disconnected{})
		}
		return true
	})
}

// Observe feeds one parsed packet into the engine. Non-status packets
// are interpreted as instructions; status packets are paired against the
// most recently observed pending instruction.
func (e *Engine) Observe(pkt packet.Packet, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pkt.Instruction == packet.InstructionStatus {
		e.observeStatus(pkt, now)
		return
	}
	e.observeInstruction(pkt, now)
}

func (e *Engine) observeInstruction(pkt packet.Packet, now time.Time) {
	decoded, err := instruction.Decode(pkt.Instruction, pkt.Data)
	if err != nil {
		e.count(ErrMalformedInstruction)
		e.pending = nil
		return
	}

	switch decoded.Kind {
	case instruction.KindWrite:
		e.writeDevice(pkt.DeviceID, decoded.Write.Addr, decoded.Write.Data, now)
		e.pending = nil

	case instruction.KindRead:
		e.pending = &pendingOp{
			deviceIDs: singleDevice(pkt.DeviceID),
			reads:     map[byte]pendingRead{pkt.DeviceID: {addr: decoded.Read.Addr, len: decoded.Read.Len}},
		}

	case instruction.KindSyncWrite:
		for _, entry := range decoded.SyncWrite.Entries {
			e.writeDevice(entry.DeviceID, decoded.SyncWrite.Addr, entry.Data, now)
		}
		e.pending = nil

	case instruction.KindBulkWrite:
		for _, entry := range decoded.BulkWrite.Entries {
			e.writeDevice(entry.DeviceID, entry.Addr, entry.Data, now)
		}
		e.pending = nil

	case instruction.KindSyncRead:
		ids := make(map[byte]struct{}, len(decoded.SyncRead.DeviceIDs))
		reads := make(map[byte]pendingRead, len(decoded.SyncRead.DeviceIDs))
		for _, id := range decoded.SyncRead.DeviceIDs {
			ids[id] = struct{}{}
			reads[id] = pendingRead{addr: decoded.SyncRead.Addr, len: decoded.SyncRead.Len}
		}
		e.pending = &pendingOp{deviceIDs: ids, reads: reads}

	case instruction.KindBulkRead:
		ids := make(map[byte]struct{}, len(decoded.BulkRead.Entries))
		reads := make(map[byte]pendingRead, len(decoded.BulkRead.Entries))
		for _, entry := range decoded.BulkRead.Entries {
			ids[entry.DeviceID] = struct{}{}
			reads[entry.DeviceID] = pendingRead{addr: entry.Addr, len: entry.Len}
		}
		e.pending = &pendingOp{deviceIDs: ids, reads: reads}

	case instruction.KindPing:
		if pkt.DeviceID == instruction.Broadcast {
			e.pending = &pendingOp{deviceIDs: nil, isPing: true}
		} else {
			e.pending = &pendingOp{deviceIDs: singleDevice(pkt.DeviceID), isPing: true}
		}

	case instruction.KindRegWrite, instruction.KindAction, instruction.KindReboot,
		instruction.KindClear, instruction.KindFactoryReset:
		if pkt.DeviceID == instruction.Broadcast {
			e.pending = &pendingOp{deviceIDs: nil}
		} else {
			e.pending = &pendingOp{deviceIDs: singleDevice(pkt.DeviceID)}
		}
	}
}

func (e *Engine) observeStatus(pkt packet.Packet, now time.Time) {
	if e.pending == nil {
		e.count(ErrUnexpectedStatus)
		return
	}
	if e.pending.deviceIDs != nil {
		if _, ok := e.pending.deviceIDs[pkt.DeviceID]; !ok {
			e.count(ErrDeviceIDMismatch)
			return
		}
	}

	e.lastSeen.Set(pkt.DeviceID, now)

	if pkt.Error&alertBit != 0 {
		e.count(ErrProtocolAlert)
	}

	if e.pending.isPing {
		e.observePingReply(pkt)
	}

	if e.pending.reads != nil {
		if r, ok := e.pending.reads[pkt.DeviceID]; ok {
			if uint16(len(pkt.Data)) != r.len {
				e.count(ErrInvalidStatusLen)
			} else {
				e.writeDevice(pkt.DeviceID, r.addr, pkt.Data, now)
			}
			delete(e.pending.reads, pkt.DeviceID)
		}
	}

	if e.pending.deviceIDs != nil {
		delete(e.pending.deviceIDs, pkt.DeviceID)
		if len(e.pending.deviceIDs) == 0 {
			e.pending = nil
		}
	}
}

// observePingReply interprets a Ping status reply's 3-byte payload
// (model_lo, model_hi, firmware), replacing the device's table with a
// freshly-defaulted one for the revealed model number whenever the
// device is unseen or its current table's model number differs, then
// writing the firmware byte into the (possibly new) table.
func (e *Engine) observePingReply(pkt packet.Packet) {
	if len(pkt.Data) != 3 {
		e.count(ErrInvalidStatusLen)
		return
	}
	modelNumber := uint16(pkt.Data[0]) | uint16(pkt.Data[1])<<8
	firmware := pkt.Data[2]

	t, ok := e.tables.Get(pkt.DeviceID)
	if !ok || t.ModelNumber() != modelNumber {
		t = devicetable.NewByModelNumber(modelNumber)
	}
	t.Write(devicetable.FirmwareFieldAddr, []byte{firmware})
	e.tables.Set(pkt.DeviceID, t)
}

// writeDevice applies a write to id's control table, creating a table
// (as Unknown, until a Model Number field identifies it) on first
// contact.
func (e *Engine) writeDevice(id byte, addr uint16, data []byte, now time.Time) {
	t, ok := e.tables.Get(id)
	if !ok {
		t = devicetable.Unknown{}
	}
	if addr == 0 && len(data) >= 2 {
		modelNumber := uint16(data[0]) | uint16(data[1])<<8
		if newTable := devicetable.NewByModelNumber(modelNumber); !isPlaceholder(newTable) {
			t = newTable
		}
	}
	if !t.Write(addr, data) {
		e.count(ErrInvalidWrite)
	}
	e.tables.Set(id, t)
	e.lastSeen.Set(id, now)
}

func isPlaceholder(t devicetable.ControlTable) bool {
	switch t.(type) {
	case devicetable.Unknown, devicetable.Disconnected:
		return true
	default:
		return false
	}
}

func singleDevice(id byte) map[byte]struct{} {
	return map[byte]struct{}{id: {}}
}
