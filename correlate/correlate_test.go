package correlate

import (
	"sync"
	"testing"
	"time"

	"busscope.dev/instruction"
	"busscope.dev/packet"
)

func modelNumberBytes(n uint16) []byte {
	return []byte{byte(n), byte(n >> 8)}
}

func TestObserveWriteAppliesImmediately(t *testing.T) {
	var e Engine
	now := time.Unix(0, 0)

	// Identify device 5 as an MX-106 via a Write to Model Number.
	e.Observe(packet.Packet{
		DeviceID:    5,
		Instruction: instruction.Write,
		Data:        append([]byte{0x00, 0x00}, modelNumberBytes(321)...),
	}, now)

	// Write Goal Position.
	e.Observe(packet.Packet{
		DeviceID:    5,
		Instruction: instruction.Write,
		Data:        []byte{0x74, 0x00, 0x00, 0x08, 0x00, 0x00},
	}, now)

	table := e.Table(5)
	if table.DeviceName() != "MX-106" {
		t.Fatalf("device name = %q, want MX-106", table.DeviceName())
	}
	found := false
	for _, entry := range table.Entries() {
		if entry.Name == "Goal Position" {
			found = true
			if entry.Value != "2048" {
				t.Fatalf("goal position = %q, want 2048", entry.Value)
			}
		}
	}
	if !found {
		t.Fatal("Goal Position entry missing")
	}
}

func TestObserveReadThenStatusWritesData(t *testing.T) {
	var e Engine
	now := time.Unix(0, 0)

	// Identify device 7 as an MX-106 so the reply has a table to land in.
	e.Observe(packet.Packet{
		DeviceID:    7,
		Instruction: instruction.Write,
		Data:        append([]byte{0x00, 0x00}, modelNumberBytes(321)...),
	}, now)

	e.Observe(packet.Packet{
		DeviceID:    7,
		Instruction: instruction.Read,
		Data:        []byte{0x84, 0x00, 0x04, 0x00},
	}, now)

	e.Observe(packet.Packet{
		DeviceID:    7,
		Instruction: packet.InstructionStatus,
		Error:       0,
		Data:        []byte{0x00, 0x10, 0x00, 0x00},
	}, now)

	table := e.Table(7)
	for _, entry := range table.Entries() {
		if entry.Name == "Present Position" && entry.Value != "4096" {
			t.Fatalf("present position = %q, want 4096", entry.Value)
		}
	}
}

// TestPingReplyCreatesTableFromModelNumber reproduces spec.md scenario 9:
// a Ping reply carrying model number 321 (MX-106) and firmware byte 42
// must create an MX-106 table with that firmware version, not merely
// acknowledge the ping.
func TestPingReplyCreatesTableFromModelNumber(t *testing.T) {
	var e Engine
	now := time.Unix(0, 0)

	e.Observe(packet.Packet{DeviceID: 1, Instruction: instruction.Ping}, now)
	e.Observe(packet.Packet{
		DeviceID:    1,
		Instruction: packet.InstructionStatus,
		Data:        append(modelNumberBytes(321), 42),
	}, now)

	table := e.Table(1)
	if table.DeviceName() != "MX-106" {
		t.Fatalf("device name = %q, want MX-106", table.DeviceName())
	}
	found := false
	for _, entry := range table.Entries() {
		if entry.Name == "Firmware Version" {
			found = true
			if entry.Value != "42" {
				t.Fatalf("firmware version = %q, want 42", entry.Value)
			}
		}
	}
	if !found {
		t.Fatal("Firmware Version entry missing")
	}
}

// TestPingReplyWrongLenCounted exercises the InvalidPacketLen path: a
// Ping reply not carrying exactly 3 bytes is rejected without touching
// the device's table.
func TestPingReplyWrongLenCounted(t *testing.T) {
	var e Engine
	now := time.Unix(0, 0)

	e.Observe(packet.Packet{DeviceID: 1, Instruction: instruction.Ping}, now)
	e.Observe(packet.Packet{
		DeviceID:    1,
		Instruction: packet.InstructionStatus,
		Data:        []byte{0x01, 0x00},
	}, now)

	if got := e.Counters()[ErrInvalidStatusLen]; got != 1 {
		t.Fatalf("invalid status len count = %d, want 1", got)
	}
	if e.Table(1).DeviceName() != "unknown" {
		t.Fatalf("device name = %q, want unknown (table untouched)", e.Table(1).DeviceName())
	}
}

// TestObserveWriteOutOfBoundsCountsInvalidWrite exercises a write whose
// address+length run past the target table's bounds: the write must be
// rejected (not silently swallowed) and counted under ErrInvalidWrite.
func TestObserveWriteOutOfBoundsCountsInvalidWrite(t *testing.T) {
	var e Engine
	now := time.Unix(0, 0)

	e.Observe(packet.Packet{
		DeviceID:    5,
		Instruction: instruction.Write,
		Data:        append([]byte{0x00, 0x00}, modelNumberBytes(321)...),
	}, now)
	e.Observe(packet.Packet{
		DeviceID:    5,
		Instruction: instruction.Write,
		Data:        []byte{0xff, 0xff, 0x01},
	}, now)

	if got := e.Counters()[ErrInvalidWrite]; got != 1 {
		t.Fatalf("invalid write count = %d, want 1", got)
	}
}

// TestObserveReadReplyLengthMismatchCounted exercises a Read reply whose
// payload length does not match the length the instruction requested:
// the reply must not be written into the table, and the mismatch must
// be counted rather than silently accepted.
func TestObserveReadReplyLengthMismatchCounted(t *testing.T) {
	var e Engine
	now := time.Unix(0, 0)

	// Identify device 7 as an MX-106 so there is a table to leave unchanged.
	e.Observe(packet.Packet{
		DeviceID:    7,
		Instruction: instruction.Write,
		Data:        append([]byte{0x00, 0x00}, modelNumberBytes(321)...),
	}, now)
	e.Observe(packet.Packet{
		DeviceID:    7,
		Instruction: instruction.Read,
		Data:        []byte{0x84, 0x00, 0x04, 0x00},
	}, now)
	e.Observe(packet.Packet{
		DeviceID:    7,
		Instruction: packet.InstructionStatus,
		Data:        []byte{0x00, 0x10},
	}, now)

	if got := e.Counters()[ErrInvalidStatusLen]; got != 1 {
		t.Fatalf("invalid status len count = %d, want 1", got)
	}
	table := e.Table(7)
	for _, entry := range table.Entries() {
		if entry.Name == "Present Position" && entry.Value != "0" {
			t.Fatalf("present position = %q, want unchanged (0)", entry.Value)
		}
	}
}

func TestObserveUnexpectedStatusCounted(t *testing.T) {
	var e Engine
	now := time.Unix(0, 0)
	e.Observe(packet.Packet{DeviceID: 1, Instruction: packet.InstructionStatus}, now)
	if got := e.Counters()[ErrUnexpectedStatus]; got != 1 {
		t.Fatalf("unexpected status count = %d, want 1", got)
	}
}

func TestObserveDeviceIDMismatchCounted(t *testing.T) {
	var e Engine
	now := time.Unix(0, 0)
	e.Observe(packet.Packet{
		DeviceID:    3,
		Instruction: instruction.Ping,
	}, now)
	e.Observe(packet.Packet{
		DeviceID:    9,
		Instruction: packet.InstructionStatus,
	}, now)
	if got := e.Counters()[ErrDeviceIDMismatch]; got != 1 {
		t.Fatalf("mismatch count = %d, want 1", got)
	}
}

func TestObserveProtocolAlertCounted(t *testing.T) {
	var e Engine
	now := time.Unix(0, 0)
	e.Observe(packet.Packet{DeviceID: 1, Instruction: instruction.Ping}, now)
	e.Observe(packet.Packet{
		DeviceID:    1,
		Instruction: packet.InstructionStatus,
		Error:       alertBit,
	}, now)
	if got := e.Counters()[ErrProtocolAlert]; got != 1 {
		t.Fatalf("alert count = %d, want 1", got)
	}
}

func TestSyncReadPairsEachDeviceStatus(t *testing.T) {
	var e Engine
	now := time.Unix(0, 0)
	e.Observe(packet.Packet{
		DeviceID:    instruction.Broadcast,
		Instruction: instruction.SyncRead,
		Data:        []byte{0x84, 0x00, 0x04, 0x00, 0x01, 0x02},
	}, now)

	e.Observe(packet.Packet{DeviceID: 1, Instruction: packet.InstructionStatus, Data: modelNumberBytes(4096)[:0]}, now)
	e.Observe(packet.Packet{DeviceID: 2, Instruction: packet.InstructionStatus, Data: []byte{0x00, 0x10, 0x00, 0x00}}, now)

	if e.Counters()[ErrDeviceIDMismatch] != 0 {
		t.Fatalf("expected no mismatches, got %d", e.Counters()[ErrDeviceIDMismatch])
	}
}

func TestExpireStaleMarksDisconnected(t *testing.T) {
	var e Engine
	start := time.Unix(0, 0)
	e.Observe(packet.Packet{
		DeviceID:    5,
		Instruction: instruction.Write,
		Data:        append([]byte{0x00, 0x00}, modelNumberBytes(321)...),
	}, start)

	e.ExpireStale(start.Add(alivenessTimeout + time.Second))

	if e.Table(5).DeviceName() != "disconnected" {
		t.Fatalf("device name = %q, want disconnected", e.Table(5).DeviceName())
	}
}

// TestConcurrentObserveAndRead exercises Engine under -race: one
// goroutine keeps observing writes while another reads Table/Counters,
// the way an ingestion loop and a diagnostics snapshot would.
func TestConcurrentObserveAndRead(t *testing.T) {
	var e Engine
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			e.Observe(packet.Packet{
				DeviceID:    5,
				Instruction: instruction.Write,
				Data:        append([]byte{0x00, 0x00}, modelNumberBytes(321)...),
			}, time.Unix(0, int64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = e.Table(5)
			_ = e.Counters()
			_ = e.Devices()
		}
	}()
	wg.Wait()
}
