// package diagnostics exports a point-in-time snapshot of everything the
// correlation engine has reconstructed, as a compact CBOR document
// suitable for attaching to a bug report.
package diagnostics

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"busscope.dev/correlate"
)

// DeviceSnapshot is one device's reconstructed control table, rendered
// as name/value pairs rather than raw bytes so the export is readable
// without this module.
type DeviceSnapshot struct {
	DeviceID    byte              `cbor:"device_id"`
	ModelNumber uint16            `cbor:"model_number"`
	DeviceName  string            `cbor:"device_name"`
	Entries     map[string]string `cbor:"entries"`
}

// Snapshot is the full exported diagnostics document for one bus.
type Snapshot struct {
	Devices  []DeviceSnapshot `cbor:"devices"`
	Counters map[string]int   `cbor:"counters"`
}

// Capture builds a Snapshot from an engine's current state. It does not
// mutate the engine.
func Capture(e *correlate.Engine) Snapshot {
	snap := Snapshot{Counters: make(map[string]int)}
	for _, id := range e.Devices() {
		table := e.Table(id)
		entries := make(map[string]string)
		for _, entry := range table.Entries() {
			entries[entry.Name] = entry.Value
		}
		snap.Devices = append(snap.Devices, DeviceSnapshot{
			DeviceID:    id,
			ModelNumber: table.ModelNumber(),
			DeviceName:  table.DeviceName(),
			Entries:     entries,
		})
	}
	for kind, n := range e.Counters() {
		snap.Counters[errorKindName(kind)] = n
	}
	return snap
}

func errorKindName(k correlate.ErrorKind) string {
	switch k {
	case correlate.ErrUnexpectedStatus:
		return "unexpected_status"
	case correlate.ErrDeviceIDMismatch:
		return "device_id_mismatch"
	case correlate.ErrMalformedInstruction:
		return "malformed_instruction"
	case correlate.ErrChecksumMismatch:
		return "checksum_mismatch"
	case correlate.ErrProtocolAlert:
		return "protocol_alert"
	case correlate.ErrInvalidStatusLen:
		return "invalid_status_len"
	case correlate.ErrInvalidWrite:
		return "invalid_write"
	default:
		return "unknown"
	}
}

// Encode renders a Snapshot as CBOR.
func Encode(s Snapshot) ([]byte, error) {
	b, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: encoding snapshot: %w", err)
	}
	return b, nil
}

// Decode parses a CBOR-encoded Snapshot previously produced by Encode.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("diagnostics: decoding snapshot: %w", err)
	}
	return s, nil
}
