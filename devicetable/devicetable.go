// package devicetable models the per-device control tables addressed by
// bus packets: a polymorphic set of known device models, each with a
// fixed field schema, plus placeholder tables for devices that have not
// yet identified themselves or have gone silent.
package devicetable

import (
	"fmt"
	"math"

	"busscope.dev/memmap"
)

// FieldKind identifies how a field's backing bytes should be interpreted.
type FieldKind int

const (
	KindUint8 FieldKind = iota
	KindUint16
	KindUint32
	KindFloat32
)

// Field describes one named, offset-addressed value in a control table.
type Field struct {
	Name    string
	Offset  uint16
	Kind    FieldKind
	Default uint32
	Format  func(raw uint32) string
}

// Entry is a rendered snapshot of a single field's current value.
type Entry struct {
	Name  string
	Value string
}

// FirmwareFieldAddr is the client-visible address of the one-byte
// Firmware Version field shared by every concrete control table's
// header, following the 2-byte Model Number and 4-byte Model
// Information fields at addresses 0 and 2.
const FirmwareFieldAddr uint16 = 6

// ControlTable is the behavior shared by every device model: it accepts
// writes addressed in the device's own client-visible address space and
// can render its current contents as human-readable entries.
type ControlTable interface {
	DeviceName() string
	ModelNumber() uint16
	Write(addr uint16, data []byte) bool
	Entries() []Entry
}

// Unknown represents a device whose model number has not yet been
// identified (or does not match any known table). It accepts no writes
// and renders no entries.
type Unknown struct{}

func (Unknown) DeviceName() string          { return "unknown" }
func (Unknown) ModelNumber() uint16         { return 0 }
func (Unknown) Write(uint16, []byte) bool   { return false }
func (Unknown) Entries() []Entry            { return nil }

// Disconnected represents a device that has been declared unreachable
// (e.g. after a liveness timeout). It behaves identically to Unknown but
// is kept as a distinct type so callers can tell the two states apart.
type Disconnected struct{}

func (Disconnected) DeviceName() string        { return "disconnected" }
func (Disconnected) ModelNumber() uint16       { return 0 }
func (Disconnected) Write(uint16, []byte) bool { return false }
func (Disconnected) Entries() []Entry          { return nil }

// fieldTable implements the common mechanics shared by every concrete
// device model: a backing Segment defaulted from a static Field schema,
// rendered generically via each Field's Format function.
type fieldTable struct {
	seg    *memmap.Segment
	fields []Field
}

func newFieldTable(segStart uint16, segLen int, fields []Field) fieldTable {
	seg := memmap.NewSegment(segStart, segLen)
	t := fieldTable{seg: seg, fields: fields}
	t.applyDefaults()
	return t
}

func (t *fieldTable) applyDefaults() {
	for _, f := range t.fields {
		switch f.Kind {
		case KindUint8:
			t.seg.WriteUint8(f.Offset, uint8(f.Default))
		case KindUint16:
			t.seg.WriteUint16(f.Offset, uint16(f.Default))
		case KindUint32, KindFloat32:
			t.seg.WriteUint32(f.Offset, f.Default)
		}
	}
}

func (t *fieldTable) entries() []Entry {
	out := make([]Entry, 0, len(t.fields))
	for _, f := range t.fields {
		var raw uint32
		switch f.Kind {
		case KindUint8:
			raw = uint32(t.seg.Uint8At(f.Offset))
		case KindUint16:
			raw = uint32(t.seg.Uint16At(f.Offset))
		case KindUint32, KindFloat32:
			raw = t.seg.Uint32At(f.Offset)
		}
		format := f.Format
		if format == nil {
			format = fmtDecimal
		}
		out = append(out, Entry{Name: f.Name, Value: format(raw)})
	}
	return out
}

func fmtDecimal(raw uint32) string {
	return fmt.Sprintf("%d", raw)
}

func fmtBoolOnOff(raw uint32) string {
	if raw != 0 {
		return "on"
	}
	return "off"
}

func fmtFloat32(raw uint32) string {
	return fmt.Sprintf("%.4f", math.Float32frombits(raw))
}

// fmtCorePowerOn mirrors the original firmware's threshold logic for a
// noisy power-good ADC reading: clearly high, clearly low, or ambiguous.
func fmtCorePowerOn(raw uint32) string {
	switch {
	case raw >= 900:
		return "true"
	case raw <= 100:
		return "false"
	default:
		return fmt.Sprintf("undefined (raw: %d)", raw)
	}
}

func fmtMilli(unit string) func(uint32) string {
	return func(raw uint32) string {
		return fmt.Sprintf("%.3f%s", float64(raw)/1000, unit)
	}
}
