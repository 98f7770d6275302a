// package memmap implements the bounded, byte-addressable memory
// primitives backing a device's control table: a flat typed byte segment
// and an address-indirection table that aliases one address range onto
// another.
package memmap

import (
	"encoding/binary"
	"math"
)

// Segment is a fixed-size, bounds-checked byte array starting at a given
// client-visible address, with little-endian typed accessors.
type Segment struct {
	start uint16
	data  []byte
}

// NewSegment returns a Segment covering [start, start+len) initialized to
// all zero bytes.
func NewSegment(start uint16, length int) *Segment {
	return &Segment{start: start, data: make([]byte, length)}
}

// IsValidAddr reports whether addr falls within the segment.
func (s *Segment) IsValidAddr(addr uint16) bool {
	return addr >= s.start && int(addr-s.start) < len(s.data)
}

// Write copies src into the segment at addr. It succeeds only if
// [addr, addr+len(src)) lies entirely within the segment; on failure no
// byte in the segment is changed.
func (s *Segment) Write(addr uint16, src []byte) bool {
	off := int(addr) - int(s.start)
	if off < 0 || off+len(src) > len(s.data) {
		return false
	}
	copy(s.data[off:off+len(src)], src)
	return true
}

// WriteUint8 writes a single byte at addr.
func (s *Segment) WriteUint8(addr uint16, v uint8) bool {
	return s.Write(addr, []byte{v})
}

// WriteUint16 writes a little-endian uint16 at addr.
func (s *Segment) WriteUint16(addr uint16, v uint16) bool {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return s.Write(addr, buf[:])
}

// WriteUint32 writes a little-endian uint32 at addr.
func (s *Segment) WriteUint32(addr uint16, v uint32) bool {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return s.Write(addr, buf[:])
}

// Uint8At reads a single byte at addr. It returns 0 if addr is invalid.
func (s *Segment) Uint8At(addr uint16) uint8 {
	if !s.IsValidAddr(addr) {
		return 0
	}
	return s.data[addr-s.start]
}

// Uint16At reads a little-endian uint16 at addr.
func (s *Segment) Uint16At(addr uint16) uint16 {
	if !s.IsValidAddr(addr) || !s.IsValidAddr(addr+1) {
		return 0
	}
	off := addr - s.start
	return binary.LittleEndian.Uint16(s.data[off : off+2])
}

// Uint32At reads a little-endian uint32 at addr.
func (s *Segment) Uint32At(addr uint16) uint32 {
	if !s.IsValidAddr(addr) || !s.IsValidAddr(addr+3) {
		return 0
	}
	off := addr - s.start
	return binary.LittleEndian.Uint32(s.data[off : off+4])
}

// Float32At reads a little-endian IEEE-754 float32 at addr.
func (s *Segment) Float32At(addr uint16) float32 {
	return math.Float32frombits(s.Uint32At(addr))
}

// WriteFloat32 writes a little-endian IEEE-754 float32 at addr.
func (s *Segment) WriteFloat32(addr uint16, v float32) bool {
	return s.WriteUint32(addr, math.Float32bits(v))
}

// AddressMap is a genuine indirection table: LEN 16-bit entries live as
// ordinary writable bytes at [mapStart, mapStart+2*len), each holding the
// backing address that a corresponding address in [dataStart,
// dataStart+len) should actually target. A client configures the alias
// by writing a target address into the entry, then reads or writes the
// aliased data address. Entries default to zero (the backing array's zero
// value), so a data address whose entry was never set resolves to 0.
type AddressMap struct {
	mapStart  uint16
	dataStart uint16
	len       int
	entries   []byte // 2*len bytes, one little-endian uint16 per entry
}

// NewAddressMap returns an AddressMap whose LEN entries start out zeroed,
// covering indirection addresses [mapStart, mapStart+2*len) and aliasing
// data addresses [dataStart, dataStart+len).
func NewAddressMap(mapStart, dataStart uint16, length int) AddressMap {
	return AddressMap{mapStart: mapStart, dataStart: dataStart, len: length, entries: make([]byte, length*2)}
}

// IsValidMapAddr reports whether addr falls within the map's own
// (writable) address range, i.e. addresses a LEN-entry table of 2-byte
// pointers rather than the aliased data range.
func (m AddressMap) IsValidMapAddr(addr uint16) bool {
	return addr >= m.mapStart && int(addr-m.mapStart) < len(m.entries)
}

// IsValidDataAddr reports whether addr falls within the backing data
// range this map can alias.
func (m AddressMap) IsValidDataAddr(addr uint16) bool {
	return addr >= m.dataStart && int(addr-m.dataStart) < m.len
}

// Write stores raw bytes into the map's own entry table (the indirection
// pointers themselves), succeeding only if the whole range fits within
// [mapStart, mapStart+2*len).
func (m AddressMap) Write(addr uint16, src []byte) bool {
	off := int(addr) - int(m.mapStart)
	if off < 0 || off+len(src) > len(m.entries) {
		return false
	}
	copy(m.entries[off:off+len(src)], src)
	return true
}

// WriteUint16 stores a little-endian uint16 entry at addr within the
// map's own address range.
func (m AddressMap) WriteUint16(addr uint16, v uint16) bool {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return m.Write(addr, buf[:])
}

// Resolve translates addr: if addr falls within the aliased data range,
// it returns whatever backing address is currently stored in the
// corresponding entry (zero until configured); otherwise it passes addr
// through unchanged.
func (m AddressMap) Resolve(addr uint16) uint16 {
	if !m.IsValidDataAddr(addr) {
		return addr
	}
	idx := int(addr - m.dataStart)
	return binary.LittleEndian.Uint16(m.entries[idx*2 : idx*2+2])
}
