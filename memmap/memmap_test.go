package memmap

import "testing"

func TestSegmentWriteAndReadUint32(t *testing.T) {
	s := NewSegment(100, 50)
	if !s.WriteUint32(116, 0xdeadbeef) {
		t.Fatal("write rejected")
	}
	if got := s.Uint32At(116); got != 0xdeadbeef {
		t.Fatalf("got %#x", got)
	}
}

func TestSegmentRejectsOutOfBounds(t *testing.T) {
	s := NewSegment(0, 10)
	if s.Write(10, []byte{1}) {
		t.Fatal("expected write at boundary to be rejected")
	}
	// [9, 11) straddles the segment's end (10); the spec requires an
	// all-or-nothing bounds check, not a silent partial write.
	if s.Write(9, []byte{1, 2}) {
		t.Fatal("expected write straddling the segment boundary to be rejected")
	}
	if got := s.Uint8At(9); got != 0 {
		t.Fatalf("byte 9 = %d, want untouched 0 after rejected write", got)
	}
	if !s.Write(9, []byte{7}) {
		t.Fatal("expected write of the last in-bounds byte to succeed")
	}
	if got := s.Uint8At(9); got != 7 {
		t.Fatalf("byte 9 = %d, want 7", got)
	}
}

func TestSegmentFloat32RoundTrip(t *testing.T) {
	s := NewSegment(0, 8)
	s.WriteFloat32(0, 9.81)
	if got := s.Float32At(0); got != 9.81 {
		t.Fatalf("got %v, want 9.81", got)
	}
}

func TestAddressMapResolveUsesConfiguredEntry(t *testing.T) {
	m := NewAddressMap(168, 224, 28)
	// Unconfigured: the entry for data address 224 defaults to zero.
	if got := m.Resolve(224); got != 0 {
		t.Fatalf("resolve(224) before configuration = %d, want 0", got)
	}
	// Point indirect data slot 0 (224) at backing address 0x74 (Goal
	// Position), the way a host configures indirection before use.
	if !m.WriteUint16(168, 0x74) {
		t.Fatal("write to indirect address entry rejected")
	}
	if got := m.Resolve(224); got != 0x74 {
		t.Fatalf("resolve(224) = %#x, want 0x74", got)
	}
	// A second entry (slot 1, data address 225, map address 170) is
	// independent of the first.
	if !m.WriteUint16(170, 0x84) {
		t.Fatal("write to second indirect address entry rejected")
	}
	if got := m.Resolve(225); got != 0x84 {
		t.Fatalf("resolve(225) = %#x, want 0x84", got)
	}
	if !m.IsValidMapAddr(223) || m.IsValidMapAddr(224) {
		t.Fatalf("bounds check wrong at edge of map range")
	}
}

func TestAddressMapPassesThroughUnmappedAddr(t *testing.T) {
	m := NewAddressMap(168, 224, 28)
	if got := m.Resolve(10); got != 10 {
		t.Fatalf("resolve(10) = %d, want 10 (unchanged)", got)
	}
	// Addresses in the map's own (indirection-pointer) range are not
	// data addresses and must also pass through unchanged.
	if got := m.Resolve(168); got != 168 {
		t.Fatalf("resolve(168) = %d, want 168 (unchanged; 168 is a map addr, not a data addr)", got)
	}
}
