package crc16

import "testing"

// pingPacketPrefix is the ping-instruction packet from scenario 1, minus
// its trailing 2-byte checksum: FF FF FD 00 01 03 00 01, checksum 19 4E.
var pingPacketPrefix = []byte{0xff, 0xff, 0xfd, 0x00, 0x01, 0x03, 0x00, 0x01}

func TestPingChecksum(t *testing.T) {
	var c CRC
	for _, b := range pingPacketPrefix {
		c.Update(b)
	}
	const want = 0x4e19
	if got := c.Value(); got != want {
		t.Fatalf("checksum = %#04x, want %#04x", got, want)
	}
}

func TestResetZeroesState(t *testing.T) {
	var c CRC
	c.Update(0xff)
	c.Update(0x01)
	c.Reset()
	if c.Value() != 0 {
		t.Fatalf("value after reset = %#04x, want 0", c.Value())
	}
}

func TestIncrementalMatchesOneShot(t *testing.T) {
	data := []byte{0x01, 0x03, 0x00, 0x74, 0x00, 0x04, 0x00}

	var whole CRC
	for _, b := range data {
		whole.Update(b)
	}

	var split CRC
	for _, b := range data[:3] {
		split.Update(b)
	}
	for _, b := range data[3:] {
		split.Update(b)
	}

	if whole.Value() != split.Value() {
		t.Fatalf("split update = %#04x, whole update = %#04x", split.Value(), whole.Value())
	}
}
