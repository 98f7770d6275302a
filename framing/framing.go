// package framing strips byte-stuffing and locates packet headers in a
// byte-stuffed bus stream, without copying or buffering the underlying
// data beyond a small rolling history.
package framing

import (
	"busscope.dev/crc16"
	"busscope.dev/cursor"
)

// Header is the fixed 4-byte packet header: FF FF FD 00. It is covered by
// the packet checksum even though it never needs de-stuffing itself.
var Header = [4]byte{0xff, 0xff, 0xfd, 0x00}

var header = Header

const stuffingByte = 0xfd

// Receiver locates packet headers and de-stuffs packet bodies read from a
// Cursor. It keeps a 3-byte rolling history of the most recently read raw
// bytes so it can recognize a stuffed FD that spans multiple Read calls.
type Receiver struct {
	history    [3]byte
	historyLen int

	// matched is how many header bytes the most recent input matched,
	// kept across WaitForHeader calls so a header may span fills.
	matched int
}

// Reset clears the rolling history, e.g. after a checksum mismatch forces
// a fresh search for the next header.
func (r *Receiver) Reset() {
	r.historyLen = 0
}

// WaitForHeader consumes bytes from cur until the 4-byte header has been
// found (in which case it returns true with cur positioned just past the
// header), or cur is exhausted first (returns false; call again once more
// data has been filled into cur; a partial match is carried over).
func (r *Receiver) WaitForHeader(cur *cursor.Cursor) bool {
	for {
		var b [1]byte
		if cur.Read(b[:]) == 0 {
			return false
		}
		if b[0] == header[r.matched] {
			r.matched++
			if r.matched == len(header) {
				r.matched = 0
				r.Reset()
				return true
			}
			continue
		}
		// Restart the match, allowing the byte that broke the match to
		// itself begin a new one (e.g. ... FF FF FF FD 00).
		switch {
		case b[0] == header[0] && r.matched == 2:
			// FF FF FF: the last two bytes are still a header prefix.
		case b[0] == header[0]:
			r.matched = 1
		default:
			r.matched = 0
		}
	}
}

// pushHistory records a raw (stuffed-stream) byte into the rolling window
// used to detect a stuffing byte that follows FF FF FD.
func (r *Receiver) pushHistory(b byte) {
	r.history[0] = r.history[1]
	r.history[1] = r.history[2]
	r.history[2] = b
	if r.historyLen < 3 {
		r.historyLen++
	}
}

// isStuffingByte reports whether b, arriving right after the rolling
// history, is the inserted stuffing byte (0xFD) following a literal
// 0xFF 0xFF 0xFD sequence in the covered data.
func (r *Receiver) isStuffingByte(b byte) bool {
	return b == stuffingByte &&
		r.historyLen == 3 &&
		r.history[0] == 0xff &&
		r.history[1] == 0xff &&
		r.history[2] == 0xfd
}

// Read copies up to n de-stuffed bytes from cur into dst, consuming one
// extra raw byte from cur for each stuffing byte it discards. It returns
// the number of de-stuffed bytes written, which is less than n only when
// cur runs out first. Every raw byte consumed, including a dropped
// stuffing byte, updates crc.
func (r *Receiver) Read(cur *cursor.Cursor, crc *crc16.CRC, dst []byte, n int) int {
	written := 0
	for written < n {
		var b [1]byte
		if cur.Read(b[:]) == 0 {
			return written
		}
		crc.Update(b[0])
		if r.isStuffingByte(b[0]) {
			// Drop the stuffing byte; it carries no data and does not
			// extend the rolling history.
			r.historyLen = 0
			continue
		}
		r.pushHistory(b[0])
		dst[written] = b[0]
		written++
	}
	return written
}

// ReadRawCounted is like Read, but bounded by rawRemaining *wire* bytes
// rather than by the number of de-stuffed output bytes: a packet's
// LENGTH field counts wire bytes (including any inserted stuffing byte),
// so the caller must stop consuming input once that many raw bytes have
// been seen even if fewer bytes end up written to dst. It returns the
// number of de-stuffed bytes written and the number of raw bytes
// consumed; rawConsumed < rawRemaining only when cur runs out first.
func (r *Receiver) ReadRawCounted(cur *cursor.Cursor, crc *crc16.CRC, dst []byte, rawRemaining int) (written, rawConsumed int) {
	for rawConsumed < rawRemaining {
		var b [1]byte
		if cur.Read(b[:]) == 0 {
			return written, rawConsumed
		}
		rawConsumed++
		crc.Update(b[0])
		if r.isStuffingByte(b[0]) {
			r.historyLen = 0
			continue
		}
		r.pushHistory(b[0])
		dst[written] = b[0]
		written++
	}
	return written, rawConsumed
}

// ReadRaw copies exactly up to n wire bytes verbatim, with no
// de-stuffing and no CRC update. It is used solely for the 2-byte
// trailing checksum, which is never stuffed and falls outside the
// CRC-covered region.
func (r *Receiver) ReadRaw(cur *cursor.Cursor, dst []byte, n int) int {
	return cur.Read(dst[:n])
}
