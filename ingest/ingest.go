// package ingest drains raw bus bytes into the packet parser and
// correlation engine, modeling the embedded firmware's double-buffered
// DMA capture with a pair of atomic ready flags instead of hardware
// interrupt handlers.
package ingest

import (
	"sync/atomic"
	"time"

	"busscope.dev/correlate"
	"busscope.dev/cursor"
	"busscope.dev/packet"
)

// ReceiveBuf is a double buffer fed by a capture source. Exactly one of
// its two halves is ready for draining at a time, mirroring the
// half/full interrupt flags of a DMA-driven UART capture.
type ReceiveBuf struct {
	front, back []byte
	frontReady  atomic.Bool
	backReady   atomic.Bool
}

// NewReceiveBuf returns a ReceiveBuf with both halves sized n and neither
// half marked ready.
func NewReceiveBuf(n int) *ReceiveBuf {
	return &ReceiveBuf{front: make([]byte, n), back: make([]byte, n)}
}

// FillFront copies data into the front half and marks it ready. It is
// the caller's responsibility to serialize fills against drains, as the
// embedded firmware does via its DMA interrupt priority.
func (b *ReceiveBuf) FillFront(data []byte) {
	n := copy(b.front[:cap(b.front)], data)
	b.front = b.front[:n]
	b.frontReady.Store(true)
}

// FillBack is FillFront's counterpart for the back half.
func (b *ReceiveBuf) FillBack(data []byte) {
	n := copy(b.back[:cap(b.back)], data)
	b.back = b.back[:n]
	b.backReady.Store(true)
}

// Drainer pulls ready halves out of a ReceiveBuf, feeds them through a
// resumable packet parser, and hands decoded packets to a correlation
// engine.
type Drainer struct {
	buf    *ReceiveBuf
	cur    cursor.Cursor
	parser packet.Parser
	engine *correlate.Engine

	onResult func(packet.ParseResult)
}

// NewDrainer returns a Drainer reading from buf into engine.
func NewDrainer(buf *ReceiveBuf, engine *correlate.Engine) *Drainer {
	return &Drainer{buf: buf, engine: engine}
}

// OnResult installs a callback invoked with every ParseResult the
// internal parser produces, e.g. to feed a ChecksumMismatch count into
// diagnostics. It may be nil.
func (d *Drainer) OnResult(f func(packet.ParseResult)) {
	d.onResult = f
}

// Drain processes whichever half of the buffer is currently ready,
// parsing as many complete packets as are available and handing each to
// the correlation engine. It is safe to call repeatedly; a call when
// neither half is ready does nothing.
func (d *Drainer) Drain(now time.Time) {
	if d.buf.frontReady.CompareAndSwap(true, false) {
		d.drainHalf(d.buf.front, now)
	}
	if d.buf.backReady.CompareAndSwap(true, false) {
		d.drainHalf(d.buf.back, now)
	}
}

func (d *Drainer) drainHalf(half []byte, now time.Time) {
	d.cur.Fill(half)
	for d.cur.Remaining() > 0 {
		result := d.parser.Parse(&d.cur)
		if d.onResult != nil {
			d.onResult(result)
		}
		switch result {
		case packet.PacketAvailable:
			d.engine.Observe(d.parser.Packet(), now)
		case packet.NeedMoreData:
			return
		case packet.BufferOverflow, packet.MismatchedChecksum:
			// Parser has resynchronized; keep draining this half.
		}
	}
}
