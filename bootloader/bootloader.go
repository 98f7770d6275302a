// package bootloader implements the recovery-mode framing protocol used
// to stage a new firmware image over the bus: a much simpler
// byte-stuffed stream than the main bus protocol, addressed to a block
// device rather than a control table.
package bootloader

import (
	"encoding/binary"
	"fmt"

	"busscope.dev/cursor"
)

// Command bytes following the single 0xFF frame marker.
const (
	CmdFlash = 0x00
	CmdRun   = 0x01
)

// Flash is the narrow block-device interface the bootloader writes a
// staged image into. Implementations must erase a block before the
// first write lands in it.
type Flash interface {
	Erase(block uint32) error
	WriteAt(block uint32, p []byte) error
	BlockSize() int
}

// Event reports what the parser just observed.
type Event int

const (
	// EventNone means no complete event was produced; call Parse again
	// once more bytes are available.
	EventNone Event = iota
	// EventFlashComplete means every byte of a staged image was written.
	EventFlashComplete
	// EventRun means a Run command was received.
	EventRun
)

type state int

const (
	stWaitMarker state = iota
	stWaitCmd
	stLen
	stBody
	stBodyPendingFF
)

// Parser is a re-entrant decoder for the bootloader's framing protocol,
// writing FLASH command bodies into a Flash device block by block as
// they arrive.
type Parser struct {
	flash Flash

	st state

	// lastByte is the previous raw wire byte seen while accumulating the
	// length field, used to distinguish a stuffed 0xFF 0xFF pair from a
	// fresh start marker the same way the length/body fields do.
	lastByte byte

	lenBuf [4]byte
	lenPos int

	remaining uint32
	block     []byte
	blockPos  int
	blockIdx  uint32
}

// NewParser returns a Parser that stages FLASH command bodies into flash.
func NewParser(flash Flash) *Parser {
	return &Parser{flash: flash, block: make([]byte, flash.BlockSize())}
}

// Parse consumes bytes from cur, returning as soon as a complete event is
// produced or cur is exhausted.
func (p *Parser) Parse(cur *cursor.Cursor) (Event, error) {
	for {
		switch p.st {
		case stWaitMarker:
			var b [1]byte
			if cur.Read(b[:]) == 0 {
				return EventNone, nil
			}
			if b[0] == 0xff {
				p.lastByte = b[0]
				p.st = stWaitCmd
			}
			// Any other byte between frames is ignored.

		case stWaitCmd:
			var b [1]byte
			if cur.Read(b[:]) == 0 {
				return EventNone, nil
			}
			p.lastByte = b[0]
			switch b[0] {
			case CmdRun:
				p.st = stWaitMarker
				return EventRun, nil
			case CmdFlash:
				p.lenPos = 0
				p.st = stLen
			default:
				return EventNone, fmt.Errorf("bootloader: unknown command byte %#02x", b[0])
			}

		case stLen:
			aborted, err := p.readLen(cur)
			if err != nil {
				return EventNone, err
			}
			if aborted {
				continue
			}
			if p.lenPos < 4 {
				return EventNone, nil
			}
			p.remaining = binary.LittleEndian.Uint32(p.lenBuf[:])
			p.blockPos = 0
			p.blockIdx = 0
			p.st = stBody

		case stBody, stBodyPendingFF:
			done, err := p.readBody(cur)
			if err != nil {
				return EventNone, err
			}
			if p.st == stWaitCmd {
				// A lone 0xFF aborted the in-flight image back to
				// Command; keep draining cur from there.
				continue
			}
			if !done {
				return EventNone, nil
			}
			if err := p.flushBlock(); err != nil {
				return EventNone, err
			}
			p.st = stWaitMarker
			return EventFlashComplete, nil
		}
	}
}

// readLen accumulates the 4-byte little-endian image length, applying
// the same start-marker/stuffing rule as the body: a lone 0xFF following
// a non-0xFF byte is a fresh start marker, not length data, and aborts
// the in-progress command back to Command. It returns aborted=true when
// that happens (p.st has already been updated; the caller must not treat
// lenPos as complete).
func (p *Parser) readLen(cur *cursor.Cursor) (aborted bool, err error) {
	for p.lenPos < 4 {
		var b [1]byte
		if cur.Read(b[:]) == 0 {
			return false, nil
		}
		byt := b[0]
		isStart := byt == 0xff && p.lastByte != 0xff
		isStuffing := byt == 0xff && p.lastByte == 0xff
		p.lastByte = byt
		if isStart {
			p.st = stWaitCmd
			p.lenPos = 0
			return true, nil
		}
		if isStuffing {
			continue
		}
		p.lenBuf[p.lenPos] = byt
		p.lenPos++
	}
	return false, nil
}

// readBody de-stuffs and writes body bytes into the current block buffer
// until the declared image length is exhausted, flushing full blocks as
// they fill. It returns done=true once every declared byte has been
// consumed.
func (p *Parser) readBody(cur *cursor.Cursor) (done bool, err error) {
	for p.remaining > 0 {
		// A previous call left a full block unflushed because the
		// flash device rejected it; retry the flush before accepting
		// any further bytes rather than overflowing the block buffer.
		if p.blockPos == len(p.block) {
			if err := p.flushBlock(); err != nil {
				return false, err
			}
		}
		if p.st == stBodyPendingFF {
			var b [1]byte
			if cur.Read(b[:]) == 0 {
				return false, nil
			}
			if b[0] != 0xff {
				// The lone 0xFF was a genuine start marker, not the first
				// half of a stuffed pair: abandon the in-flight block and
				// restart at Command, matching the bootloader's
				// is_start/is_stuffing framing rule.
				p.st = stWaitCmd
				return false, nil
			}
			p.st = stBody
			if err := p.appendByte(0xff); err != nil {
				return false, err
			}
			continue
		}

		var b [1]byte
		if cur.Read(b[:]) == 0 {
			return false, nil
		}
		if b[0] == 0xff {
			p.st = stBodyPendingFF
			continue
		}
		if err := p.appendByte(b[0]); err != nil {
			return false, err
		}
	}
	return true, nil
}

// appendByte adds one de-stuffed data byte to the current block, flushing
// and erasing the next block as soon as it fills.
func (p *Parser) appendByte(b byte) error {
	p.block[p.blockPos] = b
	p.blockPos++
	p.remaining--
	if p.blockPos == len(p.block) {
		if err := p.flushBlock(); err != nil {
			return err
		}
	}
	return nil
}

// flushBlock erases and writes whatever has accumulated in the current
// block buffer (which may be a short final block), then advances to the
// next block index.
func (p *Parser) flushBlock() error {
	if p.blockPos == 0 {
		return nil
	}
	if err := p.flash.Erase(p.blockIdx); err != nil {
		return fmt.Errorf("bootloader: erasing block %d: %w", p.blockIdx, err)
	}
	if err := p.flash.WriteAt(p.blockIdx, p.block[:p.blockPos]); err != nil {
		return fmt.Errorf("bootloader: writing block %d: %w", p.blockIdx, err)
	}
	p.blockIdx++
	p.blockPos = 0
	return nil
}
