// package packet implements the resumable framed-packet parser: it turns
// a stream of byte-stuffed bus bytes into complete Packets, tolerating
// arbitrary fragmentation across successive Parse calls.
package packet

import (
	"busscope.dev/crc16"
	"busscope.dev/cursor"
	"busscope.dev/framing"
)

// InstructionStatus is the instruction byte that marks a status (reply)
// packet, the only packet kind carrying an Error field.
const InstructionStatus = 0x55

// maxDataLen bounds the parameter bytes a single packet may carry. A
// LENGTH field implying more than this is treated as a buffer overflow
// rather than grown without bound.
const maxDataLen = 512

// ParseResult reports what Parse accomplished on a given call.
type ParseResult int

const (
	// NeedMoreData means cur was exhausted before a full packet could be
	// read; call Parse again once more bytes have been filled in.
	NeedMoreData ParseResult = iota
	// PacketAvailable means Packet returns a freshly parsed, checksum-valid
	// packet.
	PacketAvailable
	// BufferOverflow means the packet's declared LENGTH exceeds what the
	// parser is willing to buffer; the parser has resynchronized and is
	// waiting for the next header.
	BufferOverflow
	// MismatchedChecksum means a full packet was read but its checksum
	// did not match; the parser has resynchronized and is waiting for
	// the next header.
	MismatchedChecksum
)

// Packet is a fully decoded, checksum-validated bus packet.
type Packet struct {
	DeviceID    byte
	Instruction byte
	Error       byte // meaningful only when Instruction == InstructionStatus
	Data        []byte
}

type parserState int

const (
	stateHeader parserState = iota
	stateCommonFields
	stateErrorField
	stateData
	stateChecksum
)

// Parser is a re-entrant packet decoder holding O(1) scratch state. Its
// zero value is ready to use.
type Parser struct {
	recv framing.Receiver
	crc  crc16.CRC
	st   parserState

	scratch    [4]byte // DeviceID, LEN_L, LEN_H, Instruction
	scratchLen int

	remainingLen int // LENGTH field: bytes following LENGTH, incl. CRC
	rawRemaining int // wire (possibly-stuffed) parameter bytes left to consume
	dataLen      int // de-stuffed parameter bytes accumulated so far

	data [maxDataLen]byte

	checksum    [2]byte
	checksumPos int

	pkt     Packet
	pktData [maxDataLen]byte
}

// Parse consumes bytes from cur, advancing internal state until either a
// terminal result is reached or cur is exhausted. Call Packet to retrieve
// the decoded packet after a PacketAvailable result.
func (p *Parser) Parse(cur *cursor.Cursor) ParseResult {
	for {
		switch p.st {
		case stateHeader:
			if !p.recv.WaitForHeader(cur) {
				return NeedMoreData
			}
			p.crc.Reset()
			for _, b := range framing.Header {
				p.crc.Update(b)
			}
			p.scratchLen = 0
			p.st = stateCommonFields

		case stateCommonFields:
			n := p.recv.Read(cur, &p.crc, p.scratch[p.scratchLen:], 4-p.scratchLen)
			p.scratchLen += n
			if p.scratchLen < 4 {
				return NeedMoreData
			}
			p.pkt.DeviceID = p.scratch[0]
			p.remainingLen = int(p.scratch[1]) | int(p.scratch[2])<<8
			p.pkt.Instruction = p.scratch[3]
			if p.remainingLen < 3 {
				p.resync()
				return BufferOverflow
			}
			// raw_remaining_data_len: wire bytes left to consume for the
			// Data state, counted before de-stuffing (a LENGTH field
			// counts any inserted stuffing byte too).
			if p.pkt.Instruction == InstructionStatus {
				p.rawRemaining = p.remainingLen - 1 /*instruction*/ - 1 /*error*/ - 2 /*crc*/
				p.st = stateErrorField
			} else {
				p.rawRemaining = p.remainingLen - 1 /*instruction*/ - 2 /*crc*/
				p.st = stateData
			}
			if p.rawRemaining < 0 || p.rawRemaining > maxDataLen {
				p.resync()
				return BufferOverflow
			}
			p.dataLen = 0

		case stateErrorField:
			var b [1]byte
			if p.recv.Read(cur, &p.crc, b[:], 1) == 0 {
				return NeedMoreData
			}
			p.pkt.Error = b[0]
			p.st = stateData

		case stateData:
			for p.rawRemaining > 0 {
				written, consumed := p.recv.ReadRawCounted(cur, &p.crc, p.data[p.dataLen:maxDataLen], p.rawRemaining)
				p.dataLen += written
				p.rawRemaining -= consumed
				if consumed == 0 {
					return NeedMoreData
				}
			}
			p.checksumPos = 0
			p.st = stateChecksum

		case stateChecksum:
			n := p.recv.ReadRaw(cur, p.checksum[p.checksumPos:], 2-p.checksumPos)
			p.checksumPos += n
			if p.checksumPos < 2 {
				return NeedMoreData
			}
			want := uint16(p.checksum[0]) | uint16(p.checksum[1])<<8
			got := p.crc.Value()
			copy(p.pktData[:p.dataLen], p.data[:p.dataLen])
			p.pkt.Data = p.pktData[:p.dataLen]
			p.resync()
			if got != want {
				return MismatchedChecksum
			}
			return PacketAvailable
		}
	}
}

// Packet returns the most recently decoded packet. Its validity is only
// guaranteed immediately after a PacketAvailable result; the backing
// array is reused by subsequent Parse calls.
func (p *Parser) Packet() Packet {
	return p.pkt
}

// resync returns the parser to its initial state, ready to search for the
// next header.
func (p *Parser) resync() {
	p.st = stateHeader
	p.recv.Reset()
}
