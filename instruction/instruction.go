// package instruction decodes a packet's instruction byte and parameter
// bytes into a typed instruction value, validating parameter length and
// argument ranges per instruction.
package instruction

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Instruction byte values, matching the wire protocol exactly.
const (
	Ping         = 0x01
	Read         = 0x02
	Write        = 0x03
	RegWrite     = 0x04
	Action       = 0x05
	FactoryReset = 0x06
	Reboot       = 0x08
	Clear        = 0x10
	Status       = 0x55
	SyncRead     = 0x82
	SyncWrite    = 0x83
	BulkRead     = 0x92
	BulkWrite    = 0x93
)

// Broadcast is the device id that addresses every device on the bus.
const Broadcast = 0xfe

// Sentinel decode errors, comparable with errors.Is.
var (
	ErrUnknownInstruction = errors.New("instruction: unknown instruction byte")
	ErrInvalidPacketLen   = errors.New("instruction: parameter length does not match instruction shape")
	ErrInvalidArgument    = errors.New("instruction: parameter value out of range")
)

// ResetKind selects what FactoryReset clears.
type ResetKind byte

const (
	ResetAll                ResetKind = 0xff
	ResetAllExceptID        ResetKind = 0x01
	ResetAllExceptIDAndBaud ResetKind = 0x02
)

// Kind identifies which variant a decoded Decoded value holds.
type Kind int

const (
	KindPing Kind = iota
	KindRead
	KindWrite
	KindRegWrite
	KindAction
	KindFactoryReset
	KindReboot
	KindClear
	KindSyncRead
	KindSyncWrite
	KindBulkRead
	KindBulkWrite
)

// ReadArgs is the decoded parameter block for Read and SyncRead-per-device
// addressing: a start address and a byte count.
type ReadArgs struct {
	Addr uint16
	Len  uint16
}

// WriteArgs is the decoded parameter block for Write and RegWrite: a
// start address followed by the bytes to write there.
type WriteArgs struct {
	Addr uint16
	Data []byte
}

// FactoryResetArgs carries which reset variant was requested.
type FactoryResetArgs struct {
	Kind ResetKind
}

// SyncReadArgs describes a broadcast read of the same address range from
// a list of devices.
type SyncReadArgs struct {
	Addr      uint16
	Len       uint16
	DeviceIDs []byte
}

// SyncWriteEntry is one device's payload within a SyncWrite instruction.
type SyncWriteEntry struct {
	DeviceID byte
	Data     []byte
}

// SyncWriteArgs describes a broadcast write of equal-length payloads to
// an address range, one payload per listed device.
type SyncWriteArgs struct {
	Addr    uint16
	Len     uint16
	Entries []SyncWriteEntry
}

// BulkReadEntry is one device's independently addressed read request
// within a BulkRead instruction.
type BulkReadEntry struct {
	DeviceID byte
	Addr     uint16
	Len      uint16
}

// BulkReadArgs lists the per-device read requests of a BulkRead.
type BulkReadArgs struct {
	Entries []BulkReadEntry
}

// BulkWriteEntry is one device's independently addressed write payload
// within a BulkWrite instruction.
type BulkWriteEntry struct {
	DeviceID byte
	Addr     uint16
	Data     []byte
}

// BulkWriteArgs lists the per-device write payloads of a BulkWrite.
type BulkWriteArgs struct {
	Entries []BulkWriteEntry
}

// Decoded is a tagged union over every instruction's decoded arguments.
// Only the field matching Kind is valid.
type Decoded struct {
	Kind Kind

	Read         ReadArgs
	Write        WriteArgs
	FactoryReset FactoryResetArgs
	SyncRead     SyncReadArgs
	SyncWrite    SyncWriteArgs
	BulkRead     BulkReadArgs
	BulkWrite    BulkWriteArgs
}

// Decode interprets instr and data as an instruction packet's parameters.
// Status packets are not instructions and are rejected.
func Decode(instr byte, data []byte) (Decoded, error) {
	switch instr {
	case Ping:
		if len(data) != 0 {
			return Decoded{}, fmt.Errorf("%w: ping takes no parameters", ErrInvalidPacketLen)
		}
		return Decoded{Kind: KindPing}, nil

	case Read:
		args, err := decodeReadArgs(data)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: KindRead, Read: args}, nil

	case Write, RegWrite:
		if len(data) < 2 {
			return Decoded{}, fmt.Errorf("%w: write requires an address", ErrInvalidPacketLen)
		}
		args := WriteArgs{Addr: binary.LittleEndian.Uint16(data[:2]), Data: data[2:]}
		if instr == RegWrite {
			return Decoded{Kind: KindRegWrite, Write: args}, nil
		}
		return Decoded{Kind: KindWrite, Write: args}, nil

	case Action:
		if len(data) != 0 {
			return Decoded{}, fmt.Errorf("%w: action takes no parameters", ErrInvalidPacketLen)
		}
		return Decoded{Kind: KindAction}, nil

	case FactoryReset:
		if len(data) != 1 {
			return Decoded{}, fmt.Errorf("%w: factory reset takes exactly one parameter", ErrInvalidPacketLen)
		}
		k := ResetKind(data[0])
		if k != ResetAll && k != ResetAllExceptID && k != ResetAllExceptIDAndBaud {
			return Decoded{}, fmt.Errorf("%w: unrecognized factory reset kind %#02x", ErrInvalidArgument, data[0])
		}
		return Decoded{Kind: KindFactoryReset, FactoryReset: FactoryResetArgs{Kind: k}}, nil

	case Reboot:
		if len(data) != 0 {
			return Decoded{}, fmt.Errorf("%w: reboot takes no parameters", ErrInvalidPacketLen)
		}
		return Decoded{Kind: KindReboot}, nil

	case Clear:
		if len(data) != 0 {
			return Decoded{}, fmt.Errorf("%w: clear takes no parameters", ErrInvalidPacketLen)
		}
		return Decoded{Kind: KindClear}, nil

	case SyncRead:
		args, err := decodeSyncReadArgs(data)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: KindSyncRead, SyncRead: args}, nil

	case SyncWrite:
		args, err := decodeSyncWriteArgs(data)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: KindSyncWrite, SyncWrite: args}, nil

	case BulkRead:
		args, err := decodeBulkReadArgs(data)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: KindBulkRead, BulkRead: args}, nil

	case BulkWrite:
		args, err := decodeBulkWriteArgs(data)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Kind: KindBulkWrite, BulkWrite: args}, nil

	default:
		return Decoded{}, fmt.Errorf("%w: %#02x", ErrUnknownInstruction, instr)
	}
}

func decodeReadArgs(data []byte) (ReadArgs, error) {
	if len(data) != 4 {
		return ReadArgs{}, fmt.Errorf("%w: read requires a 4-byte address+length block", ErrInvalidPacketLen)
	}
	return ReadArgs{
		Addr: binary.LittleEndian.Uint16(data[0:2]),
		Len:  binary.LittleEndian.Uint16(data[2:4]),
	}, nil
}

func decodeSyncReadArgs(data []byte) (SyncReadArgs, error) {
	if len(data) < 4 {
		return SyncReadArgs{}, fmt.Errorf("%w: sync read requires an address+length block", ErrInvalidPacketLen)
	}
	return SyncReadArgs{
		Addr:      binary.LittleEndian.Uint16(data[0:2]),
		Len:       binary.LittleEndian.Uint16(data[2:4]),
		DeviceIDs: data[4:],
	}, nil
}

func decodeSyncWriteArgs(data []byte) (SyncWriteArgs, error) {
	if len(data) < 4 {
		return SyncWriteArgs{}, fmt.Errorf("%w: sync write requires an address+length block", ErrInvalidPacketLen)
	}
	addr := binary.LittleEndian.Uint16(data[0:2])
	length := binary.LittleEndian.Uint16(data[2:4])
	rest := data[4:]
	if length == 0 {
		return SyncWriteArgs{}, fmt.Errorf("%w: sync write length must be nonzero", ErrInvalidArgument)
	}
	stride := int(length) + 1
	if len(rest)%stride != 0 {
		return SyncWriteArgs{}, fmt.Errorf("%w: sync write payload does not divide evenly by entry stride", ErrInvalidPacketLen)
	}
	args := SyncWriteArgs{Addr: addr, Len: length}
	for i := 0; i < len(rest); i += stride {
		entry := rest[i : i+stride]
		args.Entries = append(args.Entries, SyncWriteEntry{DeviceID: entry[0], Data: entry[1:]})
	}
	return args, nil
}

func decodeBulkReadArgs(data []byte) (BulkReadArgs, error) {
	const stride = 5
	if len(data)%stride != 0 {
		return BulkReadArgs{}, fmt.Errorf("%w: bulk read payload does not divide evenly by entry stride", ErrInvalidPacketLen)
	}
	var args BulkReadArgs
	for i := 0; i < len(data); i += stride {
		entry := data[i : i+stride]
		args.Entries = append(args.Entries, BulkReadEntry{
			DeviceID: entry[0],
			Addr:     binary.LittleEndian.Uint16(entry[1:3]),
			Len:      binary.LittleEndian.Uint16(entry[3:5]),
		})
	}
	return args, nil
}

func decodeBulkWriteArgs(data []byte) (BulkWriteArgs, error) {
	var args BulkWriteArgs
	for len(data) > 0 {
		if len(data) < 5 {
			return BulkWriteArgs{}, fmt.Errorf("%w: bulk write entry header truncated", ErrInvalidPacketLen)
		}
		deviceID := data[0]
		addr := binary.LittleEndian.Uint16(data[1:3])
		length := binary.LittleEndian.Uint16(data[3:5])
		data = data[5:]
		if int(length) > len(data) {
			return BulkWriteArgs{}, fmt.Errorf("%w: bulk write entry length exceeds remaining payload", ErrInvalidPacketLen)
		}
		args.Entries = append(args.Entries, BulkWriteEntry{
			DeviceID: deviceID,
			Addr:     addr,
			Data:     data[:length],
		})
		data = data[length:]
	}
	return args, nil
}
