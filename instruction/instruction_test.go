package instruction

import (
	"errors"
	"testing"
)

func TestDecodePing(t *testing.T) {
	d, err := Decode(Ping, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != KindPing {
		t.Fatalf("kind = %v, want KindPing", d.Kind)
	}
}

func TestDecodePingRejectsParams(t *testing.T) {
	_, err := Decode(Ping, []byte{0x01})
	if !errors.Is(err, ErrInvalidPacketLen) {
		t.Fatalf("err = %v, want ErrInvalidPacketLen", err)
	}
}

func TestDecodeRead(t *testing.T) {
	d, err := Decode(Read, []byte{0x74, 0x00, 0x04, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if d.Read.Addr != 0x74 || d.Read.Len != 4 {
		t.Fatalf("got %+v", d.Read)
	}
}

func TestDecodeWrite(t *testing.T) {
	d, err := Decode(Write, []byte{0x74, 0x00, 0x01, 0x02, 0x03, 0x04})
	if err != nil {
		t.Fatal(err)
	}
	if d.Write.Addr != 0x74 {
		t.Fatalf("addr = %#x, want 0x74", d.Write.Addr)
	}
	if len(d.Write.Data) != 4 {
		t.Fatalf("data = %v", d.Write.Data)
	}
}

func TestDecodeFactoryResetValidatesKind(t *testing.T) {
	if _, err := Decode(FactoryReset, []byte{0x03}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	d, err := Decode(FactoryReset, []byte{0xff})
	if err != nil {
		t.Fatal(err)
	}
	if d.FactoryReset.Kind != ResetAll {
		t.Fatalf("kind = %v, want ResetAll", d.FactoryReset.Kind)
	}
}

func TestDecodeSyncWrite(t *testing.T) {
	data := []byte{
		0x74, 0x00, 0x02, 0x00, // addr=0x74, len=2
		0x01, 0xaa, 0xbb,
		0x02, 0xcc, 0xdd,
	}
	d, err := Decode(SyncWrite, data)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.SyncWrite.Entries) != 2 {
		t.Fatalf("entries = %+v", d.SyncWrite.Entries)
	}
	if d.SyncWrite.Entries[0].DeviceID != 1 || d.SyncWrite.Entries[1].DeviceID != 2 {
		t.Fatalf("entries = %+v", d.SyncWrite.Entries)
	}
}

func TestDecodeSyncWriteRejectsUnevenStride(t *testing.T) {
	data := []byte{0x74, 0x00, 0x02, 0x00, 0x01, 0xaa}
	if _, err := Decode(SyncWrite, data); !errors.Is(err, ErrInvalidPacketLen) {
		t.Fatalf("err = %v, want ErrInvalidPacketLen", err)
	}
}

func TestDecodeBulkRead(t *testing.T) {
	data := []byte{
		0x01, 0x74, 0x00, 0x04, 0x00,
		0x02, 0x84, 0x00, 0x08, 0x00,
	}
	d, err := Decode(BulkRead, data)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.BulkRead.Entries) != 2 {
		t.Fatalf("entries = %+v", d.BulkRead.Entries)
	}
	if d.BulkRead.Entries[1].Addr != 0x84 || d.BulkRead.Entries[1].Len != 8 {
		t.Fatalf("entries = %+v", d.BulkRead.Entries)
	}
}

func TestDecodeBulkWrite(t *testing.T) {
	data := []byte{
		0x01, 0x74, 0x00, 0x02, 0x00, 0xaa, 0xbb,
		0x02, 0x74, 0x00, 0x01, 0x00, 0xcc,
	}
	d, err := Decode(BulkWrite, data)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.BulkWrite.Entries) != 2 {
		t.Fatalf("entries = %+v", d.BulkWrite.Entries)
	}
	if len(d.BulkWrite.Entries[0].Data) != 2 || len(d.BulkWrite.Entries[1].Data) != 1 {
		t.Fatalf("entries = %+v", d.BulkWrite.Entries)
	}
}

func TestDecodeClearIsZeroPayload(t *testing.T) {
	d, err := Decode(Clear, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != KindClear {
		t.Fatalf("kind = %v, want KindClear", d.Kind)
	}
}

func TestDecodeClearRejectsParams(t *testing.T) {
	if _, err := Decode(Clear, []byte{0x01, 0x44, 0x58, 0x4c, 0x22}); !errors.Is(err, ErrInvalidPacketLen) {
		t.Fatalf("err = %v, want ErrInvalidPacketLen", err)
	}
}

func TestDecodeUnknownInstruction(t *testing.T) {
	if _, err := Decode(0x7f, nil); !errors.Is(err, ErrUnknownInstruction) {
		t.Fatalf("err = %v, want ErrUnknownInstruction", err)
	}
}
