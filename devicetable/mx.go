package devicetable

import "busscope.dev/memmap"

// mxAddrMaps are the two address-indirection ranges shared by the MX-64
// and MX-106 tables, aliasing a client-visible "indirect address" range
// onto a "indirect data" range further up the table. A real device ships
// with both ranges already pointing at their corresponding data address
// one-for-one, so an Indirect Data address whose entry has not been
// reconfigured resolves to itself rather than to offset 0.
func mxAddrMaps() [2]memmap.AddressMap {
	m1 := memmap.NewAddressMap(168, 224, 28)
	m2 := memmap.NewAddressMap(578, 634, 28)
	for i := uint16(0); i < 28; i++ {
		m1.WriteUint16(168+2*i, 224+i)
		m2.WriteUint16(578+2*i, 634+i)
	}
	return [2]memmap.AddressMap{m1, m2}
}

// MX64 models an MX-64 series servo's control table: a single flat
// segment plus the two indirect-address maps common to the MX family.
type MX64 struct {
	fieldTable
	maps [2]memmap.AddressMap
}

const mx64ModelNumber = 311

// NewMX64 returns a freshly defaulted MX-64 control table.
func NewMX64() *MX64 {
	return &MX64{
		fieldTable: newFieldTable(0, 147, mxFields(mx64ModelNumber)),
		maps:       mxAddrMaps(),
	}
}

func (t *MX64) DeviceName() string  { return "MX-64" }
func (t *MX64) ModelNumber() uint16 { return mx64ModelNumber }

func (t *MX64) Write(addr uint16, data []byte) bool {
	resolved := t.maps[1].Resolve(t.maps[0].Resolve(addr))
	return t.seg.Write(resolved, data) ||
		t.maps[0].Write(resolved, data) ||
		t.maps[1].Write(resolved, data)
}

func (t *MX64) Entries() []Entry {
	return t.entries()
}

// MX106 models an MX-106 series servo's control table: the same family
// shape, segment and field schema as MX-64, differing only in its model
// number.
type MX106 struct {
	fieldTable
	maps [2]memmap.AddressMap
}

const mx106ModelNumber = 321

// NewMX106 returns a freshly defaulted MX-106 control table.
func NewMX106() *MX106 {
	return &MX106{
		fieldTable: newFieldTable(0, 147, mxFields(mx106ModelNumber)),
		maps:       mxAddrMaps(),
	}
}

func (t *MX106) DeviceName() string  { return "MX-106" }
func (t *MX106) ModelNumber() uint16 { return mx106ModelNumber }

func (t *MX106) Write(addr uint16, data []byte) bool {
	resolved := t.maps[1].Resolve(t.maps[0].Resolve(addr))
	return t.seg.Write(resolved, data) ||
		t.maps[0].Write(resolved, data) ||
		t.maps[1].Write(resolved, data)
}

func (t *MX106) Entries() []Entry {
	return t.entries()
}

// mxFields is the field schema shared by the MX-64 and MX-106 control
// tables, differing only in their Model Number default.
func mxFields(modelNumber uint32) []Field {
	return []Field{
		{Name: "Model Number", Offset: 0, Kind: KindUint16, Default: modelNumber},
		{Name: "Model Information", Offset: 2, Kind: KindUint32},
		{Name: "Firmware Version", Offset: 6, Kind: KindUint8},
		{Name: "Id", Offset: 7, Kind: KindUint8, Default: 1},
		{Name: "Baud Rate", Offset: 8, Kind: KindUint8, Default: 1},
		{Name: "Return Delay Time", Offset: 9, Kind: KindUint8, Default: 250},
		{Name: "Drive Mode", Offset: 10, Kind: KindUint8},
		{Name: "Operating Mode", Offset: 11, Kind: KindUint8, Default: 3},
		{Name: "Secondary Id", Offset: 12, Kind: KindUint8, Default: 255},
		{Name: "Protocol Type", Offset: 13, Kind: KindUint8, Default: 2},
		{Name: "Homing Offset", Offset: 20, Kind: KindUint32},
		{Name: "Moving Threshold", Offset: 24, Kind: KindUint32, Default: 10},
		{Name: "Temperature Limit", Offset: 31, Kind: KindUint8, Default: 80},
		{Name: "Max Voltage Limit", Offset: 32, Kind: KindUint16, Default: 160},
		{Name: "Min Voltage Limit", Offset: 34, Kind: KindUint16, Default: 95},
		{Name: "PWM Limit", Offset: 36, Kind: KindUint16, Default: 885},
		{Name: "Current Limit", Offset: 38, Kind: KindUint16, Default: 2047},
		{Name: "Acceleration Limit", Offset: 40, Kind: KindUint32, Default: 32767},
		{Name: "Velocity Limit", Offset: 44, Kind: KindUint32, Default: 210},
		{Name: "Max Position Limit", Offset: 48, Kind: KindUint32, Default: 4095},
		{Name: "Min Position Limit", Offset: 52, Kind: KindUint32},
		{Name: "Shutdown", Offset: 63, Kind: KindUint8, Default: 52},
		{Name: "Torque Enable", Offset: 64, Kind: KindUint8, Format: fmtBoolOnOff},
		{Name: "LED", Offset: 65, Kind: KindUint8, Format: fmtBoolOnOff},
		{Name: "Status Return Level", Offset: 68, Kind: KindUint8, Default: 2},
		{Name: "Registered Instruction", Offset: 69, Kind: KindUint8},
		{Name: "Hardware Error Status", Offset: 70, Kind: KindUint8},
		{Name: "Velocity I-Gain", Offset: 76, Kind: KindUint16, Default: 1920},
		{Name: "Velocity P-Gain", Offset: 78, Kind: KindUint16, Default: 100},
		{Name: "Position D-Gain", Offset: 80, Kind: KindUint16},
		{Name: "Position I-Gain", Offset: 82, Kind: KindUint16},
		{Name: "Position P-Gain", Offset: 84, Kind: KindUint16, Default: 850},
		{Name: "Feedforward 2nd Gain", Offset: 88, Kind: KindUint16},
		{Name: "Feedforward 1st Gain", Offset: 90, Kind: KindUint16},
		{Name: "Bus Watchdog", Offset: 98, Kind: KindUint8},
		{Name: "Goal PWM", Offset: 100, Kind: KindUint16},
		{Name: "Goal Current", Offset: 102, Kind: KindUint16},
		{Name: "Goal Velocity", Offset: 104, Kind: KindUint32},
		{Name: "Profile Acceleration", Offset: 108, Kind: KindUint32},
		{Name: "Profile Velocity", Offset: 112, Kind: KindUint32},
		{Name: "Goal Position", Offset: 116, Kind: KindUint32},
		{Name: "Realtime Tick", Offset: 120, Kind: KindUint16},
		{Name: "Moving", Offset: 122, Kind: KindUint8, Format: fmtBoolOnOff},
		{Name: "Moving Status", Offset: 123, Kind: KindUint8},
		{Name: "Present PWM", Offset: 124, Kind: KindUint16},
		{Name: "Present Current", Offset: 126, Kind: KindUint16},
		{Name: "Present Velocity", Offset: 128, Kind: KindUint32},
		{Name: "Present Position", Offset: 132, Kind: KindUint32},
		{Name: "Velocity Trajectory", Offset: 136, Kind: KindUint32},
		{Name: "Position Trajectory", Offset: 140, Kind: KindUint32},
		{Name: "Present Input Voltage", Offset: 144, Kind: KindUint16, Format: fmtMilli("V")},
		{Name: "Present Temperature", Offset: 146, Kind: KindUint8, Format: func(raw uint32) string {
			return fmtDecimal(raw) + "C"
		}},
	}
}
