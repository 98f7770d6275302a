package devicetable

// CoreBoard models the embedded power/sensor breakout board's control
// table: a single flat segment with no address indirection.
type CoreBoard struct {
	fieldTable
}

const coreBoardModelNumber = 0xabba

// NewCoreBoard returns a freshly defaulted CoreBoard control table.
func NewCoreBoard() *CoreBoard {
	return &CoreBoard{fieldTable: newFieldTable(0, 38, coreBoardFields())}
}

func (t *CoreBoard) DeviceName() string  { return "Core Board" }
func (t *CoreBoard) ModelNumber() uint16 { return coreBoardModelNumber }

func (t *CoreBoard) Write(addr uint16, data []byte) bool {
	return t.seg.Write(addr, data)
}

func (t *CoreBoard) Entries() []Entry {
	return t.entries()
}

func coreBoardFields() []Field {
	return []Field{
		{Name: "Model Number", Offset: 0, Kind: KindUint16, Default: coreBoardModelNumber},
		{Name: "Model Information", Offset: 2, Kind: KindUint32},
		{Name: "Firmware Version", Offset: 6, Kind: KindUint8},
		{Name: "LED", Offset: 10, Kind: KindUint16, Format: fmtBoolOnOff},
		{Name: "Power", Offset: 12, Kind: KindUint16, Format: fmtBoolOnOff},
		{Name: "RGB LED 1", Offset: 14, Kind: KindUint32, Format: fmtHexColor},
		{Name: "RGB LED 2", Offset: 18, Kind: KindUint32, Format: fmtHexColor},
		{Name: "RGB LED 3", Offset: 22, Kind: KindUint32, Format: fmtHexColor},
		{Name: "VBAT", Offset: 26, Kind: KindUint16, Format: fmtMilli("V")},
		{Name: "VEXT", Offset: 28, Kind: KindUint16, Format: fmtMilli("V")},
		{Name: "VCC", Offset: 30, Kind: KindUint16, Format: fmtMilli("V")},
		{Name: "VDXL", Offset: 32, Kind: KindUint16, Format: fmtMilli("V")},
		{Name: "Current", Offset: 34, Kind: KindUint16, Format: fmtMilli("A")},
		{Name: "Power On", Offset: 36, Kind: KindUint16, Format: fmtCorePowerOn},
	}
}

func fmtHexColor(raw uint32) string {
	return fmtHex(raw)
}

func fmtHex(raw uint32) string {
	const digits = "0123456789abcdef"
	buf := [8]byte{}
	for i := 7; i >= 0; i-- {
		buf[i] = digits[raw&0xf]
		raw >>= 4
	}
	return "#" + string(buf[2:])
}

// IMU models the inertial measurement unit's control table: raw
// accelerometer, gyroscope and orientation readings plus range settings.
type IMU struct {
	fieldTable
}

const imuModelNumber = 0xbaff

// NewIMU returns a freshly defaulted IMU control table.
func NewIMU() *IMU {
	return &IMU{fieldTable: newFieldTable(0, 78, imuFields())}
}

func (t *IMU) DeviceName() string  { return "IMU" }
func (t *IMU) ModelNumber() uint16 { return imuModelNumber }

func (t *IMU) Write(addr uint16, data []byte) bool {
	return t.seg.Write(addr, data)
}

func (t *IMU) Entries() []Entry {
	return t.entries()
}

func imuFields() []Field {
	return []Field{
		{Name: "Model Number", Offset: 0, Kind: KindUint16, Default: imuModelNumber},
		{Name: "Model Information", Offset: 2, Kind: KindUint32},
		{Name: "Firmware Version", Offset: 6, Kind: KindUint8},
		{Name: "Acceleration X", Offset: 36, Kind: KindFloat32, Format: fmtFloat32},
		{Name: "Acceleration Y", Offset: 40, Kind: KindFloat32, Format: fmtFloat32},
		{Name: "Acceleration Z", Offset: 44, Kind: KindFloat32, Format: fmtFloat32},
		{Name: "Gyro X", Offset: 48, Kind: KindFloat32, Format: fmtFloat32},
		{Name: "Gyro Y", Offset: 52, Kind: KindFloat32, Format: fmtFloat32},
		{Name: "Gyro Z", Offset: 56, Kind: KindFloat32, Format: fmtFloat32},
		{Name: "Orientation X", Offset: 60, Kind: KindFloat32, Format: fmtFloat32},
		{Name: "Orientation Y", Offset: 64, Kind: KindFloat32, Format: fmtFloat32},
		{Name: "Orientation Z", Offset: 68, Kind: KindFloat32, Format: fmtFloat32},
		{Name: "Orientation W", Offset: 72, Kind: KindFloat32, Format: fmtFloat32},
		{Name: "Gyro Range", Offset: 76, Kind: KindUint8, Default: 3},
		{Name: "Acceleration Range", Offset: 77, Kind: KindUint8, Default: 3},
	}
}

// FootPressureSensor models a foot-mounted 4-cell pressure sensor's
// control table.
type FootPressureSensor struct {
	fieldTable
}

const footPressureSensorModelNumber = 0xaffe

// NewFootPressureSensor returns a freshly defaulted FootPressureSensor
// control table.
func NewFootPressureSensor() *FootPressureSensor {
	return &FootPressureSensor{fieldTable: newFieldTable(0, 52, footPressureFields())}
}

func (t *FootPressureSensor) DeviceName() string  { return "Foot Pressure Sensor" }
func (t *FootPressureSensor) ModelNumber() uint16 { return footPressureSensorModelNumber }

func (t *FootPressureSensor) Write(addr uint16, data []byte) bool {
	return t.seg.Write(addr, data)
}

func (t *FootPressureSensor) Entries() []Entry {
	return t.entries()
}

func footPressureFields() []Field {
	return []Field{
		{Name: "Model Number", Offset: 0, Kind: KindUint16, Default: footPressureSensorModelNumber},
		{Name: "Model Information", Offset: 2, Kind: KindUint32},
		{Name: "Firmware Version", Offset: 6, Kind: KindUint8},
		{Name: "Front Left", Offset: 36, Kind: KindUint32},
		{Name: "Front Right", Offset: 40, Kind: KindUint32},
		{Name: "Back Left", Offset: 44, Kind: KindUint32},
		{Name: "Back Right", Offset: 48, Kind: KindUint32},
	}
}

// NewByModelNumber returns a freshly defaulted control table for a known
// model number, or Unknown if the model number is not recognized.
func NewByModelNumber(modelNumber uint16) ControlTable {
	switch modelNumber {
	case mx64ModelNumber:
		return NewMX64()
	case mx106ModelNumber:
		return NewMX106()
	case coreBoardModelNumber:
		return NewCoreBoard()
	case imuModelNumber:
		return NewIMU()
	case footPressureSensorModelNumber:
		return NewFootPressureSensor()
	default:
		return Unknown{}
	}
}
