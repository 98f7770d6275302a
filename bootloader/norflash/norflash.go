// package norflash implements bootloader.Flash over an SPI-attached NOR
// flash chip using the standard serial-flash command set (WREN,
// sector-erase, page-program, read-status).
package norflash

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Standard serial NOR flash commands.
const (
	cmdWriteEnable  = 0x06
	cmdSectorErase  = 0x20
	cmdPageProgram  = 0x02
	cmdReadStatus   = 0x05
	statusBusyMask  = 0x01
	pollInterval    = time.Millisecond
	busyPollTimeout = 5 * time.Second
)

// Device drives an SPI NOR flash chip, presenting it as the fixed-size
// block device the bootloader protocol writes staged images into.
type Device struct {
	conn      spi.Conn
	cs        gpio.PinOut
	blockSize int
}

// New returns a Device communicating over conn, toggling cs low for the
// duration of each command. blockSize is normally the chip's erase
// sector size.
func New(conn spi.Conn, cs gpio.PinOut, blockSize int) *Device {
	return &Device{conn: conn, cs: cs, blockSize: blockSize}
}

func (d *Device) BlockSize() int { return d.blockSize }

// Erase sends a sector-erase command for the sector starting at
// block*BlockSize(), then polls the status register until the erase
// completes.
func (d *Device) Erase(block uint32) error {
	if err := d.writeEnable(); err != nil {
		return err
	}
	if err := d.transfer(eraseCommand(block*uint32(d.blockSize)), nil); err != nil {
		return fmt.Errorf("norflash: sector erase: %w", err)
	}
	return d.waitUntilReady()
}

// eraseCommand builds the 4-byte sector-erase command for the given byte
// address, addressed big-endian per the serial flash command set.
func eraseCommand(addr uint32) []byte {
	return []byte{cmdSectorErase, byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

// programCommand builds the page-program command for addr followed by
// the payload to write.
func programCommand(addr uint32, p []byte) []byte {
	return append([]byte{cmdPageProgram, byte(addr >> 16), byte(addr >> 8), byte(addr)}, p...)
}

// WriteAt programs p at the byte offset block*BlockSize(). Callers must
// erase the target block first; the chip itself only clears bits on
// program, never sets them.
func (d *Device) WriteAt(block uint32, p []byte) error {
	if err := d.writeEnable(); err != nil {
		return err
	}
	if err := d.transfer(programCommand(block*uint32(d.blockSize), p), nil); err != nil {
		return fmt.Errorf("norflash: page program: %w", err)
	}
	return d.waitUntilReady()
}

func (d *Device) writeEnable() error {
	if err := d.transfer([]byte{cmdWriteEnable}, nil); err != nil {
		return fmt.Errorf("norflash: write enable: %w", err)
	}
	return nil
}

func (d *Device) waitUntilReady() error {
	deadline := time.Now().Add(busyPollTimeout)
	for time.Now().Before(deadline) {
		status := make([]byte, 2)
		if err := d.transfer([]byte{cmdReadStatus, 0x00}, status); err != nil {
			return fmt.Errorf("norflash: read status: %w", err)
		}
		if status[1]&statusBusyMask == 0 {
			return nil
		}
		time.Sleep(pollInterval)
	}
	return fmt.Errorf("norflash: timed out waiting for chip to become ready")
}

// transfer asserts cs, performs a full-duplex SPI exchange, and
// deasserts cs. read may be nil if the response is not needed.
func (d *Device) transfer(write []byte, read []byte) error {
	if err := d.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer d.cs.Out(gpio.High)

	if read == nil {
		read = make([]byte, len(write))
	}
	return d.conn.Tx(write, read)
}

// defaultSpeed is a conservative clock rate suitable for most serial NOR
// flash parts without consulting a datasheet.
const defaultSpeed = 20 * physic.MegaHertz

// OpenDevice registers the host's drivers, opens the named SPI port and
// chip-select pin, and returns a Device ready to use. spiPort and csPin
// follow periph.io's naming conventions, e.g. "/dev/spidev0.0" and
// "GPIO25".
func OpenDevice(spiPort, csPin string, blockSize int) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("norflash: %w", err)
	}
	port, err := spireg.Open(spiPort)
	if err != nil {
		return nil, fmt.Errorf("norflash: opening %s: %w", spiPort, err)
	}
	conn, err := port.Connect(defaultSpeed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("norflash: connecting to %s: %w", spiPort, err)
	}
	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("norflash: no such pin %s", csPin)
	}
	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("norflash: %w", err)
	}
	return New(conn, cs, blockSize), nil
}
