package ingest

import (
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// defaultBaud matches the Dynamixel Protocol 2.0 bus's common default
// baud rate; real deployments typically override it per bus.
const defaultBaud = 1_000_000

// OpenSerial opens dev as a bus capture source at baud (0 selects
// defaultBaud), returning a plain io.ReadCloser the caller can poll and
// feed into a ReceiveBuf.
func OpenSerial(dev string, baud int) (io.ReadCloser, error) {
	if baud == 0 {
		baud = defaultBaud
	}
	c := &serial.Config{Name: dev, Baud: baud}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("ingest: opening %s: %w", dev, err)
	}
	return port, nil
}

// Pump reads from src into successive halves of buf until src returns an
// error (including io.EOF), alternating FillFront/FillBack the way the
// embedded firmware's DMA controller alternates half-buffer interrupts.
func Pump(src io.Reader, buf *ReceiveBuf) error {
	chunk := make([]byte, len(buf.front))
	front := true
	for {
		n, err := src.Read(chunk)
		if n > 0 {
			if front {
				buf.FillFront(chunk[:n])
			} else {
				buf.FillBack(chunk[:n])
			}
			front = !front
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("ingest: reading capture source: %w", err)
		}
	}
}
