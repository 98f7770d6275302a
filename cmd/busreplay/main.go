// Command busreplay decodes a captured bus byte stream offline, printing
// each device's reconstructed control table and optionally exporting a
// CBOR diagnostics snapshot.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"busscope.dev/correlate"
	"busscope.dev/diagnostics"
	"busscope.dev/ingest"
	"busscope.dev/packet"
)

func main() {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	capturePath := flag.String("capture", "", "path to a raw bus capture file")
	snapshotPath := flag.String("snapshot", "", "optional path to write a CBOR diagnostics snapshot")
	verbose := flag.Bool("v", false, "log every parser result, not just errors")
	flag.Parse()

	if *capturePath == "" {
		return fmt.Errorf("busreplay: -capture is required")
	}

	data, err := os.ReadFile(*capturePath)
	if err != nil {
		return fmt.Errorf("busreplay: reading capture: %w", err)
	}

	var engine correlate.Engine
	buf := ingest.NewReceiveBuf(len(data))
	drainer := ingest.NewDrainer(buf, &engine)
	drainer.OnResult(func(r packet.ParseResult) {
		switch r {
		case packet.MismatchedChecksum:
			log.Println("checksum mismatch, resynchronizing")
		case packet.BufferOverflow:
			log.Println("buffer overflow, resynchronizing")
		default:
			if *verbose {
				log.Printf("parser result: %v", r)
			}
		}
	})

	buf.FillFront(data)
	now := time.Now()
	drainer.Drain(now)
	engine.ExpireStale(now)

	for _, id := range engine.Devices() {
		table := engine.Table(id)
		fmt.Printf("device %d: %s (model %d)\n", id, table.DeviceName(), table.ModelNumber())
		for _, entry := range table.Entries() {
			fmt.Printf("  %s = %s\n", entry.Name, entry.Value)
		}
	}
	for kind, n := range engine.Counters() {
		if n > 0 {
			fmt.Printf("error count %v: %d\n", kind, n)
		}
	}

	if *snapshotPath != "" {
		snap := diagnostics.Capture(&engine)
		encoded, err := diagnostics.Encode(snap)
		if err != nil {
			return fmt.Errorf("busreplay: %w", err)
		}
		if err := os.WriteFile(*snapshotPath, encoded, 0o644); err != nil {
			return fmt.Errorf("busreplay: writing snapshot: %w", err)
		}
	}
	return nil
}
