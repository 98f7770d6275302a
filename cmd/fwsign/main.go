// Command fwsign signs and verifies firmware images staged for the
// bootloader, using a detached ECDSA (secp256k1) signature over each
// image's SHA-256 digest.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"busscope.dev/imagesign"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: fwsign <sign|verify> ...")
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "sign":
		err = runSign(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	default:
		err = fmt.Errorf("fwsign: unknown subcommand %q", os.Args[1])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyHex := fs.String("key", "", "hex-encoded secp256k1 private key")
	in := fs.String("in", "", "path to the unsigned image")
	out := fs.String("out", "", "path to write the signed image")
	fs.Parse(args)

	if *keyHex == "" || *in == "" || *out == "" {
		return fmt.Errorf("fwsign sign: -key, -in and -out are required")
	}
	keyBytes, err := hex.DecodeString(*keyHex)
	if err != nil {
		return fmt.Errorf("fwsign sign: decoding key: %w", err)
	}
	priv := secp256k1.PrivKeyFromBytes(keyBytes)

	image, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("fwsign sign: %w", err)
	}
	staged := imagesign.Sign(priv, image)
	if err := os.WriteFile(*out, staged, 0o644); err != nil {
		return fmt.Errorf("fwsign sign: %w", err)
	}
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	pubHex := fs.String("pubkey", "", "hex-encoded compressed secp256k1 public key")
	in := fs.String("in", "", "path to the staged (signed) image")
	out := fs.String("out", "", "optional path to write the verified image, trailer stripped")
	insecure := fs.Bool("insecure", false, "skip verification and pass the image through unchecked")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("fwsign verify: -in is required")
	}
	staged, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("fwsign verify: %w", err)
	}

	var image []byte
	if *insecure {
		fmt.Fprintln(os.Stderr, "fwsign verify: -insecure set, skipping signature check")
		image = staged
	} else {
		if *pubHex == "" {
			return fmt.Errorf("fwsign verify: -pubkey is required unless -insecure is set")
		}
		pubBytes, err := hex.DecodeString(*pubHex)
		if err != nil {
			return fmt.Errorf("fwsign verify: decoding pubkey: %w", err)
		}
		pub, err := secp256k1.ParsePubKey(pubBytes)
		if err != nil {
			return fmt.Errorf("fwsign verify: parsing pubkey: %w", err)
		}
		image, err = imagesign.Verify(pub, staged)
		if err != nil {
			return fmt.Errorf("fwsign verify: %w", err)
		}
	}

	if *out != "" {
		if err := os.WriteFile(*out, image, 0o644); err != nil {
			return fmt.Errorf("fwsign verify: %w", err)
		}
	}
	return nil
}
