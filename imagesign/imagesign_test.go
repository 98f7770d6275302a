package imagesign

import (
	"bytes"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	image := []byte("firmware-image-contents")

	staged := Sign(priv, image)
	got, err := Verify(priv.PubKey(), staged)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, image) {
		t.Fatalf("recovered image = %q, want %q", got, image)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	other, _ := secp256k1.GeneratePrivateKey()
	staged := Sign(priv, []byte("image"))

	if _, err := Verify(other.PubKey(), staged); !errors.Is(err, ErrVerification) {
		t.Fatalf("err = %v, want ErrVerification", err)
	}
}

func TestVerifyRejectsTamperedImage(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	staged := Sign(priv, []byte("image"))
	staged[0] ^= 0xff

	if _, err := Verify(priv.PubKey(), staged); !errors.Is(err, ErrVerification) {
		t.Fatalf("err = %v, want ErrVerification", err)
	}
}

func TestVerifyRejectsTruncatedTrailer(t *testing.T) {
	if _, err := Verify(nil, []byte{0x01}); err == nil {
		t.Fatal("expected error for too-short staged image")
	}
}
