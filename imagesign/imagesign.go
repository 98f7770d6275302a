// package imagesign implements detached ECDSA (secp256k1) signing and
// verification of staged firmware images, so the bootloader can reject a
// corrupted or unauthorized image before it ever reaches flash.
package imagesign

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ErrVerification is returned by Verify when the signature does not
// match the image under the given public key.
var ErrVerification = errors.New("imagesign: signature verification failed")

// trailerLenSize is the width of the length field appended after the DER
// signature, at the very end of a staged image.
const trailerLenSize = 2

// Sign appends a detached signature trailer to image: a DER-encoded
// ECDSA signature over the image's SHA-256 digest, followed by its
// length as a little-endian uint16. The trailer is self-describing from
// the end of the buffer, so Verify does not need to know the signature's
// length up front.
func Sign(priv *secp256k1.PrivateKey, image []byte) []byte {
	digest := sha256.Sum256(image)
	sig := ecdsa.Sign(priv, digest[:])
	der := sig.Serialize()

	out := make([]byte, 0, len(image)+len(der)+trailerLenSize)
	out = append(out, image...)
	out = append(out, der...)
	var lenBuf [trailerLenSize]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(der)))
	out = append(out, lenBuf[:]...)
	return out
}

// Verify splits staged into its image payload and trailing signature and
// reports ErrVerification unless the signature verifies against pub. On
// success it returns the image payload with the trailer stripped.
func Verify(pub *secp256k1.PublicKey, staged []byte) ([]byte, error) {
	if len(staged) < trailerLenSize {
		return nil, fmt.Errorf("imagesign: staged image too short to carry a signature trailer")
	}
	derLen := int(binary.LittleEndian.Uint16(staged[len(staged)-trailerLenSize:]))
	sigStart := len(staged) - trailerLenSize - derLen
	if derLen < 0 || sigStart < 0 {
		return nil, fmt.Errorf("imagesign: malformed signature trailer")
	}

	image := staged[:sigStart]
	der := staged[sigStart : sigStart+derLen]

	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return nil, fmt.Errorf("imagesign: parsing signature: %w", err)
	}
	digest := sha256.Sum256(image)
	if !sig.Verify(digest[:], pub) {
		return nil, ErrVerification
	}
	return image, nil
}
