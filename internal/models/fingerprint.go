package models

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

type Fingerprint string

// NewFingerprint derives a stable identity for a (source, text) pair. Both
// parts are NFC-normalised so the same post yields the same value across
// restarts and clients that encode Cyrillic differently.
func NewFingerprint(sourceID, text string) Fingerprint {
	h := sha256.New()
	h.Write([]byte(norm.NFC.String(NormalizeSourceID(sourceID))))
	h.Write([]byte{0})
	h.Write([]byte(norm.NFC.String(text)))
	return Fingerprint(fmt.Sprintf("%x", h.Sum(nil)[:16]))
}
