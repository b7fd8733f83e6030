package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainDesign is the hash domain for stored design content. The version
// suffix leaves room for a future canonical form.
const DomainDesign = "a2ui/design/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DesignHash returns the content hash of a batch. Batches that differ only
// in key order, whitespace or Unicode composition hash the same.
func DesignHash(envs []Envelope) (string, error) {
	canonical, err := MarshalCanonical(envs)
	if err != nil {
		return "", fmt.Errorf("DesignHash: %w", err)
	}
	return hashWithDomain(DomainDesign, canonical), nil
}

// RawHash hashes already-canonical bytes in the design domain.
func RawHash(canonical []byte) string {
	return hashWithDomain(DomainDesign, canonical)
}
