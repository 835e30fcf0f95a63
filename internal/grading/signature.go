package grading

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Signature is the snapshot of a content taken when an attempt starts.
// Attempts are always graded against their own signature.
type Signature struct {
	Kind   ContentKind   `json:"kind"`
	Config ContentConfig `json:"config"`
	Items  []Item        `json:"items"`
}

// Encode returns the canonical JSON form of the signature and its blake2b-256 digest.
// The JSON round trip also deep copies every item spec.
func (s Signature) Encode() ([]byte, string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, "", err
	}
	sum := blake2b.Sum256(b)
	return b, hex.EncodeToString(sum[:]), nil
}

func DecodeSignature(b []byte) (Signature, error) {
	var s Signature
	err := json.Unmarshal(b, &s)
	return s, err
}

// Verify reports whether b still hashes to digest.
func Verify(b []byte, digest string) bool {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]) == digest
}
