// Package attestation carries the opaque shape of a signed attestation
// payload (§2 "Human attestation"/"Attestation issuer"): the core never
// validates the signature, only stores the payload verbatim as an
// event's data field, so this package exists to document and decode
// that shape rather than to enforce it.
package attestation

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed template.json
var templateJSON []byte

// Template returns the embedded attestation payload template, showing
// the fields an attestation issuer is expected to populate.
func Template() []byte {
	return templateJSON
}

// Payload is the documented shape of an attestation token, per §2
// "Attestation issuer". The core stores this opaquely; Decode exists
// only so callers and tests can inspect a payload without re-deriving
// its field names.
type Payload struct {
	Verified  bool    `json:"verified"`
	Score     float64 `json:"score"`
	Action    string  `json:"action"`
	Timestamp int64   `json:"timestamp"`
	Hostname  string  `json:"hostname"`
	Signature string  `json:"signature"`
}

// Decode parses a raw attestation payload. It does not verify the
// signature; verification is an external service's responsibility.
func Decode(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("attestation: decode payload: %w", err)
	}
	return p, nil
}
