// Package proofhash computes and verifies the Typing-Proof Hash (§4.7):
// the binding between final content, the chain head, and the device
// that produced it. Grounded on witnessd's witness.commitment (which
// binds a content hash to an MMR root) but adapted to bind to the
// linear chain head instead of an inclusion proof.
package proofhash

import (
	"typingproof/internal/canonical"
	"typingproof/internal/hashutil"
)

// ProofData is the hashed subset bound into the Typing-Proof Hash.
type ProofData struct {
	FinalContentHash     string `json:"finalContentHash"`
	FinalEventChainHash  string `json:"finalEventChainHash"`
	DeviceID             string `json:"deviceId"`
	Metadata             Metadata `json:"metadata"`
}

// Metadata carries the typing proof's stat fields (spec.md §3 "Typing
// proof" metadata object), alongside ProofData; it participates in the
// Typing-Proof Hash as part of canonical(proofData). isPureTyping is
// deliberately not one of these fields: §4.7 places it only in the
// separate compact summary, not in proofData.metadata.
type Metadata struct {
	TotalEvents        int     `json:"totalEvents"`
	PasteEvents        int     `json:"pasteEvents"`
	DropEvents         int     `json:"dropEvents"`
	InsertEvents       int     `json:"insertEvents"`
	DeleteEvents       int     `json:"deleteEvents"`
	TotalTypingTime    int64   `json:"totalTypingTime"`
	AverageTypingSpeed float64 `json:"averageTypingSpeed"`
}

// CanonicalValue implements canonical.Marshaler.
func (m Metadata) CanonicalValue() any {
	return map[string]any{
		"totalEvents":        m.TotalEvents,
		"pasteEvents":        m.PasteEvents,
		"dropEvents":         m.DropEvents,
		"insertEvents":       m.InsertEvents,
		"deleteEvents":       m.DeleteEvents,
		"totalTypingTime":    m.TotalTypingTime,
		"averageTypingSpeed": m.AverageTypingSpeed,
	}
}

// CanonicalValue implements canonical.Marshaler.
func (p ProofData) CanonicalValue() any {
	return map[string]any{
		"finalContentHash":    p.FinalContentHash,
		"finalEventChainHash": p.FinalEventChainHash,
		"deviceId":            p.DeviceID,
		"metadata":            p.Metadata.CanonicalValue(),
	}
}

// Compact is the minimal summary carried alongside an exported proof.
type Compact struct {
	TypingProofHash string `json:"typingProofHash"`
	IsPureTyping    bool   `json:"isPureTyping"`
}

// Compute implements §4.7's contract: finalContentHash = H(utf8(content));
// proofData = {finalContentHash, finalEventChainHash, deviceId, metadata};
// typingProofHash = H(canonical(proofData)). metadata carries the full
// stat set spec.md §3 names for the typing proof's metadata object; the
// caller derives it from stats.Summary (isPureTyping is computed
// separately for the compact summary, not included here).
func Compute(content string, chainHead string, deviceID string, metadata Metadata) (ProofData, string, error) {
	finalContentHash := hashutil.Sum([]byte(content))

	data := ProofData{
		FinalContentHash:    finalContentHash,
		FinalEventChainHash: chainHead,
		DeviceID:            deviceID,
		Metadata:            metadata,
	}

	encoded, err := canonical.Encode(data)
	if err != nil {
		return ProofData{}, "", err
	}

	return data, hashutil.Sum(encoded), nil
}

// Verify inverts Compute: it recomputes finalContentHash from content and
// typingProofHash from proofData, and reports whether both match the
// supplied values.
func Verify(content string, data ProofData, typingProofHash string) (bool, error) {
	if hashutil.Sum([]byte(content)) != data.FinalContentHash {
		return false, nil
	}

	encoded, err := canonical.Encode(data)
	if err != nil {
		return false, err
	}

	return hashutil.Sum(encoded) == typingProofHash, nil
}
