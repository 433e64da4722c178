// Package checkpoint implements the Checkpoint Manager: periodic
// (sequence, hash, timestamp, contentHash) snapshots of the event chain
// used by sampled verification.
//
// This is adapted from witnessd/internal/checkpoint's Chain/Commit model:
// that package snapshots a *document's* content on explicit author
// commits and attaches a VDF proof of elapsed time between commits. Here
// the checkpoint is instead derived automatically from the event chain
// itself every CheckpointInterval events (no separate elapsed-time proof
// is needed — PoSW already gates each event), and a signature step is
// added for optional external anchoring (see Sign).
package checkpoint

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"typingproof/internal/hashutil"
	"typingproof/internal/signer"
)

// DefaultInterval is the wire-contract checkpoint interval (§6 "Constants").
const DefaultInterval = 100

// Checkpoint is the append-only derived tuple described in §3.
type Checkpoint struct {
	Sequence    uint64 `json:"eventIndex"`
	Hash        string `json:"hash"`
	Timestamp   int64  `json:"timestamp"`
	ContentHash string `json:"contentHash"`

	// Signature is an optional Ed25519 signature over Hash, additive to
	// (never a substitute for) the chain's own integrity guarantees. See
	// Sign and SPEC_FULL.md "Self-sealed commitment signing".
	Signature string `json:"signature,omitempty"`
}

// Manager accumulates checkpoints as the chain builder appends records.
type Manager struct {
	interval    uint64
	checkpoints []Checkpoint
}

// NewManager creates a checkpoint manager with the given interval. A zero
// interval defaults to DefaultInterval.
func NewManager(interval uint64) *Manager {
	if interval == 0 {
		interval = DefaultInterval
	}
	return &Manager{interval: interval}
}

// Observe is called by the chain builder after every successful append.
// It emits a checkpoint when (sequence+1) % interval == 0, per §4.5.
func (m *Manager) Observe(sequence uint64, hash string, timestamp int64, contentHash string) {
	if (sequence+1)%m.interval == 0 {
		m.checkpoints = append(m.checkpoints, Checkpoint{
			Sequence:    sequence,
			Hash:        hash,
			Timestamp:   timestamp,
			ContentHash: contentHash,
		})
	}
}

// CloseAt emits a final checkpoint for the chain's last event if it isn't
// already on an interval boundary, per §4.5 "On chain close (export), if
// the last event is not already a checkpoint boundary, emit one for the
// final event."
func (m *Manager) CloseAt(sequence uint64, hash string, timestamp int64, contentHash string) {
	if len(m.checkpoints) > 0 && m.checkpoints[len(m.checkpoints)-1].Sequence == sequence {
		return
	}
	if (sequence+1)%m.interval == 0 {
		return // already emitted by Observe
	}
	m.checkpoints = append(m.checkpoints, Checkpoint{
		Sequence:    sequence,
		Hash:        hash,
		Timestamp:   timestamp,
		ContentHash: contentHash,
	})
}

// Checkpoints returns the checkpoints in insertion order. The returned
// slice must not be mutated by the caller.
func (m *Manager) Checkpoints() []Checkpoint {
	return m.checkpoints
}

// Seed preloads previously-persisted checkpoints, so a chain restored in
// a new process (see chain.Builder.Restore) continues appending new
// checkpoints rather than losing or re-deriving the ones already on disk.
func (m *Manager) Seed(checkpoints []Checkpoint) {
	m.checkpoints = append([]Checkpoint(nil), checkpoints...)
}

// ErrSignatureMismatch is returned by callers validating a checkpoint
// signature that doesn't match the supplied public key.
var ErrSignatureMismatch = errors.New("checkpoint: signature does not match")

// Sign computes an Ed25519 signature over the checkpoint's hash and
// returns it hex-encoded. This is the optional, additive anchoring
// feature described in SPEC_FULL.md; it never replaces the chain's own
// hash-chain integrity, which alone is sufficient for §4.6 verification.
func Sign(cp Checkpoint, priv ed25519.PrivateKey) string {
	sig := signer.SignCommitment(priv, []byte(cp.Hash))
	return hex.EncodeToString(sig)
}

// VerifySignature checks a hex-encoded Ed25519 signature produced by Sign
// against the checkpoint's hash.
func VerifySignature(cp Checkpoint, pub ed25519.PublicKey, sigHex string) error {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("checkpoint: decode signature: %w", err)
	}
	if !signer.VerifyCommitment(pub, []byte(cp.Hash), sig) {
		return ErrSignatureMismatch
	}
	return nil
}

// ContentHashOf computes the contentHash field: SHA-256 of the event's
// data field stringified if present, else the empty string (§3 "Checkpoint").
func ContentHashOf(dataStringified string) string {
	if dataStringified == "" {
		return ""
	}
	return hashutil.Sum([]byte(dataStringified))
}

// VerifyPrefix checks that checkpoints form a strictly monotonic-sequence
// prefix of the true invariant set, per §4.5 "MUST equal a prefix of the
// true invariant set (i.e., strictly monotonic sequence)".
func VerifyPrefix(checkpoints []Checkpoint) error {
	var last int64 = -1
	for i, cp := range checkpoints {
		if int64(cp.Sequence) <= last {
			return fmt.Errorf("checkpoint %d: sequence %d is not strictly greater than previous %d", i, cp.Sequence, last)
		}
		last = int64(cp.Sequence)
	}
	return nil
}
