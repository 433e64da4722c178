// Package core implements the §6 Inbound API: it wires the Chain Builder,
// Checkpoint Manager, Verifier, Typing-Proof Hash, and Statistics packages
// into the single entry point an editor host embeds, and hands every
// successful append to the storage adapter. This mirrors how
// witnessd/internal/checkpoint.Chain is itself embedded by witnessd's
// daemon main — a thin façade over the lower packages, not new algorithmic
// logic of its own.
package core

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"typingproof/internal/canonical"
	"typingproof/internal/chain"
	"typingproof/internal/checkpoint"
	"typingproof/internal/config"
	"typingproof/internal/event"
	"typingproof/internal/fingerprint"
	"typingproof/internal/hashutil"
	"typingproof/internal/logging"
	"typingproof/internal/proofhash"
	"typingproof/internal/stats"
	"typingproof/internal/store"
)

// ProofVersion is the wire-contract version stamped into every exported
// proof file (§6 "Exported proof file").
const ProofVersion = "3.2.0"

// Core is the editor-facing façade over one chain's lifetime: initialize,
// append events, export, and inspect statistics. A Core is single-chain;
// an embedding host that manages several open tabs constructs one per tab.
type Core struct {
	mu sync.Mutex

	builder *chain.Builder
	store   *store.Store
	logger  *logging.Logger

	components fingerprint.Components
	signingKey ed25519.PrivateKey

	persistedCheckpoints int
	userAgent            string
}

// Option configures a Core at construction time.
type Option func(*Core)

// WithStore attaches a persistence adapter. Every successful append and
// checkpoint is written through it; a nil store (the default) keeps the
// chain purely in-memory, matching spec.md §6's "the core does not itself
// do I/O" — persistence is an adapter the embedder opts into.
func WithStore(s *store.Store) Option {
	return func(c *Core) { c.store = s }
}

// WithSigningKey attaches an Ed25519 key used to additionally sign each
// checkpoint for external anchoring (see internal/checkpoint.Sign). This
// is additive; chain integrity never depends on it.
func WithSigningKey(key ed25519.PrivateKey) Option {
	return func(c *Core) { c.signingKey = key }
}

// WithUserAgent sets the string stamped into an exported proof's
// metadata.userAgent field.
func WithUserAgent(ua string) Option {
	return func(c *Core) { c.userAgent = ua }
}

// WithLogger overrides the logger used by both Core and the underlying
// chain Builder.
func WithLogger(l *logging.Logger) Option {
	return func(c *Core) { c.logger = l }
}

// New constructs a Core from a configuration, sized PoSW iteration count
// and checkpoint interval included, plus any additional options.
func New(cfg *config.Config, opts ...Option) *Core {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := loggerFromConfig(cfg)

	c := &Core{logger: logger, userAgent: "typingproof-core"}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger != logger {
		logger = c.logger
	}

	c.builder = chain.New(
		chain.WithIterations(cfg.PoSWIterations),
		chain.WithCheckpointInterval(cfg.CheckpointInterval),
		chain.WithLogger(logger),
	)
	return c
}

// loggerFromConfig builds a logger from cfg's LogPath/LogLevel/LogFormat.
// An embedding host that wants a different destination (e.g. an in-memory
// writer for tests) should use WithLogger instead; this is only the
// config-file-driven default.
func loggerFromConfig(cfg *config.Config) *logging.Logger {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		format = logging.FormatText
	}

	logger, err := logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    "file",
		FilePath:  cfg.LogPath,
		Component: "typingproof-core",
	})
	if err != nil {
		return logging.Default()
	}
	return logger
}

// Initialize binds the chain to a caller-supplied device fingerprint hex
// string (spec.md §6's "Outbound dependency" — the core stores it
// opaquely) and, if attestationPayload is non-nil, records it as event #0
// via RecordHumanAttestation.
func (c *Core) Initialize(fingerprintHex string, attestationPayload any) error {
	if err := c.builder.Initialize(fingerprintHex); err != nil {
		return err
	}

	if c.store != nil {
		_, _, initialHash := c.builder.Snapshot()
		meta := store.ChainMeta{
			Fingerprint: fingerprintHex,
			InitialHash: initialHash,
			StartTime:   time.Now().UnixMilli(),
		}
		if err := c.store.SetChainMeta(meta); err != nil {
			return err
		}
	}

	if attestationPayload != nil {
		if _, err := c.RecordHumanAttestation(attestationPayload); err != nil {
			return err
		}
	}
	return nil
}

// ErrNoPersistedChain is returned by Resume when the attached store has no
// chain metadata yet — the caller should call Initialize instead.
var ErrNoPersistedChain = errors.New("core: store has no persisted chain")

// Resume rehydrates a Core's in-memory chain from its attached store,
// replaying every previously persisted event and checkpoint through
// chain.Builder.Restore. Use this instead of Initialize when reopening a
// store from an earlier process: Initialize always derives a fresh
// initial hash and would silently fork a new chain rather than continuing
// the persisted one.
func (c *Core) Resume() error {
	if c.store == nil {
		return fmt.Errorf("core: Resume requires a Core constructed with WithStore")
	}

	meta, err := c.store.GetChainMeta()
	if err != nil {
		return fmt.Errorf("core: load chain meta: %w", err)
	}
	if meta == nil {
		return ErrNoPersistedChain
	}

	rows, err := c.store.GetEvents()
	if err != nil {
		return fmt.Errorf("core: load events: %w", err)
	}
	events := make([]*event.Record, len(rows))
	for i, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return fmt.Errorf("core: decode event %d: %w", row.Sequence, err)
		}
		events[i] = rec
	}

	cpRows, err := c.store.GetCheckpoints()
	if err != nil {
		return fmt.Errorf("core: load checkpoints: %w", err)
	}
	checkpoints := make([]checkpoint.Checkpoint, len(cpRows))
	for i, row := range cpRows {
		checkpoints[i] = checkpoint.Checkpoint{
			Sequence:    row.Sequence,
			Hash:        row.Hash,
			Timestamp:   row.Timestamp,
			ContentHash: row.ContentHash,
			Signature:   row.Signature,
		}
	}

	if err := c.builder.Restore(meta.Fingerprint, meta.InitialHash, events, checkpoints); err != nil {
		return err
	}
	c.persistedCheckpoints = len(checkpoints)
	return nil
}

// recordFromRow reconstructs the event.Record a store.EventRow was
// persisted from, the inverse of persistRecordAt below.
func recordFromRow(row store.EventRow) (*event.Record, error) {
	rec := &event.Record{
		Sequence:     row.Sequence,
		Timestamp:    row.Timestamp,
		Type:         event.Kind(row.Type),
		InputType:    event.InputType(row.InputType),
		RangeOffset:  row.RangeOffset,
		RangeLength:  row.RangeLength,
		PreviousHash: row.PreviousHash,
		PoSW: event.PoSW{
			Iterations:       row.PoSWIterations,
			Nonce:            row.PoSWNonce,
			IntermediateHash: row.PoSWIntermediateHash,
			ComputeTimeMs:    row.PoSWComputeTimeMs,
		},
		Hash: row.Hash,
	}

	if row.DataJSON != "" {
		var data any
		if err := json.Unmarshal([]byte(row.DataJSON), &data); err != nil {
			return nil, fmt.Errorf("decode data json: %w", err)
		}
		rec.Data = data
	}
	if row.RangeJSON != "" {
		var rng event.Range
		if err := json.Unmarshal([]byte(row.RangeJSON), &rng); err != nil {
			return nil, fmt.Errorf("decode range json: %w", err)
		}
		rec.Range = &rng
	}

	return rec, nil
}

// InitializeWithFingerprint derives fingerprintHex from components and
// remembers components for inclusion in the exported proof's
// fingerprint.components field (§6). See internal/fingerprint for how
// components are collected, optionally TPM-backed.
func (c *Core) InitializeWithFingerprint(components fingerprint.Components, attestationPayload any) error {
	hex, err := components.Hex()
	if err != nil {
		return fmt.Errorf("core: derive fingerprint hash: %w", err)
	}
	c.mu.Lock()
	c.components = components
	c.mu.Unlock()
	return c.Initialize(hex, attestationPayload)
}

// RecordHumanAttestation records event #0. Fails with
// chain.ErrAttestationOrderingViolation if the chain already has events.
func (c *Core) RecordHumanAttestation(signedAttestation any) (chain.Result, error) {
	result, err := c.builder.RecordHumanAttestation(signedAttestation)
	if err != nil {
		return result, err
	}
	c.afterAppend(result.Index)
	return result, nil
}

// RecordPreExportAttestation records an attestation at any later index.
func (c *Core) RecordPreExportAttestation(signedAttestation any) (chain.Result, error) {
	result, err := c.builder.RecordPreExportAttestation(signedAttestation)
	if err != nil {
		return result, err
	}
	c.afterAppend(result.Index)
	return result, nil
}

// RecordContentSnapshot records the full editor content as one event.
func (c *Core) RecordContentSnapshot(fullEditorContent string) (chain.Result, error) {
	result, err := c.builder.RecordContentSnapshot(fullEditorContent)
	if err != nil {
		return result, err
	}
	c.afterAppend(result.Index)
	return result, nil
}

// RecordEvent implements the general recordEvent(input) -> {hash, index}
// contract (§6).
func (c *Core) RecordEvent(input event.Input) (chain.Result, error) {
	result, err := c.builder.RecordEvent(input)
	if err != nil {
		return result, err
	}
	c.afterAppend(result.Index)
	return result, nil
}

// afterAppend persists the just-appended record and any checkpoints it
// produced. Persistence failures are logged, not surfaced: the in-memory
// chain remains the source of truth for verification (§6 "the core does
// not itself do I/O"; the adapter is best-effort from the core's view).
func (c *Core) afterAppend(index uint64) {
	if c.store == nil {
		return
	}
	if err := c.persistRecordAt(index); err != nil {
		c.logger.Warn("store: failed to persist event", "sequence", index, "error", err)
	}
	if err := c.persistNewCheckpoints(); err != nil {
		c.logger.Warn("store: failed to persist checkpoint", "error", err)
	}
}

func (c *Core) persistRecordAt(index uint64) error {
	events, _, _ := c.builder.Snapshot()
	if int(index) >= len(events) {
		return fmt.Errorf("core: record %d not found in snapshot", index)
	}
	rec := events[index]

	dataJSON, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("core: marshal event data: %w", err)
	}
	var rangeJSON []byte
	if rec.Range != nil {
		rangeJSON, err = json.Marshal(rec.Range)
		if err != nil {
			return fmt.Errorf("core: marshal event range: %w", err)
		}
	}

	row := store.EventRow{
		Sequence:             rec.Sequence,
		Timestamp:            rec.Timestamp,
		Type:                 string(rec.Type),
		InputType:            string(rec.InputType),
		DataJSON:             string(dataJSON),
		RangeOffset:          rec.RangeOffset,
		RangeLength:          rec.RangeLength,
		RangeJSON:            string(rangeJSON),
		PreviousHash:         rec.PreviousHash,
		PoSWIterations:       rec.PoSW.Iterations,
		PoSWNonce:            rec.PoSW.Nonce,
		PoSWIntermediateHash: rec.PoSW.IntermediateHash,
		PoSWComputeTimeMs:    rec.PoSW.ComputeTimeMs,
		Hash:                 rec.Hash,
	}
	return c.store.InsertEvent(row)
}

func (c *Core) persistNewCheckpoints() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cps := c.builder.Checkpoints()
	for ; c.persistedCheckpoints < len(cps); c.persistedCheckpoints++ {
		cp := cps[c.persistedCheckpoints]
		row := store.CheckpointRow{
			Sequence:    cp.Sequence,
			Hash:        cp.Hash,
			Timestamp:   cp.Timestamp,
			ContentHash: cp.ContentHash,
		}
		if c.signingKey != nil {
			row.Signature = checkpoint.Sign(cp, c.signingKey)
		}
		if err := c.store.InsertCheckpoint(row); err != nil {
			return err
		}
	}
	return nil
}

// GetStats implements getStats() -> {totalEvents, duration, eventTypes,
// currentHash, pendingCount} (§6).
func (c *Core) GetStats() stats.Summary {
	events, head, _ := c.builder.Snapshot()
	return stats.Compute(events, head, c.builder.QueuedCount())
}

// ExportedProof is the single-tab export file described in §6.
type ExportedProof struct {
	Version         string              `json:"version"`
	TypingProofHash string              `json:"typingProofHash"`
	TypingProofData proofhash.ProofData `json:"typingProofData"`
	Proof           ProofBlock          `json:"proof"`
	Fingerprint     FingerprintBlock    `json:"fingerprint"`
	Metadata        MetadataBlock       `json:"metadata"`
	Checkpoints     []CheckpointEntry   `json:"checkpoints"`
}

// ProofBlock is the proof object inside ExportedProof.
type ProofBlock struct {
	TotalEvents int          `json:"totalEvents"`
	FinalHash   string       `json:"finalHash"`
	StartTime   int64        `json:"startTime"`
	EndTime     int64        `json:"endTime"`
	Signature   string       `json:"signature"`
	Events      []EventEntry `json:"events"`
}

// EventEntry is one event as carried in an exported proof. It mirrors
// every hashed field of event.Record (§3 "all fields participate in the
// hash unless marked META") so a parsed export can be fed straight back
// through verify.VerifyFull without losing anything the original hash
// committed to.
type EventEntry struct {
	Sequence     uint64       `json:"sequence"`
	Timestamp    int64        `json:"timestamp"`
	Type         string       `json:"type"`
	InputType    string       `json:"inputType,omitempty"`
	Data         any          `json:"data,omitempty"`
	RangeOffset  *int         `json:"rangeOffset,omitempty"`
	RangeLength  *int         `json:"rangeLength,omitempty"`
	Range        *event.Range `json:"range,omitempty"`
	PreviousHash string       `json:"previousHash"`
	PoSW         PoSWEntry    `json:"posw"`
	Hash         string       `json:"hash"`
}

// ToRecord reconstructs the event.Record this entry was derived from, for
// feeding a parsed export back into verify.VerifyFull.
func (e EventEntry) ToRecord() *event.Record {
	return &event.Record{
		Sequence:     e.Sequence,
		Timestamp:    e.Timestamp,
		Type:         event.Kind(e.Type),
		InputType:    event.InputType(e.InputType),
		Data:         e.Data,
		RangeOffset:  e.RangeOffset,
		RangeLength:  e.RangeLength,
		Range:        e.Range,
		PreviousHash: e.PreviousHash,
		PoSW: event.PoSW{
			Iterations:       e.PoSW.Iterations,
			Nonce:            e.PoSW.Nonce,
			IntermediateHash: e.PoSW.IntermediateHash,
		},
		Hash: e.Hash,
	}
}

// PoSWEntry is the hashed subset of event.PoSW carried in an export.
type PoSWEntry struct {
	Iterations       uint64 `json:"iterations"`
	Nonce            string `json:"nonce"`
	IntermediateHash string `json:"intermediateHash"`
}

// FingerprintBlock carries the device fingerprint bound into the chain.
type FingerprintBlock struct {
	Hash       string `json:"hash"`
	Components any    `json:"components"`
}

// MetadataBlock carries export-time metadata.
type MetadataBlock struct {
	UserAgent    string `json:"userAgent"`
	Timestamp    int64  `json:"timestamp"`
	IsPureTyping bool   `json:"isPureTyping"`
}

// CheckpointEntry is one checkpoint as carried in an exported proof.
type CheckpointEntry struct {
	EventIndex  uint64 `json:"eventIndex"`
	Hash        string `json:"hash"`
	Timestamp   int64  `json:"timestamp"`
	ContentHash string `json:"contentHash"`
}

// ExportProof implements exportProof(finalContent) -> ExportedProof (§6).
// It closes the chain (emitting a final checkpoint if needed, per §4.5)
// and assembles the wire-contract shape. The Core must not be used to
// record further events afterward.
func (c *Core) ExportProof(finalContent string) (ExportedProof, error) {
	c.builder.Close()
	if err := c.persistNewCheckpoints(); err != nil {
		c.logger.Warn("store: failed to persist closing checkpoint", "error", err)
	}

	events, head, _ := c.builder.Snapshot()
	summary := stats.Compute(events, head, 0)

	deviceID := c.builder.FingerprintHex()
	metadata := proofhash.Metadata{
		TotalEvents:        summary.TotalEvents,
		PasteEvents:        summary.PasteEvents,
		DropEvents:         summary.DropEvents,
		InsertEvents:       summary.InsertEvents,
		DeleteEvents:       summary.DeleteEvents,
		TotalTypingTime:    summary.Duration,
		AverageTypingSpeed: summary.AverageSpeed,
	}
	proofData, typingProofHash, err := proofhash.Compute(finalContent, head, deviceID, metadata)
	if err != nil {
		return ExportedProof{}, fmt.Errorf("core: compute typing-proof hash: %w", err)
	}

	var startTime, endTime int64
	if len(events) > 0 {
		startTime = events[0].Timestamp
		endTime = events[len(events)-1].Timestamp
	}

	eventEntries := make([]EventEntry, len(events))
	for i, rec := range events {
		eventEntries[i] = EventEntry{
			Sequence:     rec.Sequence,
			Timestamp:    rec.Timestamp,
			Type:         string(rec.Type),
			InputType:    string(rec.InputType),
			Data:         rec.Data,
			RangeOffset:  rec.RangeOffset,
			RangeLength:  rec.RangeLength,
			Range:        rec.Range,
			PreviousHash: rec.PreviousHash,
			PoSW: PoSWEntry{
				Iterations:       rec.PoSW.Iterations,
				Nonce:            rec.PoSW.Nonce,
				IntermediateHash: rec.PoSW.IntermediateHash,
			},
			Hash: rec.Hash,
		}
	}

	sealData := map[string]any{
		"totalEvents": len(events),
		"finalHash":   head,
		"startTime":   startTime,
		"endTime":     endTime,
	}
	signature, err := selfSeal(sealData)
	if err != nil {
		return ExportedProof{}, fmt.Errorf("core: compute self-seal: %w", err)
	}

	checkpoints := c.builder.Checkpoints()
	checkpointEntries := make([]CheckpointEntry, len(checkpoints))
	for i, cp := range checkpoints {
		checkpointEntries[i] = CheckpointEntry{
			EventIndex:  cp.Sequence,
			Hash:        cp.Hash,
			Timestamp:   cp.Timestamp,
			ContentHash: cp.ContentHash,
		}
	}

	var components any = struct{}{}
	c.mu.Lock()
	if c.components != (fingerprint.Components{}) {
		components = c.components.CanonicalValue()
	}
	c.mu.Unlock()

	return ExportedProof{
		Version:         ProofVersion,
		TypingProofHash: typingProofHash,
		TypingProofData: proofData,
		Proof: ProofBlock{
			TotalEvents: len(events),
			FinalHash:   head,
			StartTime:   startTime,
			EndTime:     endTime,
			Signature:   signature,
			Events:      eventEntries,
		},
		Fingerprint: FingerprintBlock{
			Hash:       deviceID,
			Components: components,
		},
		Metadata: MetadataBlock{
			UserAgent:    c.userAgent,
			Timestamp:    time.Now().UnixMilli(),
			IsPureTyping: stats.IsPureTyping(summary),
		},
		Checkpoints: checkpointEntries,
	}, nil
}

func selfSeal(data map[string]any) (string, error) {
	encoded, err := canonical.Encode(data)
	if err != nil {
		return "", err
	}
	return hashutil.Sum(encoded), nil
}
