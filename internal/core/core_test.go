package core

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typingproof/internal/config"
	"typingproof/internal/event"
	"typingproof/internal/proofhash"
	"typingproof/internal/schemavalidation"
	"typingproof/internal/stats"
	"typingproof/internal/store"
	"typingproof/internal/verify"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.PoSWIterations = 4
	cfg.CheckpointInterval = 100
	cfg.LogPath = filepath.Join(t.TempDir(), "typingproof.log")
	return cfg
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

// Scenario 1: initialize, append, verify (spec.md §8 scenario 1).
func TestInitializeAppendVerify(t *testing.T) {
	c := New(testConfig(t))

	require.NoError(t, c.Initialize("f"+repeatHex(63), nil))

	result, err := c.RecordEvent(event.Input{Type: event.KindEditorInitialized})
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.Index)

	events, _, initialHash := c.builder.Snapshot()
	full := verify.VerifyFull(context.Background(), initialHash, events)
	assert.True(t, full.Valid)

	summary := c.GetStats()
	assert.Equal(t, 1, summary.TotalEvents)
}

// Scenario 2: paste detection (spec.md §8 scenario 2).
func TestPasteDetection(t *testing.T) {
	c := New(testConfig(t))
	require.NoError(t, c.Initialize(repeatHex(64), nil))

	for i := 0; i < 9; i++ {
		_, err := c.RecordEvent(event.Input{
			Type:      event.KindContentChange,
			InputType: event.InputInsertText,
			Data:      "x",
		})
		require.NoError(t, err)
	}
	_, err := c.RecordEvent(event.Input{
		Type:      event.KindExternalInput,
		InputType: event.InputInsertFromPaste,
		Data:      "hello",
	})
	require.NoError(t, err)

	s := c.GetStats()
	assert.Equal(t, 1, s.EventTypes[string(event.KindExternalInput)])
	assert.Equal(t, 1, s.PasteEvents)
	assert.False(t, stats.IsPureTyping(s))
}

// Scenario 6: round-trip export/verify (spec.md §8 scenario 6).
func TestExportProofRoundTrip(t *testing.T) {
	c := New(testConfig(t))
	require.NoError(t, c.Initialize(repeatHex(64), nil))

	for i := 0; i < 5; i++ {
		_, err := c.RecordEvent(event.Input{
			Type:      event.KindContentChange,
			InputType: event.InputInsertText,
			Data:      "x",
		})
		require.NoError(t, err)
	}

	proof, err := c.ExportProof("const x = 1;\n")
	require.NoError(t, err)

	assert.Equal(t, ProofVersion, proof.Version)
	assert.Equal(t, 5, proof.Proof.TotalEvents)
	assert.Len(t, proof.Proof.Events, 5)

	records := make([]*event.Record, len(proof.Proof.Events))
	for i, e := range proof.Proof.Events {
		records[i] = e.ToRecord()
	}

	_, _, initialHash := c.builder.Snapshot()
	full := verify.VerifyFull(context.Background(), initialHash, records)
	assert.True(t, full.Valid, "expected exported proof events to verify, got %+v", full.Diagnostic)

	assert.Equal(t, 5, proof.TypingProofData.Metadata.TotalEvents)
	assert.Equal(t, 5, proof.TypingProofData.Metadata.InsertEvents)
	assert.Equal(t, 0, proof.TypingProofData.Metadata.PasteEvents)
	assert.Equal(t, 0, proof.TypingProofData.Metadata.DeleteEvents)

	raw, err := json.Marshal(proof)
	require.NoError(t, err)

	v, err := schemavalidation.Compile(filepath.Join(repoRoot(t), "docs", "schema", "typing-proof-v1.schema.json"))
	require.NoError(t, err)
	assert.NoError(t, v.ValidateBytes(raw))
}

// The typing-proof hash's metadata binds the full stat set spec.md §3
// names (totalEvents, pasteEvents, dropEvents, insertEvents,
// deleteEvents, totalTypingTime, averageTypingSpeed) — not just paste
// and drop counts — and isPureTyping is carried only in the compact
// summary (proof.Metadata), never in typingProofData.metadata (§4.7).
func TestExportProofMetadataBindsFullStatSet(t *testing.T) {
	c := New(testConfig(t))
	require.NoError(t, c.Initialize(repeatHex(64), nil))

	for i := 0; i < 3; i++ {
		_, err := c.RecordEvent(event.Input{
			Type:      event.KindContentChange,
			InputType: event.InputInsertText,
			Data:      "x",
		})
		require.NoError(t, err)
	}
	_, err := c.RecordEvent(event.Input{
		Type:      event.KindExternalInput,
		InputType: event.InputInsertFromPaste,
		Data:      "hello",
	})
	require.NoError(t, err)
	_, err = c.RecordEvent(event.Input{
		Type:      event.KindContentChange,
		InputType: event.InputDeleteLeft,
	})
	require.NoError(t, err)

	summary := c.GetStats()
	proof, err := c.ExportProof("const x = 1;\n")
	require.NoError(t, err)

	meta := proof.TypingProofData.Metadata
	assert.Equal(t, summary.TotalEvents, meta.TotalEvents)
	assert.Equal(t, summary.PasteEvents, meta.PasteEvents)
	assert.Equal(t, summary.DropEvents, meta.DropEvents)
	assert.Equal(t, summary.InsertEvents, meta.InsertEvents)
	assert.Equal(t, summary.DeleteEvents, meta.DeleteEvents)
	assert.Equal(t, summary.Duration, meta.TotalTypingTime)
	assert.Equal(t, summary.AverageSpeed, meta.AverageTypingSpeed)

	assert.False(t, proof.Metadata.IsPureTyping)
	assert.Equal(t, 1, meta.PasteEvents)
	assert.Equal(t, 1, meta.DeleteEvents)
	assert.Equal(t, 4, meta.InsertEvents)

	// Re-deriving the typing-proof hash from the exported proofData must
	// reproduce the exact hash the export computed, confirming metadata
	// fully round-trips through canonical encoding.
	_, recomputedHash, err := proofhash.Compute(
		"const x = 1;\n",
		proof.TypingProofData.FinalEventChainHash,
		proof.TypingProofData.DeviceID,
		meta,
	)
	require.NoError(t, err)
	assert.Equal(t, proof.TypingProofHash, recomputedHash)
}

// Boundary case: empty chain (spec.md §8 "Boundary cases").
func TestExportProofEmptyChain(t *testing.T) {
	c := New(testConfig(t))
	require.NoError(t, c.Initialize(repeatHex(64), nil))

	_, _, initialHash := c.builder.Snapshot()

	proof, err := c.ExportProof("")
	require.NoError(t, err)
	assert.Equal(t, 0, proof.Proof.TotalEvents)
	assert.Equal(t, initialHash, proof.TypingProofData.FinalEventChainHash)
}

func TestRecordHumanAttestationOrdering(t *testing.T) {
	c := New(testConfig(t))
	require.NoError(t, c.Initialize(repeatHex(64), nil))

	_, err := c.RecordEvent(event.Input{Type: event.KindEditorInitialized})
	require.NoError(t, err)

	_, err = c.RecordHumanAttestation(map[string]any{"verified": true})
	assert.Error(t, err)
}

func TestCoreWithStorePersistsEventsAndCheckpoints(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "chain.db"))
	require.NoError(t, err)
	defer st.Close()

	c := New(testConfig(t), WithStore(st))
	require.NoError(t, c.Initialize(repeatHex(64), nil))

	for i := 0; i < 150; i++ {
		_, err := c.RecordEvent(event.Input{
			Type:      event.KindContentChange,
			InputType: event.InputInsertText,
			Data:      "x",
		})
		require.NoError(t, err)
	}

	rows, err := st.GetEvents()
	require.NoError(t, err)
	assert.Len(t, rows, 150)

	cps, err := st.GetCheckpoints()
	require.NoError(t, err)
	assert.Len(t, cps, 1)

	meta, err := st.GetChainMeta()
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, repeatHex(64), meta.Fingerprint)
}

// Resuming a Core from a store persisted by an earlier process must
// continue the same chain (same initial hash, contiguous sequence) rather
// than silently forking a new one.
func TestCoreResumeContinuesPersistedChain(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chain.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)

	first := New(testConfig(t), WithStore(st))
	require.NoError(t, first.Initialize(repeatHex(64), nil))

	for i := 0; i < 3; i++ {
		_, err := first.RecordEvent(event.Input{
			Type:      event.KindContentChange,
			InputType: event.InputInsertText,
			Data:      "x",
		})
		require.NoError(t, err)
	}
	_, firstHead, firstInitialHash := first.builder.Snapshot()
	require.NoError(t, st.Close())

	st2, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st2.Close()

	second := New(testConfig(t), WithStore(st2))
	require.NoError(t, second.Resume())

	events, head, initialHash := second.builder.Snapshot()
	assert.Len(t, events, 3)
	assert.Equal(t, firstHead, head)
	assert.Equal(t, firstInitialHash, initialHash)

	result, err := second.RecordEvent(event.Input{
		Type:      event.KindContentChange,
		InputType: event.InputInsertText,
		Data:      "y",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Index)

	events, _, _ = second.builder.Snapshot()
	require.Len(t, events, 4)
	full := verify.VerifyFull(context.Background(), initialHash, events)
	assert.True(t, full.Valid, "expected resumed chain to verify, got %+v", full.Diagnostic)
}

// Resume on a store with no chain metadata yet should report
// ErrNoPersistedChain rather than silently doing nothing.
func TestCoreResumeWithoutPersistedChain(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "chain.db"))
	require.NoError(t, err)
	defer st.Close()

	c := New(testConfig(t), WithStore(st))
	err = c.Resume()
	assert.ErrorIs(t, err, ErrNoPersistedChain)
}

func repeatHex(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = 'f'
	}
	return string(out)
}
