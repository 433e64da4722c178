// Package chain implements the Chain Builder (§4.4): it accepts event
// inputs, assigns sequence numbers and monotonic timestamps, gates each
// record behind PoSW, and produces the linked record sequence that the
// rest of the system verifies.
//
// All mutation is funneled through a single queue.Queue worker so the
// event array and chain head have exactly one writer, matching
// witnessd/internal/checkpoint.Chain's single-owner Commit method, but
// generalized here to an asynchronous, failure-tolerant pipeline the way
// witnessd/internal/wal.WAL serializes appends behind one mutex.
package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"typingproof/internal/canonical"
	"typingproof/internal/checkpoint"
	"typingproof/internal/event"
	"typingproof/internal/hashutil"
	"typingproof/internal/logging"
	"typingproof/internal/posw"
	"typingproof/internal/queue"
)

// Clock abstracts the monotonic timing source (§9 "The monotonic timing
// source must survive system-clock adjustments"). The default uses
// time.Since against a fixed start instant, which is monotonic in Go's
// runtime representation of time.Time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Result is returned by every recording operation.
type Result struct {
	Hash  string
	Index uint64
}

// Builder owns the event array and chain head exclusively; see §5
// "Shared resources". Construct with New.
type Builder struct {
	mu sync.RWMutex // guards reads of events/head for snapshotting only

	initialized bool
	fingerprint string
	initialHash string
	startTime   time.Time
	clock       Clock

	events []*event.Record
	head   string

	iterations uint64
	queue      *queue.Queue
	worker     *posw.Worker
	checkpoints *checkpoint.Manager
	logger     *logging.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithIterations overrides the PoSW iteration count (tests use a small
// value so suites run quickly; production leaves this at
// posw.DefaultIterations).
func WithIterations(n uint64) Option {
	return func(b *Builder) { b.iterations = n }
}

// WithCheckpointInterval overrides the checkpoint interval.
func WithCheckpointInterval(n uint64) Option {
	return func(b *Builder) { b.checkpoints = checkpoint.NewManager(n) }
}

// WithClock overrides the timing source, for deterministic tests.
func WithClock(c Clock) Option {
	return func(b *Builder) { b.clock = c }
}

// WithLogger attaches a logger; defaults to logging.Default().
func WithLogger(l *logging.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// New creates an uninitialized Builder. Call Initialize before recording.
func New(opts ...Option) *Builder {
	b := &Builder{
		iterations:  posw.DefaultIterations,
		clock:       realClock{},
		queue:       queue.New(),
		worker:      posw.NewWorker(),
		checkpoints: checkpoint.NewManager(checkpoint.DefaultInterval),
		logger:      logging.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Initialize derives the chain's initial hash from the device fingerprint
// and a fresh CSPRNG salt (§4.2), per §4.4 step 1's precondition.
func (b *Builder) Initialize(fingerprintHex string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return ErrAlreadyInitialized
	}

	initialHash, err := hashutil.InitialHash(fingerprintHex)
	if err != nil {
		return fmt.Errorf("chain: derive initial hash: %w", err)
	}

	b.fingerprint = fingerprintHex
	b.initialHash = initialHash
	b.head = initialHash
	b.startTime = b.clock.Now()
	b.initialized = true

	b.logger.Info("chain initialized", "fingerprint_len", len(fingerprintHex))
	return nil
}

// Restore rehydrates a Builder from a chain's previously-persisted state
// so recording can continue in a new process after reopening a store,
// per §9 "the monotonic timing source must survive system-clock
// adjustments" and the storage adapter's restart contract. previousEvents
// must already be in sequence order (e.g. as loaded from internal/store);
// checkpoints seeds the Checkpoint Manager so Observe/CloseAt continue to
// append rather than re-derive history already on disk.
//
// Unlike Initialize, Restore does not derive a fresh initial hash: it
// takes the one already committed when the chain was first created, since
// re-deriving it would silently fork the chain from what was persisted.
func (b *Builder) Restore(fingerprintHex, initialHash string, previousEvents []*event.Record, checkpoints []checkpoint.Checkpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return ErrAlreadyInitialized
	}

	head := initialHash
	var lastTimestamp int64
	if n := len(previousEvents); n > 0 {
		head = previousEvents[n-1].Hash
		lastTimestamp = previousEvents[n-1].Timestamp
	}

	b.fingerprint = fingerprintHex
	b.initialHash = initialHash
	b.head = head
	b.events = append([]*event.Record(nil), previousEvents...)
	// Re-anchor the monotonic clock baseline so the next appended event's
	// timestamp continues increasing from where the persisted chain left
	// off, without needing to persist a wall-clock offset (§9 open question).
	b.startTime = b.clock.Now().Add(-time.Duration(lastTimestamp) * time.Millisecond)
	b.initialized = true

	b.checkpoints.Seed(checkpoints)

	b.logger.Info("chain restored", "events", len(previousEvents), "fingerprint_len", len(fingerprintHex))
	return nil
}

// RecordHumanAttestation implements §4.4's event #0 contract: it may only
// be called when the chain is empty.
func (b *Builder) RecordHumanAttestation(signedAttestation any) (Result, error) {
	b.mu.RLock()
	empty := len(b.events) == 0
	b.mu.RUnlock()

	if !empty {
		return Result{}, ErrAttestationOrderingViolation
	}

	return b.RecordEvent(event.Input{
		Type: event.KindHumanAttestation,
		Data: signedAttestation,
	})
}

// RecordPreExportAttestation may be called at any later index (§4.4).
func (b *Builder) RecordPreExportAttestation(signedAttestation any) (Result, error) {
	return b.RecordEvent(event.Input{
		Type: event.KindPreExportAttestation,
		Data: signedAttestation,
	})
}

// RecordContentSnapshot records the full editor content as an event. Per
// §9 open questions, this does not special-case the checkpoint interval.
func (b *Builder) RecordContentSnapshot(fullEditorContent string) (Result, error) {
	return b.RecordEvent(event.Input{
		Type: event.KindContentSnapshot,
		Data: fullEditorContent,
	})
}

// RecordEvent implements the full §4.4 pipeline via the single-writer
// queue. It blocks until the record has been appended (or dropped).
func (b *Builder) RecordEvent(input event.Input) (Result, error) {
	b.mu.RLock()
	initialized := b.initialized
	b.mu.RUnlock()
	if !initialized {
		return Result{}, ErrNotInitialized
	}

	var result Result
	var recordErr error

	err := b.queue.Submit(queue.Job{
		Run: func(ctx context.Context) error {
			result, recordErr = b.appendLocked(ctx, input)
			return recordErr
		},
	})
	if err != nil {
		return Result{}, err
	}
	return result, recordErr
}

// appendLocked performs steps 2-7 of §4.4. It runs exclusively on the
// queue's single worker goroutine, so no additional locking is needed for
// the mutation itself; b.mu is still taken around the final publish so
// concurrent readers (GetStats, snapshots) never observe a torn write
// (§5 "publication must be atomic").
func (b *Builder) appendLocked(ctx context.Context, input event.Input) (Result, error) {
	b.mu.RLock()
	sequence := uint64(len(b.events))
	previousHash := b.head
	timestamp := b.clock.Now().Sub(b.startTime).Milliseconds()
	b.mu.RUnlock()

	if len(b.events) > 0 {
		lastTs := b.events[len(b.events)-1].Timestamp
		if timestamp < lastTs {
			timestamp = lastTs
		}
	}

	rec := input.ToRecord()
	rec.Sequence = sequence
	rec.Timestamp = timestamp
	rec.PreviousHash = previousHash

	preBytes, err := canonical.Encode(rec.HashableFields())
	if err != nil {
		b.logger.Warn("dropping record: serialization failed", "sequence", sequence, "error", err)
		return Result{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	req := posw.NewRequest(previousHash, preBytes, b.iterations)
	reqCtx, cancel := context.WithTimeout(ctx, posw.DefaultTimeout)
	proof, err := b.worker.Submit(reqCtx, req)
	cancel()
	if err != nil {
		b.logger.Warn("dropping record: posw failed", "sequence", sequence, "error", err)
		return Result{}, fmt.Errorf("%w: %v", ErrPoSWTimeout, err)
	}

	rec.PoSW = event.PoSW{
		Iterations:       proof.Iterations,
		Nonce:            proof.Nonce,
		IntermediateHash: proof.IntermediateHash,
		ComputeTimeMs:    proof.ComputeTimeMs,
	}

	postBytes, err := canonical.Encode(rec.HashableFieldsWithPoSW())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	rec.Hash = hashutil.SumConcat([]byte(previousHash), postBytes)

	dataStr, err := rec.DataStringified()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	contentHash := checkpoint.ContentHashOf(dataStr)

	b.mu.Lock()
	b.events = append(b.events, rec)
	b.head = rec.Hash
	b.mu.Unlock()

	b.checkpoints.Observe(sequence, rec.Hash, timestamp, contentHash)

	return Result{Hash: rec.Hash, Index: sequence}, nil
}

// Snapshot returns a consistent read-only view of the chain state.
func (b *Builder) Snapshot() (events []*event.Record, head string, initialHash string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*event.Record, len(b.events))
	copy(out, b.events)
	return out, b.head, b.initialHash
}

// Checkpoints returns the checkpoints observed so far.
func (b *Builder) Checkpoints() []checkpoint.Checkpoint {
	return b.checkpoints.Checkpoints()
}

// Close finalizes the chain for export: it emits a closing checkpoint if
// needed (§4.5) and shuts down the queue/worker. The builder must not be
// used for further recording after Close.
func (b *Builder) Close() {
	b.mu.RLock()
	n := len(b.events)
	b.mu.RUnlock()

	if n > 0 {
		b.mu.RLock()
		last := b.events[n-1]
		b.mu.RUnlock()
		dataStr, _ := last.DataStringified()
		b.checkpoints.CloseAt(last.Sequence, last.Hash, last.Timestamp, checkpoint.ContentHashOf(dataStr))
	}

	b.queue.Close()
	b.worker.Close()
}

// FingerprintHex returns the device fingerprint this chain was
// initialized with.
func (b *Builder) FingerprintHex() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fingerprint
}

// QueuedCount exposes the record queue's pending submission count for UI.
func (b *Builder) QueuedCount() int64 {
	return b.queue.QueuedCount()
}
