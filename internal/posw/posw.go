// Package posw implements Proof of Sequential Work: iterated SHA-256
// hashing gated on a per-event nonce, used to force real elapsed time
// between chain links.
//
// Each step's input depends on the previous step's output, so the work
// cannot be parallelized within one event; a fresh nonce per event
// prevents precomputing chains ahead of time. This mirrors the VDF engine
// in witnessd/internal/vdf, specialized to per-event proofs instead of
// per-checkpoint elapsed-time proofs: the PoSW iteration count here is a
// fixed protocol constant rather than a calibrated, duration-derived
// value.
package posw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"typingproof/internal/hashutil"
)

// DefaultIterations is the reference iteration count from the wire
// contract (§6 "Constants").
const DefaultIterations uint64 = 10_000

// DefaultTimeout is the maximum time a worker may take to compute or
// verify a single proof before the record is dropped (§4.3, §5).
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when a compute/verify request exceeds its
// deadline.
var ErrTimeout = errors.New("posw: request timed out")

// Proof is the {iterations, nonce, intermediateHash} tuple attached to a
// record, plus the diagnostic-only computeTimeMs.
type Proof struct {
	Iterations       uint64
	Nonce            string
	IntermediateHash string
	ComputeTimeMs    int64
}

// Request correlates a compute/verify call so responses returned by an
// offloaded worker can be matched back to their caller (§4.3, §9
// "message passing with correlation ids").
type Request struct {
	ID         string
	PreviousHash string
	EventBytes   []byte
	Iterations   uint64
}

// NewRequest builds a correlated request with a fresh id: a random v4
// UUID, unique per request but not ordered across requests.
func NewRequest(previousHash string, eventBytes []byte, iterations uint64) Request {
	return Request{
		ID:           uuid.NewString(),
		PreviousHash: previousHash,
		EventBytes:   eventBytes,
		Iterations:   iterations,
	}
}

// Compute runs the PoSW computation described in §4.3:
//
//	h0 = H(previousHash || eventBytes || nonce)
//	h_i = H(h_{i-1}) for i in 1..iterations-1
//	intermediateHash = h_{iterations-1}
//
// It respects ctx cancellation/deadline, returning ErrTimeout if the
// context is done before the computation finishes. Callers in the
// recording pipeline should pass a context with DefaultTimeout.
func Compute(ctx context.Context, previousHash string, eventBytes []byte, iterations uint64) (*Proof, error) {
	if iterations == 0 {
		return nil, errors.New("posw: iterations must be >= 1")
	}

	nonce, err := hashutil.RandomHex(hashutil.NonceSize)
	if err != nil {
		return nil, fmt.Errorf("posw: generate nonce: %w", err)
	}

	start := time.Now()
	intermediate, err := computeChain(ctx, previousHash, eventBytes, nonce, iterations)
	if err != nil {
		return nil, err
	}

	return &Proof{
		Iterations:       iterations,
		Nonce:            nonce,
		IntermediateHash: intermediate,
		ComputeTimeMs:    time.Since(start).Milliseconds(),
	}, nil
}

// ComputeWithTimeout wraps Compute with DefaultTimeout, for callers that
// don't already carry a contextual deadline.
func ComputeWithTimeout(previousHash string, eventBytes []byte, iterations uint64) (*Proof, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	return Compute(ctx, previousHash, eventBytes, iterations)
}

// Verify recomputes the chain from the given nonce and checks it against
// expectedHash.
func Verify(ctx context.Context, previousHash string, eventBytes []byte, nonce string, iterations uint64, expectedHash string) (bool, error) {
	if iterations == 0 {
		return false, errors.New("posw: iterations must be >= 1")
	}
	computed, err := computeChain(ctx, previousHash, eventBytes, nonce, iterations)
	if err != nil {
		return false, err
	}
	return computed == expectedHash, nil
}

// computeChain performs the sequential hashing, checking ctx periodically
// so long-running proofs remain cancellable/timeoutable (§5 "implementations
// SHOULD yield every event to keep UIs responsive").
func computeChain(ctx context.Context, previousHash string, eventBytes []byte, nonce string, iterations uint64) (string, error) {
	h0 := hashutil.SumConcat([]byte(previousHash), eventBytes, []byte(nonce))
	if iterations == 1 {
		return h0, nil
	}

	const checkEvery = 2048
	current := h0
	remaining := iterations - 1
	for remaining > 0 {
		batch := remaining
		if batch > checkEvery {
			batch = checkEvery
		}
		select {
		case <-ctx.Done():
			return "", ErrTimeout
		default:
		}
		current = hashutil.Iterate(current, batch)
		remaining -= batch
	}
	return current, nil
}
