package chain

import "errors"

// Error taxonomy from §7. NotInitialized/AlreadyInitialized/
// AttestationOrderingViolation are fatal to the call that triggers them;
// SerializationError and ErrPoSWTimeout instead cause the single record
// to be dropped while the chain continues (§4.4 "Queue discipline").
var (
	ErrNotInitialized             = errors.New("chain: not initialized")
	ErrAlreadyInitialized         = errors.New("chain: already initialized")
	ErrAttestationOrderingViolation = errors.New("chain: human attestation must be the first event")
	ErrSerialization              = errors.New("chain: serialization error")
	ErrPoSWTimeout                = errors.New("chain: posw request timed out")
)
