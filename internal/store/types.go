// Package store provides SQLite-based persistence for the event chain,
// its checkpoints, and the chain's initialization metadata, so a host
// process can restart without losing a typing session's chain.
package store

// EventRow is the persisted form of an event.Record. Hash, PreviousHash,
// and PoSW fields are stored as their canonical hex/string
// representations; Data and Range are stored pre-serialized with
// encoding/json and decoded on restart, so the rebuilt record encodes
// canonically to the bytes that were hashed.
type EventRow struct {
	Sequence     uint64
	Timestamp    int64
	Type         string
	InputType    string
	DataJSON     string // encoding/json of Data; "null" if Data was nil
	RangeOffset  *int
	RangeLength  *int
	RangeJSON    string // encoding/json of event.Range, empty if nil
	PreviousHash string
	PoSWIterations uint64
	PoSWNonce      string
	PoSWIntermediateHash string
	PoSWComputeTimeMs    int64
	Hash         string
}

// CheckpointRow is the persisted form of a checkpoint.Checkpoint.
type CheckpointRow struct {
	Sequence    uint64
	Hash        string
	Timestamp   int64
	ContentHash string
	Signature   string
}

// ChainMeta persists the one row of state needed to resume a chain:
// its fingerprint binding and genesis hash (§4.4 "Initialization").
type ChainMeta struct {
	Fingerprint string
	InitialHash string
	StartTime   int64
}
