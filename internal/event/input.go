package event

// Input is the caller-supplied description of an event to record. The
// chain builder fills in Sequence, Timestamp, PreviousHash, PoSW, and Hash;
// everything else here is copied onto the resulting Record verbatim.
type Input struct {
	Type        Kind
	InputType   InputType
	Data        any
	RangeOffset *int
	RangeLength *int
	Range       *Range

	// META, copied through unchanged.
	Description     string
	IsMultiLine     bool
	DeletedLength   int
	InsertedText    string
	InsertLength    int
	DeleteDirection string
	SelectedText    string
}

// ToRecord builds the skeleton record from an Input; sequence, timestamp,
// previousHash, posw, and hash are filled in by the caller (chain.Builder).
func (in Input) ToRecord() *Record {
	return &Record{
		Type:            in.Type,
		InputType:       in.InputType,
		Data:            in.Data,
		RangeOffset:     in.RangeOffset,
		RangeLength:     in.RangeLength,
		Range:           in.Range,
		Description:     in.Description,
		IsMultiLine:     in.IsMultiLine,
		DeletedLength:   in.DeletedLength,
		InsertedText:    in.InsertedText,
		InsertLength:    in.InsertLength,
		DeleteDirection: in.DeleteDirection,
		SelectedText:    in.SelectedText,
	}
}
