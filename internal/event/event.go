// Package event defines the tagged event kinds and the chained record
// structure that the chain builder, verifier, and statistics packages
// operate on.
package event

import "typingproof/internal/canonical"

// Kind is the tagged variant discriminator for a recorded event. The tag
// participates in the record hash and fully disambiguates the shape of
// Data; it is never redundantly re-encoded inside Data itself.
type Kind string

const (
	KindContentChange       Kind = "contentChange"
	KindContentSnapshot     Kind = "contentSnapshot"
	KindCursorChange        Kind = "cursorChange"
	KindSelectionChange     Kind = "selectionChange"
	KindExternalInput       Kind = "externalInput"
	KindEditorInitialized   Kind = "editorInitialized"
	KindMousePosition       Kind = "mousePosition"
	KindVisibilityChange    Kind = "visibilityChange"
	KindFocusChange         Kind = "focusChange"
	KindKeyDown             Kind = "keyDown"
	KindKeyUp               Kind = "keyUp"
	KindWindowResize        Kind = "windowResize"
	KindNetworkStatus       Kind = "networkStatus"
	KindCodeExecution       Kind = "codeExecution"
	KindTerminalInput       Kind = "terminalInput"
	KindScreenshotCapture   Kind = "screenshotCapture"
	KindScreenShareStart    Kind = "screenShareStart"
	KindScreenShareStop     Kind = "screenShareStop"
	KindHumanAttestation    Kind = "humanAttestation"
	KindPreExportAttestation Kind = "preExportAttestation"
	KindTermsAccepted       Kind = "termsAccepted"
	KindTemplateInjection   Kind = "templateInjection"
)

// InputType is an optional sub-tag for edit operations.
type InputType string

const (
	InputInsertText       InputType = "insertText"
	InputDeleteLeft       InputType = "deleteLeft"
	InputDeleteRight      InputType = "deleteRight"
	InputInsertFromPaste  InputType = "insertFromPaste"
	InputInsertFromDrop   InputType = "insertFromDrop"
	InputHistoryUndo      InputType = "historyUndo"
	InputHistoryRedo      InputType = "historyRedo"
)

// Range describes an affected editor range in line/column coordinates.
type Range struct {
	StartLine int `json:"startLine"`
	StartCol  int `json:"startCol"`
	EndLine   int `json:"endLine"`
	EndCol    int `json:"endCol"`
}

// CanonicalValue implements canonical.Marshaler.
func (r Range) CanonicalValue() any {
	return map[string]any{
		"startLine": r.StartLine,
		"startCol":  r.StartCol,
		"endLine":   r.EndLine,
		"endCol":    r.EndCol,
	}
}

// PoSW holds the Proof of Sequential Work attached to a record.
type PoSW struct {
	Iterations       uint64 `json:"iterations"`
	Nonce            string `json:"nonce"`
	IntermediateHash string `json:"intermediateHash"`

	// ComputeTimeMs is META: it is diagnostic only and is never hashed.
	ComputeTimeMs int64 `json:"computeTimeMs"`
}

// CanonicalValue returns the hashed subset of PoSW (everything but
// ComputeTimeMs, which is META).
func (p PoSW) CanonicalValue() any {
	return map[string]any{
		"iterations":       p.Iterations,
		"nonce":            p.Nonce,
		"intermediateHash": p.IntermediateHash,
	}
}

// Record is the chained unit: one event in the hash chain.
//
// Fields tagged META do not participate in the hash; they exist purely
// for downstream display/analytics. See HashableFields and
// HashableFieldsWithPoSW below for exactly which subset of a Record is
// serialized at each stage of §4.4.
type Record struct {
	Sequence     uint64    `json:"sequence"`
	Timestamp    int64     `json:"timestamp"`
	Type         Kind      `json:"type"`
	InputType    InputType `json:"inputType,omitempty"`
	Data         any       `json:"data,omitempty"`
	RangeOffset  *int      `json:"rangeOffset,omitempty"`
	RangeLength  *int      `json:"rangeLength,omitempty"`
	Range        *Range    `json:"range,omitempty"`
	PreviousHash string    `json:"previousHash"`
	PoSW         PoSW      `json:"posw"`
	Hash         string    `json:"hash"`

	// META fields: never hashed, display/debugging only.
	Description   string `json:"description,omitempty"`
	IsMultiLine   bool   `json:"isMultiLine,omitempty"`
	DeletedLength int    `json:"deletedLength,omitempty"`
	InsertedText  string `json:"insertedText,omitempty"`
	InsertLength  int    `json:"insertLength,omitempty"`
	DeleteDirection string `json:"deleteDirection,omitempty"`
	SelectedText  string `json:"selectedText,omitempty"`
}

// HashableFields returns the canonical-JSON map for the record with
// posw, hash, and all META fields removed — this is the form serialized
// and fed to PoSW/hash computation in Chain Builder step 4 (§4.4).
func (r *Record) HashableFields() map[string]any {
	m := r.baseFields()
	return m
}

// HashableFieldsWithPoSW returns the same map but with the posw field
// included (still excluding hash and META) — used in Chain Builder step 6.
func (r *Record) HashableFieldsWithPoSW() map[string]any {
	m := r.baseFields()
	m["posw"] = r.PoSW.CanonicalValue()
	return m
}

func (r *Record) baseFields() map[string]any {
	m := map[string]any{
		"sequence":     r.Sequence,
		"timestamp":    r.Timestamp,
		"type":         string(r.Type),
		"previousHash": nullableString(r.PreviousHash),
	}
	if r.InputType != "" {
		m["inputType"] = string(r.InputType)
	}
	if r.Data != nil {
		m["data"] = r.Data
	}
	if r.RangeOffset != nil {
		m["rangeOffset"] = *r.RangeOffset
	}
	if r.RangeLength != nil {
		m["rangeLength"] = *r.RangeLength
	}
	if r.Range != nil {
		m["range"] = r.Range.CanonicalValue()
	}
	return m
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DataStringified stringifies Data the way the checkpoint manager's
// contentHash derivation requires: canonical-encode Data if present, or
// the empty string if absent. See §3 "Checkpoint".
func (r *Record) DataStringified() (string, error) {
	if r.Data == nil {
		return "", nil
	}
	switch v := r.Data.(type) {
	case string:
		return v, nil
	default:
		b, err := canonical.Encode(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
