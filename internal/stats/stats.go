// Package stats computes derived statistics over a recorded event chain.
// It is a pure function of the event list (§4.8), grounded on the
// by-type/by-source counting in witnessd's keystroke.InputTracker
// stats derivation, adapted here to event kinds instead of hardware
// input classes and to a one-shot roll-up instead of a running tracker.
package stats

import (
	"math"

	"typingproof/internal/event"
)

// Summary holds the counts and derived metrics returned by getStats (§6).
type Summary struct {
	TotalEvents  int            `json:"totalEvents"`
	Duration     int64          `json:"duration"` // milliseconds, last - first timestamp
	EventTypes   map[string]int `json:"eventTypes"`
	CurrentHash  string         `json:"currentHash"`
	PendingCount int64          `json:"pendingCount"`

	PasteEvents    int     `json:"pasteEvents"`
	DropEvents     int     `json:"dropEvents"`
	InsertEvents   int     `json:"insertEvents"`
	DeleteEvents   int     `json:"deleteEvents"`
	TemplateEvents int     `json:"templateEvents"`
	AverageSpeed   float64 `json:"averageSpeed"` // inserts per minute, rounded to 0.1
}

// Compute derives a Summary from the event list. currentHash and
// pendingCount come from the live chain state and are passed in since
// they are not properties of the event list alone.
func Compute(events []*event.Record, currentHash string, pendingCount int64) Summary {
	s := Summary{
		EventTypes:  make(map[string]int),
		CurrentHash: currentHash,
		PendingCount: pendingCount,
		TotalEvents: len(events),
	}

	if len(events) == 0 {
		return s
	}

	for _, rec := range events {
		s.EventTypes[string(rec.Type)]++

		switch rec.Type {
		case event.KindTemplateInjection:
			s.TemplateEvents++
		}

		switch rec.InputType {
		case event.InputInsertFromPaste:
			s.PasteEvents++
			s.InsertEvents++
		case event.InputInsertFromDrop:
			s.DropEvents++
			s.InsertEvents++
		case event.InputInsertText:
			s.InsertEvents++
		case event.InputDeleteLeft, event.InputDeleteRight:
			s.DeleteEvents++
		}
	}

	s.Duration = events[len(events)-1].Timestamp - events[0].Timestamp

	if s.Duration > 0 {
		minutes := float64(s.Duration) / 60000.0
		speed := float64(s.InsertEvents) / minutes
		s.AverageSpeed = math.Round(speed*10) / 10
	}

	return s
}

// IsPureTyping reports whether no paste or drop events occurred, per
// §4.7's compact-summary field.
func IsPureTyping(s Summary) bool {
	return s.PasteEvents == 0 && s.DropEvents == 0
}
