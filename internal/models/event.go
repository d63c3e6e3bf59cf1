package models

import (
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Region is the canonical identifier of a service-area region.
type Region string

type EventKind int

const (
	EventIrrelevant EventKind = iota
	EventAlarm
	EventAllClear
	EventInfo
)

var eventKindNames = map[EventKind]string{
	EventIrrelevant: "irrelevant",
	EventAlarm:      "alarm",
	EventAllClear:   "all_clear",
	EventInfo:       "info",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event_kind(%d)", int(k))
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	for kind, name := range eventKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return goerr.New("unknown event kind", goerr.V("kind", string(b)))
}

// Event is the result of classifying one admitted message. Region is set
// for alarm and all-clear events only; the hit flags are meaningful for
// info events only.
type Event struct {
	Kind           EventKind   `json:"kind"`
	Region         Region      `json:"region,omitempty"`
	SourceID       string      `json:"source_id"`
	RawText        string      `json:"raw_text"`
	Permalink      string      `json:"permalink"`
	ThreatHint     string      `json:"threat_hint,omitempty"`
	RegionHit      bool        `json:"region_hit"`
	RapidHit       bool        `json:"rapid_hit"`
	SourceBonusHit bool        `json:"source_bonus_hit"`
	Fingerprint    Fingerprint `json:"fingerprint"`
	ReceivedAt     time.Time   `json:"received_at"`
}

func (e Event) IsAuthoritative() bool {
	return e.Kind == EventAlarm || e.Kind == EventAllClear
}

// Downgrade turns an alarm or all-clear into an informational item. The
// region it named is one of ours, so the region signal is kept.
func (e Event) Downgrade() Event {
	if !e.IsAuthoritative() {
		return e
	}
	e.Kind = EventInfo
	e.Region = ""
	e.RegionHit = true
	return e
}
