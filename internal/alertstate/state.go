package alertstate

import (
	"context"
	"sort"
	"time"

	"github.com/ObiAU/airwatch/internal/models"
)

// State is the per-region alarm state plus the set of informational items
// already relayed during the current episode.
type State struct {
	RegionActive map[models.Region]bool
	ActiveSince  map[models.Region]time.Time
	NotifiedInfo map[models.Fingerprint]struct{}
	UpdatedAt    time.Time
}

func NewState(regions []models.Region) *State {
	s := &State{
		RegionActive: make(map[models.Region]bool, len(regions)),
		ActiveSince:  make(map[models.Region]time.Time, len(regions)),
		NotifiedInfo: make(map[models.Fingerprint]struct{}),
	}
	for _, r := range regions {
		s.RegionActive[r] = false
	}
	return s
}

func (s *State) AnyActive() bool {
	for _, active := range s.RegionActive {
		if active {
			return true
		}
	}
	return false
}

func (s *State) Clone() *State {
	out := &State{
		RegionActive: make(map[models.Region]bool, len(s.RegionActive)),
		ActiveSince:  make(map[models.Region]time.Time, len(s.ActiveSince)),
		NotifiedInfo: make(map[models.Fingerprint]struct{}, len(s.NotifiedInfo)),
		UpdatedAt:    s.UpdatedAt,
	}
	for k, v := range s.RegionActive {
		out.RegionActive[k] = v
	}
	for k, v := range s.ActiveSince {
		out.ActiveSince[k] = v
	}
	for k := range s.NotifiedInfo {
		out.NotifiedInfo[k] = struct{}{}
	}
	return out
}

// Record is the persisted layout of State. Missing keys decode to their
// zero values.
type Record struct {
	RegionActive    map[models.Region]bool      `json:"region_active"`
	ActiveSince     map[models.Region]time.Time `json:"active_since"`
	NotifiedInfoIDs []models.Fingerprint        `json:"notified_info_ids"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func (s *State) Record() Record {
	r := Record{
		RegionActive:    make(map[models.Region]bool, len(s.RegionActive)),
		ActiveSince:     make(map[models.Region]time.Time, len(s.ActiveSince)),
		NotifiedInfoIDs: make([]models.Fingerprint, 0, len(s.NotifiedInfo)),
		UpdatedAt:       s.UpdatedAt,
	}
	for k, v := range s.RegionActive {
		r.RegionActive[k] = v
	}
	for k, v := range s.ActiveSince {
		r.ActiveSince[k] = v
	}
	for fp := range s.NotifiedInfo {
		r.NotifiedInfoIDs = append(r.NotifiedInfoIDs, fp)
	}
	sort.Slice(r.NotifiedInfoIDs, func(i, j int) bool { return r.NotifiedInfoIDs[i] < r.NotifiedInfoIDs[j] })
	return r
}

// FromRecord rebuilds state for the configured regions. Regions no longer
// configured are dropped; an active region without a start time is
// treated as active since the record was written.
func FromRecord(rec Record, regions []models.Region) *State {
	s := NewState(regions)
	s.UpdatedAt = rec.UpdatedAt
	for _, r := range regions {
		if !rec.RegionActive[r] {
			continue
		}
		s.RegionActive[r] = true
		if since, ok := rec.ActiveSince[r]; ok && !since.IsZero() {
			s.ActiveSince[r] = since
		} else if !rec.UpdatedAt.IsZero() {
			s.ActiveSince[r] = rec.UpdatedAt
		}
	}
	for _, fp := range rec.NotifiedInfoIDs {
		if fp != "" {
			s.NotifiedInfo[fp] = struct{}{}
		}
	}
	return s
}

// Store persists the whole record. Load returns (nil, nil) when nothing
// has been stored yet.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec Record) error
}
