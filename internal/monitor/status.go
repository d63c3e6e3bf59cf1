package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const historySize = 100

type MessageRecord struct {
	Time       time.Time `json:"time"`
	Source     string    `json:"source"`
	Text       string    `json:"text"`
	Admission  string    `json:"admission"`
	Kind       string    `json:"kind,omitempty"`
	Transition string    `json:"transition,omitempty"`
	Notified   bool      `json:"notified"`
}

type LogRecord struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

type RegionStatus struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Active bool       `json:"active"`
	Since  *time.Time `json:"since,omitempty"`
}

// Snapshot is a point-in-time copy of the process status. It shares no
// memory with the live Status.
type Snapshot struct {
	StartedAt   time.Time              `json:"started_at"`
	Uptime      string                 `json:"uptime"`
	Running     bool                   `json:"running"`
	Received    uint64                 `json:"received"`
	Admitted    uint64                 `json:"admitted"`
	Notified    uint64                 `json:"notified"`
	Admission   map[string]uint64      `json:"admission"`
	Transitions map[string]uint64      `json:"transitions"`
	Regions     []RegionStatus         `json:"regions"`
	Dispatch    map[string]interface{} `json:"dispatch,omitempty"`
	Dedupe      map[string]interface{} `json:"dedupe,omitempty"`
	Journal     map[string]interface{} `json:"journal,omitempty"`
	Messages    []MessageRecord        `json:"messages"`
	Logs        []LogRecord            `json:"logs"`
}

// Status accumulates counters and recent history for the status page.
type Status struct {
	mu          sync.Mutex
	startedAt   time.Time
	running     bool
	received    uint64
	admitted    uint64
	notified    uint64
	admission   map[string]uint64
	transitions map[string]uint64
	messages    []MessageRecord
	logs        []LogRecord
}

func NewStatus(startedAt time.Time) *Status {
	return &Status{
		startedAt:   startedAt,
		admission:   make(map[string]uint64),
		transitions: make(map[string]uint64),
	}
}

func (s *Status) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Status) record(rec MessageRecord, admitted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received++
	s.admission[rec.Admission]++
	if admitted {
		s.admitted++
	}
	if rec.Transition != "" {
		s.transitions[rec.Transition]++
	}
	if rec.Notified {
		s.notified++
	}
	s.messages = appendBounded(s.messages, rec)
}

func (s *Status) log(rec LogRecord) {
	s.mu.Lock()
	s.logs = appendBounded(s.logs, rec)
	s.mu.Unlock()
}

func (s *Status) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		StartedAt:   s.startedAt,
		Uptime:      now.Sub(s.startedAt).Round(time.Second).String(),
		Running:     s.running,
		Received:    s.received,
		Admitted:    s.admitted,
		Notified:    s.notified,
		Admission:   make(map[string]uint64, len(s.admission)),
		Transitions: make(map[string]uint64, len(s.transitions)),
		Messages:    make([]MessageRecord, len(s.messages)),
		Logs:        make([]LogRecord, len(s.logs)),
	}
	for k, v := range s.admission {
		snap.Admission[k] = v
	}
	for k, v := range s.transitions {
		snap.Transitions[k] = v
	}
	copy(snap.Messages, s.messages)
	copy(snap.Logs, s.logs)
	return snap
}

func appendBounded[T any](list []T, v T) []T {
	list = append(list, v)
	if len(list) > historySize {
		list = append(list[:0:0], list[len(list)-historySize:]...)
	}
	return list
}

// LogHandler wraps next so that every record at Info or above is also
// kept in the status log history.
func (s *Status) LogHandler(next slog.Handler) slog.Handler {
	return &statusHandler{next: next, status: s}
}

type statusHandler struct {
	next   slog.Handler
	status *Status
}

func (h *statusHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *statusHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelInfo {
		h.status.log(LogRecord{Time: r.Time, Level: r.Level.String(), Message: r.Message})
	}
	return h.next.Handle(ctx, r)
}

func (h *statusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &statusHandler{next: h.next.WithAttrs(attrs), status: h.status}
}

func (h *statusHandler) WithGroup(name string) slog.Handler {
	return &statusHandler{next: h.next.WithGroup(name), status: h.status}
}

func (s *Status) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
