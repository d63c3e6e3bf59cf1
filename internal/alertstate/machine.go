package alertstate

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/ObiAU/airwatch/internal/keywords"
	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/models"
)

type Transition string

const (
	TransitionDropped        Transition = "dropped"
	TransitionAlarmStarted   Transition = "alarm_started"
	TransitionReAlarm        Transition = "re_alarm"
	TransitionAllClear       Transition = "all_clear"
	TransitionClearIgnored   Transition = "clear_ignored"
	TransitionInfoRelayed    Transition = "info_relayed"
	TransitionInfoSuppressed Transition = "info_suppressed"
)

// Outcome describes what the machine did with one event.
type Outcome struct {
	Event      models.Event
	Transition Transition
	Notified   bool
	Downgraded bool
	Reasons    []string
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine converts classified events into state transitions and outbound
// notifications. Handle must only be called from a single goroutine;
// Snapshot may be called from anywhere.
type Machine struct {
	state    *State
	store    Store
	notifier models.Notifier
	tiers    models.Tiers
	regions  map[models.Region]keywords.Region
	order    []models.Region
	now      func() time.Time
	dirty    bool
	snapshot atomic.Pointer[State]
}

// New restores the last persisted state from store. A missing or
// unreadable record starts every region inactive.
func New(ctx context.Context, tables *keywords.Tables, tiers models.Tiers, store Store, notifier models.Notifier, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		notifier: notifier,
		tiers:    tiers,
		regions:  make(map[models.Region]keywords.Region, len(tables.Regions)),
		order:    tables.RegionIDs(),
		now:      time.Now,
	}
	for _, r := range tables.Regions {
		m.regions[r.ID] = r
	}
	for _, opt := range opts {
		opt(m)
	}

	m.state = NewState(m.order)
	rec, err := store.Load(ctx)
	switch {
	case err != nil:
		logging.From(ctx).Error("failed to load alert state, starting inactive", logging.ErrAttr(err))
	case rec != nil:
		m.state = FromRecord(*rec, m.order)
		logging.From(ctx).Info("alert state restored",
			"active", m.state.AnyActive(),
			"notified_info", len(m.state.NotifiedInfo))
	}
	m.publish()
	return m
}

func (m *Machine) AnyActive() bool {
	return m.state.AnyActive()
}

func (m *Machine) Snapshot() *State {
	return m.snapshot.Load().Clone()
}

func (m *Machine) Handle(ctx context.Context, ev models.Event) Outcome {
	logger := logging.From(ctx)

	downgraded := false
	if ev.IsAuthoritative() && !m.tiers.IsOfficial(ev.SourceID) {
		logger.Warn("alarm state claimed by unofficial source, relaying as info",
			"source", ev.SourceID, "kind", ev.Kind.String(), "region", ev.Region)
		ev = ev.Downgrade()
		downgraded = true
	}

	var out Outcome
	switch ev.Kind {
	case models.EventAlarm:
		out = m.handleAlarm(ctx, ev)
	case models.EventAllClear:
		out = m.handleAllClear(ctx, ev)
	case models.EventInfo:
		out = m.handleInfo(ctx, ev)
	default:
		out = Outcome{Event: ev, Transition: TransitionDropped}
	}
	out.Downgraded = downgraded
	return out
}

func (m *Machine) handleAlarm(ctx context.Context, ev models.Event) Outcome {
	region, ok := m.regions[ev.Region]
	if !ok {
		logging.From(ctx).Warn("alarm for region outside service area dropped", "region", ev.Region)
		return Outcome{Event: ev, Transition: TransitionDropped, Reasons: []string{"unknown region"}}
	}
	if m.state.RegionActive[ev.Region] {
		logging.From(ctx).Debug("alarm repeated while active", "region", ev.Region)
		return Outcome{Event: ev, Transition: TransitionReAlarm}
	}

	now := m.now()
	m.state.RegionActive[ev.Region] = true
	m.state.ActiveSince[ev.Region] = now
	m.state.NotifiedInfo = make(map[models.Fingerprint]struct{})
	m.persist(ctx)

	m.notify(ctx, models.Notification{
		Kind:   models.EventAlarm,
		Region: ev.Region,
		Body:   alarmBody(region.Display, ev.ThreatHint, ev.Permalink),
		Format: models.FormatHTML,
		Urgent: true,
	})
	logging.From(ctx).Info("alarm started", "region", ev.Region, "threat", ev.ThreatHint)
	return Outcome{Event: ev, Transition: TransitionAlarmStarted, Notified: true}
}

func (m *Machine) handleAllClear(ctx context.Context, ev models.Event) Outcome {
	region, ok := m.regions[ev.Region]
	if !ok {
		logging.From(ctx).Warn("all clear for region outside service area dropped", "region", ev.Region)
		return Outcome{Event: ev, Transition: TransitionDropped, Reasons: []string{"unknown region"}}
	}
	if !m.state.RegionActive[ev.Region] {
		logging.From(ctx).Debug("all clear without active alarm", "region", ev.Region)
		return Outcome{Event: ev, Transition: TransitionClearIgnored}
	}

	now := m.now()
	var elapsed time.Duration
	if since, ok := m.state.ActiveSince[ev.Region]; ok {
		elapsed = now.Sub(since)
	}
	m.state.RegionActive[ev.Region] = false
	delete(m.state.ActiveSince, ev.Region)
	m.persist(ctx)

	m.notify(ctx, models.Notification{
		Kind:   models.EventAllClear,
		Region: ev.Region,
		Body:   allClearBody(region.Display, ev.Permalink, elapsed),
		Format: models.FormatHTML,
		Urgent: false,
	})
	logging.From(ctx).Info("alarm cleared", "region", ev.Region, "elapsed", elapsed.String())
	return Outcome{Event: ev, Transition: TransitionAllClear, Notified: true}
}

func (m *Machine) handleInfo(ctx context.Context, ev models.Event) Outcome {
	reasons := m.suppressionReasons(ev)
	if len(reasons) > 0 {
		logging.From(ctx).Info("info not relayed",
			"source", ev.SourceID,
			"reasons", reasons,
			"text", excerpt(ev.RawText, 120))
		return Outcome{Event: ev, Transition: TransitionInfoSuppressed, Reasons: reasons}
	}

	m.state.NotifiedInfo[ev.Fingerprint] = struct{}{}
	m.persist(ctx)

	m.notify(ctx, models.Notification{
		Kind:   models.EventInfo,
		Body:   infoBody(ev.RawText, ev.Permalink),
		Format: models.FormatPlain,
		Urgent: false,
	})
	logging.From(ctx).Info("info relayed", "source", ev.SourceID, "threat", ev.ThreatHint)
	return Outcome{Event: ev, Transition: TransitionInfoRelayed, Notified: true}
}

func (m *Machine) suppressionReasons(ev models.Event) []string {
	if !m.state.AnyActive() {
		return []string{"no active alarm"}
	}
	if ev.Fingerprint == "" {
		return []string{"missing fingerprint"}
	}
	if _, seen := m.state.NotifiedInfo[ev.Fingerprint]; seen {
		return []string{"already relayed this episode"}
	}
	if ev.RegionHit || ev.RapidHit || ev.SourceBonusHit {
		return nil
	}
	return []string{"no region", "no rapid threat", "no source bonus"}
}

func (m *Machine) notify(ctx context.Context, n models.Notification) {
	n.ID = uuid.NewString()
	n.CreatedAt = m.now()
	m.notifier.Notify(ctx, n)
}

// persist writes the whole state. On failure the in-memory state stays
// authoritative and the write is retried on the next mutation or Flush.
func (m *Machine) persist(ctx context.Context) {
	m.state.UpdatedAt = m.now()
	m.publish()
	if err := m.store.Save(ctx, m.state.Record()); err != nil {
		m.dirty = true
		logging.From(ctx).Error("failed to persist alert state", logging.ErrAttr(err))
		return
	}
	m.dirty = false
}

// Flush retries a failed persist. Called on shutdown.
func (m *Machine) Flush(ctx context.Context) error {
	if !m.dirty {
		return nil
	}
	if err := m.store.Save(ctx, m.state.Record()); err != nil {
		return goerr.Wrap(err, "failed to flush alert state")
	}
	m.dirty = false
	return nil
}

func (m *Machine) publish() {
	m.snapshot.Store(m.state.Clone())
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
