package monitor

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ObiAU/airwatch/internal/admission"
	"github.com/ObiAU/airwatch/internal/alertstate"
	"github.com/ObiAU/airwatch/internal/classify"
	"github.com/ObiAU/airwatch/internal/keywords"
	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/models"
	"github.com/ObiAU/airwatch/internal/storage"
)

type Journal interface {
	Record(ctx context.Context, e storage.Entry) error
}

type StatsProvider interface {
	Stats() map[string]interface{}
}

type Deps struct {
	Source     models.MessageSource
	Tables     *keywords.Tables
	Gate       *admission.Gate
	Classifier *classify.Classifier
	Machine    *alertstate.Machine
	Journal    Journal
	Status     *Status
	Dispatch   StatsProvider
	Dedupe     StatsProvider
	Clock      *MessageClock
}

type Options struct {
	Backfill       bool
	BackfillWindow time.Duration
}

// Result is what happened to a single message.
type Result struct {
	Decision admission.Decision
	Event    models.Event
	Outcome  *alertstate.Outcome
}

// Monitor is the single consumer of incoming messages. The admission
// gate and the alert state machine are only touched from Run.
type Monitor struct {
	source     models.MessageSource
	tables     *keywords.Tables
	gate       *admission.Gate
	classifier *classify.Classifier
	machine    *alertstate.Machine
	journal    Journal
	status     *Status
	dispatch   StatsProvider
	dedupe     StatsProvider
	clock      *MessageClock
	opts       Options
	now        func() time.Time
}

func New(deps Deps, opts Options) *Monitor {
	status := deps.Status
	if status == nil {
		status = NewStatus(time.Now())
	}
	return &Monitor{
		source:     deps.Source,
		tables:     deps.Tables,
		gate:       deps.Gate,
		classifier: deps.Classifier,
		machine:    deps.Machine,
		journal:    deps.Journal,
		status:     status,
		dispatch:   deps.Dispatch,
		dedupe:     deps.Dedupe,
		clock:      deps.Clock,
		opts:       opts,
		now:        time.Now,
	}
}

func (m *Monitor) Run(ctx context.Context) error {
	m.status.setRunning(true)
	defer m.status.setRunning(false)

	if m.opts.Backfill {
		m.backfill(ctx)
	}

	msgs, err := m.source.Messages(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to start message source", goerr.V("source", m.source.GetName()))
	}
	logging.From(ctx).Info("monitor started", "source", m.source.GetName())

	for {
		select {
		case <-ctx.Done():
			return m.shutdown(ctx)
		case msg, ok := <-msgs:
			if !ok {
				logging.From(ctx).Info("message source closed", "source", m.source.GetName())
				return m.shutdown(ctx)
			}
			m.Process(ctx, msg)
		}
	}
}

func (m *Monitor) backfill(ctx context.Context) {
	since := m.now().Add(-m.opts.BackfillWindow)
	msgs, err := m.source.FetchRecent(ctx, since)
	if err != nil {
		logging.From(ctx).Warn("backfill failed", logging.ErrAttr(err))
	}
	logging.From(ctx).Info("backfill", "messages", len(msgs), "since", since.Format(time.RFC3339))
	for _, msg := range msgs {
		m.Process(ctx, msg)
	}
}

// Process runs one message through admission, classification and the
// state machine.
func (m *Monitor) Process(ctx context.Context, msg models.RawMessage) Result {
	logger := logging.From(ctx).With("source", msg.SourceID, "message_id", msg.MessageID)
	if m.clock != nil && !msg.ReceivedAt.IsZero() {
		m.clock.Set(msg.ReceivedAt)
	}

	rec := MessageRecord{
		Time:   m.now(),
		Source: msg.SourceID,
		Text:   excerpt(msg.Text, 200),
	}

	d := m.gate.Admit(msg.SourceID, msg.Text, m.machine.AnyActive())
	rec.Admission = string(d.Reason)
	if !d.Admitted {
		logger.Debug("message not admitted", "reason", d.Reason)
		m.status.record(rec, false)
		return Result{Decision: d}
	}

	ev := m.classifier.Classify(ctx, msg)
	out := m.machine.Handle(ctx, ev)

	rec.Kind = out.Event.Kind.String()
	rec.Transition = string(out.Transition)
	rec.Notified = out.Notified
	m.status.record(rec, true)

	if m.journal != nil {
		entry := storage.Entry{
			SourceID:    msg.SourceID,
			Admission:   string(d.Reason),
			Kind:        out.Event.Kind.String(),
			Transition:  string(out.Transition),
			Region:      string(out.Event.Region),
			Text:        msg.Text,
			Permalink:   msg.Permalink,
			Fingerprint: string(d.Fingerprint),
			Notified:    out.Notified,
			Reasons:     strings.Join(out.Reasons, "; "),
			CreatedAt:   rec.Time,
		}
		if err := m.journal.Record(ctx, entry); err != nil {
			logger.Warn("failed to journal message", logging.ErrAttr(err))
		}
	}

	return Result{Decision: d, Event: out.Event, Outcome: &out}
}

func (m *Monitor) Snapshot() Snapshot {
	snap := m.status.Snapshot(m.now())

	state := m.machine.Snapshot()
	for _, r := range m.tables.Regions {
		rs := RegionStatus{ID: string(r.ID), Name: r.Display, Active: state.RegionActive[r.ID]}
		if since, ok := state.ActiveSince[r.ID]; ok && rs.Active {
			rs.Since = &since
		}
		snap.Regions = append(snap.Regions, rs)
	}
	if m.dispatch != nil {
		snap.Dispatch = m.dispatch.Stats()
	}
	if m.dedupe != nil {
		snap.Dedupe = m.dedupe.Stats()
	}
	if sp, ok := m.journal.(StatsProvider); ok {
		snap.Journal = sp.Stats()
	}
	return snap
}

func (m *Monitor) shutdown(ctx context.Context) error {
	logging.From(ctx).Info("shutting down monitor")

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.machine.Flush(flushCtx); err != nil {
		return goerr.Wrap(err, "failed to flush alert state on shutdown")
	}
	return nil
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
