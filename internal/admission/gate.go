package admission

import (
	"time"

	"github.com/ObiAU/airwatch/internal/cache"
	"github.com/ObiAU/airwatch/internal/models"
)

type Reason string

const (
	ReasonOfficial  Reason = "official"
	ReasonAdmitted  Reason = "admitted"
	ReasonNoEpisode Reason = "no_active_episode"
	ReasonThrottled Reason = "throttled"
	ReasonPrefilter Reason = "prefilter"
	ReasonDuplicate Reason = "duplicate"
)

type Decision struct {
	Admitted    bool
	Reason      Reason
	Fingerprint models.Fingerprint
}

type Prefilter interface {
	Passes(sourceID, text string) bool
}

type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// Gate bounds how much unofficial traffic reaches classification. It is
// not safe for concurrent use; the consumer loop owns it.
type Gate struct {
	tiers     models.Tiers
	throttle  time.Duration
	prefilter Prefilter
	seen      *cache.Cache
	lastSeen  map[string]time.Time
	now       func() time.Time
}

func New(tiers models.Tiers, prefilter Prefilter, seen *cache.Cache, throttle time.Duration, opts ...Option) *Gate {
	g := &Gate{
		tiers:     tiers,
		throttle:  throttle,
		prefilter: prefilter,
		seen:      seen,
		lastSeen:  make(map[string]time.Time),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit decides whether a message proceeds to classification. Official
// messages always pass. Unofficial ones need an active episode, must
// respect the per-source throttle, must pass the keyword prefilter and
// must not repeat a recently seen (source, text) pair.
func (g *Gate) Admit(sourceID, rawText string, episodeActive bool) Decision {
	sourceID = models.NormalizeSourceID(sourceID)
	if g.tiers.IsOfficial(sourceID) {
		return Decision{Admitted: true, Reason: ReasonOfficial, Fingerprint: models.NewFingerprint(sourceID, rawText)}
	}
	if !episodeActive {
		return Decision{Reason: ReasonNoEpisode}
	}

	now := g.now()
	if last, ok := g.lastSeen[sourceID]; ok && now.Sub(last) < g.throttle {
		return Decision{Reason: ReasonThrottled}
	}
	g.lastSeen[sourceID] = now

	if !g.prefilter.Passes(sourceID, rawText) {
		return Decision{Reason: ReasonPrefilter}
	}

	fp := models.NewFingerprint(sourceID, rawText)
	if g.seen.Add(fp, now) {
		return Decision{Reason: ReasonDuplicate, Fingerprint: fp}
	}
	return Decision{Admitted: true, Reason: ReasonAdmitted, Fingerprint: fp}
}
