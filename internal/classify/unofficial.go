package classify

import (
	"github.com/ObiAU/airwatch/internal/keywords"
	"github.com/ObiAU/airwatch/internal/models"
)

// Signals are the relevance indicators computed for a message from an
// unofficial source.
type Signals struct {
	RegionHit  bool
	ThreatHit  bool
	RapidHit   bool
	BonusHit   bool
	ThreatHint string
}

func (s Signals) Relevant() bool {
	return s.RegionHit || s.ThreatHit || s.BonusHit
}

type UnofficialClassifier struct {
	regionKeywords   []string
	threatKeywords   []string
	rapidThreats     []string
	threatCategories []string
	bonus            map[string][]string
}

func NewUnofficialClassifier(t *keywords.Tables) *UnofficialClassifier {
	bonus := make(map[string][]string, len(t.SourceBonus))
	for source, phrases := range t.SourceBonus {
		bonus[source] = normalizeAll(phrases)
	}
	return &UnofficialClassifier{
		regionKeywords:   normalizeAll(t.RegionKeywords),
		threatKeywords:   normalizeAll(t.ThreatKeywords),
		rapidThreats:     normalizeAll(t.RapidThreats),
		threatCategories: normalizeAll(t.ThreatCategories),
		bonus:            bonus,
	}
}

func (c *UnofficialClassifier) Signals(normalized, sourceID string) Signals {
	var s Signals
	if normalized == "" {
		return s
	}
	_, s.RegionHit = firstContained(normalized, c.regionKeywords)
	_, s.ThreatHit = firstContained(normalized, c.threatKeywords)
	_, s.RapidHit = firstContained(normalized, c.rapidThreats)
	_, s.BonusHit = firstContained(normalized, c.bonus[models.NormalizeSourceID(sourceID)])
	s.ThreatHint = c.ThreatHint(normalized)
	return s
}

// ThreatHint returns the first threat category found, in table order.
func (c *UnofficialClassifier) ThreatHint(normalized string) string {
	hint, _ := firstContained(normalized, c.threatCategories)
	return hint
}

// Classify never produces alarm or all-clear events.
func (c *UnofficialClassifier) Classify(normalized string, msg models.RawMessage) models.Event {
	s := c.Signals(normalized, msg.SourceID)
	if !s.Relevant() {
		return models.Event{Kind: models.EventIrrelevant, SourceID: msg.SourceID}
	}
	return models.Event{
		Kind:           models.EventInfo,
		SourceID:       msg.SourceID,
		RawText:        msg.Text,
		Permalink:      msg.Permalink,
		ThreatHint:     s.ThreatHint,
		RegionHit:      s.RegionHit,
		RapidHit:       s.RapidHit,
		SourceBonusHit: s.BonusHit,
		Fingerprint:    models.NewFingerprint(msg.SourceID, msg.Text),
		ReceivedAt:     msg.ReceivedAt,
	}
}
