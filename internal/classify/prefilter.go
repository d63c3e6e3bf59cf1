package classify

import (
	"github.com/ObiAU/airwatch/internal/keywords"
	"github.com/ObiAU/airwatch/internal/models"
)

// Prefilter is the cheap keyword check the admission gate applies to
// unofficial traffic. It is deliberately looser than the classifier.
type Prefilter struct {
	needles []string
	bonus   map[string][]string
}

func NewPrefilter(t *keywords.Tables) *Prefilter {
	var needles []string
	needles = append(needles, normalizeAll(t.AlarmPhrases)...)
	needles = append(needles, normalizeAll(t.ThreatKeywords)...)
	needles = append(needles, normalizeAll(t.RegionKeywords)...)

	bonus := make(map[string][]string, len(t.SourceBonus))
	for source, phrases := range t.SourceBonus {
		bonus[source] = normalizeAll(phrases)
	}
	return &Prefilter{needles: needles, bonus: bonus}
}

func (p *Prefilter) Passes(sourceID, text string) bool {
	normalized := Normalize(text)
	if normalized == "" {
		return false
	}
	if _, ok := firstContained(normalized, p.needles); ok {
		return true
	}
	_, ok := firstContained(normalized, p.bonus[models.NormalizeSourceID(sourceID)])
	return ok
}
