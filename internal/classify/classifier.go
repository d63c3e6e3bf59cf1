package classify

import (
	"context"

	"github.com/ObiAU/airwatch/internal/keywords"
	"github.com/ObiAU/airwatch/internal/models"
)

// Classifier routes a message to the official parser or the unofficial
// classifier depending on the trust tier of its source.
type Classifier struct {
	tiers      models.Tiers
	official   *OfficialParser
	unofficial *UnofficialClassifier
}

func New(t *keywords.Tables, tiers models.Tiers) (*Classifier, error) {
	official, err := NewOfficialParser(t)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		tiers:      tiers,
		official:   official,
		unofficial: NewUnofficialClassifier(t),
	}, nil
}

func (c *Classifier) Classify(ctx context.Context, msg models.RawMessage) models.Event {
	normalized := Normalize(msg.Text)
	if normalized == "" {
		return models.Event{Kind: models.EventIrrelevant, SourceID: msg.SourceID}
	}

	if !c.tiers.IsOfficial(msg.SourceID) {
		return c.unofficial.Classify(normalized, msg)
	}

	match := c.official.Parse(ctx, msg.Text)
	if match.Kind == models.EventIrrelevant {
		return models.Event{Kind: models.EventIrrelevant, SourceID: msg.SourceID}
	}
	ev := models.Event{
		Kind:        match.Kind,
		Region:      match.Region,
		SourceID:    msg.SourceID,
		RawText:     msg.Text,
		Permalink:   msg.Permalink,
		Fingerprint: models.NewFingerprint(msg.SourceID, msg.Text),
		ReceivedAt:  msg.ReceivedAt,
	}
	if match.Kind == models.EventAlarm {
		ev.ThreatHint = c.unofficial.ThreatHint(normalized)
	}
	return ev
}

// Explain reports everything both classifier stages see in a text,
// regardless of the source tier. Used for diagnostics only.
type Explanation struct {
	Normalized string
	Tier       models.Tier
	Official   OfficialMatch
	Signals    Signals
	Event      models.Event
}

func (c *Classifier) Explain(ctx context.Context, msg models.RawMessage) Explanation {
	normalized := Normalize(msg.Text)
	return Explanation{
		Normalized: normalized,
		Tier:       c.tiers.Of(msg.SourceID),
		Official:   c.official.Parse(ctx, msg.Text),
		Signals:    c.unofficial.Signals(normalized, msg.SourceID),
		Event:      c.Classify(ctx, msg),
	}
}
