package classify

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ObiAU/airwatch/internal/keywords"
	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/models"
)

// Pattern names, in the order they are tried.
const (
	PatternConnector = "connector"
	PatternDash      = "dash"
	PatternLoose     = "loose"
	PatternHashtag   = "hashtag"
)

type OfficialMatch struct {
	Kind       models.EventKind
	Region     models.Region
	RegionName string
	Pattern    string
}

type officialPattern struct {
	name string
	re   *regexp.Regexp
}

type hashtagRule struct {
	tag    string
	region keywords.Region
}

// OfficialParser extracts "<phrase> in <region>" statements from the
// official alert channel.
type OfficialParser struct {
	patterns     []officialPattern
	startPhrases []string
	clearPhrases []string
	hashtags     []hashtagRule
	regions      map[string]keywords.Region
	cityPrefixes []string
}

func NewOfficialParser(t *keywords.Tables) (*OfficialParser, error) {
	start := normalizeAll(t.Official.StartPhrases)
	clear := normalizeAll(t.Official.ClearPhrases)
	connectors := normalizeAll(t.Official.Connectors)
	if len(start) == 0 || len(clear) == 0 || len(connectors) == 0 {
		return nil, goerr.New("official parser requires phrases and connectors", goerr.T(keywords.ErrInvalid))
	}

	phrase := "(" + alternation(append(append([]string{}, start...), clear...)) + ")"
	conn := "(?:" + alternation(connectors) + ")"
	span := `([^\n.#!]+)`

	sources := []struct{ name, expr string }{
		{PatternConnector, phrase + `\s+` + conn + `\s+` + span},
		{PatternDash, phrase + `[^\n]*?(?:—|–|-)\s*` + span},
		{PatternLoose, phrase + `(?:[^\n]*?` + conn + `\s+)?` + span},
	}

	p := &OfficialParser{
		startPhrases: start,
		clearPhrases: clear,
		regions:      make(map[string]keywords.Region, len(t.Regions)),
		cityPrefixes: t.Official.CityPrefixes,
	}
	for _, s := range sources {
		re, err := regexp.Compile(s.expr)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to compile official pattern", goerr.V("pattern", s.name))
		}
		p.patterns = append(p.patterns, officialPattern{name: s.name, re: re})
	}
	for _, r := range t.Regions {
		p.regions[r.Name] = r
		for _, tag := range r.Hashtags {
			tag = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tag)), "#")
			if tag != "" {
				p.hashtags = append(p.hashtags, hashtagRule{tag: "#" + tag, region: r})
			}
		}
	}
	return p, nil
}

// alternation joins phrases into a regexp alternation where the words of
// a phrase may be separated by any whitespace.
func alternation(phrases []string) string {
	parts := make([]string, 0, len(phrases))
	for _, ph := range phrases {
		words := strings.Fields(ph)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `\s+`))
	}
	return strings.Join(parts, "|")
}

// Parse runs the ordered pattern chain over the normalized text. The
// first pattern that matches decides the outcome, even when its region is
// outside the service area. Hashtags are looked up in the raw text since
// normalization erases the hash marks. It never fails; unusable text
// yields an irrelevant match.
func (p *OfficialParser) Parse(ctx context.Context, text string) OfficialMatch {
	logger := logging.From(ctx)
	normalized := Normalize(text)
	if normalized == "" {
		return OfficialMatch{Kind: models.EventIrrelevant}
	}

	for _, pat := range p.patterns {
		m := pat.re.FindStringSubmatch(normalized)
		if len(m) < 3 {
			continue
		}
		kind := p.phraseKind(m[1])
		if kind == models.EventIrrelevant {
			continue
		}
		name := p.normalizeRegion(m[2])
		region, ok := p.regions[name]
		if !ok {
			logger.Debug("official message for other region", "region", name, "pattern", pat.name)
			return OfficialMatch{Kind: models.EventIrrelevant, RegionName: name, Pattern: pat.name}
		}
		return OfficialMatch{Kind: kind, Region: region.ID, RegionName: name, Pattern: pat.name}
	}

	if match, ok := p.hashtagFallback(text, normalized); ok {
		return match
	}

	logger.Debug("official message not recognised", "text", excerpt(normalized, 140))
	return OfficialMatch{Kind: models.EventIrrelevant}
}

func (p *OfficialParser) phraseKind(phrase string) models.EventKind {
	phrase = strings.Join(strings.Fields(phrase), " ")
	for _, s := range p.clearPhrases {
		if phrase == s {
			return models.EventAllClear
		}
	}
	for _, s := range p.startPhrases {
		if phrase == s {
			return models.EventAlarm
		}
	}
	return models.EventIrrelevant
}

func (p *OfficialParser) hashtagFallback(text, normalized string) (OfficialMatch, bool) {
	lower := strings.ToLower(text)
	var found *keywords.Region
	for i := range p.hashtags {
		if strings.Contains(lower, p.hashtags[i].tag) {
			found = &p.hashtags[i].region
			break
		}
	}
	if found == nil {
		return OfficialMatch{}, false
	}

	kind := models.EventIrrelevant
	if _, ok := firstContained(normalized, p.startPhrases); ok {
		kind = models.EventAlarm
	} else if _, ok := firstContained(normalized, p.clearPhrases); ok {
		kind = models.EventAllClear
	}
	if kind == models.EventIrrelevant {
		return OfficialMatch{}, false
	}
	return OfficialMatch{Kind: kind, Region: found.ID, RegionName: found.Name, Pattern: PatternHashtag}, true
}

func (p *OfficialParser) normalizeRegion(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range p.cityPrefixes {
		if strings.HasPrefix(d, prefix) {
			d = strings.TrimSpace(strings.TrimPrefix(d, prefix))
			break
		}
	}
	d = strings.TrimRightFunc(d, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) || unicode.Is(unicode.Mn, r)
	})
	return strings.Join(strings.Fields(d), " ")
}

func excerpt(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
