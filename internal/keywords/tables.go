package keywords

import (
	_ "embed"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/ObiAU/airwatch/internal/models"
)

//go:embed default.yaml
var defaultTables []byte

var ErrInvalid = goerr.NewTag("invalid_keyword_tables")

type Region struct {
	ID       models.Region `yaml:"id" json:"id"`
	Name     string        `yaml:"name" json:"name"`
	Display  string        `yaml:"display" json:"display"`
	Hashtags []string      `yaml:"hashtags" json:"hashtags"`
}

type Official struct {
	StartPhrases []string `yaml:"start_phrases"`
	ClearPhrases []string `yaml:"clear_phrases"`
	Connectors   []string `yaml:"connectors"`
	CityPrefixes []string `yaml:"city_prefixes"`
}

// Tables is the whole classification vocabulary. It is loaded once at
// startup and treated as read-only afterwards.
type Tables struct {
	Regions          []Region            `yaml:"regions"`
	Official         Official            `yaml:"official"`
	AlarmPhrases     []string            `yaml:"alarm_phrases"`
	ThreatKeywords   []string            `yaml:"threat_keywords"`
	RegionKeywords   []string            `yaml:"region_keywords"`
	RapidThreats     []string            `yaml:"rapid_threats"`
	ThreatCategories []string            `yaml:"threat_categories"`
	SourceBonus      map[string][]string `yaml:"source_bonus"`
}

// Load reads tables from path, or the embedded default when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read keyword tables", goerr.V("path", path))
	}
	t, err := Parse(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load keyword tables", goerr.V("path", path))
	}
	return t, nil
}

func Default() (*Tables, error) {
	return Parse(defaultTables)
}

func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to decode keyword tables", goerr.T(ErrInvalid))
	}
	t.clean()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tables) clean() {
	for i := range t.Regions {
		t.Regions[i].Name = strings.ToLower(strings.TrimSpace(t.Regions[i].Name))
		t.Regions[i].Hashtags = cleanList(t.Regions[i].Hashtags)
		if t.Regions[i].Display == "" {
			t.Regions[i].Display = t.Regions[i].Name
		}
	}
	t.Official.StartPhrases = cleanList(t.Official.StartPhrases)
	t.Official.ClearPhrases = cleanList(t.Official.ClearPhrases)
	t.Official.Connectors = cleanList(t.Official.Connectors)
	// prefixes keep their trailing space, it is significant
	prefixes := t.Official.CityPrefixes[:0]
	for _, p := range t.Official.CityPrefixes {
		if p = strings.ToLower(strings.TrimLeft(p, " ")); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	t.Official.CityPrefixes = prefixes
	t.AlarmPhrases = cleanList(t.AlarmPhrases)
	t.ThreatKeywords = cleanList(t.ThreatKeywords)
	t.RegionKeywords = cleanList(t.RegionKeywords)
	t.RapidThreats = cleanList(t.RapidThreats)
	t.ThreatCategories = cleanList(t.ThreatCategories)

	bonus := make(map[string][]string, len(t.SourceBonus))
	for source, phrases := range t.SourceBonus {
		if phrases = cleanList(phrases); len(phrases) > 0 {
			bonus[models.NormalizeSourceID(source)] = phrases
		}
	}
	t.SourceBonus = bonus
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Validate rejects tables that would leave a classifier stage without
// vocabulary.
func (t *Tables) Validate() error {
	if len(t.Regions) == 0 {
		return goerr.New("no regions configured", goerr.T(ErrInvalid))
	}
	ids := make(map[models.Region]struct{}, len(t.Regions))
	names := make(map[string]struct{}, len(t.Regions))
	for _, r := range t.Regions {
		if r.ID == "" || r.Name == "" {
			return goerr.New("region requires id and name", goerr.V("region", r), goerr.T(ErrInvalid))
		}
		if _, dup := ids[r.ID]; dup {
			return goerr.New("duplicate region id", goerr.V("id", r.ID), goerr.T(ErrInvalid))
		}
		if _, dup := names[r.Name]; dup {
			return goerr.New("duplicate region name", goerr.V("name", r.Name), goerr.T(ErrInvalid))
		}
		ids[r.ID] = struct{}{}
		names[r.Name] = struct{}{}
	}

	required := map[string][]string{
		"official.start_phrases": t.Official.StartPhrases,
		"official.clear_phrases": t.Official.ClearPhrases,
		"official.connectors":    t.Official.Connectors,
		"alarm_phrases":          t.AlarmPhrases,
		"threat_keywords":        t.ThreatKeywords,
		"region_keywords":        t.RegionKeywords,
		"rapid_threats":          t.RapidThreats,
		"threat_categories":      t.ThreatCategories,
	}
	for name, list := range required {
		if len(list) == 0 {
			return goerr.New("keyword table is empty", goerr.V("table", name), goerr.T(ErrInvalid))
		}
	}
	return nil
}

func (t *Tables) RegionIDs() []models.Region {
	ids := make([]models.Region, 0, len(t.Regions))
	for _, r := range t.Regions {
		ids = append(ids, r.ID)
	}
	return ids
}

func (t *Tables) BonusFor(sourceID string) []string {
	return t.SourceBonus[models.NormalizeSourceID(sourceID)]
}
