package keywords_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/airwatch/internal/keywords"
	"github.com/ObiAU/airwatch/internal/models"
)

const minimal = `
regions:
  - id: brovary_district
    name: " Броварський Район "
    hashtags: ["#броварський_район"]
official:
  start_phrases: ["повітряна тривога"]
  clear_phrases: ["відбій тривоги"]
  connectors: ["в"]
  city_prefixes: ["м. "]
alarm_phrases: ["повітряна тривога"]
threat_keywords: ["шахед", "ШАХЕД"]
region_keywords: ["бровар"]
rapid_threats: ["балістик"]
threat_categories: ["шахед"]
source_bonus:
  "@Bro_Revisor": ["на нас"]
`

func TestDefault(t *testing.T) {
	tables, err := keywords.Default()
	require.NoError(t, err)

	assert.Equal(t, []models.Region{"brovary_district", "kyiv_oblast"}, tables.RegionIDs())

	r := tables.Regions[0]
	assert.Equal(t, "броварський район", r.Name)
	assert.Equal(t, models.Region("brovary_district"), r.ID)
	assert.Equal(t, "Броварський район", r.Display)

	assert.Equal(t, "шахед", tables.ThreatCategories[0])
	assert.NotEmpty(t, tables.BonusFor("@bro_revisor"))
	assert.Contains(t, tables.Official.CityPrefixes, "м. ")
}

func TestParse(t *testing.T) {
	tables, err := keywords.Parse([]byte(minimal))
	require.NoError(t, err)

	require.Len(t, tables.Regions, 1)
	r := tables.Regions[0]
	assert.Equal(t, models.Region("brovary_district"), r.ID)
	assert.Equal(t, "броварський район", r.Name)
	assert.Equal(t, "броварський район", r.Display)
	assert.Equal(t, []string{"шахед"}, tables.ThreatKeywords)
	assert.Equal(t, []string{"на нас"}, tables.BonusFor("bro_revisor"))
}

func TestParseInvalid(t *testing.T) {
	testCases := map[string]string{
		"no regions": `
official: {start_phrases: [a], clear_phrases: [b], connectors: [в]}
alarm_phrases: [a]
threat_keywords: [a]
region_keywords: [a]
rapid_threats: [a]
threat_categories: [a]
`,
		"duplicate region": `
regions:
  - {id: a, name: x}
  - {id: a, name: y}
official: {start_phrases: [a], clear_phrases: [b], connectors: [в]}
alarm_phrases: [a]
threat_keywords: [a]
region_keywords: [a]
rapid_threats: [a]
threat_categories: [a]
`,
		"empty table": `
regions:
  - {id: a, name: x}
official: {start_phrases: [a], clear_phrases: [b], connectors: [в]}
alarm_phrases: [a]
threat_keywords: []
region_keywords: [a]
rapid_threats: [a]
threat_categories: [a]
`,
		"not yaml": "regions: [",
	}

	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := keywords.Parse([]byte(data))
			require.Error(t, err)
			assert.True(t, goerr.HasTag(err, keywords.ErrInvalid))
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	tables, err := keywords.Load(path)
	require.NoError(t, err)
	assert.Len(t, tables.Regions, 1)

	tables, err = keywords.Load("")
	require.NoError(t, err)
	assert.Len(t, tables.Regions, 2)

	_, err = keywords.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
