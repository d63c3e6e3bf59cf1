package classify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/airwatch/internal/classify"
	"github.com/ObiAU/airwatch/internal/keywords"
	"github.com/ObiAU/airwatch/internal/models"
)

func newOfficialParser(t *testing.T) *classify.OfficialParser {
	t.Helper()
	tables, err := keywords.Default()
	require.NoError(t, err)
	p, err := classify.NewOfficialParser(tables)
	require.NoError(t, err)
	return p
}

func TestOfficialParser(t *testing.T) {
	p := newOfficialParser(t)
	ctx := context.Background()

	testCases := []struct {
		name    string
		text    string
		kind    models.EventKind
		region  models.Region
		pattern string
	}{
		{
			name:    "connector alarm",
			text:    "Повітряна тривога в Броварський район.",
			kind:    models.EventAlarm,
			region:  "brovary_district",
			pattern: classify.PatternConnector,
		},
		{
			name:    "connector clear",
			text:    "Відбій тривоги в Броварський район.",
			kind:    models.EventAllClear,
			region:  "brovary_district",
			pattern: classify.PatternConnector,
		},
		{
			name:    "real post layout",
			text:    "🔴 11:02 Повітряна тривога в Київська область.\nСлідкуйте за подальшими повідомленнями.\n#Київська_область",
			kind:    models.EventAlarm,
			region:  "kyiv_oblast",
			pattern: classify.PatternConnector,
		},
		{
			name:    "u connector",
			text:    "Відбій тривоги у Київська область!",
			kind:    models.EventAllClear,
			region:  "kyiv_oblast",
			pattern: classify.PatternConnector,
		},
		{
			name:    "dash",
			text:    "Повітряна тривога — Броварський район",
			kind:    models.EventAlarm,
			region:  "brovary_district",
			pattern: classify.PatternDash,
		},
		{
			name:    "loose",
			text:    "Повітряна тривога Броварський район",
			kind:    models.EventAlarm,
			region:  "brovary_district",
			pattern: classify.PatternLoose,
		},
		{
			name:    "hashtag fallback",
			text:    "#Броварський_район\nПовітряна тривога!",
			kind:    models.EventAlarm,
			region:  "brovary_district",
			pattern: classify.PatternHashtag,
		},
		{
			name:    "hashtag fallback clear",
			text:    "#Броварський_район\nВідбій тривоги!",
			kind:    models.EventAllClear,
			region:  "brovary_district",
			pattern: classify.PatternHashtag,
		},
		{
			name: "other region",
			text: "Повітряна тривога в Вінницька область.",
			kind: models.EventIrrelevant,
		},
		{
			name: "city is not the district",
			text: "Повітряна тривога в м. Київ.",
			kind: models.EventIrrelevant,
		},
		{
			name: "no phrase",
			text: "Броварський район, слідкуйте за новинами",
			kind: models.EventIrrelevant,
		},
		{
			name:    "hashtag after text",
			text:    "Повітряна тривога!\nДеталі згодом #Київська_область",
			kind:    models.EventAlarm,
			region:  "kyiv_oblast",
			pattern: classify.PatternHashtag,
		},
		{
			name: "region line without hashtag",
			text: "Повітряна тривога\nКиївська область: оновлення",
			kind: models.EventIrrelevant,
		},
		{
			name: "region words without underscore",
			text: "Відбій тривоги\n#Київська область",
			kind: models.EventIrrelevant,
		},
		{
			name: "hashtag without phrase",
			text: "#Броварський_район\nтестове повідомлення",
			kind: models.EventIrrelevant,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Parse(ctx, tc.text)
			assert.Equal(t, tc.kind, got.Kind)
			if tc.kind != models.EventIrrelevant {
				assert.Equal(t, tc.region, got.Region)
				assert.Equal(t, tc.pattern, got.Pattern)
			}
		})
	}
}

func TestOfficialParserFirstMatchWins(t *testing.T) {
	p := newOfficialParser(t)

	// the connector pattern names a region we do not serve; the trailing
	// hashtag must not rescue it
	got := p.Parse(context.Background(),
		"Повітряна тривога в Вінницька область.\n#Броварський_район")
	assert.Equal(t, models.EventIrrelevant, got.Kind)
	assert.Equal(t, "вінницька область", got.RegionName)
	assert.Equal(t, classify.PatternConnector, got.Pattern)
}
