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

const official = "air_alert_ua"

func newClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	tables, err := keywords.Default()
	require.NoError(t, err)
	c, err := classify.New(tables, models.NewTiers([]string{official}))
	require.NoError(t, err)
	return c
}

func msg(source, text string) models.RawMessage {
	return models.RawMessage{
		Text:      text,
		SourceID:  source,
		MessageID: "1",
		Permalink: "https://t.me/" + source + "/1",
	}
}

func TestClassifyOfficial(t *testing.T) {
	c := newClassifier(t)
	ctx := context.Background()

	ev := c.Classify(ctx, msg(official, "Повітряна тривога в Броварський район."))
	assert.Equal(t, models.EventAlarm, ev.Kind)
	assert.Equal(t, models.Region("brovary_district"), ev.Region)
	assert.NotEmpty(t, ev.Fingerprint)
	assert.Equal(t, "https://t.me/air_alert_ua/1", ev.Permalink)

	ev = c.Classify(ctx, msg(official, "Відбій тривоги в Броварський район."))
	assert.Equal(t, models.EventAllClear, ev.Kind)
	assert.Equal(t, models.Region("brovary_district"), ev.Region)

	ev = c.Classify(ctx, msg(official, "Повітряна тривога в Вінницька область."))
	assert.Equal(t, models.EventIrrelevant, ev.Kind)

	ev = c.Classify(ctx, msg(official, ""))
	assert.Equal(t, models.EventIrrelevant, ev.Kind)
}

func TestClassifyOfficialThreatHint(t *testing.T) {
	c := newClassifier(t)

	ev := c.Classify(context.Background(), msg(official, "Повітряна тривога в Київська область.\nЗагроза балістики!"))
	assert.Equal(t, models.EventAlarm, ev.Kind)
	assert.Equal(t, "балістик", ev.ThreatHint)
}

func TestClassifyUnofficial(t *testing.T) {
	c := newClassifier(t)
	ctx := context.Background()

	t.Run("region and threat", func(t *testing.T) {
		ev := c.Classify(ctx, msg("monitor_x", "Шахеди курсом на Бровари"))
		assert.Equal(t, models.EventInfo, ev.Kind)
		assert.True(t, ev.RegionHit)
		assert.Equal(t, "шахед", ev.ThreatHint)
		assert.Empty(t, ev.Region)
		assert.Equal(t, models.NewFingerprint("monitor_x", "Шахеди курсом на Бровари"), ev.Fingerprint)
	})

	t.Run("rapid threat without region", func(t *testing.T) {
		ev := c.Classify(ctx, msg("monitor_x", "Зліт МіГ-31К, загроза балістики по всій території"))
		assert.Equal(t, models.EventInfo, ev.Kind)
		assert.True(t, ev.RapidHit)
		assert.False(t, ev.RegionHit)
	})

	t.Run("source bonus", func(t *testing.T) {
		ev := c.Classify(ctx, msg("bro_revisor", "Летить на нас"))
		assert.Equal(t, models.EventInfo, ev.Kind)
		assert.True(t, ev.SourceBonusHit)

		ev = c.Classify(ctx, msg("monitor_x", "Летить на нас"))
		assert.Equal(t, models.EventIrrelevant, ev.Kind)
	})

	t.Run("no signal", func(t *testing.T) {
		ev := c.Classify(ctx, msg("monitor_x", "Доброго ранку всім"))
		assert.Equal(t, models.EventIrrelevant, ev.Kind)
	})
}

func TestUnofficialNeverAuthoritative(t *testing.T) {
	c := newClassifier(t)

	texts := []string{
		"Повітряна тривога в Броварський район.",
		"Відбій тривоги в Броварський район.",
		"#Броварський_район\nПовітряна тривога!",
		"Повітряна тривога — Київська область",
	}
	for _, text := range texts {
		ev := c.Classify(context.Background(), msg("fake_alerts", text))
		assert.False(t, ev.IsAuthoritative(), text)
		assert.Empty(t, ev.Region, text)
	}
}

func TestPrefilter(t *testing.T) {
	tables, err := keywords.Default()
	require.NoError(t, err)
	p := classify.NewPrefilter(tables)

	assert.True(t, p.Passes("monitor_x", "Шахеди курсом на Бровари"))
	assert.True(t, p.Passes("monitor_x", "Воздушная тревога"))
	assert.True(t, p.Passes("monitor_x", "Київщина, будьте уважні"))
	assert.True(t, p.Passes("@Bro_Revisor", "над нами"))
	assert.False(t, p.Passes("monitor_x", "над нами"))
	assert.False(t, p.Passes("monitor_x", "Доброго ранку"))
	assert.False(t, p.Passes("monitor_x", ""))
}

func TestExplain(t *testing.T) {
	c := newClassifier(t)

	exp := c.Explain(context.Background(), msg("monitor_x", "Повітряна тривога в Броварський район."))
	assert.Equal(t, models.TierUnofficial, exp.Tier)
	assert.Equal(t, models.EventAlarm, exp.Official.Kind)
	assert.Equal(t, models.EventInfo, exp.Event.Kind)
	assert.True(t, exp.Signals.RegionHit)
}
