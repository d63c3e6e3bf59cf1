package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ObiAU/airwatch/internal/classify"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercase and collapse", "Повітряна   тривога\tв  Броварський район", "повітряна тривога в броварський район"},
		{"markdown stripped", "*Повітряна тривога* в `Броварський` ~район~", "повітряна тривога в броварський район"},
		{"hashtag to line", "#Броварський_район", "броварський район"},
		{"trailing hashtag", "Відбій тривоги в Броварський район #Броварський_район", "відбій тривоги в броварський район\nброварський район"},
		{"blank lines dropped", "a\r\n\r\n  \nb", "a\nb"},
		{"nbsp", "м.\u00a0Київ", "м. київ"},
		{"zero width", "шах\u200bеди", "шахеди"},
		{"apostrophe", "об\u2019єкт", "об'єкт"},
		{"only noise", "** ~ `", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify.Normalize(tc.in))
		})
	}
}
