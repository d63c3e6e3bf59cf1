package classify

import "strings"

// Normalize lowercases text and removes the formatting noise channels add
// around alert wording. Hash marks become line breaks and underscores
// become spaces, so "#Броварський_район" reads as a line "броварський
// район". Line structure survives; runs of spaces within a line collapse.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch r {
		case '*', '`', '~', '\u200b', '\u200c', '\ufeff':
			continue
		case '_':
			b.WriteRune(' ')
		case '#', '\r', '\u2028', '\u2029':
			b.WriteRune('\n')
		case '\t', '\v', '\f', '\u00a0', '\u2002', '\u2003', '\u2007', '\u2009', '\u200a', '\u202f', '\u205f', '\u3000':
			b.WriteRune(' ')
		case '\u2019', '\u02bc', '\u2018':
			b.WriteRune('\'')
		default:
			b.WriteRune(r)
		}
	}

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			out = append(out, strings.Join(fields, " "))
		}
	}
	return strings.Join(out, "\n")
}

func firstContained(text string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return n, true
		}
	}
	return "", false
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = Normalize(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
