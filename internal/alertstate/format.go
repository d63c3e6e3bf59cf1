package alertstate

import (
	"fmt"
	"html"
	"strings"
	"time"
)

func alarmBody(region, threat, permalink string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🚨 <b>Повітряна тривога — %s!</b>\n", html.EscapeString(region)))
	if threat != "" {
		sb.WriteString(fmt.Sprintf("• Можлива загроза: %s\n", html.EscapeString(threat)))
	}
	if permalink != "" {
		sb.WriteString(fmt.Sprintf("• Джерело: %s\n", html.EscapeString(permalink)))
	}
	sb.WriteString("Будьте в укриттях.")
	return sb.String()
}

func allClearBody(region, permalink string, elapsed time.Duration) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ <b>Відбій тривоги — %s!</b>", html.EscapeString(region)))
	if elapsed > 0 {
		sb.WriteString(fmt.Sprintf("\n• Тривалість: %s", FormatDuration(elapsed)))
	}
	if permalink != "" {
		sb.WriteString(fmt.Sprintf("\n• Джерело: %s", html.EscapeString(permalink)))
	}
	return sb.String()
}

// infoBody is sent without a parse mode; raw links keep their underscores.
func infoBody(text, permalink string) string {
	body := "⚠️ " + strings.TrimSpace(text)
	if permalink != "" {
		body += "\n• Джерело: " + permalink
	}
	return body
}

func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	hours := minutes / 60
	minutes %= 60
	if hours > 0 {
		return fmt.Sprintf("%d год %d хв", hours, minutes)
	}
	return fmt.Sprintf("%d хв", minutes)
}
