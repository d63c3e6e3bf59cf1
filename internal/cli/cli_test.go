package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/airwatch/internal/models"
)

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestClassifyCommand(t *testing.T) {
	out := execute(t, "", "classify", "--source", "air_alert_ua", "Повітряна тривога в Броварський район.")
	assert.Contains(t, out, "alarm")
	assert.Contains(t, out, "brovary_district")
	assert.Contains(t, out, "connector")

	out = execute(t, "Шахеди курсом на Бровари", "classify", "-s", "monitor_x")
	assert.Contains(t, out, "unofficial")
	assert.Contains(t, out, "info")
	assert.Contains(t, out, `hint="шахед"`)
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.jsonl")
	lines := []string{
		`{"source_id":"air_alert_ua","text":"Повітряна тривога в Броварський район.","received_at":"2025-03-01T02:00:00Z"}`,
		`{"source_id":"monitor_x","text":"Шахеди курсом на Бровари","received_at":"2025-03-01T02:01:00Z"}`,
		`{"source_id":"monitor_x","text":"Ракета на Київ","received_at":"2025-03-01T02:01:03Z"}`,
		`{"source_id":"air_alert_ua","text":"Відбій тривоги в Броварський район.","received_at":"2025-03-01T03:30:00Z"}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600))

	state := filepath.Join(dir, "state.json")
	out := execute(t, "", "replay", "--state", state, path)

	var result struct {
		Notifications []models.Notification `json:"notifications"`
		Status        struct {
			Received  uint64            `json:"received"`
			Admission map[string]uint64 `json:"admission"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	require.Len(t, result.Notifications, 3)
	assert.Equal(t, models.EventAlarm, result.Notifications[0].Kind)
	assert.Equal(t, models.EventInfo, result.Notifications[1].Kind)
	assert.Equal(t, models.EventAllClear, result.Notifications[2].Kind)
	assert.Contains(t, result.Notifications[2].Body, "1 год 30 хв")

	assert.Equal(t, uint64(4), result.Status.Received)
	assert.Equal(t, uint64(1), result.Status.Admission["throttled"])

	_, err := os.Stat(state)
	assert.NoError(t, err)
}
