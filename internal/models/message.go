package models

import (
	"context"
	"strings"
	"time"
)

type RawMessage struct {
	Text       string    `json:"text"`
	SourceID   string    `json:"source_id"`
	MessageID  string    `json:"message_id"`
	ReceivedAt time.Time `json:"received_at"`
	Permalink  string    `json:"permalink"`
}

// MessageSource delivers raw channel posts in arrival order. FetchRecent is
// only used for startup catch-up.
type MessageSource interface {
	Messages(ctx context.Context) (<-chan RawMessage, error)
	FetchRecent(ctx context.Context, since time.Time) ([]RawMessage, error)
	GetName() string
}

// NormalizeSourceID lowercases a channel username and drops a leading "@".
func NormalizeSourceID(id string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "@"))
}
