package models

import (
	"context"
	"time"
)

type Format int

const (
	FormatPlain Format = iota
	FormatHTML
)

type Notification struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Region    Region    `json:"region,omitempty"`
	Body      string    `json:"body"`
	Format    Format    `json:"format"`
	Urgent    bool      `json:"urgent"`
	Target    string    `json:"target,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier accepts a notification for delivery. Implementations must not
// block the caller on network I/O.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
