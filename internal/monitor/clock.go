package monitor

import (
	"sync/atomic"
	"time"
)

// MessageClock reports the receive time of the message currently being
// processed. Replays use it so throttling and episode durations follow
// the recorded timeline instead of the wall clock.
type MessageClock struct {
	t atomic.Int64
}

func NewMessageClock(start time.Time) *MessageClock {
	c := &MessageClock{}
	c.Set(start)
	return c
}

func (c *MessageClock) Set(t time.Time) { c.t.Store(t.UnixNano()) }

func (c *MessageClock) Now() time.Time { return time.Unix(0, c.t.Load()) }
