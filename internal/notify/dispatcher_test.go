package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/airwatch/internal/models"
)

type fakeSender struct {
	mu    sync.Mutex
	errs  []error
	calls []models.Notification
}

func (s *fakeSender) Send(ctx context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, n)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *fakeSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestDispatcher(sender Sender, cfg Config) (*Dispatcher, *[]time.Duration) {
	d := New(sender, cfg)
	var waits []time.Duration
	d.sleep = func(ctx context.Context, wait time.Duration) error {
		waits = append(waits, wait)
		return nil
	}
	return d, &waits
}

func TestDeliverRetries(t *testing.T) {
	sender := &fakeSender{errs: []error{errors.New("timeout"), errors.New("timeout")}}
	d, waits := newTestDispatcher(sender, Config{MaxAttempts: 5, Backoff: time.Second})

	d.deliver(context.Background(), models.Notification{ID: "1", Target: "@channel"})

	assert.Equal(t, 3, sender.Calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
	assert.Equal(t, uint64(1), d.Stats()["sent"])
}

func TestDeliverBackoffIsCapped(t *testing.T) {
	errs := make([]error, 70)
	for i := range errs {
		errs[i] = errors.New("timeout")
	}
	sender := &fakeSender{errs: errs}
	d, waits := newTestDispatcher(sender, Config{MaxAttempts: 70, Backoff: time.Second, MaxBackoff: time.Minute})

	d.deliver(context.Background(), models.Notification{ID: "1"})

	require.Len(t, *waits, 69)
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, time.Minute,
	}, (*waits)[:7])
	for _, w := range *waits {
		assert.Positive(t, w)
		assert.LessOrEqual(t, w, time.Minute)
	}
	assert.Equal(t, uint64(1), d.Stats()["failed"])
}

func TestDeliverDefaultBackoffCap(t *testing.T) {
	d := New(&fakeSender{}, Config{})
	assert.Equal(t, time.Second, d.backoffFor(1))
	assert.Equal(t, time.Minute, d.backoffFor(40))
	assert.Equal(t, time.Minute, d.backoffFor(1000))
}

func TestDeliverHonoursRetryAfter(t *testing.T) {
	sender := &fakeSender{errs: []error{&RetryAfterError{Wait: 7 * time.Second, Err: errors.New("429")}}}
	d, waits := newTestDispatcher(sender, Config{})

	d.deliver(context.Background(), models.Notification{ID: "1"})

	assert.Equal(t, 2, sender.Calls())
	assert.Equal(t, []time.Duration{7 * time.Second}, *waits)
}

func TestDeliverGivesUp(t *testing.T) {
	sender := &fakeSender{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	d, waits := newTestDispatcher(sender, Config{MaxAttempts: 3})

	d.deliver(context.Background(), models.Notification{ID: "1"})

	assert.Equal(t, 3, sender.Calls())
	assert.Len(t, *waits, 2)
	assert.Equal(t, uint64(1), d.Stats()["failed"])
	assert.Equal(t, uint64(0), d.Stats()["sent"])
}

func TestDeliverPermanentFailure(t *testing.T) {
	sender := &fakeSender{errs: []error{goerr.New("chat not found", goerr.T(ErrPermanent))}}
	d, waits := newTestDispatcher(sender, Config{MaxAttempts: 5})

	d.deliver(context.Background(), models.Notification{ID: "1"})

	assert.Equal(t, 1, sender.Calls())
	assert.Empty(t, *waits)
	assert.Equal(t, uint64(1), d.Stats()["failed"])
}

func TestNotifyDoesNotBlock(t *testing.T) {
	d, _ := newTestDispatcher(&fakeSender{}, Config{QueueSize: 1, Target: "@relay"})
	ctx := context.Background()

	d.Notify(ctx, models.Notification{ID: "1"})
	d.Notify(ctx, models.Notification{ID: "2"})

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats["queued"])
	assert.Equal(t, uint64(1), stats["dropped"])

	n := <-d.queue
	assert.Equal(t, "@relay", n.Target)
}

func TestRun(t *testing.T) {
	sender := &fakeSender{}
	d := New(sender, Config{Target: "@relay"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Notify(ctx, models.Notification{ID: "1", Target: "-100123"})
	d.Notify(ctx, models.Notification{ID: "2"})

	require.Eventually(t, func() bool { return sender.Calls() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, "-100123", sender.calls[0].Target)
	assert.Equal(t, "@relay", sender.calls[1].Target)
}

func TestLogNotifier(t *testing.T) {
	l := NewLogNotifier()
	l.Notify(context.Background(), models.Notification{ID: "1", Kind: models.EventAlarm})

	sent := l.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, models.EventAlarm, sent[0].Kind)
}
