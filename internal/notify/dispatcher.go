package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"

	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/models"
)

// ErrPermanent marks send failures that will not succeed on retry.
var ErrPermanent = goerr.NewTag("permanent_send_failure")

// Sender performs the actual delivery of one notification.
type Sender interface {
	Send(ctx context.Context, n models.Notification) error
}

// RetryAfterError is returned by a Sender when the remote side asked
// for a pause before the next attempt.
type RetryAfterError struct {
	Wait time.Duration
	Err  error
}

func (e *RetryAfterError) Error() string {
	return "retry after " + e.Wait.String() + ": " + e.Err.Error()
}

func (e *RetryAfterError) Unwrap() error { return e.Err }

type Config struct {
	QueueSize   int
	Rate        float64
	Burst       int
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	Target      string
}

// Dispatcher decouples notification delivery from the consumer loop.
// Notify never blocks; a full queue drops the notification.
type Dispatcher struct {
	sender      Sender
	queue       chan models.Notification
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	target      string
	sleep       func(ctx context.Context, d time.Duration) error

	queued  atomic.Uint64
	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func New(sender Sender, cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = max(time.Minute, cfg.Backoff)
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &Dispatcher{
		sender:      sender,
		queue:       make(chan models.Notification, cfg.QueueSize),
		limiter:     rate.NewLimiter(limit, cfg.Burst),
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		maxBackoff:  cfg.MaxBackoff,
		target:      cfg.Target,
		sleep:       sleepCtx,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, n models.Notification) {
	if n.Target == "" {
		n.Target = d.target
	}
	select {
	case d.queue <- n:
		d.queued.Add(1)
	default:
		d.dropped.Add(1)
		logging.From(ctx).Warn("notification queue full, dropping",
			"id", n.ID, "kind", n.Kind.String(), "region", n.Region)
	}
}

// Run delivers queued notifications until ctx is cancelled. Anything
// still queued at that point is abandoned.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := len(d.queue); n > 0 {
				logging.From(ctx).Warn("abandoning queued notifications", "count", n)
			}
			return nil
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n models.Notification) {
	logger := logging.From(ctx).With("id", n.ID, "kind", n.Kind.String(), "target", n.Target)

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}

		err := d.sender.Send(ctx, n)
		if err == nil {
			d.sent.Add(1)
			logger.Debug("notification sent", "attempt", attempt)
			return
		}
		lastErr = err

		if goerr.HasTag(err, ErrPermanent) {
			break
		}
		if attempt == d.maxAttempts {
			break
		}

		wait := d.backoffFor(attempt)
		var ra *RetryAfterError
		if errors.As(err, &ra) && ra.Wait > 0 {
			wait = ra.Wait
		}
		logger.Warn("notification send failed, retrying",
			"attempt", attempt, "wait", wait.String(), logging.ErrAttr(err))

		if err := d.sleep(ctx, wait); err != nil {
			return
		}
	}

	d.failed.Add(1)
	logger.Error("notification not delivered", logging.ErrAttr(lastErr))
}

// backoffFor doubles the base wait per failed attempt, capped at maxBackoff.
func (d *Dispatcher) backoffFor(attempt int) time.Duration {
	wait := d.backoff
	for i := 1; i < attempt && wait < d.maxBackoff; i++ {
		wait *= 2
	}
	return min(wait, d.maxBackoff)
}

func (d *Dispatcher) Stats() map[string]interface{} {
	return map[string]interface{}{
		"queued":  d.queued.Load(),
		"sent":    d.sent.Load(),
		"dropped": d.dropped.Load(),
		"failed":  d.failed.Load(),
		"pending": len(d.queue),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
