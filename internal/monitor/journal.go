package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/storage"
)

// JournalWriter moves journal inserts off the consumer loop. Record only
// enqueues; a full queue drops the entry.
type JournalWriter struct {
	journal Journal
	queue   chan storage.Entry

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func NewJournalWriter(journal Journal, size int) *JournalWriter {
	if size <= 0 {
		size = 256
	}
	return &JournalWriter{
		journal: journal,
		queue:   make(chan storage.Entry, size),
	}
}

func (w *JournalWriter) Record(ctx context.Context, e storage.Entry) error {
	select {
	case w.queue <- e:
	default:
		w.dropped.Add(1)
		logging.From(ctx).Warn("journal queue full, dropping entry",
			"source", e.SourceID, "transition", e.Transition)
	}
	return nil
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left with a short deadline. Inserts in flight are not cut short by
// cancellation.
func (w *JournalWriter) Run(ctx context.Context) error {
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(writeCtx, 5*time.Second)
			defer cancel()
			w.drain(drainCtx)
			return nil
		case e := <-w.queue:
			w.write(writeCtx, e)
		}
	}
}

func (w *JournalWriter) drain(ctx context.Context) {
	for {
		select {
		case e := <-w.queue:
			w.write(ctx, e)
		default:
			return
		}
	}
}

func (w *JournalWriter) write(ctx context.Context, e storage.Entry) {
	if err := w.journal.Record(ctx, e); err != nil {
		w.failed.Add(1)
		logging.From(ctx).Warn("failed to journal message", logging.ErrAttr(err))
		return
	}
	w.written.Add(1)
}

func (w *JournalWriter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"written": w.written.Load(),
		"dropped": w.dropped.Load(),
		"failed":  w.failed.Load(),
		"pending": len(w.queue),
	}
}
