package monitor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/airwatch/internal/monitor"
	"github.com/ObiAU/airwatch/internal/storage"
)

type memJournal struct {
	mu      sync.Mutex
	entries []storage.Entry
	err     error
}

func (j *memJournal) Record(ctx context.Context, e storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

func TestJournalWriterDoesNotBlock(t *testing.T) {
	// Run is never started, as if the database were stuck
	w := monitor.NewJournalWriter(&memJournal{}, 2)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			assert.NoError(t, w.Record(ctx, storage.Entry{SourceID: "monitor_x"}))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	stats := w.Stats()
	assert.Equal(t, 2, stats["pending"])
	assert.Equal(t, uint64(3), stats["dropped"])
}

func TestJournalWriterRun(t *testing.T) {
	j := &memJournal{}
	w := monitor.NewJournalWriter(j, 16)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Record(ctx, storage.Entry{SourceID: "air_alert_ua"}))
	}
	require.Eventually(t, func() bool { return j.count() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	assert.Equal(t, uint64(3), w.Stats()["written"])
}

func TestJournalWriterDrainsOnShutdown(t *testing.T) {
	j := &memJournal{}
	w := monitor.NewJournalWriter(j, 16)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, w.Record(ctx, storage.Entry{SourceID: "air_alert_ua"}))
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, w.Run(cancelled))

	assert.Equal(t, 4, j.count())
	assert.Equal(t, 0, w.Stats()["pending"])
}

func TestJournalWriterCountsFailures(t *testing.T) {
	j := &memJournal{err: errors.New("disk full")}
	w := monitor.NewJournalWriter(j, 4)
	ctx := context.Background()

	require.NoError(t, w.Record(ctx, storage.Entry{}))
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, w.Run(cancelled))

	assert.Equal(t, uint64(1), w.Stats()["failed"])
	assert.Equal(t, uint64(0), w.Stats()["written"])
}

func TestSnapshotIncludesJournalStats(t *testing.T) {
	h := newHarness(t, &sliceSource{}, monitor.Options{})
	assert.Nil(t, h.monitor.Snapshot().Journal)

	w := monitor.NewJournalWriter(h.journal, 8)
	m := monitor.New(monitor.Deps{
		Source:     &sliceSource{},
		Tables:     h.tables,
		Gate:       h.gate,
		Classifier: h.classifier,
		Machine:    h.machine,
		Journal:    w,
	}, monitor.Options{})

	t0 := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	m.Process(context.Background(), raw(official, "Повітряна тривога в Броварський район.", t0))

	snap := m.Snapshot()
	require.NotNil(t, snap.Journal)
	assert.Equal(t, 1, snap.Journal["pending"])
}
