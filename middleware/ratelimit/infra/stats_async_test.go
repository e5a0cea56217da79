package infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roomlink-api/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingStats segura cada Record até release fechar.
type blockingStats struct {
	mu        sync.Mutex
	got       []domain.StatsEvent
	deadlines []bool
	release   chan struct{}
	err       error
}

func (b *blockingStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	_, hasDeadline := ctx.Deadline()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, ev)
	b.deadlines = append(b.deadlines, hasDeadline)
	return b.err
}

func (b *blockingStats) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func TestAsyncStatsStore_RecordNeverBlocks(t *testing.T) {
	slow := &blockingStats{release: make(chan struct{})}
	drops := 0
	s := NewAsyncStatsStore(slow, WithQueueSize(2), WithOnDrop(func() { drops++ }))

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(context.Background(), loginEvent(i%2 == 0)))
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2, s.Pending())
	assert.EqualValues(t, 3, s.Dropped())
	assert.Equal(t, 3, drops)
	assert.Zero(t, slow.count(), "nothing is forwarded before Run")
}

func TestAsyncStatsStore_RunForwardsWithDeadline(t *testing.T) {
	dst := &blockingStats{}
	s := NewAsyncStatsStore(dst, WithRecordTimeout(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, s.Record(context.Background(), loginEvent(true)))
	require.NoError(t, s.Record(context.Background(), loginEvent(false)))
	require.Eventually(t, func() bool { return dst.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []bool{true, true}, dst.deadlines)
	assert.True(t, dst.got[0].Allowed)
	assert.False(t, dst.got[1].Allowed)
}

func TestAsyncStatsStore_SlowDestinationTimesOut(t *testing.T) {
	stuck := &blockingStats{release: make(chan struct{})}
	s := NewAsyncStatsStore(stuck, WithRecordTimeout(10*time.Millisecond))

	require.NoError(t, s.Record(context.Background(), loginEvent(true)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.NoError(t, s.Run(ctx), "drains the queue and returns")
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, s.Pending())
	assert.Zero(t, stuck.count())
}

func TestAsyncStatsStore_DrainsOnShutdown(t *testing.T) {
	dst := &blockingStats{err: errors.New("redis down")}
	s := NewAsyncStatsStore(dst)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(context.Background(), loginEvent(true)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 3, dst.count(), "errors from the destination are logged, not returned")
}
