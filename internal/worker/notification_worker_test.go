package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/install-tickets/internal/notify"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []notify.Message
	fail  error
	block chan struct{}
}

func (r *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	if r.block != nil {
		<-r.block
	}
	if msg.Token == "" {
		return notify.ErrNoToken
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingNotifier) Close() error { return nil }

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingObserver) ObserveNotification(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[result]++
}

func (c *countingObserver) get(result string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[result]
}

func TestWorkerDeliversAndDrains(t *testing.T) {
	n := &recordingNotifier{}
	obs := &countingObserver{}
	w := NewNotificationWorker(n, nil, obs, 3, 16)
	w.Start()

	for i := 0; i < 5; i++ {
		require.True(t, w.Enqueue(Job{TicketID: int64(i), Message: notify.Message{Token: "t"}}))
	}
	require.True(t, w.Enqueue(Job{TicketID: 9}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	assert.Len(t, n.sent, 5)
	assert.Equal(t, 5, obs.get(ResultSent))
	assert.Equal(t, 1, obs.get(ResultNoToken))
}

func TestWorkerCountsFailures(t *testing.T) {
	n := &recordingNotifier{fail: errors.New("broker down")}
	obs := &countingObserver{}
	w := NewNotificationWorker(n, nil, obs, 1, 4)
	w.Start()

	require.True(t, w.Enqueue(Job{Message: notify.Message{Token: "t"}}))
	require.NoError(t, w.Stop(context.Background()))
	assert.Equal(t, 1, obs.get(ResultFailed))
}

func TestWorkerDropsWhenFullOrStopped(t *testing.T) {
	n := &recordingNotifier{block: make(chan struct{})}
	obs := &countingObserver{}
	w := NewNotificationWorker(n, nil, obs, 1, 1)
	w.Start()

	// One job held by the goroutine, one in the buffer; the rest must be dropped.
	accepted := 0
	for i := 0; i < 5; i++ {
		if w.Enqueue(Job{Message: notify.Message{Token: "t"}}) {
			accepted++
		}
	}
	assert.LessOrEqual(t, accepted, 2)
	assert.Equal(t, 5-accepted, obs.get(ResultDropped))

	close(n.block)
	require.NoError(t, w.Stop(context.Background()))
	assert.False(t, w.Enqueue(Job{}))
	assert.NoError(t, w.Stop(context.Background()))
}
