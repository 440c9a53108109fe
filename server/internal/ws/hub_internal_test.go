package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/seedmonitor/server/internal/report"
)

type noReports struct{}

func (noReports) Latest() *report.Report { return nil }

func detached(depth int) *subscriber {
	return &subscriber{queue: make(chan []byte, depth)}
}

// Run with -race: publishing must not write to queues that a concurrent
// disconnect is closing.
func TestHub_PublishWhileSubscribersLeave(t *testing.T) {
	h := New(noReports{}, nil, time.Hour)
	subs := make([]*subscriber, 50)
	for i := range subs {
		subs[i] = detached(queueDepth)
		require.True(t, h.add(subs[i]))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			h.Publish()
		}
	}()
	go func() {
		defer wg.Done()
		for _, s := range subs {
			h.remove(s)
		}
	}()
	wg.Wait()

	assert.Zero(t, h.Count())
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	h := New(noReports{}, nil, time.Hour)
	slow, fast := detached(1), detached(4)
	require.True(t, h.add(slow))
	require.True(t, h.add(fast))

	h.Publish()
	h.Publish() // slow queue is full now

	assert.Equal(t, 1, h.Count())
	<-slow.queue
	_, open := <-slow.queue
	assert.False(t, open, "slow queue should be closed")
	assert.Len(t, fast.queue, 2)

	// Leaving after being dropped must not close the queue twice.
	assert.NotPanics(t, func() { h.remove(slow) })
}

func TestHub_ShutdownRefusesSubscribers(t *testing.T) {
	h := New(noReports{}, nil, time.Hour)
	s := detached(1)
	require.True(t, h.add(s))

	h.shutdown()

	_, open := <-s.queue
	assert.False(t, open)
	assert.False(t, h.add(detached(1)))
	assert.Zero(t, h.Count())
}
