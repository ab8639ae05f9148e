package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollerLoadsThenPolls(t *testing.T) {
	src := newFakeSource(map[string]string{"2024-01-01T00:00:00.000Z": "first"})
	list := NewList()
	s := New(src, list, WithInterval(10*time.Millisecond), WithWelcome("Welcome"))

	p := s.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool {
		return len(list.Keys()) == 1 && len(notices(list)) == 1
	}, time.Second, 5*time.Millisecond)

	src.set("2024-01-01T00:00:01.000Z", "second")
	assert.Eventually(t, func() bool {
		return len(list.Keys()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "2024-01-01T00:00:01.000Z", list.Keys()[0])
}

func TestPollerSkipsTicksWhilePaused(t *testing.T) {
	src := newFakeSource(nil)
	list := NewList()
	s := New(src, list, WithInterval(10*time.Millisecond))

	p := s.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.fetches > 0
	}, time.Second, 5*time.Millisecond)

	s.Pause()
	time.Sleep(20 * time.Millisecond)
	src.set("a", "1")
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, list.Keys())

	s.Resume()
	assert.Eventually(t, func() bool {
		return len(list.Keys()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPollerWelcomeNeedsSuccessfulLoad(t *testing.T) {
	src := newFakeSource(nil)
	src.fetchErr = assert.AnError
	list := NewList()
	s := New(src, list, WithInterval(time.Hour), WithWelcome("Welcome"))

	p := s.Start(context.Background())
	assert.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.fetches == 1
	}, time.Second, 5*time.Millisecond)
	p.Stop()

	assert.Equal(t, 0, list.Len())
}

func TestPollerStop(t *testing.T) {
	s := New(newFakeSource(nil), NewList(), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := s.Start(ctx)
	p.Stop()

	select {
	case <-p.Done():
	default:
		t.Fatal("poller still running after Stop")
	}

	// Stopping twice is fine
	p.Stop()
}
