package messaging

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type typingRecorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *typingRecorder) publish(isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, isTyping)
}

func (r *typingRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func (r *typingRecorder) waitFor(t *testing.T, n int) []bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev := r.snapshot(); len(ev) >= n {
			return ev
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %v", n, r.snapshot())
	return nil
}

func TestDebouncerBurstPublishesOncePerEdge(t *testing.T) {
	rec := &typingRecorder{}
	d := NewTypingDebouncer(30*time.Millisecond, rec.publish)

	// A burst of keystrokes within the idle window is one typing episode.
	for i := 0; i < 10; i++ {
		d.Keystroke()
		time.Sleep(2 * time.Millisecond)
	}

	events := rec.waitFor(t, 2)
	require.Equal(t, []bool{true, false}, events[:2])
	assert.False(t, d.Typing())
}

func TestDebouncerKeystrokeExtendsWindow(t *testing.T) {
	rec := &typingRecorder{}
	d := NewTypingDebouncer(60*time.Millisecond, rec.publish)

	d.Keystroke()
	time.Sleep(40 * time.Millisecond)
	d.Keystroke() // re-arms the timer before it fires
	time.Sleep(40 * time.Millisecond)

	// Only 40ms since the last keystroke, so the trailing edge has not fired.
	assert.Equal(t, []bool{true}, rec.snapshot())
	assert.True(t, d.Typing())

	rec.waitFor(t, 2)
}

func TestDebouncerStopForcesTrailingEdge(t *testing.T) {
	rec := &typingRecorder{}
	d := NewTypingDebouncer(time.Hour, rec.publish)

	d.Keystroke()
	d.Stop()

	assert.Equal(t, []bool{true, false}, rec.snapshot())
	assert.False(t, d.Typing())
}

func TestDebouncerStopWhileIdleIsNoop(t *testing.T) {
	rec := &typingRecorder{}
	d := NewTypingDebouncer(time.Hour, rec.publish)

	d.Stop()

	assert.Empty(t, rec.snapshot())
}

func TestDebouncerCancelSuppressesTrailingEdge(t *testing.T) {
	rec := &typingRecorder{}
	d := NewTypingDebouncer(20*time.Millisecond, rec.publish)

	d.Keystroke()
	d.Cancel()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, []bool{true}, rec.snapshot())
	assert.False(t, d.Typing())
}

func TestDebouncerKeystrokeAtIdleBoundary(t *testing.T) {
	// A keystroke can land exactly as the idle timer fires; Reset cannot
	// unschedule the fired callback, so the stale expiry must not end the
	// fresh episode.
	for i := 0; i < 20; i++ {
		rec := &typingRecorder{}
		d := NewTypingDebouncer(50*time.Millisecond, rec.publish)

		d.Keystroke()
		time.Sleep(50 * time.Millisecond)
		d.Keystroke()
		time.Sleep(10 * time.Millisecond)

		if !d.Typing() {
			t.Fatalf("iteration %d: episode ended inside the fresh idle window, events %v", i, rec.snapshot())
		}
		events := rec.snapshot()
		if !events[len(events)-1] {
			t.Fatalf("iteration %d: trailing false published inside the fresh idle window, events %v", i, events)
		}
		d.Cancel()
	}
}

func TestDebouncerNewEpisodeAfterPause(t *testing.T) {
	rec := &typingRecorder{}
	d := NewTypingDebouncer(20*time.Millisecond, rec.publish)

	d.Keystroke()
	rec.waitFor(t, 2)
	d.Keystroke()
	events := rec.waitFor(t, 4)

	assert.Equal(t, []bool{true, false, true, false}, events[:4])
}
