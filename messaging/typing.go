package messaging

import (
	"sync"
	"time"
)

// TypingDebouncer is the trailing-edge debounce for outbound typing
// indicators. It is a two-state machine: Idle, and Typing with an armed
// idle timer. The first keystroke publishes true and arms the timer, every
// keystroke re-arms it, and expiry publishes false exactly once per pause.
type TypingDebouncer struct {
	idle    time.Duration
	publish func(isTyping bool)

	mu     sync.Mutex
	typing bool
	last   time.Time
	timer  *time.Timer
}

func NewTypingDebouncer(idle time.Duration, publish func(isTyping bool)) *TypingDebouncer {
	return &TypingDebouncer{idle: idle, publish: publish}
}

// Keystroke records input activity.
func (d *TypingDebouncer) Keystroke() {
	d.mu.Lock()
	started := !d.typing
	d.typing = true
	d.last = time.Now()
	if d.timer == nil {
		d.timer = time.AfterFunc(d.idle, d.expire)
	} else {
		d.timer.Reset(d.idle)
	}
	d.mu.Unlock()

	if started {
		d.publish(true)
	}
}

func (d *TypingDebouncer) expire() {
	d.mu.Lock()
	if !d.typing {
		d.mu.Unlock()
		return
	}
	// Reset cannot unschedule an AfterFunc that has already fired, so a
	// keystroke landing on the idle boundary leaves this stale expiry
	// pending. Re-arm for the remainder instead of ending the episode.
	if remaining := d.idle - time.Since(d.last); remaining > 0 {
		d.timer.Reset(remaining)
		d.mu.Unlock()
		return
	}
	d.typing = false
	d.mu.Unlock()

	d.publish(false)
}

// Stop forces the trailing edge immediately, as when a message is sent.
func (d *TypingDebouncer) Stop() {
	d.mu.Lock()
	wasTyping := d.typing
	d.typing = false
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	if wasTyping {
		d.publish(false)
	}
}

// Cancel discards any pending trailing edge without publishing. Used on
// session teardown.
func (d *TypingDebouncer) Cancel() {
	d.mu.Lock()
	d.typing = false
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
}

// Typing reports whether the local user is currently considered typing.
func (d *TypingDebouncer) Typing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing
}
