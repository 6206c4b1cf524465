// Package notice holds the transient success/error banner shown after saves
// and integration toggles.
package notice

import (
	"sync"
	"time"
)

// Kind is the banner flavor.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Messages shown after a settings save.
const (
	SaveSucceeded = "Changes saved successfully!"
	SaveFailed    = "Failed to save changes. Please try again."
)

// DefaultTTL is how long a banner stays up.
const DefaultTTL = 3 * time.Second

// Message is one banner.
type Message struct {
	ID      uint64    `json:"id"`
	Kind    Kind      `json:"type"`
	Text    string    `json:"text"`
	ShownAt time.Time `json:"shownAt"`
}

// Banner shows at most one message at a time. Each message dismisses itself
// after the TTL; a newer message replaces an older one and restarts the clock.
type Banner struct {
	ttl      time.Duration
	now      func() time.Time
	onChange func(*Message)

	mu      sync.Mutex
	seq     uint64
	current *Message
	timer   *time.Timer
}

// Option customizes a Banner.
type Option func(*Banner)

// WithOnChange calls fn whenever a banner appears (non-nil) or is dismissed (nil).
// fn runs without the banner lock held.
func WithOnChange(fn func(*Message)) Option {
	return func(b *Banner) { b.onChange = fn }
}

// NewBanner creates a banner with the given TTL (DefaultTTL when <= 0).
func NewBanner(ttl time.Duration, opts ...Option) *Banner {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	b := &Banner{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Show displays text and schedules its dismissal.
func (b *Banner) Show(kind Kind, text string) Message {
	b.mu.Lock()
	b.seq++
	msg := Message{ID: b.seq, Kind: kind, Text: text, ShownAt: b.now()}
	b.current = &msg
	if b.timer != nil {
		b.timer.Stop()
	}
	id := msg.ID
	b.timer = time.AfterFunc(b.ttl, func() { b.expire(id) })
	b.mu.Unlock()

	b.emit(&msg)
	return msg
}

// Current returns the visible banner, if any.
func (b *Banner) Current() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Message{}, false
	}
	return *b.current, true
}

// Dismiss hides the banner immediately.
func (b *Banner) Dismiss() {
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return
	}
	b.current = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
	b.emit(nil)
}

// Close stops the pending timer.
func (b *Banner) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Banner) expire(id uint64) {
	b.mu.Lock()
	if b.current == nil || b.current.ID != id {
		b.mu.Unlock()
		return
	}
	b.current = nil
	b.timer = nil
	b.mu.Unlock()
	b.emit(nil)
}

func (b *Banner) emit(msg *Message) {
	if b.onChange != nil {
		b.onChange(msg)
	}
}
