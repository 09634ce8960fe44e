package logrelay

import (
	"strings"
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind misses chunks but can always re-read String().
const subscriberBuffer = 256

// Buffer is a Sink that accumulates text and fans new chunks out to
// subscribers. It backs the patch modal and its WebSocket stream.
type Buffer struct {
	mu   sync.Mutex
	text strings.Builder
	subs map[chan string]struct{}
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{subs: make(map[chan string]struct{})}
}

// Append implements Sink.
func (b *Buffer) Append(chunk string) {
	if chunk == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.WriteString(chunk)
	for ch := range b.subs {
		select {
		case ch <- chunk:
		default:
		}
	}
}

// Line appends s followed by a newline.
func (b *Buffer) Line(s string) { b.Append(s + "\n") }

// String returns everything appended since the last Reset.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text.String()
}

// Reset discards the accumulated text. Subscribers stay attached.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.Reset()
}

// Subscribe returns the text accumulated so far and a channel receiving
// every later chunk. cancel detaches and closes the channel.
func (b *Buffer) Subscribe() (backlog string, chunks <-chan string, cancel func()) {
	ch := make(chan string, subscriberBuffer)
	b.mu.Lock()
	backlog = b.text.String()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return backlog, ch, cancel
}
