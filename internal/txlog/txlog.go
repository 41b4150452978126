package txlog

import (
	"context"
	"sync"
	"time"
)

type Entry struct {
	ID         string    `json:"id"`
	Platform   string    `json:"platform"`
	Sender     string    `json:"sender"`
	Address    string    `json:"address"`
	Amount     string    `json:"amount"`
	Message    string    `json:"message"`
	Image      string    `json:"image"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Log keeps the most recent transactions. Recent returns newest first.
type Log interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, n int) ([]Entry, error)
}

// Ring is a fixed-capacity in-memory Log; the oldest entry is overwritten
// once it is full.
type Ring struct {
	mu   sync.RWMutex
	buf  []Entry
	next int
	size int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 10
	}
	return &Ring{buf: make([]Entry, capacity)}
}

func (r *Ring) Record(_ context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = entry
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
	return nil
}

func (r *Ring) Recent(_ context.Context, n int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out, nil
}

func (r *Ring) Capacity() int {
	return len(r.buf)
}
