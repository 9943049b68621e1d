package collector

import "sync"

// Entry is the per-app aggregate accumulated between flushes. Byte counts
// stay float64 until persistence rounds them.
type Entry struct {
	Sent float64
	Recv float64
	IPs  map[string]struct{}
}

// Buffer accumulates traffic samples per application. Safe for concurrent
// use; Flush swaps the whole map under the lock so every Add lands wholly in
// exactly one flush.
type Buffer struct {
	mu   sync.Mutex
	data map[string]*Entry
}

func NewBuffer() *Buffer {
	return &Buffer{data: make(map[string]*Entry)}
}

// Add accumulates sent/recv bytes for app and records the remote IP when
// present.
func (b *Buffer) Add(app string, sent, recv float64, ip string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.data[app]
	if e == nil {
		e = &Entry{IPs: make(map[string]struct{})}
		b.data[app] = e
	}
	e.Sent += sent
	e.Recv += recv
	if ip != "" {
		e.IPs[ip] = struct{}{}
	}
}

// Flush atomically takes the current contents and resets the buffer.
func (b *Buffer) Flush() map[string]*Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.data
	b.data = make(map[string]*Entry)
	return data
}

// IsEmpty reports whether the buffer holds no entries.
func (b *Buffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data) == 0
}
