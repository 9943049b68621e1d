package collector

import (
	"strconv"
	"sync"
	"testing"
)

func TestBuffer_AddAccumulates(t *testing.T) {
	b := NewBuffer()
	b.Add("firefox", 100, 200, "1.2.3.4")
	b.Add("firefox", 50, 25, "5.6.7.8")
	b.Add("firefox", 0, 0, "1.2.3.4")

	data := b.Flush()
	e := data["firefox"]
	if e == nil {
		t.Fatal("missing entry for firefox")
	}
	if e.Sent != 150 || e.Recv != 225 {
		t.Errorf("got sent=%v recv=%v, want 150/225", e.Sent, e.Recv)
	}
	if len(e.IPs) != 2 {
		t.Errorf("got %d ips, want 2", len(e.IPs))
	}
}

func TestBuffer_FlushEmpty(t *testing.T) {
	b := NewBuffer()
	if data := b.Flush(); len(data) != 0 {
		t.Fatalf("flush of empty buffer returned %d entries", len(data))
	}
	if !b.IsEmpty() {
		t.Fatal("buffer should be empty after flush")
	}
}

func TestBuffer_FlushResets(t *testing.T) {
	b := NewBuffer()
	b.Add("app", 1, 1, "")
	if b.IsEmpty() {
		t.Fatal("buffer should not be empty after add")
	}
	b.Flush()
	if !b.IsEmpty() {
		t.Fatal("buffer should be empty after flush")
	}
	if data := b.Flush(); len(data) != 0 {
		t.Fatalf("second flush returned %d entries", len(data))
	}
}

func TestBuffer_ConcurrentAddsSumExactly(t *testing.T) {
	const (
		goroutines = 16
		adds       = 500
	)

	b := NewBuffer()
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			app := "app-" + strconv.Itoa(g%4)
			for i := 0; i < adds; i++ {
				b.Add(app, 1, 2, "")
			}
		}(g)
	}
	wg.Wait()

	data := b.Flush()
	var sent, recv float64
	for _, e := range data {
		sent += e.Sent
		recv += e.Recv
	}
	wantSent := float64(goroutines * adds)
	if sent != wantSent || recv != 2*wantSent {
		t.Fatalf("got sent=%v recv=%v, want %v/%v", sent, recv, wantSent, 2*wantSent)
	}
}

func TestBuffer_ConcurrentAddAndFlushLosesNothing(t *testing.T) {
	const total = 10000

	b := NewBuffer()
	done := make(chan struct{})

	var flushed float64
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			for _, e := range b.Flush() {
				flushed += e.Sent
			}
		}
	}()

	for i := 0; i < total; i++ {
		b.Add("app", 1, 0, "")
	}
	<-done

	for _, e := range b.Flush() {
		flushed += e.Sent
	}
	if flushed != total {
		t.Fatalf("flushed %v bytes, want %v", flushed, total)
	}
}
