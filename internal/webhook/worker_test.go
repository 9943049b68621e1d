package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/netmon-labs/netmon/internal/store"
)

func newTestWorker(st *fakeStore, url string, now time.Time) *Worker {
	s := NewSender(zerolog.Nop())
	s.retryDelay = time.Millisecond
	w := NewWorker(st, s, []string{"eth0"}, zerolog.Nop())
	w.now = func() time.Time { return now }
	return w
}

func TestWorker_NotDueSkipsDelivery(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-10 * time.Minute)
	st := &fakeStore{cfg: &store.WebhookConfig{
		URL: srv.URL, IntervalMinutes: 30, Enabled: true, LastSent: &last,
	}}

	w := newTestWorker(st, srv.URL, now)
	if wait := w.tick(context.Background()); wait != enabledPoll {
		t.Errorf("wait = %v, want %v", wait, enabledPoll)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("endpoint called %d times, want 0", n)
	}
	if st.sentCount() != 0 {
		t.Error("last_sent updated without delivery")
	}
}

func TestWorker_DueDeliversOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-31 * time.Minute)
	st := &fakeStore{cfg: &store.WebhookConfig{
		URL: srv.URL, IntervalMinutes: 30, Enabled: true, LastSent: &last,
	}}

	w := newTestWorker(st, srv.URL, now)
	w.tick(context.Background())

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("endpoint called %d times, want 1", n)
	}
	if st.sentCount() != 1 {
		t.Fatalf("last_sent updates = %d, want 1", st.sentCount())
	}
	if !st.lastSent[0].Equal(now) {
		t.Errorf("last_sent = %v, want %v", st.lastSent[0], now)
	}
	if len(st.logs) != 1 || st.logs[0] != "success:200" {
		t.Errorf("logs = %v, want [success:200]", st.logs)
	}

	// A second tick at the same instant must not deliver again.
	w.tick(context.Background())
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("endpoint called %d times after second tick, want 1", n)
	}
}

func TestWorker_NeverSentDeliversImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := &fakeStore{cfg: &store.WebhookConfig{
		URL: srv.URL, IntervalMinutes: 60, Enabled: true,
	}}

	w := newTestWorker(st, srv.URL, time.Now())
	w.tick(context.Background())

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("endpoint called %d times, want 1", n)
	}
}

func TestWorker_DisabledBacksOff(t *testing.T) {
	st := &fakeStore{cfg: &store.WebhookConfig{
		URL: "http://example.invalid", IntervalMinutes: 30, Enabled: false,
	}}

	w := newTestWorker(st, "", time.Now())
	if wait := w.tick(context.Background()); wait != idlePoll {
		t.Errorf("wait = %v, want %v", wait, idlePoll)
	}
}

func TestWorker_UnconfiguredBacksOff(t *testing.T) {
	w := newTestWorker(&fakeStore{}, "", time.Now())
	if wait := w.tick(context.Background()); wait != idlePoll {
		t.Errorf("wait = %v, want %v", wait, idlePoll)
	}
}

func TestWorker_FailureLoggedAndLastSentUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := &fakeStore{cfg: &store.WebhookConfig{
		URL: srv.URL, IntervalMinutes: 30, Enabled: true,
	}}

	w := newTestWorker(st, srv.URL, time.Now())
	w.tick(context.Background())

	if st.sentCount() != 0 {
		t.Error("last_sent advanced on failed delivery")
	}
	if len(st.logs) != 1 || st.logs[0] != "error:500" {
		t.Errorf("logs = %v, want [error:500]", st.logs)
	}
}

func TestWorker_SendNow(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	now := time.Now()
	last := now // just sent: interval not elapsed
	st := &fakeStore{cfg: &store.WebhookConfig{
		URL: srv.URL, IntervalMinutes: 60, Enabled: true, LastSent: &last,
	}}

	w := newTestWorker(st, srv.URL, now)
	if err := w.SendNow(context.Background()); err != nil {
		t.Fatalf("SendNow: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("endpoint called %d times, want 1", n)
	}
}

func TestWorker_SendNowUnconfigured(t *testing.T) {
	w := newTestWorker(&fakeStore{}, "", time.Now())
	if err := w.SendNow(context.Background()); err == nil {
		t.Fatal("expected error when no webhook is configured")
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	w := newTestWorker(&fakeStore{}, "", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
