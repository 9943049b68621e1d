package webhook

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/netmon-labs/netmon/internal/store"
)

// fakeStore implements Store for tests.
type fakeStore struct {
	mu sync.Mutex

	cfg     *store.WebhookConfig
	cfgErr  error
	apps    []store.AppTraffic
	appsErr error

	excluded []store.ExcludedIP

	logs     []string
	lastSent []time.Time
}

func (f *fakeStore) WebhookConfig() (*store.WebhookConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cfgErr != nil {
		return nil, f.cfgErr
	}
	if f.cfg == nil {
		return nil, nil
	}
	cp := *f.cfg
	return &cp, nil
}

func (f *fakeStore) TrafficReport(days float64, now time.Time) ([]store.AppTraffic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apps, f.appsErr
}

func (f *fakeStore) ExcludedIPList() ([]store.ExcludedIP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.excluded, nil
}

func (f *fakeStore) UpdateWebhookLastSent(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSent = append(f.lastSent, t)
	if f.cfg != nil {
		ts := t
		f.cfg.LastSent = &ts
	}
	return nil
}

func (f *fakeStore) AppendWebhookLog(ts time.Time, status string, code int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, fmt.Sprintf("%s:%d", status, code))
	return nil
}

func (f *fakeStore) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lastSent)
}

func TestPeriodForInterval(t *testing.T) {
	tests := []struct {
		minutes int
		period  string
		days    float64
	}{
		{30, "hourly", 1.0 / 24},
		{60, "hourly", 1.0 / 24},
		{61, "daily", 1},
		{1440, "daily", 1},
		{1441, "weekly", 7},
		{10080, "weekly", 7},
		{10081, "monthly", 30},
		{43200, "monthly", 30},
	}
	for _, tt := range tests {
		period, days := PeriodForInterval(tt.minutes)
		if period != tt.period || days != tt.days {
			t.Errorf("PeriodForInterval(%d) = (%q, %v), want (%q, %v)",
				tt.minutes, period, days, tt.period, tt.days)
		}
	}
}

func TestBuildPayload_Envelope(t *testing.T) {
	st := &fakeStore{
		apps: []store.AppTraffic{
			{Name: "firefox", BytesSent: 100, BytesRecv: 300, BytesTotal: 400},
			{Name: "curl", BytesSent: 50, BytesRecv: 50, BytesTotal: 100},
		},
		excluded: []store.ExcludedIP{{IP: "10.0.0.1", Description: "gateway"}},
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	p, err := BuildPayload(st, "daily", 1, []string{"eth0"}, now)
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}

	if p.Version != "2.0" {
		t.Errorf("version = %q, want 2.0", p.Version)
	}
	if p.ReportPeriod != "daily" {
		t.Errorf("report_period = %q", p.ReportPeriod)
	}
	if p.Timestamp != "2025-06-01T12:00:00Z" {
		t.Errorf("timestamp = %q", p.Timestamp)
	}
	if p.ReportGeneratedAt != "2025-06-01 12:00:00" {
		t.Errorf("report_generated_at = %q", p.ReportGeneratedAt)
	}
	if p.Summary.TotalBytesSent != 150 || p.Summary.TotalBytesRecv != 350 || p.Summary.TotalBytes != 500 {
		t.Errorf("summary totals = %+v", p.Summary)
	}
	if p.Summary.ApplicationCount != 2 {
		t.Errorf("application_count = %d, want 2", p.Summary.ApplicationCount)
	}
	if len(p.Applications) != 2 {
		t.Errorf("applications = %d entries, want 2", len(p.Applications))
	}
	if len(p.ExcludedIPs) != 1 || p.ExcludedIPs[0].IP != "10.0.0.1" {
		t.Errorf("excluded_ips = %+v", p.ExcludedIPs)
	}
}

func TestBuildPayload_CapsApplications(t *testing.T) {
	st := &fakeStore{}
	for i := 0; i < 75; i++ {
		st.apps = append(st.apps, store.AppTraffic{
			Name: fmt.Sprintf("app%d", i), BytesTotal: int64(1000 - i),
		})
	}

	p, err := BuildPayload(st, "daily", 1, nil, time.Now())
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	if len(p.Applications) != maxApplications {
		t.Errorf("applications = %d entries, want %d", len(p.Applications), maxApplications)
	}
	if p.Summary.ApplicationCount != 75 {
		t.Errorf("application_count = %d, want 75 (pre-cap)", p.Summary.ApplicationCount)
	}
}

func TestBuildPayload_EmptyReport(t *testing.T) {
	st := &fakeStore{}

	p, err := BuildPayload(st, "hourly", 1.0/24, []string{"eth0"}, time.Now())
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	if p.Applications == nil || p.ExcludedIPs == nil {
		t.Error("expected non-nil empty slices for JSON encoding")
	}
	if p.Summary.TotalBytes != 0 || p.Summary.ApplicationCount != 0 {
		t.Errorf("summary = %+v, want zeros", p.Summary)
	}
}
