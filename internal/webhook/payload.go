// Package webhook builds periodic traffic summaries and delivers them to a
// remote HTTP endpoint with bounded retries.
package webhook

import (
	"fmt"
	"time"

	"github.com/netmon-labs/netmon/internal/netutil"
	"github.com/netmon-labs/netmon/internal/store"
)

// PayloadVersion identifies the envelope schema.
const PayloadVersion = "2.0"

// Store is the persistence surface webhook delivery needs.
type Store interface {
	WebhookConfig() (*store.WebhookConfig, error)
	TrafficReport(days float64, now time.Time) ([]store.AppTraffic, error)
	ExcludedIPList() ([]store.ExcludedIP, error)
	UpdateWebhookLastSent(t time.Time) error
	AppendWebhookLog(ts time.Time, status string, code int, message string) error
}

// Payload is the versioned JSON envelope posted to the endpoint.
type Payload struct {
	Version           string             `json:"version"`
	Hostname          string             `json:"hostname"`
	Timestamp         string             `json:"timestamp"`
	ReportPeriod      string             `json:"report_period"`
	ReportGeneratedAt string             `json:"report_generated_at"`
	Interfaces        []string           `json:"interfaces"`
	Summary           Summary            `json:"summary"`
	Applications      []store.AppTraffic `json:"applications"`
	ExcludedIPs       []store.ExcludedIP `json:"excluded_ips"`
}

// Summary totals the report window.
type Summary struct {
	TotalBytesSent     int64  `json:"total_bytes_sent"`
	TotalBytesRecv     int64  `json:"total_bytes_recv"`
	TotalBytes         int64  `json:"total_bytes"`
	TotalSentFormatted string `json:"total_sent_formatted"`
	TotalRecvFormatted string `json:"total_recv_formatted"`
	TotalFormatted     string `json:"total_formatted"`
	ApplicationCount   int    `json:"application_count"`
}

// maxApplications caps the applications list in the payload.
const maxApplications = 50

// PeriodForInterval resolves the report period and its aggregation window in
// days from the configured delivery interval.
func PeriodForInterval(minutes int) (period string, days float64) {
	switch {
	case minutes <= 60:
		return "hourly", 1.0 / 24
	case minutes <= 1440:
		return "daily", 1
	case minutes <= 10080:
		return "weekly", 7
	default:
		return "monthly", 30
	}
}

// BuildPayload assembles the envelope for the given period from persisted
// aggregates.
func BuildPayload(st Store, period string, days float64, interfaces []string, now time.Time) (Payload, error) {
	apps, err := st.TrafficReport(days, now)
	if err != nil {
		return Payload{}, fmt.Errorf("traffic report: %w", err)
	}

	var totalSent, totalRecv, totalBytes int64
	for _, a := range apps {
		totalSent += a.BytesSent
		totalRecv += a.BytesRecv
		totalBytes += a.BytesTotal
	}

	excluded, err := st.ExcludedIPList()
	if err != nil {
		return Payload{}, fmt.Errorf("excluded ips: %w", err)
	}
	if excluded == nil {
		excluded = []store.ExcludedIP{}
	}

	appCount := len(apps)
	if len(apps) > maxApplications {
		apps = apps[:maxApplications]
	}
	if apps == nil {
		apps = []store.AppTraffic{}
	}

	return Payload{
		Version:           PayloadVersion,
		Hostname:          netutil.Hostname(),
		Timestamp:         now.Format(time.RFC3339),
		ReportPeriod:      period,
		ReportGeneratedAt: now.Format("2006-01-02 15:04:05"),
		Interfaces:        interfaces,
		Summary: Summary{
			TotalBytesSent:     totalSent,
			TotalBytesRecv:     totalRecv,
			TotalBytes:         totalBytes,
			TotalSentFormatted: netutil.FormatBytes(float64(totalSent)),
			TotalRecvFormatted: netutil.FormatBytes(float64(totalRecv)),
			TotalFormatted:     netutil.FormatBytes(float64(totalBytes)),
			ApplicationCount:   appCount,
		},
		Applications: apps,
		ExcludedIPs:  excluded,
	}, nil
}
