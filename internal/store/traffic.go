package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/netmon-labs/netmon/internal/collector"
	"github.com/netmon-labs/netmon/internal/netutil"
	"github.com/netmon-labs/netmon/internal/parser"
)

// AppTraffic is the aggregated traffic for one application over a report
// window.
type AppTraffic struct {
	Name           string  `json:"name"`
	BytesSent      int64   `json:"bytes_sent"`
	BytesRecv      int64   `json:"bytes_recv"`
	BytesTotal     int64   `json:"bytes_total"`
	SentFormatted  string  `json:"sent_formatted"`
	RecvFormatted  string  `json:"recv_formatted"`
	TotalFormatted string  `json:"total_formatted"`
	Percentage     float64 `json:"percentage"`
}

// UnknownTraffic is unattributed traffic grouped by remote IP.
type UnknownTraffic struct {
	RemoteIP   string
	BytesSent  int64
	BytesRecv  int64
	BytesTotal int64
	Records    int64
}

// SaveTraffic persists one flush of buffered aggregates. All rows share the
// flush timestamp ts. An app's totals are split across its observed remote
// IPs: each IP gets floor(total/n), and the remainder is handed out one byte
// at a time to the first IPs in sorted order, so the persisted rows sum back
// to the aggregate exactly. Entries with zero traffic are dropped.
func (s *Store) SaveTraffic(data map[string]*collector.Entry, ts time.Time) error {
	if len(data) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO traffic (timestamp, app_name, remote_ip, bytes_sent, bytes_recv)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	when := formatTime(ts)

	for app, e := range data {
		if e.Sent <= 0 && e.Recv <= 0 {
			continue
		}

		ips := make([]string, 0, len(e.IPs))
		for ip := range e.IPs {
			ips = append(ips, ip)
		}
		sort.Strings(ips)

		if len(ips) == 0 {
			if _, err := stmt.Exec(when, app, nil, int64(e.Sent), int64(e.Recv)); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert %s: %w", app, err)
			}
			continue
		}

		n := int64(len(ips))
		totalSent, totalRecv := int64(e.Sent), int64(e.Recv)
		baseSent, baseRecv := totalSent/n, totalRecv/n
		remSent := totalSent - baseSent*n
		remRecv := totalRecv - baseRecv*n

		for i, ip := range ips {
			rowSent, rowRecv := baseSent, baseRecv
			if int64(i) < remSent {
				rowSent++
			}
			if int64(i) < remRecv {
				rowRecv++
			}
			if _, err := stmt.Exec(when, app, ip, rowSent, rowRecv); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert %s/%s: %w", app, ip, err)
			}
		}
	}

	return tx.Commit()
}

// TrafficReport returns per-app aggregates over the trailing window, ordered
// by total traffic descending, with percentages of the window total.
func (s *Store) TrafficReport(days float64, now time.Time) ([]AppTraffic, error) {
	since := formatTime(now.Add(-time.Duration(days * 24 * float64(time.Hour))))

	rows, err := s.db.Query(`
		SELECT app_name,
		       SUM(bytes_sent) AS total_sent,
		       SUM(bytes_recv) AS total_recv,
		       SUM(bytes_sent + bytes_recv) AS total
		FROM traffic
		WHERE timestamp > ?
		GROUP BY app_name
		ORDER BY total DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	defer rows.Close()

	var (
		out      []AppTraffic
		totalAll int64
	)
	for rows.Next() {
		var a AppTraffic
		if err := rows.Scan(&a.Name, &a.BytesSent, &a.BytesRecv, &a.BytesTotal); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		totalAll += a.BytesTotal
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		a := &out[i]
		a.SentFormatted = netutil.FormatBytes(float64(a.BytesSent))
		a.RecvFormatted = netutil.FormatBytes(float64(a.BytesRecv))
		a.TotalFormatted = netutil.FormatBytes(float64(a.BytesTotal))
		if totalAll > 0 {
			a.Percentage = roundPct(float64(a.BytesTotal) / float64(totalAll) * 100)
		}
	}
	return out, nil
}

// UnknownTrafficReport returns unattributed traffic grouped by remote IP over
// the trailing window, ordered by total descending.
func (s *Store) UnknownTrafficReport(days float64, now time.Time) ([]UnknownTraffic, error) {
	since := formatTime(now.Add(-time.Duration(days * 24 * float64(time.Hour))))

	rows, err := s.db.Query(`
		SELECT COALESCE(remote_ip, ''),
		       SUM(bytes_sent),
		       SUM(bytes_recv),
		       SUM(bytes_sent + bytes_recv) AS total,
		       COUNT(*)
		FROM traffic
		WHERE app_name = ? AND timestamp > ?
		GROUP BY remote_ip
		ORDER BY total DESC`, parser.UnknownApp, since)
	if err != nil {
		return nil, fmt.Errorf("query unknown traffic: %w", err)
	}
	defer rows.Close()

	var out []UnknownTraffic
	for rows.Next() {
		var u UnknownTraffic
		if err := rows.Scan(&u.RemoteIP, &u.BytesSent, &u.BytesRecv, &u.BytesTotal, &u.Records); err != nil {
			return nil, fmt.Errorf("scan unknown traffic: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CleanupOldData deletes traffic rows older than cutoff and prunes webhook
// logs beyond the retention cap. Returns the number of traffic rows removed.
func (s *Store) CleanupOldData(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM traffic WHERE timestamp < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete old traffic: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if _, err := s.db.Exec(pruneWebhookLogsSQL, webhookLogCap); err != nil {
		return deleted, fmt.Errorf("prune webhook logs: %w", err)
	}
	return deleted, nil
}

// LastTrafficAt returns the timestamp of the most recent traffic row, or the
// zero time when the table is empty.
func (s *Store) LastTrafficAt() (time.Time, error) {
	var ts sql.NullString
	if err := s.db.QueryRow(`SELECT MAX(timestamp) FROM traffic`).Scan(&ts); err != nil {
		return time.Time{}, err
	}
	if !ts.Valid || ts.String == "" {
		return time.Time{}, nil
	}
	return parseTime(ts.String)
}

// FixInvalidAppNames rewrites rows whose app name is a PID or an endpoint
// string (from historic parser bugs) to the unknown sentinel. Returns the
// number of rows fixed.
func (s *Store) FixInvalidAppNames() (int64, error) {
	res1, err := s.db.Exec(
		`UPDATE traffic SET app_name = ? WHERE app_name GLOB '[0-9]*'`, parser.UnknownApp)
	if err != nil {
		return 0, fmt.Errorf("fix numeric names: %w", err)
	}
	n1, _ := res1.RowsAffected()

	res2, err := s.db.Exec(
		`UPDATE traffic SET app_name = ? WHERE app_name LIKE '%.%.%.%:%'`, parser.UnknownApp)
	if err != nil {
		return n1, fmt.Errorf("fix endpoint names: %w", err)
	}
	n2, _ := res2.RowsAffected()

	return n1 + n2, nil
}

func roundPct(p float64) float64 {
	return float64(int64(p*100+0.5)) / 100
}
