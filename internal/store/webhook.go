package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// webhookLogCap bounds the delivery log; older entries are dropped.
const webhookLogCap = 100

const pruneWebhookLogsSQL = `
	DELETE FROM webhook_logs WHERE id NOT IN (
		SELECT id FROM webhook_logs ORDER BY timestamp DESC, id DESC LIMIT ?
	)`

// WebhookConfig is the persisted webhook delivery configuration singleton.
type WebhookConfig struct {
	URL             string
	IntervalMinutes int
	Enabled         bool
	LastSent        *time.Time
}

// WebhookLogEntry is one recorded delivery attempt outcome.
type WebhookLogEntry struct {
	Timestamp    time.Time
	Status       string
	ResponseCode int
	Message      string
}

// WebhookConfig returns the configured webhook, or nil when none is set.
func (s *Store) WebhookConfig() (*WebhookConfig, error) {
	row := s.db.QueryRow(
		`SELECT COALESCE(endpoint_url, ''), interval_minutes, enabled, last_sent
		 FROM webhook_config WHERE id = 1`)

	var (
		cfg      WebhookConfig
		enabled  int
		lastSent sql.NullString
	)
	err := row.Scan(&cfg.URL, &cfg.IntervalMinutes, &enabled, &lastSent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query webhook config: %w", err)
	}

	cfg.Enabled = enabled != 0
	if lastSent.Valid && lastSent.String != "" {
		if t, perr := parseTime(lastSent.String); perr == nil {
			cfg.LastSent = &t
		}
	}
	return &cfg, nil
}

// SetWebhookConfig creates or replaces the webhook configuration.
func (s *Store) SetWebhookConfig(url string, intervalMinutes int, enabled bool) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO webhook_config (id, endpoint_url, interval_minutes, enabled)
		 VALUES (1, ?, ?, ?)`, url, intervalMinutes, boolToInt(enabled))
	if err != nil {
		return fmt.Errorf("set webhook config: %w", err)
	}
	return nil
}

// SetWebhookEnabled toggles delivery; reports whether a config row existed.
func (s *Store) SetWebhookEnabled(enabled bool) (bool, error) {
	res, err := s.db.Exec(`UPDATE webhook_config SET enabled = ? WHERE id = 1`, boolToInt(enabled))
	if err != nil {
		return false, fmt.Errorf("set webhook enabled: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdateWebhookLastSent records a successful delivery time.
func (s *Store) UpdateWebhookLastSent(t time.Time) error {
	_, err := s.db.Exec(`UPDATE webhook_config SET last_sent = ? WHERE id = 1`, formatTime(t))
	if err != nil {
		return fmt.Errorf("update last sent: %w", err)
	}
	return nil
}

// DeleteWebhookConfig removes the webhook configuration.
func (s *Store) DeleteWebhookConfig() error {
	_, err := s.db.Exec(`DELETE FROM webhook_config WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("delete webhook config: %w", err)
	}
	return nil
}

// AppendWebhookLog records a delivery outcome and prunes the log to the cap.
// Messages are truncated to keep rows bounded.
func (s *Store) AppendWebhookLog(ts time.Time, status string, code int, message string) error {
	if len(message) > 500 {
		message = message[:500]
	}
	_, err := s.db.Exec(
		`INSERT INTO webhook_logs (timestamp, status, response_code, message) VALUES (?, ?, ?, ?)`,
		formatTime(ts), status, code, message)
	if err != nil {
		return fmt.Errorf("append webhook log: %w", err)
	}
	if _, err := s.db.Exec(pruneWebhookLogsSQL, webhookLogCap); err != nil {
		return fmt.Errorf("prune webhook logs: %w", err)
	}
	return nil
}

// WebhookLogs returns the most recent delivery outcomes, newest first.
func (s *Store) WebhookLogs(limit int) ([]WebhookLogEntry, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, status, response_code, COALESCE(message, '')
		 FROM webhook_logs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query webhook logs: %w", err)
	}
	defer rows.Close()

	var out []WebhookLogEntry
	for rows.Next() {
		var (
			e  WebhookLogEntry
			at string
		)
		if err := rows.Scan(&at, &e.Status, &e.ResponseCode, &e.Message); err != nil {
			return nil, err
		}
		e.Timestamp, _ = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
