package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ExcludedIP is a remote address whose traffic is dropped at collection time.
type ExcludedIP struct {
	IP          string    `json:"ip"`
	Description string    `json:"description"`
	AddedAt     time.Time `json:"-"`
}

// ExcludedIPs returns the excluded addresses as a set for the reader's
// fast-path check.
func (s *Store) ExcludedIPs() (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT ip FROM excluded_ips`)
	if err != nil {
		return nil, fmt.Errorf("query excluded ips: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, err
		}
		out[ip] = struct{}{}
	}
	return out, rows.Err()
}

// ExcludedIPList returns the excluded addresses with details, oldest first.
func (s *Store) ExcludedIPList() ([]ExcludedIP, error) {
	rows, err := s.db.Query(
		`SELECT ip, COALESCE(description, ''), added_at FROM excluded_ips ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("query excluded ip list: %w", err)
	}
	defer rows.Close()

	var out []ExcludedIP
	for rows.Next() {
		var (
			e  ExcludedIP
			at sql.NullString
		)
		if err := rows.Scan(&e.IP, &e.Description, &at); err != nil {
			return nil, err
		}
		if at.Valid {
			e.AddedAt, _ = parseTime(at.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddExcludedIP inserts or replaces an exclusion.
func (s *Store) AddExcludedIP(ip, description string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO excluded_ips (ip, description) VALUES (?, ?)`, ip, description)
	if err != nil {
		return fmt.Errorf("add excluded ip: %w", err)
	}
	return nil
}

// RemoveExcludedIP deletes an exclusion; reports whether a row was removed.
func (s *Store) RemoveExcludedIP(ip string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM excluded_ips WHERE ip = ?`, ip)
	if err != nil {
		return false, fmt.Errorf("remove excluded ip: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
