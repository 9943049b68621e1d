package cliconfig

import (
	"os"
	"strings"
)

// ApplyEnvConfig applies configuration from environment variables (NETMON_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	if v := os.Getenv("NETMON_INTERFACES"); v != "" {
		s.setStrings("interfaces", splitList(v), &cfg.Interfaces)
	}

	s.setString("nethogs-path", os.Getenv("NETMON_NETHOGS_PATH"), &cfg.NethogsPath)
	s.setString("data-dir", os.Getenv("NETMON_DATA_DIR"), &cfg.DataDir)
	s.setString("pid-file", os.Getenv("NETMON_PID_FILE"), &cfg.PIDFile)
	s.setString("log-file", os.Getenv("NETMON_LOG_FILE"), &cfg.LogFile)
	s.setString("log-level", os.Getenv("NETMON_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("nethogs-refresh", os.Getenv("NETMON_NETHOGS_REFRESH_SEC"), &cfg.NethogsRefresh); err != nil {
		return err
	}
	if err := s.setDuration("write-interval", os.Getenv("NETMON_DB_WRITE_INTERVAL"), &cfg.DBWriteInterval); err != nil {
		return err
	}
	if err := s.setDuration("check-interval", os.Getenv("NETMON_CHECK_INTERVAL"), &cfg.CheckInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("retention-days", os.Getenv("NETMON_DATA_RETENTION_DAYS"), &cfg.DataRetentionDays); err != nil {
		return err
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
