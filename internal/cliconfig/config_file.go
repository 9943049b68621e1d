package cliconfig

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly. Interval fields accept either a bare number of seconds or a Go
// duration string.
type FileConfig struct {
	Interfaces        []string `toml:"interfaces"`
	NethogsPath       string   `toml:"nethogs_path"`
	NethogsRefresh    string   `toml:"nethogs_refresh_sec"`
	DBWriteInterval   string   `toml:"db_write_interval"`
	DataRetentionDays int      `toml:"data_retention_days"`
	CheckInterval     string   `toml:"check_interval"`
	DataDir           string   `toml:"data_dir"`
	PIDFile           string   `toml:"pid_file"`
	LogFile           string   `toml:"log_file"`
	LogLevel          string   `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setStrings("interfaces", fc.Interfaces, &cfg.Interfaces)
	s.setString("nethogs-path", fc.NethogsPath, &cfg.NethogsPath)
	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setString("pid-file", fc.PIDFile, &cfg.PIDFile)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("nethogs-refresh", fc.NethogsRefresh, &cfg.NethogsRefresh); err != nil {
		return err
	}
	if err := s.setDuration("write-interval", fc.DBWriteInterval, &cfg.DBWriteInterval); err != nil {
		return err
	}
	if err := s.setDuration("check-interval", fc.CheckInterval, &cfg.CheckInterval); err != nil {
		return err
	}

	s.setInt("retention-days", fc.DataRetentionDays, &cfg.DataRetentionDays)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
