// Package cliconfig loads netmon configuration from file, environment, and
// flags, with precedence flags > environment > file > defaults.
package cliconfig

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"
)

// Default locations. The data dir holds the sqlite database; the pid file is
// the daemon liveness marker.
const (
	DefaultConfigPath = "/etc/netmon/config.toml"
	DefaultDataDir    = "/var/lib/netmon"
	DefaultPIDFile    = "/var/run/netmon.pid"
	DefaultLogFile    = "/var/log/netmon.log"
)

// Config holds netmon daemon configuration.
type Config struct {
	// Interfaces to pass to nethogs. Empty means autodetect.
	Interfaces []string

	NethogsPath    string
	NethogsRefresh time.Duration

	DBWriteInterval   time.Duration
	DataRetentionDays int
	CheckInterval     time.Duration

	DataDir string
	PIDFile string
	LogFile string

	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		NethogsPath:       "nethogs",
		NethogsRefresh:    5 * time.Second,
		DBWriteInterval:   300 * time.Second,
		DataRetentionDays: 90,
		CheckInterval:     10 * time.Second,
		DataDir:           DefaultDataDir,
		PIDFile:           DefaultPIDFile,
		LogFile:           DefaultLogFile,
		LogLevel:          "info",
	}
}

// DBPath returns the sqlite database path under the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "traffic.db")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.NethogsPath == "" {
		return fmt.Errorf("nethogs-path is required")
	}
	if c.NethogsRefresh <= 0 {
		return fmt.Errorf("nethogs refresh must be positive")
	}
	if c.DBWriteInterval <= 0 {
		return fmt.Errorf("db write interval must be positive")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive")
	}
	if c.DataRetentionDays <= 0 {
		return fmt.Errorf("data retention days must be positive")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not
// changed. Bare integers are read as seconds.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs > 0 {
			*dst = time.Duration(secs) * time.Second
		}
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
