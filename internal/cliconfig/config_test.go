package cliconfig

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(c *Config) {}, false},
		{"empty nethogs path", func(c *Config) { c.NethogsPath = "" }, true},
		{"zero refresh", func(c *Config) { c.NethogsRefresh = 0 }, true},
		{"zero write interval", func(c *Config) { c.DBWriteInterval = 0 }, true},
		{"zero check interval", func(c *Config) { c.CheckInterval = 0 }, true},
		{"zero retention", func(c *Config) { c.DataRetentionDays = 0 }, true},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDBPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/srv/netmon"
	if got := cfg.DBPath(); got != "/srv/netmon/traffic.db" {
		t.Fatalf("DBPath() = %q", got)
	}
}

func TestSetDuration_SecondsAndDurations(t *testing.T) {
	s := newConfigSetter(nil)

	var d time.Duration
	if err := s.setDuration("x", "300", &d); err != nil {
		t.Fatal(err)
	}
	if d != 300*time.Second {
		t.Fatalf("bare seconds: got %v", d)
	}

	if err := s.setDuration("x", "2m30s", &d); err != nil {
		t.Fatal(err)
	}
	if d != 2*time.Minute+30*time.Second {
		t.Fatalf("duration string: got %v", d)
	}

	if err := s.setDuration("x", "bogus", &d); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
