package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.DBDriver != "memory" {
		t.Errorf("DBDriver = %q, want memory", cfg.DBDriver)
	}
	if cfg.Game.ReplayInterval != 3*time.Second {
		t.Errorf("ReplayInterval = %s, want 3s", cfg.Game.ReplayInterval)
	}
	if cfg.Game.HouseFeePercent != 5 || cfg.Game.MinStake != 50 || cfg.Game.MaxParticipants != 3 {
		t.Errorf("unexpected game defaults: %+v", cfg.Game)
	}
	if !cfg.IsDevelopment() {
		t.Error("default environment should be development")
	}
}

func TestLoadReadsDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("MIN_STAKE=75\nNATS_SUBJECT=arena.events\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("MIN_STAKE")
		os.Unsetenv("NATS_SUBJECT")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Game.MinStake != 75 {
		t.Errorf("MinStake = %d, want 75", cfg.Game.MinStake)
	}
	if cfg.NATSSubject != "arena.events" {
		t.Errorf("NATSSubject = %q, want arena.events", cfg.NATSSubject)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg Config
	t.Setenv("MIN_STAKE", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Game.ReplayInterval = 0 }},
		{"fee over 100", func(c *Config) { c.Game.HouseFeePercent = 101 }},
		{"zero min stake", func(c *Config) { c.Game.MinStake = 0 }},
		{"no participants", func(c *Config) { c.Game.MaxParticipants = 0 }},
		{"pit larger than a rumble", func(c *Config) { c.Game.MaxParticipants = 4 }},
		{"forge cost above balance", func(c *Config) { c.Game.ForgeCost = c.Game.StartingBalance + 1 }},
		{"postgres without url", func(c *Config) {
			c.Environment = "production"
			c.DBDriver = "postgres"
			c.DatabaseURL = ""
		}},
		{"unknown nats mode", func(c *Config) { c.NATSMode = "carrier-pigeon" }},
		{"unknown driver", func(c *Config) { c.DBDriver = "mongo" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	dev := base
	dev.DBDriver = "postgres"
	dev.DatabaseURL = ""
	if err := dev.Validate(); err != nil {
		t.Fatalf("development postgres without url should use the mock: %v", err)
	}
}

func TestEventBusMode(t *testing.T) {
	tests := []struct {
		env, mode, want string
	}{
		{"development", "", "embedded"},
		{"", "", "embedded"},
		{"production", "", "external"},
		{"production", "mock", "mock"},
		{"development", "external", "external"},
	}
	for _, tt := range tests {
		c := Config{Environment: tt.env, NATSMode: tt.mode}
		if got := c.EventBusMode(); got != tt.want {
			t.Errorf("EventBusMode(%q, %q) = %q, want %q", tt.env, tt.mode, got, tt.want)
		}
	}
}
