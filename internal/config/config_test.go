package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, expected 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, expected sqlite", cfg.Database.Driver)
	}
	if cfg.JWT.AccessExpire != "15m" || cfg.JWT.RefreshExpire != "7d" {
		t.Errorf("token lifetimes = %q/%q, expected 15m/7d", cfg.JWT.AccessExpire, cfg.JWT.RefreshExpire)
	}
	if cfg.JWT.AccessSecret == cfg.JWT.RefreshSecret {
		t.Error("access and refresh secrets must differ")
	}
	if cfg.Server.AuthRateRPS <= 0 || cfg.Server.AuthRateBurst <= 0 {
		t.Errorf("auth rate limit = %v/%d, expected positive defaults", cfg.Server.AuthRateRPS, cfg.Server.AuthRateBurst)
	}
	if cfg.Scheduler.PlanningCron != "0 2 * * *" {
		t.Errorf("PlanningCron = %q", cfg.Scheduler.PlanningCron)
	}
	if cfg.Scheduler.DispatchCron != "* * * * *" {
		t.Errorf("DispatchCron = %q", cfg.Scheduler.DispatchCron)
	}
	if cfg.Scheduler.SendDelay != "1h" {
		t.Errorf("SendDelay = %q", cfg.Scheduler.SendDelay)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, expected default", cfg.Server.Port)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: \"9000\"\njwt:\n  access_expire: 30m\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("Port = %q, expected 9000", cfg.Server.Port)
	}
	if cfg.JWT.AccessExpire != "30m" {
		t.Errorf("AccessExpire = %q, expected 30m", cfg.JWT.AccessExpire)
	}
	// Unspecified values keep their defaults.
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, expected default sqlite", cfg.Database.Driver)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("JWT_ACCESS_EXPIRE", "5m")
	t.Setenv("SCHEDULER_SEND_DELAY", "30m")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Port = %q, expected env override", cfg.Server.Port)
	}
	if cfg.JWT.AccessExpire != "5m" {
		t.Errorf("AccessExpire = %q, expected 5m", cfg.JWT.AccessExpire)
	}
	if cfg.Scheduler.SendDelay != "30m" {
		t.Errorf("SendDelay = %q, expected 30m", cfg.Scheduler.SendDelay)
	}
}

func TestParseRedisURL(t *testing.T) {
	cases := []struct {
		url      string
		addr     string
		password string
		db       int
	}{
		{"redis://localhost:6379", "localhost:6379", "", 0},
		{"redis://:secret@redis-host:6380/2", "redis-host:6380", "secret", 2},
		{"redis://user:pw@host:6379/1", "host:6379", "pw", 1},
	}

	for _, c := range cases {
		cfg := DefaultConfig()
		cfg.parseRedisURL(c.url)
		if cfg.Redis.Addr != c.addr {
			t.Errorf("parseRedisURL(%q).Addr = %q, expected %q", c.url, cfg.Redis.Addr, c.addr)
		}
		if cfg.Redis.Password != c.password {
			t.Errorf("parseRedisURL(%q).Password = %q, expected %q", c.url, cfg.Redis.Password, c.password)
		}
		if cfg.Redis.DB != c.db {
			t.Errorf("parseRedisURL(%q).DB = %d, expected %d", c.url, cfg.Redis.DB, c.db)
		}
	}
}
