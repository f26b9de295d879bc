package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, expected %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Database.TxTimeout() != 15*time.Second {
		t.Errorf("TxTimeout() = %v, expected 15s", cfg.Database.TxTimeout())
	}
	if cfg.Scheduler.Enabled {
		t.Error("scheduler should be disabled by default")
	}
	if cfg.Scheduler.Schedule != "0 0 * * *" {
		t.Errorf("Scheduler.Schedule = %q, expected midnight", cfg.Scheduler.Schedule)
	}
	if cfg.Calendar.Country != "NONE" {
		t.Errorf("Calendar.Country = %q, expected %q", cfg.Calendar.Country, "NONE")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, expected %q", cfg.Server.Port, "8080")
	}
	if GlobalConfig != cfg {
		t.Error("Load should set GlobalConfig")
	}
}

func TestLoad_FileKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: \"9090\"\ndatabase:\n  driver: postgres\n  dsn: host=db\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, expected %q", cfg.Server.Port, "9090")
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, expected %q", cfg.Database.Driver, "postgres")
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, expected default %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Database.TxTimeoutSeconds != 15 {
		t.Errorf("TxTimeoutSeconds = %d, expected default 15", cfg.Database.TxTimeoutSeconds)
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("MEILI_URL", "http://meili:7700")
	t.Setenv("PROJECT_CRON_SCHEDULE", "30 1 * * *")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.overrideFromEnv()

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, expected %q", cfg.Database.Driver, "mysql")
	}
	if cfg.Search.URL != "http://meili:7700" {
		t.Errorf("Search.URL = %q", cfg.Search.URL)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Schedule != "30 1 * * *" {
		t.Errorf("scheduler override not applied: %+v", cfg.Scheduler)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, expected %q", cfg.Log.Level, "debug")
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url      string
		addr     string
		password string
		db       int
	}{
		{"redis://localhost:6379", "localhost:6379", "", 0},
		{"redis://:secret@redis:6380/2", "redis:6380", "secret", 2},
		{"redis://user:pw@10.0.0.1:6379/5", "10.0.0.1:6379", "pw", 5},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.parseRedisURL(tt.url)
		if cfg.Redis.Addr != tt.addr {
			t.Errorf("%s: Addr = %q, expected %q", tt.url, cfg.Redis.Addr, tt.addr)
		}
		if cfg.Redis.Password != tt.password {
			t.Errorf("%s: Password = %q, expected %q", tt.url, cfg.Redis.Password, tt.password)
		}
		if cfg.Redis.DB != tt.db {
			t.Errorf("%s: DB = %d, expected %d", tt.url, cfg.Redis.DB, tt.db)
		}
	}
}

func TestSave_RoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Calendar.Country = "GB"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Calendar.Country != "GB" {
		t.Errorf("Calendar.Country = %q, expected %q", loaded.Calendar.Country, "GB")
	}
}
