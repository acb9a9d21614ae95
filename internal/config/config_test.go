package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: 9090
  host: "127.0.0.1"

database:
  host: "testdb"
  port: 5432
  user: "testuser"
  password: "testpass"
  dbname: "testdb"

quota:
  free: 3
  timezone: "UTC"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}

	if cfg.Database.Host != "testdb" {
		t.Errorf("Expected database host testdb, got %s", cfg.Database.Host)
	}

	if cfg.Quota.Free != 3 {
		t.Errorf("Expected free quota 3, got %d", cfg.Quota.Free)
	}

	if cfg.Quota.Location() != time.UTC {
		t.Errorf("Expected UTC quota location, got %v", cfg.Quota.Location())
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, "server:\n  port: 8081\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Quota.Free != 2 || cfg.Quota.Premium != 20 || cfg.Quota.Pro != 100 {
		t.Errorf("Unexpected quota defaults: %+v", cfg.Quota)
	}

	if cfg.Quota.Timezone != "Europe/Istanbul" {
		t.Errorf("Expected Europe/Istanbul, got %s", cfg.Quota.Timezone)
	}

	if cfg.Auth.TokenTTL != 168*time.Hour {
		t.Errorf("Expected token TTL 168h, got %v", cfg.Auth.TokenTTL)
	}

	if cfg.Sweeper.Interval != 15*time.Minute {
		t.Errorf("Expected sweep interval 15m, got %v", cfg.Sweeper.Interval)
	}
}

func TestLoadInvalidTimezone(t *testing.T) {
	path := writeTempConfig(t, "quota:\n  timezone: \"Mars/Olympus\"\n")

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid timezone")
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent file")
	}
}
