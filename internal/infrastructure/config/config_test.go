package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testSecret is a JWT secret long enough to pass validation.
const testSecret = "0123456789abcdef0123456789abcdef"

// writeConfig writes a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults for missing sections", func(t *testing.T) {
		path := writeConfig(t, `
security:
  jwt:
    secret: "`+testSecret+`"
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.API.Port != 8080 {
			t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
		}
		if cfg.Sync.BatchSize != 10 {
			t.Errorf("Sync.BatchSize = %d, want 10", cfg.Sync.BatchSize)
		}
		if cfg.MikroTik.DefaultPort != 8728 {
			t.Errorf("MikroTik.DefaultPort = %d, want 8728", cfg.MikroTik.DefaultPort)
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfig(t, `
api:
  port: 9090
sync:
  batch_size: 5
security:
  jwt:
    secret: "`+testSecret+`"
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.API.Port != 9090 {
			t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
		}
		if cfg.Sync.BatchSize != 5 {
			t.Errorf("Sync.BatchSize = %d, want 5", cfg.Sync.BatchSize)
		}
	})

	t.Run("environment overrides file values", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: /from/file.db
security:
  jwt:
    secret: "`+testSecret+`"
`)
		t.Setenv("NETWARD_DATABASE_PATH", "/from/env.db")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Database.Path != "/from/env.db" {
			t.Errorf("Database.Path = %q, want /from/env.db", cfg.Database.Path)
		}
	})

	t.Run("rejects missing JWT secret", func(t *testing.T) {
		path := writeConfig(t, `
api:
  port: 8080
`)
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "jwt.secret") {
			t.Errorf("Load() error = %v, want jwt.secret validation failure", err)
		}
	})

	t.Run("rejects short JWT secret", func(t *testing.T) {
		path := writeConfig(t, `
security:
  jwt:
    secret: "short"
`)
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "32 characters") {
			t.Errorf("Load() error = %v, want short-secret validation failure", err)
		}
	})

	t.Run("rejects invalid port", func(t *testing.T) {
		path := writeConfig(t, `
api:
  port: 99999
security:
  jwt:
    secret: "`+testSecret+`"
`)
		if _, err := Load(path); err == nil {
			t.Error("Load() expected port validation error, got nil")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("Load() expected error for missing file, got nil")
		}
	})
}

func TestValidate_InfluxDB(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = testSecret
	cfg.InfluxDB.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for enabled influxdb without url/bucket, got nil")
	}

	cfg.InfluxDB.URL = "http://localhost:8086"
	cfg.InfluxDB.Bucket = "netward"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}
