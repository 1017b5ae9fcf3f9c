package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks the override variables so the host environment cannot leak
// into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"REDIS_HOST", "REDIS_PORT", "CLK_PIN", "DIO_PIN"} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"redis.addr", cfg.Redis.Addr, "localhost:6379"},
		{"redis.db", cfg.Redis.DB, 0},
		{"display.driver", cfg.Display.Driver, "auto"},
		{"display.clk_pin", cfg.Display.ClkPin, "GPIO23"},
		{"display.dio_pin", cfg.Display.DioPin, "GPIO24"},
		{"display.bit_delay_us", cfg.Display.BitDelayUS, 100},
		{"web.host", cfg.Web.Host, "0.0.0.0"},
		{"web.port", cfg.Web.Port, 8080},
		{"web.max_connects_per_sec", cfg.Web.MaxConnectsPerSec, 5.0},
		{"supervisor.enabled", cfg.Supervisor.Enabled, true},
		{"supervisor.max_retries", cfg.Supervisor.MaxRetries, 5},
		{"supervisor.retry_backoff_seconds", cfg.Supervisor.RetryBackoffSeconds, 5},
		{"supervisor.hang_timeout_seconds", cfg.Supervisor.HangTimeoutSeconds, 120},
		{"monitor.accent_color", cfg.Monitor.AccentColor, DefaultAccentColor},
		{"notifications.on_stop", cfg.Notifications.OnStop, true},
		{"notifications.on_error", cfg.Notifications.OnError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	t.Run("valid config", func(t *testing.T) {
		dir := t.TempDir()
		content := `
[redis]
addr = "redis.local:6380"
db = 2
password = "hunter2"

[display]
driver = "terminal"
clk_pin = "GPIO5"
dio_pin = "GPIO6"
bit_delay_us = 50

[web]
host = "127.0.0.1"
port = 9000
static_dir = "/srv/kurokku"
max_connects_per_sec = 1.5

[supervisor]
enabled = false
max_retries = 1
retry_backoff_seconds = 60
hang_timeout_seconds = 0

[monitor]
accent_color = "#00FF00"

[notifications]
url = "https://ntfy.sh/kurokku"
on_stop = false
on_error = true
`
		path := filepath.Join(dir, FileName)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}

		tests := []struct {
			name string
			got  any
			want any
		}{
			{"redis.addr", cfg.Redis.Addr, "redis.local:6380"},
			{"redis.db", cfg.Redis.DB, 2},
			{"redis.password", cfg.Redis.Password, "hunter2"},
			{"display.driver", cfg.Display.Driver, "terminal"},
			{"display.clk_pin", cfg.Display.ClkPin, "GPIO5"},
			{"display.dio_pin", cfg.Display.DioPin, "GPIO6"},
			{"display.bit_delay_us", cfg.Display.BitDelayUS, 50},
			{"web.addr", cfg.Web.Addr(), "127.0.0.1:9000"},
			{"web.static_dir", cfg.Web.StaticDir, "/srv/kurokku"},
			{"web.max_connects_per_sec", cfg.Web.MaxConnectsPerSec, 1.5},
			{"supervisor.enabled", cfg.Supervisor.Enabled, false},
			{"supervisor.max_retries", cfg.Supervisor.MaxRetries, 1},
			{"supervisor.retry_backoff_seconds", cfg.Supervisor.RetryBackoffSeconds, 60},
			{"supervisor.hang_timeout_seconds", cfg.Supervisor.HangTimeoutSeconds, 0},
			{"monitor.accent_color", cfg.Monitor.AccentColor, "#00FF00"},
			{"notifications.url", cfg.Notifications.URL, "https://ntfy.sh/kurokku"},
			{"notifications.on_stop", cfg.Notifications.OnStop, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if tt.got != tt.want {
					t.Errorf("got %v, want %v", tt.got, tt.want)
				}
			})
		}
	})

	t.Run("partial config uses defaults", func(t *testing.T) {
		dir := t.TempDir()
		content := `
[display]
driver = "console"
`
		path := filepath.Join(dir, FileName)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}

		if cfg.Display.Driver != "console" {
			t.Errorf("display.driver: got %q, want %q", cfg.Display.Driver, "console")
		}
		if cfg.Redis.Addr != "localhost:6379" {
			t.Errorf("redis.addr: got %q, want %q (default)", cfg.Redis.Addr, "localhost:6379")
		}
		if cfg.Supervisor.MaxRetries != 5 {
			t.Errorf("supervisor.max_retries: got %d, want %d (default)", cfg.Supervisor.MaxRetries, 5)
		}
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, FileName)
		if err := os.WriteFile(path, []byte("[redis]\nadress = \"x:1\"\n"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := Load(path)
		if err == nil {
			t.Fatal("expected error for unknown key")
		}
		if !strings.Contains(err.Error(), "redis.adress") {
			t.Errorf("error should name the key, got: %v", err)
		}
	})

	t.Run("missing file returns error", func(t *testing.T) {
		_, err := Load("/nonexistent/kurokku.toml")
		if err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("invalid toml returns error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, FileName)
		if err := os.WriteFile(path, []byte("not valid [[[ toml"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := Load(path)
		if err == nil {
			t.Error("expected error for invalid TOML")
		}
	})
}

func TestLoadAutoDiscovery(t *testing.T) {
	clearEnv(t)

	t.Run("finds kurokku.toml in parent directory", func(t *testing.T) {
		root := t.TempDir()
		child := filepath.Join(root, "sub", "dir")
		if err := os.MkdirAll(child, 0755); err != nil {
			t.Fatal(err)
		}

		content := `[web]
port = 8123
`
		if err := os.WriteFile(filepath.Join(root, FileName), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		origDir, _ := os.Getwd()
		t.Cleanup(func() { os.Chdir(origDir) })
		if err := os.Chdir(child); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Web.Port != 8123 {
			t.Errorf("web.port: got %d, want %d", cfg.Web.Port, 8123)
		}
	})

	t.Run("falls back to defaults when kurokku.toml not found", func(t *testing.T) {
		dir := t.TempDir()
		origDir, _ := os.Getwd()
		t.Cleanup(func() { os.Chdir(origDir) })
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if *cfg != Defaults() {
			t.Errorf("got %+v, want defaults", *cfg)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		env     map[string]string
		want    string
		wantClk string
		wantErr bool
	}{
		{"no overrides", "localhost:6379", nil, "localhost:6379", "GPIO23", false},
		{"host only", "localhost:6379", map[string]string{"REDIS_HOST": "redis"}, "redis:6379", "GPIO23", false},
		{"port only", "localhost:6379", map[string]string{"REDIS_PORT": "6380"}, "localhost:6380", "GPIO23", false},
		{"both", "localhost:6379", map[string]string{"REDIS_HOST": "10.0.0.5", "REDIS_PORT": "7000"}, "10.0.0.5:7000", "GPIO23", false},
		{"pin", "localhost:6379", map[string]string{"CLK_PIN": "GPIO17"}, "localhost:6379", "GPIO17", false},
		{"bad port", "localhost:6379", map[string]string{"REDIS_PORT": "http"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Redis.Addr = tt.addr
			err := cfg.ApplyEnv(func(k string) string { return tt.env[k] })
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Redis.Addr != tt.want {
				t.Errorf("redis.addr = %q, want %q", cfg.Redis.Addr, tt.want)
			}
			if cfg.Display.ClkPin != tt.wantClk {
				t.Errorf("display.clk_pin = %q, want %q", cfg.Display.ClkPin, tt.wantClk)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("DIO_PIN", "GPIO27")

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("[redis]\naddr = \"localhost:6390\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Redis.Addr != "cache:6390" {
		t.Errorf("redis.addr = %q, want %q", cfg.Redis.Addr, "cache:6390")
	}
	if cfg.Display.DioPin != "GPIO27" {
		t.Errorf("display.dio_pin = %q, want %q", cfg.Display.DioPin, "GPIO27")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad redis addr", func(c *Config) { c.Redis.Addr = "localhost" }, "redis.addr"},
		{"negative db", func(c *Config) { c.Redis.DB = -1 }, "redis.db"},
		{"unknown driver", func(c *Config) { c.Display.Driver = "lcd" }, "display.driver"},
		{"negative bit delay", func(c *Config) { c.Display.BitDelayUS = -1 }, "display.bit_delay_us"},
		{"port zero", func(c *Config) { c.Web.Port = 0 }, "web.port"},
		{"port too high", func(c *Config) { c.Web.Port = 70000 }, "web.port"},
		{"negative rate", func(c *Config) { c.Web.MaxConnectsPerSec = -1 }, "web.max_connects_per_sec"},
		{"negative retries", func(c *Config) { c.Supervisor.MaxRetries = -1 }, "supervisor.max_retries"},
		{"negative backoff", func(c *Config) { c.Supervisor.RetryBackoffSeconds = -1 }, "supervisor.retry_backoff_seconds"},
		{"negative hang timeout", func(c *Config) { c.Supervisor.HangTimeoutSeconds = -1 }, "supervisor.hang_timeout_seconds"},
		{"bad accent", func(c *Config) { c.Monitor.AccentColor = "red" }, "monitor.accent_color"},
		{"bad url", func(c *Config) { c.Notifications.URL = "ftp://example.com" }, "notifications.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}

	t.Run("disabled supervisor skips its checks", func(t *testing.T) {
		cfg := Defaults()
		cfg.Supervisor.Enabled = false
		cfg.Supervisor.MaxRetries = -1
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("joins every issue", func(t *testing.T) {
		cfg := Defaults()
		cfg.Web.Port = 0
		cfg.Display.Driver = "lcd"
		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "web.port") || !strings.Contains(err.Error(), "display.driver") {
			t.Errorf("error should list both issues, got: %v", err)
		}
	})
}

func TestInitFile(t *testing.T) {
	clearEnv(t)

	t.Run("creates kurokku.toml", func(t *testing.T) {
		dir := t.TempDir()
		path, err := InitFile(dir)
		if err != nil {
			t.Fatal(err)
		}

		if filepath.Base(path) != FileName {
			t.Errorf("expected %s, got %s", FileName, filepath.Base(path))
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("generated file is not valid: %v", err)
		}
		if *cfg != Defaults() {
			t.Errorf("template should match defaults, got %+v", *cfg)
		}
	})

	t.Run("refuses to overwrite existing", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, FileName)
		if err := os.WriteFile(path, []byte("existing"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := InitFile(dir)
		if err == nil {
			t.Errorf("expected error when %s already exists", FileName)
		}
	})
}
