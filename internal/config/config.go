// Package config parses kurokku.toml process configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Load.
const FileName = "kurokku.toml"

// DefaultAccentColor is the default monitor accent color (segment red).
const DefaultAccentColor = "#FF3B30"

// hexColorRe matches a 6-digit hex color string like "#FF3B30".
var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// drivers lists the accepted display.driver values.
var drivers = []string{"auto", "led", "console", "terminal", "broadcast"}

// Config is the top-level kurokku.toml configuration.
type Config struct {
	Redis         RedisConfig         `toml:"redis"`
	Display       DisplayConfig       `toml:"display"`
	Web           WebConfig           `toml:"web"`
	Supervisor    SupervisorConfig    `toml:"supervisor"`
	Monitor       MonitorConfig       `toml:"monitor"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// RedisConfig locates the shared store.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	DB       int    `toml:"db"`
	Password string `toml:"password"`
}

// DisplayConfig selects and wires the display backend.
type DisplayConfig struct {
	Driver     string `toml:"driver"`
	ClkPin     string `toml:"clk_pin"`
	DioPin     string `toml:"dio_pin"`
	BitDelayUS int    `toml:"bit_delay_us"`
}

// WebConfig controls the browser transport.
type WebConfig struct {
	Host              string  `toml:"host"`
	Port              int     `toml:"port"`
	StaticDir         string  `toml:"static_dir"` // empty = embedded page
	MaxConnectsPerSec float64 `toml:"max_connects_per_sec"`
}

// Addr is host:port for net.Listen.
func (w WebConfig) Addr() string {
	return net.JoinHostPort(w.Host, strconv.Itoa(w.Port))
}

// SupervisorConfig controls restarts of the render engine.
type SupervisorConfig struct {
	Enabled             bool `toml:"enabled"`
	MaxRetries          int  `toml:"max_retries"`
	RetryBackoffSeconds int  `toml:"retry_backoff_seconds"`
	HangTimeoutSeconds  int  `toml:"hang_timeout_seconds"`
}

// MonitorConfig controls the terminal monitor appearance.
type MonitorConfig struct {
	AccentColor string `toml:"accent_color"`
}

// NotificationsConfig controls webhook/ntfy.sh notifications.
type NotificationsConfig struct {
	URL     string `toml:"url"`
	OnStop  bool   `toml:"on_stop"`
	OnError bool   `toml:"on_error"`
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Redis.Addr); err != nil {
		errs = append(errs, fmt.Errorf("redis.addr must be host:port, got %q", c.Redis.Addr))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db must be >= 0"))
	}

	if !validDriver(c.Display.Driver) {
		errs = append(errs, fmt.Errorf("display.driver must be one of %s", strings.Join(drivers, ", ")))
	}
	if c.Display.BitDelayUS < 0 {
		errs = append(errs, fmt.Errorf("display.bit_delay_us must be >= 0"))
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web.port must be between 1 and 65535"))
	}
	if c.Web.MaxConnectsPerSec < 0 {
		errs = append(errs, fmt.Errorf("web.max_connects_per_sec must be >= 0 (0 = unlimited)"))
	}

	if c.Supervisor.Enabled {
		if c.Supervisor.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("supervisor.max_retries must be >= 0"))
		}
		if c.Supervisor.RetryBackoffSeconds < 0 {
			errs = append(errs, fmt.Errorf("supervisor.retry_backoff_seconds must be >= 0"))
		}
		if c.Supervisor.HangTimeoutSeconds < 0 {
			errs = append(errs, fmt.Errorf("supervisor.hang_timeout_seconds must be >= 0 (0 = no hang detection)"))
		}
	}

	if c.Monitor.AccentColor != "" && !hexColorRe.MatchString(c.Monitor.AccentColor) {
		errs = append(errs, fmt.Errorf("monitor.accent_color must be a hex color (e.g. \"#FF3B30\")"))
	}

	if c.Notifications.URL != "" {
		u, parseErr := url.ParseRequestURI(c.Notifications.URL)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("notifications.url must be a valid http or https URL"))
		}
	}

	return errors.Join(errs...)
}

func validDriver(name string) bool {
	for _, d := range drivers {
		if d == name {
			return true
		}
	}
	return false
}

// Defaults returns a Config for a local Redis and auto-detected display.
func Defaults() Config {
	return Config{
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Display: DisplayConfig{
			Driver:     "auto",
			ClkPin:     "GPIO23",
			DioPin:     "GPIO24",
			BitDelayUS: 100,
		},
		Web: WebConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			MaxConnectsPerSec: 5,
		},
		Supervisor: SupervisorConfig{
			Enabled:             true,
			MaxRetries:          5,
			RetryBackoffSeconds: 5,
			HangTimeoutSeconds:  120,
		},
		Monitor: MonitorConfig{
			AccentColor: DefaultAccentColor,
		},
		Notifications: NotificationsConfig{
			URL:     "",
			OnStop:  true,
			OnError: true,
		},
	}
}

// Load reads kurokku.toml from the given path. If path is empty, it walks up
// from the current working directory looking for kurokku.toml and falls back
// to Defaults when none is found. Environment overrides are applied last.
// Returns an error if the file contains unknown keys (likely typos).
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		found, err := findConfig()
		if err != nil {
			return nil, err
		}
		path = found
	}

	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, joinKeys(keys))
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from REDIS_HOST, REDIS_PORT, CLK_PIN and DIO_PIN.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	host, port, err := net.SplitHostPort(c.Redis.Addr)
	if err != nil {
		host, port = c.Redis.Addr, "6379"
	}
	changed := false
	if v := getenv("REDIS_HOST"); v != "" {
		host, changed = v, true
	}
	if v := getenv("REDIS_PORT"); v != "" {
		if _, convErr := strconv.Atoi(v); convErr != nil {
			return fmt.Errorf("config: REDIS_PORT must be a number, got %q", v)
		}
		port, changed = v, true
	}
	if changed {
		c.Redis.Addr = net.JoinHostPort(host, port)
	}
	if v := getenv("CLK_PIN"); v != "" {
		c.Display.ClkPin = v
	}
	if v := getenv("DIO_PIN"); v != "" {
		c.Display.DioPin = v
	}
	return nil
}

// joinKeys formats a slice of key names for display.
func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

// findConfig walks up from the current directory looking for kurokku.toml.
// An empty path means none was found.
func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// InitFile writes a default kurokku.toml template to the given directory.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: %s already exists at %s", FileName, path)
	}

	content := `# kurokku.toml: LED Kurokku process configuration
# REDIS_HOST, REDIS_PORT, CLK_PIN and DIO_PIN override the values below.

[redis]
addr = "localhost:6379"
db = 0
password = ""

[display]
driver = "auto"     # auto, led, console, terminal or broadcast
clk_pin = "GPIO23"
dio_pin = "GPIO24"
bit_delay_us = 100  # half-period of the TM1637 bus clock

[web]
host = "0.0.0.0"
port = 8080
static_dir = ""            # serve index.html from here instead of the built-in page
max_connects_per_sec = 5.0 # websocket upgrades per second; 0 = unlimited

[supervisor]
enabled = true
max_retries = 5
retry_backoff_seconds = 5
hang_timeout_seconds = 120  # restart when the engine neither draws nor sleeps for this long; 0 = off

[monitor]
accent_color = "#FF3B30"  # hex color for lit segments

[notifications]
url = ""        # ntfy.sh topic URL or any HTTP webhook (empty = disabled)
on_stop = true  # notify when the render loop stops
on_error = true # notify on widget or engine errors
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}
