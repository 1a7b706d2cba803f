package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values from the config file.
const (
	EnvCookies   = "NEXUS_YT_COOKIES"
	EnvUploadDir = "NEXUS_UPLOAD_DIR"
	EnvDBPath    = "NEXUS_DB_PATH"
	EnvLogLevel  = "NEXUS_LOG_LEVEL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Acquire     AcquireConfig     `toml:"acquire"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Credentials CredentialsConfig `toml:"credentials"`
	Log         LogConfig         `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	LockFile        string   `toml:"lock_file"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	AllowedOrigins  []string `toml:"allowed_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig locates stored media.
type StorageConfig struct {
	UploadDir string `toml:"upload_dir"`
}

// AcquireConfig tunes the acquisition orchestrator and the yt-dlp subprocess.
type AcquireConfig struct {
	Profiles    []string `toml:"profiles"`
	JitterMin   Duration `toml:"jitter_min"`
	JitterMax   Duration `toml:"jitter_max"`
	YtDlpBinary string   `toml:"ytdlp_binary"`
	Format      string   `toml:"format"`
	ForceIPv4   bool     `toml:"force_ipv4"`
	Timeout     Duration `toml:"timeout"`
}

// ResolverConfig bounds outbound search traffic.
type ResolverConfig struct {
	Limit             int     `toml:"limit"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// CredentialsConfig locates the operator's session cookies.
//
// Cookies holds an inline blob taken from [EnvCookies] and is never read from or written to disk.
type CredentialsConfig struct {
	CookiesPath string `toml:"cookies_path"`
	Cookies     string `toml:"-"`
}

// LogConfig selects the logger level, format and (for the TUI) output file.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Duration is a [time.Duration] decoded from strings such as "1500ms" or "2s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads a TOML configuration file from path over the embedded defaults.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays values from the environment, looked up through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvCookies); strings.TrimSpace(v) != "" {
		c.Credentials.Cookies = v
	}
	if v := strings.TrimSpace(getenv(EnvUploadDir)); v != "" {
		c.Storage.UploadDir = v
	}
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	case c.Storage.UploadDir == "":
		return fmt.Errorf("%w: storage.upload_dir is required", ErrInvalidConfig)
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	case len(c.Acquire.Profiles) > 6:
		return fmt.Errorf("%w: acquire.profiles accepts at most 6 entries", ErrInvalidConfig)
	case c.Acquire.JitterMin.Duration < 0 || c.Acquire.JitterMax.Duration < c.Acquire.JitterMin.Duration:
		return fmt.Errorf("%w: acquire jitter band [%s, %s] is invalid", ErrInvalidConfig, c.Acquire.JitterMin, c.Acquire.JitterMax)
	case c.Resolver.Limit < 0 || c.Resolver.Limit > 10:
		return fmt.Errorf("%w: resolver.limit must be between 1 and 10", ErrInvalidConfig)
	}
	return nil
}
