package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./nexus.db" {
			t.Errorf("expected database path ./nexus.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8000 {
			t.Errorf("expected server port 8000, got %d", config.Server.Port)
		}

		if config.Storage.UploadDir != "./uploaded_songs" {
			t.Errorf("expected upload dir ./uploaded_songs, got %s", config.Storage.UploadDir)
		}

		if len(config.Acquire.Profiles) != 6 {
			t.Errorf("expected 6 profiles, got %d", len(config.Acquire.Profiles))
		}

		if config.Acquire.JitterMin.Duration != time.Second || config.Acquire.JitterMax.Duration != 3*time.Second {
			t.Errorf("unexpected jitter band [%s, %s]", config.Acquire.JitterMin, config.Acquire.JitterMax)
		}

		if config.Resolver.Limit != 10 {
			t.Errorf("expected resolver limit 10, got %d", config.Resolver.Limit)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
port = 8080

[acquire]
profiles = ["web", "tv"]
jitter_min = "0s"
jitter_max = "500ms"

[credentials]
cookies_path = "/secrets/cookies.txt"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if len(config.Acquire.Profiles) != 2 || config.Acquire.Profiles[0] != "web" {
			t.Errorf("expected profiles [web tv], got %v", config.Acquire.Profiles)
		}

		if config.Acquire.JitterMax.Duration != 500*time.Millisecond {
			t.Errorf("expected jitter max 500ms, got %s", config.Acquire.JitterMax)
		}

		if config.Storage.UploadDir != "./uploaded_songs" {
			t.Errorf("missing keys should keep defaults, got upload dir %q", config.Storage.UploadDir)
		}

		if config.Credentials.CookiesPath != "/secrets/cookies.txt" {
			t.Errorf("expected cookies path, got %q", config.Credentials.CookiesPath)
		}
	})

	t.Run("LoadConfig rejects bad durations", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[acquire]\njitter_min = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error for invalid duration")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "inverted jitter band", mutate: func(c *Config) {
				c.Acquire.JitterMin.Duration = 2 * time.Second
				c.Acquire.JitterMax.Duration = time.Second
			}},
			{name: "too many profiles", mutate: func(c *Config) {
				c.Acquire.Profiles = []string{"a", "b", "c", "d", "e", "f", "g"}
			}},
			{name: "resolver limit above ten", mutate: func(c *Config) { c.Resolver.Limit = 11 }},
			{name: "missing upload dir", mutate: func(c *Config) { c.Storage.UploadDir = "" }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		env := map[string]string{
			EnvCookies:   "SID=abc; HSID=def",
			EnvUploadDir: "/data/songs",
			EnvDBPath:    "/data/nexus.db",
			EnvLogLevel:  "debug",
		}
		config := DefaultConfig()
		config.ApplyEnv(func(k string) string { return env[k] })

		if config.Credentials.Cookies != env[EnvCookies] {
			t.Errorf("expected cookies from env")
		}
		if config.Storage.UploadDir != "/data/songs" {
			t.Errorf("expected upload dir from env, got %s", config.Storage.UploadDir)
		}
		if config.Database.Path != "/data/nexus.db" {
			t.Errorf("expected db path from env, got %s", config.Database.Path)
		}
		if config.Log.Level != "debug" {
			t.Errorf("expected log level from env, got %s", config.Log.Level)
		}
	})

	t.Run("ApplyEnv keeps file values when unset", func(t *testing.T) {
		config := DefaultConfig()
		config.ApplyEnv(func(string) string { return "" })

		if config.Database.Path != "./nexus.db" {
			t.Errorf("expected default db path, got %s", config.Database.Path)
		}
	})
}
