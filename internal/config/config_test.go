package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development"},
		Logger:   LoggerConfig{Level: "info"},
		AI:       AIConfig{Provider: "gemini"},
		Prefetch: PrefetchConfig{Count: 3, MaxConcurrent: 2},
		Store:    StoreConfig{DBPath: "/tmp/test.db"},
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad environment", func(c *Config) { c.App.Environment = "prod" }},
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }},
		{"bad provider", func(c *Config) { c.AI.Provider = "openai" }},
		{"zero prefetch count", func(c *Config) { c.Prefetch.Count = 0 }},
		{"zero concurrency", func(c *Config) { c.Prefetch.MaxConcurrent = 0 }},
		{"empty db path", func(c *Config) { c.Store.DBPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSplitKeys(t *testing.T) {
	got := splitKeys("key-a, key-b ,,key-c")
	assert.Equal(t, []string{"key-a", "key-b", "key-c"}, got)
	assert.Nil(t, splitKeys(""))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := expandPath("~/books", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "books"), got)

	got, err = expandPath("", "/default/path")
	require.NoError(t, err)
	assert.Equal(t, "/default/path", got)
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("NOVELDECK_TEST_KEY", "from-env")

	assert.Equal(t, "from-flag", getConfigValue("from-flag", "NOVELDECK_TEST_KEY", "default"))
	assert.Equal(t, "from-env", getConfigValue("", "NOVELDECK_TEST_KEY", "default"))
	assert.Equal(t, "default", getConfigValue("", "NOVELDECK_MISSING_KEY", "default"))
}

func TestParseDurationValue(t *testing.T) {
	t.Setenv("NOVELDECK_TEST_TIMEOUT", "45s")
	d, err := parseDurationValue("NOVELDECK_TEST_TIMEOUT", "10s")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)

	t.Setenv("NOVELDECK_TEST_TIMEOUT", "not-a-duration")
	_, err = parseDurationValue("NOVELDECK_TEST_TIMEOUT", "10s")
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment\nNOVELDECK_ENVFILE_A=hello\nNOVELDECK_ENVFILE_B=\"quoted\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("NOVELDECK_ENVFILE_A")
		os.Unsetenv("NOVELDECK_ENVFILE_B")
	})

	require.NoError(t, loadEnvFile(envPath))
	assert.Equal(t, "hello", os.Getenv("NOVELDECK_ENVFILE_A"))
	assert.Equal(t, "quoted", os.Getenv("NOVELDECK_ENVFILE_B"), "quotes should be stripped")
}
