// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
//
// AI credentials, prompts, and endpoints are deliberately re-read from the
// loaded Config on every pipeline invocation rather than being captured
// inside services at startup, so edits take effect on the next call.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Library  LibraryConfig
	Store    StoreConfig
	AI       AIConfig
	Actions  ActionsConfig
	Prefetch PrefetchConfig
	TTS      TTSConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LibraryConfig holds the on-device book library layout.
type LibraryConfig struct {
	// BooksPath is the root directory holding unpacked books. Each book
	// lives at {BooksPath}/{bookID}/chapters/{n}.txt or .html.
	BooksPath string
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	// DBPath is the SQLite database file for the chapter cache,
	// auto-generate progress, and the audio segment index.
	DBPath string
}

// AIConfig holds AI provider configuration.
type AIConfig struct {
	// Provider selects the default backend: "gemini" or "local".
	Provider string
	// GeminiAPIKeys is the credential pool for the cloud provider.
	// The provider rotates to the next key on quota/permission errors.
	GeminiAPIKeys []string
	// GeminiBaseURL overrides the cloud endpoint (tests, proxies).
	GeminiBaseURL string
	// GeminiModel is the generation model name.
	GeminiModel string
	// LocalEndpoint is the base URL of the local chat-completions server.
	LocalEndpoint string
	// LocalModel is the model name sent to the local endpoint.
	LocalModel string
	// MaxRetries bounds attempts per provider call (default: 3).
	MaxRetries int
	// RequestsPerSecond limits outbound provider calls (default: 1).
	RequestsPerSecond float64
	// Timeout bounds a single provider round trip (default: 120s).
	Timeout time.Duration
}

// ActionsConfig holds the user-editable AI action list location.
type ActionsConfig struct {
	// Path is the JSON file holding action definitions. Watched for
	// changes and reloaded live; built-in translate/summary actions are
	// always available even without a file.
	Path string
}

// PrefetchConfig holds background chapter generation configuration.
type PrefetchConfig struct {
	// Count is the forward window size (default: 3).
	Count int
	// MaxConcurrent is the number of chapters generated at once (default: 2).
	MaxConcurrent int
	// TaskDelay is the pause after each generated chapter to stay under
	// provider rate limits (default: 2s).
	TaskDelay time.Duration
}

// TTSConfig holds speech synthesis configuration.
type TTSConfig struct {
	// Endpoint is the websocket synthesis URL.
	Endpoint string
	// Token authenticates the task-start message.
	Token string
	// Voice is the speaker/voice identifier.
	Voice string
	// Format is the audio container (default: mp3).
	Format string
	// SampleRate in Hz (default: 24000).
	SampleRate int
	// CachePath is the directory for cached audio files
	// (default: {db dir}/cache/audio).
	CachePath string
	// Timeout is the per-attempt network watchdog (default: 20s).
	Timeout time.Duration
	// MaxRetries bounds per-sentence attempts (default: 2).
	MaxRetries int
	// RetryDelay is the fixed backoff between attempts (default: 1s).
	RetryDelay time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	booksPath := flag.String("books-path", "", "Root directory of unpacked books")
	dbPath := flag.String("db-path", "", "SQLite database path")
	serverPort := flag.String("port", "", "Server port (default: 8080)")

	aiProvider := flag.String("ai-provider", "", "AI provider (gemini or local)")
	geminiKeys := flag.String("gemini-api-keys", "", "Comma-separated Gemini API key pool")
	geminiModel := flag.String("gemini-model", "", "Gemini model name")
	localEndpoint := flag.String("local-endpoint", "", "Local chat-completions base URL")
	localModel := flag.String("local-model", "", "Local model name")

	actionsPath := flag.String("actions-path", "", "Path to the AI actions JSON file")

	prefetchCount := flag.String("prefetch-count", "", "Prefetch window size (default: 3)")
	prefetchConcurrent := flag.String("prefetch-max-concurrent", "", "Max concurrent prefetch tasks (default: 2)")

	ttsEndpoint := flag.String("tts-endpoint", "", "TTS websocket endpoint URL")
	ttsToken := flag.String("tts-token", "", "TTS auth token")
	ttsVoice := flag.String("tts-voice", "", "TTS voice identifier")
	ttsCachePath := flag.String("tts-cache-path", "", "Directory for cached audio files")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Library: LibraryConfig{
			BooksPath: getConfigValue(*booksPath, "BOOKS_PATH", ""),
		},
		Store: StoreConfig{
			DBPath: getConfigValue(*dbPath, "DB_PATH", ""),
		},
		AI: AIConfig{
			Provider:          getConfigValue(*aiProvider, "AI_PROVIDER", "gemini"),
			GeminiAPIKeys:     splitKeys(getConfigValue(*geminiKeys, "GEMINI_API_KEYS", "")),
			GeminiBaseURL:     getConfigValue("", "GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			GeminiModel:       getConfigValue(*geminiModel, "GEMINI_MODEL", "gemini-2.0-flash"),
			LocalEndpoint:     getConfigValue(*localEndpoint, "LOCAL_AI_ENDPOINT", "http://127.0.0.1:8081"),
			LocalModel:        getConfigValue(*localModel, "LOCAL_AI_MODEL", ""),
			MaxRetries:        getIntConfigValue("", "AI_MAX_RETRIES", 3),
			RequestsPerSecond: getFloatConfigValue("", "AI_REQUESTS_PER_SECOND", 1),
		},
		Actions: ActionsConfig{
			Path: getConfigValue(*actionsPath, "ACTIONS_PATH", ""),
		},
		Prefetch: PrefetchConfig{
			Count:         getIntConfigValue(*prefetchCount, "PREFETCH_COUNT", 3),
			MaxConcurrent: getIntConfigValue(*prefetchConcurrent, "PREFETCH_MAX_CONCURRENT", 2),
		},
		TTS: TTSConfig{
			Endpoint:   getConfigValue(*ttsEndpoint, "TTS_ENDPOINT", ""),
			Token:      getConfigValue(*ttsToken, "TTS_TOKEN", ""),
			Voice:      getConfigValue(*ttsVoice, "TTS_VOICE", "default"),
			Format:     getConfigValue("", "TTS_FORMAT", "mp3"),
			SampleRate: getIntConfigValue("", "TTS_SAMPLE_RATE", 24000),
			CachePath:  getConfigValue(*ttsCachePath, "TTS_CACHE_PATH", ""),
			MaxRetries: getIntConfigValue("", "TTS_MAX_RETRIES", 2),
		},
	}

	// Parse durations.
	var err error
	if cfg.Server.ReadTimeout, err = parseDurationValue("SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue("SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue("SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.AI.Timeout, err = parseDurationValue("AI_TIMEOUT", "120s"); err != nil {
		return nil, err
	}
	if cfg.Prefetch.TaskDelay, err = parseDurationValue("PREFETCH_TASK_DELAY", "2s"); err != nil {
		return nil, err
	}
	if cfg.TTS.Timeout, err = parseDurationValue("TTS_TIMEOUT", "20s"); err != nil {
		return nil, err
	}
	if cfg.TTS.RetryDelay, err = parseDurationValue("TTS_RETRY_DELAY", "1s"); err != nil {
		return nil, err
	}

	// Expand and default paths.
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.AI.Provider != "gemini" && c.AI.Provider != "local" {
		return fmt.Errorf("invalid AI provider: %s (must be gemini or local)", c.AI.Provider)
	}

	if c.Prefetch.Count < 1 {
		return errors.New("prefetch count must be at least 1")
	}
	if c.Prefetch.MaxConcurrent < 1 {
		return errors.New("prefetch max concurrent must be at least 1")
	}

	if c.Store.DBPath == "" {
		return errors.New("database path cannot be empty after expansion")
	}

	// BooksPath and AI credentials can be empty here - missing credentials
	// surface as NOT_CONFIGURED errors at call time, matching the
	// "configure later, use immediately" flow of the reader app.

	return nil
}

// expandPaths expands ~ and applies path defaults derived from the data dir.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	dataDir := filepath.Join(homeDir, "NovelDeck")

	if c.Store.DBPath, err = expandPath(c.Store.DBPath, filepath.Join(dataDir, "noveldeck.db")); err != nil {
		return fmt.Errorf("invalid db path: %w", err)
	}
	if c.Library.BooksPath != "" {
		if c.Library.BooksPath, err = expandPath(c.Library.BooksPath, ""); err != nil {
			return fmt.Errorf("invalid books path: %w", err)
		}
	}
	defaultAudio := filepath.Join(filepath.Dir(c.Store.DBPath), "cache", "audio")
	if c.TTS.CachePath, err = expandPath(c.TTS.CachePath, defaultAudio); err != nil {
		return fmt.Errorf("invalid tts cache path: %w", err)
	}
	if c.Actions.Path != "" {
		if c.Actions.Path, err = expandPath(c.Actions.Path, ""); err != nil {
			return fmt.Errorf("invalid actions path: %w", err)
		}
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// splitKeys splits a comma-separated credential list, dropping empties.
func splitKeys(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// parseDurationValue reads a duration from the environment with a default.
func parseDurationValue(envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue("", envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
