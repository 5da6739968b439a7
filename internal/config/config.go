package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration for the desktop app and the CLI.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Polling  PollingConfig  `yaml:"polling"`
	Text     TextConfig     `yaml:"text"`
	Settings SettingsConfig `yaml:"settings"`
	Audio    AudioConfig    `yaml:"audio"`
	Log      LogConfig      `yaml:"log"`

	// Source is the config file that was applied, if any.
	Source string `yaml:"-"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// Demo serves the backend contract in-process instead of calling BaseURL.
	Demo bool `yaml:"demo"`
}

type PollingConfig struct {
	Interval time.Duration `yaml:"interval"`
	Deadline time.Duration `yaml:"deadline"`
}

type TextConfig struct {
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	Cleanup           bool   `yaml:"cleanup"`
	RulesFile         string `yaml:"rules_file"`
}

type SettingsConfig struct {
	Dir            string `yaml:"dir"`
	KeyringService string `yaml:"keyring_service"`
}

type AudioConfig struct {
	ProbeCommand string `yaml:"probe_command"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load resolves configuration from defaults, an optional YAML file, a .env file
// in the working directory and environment variables, in that order of precedence
// from lowest to highest.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	configDir := filepath.Join(home, ".config", "audiotranslator")
	cfg := Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		Polling: PollingConfig{
			Interval: time.Second,
		},
		Text: TextConfig{
			SentencesPerChunk: 30,
			Cleanup:           true,
			RulesFile:         filepath.Join(configDir, "cleanup.rules"),
		},
		Settings: SettingsConfig{
			Dir:            configDir,
			KeyringService: "audiotranslator",
		},
		Audio: AudioConfig{ProbeCommand: "ffprobe"},
		Log:   LogConfig{Level: "info"},
	}

	path := envOrDefault("AUDIOTRANSLATOR_CONFIG", filepath.Join(configDir, "config.yaml"))
	if err := cfg.applyFile(path); err != nil {
		return Config{}, err
	}

	cfg.Backend.BaseURL = envOrDefault("AUDIOTRANSLATOR_BACKEND_URL", cfg.Backend.BaseURL)
	cfg.Backend.Timeout = envOrDefaultMillis("AUDIOTRANSLATOR_BACKEND_TIMEOUT_MS", cfg.Backend.Timeout)
	cfg.Backend.Demo = envOrDefaultBool("AUDIOTRANSLATOR_DEMO_BACKEND", cfg.Backend.Demo)
	cfg.Polling.Interval = envOrDefaultMillis("AUDIOTRANSLATOR_POLL_INTERVAL_MS", cfg.Polling.Interval)
	cfg.Polling.Deadline = envOrDefaultMillis("AUDIOTRANSLATOR_POLL_DEADLINE_MS", cfg.Polling.Deadline)
	cfg.Text.SentencesPerChunk = envOrDefaultInt("AUDIOTRANSLATOR_SENTENCES_PER_CHUNK", cfg.Text.SentencesPerChunk)
	cfg.Text.Cleanup = envOrDefaultBool("AUDIOTRANSLATOR_TEXT_CLEANUP", cfg.Text.Cleanup)
	cfg.Text.RulesFile = envOrDefault("AUDIOTRANSLATOR_RULES_FILE", cfg.Text.RulesFile)
	cfg.Settings.Dir = envOrDefault("AUDIOTRANSLATOR_SETTINGS_DIR", cfg.Settings.Dir)
	cfg.Settings.KeyringService = envOrDefault("AUDIOTRANSLATOR_KEYRING_SERVICE", cfg.Settings.KeyringService)
	cfg.Audio.ProbeCommand = envOrDefault("AUDIOTRANSLATOR_FFPROBE_COMMAND", cfg.Audio.ProbeCommand)
	cfg.Log.Level = envOrDefault("AUDIOTRANSLATOR_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = envOrDefault("AUDIOTRANSLATOR_LOG_FILE", cfg.Log.File)

	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Polling.Interval <= 0 {
		cfg.Polling.Interval = time.Second
	}
	if cfg.Polling.Deadline < 0 {
		cfg.Polling.Deadline = 0
	}
	if cfg.Text.SentencesPerChunk <= 0 {
		cfg.Text.SentencesPerChunk = 30
	}
	cfg.Text.RulesFile = expandHome(cfg.Text.RulesFile, home)
	cfg.Settings.Dir = expandHome(cfg.Settings.Dir, home)
	cfg.Log.File = expandHome(cfg.Log.File, home)

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(contents, c); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	c.Source = path
	return nil
}

// LogLevel maps the configured level name to the Wails logger level.
func (c LogConfig) LogLevel() logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "trace":
		return logger.TRACE
	case "debug":
		return logger.DEBUG
	case "warn", "warning":
		return logger.WARNING
	case "error":
		return logger.ERROR
	default:
		return logger.INFO
	}
}

func expandHome(path string, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
