// ABOUTME: Configuration loading and parsing for coven-relay
// ABOUTME: Supports TOML or YAML files with env var expansion, env fallbacks and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Session storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

const (
	defaultBinary       = "claude"
	defaultSessionsPath = "~/.telegram-claude-sessions.json"
	defaultSQLitePath   = "~/.config/coven/relay-sessions.db"
	defaultPollTimeout  = 30 * time.Second
)

// Config represents the complete coven-relay configuration
type Config struct {
	Telegram TelegramConfig `toml:"telegram" yaml:"telegram"`
	Matrix   MatrixConfig   `toml:"matrix" yaml:"matrix"`
	Agent    AgentConfig    `toml:"agent" yaml:"agent"`
	Sessions SessionsConfig `toml:"sessions" yaml:"sessions"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
}

// TelegramConfig holds the Telegram bot settings
type TelegramConfig struct {
	BotToken     string `toml:"bot_token" yaml:"bot_token"`
	AllowedUsers IDList `toml:"allowed_users" yaml:"allowed_users"`
	APIURL       string `toml:"api_url" yaml:"api_url"`

	PollTimeout    time.Duration `toml:"-" yaml:"-"`
	PollTimeoutRaw string        `toml:"poll_timeout" yaml:"poll_timeout"`
}

// Enabled reports whether the Telegram frontend should run.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

// MatrixConfig holds the Matrix bridge settings
type MatrixConfig struct {
	Enabled         bool     `toml:"enabled" yaml:"enabled"`
	Homeserver      string   `toml:"homeserver" yaml:"homeserver"`
	Username        string   `toml:"username" yaml:"username"`
	Password        string   `toml:"password" yaml:"password"`
	AllowedUsers    IDList   `toml:"allowed_users" yaml:"allowed_users"`
	AllowedRooms    []string `toml:"allowed_rooms" yaml:"allowed_rooms"`
	CommandPrefix   string   `toml:"command_prefix" yaml:"command_prefix"`
	TypingIndicator bool     `toml:"typing_indicator" yaml:"typing_indicator"`
}

// AgentConfig describes how the claude CLI is run
type AgentConfig struct {
	Binary       string   `toml:"binary" yaml:"binary"`
	Workspace    string   `toml:"workspace" yaml:"workspace"`
	AllowedTools []string `toml:"allowed_tools" yaml:"allowed_tools"`

	// Timeout of zero means no limit.
	Timeout    time.Duration `toml:"-" yaml:"-"`
	TimeoutRaw string        `toml:"timeout" yaml:"timeout"`
}

// SessionsConfig selects where session tokens are kept
type SessionsConfig struct {
	Backend string `toml:"backend" yaml:"backend"`
	Path    string `toml:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Load reads the configuration at path. A missing file is not an error: the
// environment fallbacks and defaults still apply, and Validate decides whether
// the result is usable. Files ending in .yaml or .yml are parsed as YAML,
// everything else as TOML.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, expandEnvVars(string(data)), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) || path == "":
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func decode(path, content string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal([]byte(content), cfg)
	default:
		_, err := toml.Decode(content, cfg)
		return err
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyEnv fills unset fields from the variables the relay has always read.
func applyEnv(cfg *Config) {
	if cfg.Telegram.BotToken == "" {
		cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if len(cfg.Telegram.AllowedUsers) == 0 {
		cfg.Telegram.AllowedUsers = ParseIDList(os.Getenv("ALLOWED_USERS"))
	}
	if cfg.Agent.Workspace == "" {
		cfg.Agent.Workspace = os.Getenv("CLAUDE_WORKSPACE")
	}
	if cfg.Agent.Binary == "" {
		cfg.Agent.Binary = os.Getenv("CLAUDE_PATH")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Agent.Binary == "" {
		cfg.Agent.Binary = defaultBinary
	}
	if cfg.Agent.Workspace == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Agent.Workspace = home
		}
	}
	cfg.Agent.Workspace = expandHome(cfg.Agent.Workspace)

	if cfg.Sessions.Backend == "" {
		cfg.Sessions.Backend = BackendFile
	}
	if cfg.Sessions.Path == "" {
		cfg.Sessions.Path = defaultSessionsPath
		if cfg.Sessions.Backend == BackendSQLite {
			cfg.Sessions.Path = defaultSQLitePath
		}
	}
	cfg.Sessions.Path = expandHome(cfg.Sessions.Path)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Telegram.Enabled() && !c.Matrix.Enabled {
		return fmt.Errorf("no frontend configured: set telegram.bot_token (or TELEGRAM_BOT_TOKEN) or enable matrix")
	}

	if c.Telegram.APIURL != "" {
		if err := validateHTTPURL(c.Telegram.APIURL); err != nil {
			return fmt.Errorf("telegram.api_url: %w", err)
		}
	}

	if c.Matrix.Enabled {
		if c.Matrix.Homeserver == "" {
			return fmt.Errorf("matrix.homeserver is required when matrix is enabled")
		}
		if err := validateHTTPURL(c.Matrix.Homeserver); err != nil {
			return fmt.Errorf("matrix.homeserver: %w", err)
		}
		if c.Matrix.Username == "" {
			return fmt.Errorf("matrix.username is required when matrix is enabled")
		}
		if c.Matrix.Password == "" {
			return fmt.Errorf("matrix.password is required when matrix is enabled")
		}
	}

	if c.Agent.Binary == "" {
		return fmt.Errorf("agent.binary is required")
	}

	switch c.Sessions.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("sessions.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Sessions.Backend)
	}
	if c.Sessions.Path == "" {
		return fmt.Errorf("sessions.path is required")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	cfg.Telegram.PollTimeout = defaultPollTimeout
	if cfg.Telegram.PollTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Telegram.PollTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_timeout %q: %w", cfg.Telegram.PollTimeoutRaw, err)
		}
		if d < time.Second {
			return fmt.Errorf("poll_timeout must be at least 1s, got %s", d)
		}
		cfg.Telegram.PollTimeout = d
	}

	if cfg.Agent.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Agent.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Agent.TimeoutRaw, err)
		}
		if d < 0 {
			return fmt.Errorf("timeout must not be negative, got %s", d)
		}
		cfg.Agent.Timeout = d
	}

	return nil
}

// DefaultPath returns the config file location.
// Priority: COVEN_RELAY_CONFIG env var > XDG_CONFIG_HOME/coven/relay.toml > ~/.config/coven/relay.toml
func DefaultPath() string {
	if envPath := os.Getenv("COVEN_RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "relay.toml")
}
