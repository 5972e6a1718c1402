// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers TOML and YAML loading, env var expansion, env fallbacks and validation

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// clearRelayEnv unsets the fallback variables so the host environment does
// not leak into tests.
func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"TELEGRAM_BOT_TOKEN", "ALLOWED_USERS", "CLAUDE_WORKSPACE", "CLAUDE_PATH", "COVEN_RELAY_CONFIG"} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_TOML(t *testing.T) {
	clearRelayEnv(t)
	path := writeConfig(t, "relay.toml", `
[telegram]
bot_token = "123:abc"
allowed_users = [12345, "67890"]
poll_timeout = "45s"

[matrix]
enabled = true
homeserver = "https://matrix.example.org"
username = "relay"
password = "secret"
allowed_users = ["@alice:example.org"]
allowed_rooms = ["!room:example.org"]
command_prefix = "!claude "
typing_indicator = true

[agent]
binary = "/usr/local/bin/claude"
workspace = "/srv/workspace"
allowed_tools = ["Read", "Grep"]
timeout = "10m"

[sessions]
backend = "sqlite"
path = "/var/lib/coven/sessions.db"

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.BotToken != "123:abc" {
		t.Errorf("Telegram.BotToken = %q", cfg.Telegram.BotToken)
	}
	if want := (IDList{"12345", "67890"}); !reflect.DeepEqual(cfg.Telegram.AllowedUsers, want) {
		t.Errorf("Telegram.AllowedUsers = %v, want %v", cfg.Telegram.AllowedUsers, want)
	}
	if cfg.Telegram.PollTimeout != 45*time.Second {
		t.Errorf("Telegram.PollTimeout = %v", cfg.Telegram.PollTimeout)
	}
	if !cfg.Matrix.Enabled || cfg.Matrix.CommandPrefix != "!claude " || !cfg.Matrix.TypingIndicator {
		t.Errorf("Matrix = %+v", cfg.Matrix)
	}
	if want := (IDList{"@alice:example.org"}); !reflect.DeepEqual(cfg.Matrix.AllowedUsers, want) {
		t.Errorf("Matrix.AllowedUsers = %v", cfg.Matrix.AllowedUsers)
	}
	if cfg.Agent.Binary != "/usr/local/bin/claude" || cfg.Agent.Workspace != "/srv/workspace" {
		t.Errorf("Agent = %+v", cfg.Agent)
	}
	if !reflect.DeepEqual(cfg.Agent.AllowedTools, []string{"Read", "Grep"}) {
		t.Errorf("Agent.AllowedTools = %v", cfg.Agent.AllowedTools)
	}
	if cfg.Agent.Timeout != 10*time.Minute {
		t.Errorf("Agent.Timeout = %v", cfg.Agent.Timeout)
	}
	if cfg.Sessions.Backend != BackendSQLite || cfg.Sessions.Path != "/var/lib/coven/sessions.db" {
		t.Errorf("Sessions = %+v", cfg.Sessions)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_YAML(t *testing.T) {
	clearRelayEnv(t)
	path := writeConfig(t, "relay.yaml", `
telegram:
  bot_token: "123:abc"
  allowed_users:
    - 12345
    - 67890
agent:
  workspace: "/srv/workspace"
sessions:
  backend: file
  path: "/tmp/sessions.json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.BotToken != "123:abc" {
		t.Errorf("Telegram.BotToken = %q", cfg.Telegram.BotToken)
	}
	if want := (IDList{"12345", "67890"}); !reflect.DeepEqual(cfg.Telegram.AllowedUsers, want) {
		t.Errorf("Telegram.AllowedUsers = %v, want %v", cfg.Telegram.AllowedUsers, want)
	}
	if cfg.Sessions.Path != "/tmp/sessions.json" {
		t.Errorf("Sessions.Path = %q", cfg.Sessions.Path)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("TEST_RELAY_TOKEN", "from-env")
	path := writeConfig(t, "relay.toml", `
[telegram]
bot_token = "${TEST_RELAY_TOKEN}"

[agent]
workspace = "${TEST_RELAY_UNSET}/ws"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.BotToken != "from-env" {
		t.Errorf("Telegram.BotToken = %q, want from-env", cfg.Telegram.BotToken)
	}
	if cfg.Agent.Workspace != "/ws" {
		t.Errorf("Agent.Workspace = %q, want /ws", cfg.Agent.Workspace)
	}
}

func TestLoad_MissingFileUsesEnvironment(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("ALLOWED_USERS", "1, 2,,3")
	t.Setenv("CLAUDE_WORKSPACE", "/work")
	t.Setenv("CLAUDE_PATH", "/opt/claude")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.BotToken != "env-token" {
		t.Errorf("Telegram.BotToken = %q", cfg.Telegram.BotToken)
	}
	if want := (IDList{"1", "2", "3"}); !reflect.DeepEqual(cfg.Telegram.AllowedUsers, want) {
		t.Errorf("Telegram.AllowedUsers = %v, want %v", cfg.Telegram.AllowedUsers, want)
	}
	if cfg.Agent.Workspace != "/work" || cfg.Agent.Binary != "/opt/claude" {
		t.Errorf("Agent = %+v", cfg.Agent)
	}
}

func TestLoad_FileWinsOverEnvironment(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("CLAUDE_PATH", "/opt/claude")
	path := writeConfig(t, "relay.toml", `
[telegram]
bot_token = "file-token"

[agent]
binary = "claude-dev"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.BotToken != "file-token" {
		t.Errorf("Telegram.BotToken = %q, want file-token", cfg.Telegram.BotToken)
	}
	if cfg.Agent.Binary != "claude-dev" {
		t.Errorf("Agent.Binary = %q, want claude-dev", cfg.Agent.Binary)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearRelayEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, "relay.toml", "[telegram]\nbot_token = \"t\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.Binary != "claude" {
		t.Errorf("Agent.Binary = %q, want claude", cfg.Agent.Binary)
	}
	if cfg.Agent.Workspace != home {
		t.Errorf("Agent.Workspace = %q, want %q", cfg.Agent.Workspace, home)
	}
	if cfg.Agent.Timeout != 0 {
		t.Errorf("Agent.Timeout = %v, want 0", cfg.Agent.Timeout)
	}
	if cfg.Sessions.Backend != BackendFile {
		t.Errorf("Sessions.Backend = %q", cfg.Sessions.Backend)
	}
	if want := filepath.Join(home, ".telegram-claude-sessions.json"); cfg.Sessions.Path != want {
		t.Errorf("Sessions.Path = %q, want %q", cfg.Sessions.Path, want)
	}
	if cfg.Telegram.PollTimeout != 30*time.Second {
		t.Errorf("Telegram.PollTimeout = %v", cfg.Telegram.PollTimeout)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_SQLiteDefaultPath(t *testing.T) {
	clearRelayEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, "relay.toml", "[telegram]\nbot_token = \"t\"\n[sessions]\nbackend = \"sqlite\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := filepath.Join(home, ".config", "coven", "relay-sessions.db"); cfg.Sessions.Path != want {
		t.Errorf("Sessions.Path = %q, want %q", cfg.Sessions.Path, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "no frontend",
			file:    "relay.toml",
			content: "[logging]\nlevel = \"info\"\n",
			wantErr: "no frontend configured",
		},
		{
			name:    "bad toml",
			file:    "relay.toml",
			content: "[telegram\n",
			wantErr: "parsing config file",
		},
		{
			name:    "bad yaml",
			file:    "relay.yml",
			content: "telegram: [unclosed\n",
			wantErr: "parsing config file",
		},
		{
			name:    "matrix without homeserver",
			file:    "relay.toml",
			content: "[matrix]\nenabled = true\nusername = \"u\"\npassword = \"p\"\n",
			wantErr: "matrix.homeserver is required",
		},
		{
			name:    "matrix bad scheme",
			file:    "relay.toml",
			content: "[matrix]\nenabled = true\nhomeserver = \"ftp://x\"\nusername = \"u\"\npassword = \"p\"\n",
			wantErr: "http or https",
		},
		{
			name:    "matrix without password",
			file:    "relay.toml",
			content: "[matrix]\nenabled = true\nhomeserver = \"https://m.org\"\nusername = \"u\"\n",
			wantErr: "matrix.password is required",
		},
		{
			name:    "unknown backend",
			file:    "relay.toml",
			content: "[telegram]\nbot_token = \"t\"\n[sessions]\nbackend = \"redis\"\n",
			wantErr: "sessions.backend",
		},
		{
			name:    "bad duration",
			file:    "relay.toml",
			content: "[telegram]\nbot_token = \"t\"\n[agent]\ntimeout = \"soon\"\n",
			wantErr: "parsing timeout",
		},
		{
			name:    "poll timeout too short",
			file:    "relay.toml",
			content: "[telegram]\nbot_token = \"t\"\npoll_timeout = \"10ms\"\n",
			wantErr: "at least 1s",
		},
		{
			name:    "bad log format",
			file:    "relay.toml",
			content: "[telegram]\nbot_token = \"t\"\n[logging]\nformat = \"xml\"\n",
			wantErr: "logging.format",
		},
		{
			name:    "allowed user of wrong type",
			file:    "relay.toml",
			content: "[telegram]\nbot_token = \"t\"\nallowed_users = [1.5]\n",
			wantErr: "number or string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearRelayEnv(t)
			path := writeConfig(t, tt.file, tt.content)

			_, err := Load(path)
			if err == nil {
				t.Fatalf("Load() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseIDList(t *testing.T) {
	got := ParseIDList(" 1,2 ,, @a:b ")
	if want := (IDList{"1", "2", "@a:b"}); !reflect.DeepEqual(got, want) {
		t.Errorf("ParseIDList() = %v, want %v", got, want)
	}
	if got := ParseIDList(""); len(got) != 0 {
		t.Errorf("ParseIDList(\"\") = %v, want empty", got)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("COVEN_RELAY_CONFIG", "/etc/relay.toml")
	if got := DefaultPath(); got != "/etc/relay.toml" {
		t.Errorf("DefaultPath() = %q", got)
	}

	t.Setenv("COVEN_RELAY_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != "/xdg/coven/relay.toml" {
		t.Errorf("DefaultPath() = %q", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/u")
	if got := DefaultPath(); got != "/home/u/.config/coven/relay.toml" {
		t.Errorf("DefaultPath() = %q", got)
	}
}
