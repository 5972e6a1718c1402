// ABOUTME: Interactive init command that writes a starter relay.toml
// ABOUTME: Prompts for Telegram, agent and optional Matrix settings

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/coven-relay/internal/config"
)

// initAnswers are the values gathered by the init prompts.
type initAnswers struct {
	BotToken     string
	AllowedUsers []string
	Workspace    string
	ClaudePath   string
	SessionsPath string

	Matrix          bool
	Homeserver      string
	MatrixUser      string
	MatrixPassword  string
	CommandPrefix   string
	MatrixAllowList []string
}

func runInit(configPath string, stdin io.Reader) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println("    Interactive Setup")
	fmt.Println("    -----------------")
	fmt.Println()

	reader := bufio.NewReader(stdin)
	ask := func(prompt, def string) string {
		green.Print("    ▶ ")
		if def != "" {
			fmt.Printf("%s [%s]: ", prompt, def)
		} else {
			fmt.Printf("%s: ", prompt)
		}
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return def
		}
		return answer
	}

	if _, err := os.Stat(configPath); err == nil {
		yellow.Printf("    Config already exists at %s\n", configPath)
		if strings.ToLower(ask("Overwrite? [y/N]", "")) != "y" {
			fmt.Println("    Aborted.")
			return nil
		}
		fmt.Println()
	}

	home, _ := os.UserHomeDir()
	var a initAnswers
	a.BotToken = ask("Telegram bot token (from @BotFather, empty to skip)", "")
	a.AllowedUsers = config.ParseIDList(ask("Allowed Telegram user IDs, comma separated (empty = everyone)", ""))
	a.Workspace = ask("Claude workspace directory", home)
	a.ClaudePath = ask("Path to the claude CLI", "claude")
	a.SessionsPath = ask("Session file", "~/.telegram-claude-sessions.json")

	a.Matrix = strings.ToLower(ask("Enable Matrix bridge? [y/N]", "")) == "y"
	if a.Matrix {
		a.Homeserver = ask("Matrix homeserver URL", "https://matrix.org")
		a.MatrixUser = ask("Matrix username", "")
		a.MatrixPassword = ask("Matrix password", "")
		a.CommandPrefix = ask("Command prefix (optional, e.g. '!claude ')", "")
		a.MatrixAllowList = config.ParseIDList(ask("Allowed Matrix user IDs, comma separated (empty = everyone)", ""))
	}

	if a.BotToken == "" && !a.Matrix {
		yellow.Println("    No frontend configured; set TELEGRAM_BOT_TOKEN before running.")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(renderInitConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println()
	green.Printf("    ✓ Config written to %s\n", configPath)
	fmt.Println()
	fmt.Println("    Next steps:")
	fmt.Println("    1. Put a CLAUDE.md in the workspace describing your setup")
	fmt.Println("    2. Run: coven-relay")
	fmt.Println()

	return nil
}

func renderInitConfig(a initAnswers) string {
	var b strings.Builder

	b.WriteString("# coven-relay configuration\n# Generated by coven-relay init\n\n")

	b.WriteString("[telegram]\n")
	fmt.Fprintf(&b, "bot_token = %s\n", tomlString(a.BotToken))
	b.WriteString("# Telegram user IDs allowed to talk to the bot (empty = everyone)\n")
	fmt.Fprintf(&b, "allowed_users = %s\n", tomlIDs(a.AllowedUsers))
	b.WriteString("poll_timeout = \"30s\"\n\n")

	b.WriteString("[agent]\n")
	fmt.Fprintf(&b, "binary = %s\n", tomlString(a.ClaudePath))
	fmt.Fprintf(&b, "workspace = %s\n", tomlString(a.Workspace))
	b.WriteString("# Per-run limit; empty means none\ntimeout = \"\"\n\n")

	b.WriteString("[sessions]\n")
	b.WriteString("# \"file\" (JSON document) or \"sqlite\"\nbackend = \"file\"\n")
	fmt.Fprintf(&b, "path = %s\n\n", tomlString(a.SessionsPath))

	b.WriteString("[matrix]\n")
	fmt.Fprintf(&b, "enabled = %t\n", a.Matrix)
	fmt.Fprintf(&b, "homeserver = %s\n", tomlString(a.Homeserver))
	fmt.Fprintf(&b, "username = %s\n", tomlString(a.MatrixUser))
	fmt.Fprintf(&b, "password = %s\n", tomlString(a.MatrixPassword))
	fmt.Fprintf(&b, "allowed_users = %s\n", tomlIDs(a.MatrixAllowList))
	b.WriteString("# Only respond in these rooms (empty = all joined rooms)\nallowed_rooms = []\n")
	b.WriteString("# Require messages start with this prefix (empty = respond to all)\n")
	fmt.Fprintf(&b, "command_prefix = %s\n", tomlString(a.CommandPrefix))
	b.WriteString("typing_indicator = true\n\n")

	b.WriteString("[logging]\nlevel = \"info\"\nformat = \"text\"\n")

	return b.String()
}

// tomlIDs writes numeric IDs bare and everything else quoted.
func tomlIDs(ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := strconv.ParseInt(id, 10, 64); err == nil {
			parts = append(parts, id)
		} else {
			parts = append(parts, tomlString(id))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// tomlString quotes s as a TOML basic string.
func tomlString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
