// ABOUTME: Minimal stand-in for the claude CLI, for running the relay without API access
// ABOUTME: Usage: fake-agent -p "message" [--output-format json] [--resume SESSION_ID]
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

// contextMarker ends the prefix the relay puts before every message.
const contextMarker = "Then respond to: "

func main() {
	os.Exit(respond(os.Args[1:], os.Stdout, os.Stderr))
}

// respond handles one invocation and returns the exit code.
//
// Resuming a session whose ID starts with "expired" reports a missing
// conversation. The message "fail" exits non-zero with a plain error.
func respond(args []string, stdout, stderr io.Writer) int {
	flagSet := pflag.NewFlagSet("fake-agent", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	prompt := flagSet.StringP("print", "p", "", "message to answer")
	format := flagSet.String("output-format", "text", "text or json")
	tools := flagSet.String("allowedTools", "", "comma separated tool allowlist")
	resume := flagSet.String("resume", "", "session to resume")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}

	if strings.HasPrefix(*resume, "expired") {
		fmt.Fprintf(stderr, "No conversation found with session ID: %s\n", *resume)
		return 1
	}

	_, message, found := strings.Cut(*prompt, contextMarker)
	if !found {
		message = *prompt
	}
	if strings.TrimSpace(message) == "fail" {
		fmt.Fprintln(stderr, "Error: simulated failure")
		return 1
	}

	sessionID := *resume
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	reply := echoReply(message, *tools)

	if *format != "json" {
		fmt.Fprintln(stdout, reply)
		return 0
	}
	out, err := json.Marshal(map[string]any{
		"type":       "result",
		"is_error":   false,
		"result":     reply,
		"session_id": sessionID,
	})
	if err != nil {
		fmt.Fprintf(stderr, "encoding result: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

func echoReply(input, tools string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "table") {
		return "Here is a **markdown** response:\n\n" +
			"- First item\n- Second item with `code`\n\n" +
			"| Tool | Allowed |\n|------|---------|\n| Read | yes |\n\n" +
			"> This is a blockquote.\n"
	}
	reply := fmt.Sprintf("Echo: **%s**", input)
	if tools != "" {
		reply += fmt.Sprintf("\n\n_Tools: %s_", strings.ReplaceAll(tools, ",", ", "))
	}
	return reply
}
