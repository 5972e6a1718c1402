// ABOUTME: Claude CLI invoker: runs one agent turn as a subprocess
// ABOUTME: Fixed workspace and tool allowlist; output is handed to Classify

package agent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultAllowedTools is the tool allowlist passed on every run.
var DefaultAllowedTools = []string{
	"Read", "Write", "Edit", "Bash", "Glob", "Grep",
	"WebFetch", "WebSearch", "Task", "Skill",
}

// ClaudeConfig configures the subprocess.
type ClaudeConfig struct {
	Binary       string        // executable name or path, default "claude"
	Workspace    string        // working directory for every run
	AllowedTools []string      // default DefaultAllowedTools
	Timeout      time.Duration // zero means no limit
}

// Claude invokes the claude CLI once per request.
type Claude struct {
	binary    string
	workspace string
	tools     string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewClaude creates an invoker. Empty config fields take their defaults.
func NewClaude(cfg ClaudeConfig, logger *slog.Logger) *Claude {
	if logger == nil {
		logger = slog.Default()
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "claude"
	}
	tools := cfg.AllowedTools
	if len(tools) == 0 {
		tools = DefaultAllowedTools
	}
	return &Claude{
		binary:    binary,
		workspace: cfg.Workspace,
		tools:     strings.Join(tools, ","),
		timeout:   cfg.Timeout,
		logger:    logger.With("component", "agent"),
	}
}

// Args builds the command line for a request.
func (c *Claude) Args(req Request) []string {
	args := []string{
		"-p", req.Message,
		"--output-format", "json",
		"--allowedTools", c.tools,
	}
	if req.SessionID != "" {
		args = append(args, "--resume", req.SessionID)
	}
	return args
}

// Invoke runs the agent and classifies its output. A non-zero exit is not an
// error here: the agent reports problems on stdout/stderr, and Classify
// reads them. Only a process that never produced output is a bare Failure.
func (c *Claude) Invoke(ctx context.Context, req Request) Outcome {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	command := exec.CommandContext(ctx, c.binary, c.Args(req)...)
	command.Dir = c.workspace

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	start := time.Now()
	err := command.Run()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		c.logger.Error("agent run aborted",
			"error", ctx.Err(),
			"elapsed", elapsed,
			"resume", req.SessionID != "",
		)
		return Outcome{Kind: Failure, Raw: FallbackFailure}
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		c.logger.Error("starting agent failed", "binary", c.binary, "error", err)
		return Outcome{Kind: Failure, Raw: FallbackFailure}
	}

	outcome := Classify(stdout.Bytes(), stderr.Bytes())

	exitCode := 0
	if exitErr != nil {
		exitCode = exitErr.ExitCode()
	}
	c.logger.Debug("agent run finished",
		"outcome", outcome.Kind.String(),
		"exit_code", exitCode,
		"elapsed", elapsed,
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
		"resume", req.SessionID != "",
	)
	return outcome
}
