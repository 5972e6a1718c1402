// ABOUTME: Transport-neutral dispatcher for inbound chat messages
// ABOUTME: Applies the allowlist, answers commands, and runs agent turns one per user

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/2389/coven-relay/internal/conversation"
	"github.com/2389/coven-relay/internal/render"
)

// Fixed replies.
const (
	NotAuthorized    = "Not authorized."
	SessionCleared   = "Session cleared. Next message starts fresh."
	ClearFailed      = "Could not clear the session. Try again."
	Busy             = "Still working on your previous message."
	VoiceUnsupported = "Voice messages are not supported. Send text instead."
	Greeting         = "Hi! Send me a message and I'll pass it to Claude.\n\n" +
		"/new starts a fresh conversation.\n/status shows your session."
)

// Conversation is the subset of the gateway the dispatcher uses.
type Conversation interface {
	Turn(ctx context.Context, user, message string) *conversation.Result
	Reset(ctx context.Context, user string) error
	HasSession(ctx context.Context, user string) (bool, error)
}

// Message is one inbound chat message.
type Message struct {
	// User identifies the sender: a decimal Telegram ID or a Matrix user ID.
	User string

	Text string

	// Voice marks audio content, which is answered with VoiceUnsupported.
	Voice bool

	// Typing, if set, is called when an agent turn starts. The returned
	// function is called when the turn ends.
	Typing func(ctx context.Context) (stop func())
}

// Reply is what the frontend should send back.
type Reply struct {
	Text string

	// HTML is true when Text is rendered restricted HTML rather than plain text.
	HTML bool
}

// Dispatcher routes messages to commands or agent turns.
type Dispatcher struct {
	conv    Conversation
	allowed map[string]struct{}
	logger  *slog.Logger

	// inflight holds users with a running turn.
	inflight sync.Map
}

// New creates a Dispatcher. An empty allowlist admits everyone.
func New(conv Conversation, allowedUsers []string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowedUsers))
	for _, u := range allowedUsers {
		if u = strings.TrimSpace(u); u != "" {
			allowed[u] = struct{}{}
		}
	}
	return &Dispatcher{
		conv:    conv,
		allowed: allowed,
		logger:  logger.With("component", "relay"),
	}
}

// Authorized reports whether user may talk to the agent.
func (d *Dispatcher) Authorized(user string) bool {
	if len(d.allowed) == 0 {
		return true
	}
	_, ok := d.allowed[user]
	return ok
}

// Handle processes msg. A nil Reply means nothing should be sent.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) *Reply {
	if !d.Authorized(msg.User) {
		d.logger.Warn("rejected unauthorized user", "user", msg.User)
		return plain(NotAuthorized)
	}
	if msg.Voice {
		return plain(VoiceUnsupported)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	if name, ok := ParseCommand(text); ok {
		return d.command(ctx, msg.User, name)
	}
	return d.turn(ctx, msg, text)
}

func (d *Dispatcher) command(ctx context.Context, user, name string) *Reply {
	switch name {
	case "start":
		return plain(Greeting)

	case "new":
		if err := d.conv.Reset(ctx, user); err != nil {
			d.logger.Error("failed to clear session", "user", user, "error", err)
			return plain(ClearFailed)
		}
		d.logger.Info("session cleared", "user", user)
		return plain(SessionCleared)

	case "status":
		active, err := d.conv.HasSession(ctx, user)
		if err != nil {
			d.logger.Warn("failed to read sessions", "user", user, "error", err)
		}
		return plain(statusText(user, active))

	default:
		d.logger.Debug("ignoring unknown command", "user", user, "command", name)
		return nil
	}
}

func (d *Dispatcher) turn(ctx context.Context, msg Message, text string) *Reply {
	if _, running := d.inflight.LoadOrStore(msg.User, struct{}{}); running {
		d.logger.Debug("turn already running", "user", msg.User)
		return plain(Busy)
	}
	defer d.inflight.Delete(msg.User)

	if msg.Typing != nil {
		stop := msg.Typing(ctx)
		defer stop()
	}

	result := d.conv.Turn(ctx, msg.User, text)
	return &Reply{Text: render.Reply(result.Text), HTML: true}
}

// ParseCommand extracts the command name from "/name", "/name args" or
// "/name@botname". Names are lower-cased.
func ParseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word, _, _ := strings.Cut(text[1:], " ")
	word, _, _ = strings.Cut(word, "\n")
	word, _, _ = strings.Cut(word, "@")
	if word == "" {
		return "", false
	}
	return strings.ToLower(word), true
}

func statusText(user string, active bool) string {
	return fmt.Sprintf("User ID: %s\nActive session: %s\nVoice enabled: No", user, yesNo(active))
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func plain(text string) *Reply {
	return &Reply{Text: text}
}
