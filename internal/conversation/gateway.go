// ABOUTME: Gateway runs one conversation turn between a chat user and the agent
// ABOUTME: Resumes the stored session, recovers from expired sessions, and persists new tokens

package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-relay/internal/agent"
	"github.com/2389/coven-relay/internal/render"
	"github.com/2389/coven-relay/internal/session"
)

// ContextPrompt is prepended to the first message of every new conversation.
const ContextPrompt = "First, silently read CLAUDE.md for context.\nThen respond to: "

// persistTimeout bounds each store write. Writes use their own context so a
// cancelled turn still records the token it received.
const persistTimeout = 5 * time.Second

// Result describes a finished turn.
type Result struct {
	// Text is the agent's reply (Markdown) or failure text. Never empty.
	Text string

	// Outcome is the kind of the last agent run.
	Outcome agent.Kind

	// SessionID is the user's stored token after the turn, empty if none.
	SessionID string

	// Resumed is true when the reply continued an existing conversation.
	Resumed bool

	// Expired is true when the stored token was rejected and dropped.
	Expired bool
}

// Gateway is the conversation layer between the dispatcher and the agent.
type Gateway struct {
	store  session.Store
	agent  agent.Invoker
	logger *slog.Logger
}

// New creates a Gateway.
func New(store session.Store, invoker agent.Invoker, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:  store,
		agent:  invoker,
		logger: logger.With("component", "conversation"),
	}
}

// Turn sends message on behalf of user and returns the reply.
//
// With a stored token the agent is asked to resume. If it reports the
// session as gone, the token is deleted (and persisted) before the message is
// retried as a fresh conversation with ContextPrompt prepended. A successful
// reply that carries a token replaces the stored one.
//
// Turn never fails: agent and store problems surface as reply text or log
// entries.
func (g *Gateway) Turn(ctx context.Context, user, message string) *Result {
	logger := g.logger.With("turn_id", uuid.New().String(), "user", user)

	record := g.load(ctx, logger)
	token := record[user]
	result := &Result{}

	var outcome agent.Outcome
	if token != "" {
		logger.Debug("resuming session", "session_id", token)
		outcome = g.agent.Invoke(ctx, agent.Request{Message: message, SessionID: token})

		if outcome.Kind == agent.SessionInvalid {
			logger.Info("session no longer valid, starting fresh", "session_id", token)
			delete(record, user)
			g.save(record, logger)
			token = ""
			result.Expired = true
		} else {
			result.Resumed = true
		}
	}

	if token == "" {
		logger.Debug("starting new session")
		outcome = g.agent.Invoke(ctx, agent.Request{Message: ContextPrompt + message})

		// Nothing was resumed, so expiry wording here is just failure text.
		if outcome.Kind == agent.SessionInvalid {
			outcome = agent.Outcome{Kind: agent.Failure, Raw: outcome.Raw}
		}
	}

	if outcome.Kind == agent.Success && outcome.SessionID != "" {
		record[user] = outcome.SessionID
		g.save(record, logger)
	}

	result.Outcome = outcome.Kind
	result.SessionID = record[user]
	result.Text = outcome.Text()
	if strings.TrimSpace(result.Text) == "" {
		result.Text = render.NoResponse
	}

	logger.Info("turn finished",
		"outcome", outcome.Kind.String(),
		"resumed", result.Resumed,
		"expired", result.Expired,
		"reply_length", len(result.Text),
	)
	return result
}

// Reset forgets the user's session so the next message starts fresh.
func (g *Gateway) Reset(ctx context.Context, user string) error {
	return g.store.Clear(ctx, user)
}

// HasSession reports whether a token is stored for user.
func (g *Gateway) HasSession(ctx context.Context, user string) (bool, error) {
	record, err := g.store.Load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := record[user]
	return ok, nil
}

// load reads the record, treating an unreadable store as empty.
func (g *Gateway) load(ctx context.Context, logger *slog.Logger) session.Record {
	record, err := g.store.Load(ctx)
	if err != nil {
		logger.Warn("failed to load sessions, continuing without", "error", err)
	}
	if record == nil {
		record = session.Record{}
	}
	return record
}

// save persists the record. Failures are logged, not retried: the previous
// document stays intact and the next turn tries again.
func (g *Gateway) save(record session.Record, logger *slog.Logger) {
	saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := g.store.Save(saveCtx, record); err != nil {
		logger.Error("failed to save sessions", "error", err)
	}
}
