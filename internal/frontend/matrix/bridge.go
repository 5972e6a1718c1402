// ABOUTME: Matrix frontend: login, sync loop, invite handling and message routing
// ABOUTME: Converts rendered replies into Matrix HTML and sends them as m.text

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-relay/internal/dedupe"
	"github.com/2389/coven-relay/internal/relay"
)

// typingTimeout is how long one typing notification lasts on the server.
const typingTimeout = 30 * time.Second

// networkTimeout bounds typing and join calls.
const networkTimeout = 10 * time.Second

// sendTimeout bounds message sends, which can be large.
const sendTimeout = 30 * time.Second

// Config holds the bridge settings.
type Config struct {
	Homeserver string
	Username   string
	Password   string

	// AllowedRooms limits the bridge to these room IDs. Empty allows all.
	AllowedRooms []string

	// CommandPrefix, if set, must start a message for the bridge to answer.
	// It is stripped before dispatch.
	CommandPrefix string

	TypingIndicator bool
}

// Handler answers one inbound message. *relay.Dispatcher implements it.
type Handler interface {
	Handle(ctx context.Context, msg relay.Message) *relay.Reply
}

// Bridge connects Matrix rooms to the dispatcher.
type Bridge struct {
	config  Config
	client  *mautrix.Client
	handler Handler
	seen    *dedupe.Cache
	logger  *slog.Logger

	// startedAt filters out history the first sync replays.
	startedAt time.Time

	// ctx is the parent context for message goroutines.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bridge. Call Login before Run. seen may be nil.
func New(cfg Config, handler Handler, seen *dedupe.Cache, logger *slog.Logger) (*Bridge, error) {
	if cfg.Homeserver == "" {
		return nil, errors.New("matrix homeserver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mautrix.NewClient(cfg.Homeserver, "", "")
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		config:    cfg,
		client:    client,
		handler:   handler,
		seen:      seen,
		logger:    logger.With("component", "matrix"),
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Login authenticates with the configured username and password.
func (b *Bridge) Login(ctx context.Context) error {
	resp, err := b.client.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: b.config.Username,
		},
		Password:                 b.config.Password,
		InitialDeviceDisplayName: "coven-relay",
		StoreCredentials:         true,
	})
	if err != nil {
		return fmt.Errorf("logging in as %s: %w", b.config.Username, err)
	}

	b.logger.Info("logged in to matrix", "user_id", resp.UserID.String(), "device_id", resp.DeviceID.String())
	return nil
}

// UserID returns the logged-in account.
func (b *Bridge) UserID() id.UserID {
	return b.client.UserID
}

// Run syncs until ctx is cancelled or the sync fails.
func (b *Bridge) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, b.cancel)
	defer stop()
	defer b.wg.Wait()
	defer b.cancel()

	syncer, ok := b.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)
	syncer.OnEventType(event.StateMember, b.handleMemberEvent)

	b.startedAt = time.Now()
	b.logger.Info("matrix bridge running",
		"homeserver", b.config.Homeserver,
		"user_id", b.client.UserID.String(),
	)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.client.SyncWithContext(b.ctx)
	}()

	select {
	case <-b.ctx.Done():
		b.logger.Info("shutting down matrix bridge")
		return nil
	case err := <-syncErr:
		if b.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// handleMessageEvent filters an incoming message and dispatches it.
func (b *Bridge) handleMessageEvent(ctx context.Context, evt *event.Event) {
	if evt.Sender == b.client.UserID {
		return
	}
	if time.UnixMilli(evt.Timestamp).Before(b.startedAt) {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}

	roomID := evt.RoomID.String()
	if !b.isRoomAllowed(roomID) {
		b.logger.Debug("ignoring message from non-allowed room", "room", roomID)
		return
	}

	msg := relay.Message{User: evt.Sender.String()}
	switch content.MsgType {
	case event.MsgText:
		body, ok := b.stripPrefix(content.Body)
		if !ok {
			return
		}
		msg.Text = body
	case event.MsgAudio:
		msg.Voice = true
	default:
		return
	}

	if b.seen != nil && b.seen.Seen(dedupe.Key("matrix", evt.ID.String())) {
		b.logger.Debug("dropping duplicate event", "event_id", evt.ID.String())
		return
	}

	if b.config.TypingIndicator {
		msg.Typing = func(ctx context.Context) func() {
			b.setTyping(evt.RoomID, true)
			return func() { b.setTyping(evt.RoomID, false) }
		}
	}

	b.logger.Info("received message", "room", roomID, "user", msg.User, "length", len(msg.Text))

	// Dispatch off the sync goroutine.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		reply := b.handler.Handle(b.ctx, msg)
		if reply != nil {
			b.sendReply(evt.RoomID, reply)
		}
	}()
}

// handleMemberEvent accepts invites to allowed rooms.
func (b *Bridge) handleMemberEvent(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != b.client.UserID.String() {
		return
	}
	member := evt.Content.AsMember()
	if member.Membership != event.MembershipInvite {
		return
	}

	roomID := evt.RoomID.String()
	if !b.isRoomAllowed(roomID) {
		b.logger.Info("ignoring invite to non-allowed room", "room", roomID, "inviter", evt.Sender.String())
		return
	}

	joinCtx, cancel := context.WithTimeout(b.ctx, networkTimeout)
	defer cancel()
	if _, err := b.client.JoinRoomByID(joinCtx, evt.RoomID); err != nil {
		b.logger.Error("failed to join room", "room", roomID, "error", err)
		return
	}
	b.logger.Info("joined room", "room", roomID, "inviter", evt.Sender.String())
}

// stripPrefix applies the command prefix. ok is false when the message
// should be ignored.
func (b *Bridge) stripPrefix(body string) (string, bool) {
	if b.config.CommandPrefix != "" {
		if !strings.HasPrefix(body, b.config.CommandPrefix) {
			return "", false
		}
		body = strings.TrimPrefix(body, b.config.CommandPrefix)
	}
	body = strings.TrimSpace(body)
	return body, body != ""
}

// isRoomAllowed checks if the room is in the allowed list.
func (b *Bridge) isRoomAllowed(roomID string) bool {
	if len(b.config.AllowedRooms) == 0 {
		return true
	}
	for _, allowed := range b.config.AllowedRooms {
		if allowed == roomID {
			return true
		}
	}
	return false
}

// setTyping sends a typing notification for the room.
func (b *Bridge) setTyping(roomID id.RoomID, typing bool) {
	var timeout time.Duration
	if typing {
		timeout = typingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()
	if _, err := b.client.UserTyping(ctx, roomID, typing, timeout); err != nil {
		b.logger.Debug("failed to set typing indicator", "room", roomID.String(), "error", err)
	}
}

// sendReply posts reply to the room as m.text.
func (b *Bridge) sendReply(roomID id.RoomID, reply *relay.Reply) {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    reply.Text,
	}
	if reply.HTML {
		content.Format = event.FormatHTML
		content.FormattedBody = FormatHTML(reply.Text)
		content.Body = format.HTMLToText(content.FormattedBody)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if _, err := b.client.SendMessageEvent(ctx, roomID, event.EventMessage, content); err != nil {
		b.logger.Error("failed to send message", "room", roomID.String(), "error", err)
		return
	}
	b.logger.Debug("sent reply", "room", roomID.String(), "length", len(reply.Text))
}

// FormatHTML adapts relay HTML for Matrix clients, which collapse whitespace:
// newlines outside <pre> blocks become <br>.
func FormatHTML(s string) string {
	var out strings.Builder
	for {
		start := strings.Index(s, "<pre>")
		if start < 0 {
			out.WriteString(strings.ReplaceAll(s, "\n", "<br>"))
			return out.String()
		}
		out.WriteString(strings.ReplaceAll(s[:start], "\n", "<br>"))
		s = s[start:]

		end := strings.Index(s, "</pre>")
		if end < 0 {
			out.WriteString(s)
			return out.String()
		}
		end += len("</pre>")
		out.WriteString(s[:end])
		s = s[end:]
	}
}

