// ABOUTME: Telegram frontend: long polling loop, reply delivery and typing indicator
// ABOUTME: Wraps the Bot API client so shutdown cancels in-flight requests

package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/2389/coven-relay/internal/dedupe"
	"github.com/2389/coven-relay/internal/relay"
)

const (
	// DefaultAPIURL is the public Bot API server.
	DefaultAPIURL = "https://api.telegram.org"

	// DefaultPollTimeout is how long one getUpdates call waits for updates.
	DefaultPollTimeout = 30 * time.Second

	// typingInterval refreshes the chat action before Telegram's 5s expiry.
	typingInterval = 4 * time.Second

	retryDelay  = 3 * time.Second
	sendTimeout = 30 * time.Second
)

// Config holds the bot settings.
type Config struct {
	Token       string
	APIURL      string
	PollTimeout time.Duration

	// HTTPClient is used for every API call. Nil selects a client whose
	// timeout exceeds the poll timeout.
	HTTPClient *http.Client
}

// Handler answers one inbound message. *relay.Dispatcher implements it.
type Handler interface {
	Handle(ctx context.Context, msg relay.Message) *relay.Reply
}

// Bot is a running Telegram frontend.
type Bot struct {
	api         *tgbotapi.BotAPI
	handler     Handler
	seen        *dedupe.Cache
	pollTimeout time.Duration
	logger      *slog.Logger

	// ctx scopes every API call and turn; cancelled when Run's context ends.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New connects to the Bot API and validates the token with getMe. seen may be
// nil to disable duplicate suppression.
func New(cfg Config, handler Handler, seen *dedupe.Cache, logger *slog.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	apiURL := strings.TrimSuffix(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: pollTimeout + 15*time.Second}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		handler:     handler,
		seen:        seen,
		pollTimeout: pollTimeout,
		logger:      logger.With("component", "telegram"),
		ctx:         ctx,
		cancel:      cancel,
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, apiURL+"/bot%s/%s", &contextClient{ctx: ctx, client: httpClient})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	b.api = api
	return b, nil
}

// Username returns the bot's @name without the @.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Run polls for updates until ctx is cancelled, then waits for running turns
// to wind down.
func (b *Bot) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, b.cancel)
	defer stop()
	defer b.cancel()

	b.logger.Info("telegram bot running", "username", b.Username())

	offset := 0
	for b.ctx.Err() == nil {
		req := tgbotapi.NewUpdate(offset)
		req.Timeout = int(b.pollTimeout / time.Second)
		req.AllowedUpdates = []string{"message"}

		updates, err := b.api.GetUpdates(req)
		if err != nil {
			if b.ctx.Err() != nil {
				break
			}
			b.logger.Warn("get updates failed, retrying", "error", err, "retry_in", retryDelay)
			select {
			case <-time.After(retryDelay):
			case <-b.ctx.Done():
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.dispatch(u)
		}
	}

	b.logger.Info("shutting down telegram bot")
	b.wg.Wait()
	return nil
}

// dispatch hands one update to the handler on its own goroutine.
func (b *Bot) dispatch(u tgbotapi.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	key := dedupe.Key("telegram", strconv.FormatInt(msg.Chat.ID, 10), strconv.Itoa(msg.MessageID))
	if b.seen != nil && b.seen.Seen(key) {
		b.logger.Debug("dropping duplicate message", "update_id", u.UpdateID)
		return
	}

	chatID := msg.Chat.ID
	in := relay.Message{
		User:   strconv.FormatInt(msg.From.ID, 10),
		Text:   msg.Text,
		Voice:  msg.Voice != nil || msg.Audio != nil,
		Typing: b.typing(chatID),
	}

	b.logger.Debug("received message", "user", in.User, "chat_id", chatID, "length", len(in.Text))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		reply := b.handler.Handle(b.ctx, in)
		if reply != nil {
			b.send(chatID, msg.MessageID, reply)
		}
	}()
}

// send delivers reply, retrying as plain text if Telegram rejects the HTML.
func (b *Bot) send(chatID int64, replyTo int, reply *relay.Reply) {
	cfg := tgbotapi.NewMessage(chatID, reply.Text)
	cfg.ReplyToMessageID = replyTo
	cfg.AllowSendingWithoutReply = true
	if reply.HTML {
		cfg.ParseMode = tgbotapi.ModeHTML
	}

	_, err := b.api.Send(cfg)
	if err != nil && reply.HTML && isParseError(err) {
		b.logger.Warn("telegram rejected html, resending as plain text", "chat_id", chatID, "error", err)
		cfg.ParseMode = ""
		_, err = b.api.Send(cfg)
	}
	if err != nil {
		b.logger.Error("failed to send message", "chat_id", chatID, "error", err)
		return
	}

	b.logger.Debug("sent reply", "chat_id", chatID, "length", len(reply.Text))
}

// typing returns a relay typing hook that keeps the chat action alive. The
// stop function returns at once; an action already in flight finishes on its
// own and never holds back the reply.
func (b *Bot) typing(chatID int64) func(ctx context.Context) func() {
	return func(ctx context.Context) func() {
		ctx, cancel := context.WithCancel(ctx)

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			ticker := time.NewTicker(typingInterval)
			defer ticker.Stop()
			for ctx.Err() == nil {
				if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
					b.logger.Debug("failed to send typing action", "chat_id", chatID, "error", err)
				}
				select {
				case <-ticker.C:
				case <-ctx.Done():
				}
			}
		}()

		return cancel
	}
}

// isParseError reports a Bot API rejection of malformed HTML entities.
func isParseError(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Message), "can't parse entities")
}

// contextClient ties every Bot API request to the bot's lifetime, so a
// pending long poll returns as soon as the bot stops.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c *contextClient) Do(req *http.Request) (*http.Response, error) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if strings.HasSuffix(req.URL.Path, "/getUpdates") {
		// Long polls are bounded by the client timeout.
		ctx, cancel = context.WithCancel(c.ctx)
	} else {
		ctx, cancel = context.WithTimeout(c.ctx, sendTimeout)
	}

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request context once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
