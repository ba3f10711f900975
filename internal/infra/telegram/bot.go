// Package telegram is the chat transport built on the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/core/format"
)

var (
	// ErrInvalidRecipient is returned when a user id is not a chat id.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrRecipientUnreachable is returned when Telegram refuses delivery for good.
	ErrRecipientUnreachable = errors.New("recipient unreachable")
)

// Config holds bot settings.
type Config struct {
	Token        string
	Endpoint     string // Bot API endpoint template, defaults to tgbotapi.APIEndpoint
	Debug        bool
	SendTimeout  time.Duration
	PollTimeout  time.Duration
	SendAttempts uint
	RetryDelay   time.Duration
}

// SendOptions controls message rendering.
type SendOptions struct {
	ParseMode      string
	ButtonText     string
	ButtonURL      string
	DisablePreview bool
}

// Request is an incoming chat message.
type Request struct {
	User    domain.UserID
	ChatID  int64
	From    string
	Command string // without the leading slash, empty for plain text
	Args    string
	Text    string
}

// Reply is sent back to the requesting chat. An empty Text sends nothing.
type Reply struct {
	Text    string
	Options SendOptions
}

// Handler answers one request.
type Handler func(ctx context.Context, req Request) Reply

// Bot sends notifications and dispatches incoming messages to handlers.
type Bot struct {
	sender *tgbotapi.BotAPI // short timeout client for sends
	poller *tgbotapi.BotAPI // long-poll client for updates

	pollTimeout  time.Duration
	sendAttempts uint
	retryDelay   time.Duration

	mu       sync.RWMutex
	commands map[string]Handler
	text     Handler
	fallback Handler

	log *slog.Logger
}

// New creates a bot and verifies the token with getMe.
func New(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60 * time.Second
	}
	if cfg.SendAttempts == 0 {
		cfg.SendAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	sender, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, &http.Client{Timeout: cfg.SendTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	// The long-poll request must outlive the server-side poll timeout
	poller, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, &http.Client{Timeout: cfg.PollTimeout + 10*time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	sender.Debug = cfg.Debug
	poller.Debug = cfg.Debug

	b := &Bot{
		sender:       sender,
		poller:       poller,
		pollTimeout:  cfg.PollTimeout,
		sendAttempts: cfg.SendAttempts,
		retryDelay:   cfg.RetryDelay,
		commands:     make(map[string]Handler),
		log:          slog.Default().With("component", "telegram"),
	}
	b.log.Info("Authorized on account", "username", sender.Self.UserName)

	return b, nil
}

// Username returns the bot's account name.
func (b *Bot) Username() string {
	return b.sender.Self.UserName
}

// OnCommand registers a handler for /name.
func (b *Bot) OnCommand(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands[strings.TrimPrefix(name, "/")] = h
}

// OnText registers the handler for plain, non-command messages.
func (b *Bot) OnText(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = h
}

// OnUnknownCommand registers the handler for commands without a handler.
func (b *Bot) OnUnknownCommand(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallback = h
}

// SendMessage delivers text to recipient, retrying transient failures.
func (b *Bot) SendMessage(ctx context.Context, recipient domain.UserID, text string, opts SendOptions) error {
	chatID, err := strconv.ParseInt(string(recipient), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = opts.ParseMode
	msg.DisableWebPagePreview = opts.DisablePreview
	if opts.ButtonURL != "" {
		label := opts.ButtonText
		if label == "" {
			label = opts.ButtonURL
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(label, opts.ButtonURL),
			),
		)
	}

	err = retry.Do(
		func() error {
			_, err := b.sender.Send(msg)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(b.sendAttempts),
		retry.Delay(b.retryDelay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(b.delay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			b.log.Debug("Retrying send", "chat_id", chatID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		if !isRetryable(err) {
			return fmt.Errorf("%w: %w", ErrRecipientUnreachable, err)
		}
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}

// Notify sends a rendered notification.
func (b *Bot) Notify(ctx context.Context, recipient domain.UserID, msg format.Message) error {
	return b.SendMessage(ctx, recipient, msg.Text, SendOptions{
		ParseMode:  msg.ParseMode,
		ButtonText: msg.ButtonText,
		ButtonURL:  msg.ButtonURL,
	})
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout.Seconds())

	updates := b.poller.GetUpdatesChan(u)
	b.log.Info("Listening for updates", "timeout", b.pollTimeout)

	for {
		select {
		case <-ctx.Done():
			b.poller.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	req := Request{
		User:   domain.UserID(strconv.FormatInt(msg.Chat.ID, 10)),
		ChatID: msg.Chat.ID,
		Text:   msg.Text,
	}
	if msg.From != nil {
		req.From = msg.From.UserName
	}

	var h Handler
	b.mu.RLock()
	if msg.IsCommand() {
		req.Command = msg.Command()
		req.Args = strings.TrimSpace(msg.CommandArguments())
		h = b.commands[req.Command]
		if h == nil {
			h = b.fallback
		}
	} else {
		h = b.text
	}
	b.mu.RUnlock()

	if h == nil {
		return
	}

	reply := b.dispatch(ctx, h, req)
	if reply.Text == "" {
		return
	}
	if err := b.SendMessage(ctx, req.User, reply.Text, reply.Options); err != nil {
		b.log.Warn("Failed to send reply", "chat_id", req.ChatID, "error", err)
	}
}

// dispatch runs h, recovering from panics so one bad update cannot stop the loop.
func (b *Bot) dispatch(ctx context.Context, h Handler, req Request) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Handler panicked",
				"command", req.Command,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			reply = Reply{Text: "Something went wrong, please try again later."}
		}
	}()
	return h(ctx, req)
}

func (b *Bot) delay(n uint, err error, config *retry.Config) time.Duration {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second
	}
	return retry.BackOffDelay(n, err, config)
}

// isRetryable reports whether a send error may succeed on a later attempt.
// Client errors such as a blocked bot or an unknown chat are final.
func isRetryable(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return tgErr.Code == http.StatusTooManyRequests || tgErr.Code >= http.StatusInternalServerError
	}
	return true
}
