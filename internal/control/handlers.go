package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/core/registry"
	"github.com/vietddude/dashnotifier/internal/infra/telegram"
)

const exampleAddress = "XonCSL19SseRbeThdAJAeRju1jEWke1gSc"

const (
	msgWelcome = "👋 Welcome to Dash Notifier Bot!\n\n" +
		"Send me your Dash wallet address and I will notify you\n" +
		"when new transactions arrive.\n\n" +
		"Send your address like this: " + exampleAddress
	msgHelp = "Commands:\n" +
		"/start - introduction\n" +
		"/status - show the address you are watching\n" +
		"/stop - stop watching your address\n" +
		"/help - this message\n\n" +
		"Send a Dash address (starting with X) to start or change watching."
	msgInvalid      = "❌ Invalid Dash address. Please send an address that starts with 'X'."
	msgTaken        = "❌ This address is already registered by another user."
	msgFailed       = "⚠️ Could not save your address right now, please try again later."
	msgNotWatching  = "You are not watching any address yet. Send me a Dash address to start."
	msgUnknown      = "Unknown command. Send /help for the list of commands."
	msgRegistered   = "✅ Success! I will notify you about new transactions for this address:\n%s"
	msgReplaced     = "✅ Updated! You are now watching:\n%s\n\nPrevious address: %s"
	msgUnchanged    = "ℹ️ You are already watching this address:\n%s"
	msgStopped      = "🛑 Stopped watching %s."
	msgStatusFormat = "👀 Watching: %s\nLast seen transaction: %s\nNotifications sent: %d"
)

// Handlers implements the bot's chat commands.
type Handlers struct {
	registry Registrar
	log      *slog.Logger
}

// NewHandlers creates chat handlers backed by reg.
func NewHandlers(reg Registrar) *Handlers {
	return &Handlers{
		registry: reg,
		log:      slog.Default().With("component", "handlers"),
	}
}

// Bind registers every handler on transport.
func (h *Handlers) Bind(transport ChatTransport) {
	transport.OnCommand("start", h.Start)
	transport.OnCommand("help", h.Help)
	transport.OnCommand("status", h.Status)
	transport.OnCommand("stop", h.Stop)
	transport.OnText(h.Address)
	transport.OnUnknownCommand(h.Unknown)
}

// Start greets the user. An address passed as argument is registered directly.
func (h *Handlers) Start(ctx context.Context, req telegram.Request) telegram.Reply {
	if req.Args != "" {
		return h.register(ctx, req.User, req.Args)
	}
	return telegram.Reply{Text: msgWelcome}
}

// Help lists the commands.
func (h *Handlers) Help(context.Context, telegram.Request) telegram.Reply {
	return telegram.Reply{Text: msgHelp}
}

// Status shows the user's watch entry.
func (h *Handlers) Status(_ context.Context, req telegram.Request) telegram.Reply {
	entry, err := h.registry.Status(req.User)
	if err != nil {
		return telegram.Reply{Text: msgNotWatching}
	}

	last := entry.LastSeen()
	if last == "" {
		last = "none yet"
	}
	return telegram.Reply{
		Text:    fmt.Sprintf(msgStatusFormat, entry.Address, last, len(entry.Notified)),
		Options: telegram.SendOptions{DisablePreview: true},
	}
}

// Stop removes the user's watch entry.
func (h *Handlers) Stop(ctx context.Context, req telegram.Request) telegram.Reply {
	addr, err := h.registry.Remove(ctx, req.User)
	switch {
	case errors.Is(err, registry.ErrNotRegistered):
		return telegram.Reply{Text: msgNotWatching}
	case err != nil:
		h.log.Error("Failed to remove entry", "user", req.User, "error", err)
		return telegram.Reply{Text: msgFailed}
	}
	return telegram.Reply{Text: fmt.Sprintf(msgStopped, addr)}
}

// Address treats plain text as an address registration.
func (h *Handlers) Address(ctx context.Context, req telegram.Request) telegram.Reply {
	return h.register(ctx, req.User, req.Text)
}

// Unknown answers commands without a handler.
func (h *Handlers) Unknown(context.Context, telegram.Request) telegram.Reply {
	return telegram.Reply{Text: msgUnknown}
}

func (h *Handlers) register(ctx context.Context, user domain.UserID, text string) telegram.Reply {
	out, err := h.registry.Register(ctx, user, strings.TrimSpace(text))
	switch {
	case errors.Is(err, domain.ErrInvalidAddress):
		h.log.Debug("Rejected address", "user", user, "error", err)
		return telegram.Reply{Text: msgInvalid}
	case errors.Is(err, registry.ErrAddressTaken):
		return telegram.Reply{Text: msgTaken}
	case err != nil:
		h.log.Error("Registration failed", "user", user, "error", err)
		return telegram.Reply{Text: msgFailed}
	}

	switch out.Result {
	case registry.Replaced:
		return telegram.Reply{Text: fmt.Sprintf(msgReplaced, out.Address, out.Previous)}
	case registry.Unchanged:
		return telegram.Reply{Text: fmt.Sprintf(msgUnchanged, out.Address)}
	default:
		return telegram.Reply{Text: fmt.Sprintf(msgRegistered, out.Address)}
	}
}
