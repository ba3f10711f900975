package control

import (
	"context"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/core/registry"
	"github.com/vietddude/dashnotifier/internal/infra/telegram"
)

// ChatTransport is the chat side of the bot: command routing and the update loop.
type ChatTransport interface {
	OnCommand(name string, h telegram.Handler)
	OnText(h telegram.Handler)
	OnUnknownCommand(h telegram.Handler)
	Run(ctx context.Context) error
}

// Registrar manages watch entries on behalf of chat users.
type Registrar interface {
	Register(ctx context.Context, user domain.UserID, text string) (registry.Outcome, error)
	Status(user domain.UserID) (*domain.WatchEntry, error)
	Remove(ctx context.Context, user domain.UserID) (domain.Address, error)
}
