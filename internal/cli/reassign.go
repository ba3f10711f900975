package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/dashnotifier/internal/control"
	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/core/registry"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
)

var (
	reassignUser    string
	reassignAddress string
)

var reassignCmd = &cobra.Command{
	Use:   "reassign",
	Short: "Move an address to another user. Stop the bot first.",
	Run:   runReassign,
}

func init() {
	reassignCmd.Flags().StringVar(&reassignUser, "user", "", "chat id of the new owner")
	reassignCmd.Flags().StringVar(&reassignAddress, "address", "", "address to move")
	_ = reassignCmd.MarkFlagRequired("user")
	_ = reassignCmd.MarkFlagRequired("address")
	rootCmd.AddCommand(reassignCmd)
}

func runReassign(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()

	ctx := context.Background()
	backend, err := control.OpenBackend(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	store := storage.Open(ctx, backend)

	previous, err := registry.New(store).Reassign(ctx, reassignAddress, domain.UserID(reassignUser))
	closeErr := store.Close(ctx)
	if err != nil {
		slog.Error("Reassign failed", "address", reassignAddress, "error", err)
		os.Exit(1)
	}
	if closeErr != nil {
		slog.Error("Failed to persist state", "error", closeErr)
		os.Exit(1)
	}

	slog.Info("Address reassigned",
		"address", reassignAddress,
		"user", reassignUser,
		"previous_owner", previous,
	)
}
