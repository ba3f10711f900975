package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/dashnotifier/internal/control"
	"github.com/vietddude/dashnotifier/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show all watched addresses",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()

	ctx := context.Background()
	backend, err := control.OpenBackend(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = backend.Close()
	}()

	state, err := backend.Load(ctx)
	if err != nil {
		slog.Warn("State not loaded cleanly", "error", err)
	}
	writeStatus(os.Stdout, state)
}

func writeStatus(out io.Writer, state *domain.State) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "USER\tADDRESS\tLAST TX\tNOTIFIED\tUPDATED")

	for _, id := range state.UserIDs() {
		e := state.Users[id]
		last := e.LastSeen()
		if last == "" {
			last = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			id, e.Address, last, len(e.Notified), e.UpdatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()

	if state.LastChecked > 0 {
		_, _ = fmt.Fprintf(out, "\nlast checked: %s\n", time.Unix(state.LastChecked, 0).UTC().Format(time.RFC3339))
	}
}
