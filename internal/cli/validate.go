package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/dashnotifier/internal/core/domain"
)

var validateCmd = &cobra.Command{
	Use:   "validate <address>...",
	Short: "Check addresses without touching state",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !validateAddresses(cmd.OutOrStdout(), args) {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateAddresses(out io.Writer, args []string) bool {
	ok := true
	for _, arg := range args {
		if _, err := domain.ValidateAddress(arg); err != nil {
			ok = false
			_, _ = fmt.Fprintf(out, "%s: %v\n", arg, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s: ok\n", arg)
	}
	return ok
}
