// Package cmd provides the agentd CLI: the daemon entrypoint (`run`, the
// default), a terminal dashboard client (`watch`), and a health-check
// command (`doctor`). Grounded in the teacher's cobra root/group
// structure (internal/cmd/config.go's GroupConfig, daemon.go's
// GroupServices, doctor.go's GroupDiag).
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Command groups, mirrored from the teacher's GroupServices/GroupDiag
// split so `agentd --help` buckets daemon-lifecycle commands separately
// from diagnostics.
const (
	GroupServices = "services"
	GroupDiag     = "diag"
)

var (
	flagListen         string
	flagDataDir        string
	flagToken          string
	flagInsecureNoAuth bool
)

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "Daemon that holds agent sessions, terminals, and memory open across client connections",
	Long: `agentd is a background daemon that spawns and supervises one
coding-agent subprocess per workspace, multiplexes terminal and file
access over a small JSON-RPC socket, and runs an auto-memory controller
that periodically summarizes long-running threads to an external
Markdown memory store.

Clients (editor extensions, TUIs, CLIs) connect over TCP, authenticate
with a shared token, and issue requests; the daemon fans agent and
terminal events back out to every connected client.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupServices, Title: "Service Commands:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostic Commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&flagListen, "listen", "", "address to bind the client socket (default 127.0.0.1:4732, or agentd.toml's network.listen)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory holding workspaces.json, settings.json, and the memory store (default $XDG_DATA_HOME/agentd or ~/.local/share/agentd)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "shared auth token clients must present (default from AGENTD_DAEMON_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&flagInsecureNoAuth, "insecure-no-auth", false, "skip the auth gate entirely (local development only)")
}

// requireSubcommand is the RunE used by parent commands that exist only
// to group subcommands (no direct action of their own).
func requireSubcommand(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

// usageError marks a flag-parsing error so Execute can exit 2.
type usageError struct{ error }

// Execute runs the root command and returns the process exit code: 2 for
// a bad or unknown flag, 1 for any other error.
func Execute() int {
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agentd:", err)
		var ue usageError
		if errors.As(err, &ue) {
			return 2
		}
		return 1
	}
	return 0
}
