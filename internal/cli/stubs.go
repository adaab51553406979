package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRunCmd, newCleanupCmd and newMoveCmd exist so the CLI surface matches
// the external-collaborator enumeration (cloud-cleanup, local-mover, a
// standing daemon loop): none of them are implemented by this build.
func newRunCmd() *cobra.Command {
	return notImplementedCmd("run", "runs the scheduler continuously as a standing service")
}

func newCleanupCmd() *cobra.Command {
	return notImplementedCmd("cleanup", "cloud-side cleanup of orphaned remote files")
}

func newMoveCmd() *cobra.Command {
	return notImplementedCmd("move", "local-mover auxiliary job")
}

func notImplementedCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: not implemented by this build — see the standalone job for that behavior\n", use)
			return fmt.Errorf("%s not implemented", use)
		},
		SilenceUsage: true,
	}
}
