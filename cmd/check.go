package cmd

import (
	"fmt"

	"github.com/rubrical-studios/jira-resource/internal/config"
	"github.com/rubrical-studios/jira-resource/internal/resource"
	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report the current version",
		Long: `Reads a check request on stdin and prints the list of versions.

Issues are only ever written by out, so check echoes the version it was
given, or an empty list when there is none.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd)
		},
	}
}

func runCheck(cmd *cobra.Command) error {
	var req config.CheckRequest
	if err := config.ReadRequest(cmd.InOrStdin(), &req); err != nil {
		return fmt.Errorf("check: %w", err)
	}

	return writeJSON(cmd.OutOrStdout(), resource.Check(req.Version))
}
