package cmd

import (
	"fmt"

	"github.com/rubrical-studios/jira-resource/internal/config"
	"github.com/rubrical-studios/jira-resource/internal/resource"
	"github.com/spf13/cobra"
)

func newInCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "in [destination]",
		Short: "Echo the requested version",
		Long: `Reads an in request on stdin and prints the requested version.

Nothing is fetched and nothing is written to the destination directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIn(cmd)
		},
	}
}

func runIn(cmd *cobra.Command) error {
	var req config.InRequest
	if err := config.ReadRequest(cmd.InOrStdin(), &req); err != nil {
		return fmt.Errorf("in: %w", err)
	}

	resp, err := resource.In(req.Version)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}
