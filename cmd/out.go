package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cli/go-gh/v2/pkg/jsonpretty"
	"github.com/rubrical-studios/jira-resource/internal/config"
	"github.com/rubrical-studios/jira-resource/internal/resource"
	"github.com/spf13/cobra"
)

type outOptions struct {
	configPath string
	dryRun     bool
}

func newOutCommand() *cobra.Command {
	opts := &outOptions{}

	cmd := &cobra.Command{
		Use:   "out [build-dir]",
		Short: "Create or update an issue",
		Long: `Reads an out request on stdin, resolves the issue fields relative to
build-dir and sends them to Jira.

The issue in the project whose summary matches is updated; when there is
none, a new issue is created. Watchers are then added and transitions
applied in order.

With --config the request is read from a .jira-resource.yml file instead
of stdin, and JIRA_URL, JIRA_EMAIL, JIRA_API_TOKEN and JIRA_PROJECT
override its source. Pass a directory to search it and its parents.

With --dry-run the create payload is printed and nothing is sent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseDir := "."
			if len(args) == 1 {
				baseDir = args[0]
			}
			return runOut(cmd, opts, baseDir)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Read the request from a YAML file or the nearest .jira-resource.yml in a directory")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the create payload without contacting Jira")

	return cmd
}

func runOut(cmd *cobra.Command, opts *outOptions, baseDir string) error {
	req, err := loadOutRequest(cmd.InOrStdin(), opts.configPath)
	if err != nil {
		return fmt.Errorf("out: %w", err)
	}

	debug := isVerbose(cmd) || req.Source.Debug
	logger := newLogger(cmd.ErrOrStderr(), debug)

	var httpLog io.Writer
	if debug {
		httpLog = cmd.ErrOrStderr()
	}

	if !opts.dryRun {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	res, err := resource.New(req.Source, resource.Options{Logger: logger, HTTPLog: httpLog})
	if err != nil {
		return err
	}

	if opts.dryRun {
		p, err := res.Builder.BuildCreate(baseDir, req.Source, req.Params)
		if err != nil {
			return err
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		return jsonpretty.Format(cmd.OutOrStdout(), bytes.NewReader(data), "  ", false)
	}

	resp, err := res.Out(cmd.Context(), baseDir, req.Params)
	if err != nil {
		logger.Error("out failed", "error", err)
		return err
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}

// loadOutRequest reads the request from stdin, or from the YAML file at
// configPath when it is set.
func loadOutRequest(stdin io.Reader, configPath string) (*config.OutRequest, error) {
	if configPath == "" {
		var req config.OutRequest
		if err := config.ReadRequest(stdin, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	var file *config.File
	info, err := os.Stat(configPath)
	switch {
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	case info.IsDir():
		file, err = config.LoadFromDirectory(configPath)
	default:
		file, err = config.Load(configPath)
	}
	if err != nil {
		return nil, err
	}

	file.Source.ApplyEnvOverrides()
	return file.Request(), nil
}
