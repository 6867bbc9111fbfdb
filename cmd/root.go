package cmd

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	pkgversion "github.com/rubrical-studios/jira-resource/internal/version"
	"github.com/spf13/cobra"
)

// version is set by ldflags during release builds.
// When empty (default), falls back to the source constant in internal/version.
var version = ""

func getVersion() string {
	if version != "" {
		return version
	}
	return pkgversion.Version
}

// resourceCommands are the names Concourse invokes under /opt/resource.
var resourceCommands = map[string]bool{
	"check": true,
	"in":    true,
	"out":   true,
}

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jira-resource",
		Short: "Create and update Jira issues from a pipeline",
		Long: `jira-resource is a Concourse resource that creates or updates Jira issues.

Each command reads a JSON request on stdin and writes a JSON response on
stdout. Logs go to stderr.

  check   reports the current version (issues are only written)
  in      echoes the requested version
  out     updates the issue with a matching summary, or creates one

Installed as /opt/resource/check, /opt/resource/in and /opt/resource/out,
the binary runs the command it is named after.`,
		Version:      getVersion(),
		SilenceUsage: true,
	}

	cmd.PersistentFlags().Bool("verbose", false, "Log debug output, including HTTP traffic, to stderr")

	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newInCommand())
	cmd.AddCommand(newOutCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func Execute() error {
	cmd := NewRootCommand()
	cmd.SetArgs(argsFor(os.Args))
	return cmd.Execute()
}

// argsFor maps argv to command arguments. When the binary is invoked as
// check, in or out, that name becomes the subcommand.
func argsFor(argv []string) []string {
	if len(argv) == 0 {
		return nil
	}
	if name := filepath.Base(argv[0]); resourceCommands[name] {
		return append([]string{name}, argv[1:]...)
	}
	return argv[1:]
}

// newLogger writes text logs to w, which is stderr outside tests.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}

// writeJSON writes v as a single JSON document.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}
