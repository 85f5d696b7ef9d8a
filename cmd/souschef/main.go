// souschef is a cooking session engine exposed over MCP: live step
// state, kitchen timers, and agent-driven recipe edits.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mirepoix/souschef/internal/config"
	"github.com/mirepoix/souschef/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	verbose bool
	quiet   bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "souschef",
		Short:         "souschef - a cooking session engine",
		Long:          "Manages live cooking sessions: step navigation, kitchen timers, and agent-driven recipe edits, exposed as MCP tools.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose/debug logging")
	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "disable all logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newRecipesCommand(opts))
	return cmd
}

// buildLogger resolves the log level from flags and config, directing
// output to the configured file. The serve command always logs to a
// file or stderr, never stdout: stdout carries the MCP stream.
func buildLogger(opts *rootOptions, cfg *config.Config) (*logger.Logger, func(), error) {
	level := logger.ParseLevel(cfg.LogLevel)
	if opts.verbose {
		level = logger.LevelVerbose
	}
	if opts.quiet {
		level = logger.LevelOff
	}

	var out io.Writer = os.Stderr
	cleanup := func() {}
	if cfg.LogFile != "" && cfg.LogFile != "stderr" {
		if dir := filepath.Dir(cfg.LogFile); dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.LogFile, err)
		} else {
			out = f
			cleanup = func() { f.Close() }
		}
	}
	return logger.New(level, out), cleanup, nil
}
