// Package cli provides the command-line interface for litlab.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/litlab/internal/app"
	"github.com/raphaelgruber/litlab/internal/config"
	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/raphaelgruber/litlab/internal/tools"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	project string

	cfg         config.Config
	lab         *app.App
	closeLogger func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "litlab",
	Short: "Turn long-form text into micro-lessons",
	Long: `Litlab ingests books and articles, retrieves passages by meaning or by
emotional intensity, and turns them into short ordered micro-lessons.

Jobs run inline unless REDIS_ADDR is set, in which case they are queued
for a 'litlab worker' process.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// the worker is long-running and logs at the configured level
		level := slog.LevelWarn
		if cmd == workerCmd {
			level = cfg.LogLevel
		}
		if verbose {
			level = slog.LevelDebug
		}
		var logger *slog.Logger
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level)

		lab, err = app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if lab != nil {
			if err := lab.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// projectID resolves the --project flag against the configured default.
func projectID() (string, error) {
	id := tools.DetectProject(&cfg, project)
	if id == "" {
		return "", fmt.Errorf("no project: pass --project or set LITLAB_PROJECT")
	}
	return id, nil
}

// userError reports pipeline errors with their end-user message. --verbose
// adds the cause.
func userError(action string, err error) error {
	if !models.IsKnown(err) {
		return fmt.Errorf("%s: %w", action, err)
	}
	if verbose {
		return fmt.Errorf("%s: %s (%w)", action, models.UserMessage(err), err)
	}
	return fmt.Errorf("%s: %s", action, models.UserMessage(err))
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&project, "project", "p", "", "project id (defaults to LITLAB_PROJECT)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(labCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(workerCmd)
}
