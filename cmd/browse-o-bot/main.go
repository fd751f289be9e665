package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/theimaginaryfoundation/browse-o-bot/history"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(newApp())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for configuration and missing-input errors, 1 for everything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, history.ErrConfiguration) || errors.Is(err, history.ErrInputNotFound) {
		return 2
	}
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "browse-o-bot",
		Short:         "Classify browser history with a language model and summarize it",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd.Flags(), &a.cfg, configPath, a.getenv); err != nil {
				return err
			}
			if err := a.cfg.Validate(); err != nil {
				if errors.Is(err, history.ErrConfiguration) {
					return err
				}
				return fmt.Errorf("%w: %v", history.ErrConfiguration, err)
			}
			logger, runID, err := newLogger(a.cfg.LogLevel, a.cfg.LogFile)
			if err != nil {
				return fmt.Errorf("%w: %v", history.ErrConfiguration, err)
			}
			a.logger = logger
			a.logger.Debug("run started", zap.String("command", cmd.Name()), zap.String("run_id", runID))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", history.ErrConfiguration, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file; flags set on the command line win")
	bindFlags(pf, &a.cfg)

	root.AddCommand(
		analyzeCmd(a),
		extractCmd(a),
		summarizeCmd(a),
		runCmd(a),
		promptsCmd(a),
		versionCmd(),
	)
	return root
}

func analyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Analyze recent history records and write <date>_raw_analysis.md plus counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStages(cmd.Context(), []string{stageAnalyze})
		},
	}
}

func extractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Re-derive category and topic counts from an analysis file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStages(cmd.Context(), []string{stageExtract})
		},
	}
}

func summarizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Write a prose browsing summary from the analysis file and counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStages(cmd.Context(), []string{stageSummarize})
		},
	}
}

func runCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run analyze, extract, and summarize in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStages(cmd.Context(), selectStages(a.cfg.FromStage, a.cfg.OnlyStage))
		},
	}
	cmd.Flags().StringVar(&a.cfg.FromStage, "from-stage", "", "Start at this stage (analyze, extract, summarize)")
	cmd.Flags().StringVar(&a.cfg.OnlyStage, "only-stage", "", "Run only this stage")
	return cmd
}

func promptsCmd(a *app) *cobra.Command {
	var dir string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Write the built-in prompt templates as JSON for customization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := history.WriteDefaultTemplates(dir, overwrite)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "prompts", "Directory to write templates into")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing template files")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
