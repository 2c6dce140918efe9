package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kapu/review-dashboard/internal/app"
	"github.com/kapu/review-dashboard/internal/config"
	"github.com/kapu/review-dashboard/internal/util"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	apiURL   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "dashboard",
		Short:        "Analyze product review CSVs and show the results",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api", "", "analysis service base URL (overrides DASHBOARD_API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(newAnalyzeCmd(opts))
	rootCmd.AddCommand(newChatCmd(opts))
	return rootCmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		htmlOut   string
		questions []string
	)

	cmd := &cobra.Command{
		Use:   "analyze <file.csv>...",
		Short: "Upload review CSVs and render the dashboard for each",
		Long: "Upload each review CSV in turn and render the dashboard after it. The dashboard is\n" +
			"reset between files, so every rendering shows one file's results only.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd.Context(), opts, func(ctx context.Context, d *app.Dashboard) error {
				out := cmd.OutOrStdout()
				for i, path := range args {
					if i > 0 {
						d.Reset()
						fmt.Fprintln(out)
					}
					if err := d.Analyze(ctx, path); err != nil {
						return err
					}
					fmt.Fprintf(out, "== %s ==\n%s\n", filepath.Base(path), d.Render())
				}

				for _, q := range questions {
					fmt.Fprintf(out, "\nQ: %s\nA: %s\n", q, d.Chat.Ask(ctx, q))
				}

				if htmlOut != "" {
					if err := d.Page.WriteFile(htmlOut); err != nil {
						return err
					}
					fmt.Fprintf(out, "\nDashboard page written to %s\n", htmlOut)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&htmlOut, "html", "", "write the updated dashboard page to this file")
	cmd.Flags().StringArrayVar(&questions, "ask", nil, "question for the assistant after the analysis (repeatable)")
	return cmd
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <file.csv> <question...>",
		Short: "Analyze a review CSV and ask the assistant one question about it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd.Context(), opts, func(ctx context.Context, d *app.Dashboard) error {
				if err := d.Analyze(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), d.Chat.Ask(ctx, strings.Join(args[1:], " ")))
				return nil
			})
		},
	}
}

func withDashboard(ctx context.Context, opts *rootOptions, run func(context.Context, *app.Dashboard) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.apiURL != "" {
		cfg.Dashboard.APIBaseURL = opts.apiURL
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.ValidateDashboard(); err != nil {
		return err
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Dashboard.RequestTimeout+30*time.Second)
	defer cancel()

	d, err := app.BuildDashboard(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to assemble dashboard", zap.Error(err))
		return err
	}
	defer d.Close()

	return run(ctx, d)
}
