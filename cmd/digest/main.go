package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-feed-digest/internal/app"
	"github.com/samvad-hq/samvad-feed-digest/internal/config"
	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
	"github.com/samvad-hq/samvad-feed-digest/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "digest failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "digest",
		Short:         "Collect recent feed items into a CSV report and deliver it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("feeds", "", "feed list file (.txt, .yaml or .json)")
	pf.String("publishers", "", "publishers registry file")
	pf.Int("window-days", 0, "recency window in days")
	pf.String("schedule", "", "cron schedule used by serve (seconds field first)")
	pf.String("log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(newRunCmd(), newServeCmd(), newRunsCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var nowFlag string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single digest pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if nowFlag != "" {
				parsed, err := time.Parse(time.RFC3339, nowFlag)
				if err != nil {
					return fmt.Errorf("parse --now: %w", err)
				}
				now = parsed
			}
			return withDigest(cmd, "digest run starting", func(ctx context.Context, d *app.Digest) error {
				out, err := d.RunOnce(ctx, now)
				if err != nil {
					return fmt.Errorf("digest run: %w", err)
				}
				logger.InfoObj("digest run finished", "run_summary", map[string]any{
					"rows":      out.Result.Report.Len(),
					"bytes":     len(out.Report),
					"delivered": out.Delivered,
				})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&nowFlag, "now", "", "reference time (RFC3339); defaults to the current time")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the digest on its cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDigest(cmd, "digest scheduler starting", func(ctx context.Context, d *app.Digest) error {
				if err := d.Run(ctx); err != nil {
					return fmt.Errorf("digest serve: %w", err)
				}
				return nil
			})
		},
	}
}

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Print recent runs from the run journal as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithFlags(cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
				RunTTL:          cfg.StorageTTL,
				CleanupInterval: cfg.StorageCleanupInterval,
			})
			if err != nil {
				return fmt.Errorf("open run journal: %w", err)
			}
			defer store.Close()

			runs, err := store.RecentRuns(limit)
			if err != nil {
				return fmt.Errorf("read run journal: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show, newest first")
	return cmd
}

func withDigest(cmd *cobra.Command, startMsg string, fn func(context.Context, *app.Digest) error) (err error) {
	cfg, err := config.LoadWithFlags(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj(startMsg, "config", cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	digest, err := app.NewDigest(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize digest", "error", err.Error())
		return err
	}
	defer func() {
		err = errors.Join(err, digest.Close())
	}()

	return fn(ctx, digest)
}
