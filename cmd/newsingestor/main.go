package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"NewsIngestor/internal/app"
	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/infrastructure/storage/migrations"
	"NewsIngestor/internal/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp loads configuration and assembles the application. The caller must
// defer a.Close().
func newApp() (*app.Application, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "newsingestor",
	Short: "Financial news ingestion and delivery pipeline",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := migrations.Up(a.DB()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("Database schema is up to date")
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion batch over all configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := migrations.Status(a.DB()); err != nil {
			return fmt.Errorf("schema check: %w", err)
		}

		stats, err := a.Pipeline.Run(context.Background())
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}

		fmt.Printf("Fetched: %d  Created: %d  Duplicates: %d  Pre-filtered: %d  Errors: %d\n",
			stats.Fetched, stats.Created, stats.Duplicates, stats.Prefiltered, stats.Errors)
		return nil
	},
}

var requeueHeld bool

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Process the queued delivery backlog for all channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()

		if requeueHeld {
			n, err := a.Worker.RequeueHeld(ctx, domain.ChannelSocial)
			if err != nil {
				return err
			}
			fmt.Printf("Requeued %d held deliveries\n", n)
		}

		// Rebuild deliveries for posts that lost theirs to a crash between
		// the post and delivery inserts.
		if _, err := a.Pipeline.Reconcile(ctx, a.ReconcileWindow()); err != nil {
			a.Logger.Error("reconciliation failed", "error", err)
		}

		processed := a.Worker.ProcessAll(ctx, a.WorkerBatchLimit())
		fmt.Printf("Processed %d deliveries\n", processed)
		return nil
	},
}

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Show per-section published counts and fallback-filled populations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()

		summary := a.Engine.ContentSummary(ctx)
		for _, section := range domain.Sections {
			populated := a.Engine.Populate(ctx, section, nil)
			fmt.Printf("%-6s published=%-4d populated=%d/%d\n",
				section, summary[section], len(populated), a.Engine.Threshold(section))
		}

		homepage := a.Engine.PopulateHomepage(ctx, nil)
		fmt.Printf("%-6s populated=%d/%d\n", "all", len(homepage), a.Engine.Threshold(domain.SectionAllKey))
		return nil
	},
}

func init() {
	deliverCmd.Flags().BoolVar(&requeueHeld, "requeue-held", false,
		"move held social deliveries back to queued before processing")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(deliverCmd)
	rootCmd.AddCommand(sectionsCmd)
}
