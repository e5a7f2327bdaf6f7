package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"notemigrate/internal/cache"
	"notemigrate/internal/config"
	"notemigrate/internal/logging"
	"notemigrate/internal/source"
	"notemigrate/internal/syncer"
	"notemigrate/internal/target"
)

var (
	syncAll          bool
	syncLocation     string
	syncWithChildren bool
)

var syncCmd = &cobra.Command{
	Use:   "sync <export-dir>",
	Short: "Migrate an export into the note service",
	Long: `Migrate the documents of an export directory into the note service.

By default every document is migrated (--all). Pass --location to migrate a
single location, plus --with-children to include every location nested
under it.

The run is resumable: anything already recorded in the sync cache is
skipped, so rerunning after a crash or after adding documents to the export
only uploads what is new.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !syncAll && syncLocation == "" {
			syncAll = true
		}
		if syncAll && syncLocation != "" {
			fmt.Fprintf(os.Stderr, "Error: --all and --location are mutually exclusive\n")
			os.Exit(1)
		}
		if config.TargetToken() == "" {
			fmt.Fprintf(os.Stderr, "Error: no data API token configured (--token, NOTEMIGRATE_TARGET_TOKEN or target.token)\n")
			os.Exit(1)
		}

		log := logging.New(logging.Options{
			Level:      config.LogLevel(),
			File:       config.LogFile(),
			MaxSizeMB:  config.LogMaxSizeMB(),
			MaxBackups: config.LogMaxBackups(),
			Console:    config.LogConsole(),
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := source.LoadExport(args[0], source.ExportOptions{
			UTCOffsetHours: config.UTCOffsetHours(),
			SkipMissing:    config.SkipMissing(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading export: %v\n", err)
			os.Exit(1)
		}

		c, err := cache.Open(config.CachePath(), log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening sync cache: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()

		if err := c.InitSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing sync cache: %v\n", err)
			os.Exit(1)
		}
		if err := c.Load(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading sync cache: %v\n", err)
			os.Exit(1)
		}

		client := target.NewHTTPClient(config.TargetHost(), config.TargetPort(),
			config.TargetToken(), config.TargetTimeout(), log)
		s := syncer.New(store, client, c, log, config.SkipMissing())

		fmt.Printf("Migrating %s -> %s:%d...\n", args[0], config.TargetHost(), config.TargetPort())
		start := time.Now()

		var stats syncer.Stats
		if syncAll {
			stats, err = s.SyncAll(ctx)
		} else {
			stats, err = s.SyncLocation(ctx, syncLocation, syncWithChildren)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during migration: %v\n", err)
			os.Exit(1)
		}

		elapsed := time.Since(start)
		fmt.Printf("Migration complete in %v\n", elapsed.Round(time.Millisecond))
		fmt.Printf("   Folders created:   %d\n", stats.FoldersCreated)
		fmt.Printf("   Tags created:      %d\n", stats.TagsCreated)
		fmt.Printf("   Resources created: %d\n", stats.ResourcesCreated)
		fmt.Printf("   Notes created:     %d\n", stats.NotesCreated)
		if stats.NotesSkipped > 0 {
			fmt.Printf("   Notes skipped:     %d (already migrated)\n", stats.NotesSkipped)
		}
		if stats.ResourcesSkipped > 0 {
			fmt.Printf("   Resources skipped: %d (missing files)\n", stats.ResourcesSkipped)
		}
		if stats.LinksDropped > 0 {
			fmt.Printf("   Links dropped:     %d (failed uploads)\n", stats.LinksDropped)
		}
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "migrate every document in the export")
	syncCmd.Flags().StringVar(&syncLocation, "location", "", "migrate only this location, e.g. /My Notes/work/")
	syncCmd.Flags().BoolVar(&syncWithChildren, "with-children", false, "with --location, include nested locations")
}
