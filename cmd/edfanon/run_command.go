package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"edfanon/internal/config"
	"edfanon/internal/journal"
	"edfanon/internal/ledger"
	"edfanon/internal/logging"
	"edfanon/internal/pipeline"
	"edfanon/internal/services/objectstore"
	"edfanon/internal/services/warehouse"
)

func newRunCommand(configFlag *string) *cobra.Command {
	var input pipeline.Input
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one anonymization pass over the pending recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			if modeFlag != "" {
				cfg.Run.Mode = modeFlag
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				LogDir: cfg.Paths.LogDir,
			})
			if err != nil {
				return err
			}

			source := objectstore.NewS3(cfg.Storage.Source)
			destination := objectstore.NewS3(cfg.Storage.Destination)

			var sink pipeline.Ingestor
			if cfg.Warehouse.Host != "" {
				wh, err := warehouse.Open(cfg.Warehouse, cfg.Storage.Destination.Bucket)
				if err != nil {
					return err
				}
				sink = wh
			}

			store, err := journal.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ldg := ledger.New(destination, cfg.Paths.JournalDir, logger)
			pipe := pipeline.New(cfg, source, destination, ldg, sink, store, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := pipe.Run(ctx, input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s finished: %d discovered, %d processed, %d failed, %d skipped\n",
				summary.RunID, summary.Discovered, summary.Processed, summary.Failed, summary.Skipped)
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d recordings failed; see edfanon status for details",
					summary.Failed, summary.Discovered)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "", "Discovery mode override (diff or drain)")
	cmd.Flags().StringVar(&input.Name, "name", "", "Subject first name for identity derivation")
	cmd.Flags().StringVar(&input.Surname, "surname", "", "Subject surname for identity derivation")
	cmd.Flags().StringVar(&input.BirthDate, "birth-date", "", "Subject date of birth for identity derivation")
	cmd.Flags().StringVar(&input.UniqueID, "unique-id", "", "Subject unique identifier for identity derivation")
	cmd.Flags().StringVar(&input.MRN, "mrn", "", "Medical record number to pseudonymize")
	cmd.Flags().StringVar(&input.MetadataFileName, "metadata-file", "", "Filename for the exported metadata document")
	return cmd
}
