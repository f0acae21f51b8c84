package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/pipeline"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest files synchronously and print the outcome",
	Long: "Ingest files synchronously and print the outcome.\n\n" +
		"Each file is copied into the upload directory, parsed, chunked, classified, " +
		"deduplicated, and written to the database before the command returns. Useful " +
		"for scripted loads and for verifying configuration without running the service.",
	Example: `  # Ingest a single document
  maingest ingest report.pdf

  # Ingest several documents
  maingest ingest q1.xlsx q2.xlsx notes.txt`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: validateIngest,
	RunE:    runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func validateIngest(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if cfg.Database.ResolveDSN() == "" {
		cmd.SilenceUsage = false
		return fmt.Errorf("no database DSN configured; set database.dsn or %s", cfg.Database.DSNEnv)
	}
	for _, arg := range args {
		if _, err := os.Stat(arg); err != nil {
			return fmt.Errorf("cannot read %s; %w", arg, err)
		}
	}
	return nil
}

// syncRunner processes files inline instead of queueing them.
type syncRunner struct {
	ctx  context.Context
	pipe *pipeline.Pipeline
}

func (r *syncRunner) Enqueue(fileID string) error {
	return r.pipe.ProcessFile(r.ctx, fileID)
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Paths.UploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory; %w", err)
	}

	st, err := store.New(ctx, cfg.Database.ResolveDSN(), store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to connect to database; %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations; %w", err)
	}
	if _, err := st.EnsureDefaultBusiness(ctx); err != nil {
		return fmt.Errorf("failed to ensure default business; %w", err)
	}

	pipe, _, vectors, err := buildPipeline(ctx, st, logger)
	if err != nil {
		return err
	}
	if vectors != nil {
		defer vectors.Close()
	}

	intake := pipeline.NewIntake(st, &syncRunner{ctx: ctx, pipe: pipe}, cfg.Paths.UploadDir, logger)

	var failed int
	for _, arg := range args {
		src, err := os.Open(arg)
		if err != nil {
			fmt.Printf("%s: %v\n", arg, err)
			failed++
			continue
		}

		rec, err := intake.IngestUpload(ctx, filepath.Base(arg), src)
		src.Close()
		if err != nil {
			fmt.Printf("%s: %v\n", arg, err)
			failed++
			continue
		}

		// Re-read for the post-processing status and chunk counts.
		final, err := st.GetFile(ctx, rec.ID)
		if err != nil {
			final = rec
		}
		switch final.Status {
		case store.StatusProcessed:
			fmt.Printf("%s: processed (%d chunks, %d unique, %d duplicate)\n",
				arg, final.TotalChunks, final.UniqueChunks, final.DuplicateChunks)
		case store.StatusDuplicate:
			fmt.Printf("%s: duplicate of previously ingested content\n", arg)
		default:
			fmt.Printf("%s: %s %s\n", arg, final.Status, final.ErrorMessage)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
