package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Manage the category taxonomy",
	Long: "Manage the category taxonomy.\n\n" +
		"The taxonomy command syncs the controlled vocabulary from a master document " +
		"into the database and exports the current database state back out as JSON.",
}

var taxonomyMasterFile string

var taxonomySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the master taxonomy document into the database",
	Example: `  # Sync the configured master document
  maingest taxonomy sync

  # Sync a specific document
  maingest taxonomy sync --file ./taxonomy_master.json`,
	PreRunE: validateTaxonomy,
	RunE:    runTaxonomySync,
}

var taxonomyExportVersion string

var taxonomyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the database taxonomy as a master document",
	Example: `  # Export to stdout
  maingest taxonomy export

  # Export with an explicit version label
  maingest taxonomy export --version 2.0 > taxonomy_master.json`,
	PreRunE: validateTaxonomy,
	RunE:    runTaxonomyExport,
}

func init() {
	taxonomySyncCmd.Flags().StringVar(&taxonomyMasterFile, "file", "", "master document path (defaults to paths.taxonomy_file)")
	taxonomyExportCmd.Flags().StringVar(&taxonomyExportVersion, "version", "", "version label for the exported document")

	taxonomyCmd.AddCommand(taxonomySyncCmd)
	taxonomyCmd.AddCommand(taxonomyExportCmd)
	rootCmd.AddCommand(taxonomyCmd)
}

func validateTaxonomy(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if cfg.Database.ResolveDSN() == "" {
		cmd.SilenceUsage = false
		return fmt.Errorf("no database DSN configured; set database.dsn or %s", cfg.Database.DSNEnv)
	}
	return nil
}

func openTaxonomy(ctx context.Context) (*store.Store, *taxonomy.Registry, error) {
	logger := logManager.Logger()

	st, err := store.New(ctx, cfg.Database.ResolveDSN(), store.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database; %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to run migrations; %w", err)
	}

	return st, taxonomy.NewRegistry(st, taxonomy.WithLogger(logger)), nil
}

func runTaxonomySync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := taxonomyMasterFile
	if path == "" {
		path = cfg.Paths.TaxonomyFile
	}
	if path == "" {
		return fmt.Errorf("no master document; pass --file or set paths.taxonomy_file")
	}

	doc, err := taxonomy.LoadMaster(path)
	if err != nil {
		return err
	}

	st, registry, err := openTaxonomy(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := registry.Sync(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to sync taxonomy; %w", err)
	}

	fmt.Printf("synced %s: %d inserted, %d updated, %d skipped\n",
		path, result.Inserted, result.Updated, result.Skipped)
	return nil
}

func runTaxonomyExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, registry, err := openTaxonomy(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := registry.Export(ctx, taxonomyExportVersion)
	if err != nil {
		return fmt.Errorf("failed to export taxonomy; %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
