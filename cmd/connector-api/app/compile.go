package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/config"
	"github.com/compose-market/connector/internal/identity"
	"github.com/compose-market/connector/internal/reconcile"
	"github.com/compose-market/connector/internal/sources"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the reconciled catalog to a JSON artifact",
	Long: `Compile loads every configured source, reconciles the records and
writes the merged catalog to a JSON file. The output can be served as a
static dump or fed back in as a file source.`,
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	compileCmd.Flags().String("output", "catalog.json", "Path to write the compiled catalog to")

	if err := compileCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

// compiledCatalog is the on-disk shape of a compiled catalog dump.
type compiledCatalog struct {
	UpdatedAt string                  `json:"updatedAt"`
	Count     int                     `json:"count"`
	Servers   []catalog.UnifiedRecord `json:"servers"`
}

func runCompile(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read config flag: %w", err)
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to read output flag: %w", err)
	}

	return compileCatalog(context.Background(), configPath, outputPath)
}

// compileCatalog runs the offline pipeline: load every source, reconcile by
// canonical key, then collapse the remaining cross-source duplicates by
// derived identity key before writing the dump. The identity pass catches
// records whose display names normalize differently but share a repository
// or package.
func compileCatalog(ctx context.Context, configPath, outputPath string) error {
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	normalizer := identity.NewNormalizer(nil)
	factory := sources.NewSourceHandlerFactory(normalizer)
	provider := sources.NewCatalogProvider(cfg, factory)

	cat, err := provider.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to build catalog: %w", err)
	}

	records := reconcile.ReconcileByIdentity(cat.Records)
	reconcile.SortCatalog(records)
	if collapsed := len(cat.Records) - len(records); collapsed > 0 {
		slog.Info("Collapsed cross-source duplicates by identity key",
			"merged_count", collapsed)
	}

	dump := compiledCatalog{
		UpdatedAt: cat.BuiltAt.UTC().Format(time.RFC3339),
		Count:     len(records),
		Servers:   records,
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(outputPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	slog.Info("Compiled catalog",
		"catalog", cfg.GetCatalogName(),
		"server_count", len(records),
		"output", outputPath)
	return nil
}
