package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/config"
	"github.com/compose-market/connector/internal/reconcile"
)

// CatalogProvider loads all configured sources, reconciles the combined
// record list and produces the finished catalog.
type CatalogProvider struct {
	cfg     *config.Config
	factory SourceHandlerFactory
}

// NewCatalogProvider creates a provider over the configured source list.
func NewCatalogProvider(cfg *config.Config, factory SourceHandlerFactory) *CatalogProvider {
	return &CatalogProvider{cfg: cfg, factory: factory}
}

// LoadCatalog fetches every source concurrently, keeps per-source results in
// configured order (the order decides first-seen-wins priority ties), then
// reconciles and sorts.
//
// A failing source is non-fatal: it contributes zero records and a warning.
// Only the total inability to load any source is an error.
func (p *CatalogProvider) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	results := make([]*FetchResult, len(p.cfg.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i := range p.cfg.Sources {
		src := &p.cfg.Sources[i]
		g.Go(func() error {
			result, err := p.fetchSource(gctx, src)
			if err != nil {
				// Degrade to zero records from this source.
				slog.Warn("Failed to load source, continuing without it",
					"source", src.Name,
					"origin", src.Origin,
					"error", err)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []catalog.UnifiedRecord
	loaded := 0
	for i, result := range results {
		if result == nil {
			continue
		}
		loaded++
		slog.Info("Loaded source",
			"source", p.cfg.Sources[i].Name,
			"origin", result.Origin,
			"server_count", result.Count,
			"hash", shortHash(result.Hash))
		records = append(records, result.Records...)
	}

	if loaded == 0 {
		return nil, fmt.Errorf("failed to load any of the %d configured sources", len(p.cfg.Sources))
	}

	merged := reconcile.Reconcile(records)
	reconcile.SortCatalog(merged)

	slog.Info("Built catalog",
		"catalog", p.cfg.GetCatalogName(),
		"source_count", loaded,
		"input_records", len(records),
		"server_count", len(merged))

	return &catalog.Catalog{
		Records: merged,
		BuiltAt: time.Now(),
	}, nil
}

// Source returns a human-readable summary of the configured sources.
func (p *CatalogProvider) Source() string {
	parts := make([]string, 0, len(p.cfg.Sources))
	for i := range p.cfg.Sources {
		src := &p.cfg.Sources[i]
		parts = append(parts, fmt.Sprintf("%s:%s", src.GetType(), src.Name))
	}
	return strings.Join(parts, ",")
}

func (p *CatalogProvider) fetchSource(ctx context.Context, src *config.SourceConfig) (*FetchResult, error) {
	handler, err := p.factory.CreateHandler(src.GetType())
	if err != nil {
		return nil, fmt.Errorf("failed to create handler: %w", err)
	}
	return handler.FetchSource(ctx, src)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
