// Package inmemory provides the in-memory implementation of the
// CatalogService interface. The catalog is built once, held behind an
// atomically swapped snapshot, and rebuilt from scratch on reload so
// concurrent readers never observe a partially-built catalog.
package inmemory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/service"
	"github.com/compose-market/connector/internal/telemetry"
)

// defaultSearchCacheSize bounds the per-snapshot cache of scored search
// results.
const defaultSearchCacheSize = 256

// snapshot pairs a built catalog with its search cache. A fresh cache is
// created for every rebuild, so stale results can never outlive the catalog
// they were computed from.
type snapshot struct {
	cat    *catalog.Catalog
	search *lru.Cache[string, []catalog.UnifiedRecord]
}

// catalogSvc implements the CatalogService interface
type catalogSvc struct {
	provider service.CatalogProvider

	current  atomic.Pointer[snapshot]
	reloadMu sync.Mutex // serializes rebuilds; readers never block

	metrics         *telemetry.Metrics
	searchCacheSize int
}

var _ service.CatalogService = (*catalogSvc)(nil)

// Option is a functional option for configuring the catalogSvc
type Option func(*catalogSvc)

// WithMetrics attaches Prometheus collectors updated on every rebuild
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(s *catalogSvc) {
		s.metrics = metrics
	}
}

// WithSearchCacheSize sets a custom size for the search result cache
func WithSearchCacheSize(size int) Option {
	return func(s *catalogSvc) {
		if size > 0 {
			s.searchCacheSize = size
		}
	}
}

// New creates a new catalog service backed by the given provider.
// The initial build happens eagerly; a failure is logged and retried
// lazily on first read rather than failing service creation.
func New(ctx context.Context, provider service.CatalogProvider, opts ...Option) (service.CatalogService, error) {
	if provider == nil {
		return nil, fmt.Errorf("catalog provider is required")
	}

	s := &catalogSvc{
		provider:        provider,
		searchCacheSize: defaultSearchCacheSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.rebuild(ctx); err != nil {
		slog.Warn("Failed to build initial catalog", "error", err)
		// Don't fail service creation, allow it to retry later
	}

	return s, nil
}

// rebuild constructs a complete catalog and swaps it in. Last writer wins
// on the snapshot pointer; rebuilds are idempotent so concurrent callers
// converge on equivalent catalogs.
func (s *catalogSvc) rebuild(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.rebuildLocked(ctx)
}

// rebuildLocked performs the build. Caller must hold s.reloadMu.
func (s *catalogSvc) rebuildLocked(ctx context.Context) error {
	start := time.Now()

	cat, err := s.provider.LoadCatalog(ctx)
	s.metrics.ObserveReload(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	cache, err := lru.New[string, []catalog.UnifiedRecord](s.searchCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create search cache: %w", err)
	}

	s.current.Store(&snapshot{cat: cat, search: cache})
	s.metrics.ObserveCatalog(cat)

	slog.Info("Catalog ready",
		"server_count", len(cat.Records),
		"build_duration", time.Since(start))
	return nil
}

// ensureLoaded returns the current snapshot, lazily building the catalog on
// first use.
func (s *catalogSvc) ensureLoaded(ctx context.Context) (*snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}

	if err := s.rebuildLocked(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s", service.ErrCatalogNotLoaded, err)
	}
	return s.current.Load(), nil
}

// CheckReadiness implements CatalogService.CheckReadiness
func (s *catalogSvc) CheckReadiness(ctx context.Context) error {
	if _, err := s.ensureLoaded(ctx); err != nil {
		return fmt.Errorf("catalog data not available: %w", err)
	}
	return nil
}

// GetCatalog implements CatalogService.GetCatalog
func (s *catalogSvc) GetCatalog(ctx context.Context) (*catalog.Catalog, string, error) {
	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, s.provider.Source(), err
	}
	return snap.cat, s.provider.Source(), nil
}

// ListServers implements CatalogService.ListServers
func (s *catalogSvc) ListServers(ctx context.Context, opts ...service.ListOption) ([]catalog.UnifiedRecord, error) {
	options := &service.ListServersOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	records := snap.cat.Records
	if options.Search != "" {
		records = s.searchRecords(snap, options.Search)
	}

	records = filterRecords(records, options)

	return paginate(records, options.Offset, options.Limit), nil
}

// GetServer implements CatalogService.GetServer
func (s *catalogSvc) GetServer(ctx context.Context, registryID string) (*catalog.UnifiedRecord, error) {
	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	for i := range snap.cat.Records {
		rec := &snap.cat.Records[i]
		if rec.RegistryID == registryID {
			return rec, nil
		}
		for _, alt := range rec.AlternateIDs {
			if alt == registryID {
				return rec, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", service.ErrServerNotFound, registryID)
}

// ListCategories implements CatalogService.ListCategories
func (s *catalogSvc) ListCategories(ctx context.Context) ([]string, error) {
	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	return distinct(snap.cat.Records, func(rec *catalog.UnifiedRecord) []string {
		if rec.Category == "" {
			return nil
		}
		return []string{rec.Category}
	}), nil
}

// ListTags implements CatalogService.ListTags
func (s *catalogSvc) ListTags(ctx context.Context) ([]string, error) {
	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	return distinct(snap.cat.Records, func(rec *catalog.UnifiedRecord) []string {
		return rec.Tags
	}), nil
}

// GetStats implements CatalogService.GetStats
func (s *catalogSvc) GetStats(ctx context.Context) (*catalog.Stats, error) {
	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return snap.cat.ComputeStats(), nil
}

// Reload implements CatalogService.Reload
func (s *catalogSvc) Reload(ctx context.Context) error {
	jobID := uuid.NewString()
	slog.Info("Reloading catalog", "job_id", jobID)

	if err := s.rebuild(ctx); err != nil {
		slog.Error("Catalog reload failed", "job_id", jobID, "error", err)
		return err
	}

	slog.Info("Catalog reload complete", "job_id", jobID)
	return nil
}

// searchRecords returns records matching the query ordered by descending
// score, caching results per snapshot.
func (s *catalogSvc) searchRecords(snap *snapshot, query string) []catalog.UnifiedRecord {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return snap.cat.Records
	}

	if cached, ok := snap.search.Get(key); ok {
		return cached
	}

	type scored struct {
		rec   catalog.UnifiedRecord
		score int
	}

	var matches []scored
	for i := range snap.cat.Records {
		rec := &snap.cat.Records[i]
		if sc := scoreRecord(rec, key); sc > 0 {
			matches = append(matches, scored{rec: *rec, score: sc})
		}
	}

	// Stable sort keeps catalog order among equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	results := make([]catalog.UnifiedRecord, 0, len(matches))
	for _, m := range matches {
		results = append(results, m.rec)
	}

	snap.search.Add(key, results)
	return results
}

// scoreRecord computes the text-search relevance score for a record.
func scoreRecord(rec *catalog.UnifiedRecord, query string) int {
	score := 0

	nameLower := strings.ToLower(rec.Name)
	if nameLower == query {
		score += 100
	}
	if strings.Contains(nameLower, query) {
		score += 50
	}
	if strings.Contains(strings.ToLower(rec.Namespace), query) {
		score += 30
	}
	if strings.Contains(strings.ToLower(rec.Slug), query) {
		score += 25
	}
	if strings.Contains(strings.ToLower(rec.Description), query) {
		score += 20
	}
	for _, tag := range rec.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			score += 15
			break
		}
	}
	if strings.Contains(strings.ToLower(rec.Category), query) {
		score += 10
	}
	if strings.Contains(strings.ToLower(rec.RepoURL), query) {
		score += 5
	}

	return score
}

// filterRecords applies origin/category/availability filters.
func filterRecords(records []catalog.UnifiedRecord, options *service.ListServersOptions) []catalog.UnifiedRecord {
	if options.Origin == "" && options.Category == "" && options.Available == nil {
		return records
	}

	filtered := make([]catalog.UnifiedRecord, 0, len(records))
	for _, rec := range records {
		if options.Origin != "" && !hasOrigin(&rec, catalog.Origin(options.Origin)) {
			continue
		}
		if options.Category != "" && !strings.EqualFold(rec.Category, options.Category) {
			continue
		}
		if options.Available != nil && rec.Available != *options.Available {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

func hasOrigin(rec *catalog.UnifiedRecord, origin catalog.Origin) bool {
	for _, src := range rec.Sources {
		if src == origin {
			return true
		}
	}
	return false
}

// paginate slices the page window. Limits above the cap are silently
// reduced; offsets beyond the end yield an empty slice rather than an
// error.
func paginate(records []catalog.UnifiedRecord, offset, limit int) []catalog.UnifiedRecord {
	limit = service.EffectiveLimit(limit)

	if offset >= len(records) {
		return []catalog.UnifiedRecord{}
	}

	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}

// distinct collects the sorted set of values extracted from every record.
func distinct(records []catalog.UnifiedRecord, extract func(*catalog.UnifiedRecord) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range records {
		for _, v := range extract(&records[i]) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}
