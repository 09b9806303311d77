package inmemory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/service"
	"github.com/compose-market/connector/internal/service/inmemory"
)

// fakeProvider is a CatalogProvider serving a swappable fixed catalog.
type fakeProvider struct {
	mu    sync.Mutex
	cat   *catalog.Catalog
	err   error
	calls int
}

func (p *fakeProvider) LoadCatalog(_ context.Context) (*catalog.Catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.cat, nil
}

func (p *fakeProvider) Source() string {
	return "test:fixture"
}

func (p *fakeProvider) set(cat *catalog.Catalog, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cat = cat
	p.err = err
}

func (p *fakeProvider) loadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		BuiltAt: time.Now(),
		Records: []catalog.UnifiedRecord{
			{
				RegistryID:   "registry:discord",
				Origin:       catalog.OriginRegistry,
				Sources:      []catalog.Origin{catalog.OriginRegistry},
				CanonicalKey: "discord",
				Name:         "Discord",
				Namespace:    "acme",
				Slug:         "discord-mcp",
				Description:  "Relay GitHub notifications to Discord channels",
				Tags:         []string{"discord", "social"},
				Category:     "social",
				Available:    true,
			},
			{
				RegistryID:   "registry:github",
				Origin:       catalog.OriginRegistry,
				Sources:      []catalog.Origin{catalog.OriginRegistry, catalog.OriginPulse},
				CanonicalKey: "github",
				Name:         "GitHub",
				Namespace:    "acme",
				Slug:         "github-mcp",
				Description:  "Manage repositories and issues",
				Tags:         []string{"github", "git"},
				Category:     "developer",
				RepoURL:      "https://github.com/acme/github-mcp",
				Available:    true,
				Executable:   true,
				AlternateIDs: []string{"pulse:github-scrape"},
			},
			{
				RegistryID:   "registry:gitlab",
				Origin:       catalog.OriginRegistry,
				Sources:      []catalog.Origin{catalog.OriginRegistry},
				CanonicalKey: "gitlab",
				Name:         "GitLab",
				Namespace:    "acme",
				Slug:         "gitlab-mcp",
				Description:  "GitLab pipelines and merge requests",
				Tags:         []string{"gitlab", "git"},
				Category:     "developer",
				Available:    false,
			},
		},
	}
}

func newTestService(t *testing.T, provider service.CatalogProvider) service.CatalogService {
	t.Helper()

	svc, err := inmemory.New(context.Background(), provider)
	require.NoError(t, err)
	return svc
}

func TestNew_RequiresProvider(t *testing.T) {
	t.Parallel()

	_, err := inmemory.New(context.Background(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider is required")
}

func TestCheckReadiness(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeProvider{cat: testCatalog()})

	assert.NoError(t, svc.CheckReadiness(context.Background()))
}

func TestCheckReadiness_ProviderFailing(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: fmt.Errorf("all sources unreachable")}
	svc := newTestService(t, provider)

	err := svc.CheckReadiness(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrCatalogNotLoaded)
}

func TestLazyLoadAfterFailedInitialBuild(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: fmt.Errorf("upstream down")}
	svc := newTestService(t, provider)

	// The initial build failed but creation succeeded; once the provider
	// recovers, the first read rebuilds.
	provider.set(testCatalog(), nil)

	records, err := svc.ListServers(context.Background())

	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestGetCatalog(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeProvider{cat: testCatalog()})

	cat, source, err := svc.GetCatalog(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "test:fixture", source)
	assert.Len(t, cat.Records, 3)
}

func TestListServers_NoOptions(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeProvider{cat: testCatalog()})

	records, err := svc.ListServers(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "registry:discord", records[0].RegistryID, "catalog order is preserved")
}

func TestListServers_Search(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeProvider{cat: testCatalog()})

	t.Run("ranked by relevance", func(t *testing.T) {
		t.Parallel()

		records, err := svc.ListServers(context.Background(), service.WithSearch("github"))

		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "GitHub", records[0].Name, "exact name match ranks first")
		assert.Equal(t, "Discord", records[1].Name, "description match ranks after")
	})

	t.Run("name matches outrank description matches", func(t *testing.T) {
		t.Parallel()

		records, err := svc.ListServers(context.Background(), service.WithSearch("git"))

		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "GitHub", records[0].Name)
		assert.Equal(t, "GitLab", records[1].Name)
		assert.Equal(t, "Discord", records[2].Name)
	})

	t.Run("case insensitive", func(t *testing.T) {
		t.Parallel()

		records, err := svc.ListServers(context.Background(), service.WithSearch("  GITHUB  "))

		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "GitHub", records[0].Name)
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()

		records, err := svc.ListServers(context.Background(), service.WithSearch("nonexistent"))

		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("repeated queries hit the cache", func(t *testing.T) {
		t.Parallel()

		first, err := svc.ListServers(context.Background(), service.WithSearch("discord"))
		require.NoError(t, err)
		second, err := svc.ListServers(context.Background(), service.WithSearch("discord"))
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})
}

func TestListServers_Filters(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeProvider{cat: testCatalog()})

	t.Run("by origin includes merged sources", func(t *testing.T) {
		t.Parallel()

		records, err := svc.ListServers(context.Background(), service.WithOrigin("pulse"))

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "registry:github", records[0].RegistryID,
			"a merged record is found under any contributing origin")
	})

	t.Run("by category case insensitive", func(t *testing.T) {
		t.Parallel()

		records, err := svc.ListServers(context.Background(), service.WithCategory("Developer"))

		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("by availability", func(t *testing.T) {
		t.Parallel()

		records, err := svc.ListServers(context.Background(), service.WithAvailable(false))

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "GitLab", records[0].Name)
	})

	t.Run("search combined with filter", func(t *testing.T) {
		t.Parallel()

		records, err := svc.ListServers(context.Background(),
			service.WithSearch("git"),
			service.WithAvailable(false))

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "GitLab", records[0].Name)
	})
}

func TestListServers_Pagination(t *testing.T) {
	t.Parallel()

	records := make([]catalog.UnifiedRecord, 120)
	for i := range records {
		records[i] = catalog.UnifiedRecord{
			RegistryID: fmt.Sprintf("registry:srv-%03d", i),
			Origin:     catalog.OriginRegistry,
			Sources:    []catalog.Origin{catalog.OriginRegistry},
			Name:       fmt.Sprintf("Server %03d", i),
		}
	}
	svc := newTestService(t, &fakeProvider{cat: &catalog.Catalog{Records: records, BuiltAt: time.Now()}})

	t.Run("default page size", func(t *testing.T) {
		t.Parallel()

		got, err := svc.ListServers(context.Background())

		require.NoError(t, err)
		assert.Len(t, got, service.DefaultPageSize)
	})

	t.Run("explicit window", func(t *testing.T) {
		t.Parallel()

		got, err := svc.ListServers(context.Background(), service.WithPagination(10, 5))

		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.Equal(t, "registry:srv-010", got[0].RegistryID)
	})

	t.Run("limit above cap is clamped", func(t *testing.T) {
		t.Parallel()

		got, err := svc.ListServers(context.Background(), service.WithPagination(0, 1000))

		require.NoError(t, err)
		assert.Len(t, got, service.MaxPageSize)
	})

	t.Run("offset past the end", func(t *testing.T) {
		t.Parallel()

		got, err := svc.ListServers(context.Background(), service.WithPagination(500, 10))

		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("window truncated at the end", func(t *testing.T) {
		t.Parallel()

		got, err := svc.ListServers(context.Background(), service.WithPagination(115, 10))

		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("negative offset rejected", func(t *testing.T) {
		t.Parallel()

		_, err := svc.ListServers(context.Background(), service.WithPagination(-1, 10))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "offset cannot be negative")
	})
}

func TestGetServer(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeProvider{cat: testCatalog()})

	t.Run("by registry id", func(t *testing.T) {
		t.Parallel()

		rec, err := svc.GetServer(context.Background(), "registry:github")

		require.NoError(t, err)
		assert.Equal(t, "GitHub", rec.Name)
	})

	t.Run("by alternate id of a merged record", func(t *testing.T) {
		t.Parallel()

		rec, err := svc.GetServer(context.Background(), "pulse:github-scrape")

		require.NoError(t, err)
		assert.Equal(t, "registry:github", rec.RegistryID)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		_, err := svc.GetServer(context.Background(), "registry:unknown")

		require.Error(t, err)
		assert.ErrorIs(t, err, service.ErrServerNotFound)
	})
}

func TestListCategories(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeProvider{cat: testCatalog()})

	categories, err := svc.ListCategories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"developer", "social"}, categories)
}

func TestListTags(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeProvider{cat: testCatalog()})

	tags, err := svc.ListTags(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"discord", "git", "github", "gitlab", "social"}, tags)
}

func TestListTags_EmptyCatalog(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeProvider{cat: &catalog.Catalog{BuiltAt: time.Now()}})

	tags, err := svc.ListTags(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &fakeProvider{cat: testCatalog()})

	stats, err := svc.GetStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalServers)
	assert.Equal(t, 3, stats.ByOrigin[catalog.OriginRegistry])
	assert.Equal(t, 1, stats.ByOrigin[catalog.OriginPulse])
	assert.Equal(t, 2, stats.ByCategory["developer"])
	assert.Equal(t, 1, stats.ExecutableCount)
	assert.Equal(t, 2, stats.AvailableCount)
	assert.Equal(t, 1, stats.MergedCount)
}

func TestReload_SwapsCatalog(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{cat: testCatalog()}
	svc := newTestService(t, provider)

	before, err := svc.ListServers(context.Background())
	require.NoError(t, err)
	require.Len(t, before, 3)

	provider.set(&catalog.Catalog{
		BuiltAt: time.Now(),
		Records: []catalog.UnifiedRecord{
			{RegistryID: "registry:solo", Origin: catalog.OriginRegistry,
				Sources: []catalog.Origin{catalog.OriginRegistry}, Name: "Solo"},
		},
	}, nil)

	require.NoError(t, svc.Reload(context.Background()))

	after, err := svc.ListServers(context.Background())
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "registry:solo", after[0].RegistryID)
	assert.GreaterOrEqual(t, provider.loadCount(), 2)
}

func TestReload_FailureKeepsPreviousCatalog(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{cat: testCatalog()}
	svc := newTestService(t, provider)

	provider.set(nil, errors.New("upstream down"))

	err := svc.Reload(context.Background())
	require.Error(t, err)

	records, err := svc.ListServers(context.Background())
	require.NoError(t, err, "reads keep serving the last good catalog")
	assert.Len(t, records, 3)
}
