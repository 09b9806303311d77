package v0_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v0 "github.com/compose-market/connector/internal/api/v0"
	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/service"
)

// fakeService is a scripted CatalogService for handler tests.
type fakeService struct {
	cat       *catalog.Catalog
	listErr   error
	reloadErr error
	readyErr  error

	lastListOpts *service.ListServersOptions
}

func (f *fakeService) CheckReadiness(context.Context) error { return f.readyErr }

func (f *fakeService) GetCatalog(context.Context) (*catalog.Catalog, string, error) {
	return f.cat, "test:fixture", nil
}

func (f *fakeService) ListServers(_ context.Context, opts ...service.ListOption) ([]catalog.UnifiedRecord, error) {
	options := &service.ListServersOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	f.lastListOpts = options

	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.cat.Records, nil
}

func (f *fakeService) GetServer(_ context.Context, registryID string) (*catalog.UnifiedRecord, error) {
	for i := range f.cat.Records {
		if f.cat.Records[i].RegistryID == registryID {
			return &f.cat.Records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", service.ErrServerNotFound, registryID)
}

func (f *fakeService) ListCategories(context.Context) ([]string, error) {
	return []string{"developer", "social"}, nil
}

func (f *fakeService) ListTags(context.Context) ([]string, error) {
	return []string{"git", "github"}, nil
}

func (f *fakeService) GetStats(context.Context) (*catalog.Stats, error) {
	return f.cat.ComputeStats(), nil
}

func (f *fakeService) Reload(context.Context) error { return f.reloadErr }

func newFakeService() *fakeService {
	return &fakeService{
		cat: &catalog.Catalog{
			BuiltAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Records: []catalog.UnifiedRecord{
				{
					RegistryID: "registry:github",
					Origin:     catalog.OriginRegistry,
					Sources:    []catalog.Origin{catalog.OriginRegistry},
					Name:       "GitHub",
					Category:   "developer",
					Available:  true,
				},
				{
					RegistryID: "registry:discord",
					Origin:     catalog.OriginRegistry,
					Sources:    []catalog.Origin{catalog.OriginRegistry},
					Name:       "Discord",
					Category:   "social",
				},
			},
		},
	}
}

func doRequest(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestListServers(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/servers")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp v0.ServerListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Servers, 2)
	assert.Equal(t, "GitHub", resp.Servers[0].Name)
	assert.Equal(t, service.DefaultPageSize, resp.Limit, "omitted limit should report the default page size")
}

func TestListServers_ReportsEffectiveLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		target    string
		wantLimit int
	}{
		{name: "within bounds", target: "/servers?limit=10", wantLimit: 10},
		{name: "above cap is clamped", target: "/servers?limit=500", wantLimit: service.MaxPageSize},
		{name: "zero falls back to default", target: "/servers?limit=0", wantLimit: service.DefaultPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := v0.Router(newFakeService())
			rec := doRequest(t, router, http.MethodGet, tt.target)

			require.Equal(t, http.StatusOK, rec.Code)

			var resp v0.ServerListResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantLimit, resp.Limit)
		})
	}
}

func TestListServers_QueryParams(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet,
		"/servers?q=github&origin=registry&category=developer&available=true&offset=5&limit=10")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastListOpts)
	assert.Equal(t, "github", svc.lastListOpts.Search)
	assert.Equal(t, "registry", svc.lastListOpts.Origin)
	assert.Equal(t, "developer", svc.lastListOpts.Category)
	require.NotNil(t, svc.lastListOpts.Available)
	assert.True(t, *svc.lastListOpts.Available)
	assert.Equal(t, 5, svc.lastListOpts.Offset)
	assert.Equal(t, 10, svc.lastListOpts.Limit)
}

func TestListServers_BadAvailableFilter(t *testing.T) {
	t.Parallel()

	router := v0.Router(newFakeService())

	rec := doRequest(t, router, http.MethodGet, "/servers?available=maybe")

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp v0.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid available filter", resp.Error)
}

func TestListServers_NegativeOffsetNormalized(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/servers?offset=-5")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, svc.lastListOpts.Offset)
}

func TestListServers_ServiceError(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.listErr = errors.New("boom")
	router := v0.Router(svc)

	rec := doRequest(t, router, http.MethodGet, "/servers")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetServer(t *testing.T) {
	t.Parallel()

	router := v0.Router(newFakeService())

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		rec := doRequest(t, router, http.MethodGet, "/servers/registry:github")

		require.Equal(t, http.StatusOK, rec.Code)

		var server catalog.UnifiedRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &server))
		assert.Equal(t, "GitHub", server.Name)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		rec := doRequest(t, router, http.MethodGet, "/servers/registry:unknown")

		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp v0.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Server not found", resp.Error)
	})
}

func TestListCategories(t *testing.T) {
	t.Parallel()

	router := v0.Router(newFakeService())

	rec := doRequest(t, router, http.MethodGet, "/categories")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"developer", "social"}, resp["categories"])
}

func TestListTags(t *testing.T) {
	t.Parallel()

	router := v0.Router(newFakeService())

	rec := doRequest(t, router, http.MethodGet, "/tags")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"git", "github"}, resp["tags"])
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	router := v0.Router(newFakeService())

	rec := doRequest(t, router, http.MethodGet, "/stats")

	require.Equal(t, http.StatusOK, rec.Code)

	var stats catalog.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalServers)
	assert.Equal(t, 1, stats.AvailableCount)
}

func TestGetCatalogInfo(t *testing.T) {
	t.Parallel()

	router := v0.Router(newFakeService())

	rec := doRequest(t, router, http.MethodGet, "/info")

	require.Equal(t, http.StatusOK, rec.Code)

	var info v0.CatalogInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "test:fixture", info.Source)
	assert.Equal(t, "2025-06-01T12:00:00Z", info.BuiltAt)
	assert.Equal(t, 2, info.TotalServers)
}

func TestReload(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		router := v0.Router(newFakeService())

		rec := doRequest(t, router, http.MethodPost, "/reload")

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "reloaded", resp["status"])
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()

		svc := newFakeService()
		svc.reloadErr = errors.New("sources unreachable")
		router := v0.Router(svc)

		rec := doRequest(t, router, http.MethodPost, "/reload")

		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("health", func(t *testing.T) {
		t.Parallel()

		router := v0.HealthRouter(newFakeService())

		rec := doRequest(t, router, http.MethodGet, "/health")

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp["status"])
	})

	t.Run("readiness when ready", func(t *testing.T) {
		t.Parallel()

		router := v0.HealthRouter(newFakeService())

		rec := doRequest(t, router, http.MethodGet, "/readiness")

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readiness when catalog unavailable", func(t *testing.T) {
		t.Parallel()

		svc := newFakeService()
		svc.readyErr = errors.New("catalog not loaded")
		router := v0.HealthRouter(svc)

		rec := doRequest(t, router, http.MethodGet, "/readiness")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("version", func(t *testing.T) {
		t.Parallel()

		router := v0.HealthRouter(newFakeService())

		rec := doRequest(t, router, http.MethodGet, "/version")

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp, "version")
	})
}
