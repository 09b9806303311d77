// Package service provides the business logic for the connector catalog API
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/compose-market/connector/internal/catalog"
)

var (
	// ErrServerNotFound is returned when a server is not found
	ErrServerNotFound = errors.New("server not found")
	// ErrCatalogNotLoaded is returned when the catalog could not be built
	ErrCatalogNotLoaded = errors.New("catalog not loaded")
)

const (
	// MaxPageSize is the hard cap on page sizes; larger requests are
	// silently clamped.
	MaxPageSize = 100

	// DefaultPageSize is used when no limit is requested.
	DefaultPageSize = 50
)

// EffectiveLimit resolves a requested limit to the page size actually
// applied: non-positive values fall back to DefaultPageSize and values
// above MaxPageSize are clamped.
func EffectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// CatalogProvider supplies the finished, reconciled catalog.
type CatalogProvider interface {
	// LoadCatalog builds a complete catalog from scratch.
	LoadCatalog(ctx context.Context) (*catalog.Catalog, error)

	// Source returns a human-readable description of the data sources.
	Source() string
}

// CatalogService defines the interface for catalog read operations and
// explicit reload.
type CatalogService interface {
	// CheckReadiness checks if the service is ready to serve requests
	CheckReadiness(ctx context.Context) error

	// GetCatalog returns the full catalog with its source description
	GetCatalog(ctx context.Context) (*catalog.Catalog, string, error)

	// ListServers returns catalog records matching the given options
	ListServers(ctx context.Context, opts ...ListOption) ([]catalog.UnifiedRecord, error)

	// GetServer returns a single record by registry id. Ids folded into a
	// merged record during deduplication resolve to the surviving record.
	GetServer(ctx context.Context, registryID string) (*catalog.UnifiedRecord, error)

	// ListCategories returns the distinct categories in the catalog
	ListCategories(ctx context.Context) ([]string, error)

	// ListTags returns the distinct tags in the catalog
	ListTags(ctx context.Context) ([]string, error)

	// GetStats returns aggregate catalog metadata
	GetStats(ctx context.Context) (*catalog.Stats, error)

	// Reload discards the cached catalog and rebuilds it from scratch.
	// Safe to call concurrently with in-flight reads.
	Reload(ctx context.Context) error
}

// ListServersOptions is the options for the ListServers operation
type ListServersOptions struct {
	Search    string
	Origin    string
	Category  string
	Available *bool
	Offset    int
	Limit     int
}

// ListOption sets an option for the ListServers operation
type ListOption func(*ListServersOptions) error

// WithSearch sets the text search query
func WithSearch(search string) ListOption {
	return func(o *ListServersOptions) error {
		o.Search = search
		return nil
	}
}

// WithOrigin filters records to those contributed by the given origin
func WithOrigin(origin string) ListOption {
	return func(o *ListServersOptions) error {
		o.Origin = origin
		return nil
	}
}

// WithCategory filters records by category
func WithCategory(category string) ListOption {
	return func(o *ListServersOptions) error {
		o.Category = category
		return nil
	}
}

// WithAvailable filters records by availability
func WithAvailable(available bool) ListOption {
	return func(o *ListServersOptions) error {
		o.Available = &available
		return nil
	}
}

// WithPagination sets the page window. Negative offsets are rejected;
// limits above MaxPageSize are clamped rather than rejected.
func WithPagination(offset, limit int) ListOption {
	return func(o *ListServersOptions) error {
		if offset < 0 {
			return fmt.Errorf("offset cannot be negative: %d", offset)
		}
		o.Offset = offset
		o.Limit = limit
		return nil
	}
}
