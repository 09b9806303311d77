package sources

import (
	"context"
	"fmt"

	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/config"
	"github.com/compose-market/connector/internal/identity"
)

// SourceDataValidator validates and adapts a raw source document.
type SourceDataValidator interface {
	// ValidateData validates raw data against the declared format and
	// returns the adapted unified records.
	ValidateData(data []byte, src *config.SourceConfig) ([]catalog.UnifiedRecord, error)
}

// SourceHandler is an interface with methods to fetch data from external data sources
type SourceHandler interface {
	// FetchSource retrieves data from the source and returns the result
	FetchSource(ctx context.Context, src *config.SourceConfig) (*FetchResult, error)

	// Validate validates the source configuration
	Validate(src *config.SourceConfig) error
}

// FetchResult contains the result of a fetch operation
type FetchResult struct {
	// Records is the adapted unified records from the source
	Records []catalog.UnifiedRecord

	// Hash is the SHA256 hash of the raw document for change detection
	Hash string

	// Count is the number of records found in the document
	Count int

	// Origin is the data provider tag of the source
	Origin catalog.Origin
}

// NewFetchResult creates a new FetchResult from adapted records and a
// pre-calculated document hash.
func NewFetchResult(records []catalog.UnifiedRecord, hash string, origin catalog.Origin) *FetchResult {
	return &FetchResult{
		Records: records,
		Hash:    hash,
		Count:   len(records),
		Origin:  origin,
	}
}

// SourceHandlerFactory creates source handlers based on source type
type SourceHandlerFactory interface {
	// CreateHandler creates a source handler for the given source type
	CreateHandler(sourceType string) (SourceHandler, error)
}

// defaultSourceDataValidator is the default implementation of SourceDataValidator
type defaultSourceDataValidator struct {
	schemas    *schemaSet
	normalizer *identity.Normalizer
}

// NewSourceDataValidator creates a validator backed by the embedded format
// schemas and the given normalizer. Passing nil uses the default
// normalization tables.
func NewSourceDataValidator(normalizer *identity.Normalizer) SourceDataValidator {
	if normalizer == nil {
		normalizer = identity.NewNormalizer(nil)
	}
	return &defaultSourceDataValidator{
		schemas:    compiledSchemas(),
		normalizer: normalizer,
	}
}

// ValidateData validates raw data against the declared format and adapts it
// into unified records.
func (v *defaultSourceDataValidator) ValidateData(
	data []byte,
	src *config.SourceConfig,
) ([]catalog.UnifiedRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}

	if err := v.schemas.validate(data, src.Format); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	switch src.Format {
	case config.SourceFormatServers:
		return AdaptServers(data, src.Origin, v.normalizer)
	case config.SourceFormatPlugins:
		return AdaptPlugins(data, src.Origin, v.normalizer)
	default:
		return nil, fmt.Errorf("unsupported format: %s", src.Format)
	}
}
