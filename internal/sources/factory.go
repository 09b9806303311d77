package sources

import (
	"fmt"

	"github.com/compose-market/connector/internal/config"
	"github.com/compose-market/connector/internal/identity"
)

// defaultSourceHandlerFactory is the default implementation of SourceHandlerFactory
type defaultSourceHandlerFactory struct {
	validator SourceDataValidator
}

var _ SourceHandlerFactory = (*defaultSourceHandlerFactory)(nil)

// NewSourceHandlerFactory creates a new source handler factory. All handlers
// share one validator so every source goes through the same normalization
// tables.
func NewSourceHandlerFactory(normalizer *identity.Normalizer) SourceHandlerFactory {
	return &defaultSourceHandlerFactory{
		validator: NewSourceDataValidator(normalizer),
	}
}

// CreateHandler creates a source handler for the given source type
func (f *defaultSourceHandlerFactory) CreateHandler(sourceType string) (SourceHandler, error) {
	switch sourceType {
	case config.SourceTypeFile:
		return NewFileSourceHandler(f.validator), nil
	case config.SourceTypeAPI:
		return NewAPISourceHandler(f.validator), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}
