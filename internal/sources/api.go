package sources

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/compose-market/connector/internal/config"
	"github.com/compose-market/connector/internal/httpclient"
)

// apiSourceHandler handles catalog data from API endpoints
type apiSourceHandler struct {
	httpClient httpclient.Client
	validator  SourceDataValidator
}

// NewAPISourceHandler creates a new API source handler
func NewAPISourceHandler(validator SourceDataValidator) SourceHandler {
	return &apiSourceHandler{
		httpClient: httpclient.NewDefaultClient(0), // Use default timeout
		validator:  validator,
	}
}

// Validate validates the API source configuration
func (*apiSourceHandler) Validate(src *config.SourceConfig) error {
	if src == nil {
		return fmt.Errorf("source configuration cannot be nil")
	}

	if src.API == nil {
		return fmt.Errorf("api configuration is required")
	}

	if src.API.Endpoint == "" {
		return fmt.Errorf("api endpoint cannot be empty")
	}

	return nil
}

// FetchSource retrieves catalog data from the API endpoint
func (h *apiSourceHandler) FetchSource(ctx context.Context, src *config.SourceConfig) (*FetchResult, error) {
	if err := h.Validate(src); err != nil {
		return nil, fmt.Errorf("source validation failed: %w", err)
	}

	client := h.httpClient
	if src.API.Timeout != "" {
		// Validated during config load; a parse failure here means the
		// config was mutated after validation.
		timeout, err := time.ParseDuration(src.API.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid api timeout: %w", err)
		}
		client = httpclient.NewDefaultClient(timeout)
	}

	data, err := client.Get(ctx, src.API.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s: %w", src.API.Endpoint, err)
	}

	records, err := h.validator.ValidateData(data, src)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	return NewFetchResult(records, hash, src.Origin), nil
}
