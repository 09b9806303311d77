package sources

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/compose-market/connector/internal/config"
)

// fileSourceHandler handles catalog data from local files
type fileSourceHandler struct {
	validator SourceDataValidator
}

// NewFileSourceHandler creates a new file source handler
func NewFileSourceHandler(validator SourceDataValidator) SourceHandler {
	return &fileSourceHandler{validator: validator}
}

// Validate validates the file source configuration
func (*fileSourceHandler) Validate(src *config.SourceConfig) error {
	if src == nil {
		return fmt.Errorf("source configuration cannot be nil")
	}

	if src.File == nil {
		return fmt.Errorf("file configuration is required")
	}

	if src.File.Path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	return nil
}

// FetchSource retrieves catalog data from the local file
func (h *fileSourceHandler) FetchSource(ctx context.Context, src *config.SourceConfig) (*FetchResult, error) {
	data, hash, err := h.fetchFileData(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file data: %w", err)
	}

	records, err := h.validator.ValidateData(data, src)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return NewFetchResult(records, hash, src.Origin), nil
}

// fetchFileData reads the file and calculates its hash
func (h *fileSourceHandler) fetchFileData(_ context.Context, src *config.SourceConfig) ([]byte, string, error) {
	if err := h.Validate(src); err != nil {
		return nil, "", fmt.Errorf("source validation failed: %w", err)
	}

	filePath := src.File.Path

	//nolint:gosec // File path comes from user configuration, this is expected behavior
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("file not found: %s", filePath)
		}
		return nil, "", fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	return data, hash, nil
}
