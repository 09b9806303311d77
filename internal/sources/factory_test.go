package sources_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-market/connector/internal/config"
	"github.com/compose-market/connector/internal/sources"
)

func TestSourceHandlerFactory_CreateHandler(t *testing.T) {
	t.Parallel()

	factory := sources.NewSourceHandlerFactory(nil)

	tests := []struct {
		name       string
		sourceType string
		wantErr    bool
	}{
		{name: "file handler", sourceType: config.SourceTypeFile},
		{name: "api handler", sourceType: config.SourceTypeAPI},
		{name: "unsupported type", sourceType: "git", wantErr: true},
		{name: "empty type", sourceType: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler, err := factory.CreateHandler(tt.sourceType)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported source type")
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, handler)
		})
	}
}
