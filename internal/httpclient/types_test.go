package httpclient_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-market/connector/internal/httpclient"
)

func TestHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		url           string
		message       string
		expectedError string
	}{
		{
			name:          "404 with message",
			statusCode:    404,
			url:           "https://registry.example.com/servers.json",
			message:       "Not Found",
			expectedError: "HTTP 404 for URL https://registry.example.com/servers.json: Not Found",
		},
		{
			name:          "500 with message",
			statusCode:    500,
			url:           "https://api.example.com/v1/plugins",
			message:       "Internal Server Error",
			expectedError: "HTTP 500 for URL https://api.example.com/v1/plugins: Internal Server Error",
		},
		{
			name:          "empty message",
			statusCode:    502,
			url:           "https://example.com",
			message:       "",
			expectedError: "HTTP 502 for URL https://example.com: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := httpclient.NewHTTPError(tt.statusCode, tt.url, tt.message)

			require.Error(t, err)
			assert.Equal(t, tt.expectedError, err.Error())
		})
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "404 HTTPError",
			err:  httpclient.NewHTTPError(http.StatusNotFound, "https://example.com", "Not Found"),
			want: true,
		},
		{
			name: "500 HTTPError",
			err:  httpclient.NewHTTPError(http.StatusInternalServerError, "https://example.com", "Internal Server Error"),
			want: false,
		},
		{
			name: "wrapped 404",
			err:  fmt.Errorf("fetch failed: %w", httpclient.NewHTTPError(http.StatusNotFound, "https://example.com", "Not Found")),
			want: true,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("connection refused"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, httpclient.IsNotFound(tt.err))
		})
	}
}
