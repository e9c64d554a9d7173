package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"http URL", "http://example.com/path", "http://example.com/path"},
		{"https URL", "https://example.com/path?param=value", "https://example.com/path?param=value"},
		{"URL without scheme", "example.com/path", "http://example.com/path"},
		{"host and port", "localhost:8080/api", "http://localhost:8080/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeURL(tt.url))
		})
	}
}
