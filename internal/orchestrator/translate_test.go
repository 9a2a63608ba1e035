package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		technical string
		want      Category
	}{
		{"video exceeds size limit: 812 MB > 500 MB", CategorySizeExceeded},
		{"declared size (600000000 bytes) exceeds limit (524288000 bytes)", CategorySizeExceeded},
		{"external download timed out after 10m0s", CategoryTimeout},
		{"context deadline exceeded", CategoryTimeout},
		{"source not available: HTTP 404", CategoryUnavailable},
		{"Video unavailable", CategoryUnavailable},
		{"source not found", CategoryUnavailable},
		{"request failed: dial tcp: connection refused", CategoryNetwork},
		{"source is private", CategoryRestricted},
		{"access to source is forbidden", CategoryRestricted},
		{"video restricted in your region", CategoryRestricted},
		{"failed to send video", CategoryDelivery},
		{"something inexplicable", CategoryGeneric},
		{"", CategoryGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Translate(tt.technical), "input: %q", tt.technical)
	}
}

func TestTranslatePrecedence(t *testing.T) {
	// Earlier matchers win when several could apply.
	assert.Equal(t, CategorySizeExceeded, Translate("video too large, request failed"))
	assert.Equal(t, CategoryTimeout, Translate("network read timed out"))
	assert.Equal(t, CategoryUnavailable, Translate("private video was removed"))
}

func TestTranslateCaseInsensitive(t *testing.T) {
	assert.Equal(t, CategoryTimeout, Translate("Download TIMED OUT"))
}

func TestCategoryMessageNonEmpty(t *testing.T) {
	for _, c := range []Category{
		CategorySizeExceeded, CategoryTimeout, CategoryUnavailable,
		CategoryNetwork, CategoryRestricted, CategoryDelivery, CategoryGeneric,
	} {
		assert.NotEmpty(t, c.Message())
	}
}
