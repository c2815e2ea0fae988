package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskMetadata_KeepsDomainIdentifiers(t *testing.T) {
	got := MaskMetadata(map[string]any{
		"file_id":              "0c6f3a9e-5f1f-4f0d-9f44-2f2d6f0b9a11",
		"app_reference_number": "PF-2026P1-ACME-01HZXV9K2M",
		"submission_type":      "producer",
	})

	assert.Equal(t, "0c6f3a9e-5f1f-4f0d-9f44-2f2d6f0b9a11", got["file_id"])
	assert.Equal(t, "PF-2026P1-ACME-01HZXV9K2M", got["app_reference_number"])
	assert.Equal(t, "producer", got["submission_type"])
}

func TestMaskMetadata_RedactsSecretKeys(t *testing.T) {
	got := MaskMetadata(map[string]any{
		"api_token":     "abcdef123456",
		"client_secret": "short",
	})

	assert.Equal(t, "****3456", got["api_token"])
	assert.Equal(t, "****", got["client_secret"])
}

func TestMaskMetadata_WalksNestedValues(t *testing.T) {
	got := MaskMetadata(map[string]any{
		"request": map[string]any{
			"authorization": "Bearer abcdef123456",
			"file_name":     "pom.csv",
		},
		"access_tokens": []any{"abcdef123456"},
	})

	nested := got["request"].(map[string]any)
	assert.Equal(t, "****3456", nested["authorization"])
	assert.Equal(t, "pom.csv", nested["file_name"])
	assert.Equal(t, []any{"****3456"}, got["access_tokens"])
}

func TestMaskMetadata_EmptyInput(t *testing.T) {
	assert.Nil(t, MaskMetadata(nil))
	assert.Nil(t, MaskMetadata(map[string]any{"  ": "dropped"}))
}
