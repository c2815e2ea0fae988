package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalCompliance_DecodesRFC3339Deadlines(t *testing.T) {
	raw := `compliance:
  defaultLateFeeDeadline: "2026-04-01T00:00:00Z"
  lateFeeDeadlines:
    "2026-P1": "2026-07-01T00:00:00Z"
`
	path := filepath.Join(t.TempDir(), "compliance.yml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := unmarshalCompliance(v)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), cfg.DefaultLateFeeDeadline)
	assert.Equal(t, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC), cfg.LateFeeDeadlines["2026-P1"])
}

func TestLateFeeDeadline_FallsBackToDefault(t *testing.T) {
	cfg := ComplianceConfig{
		DefaultLateFeeDeadline: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
		LateFeeDeadlines: map[string]time.Time{
			"2026-P1": time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	assert.Equal(t, cfg.LateFeeDeadlines["2026-P1"], cfg.LateFeeDeadline(" 2026-P1 "))
	assert.Equal(t, cfg.DefaultLateFeeDeadline, cfg.LateFeeDeadline("2027-P9"))
}
