package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expected    *Config
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{
				"-t", "sqlite", "-d", "data.db", "-r", "48h", "-n", "10",
				"-s", "0 3 * * *", "-o=true", "-l", "debug", "-f", "json",
			},
			expected: &Config{
				DatabaseDriver:   "sqlite",
				DatabaseDSN:      "data.db",
				CleanupRetention: 48 * time.Hour,
				CleanupBatchSize: 10,
				CleanupSchedule:  "0 3 * * *",
				RunOnStart:       true,
				LogLevel:         "debug",
				LogFormat:        "json",
			},
		},
		{
			name:     "no flags keeps values",
			args:     []string{"-x", "ignored"},
			expected: defaults(),
		},
		{
			name:        "bad duration",
			args:        []string{"-r", "forever"},
			expectPanic: true,
		},
		{
			name:        "bad int",
			args:        []string{"-n", "many"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			if tt.expectPanic {
				assert.Panics(t, func() { parseFlags(cfg, tt.args) })
				return
			}
			parseFlags(cfg, tt.args)
			if diff := cmp.Diff(tt.expected, cfg); diff != "" {
				t.Errorf("parseFlags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
