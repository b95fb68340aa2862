package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_JSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", in: `"72h"`, want: 72 * time.Hour},
		{name: "compound", in: `"1m30s"`, want: 90 * time.Second},
		{name: "nanoseconds", in: `1000000000`, want: time.Second},
		{name: "bad string", in: `"soon"`, wantErr: true},
		{name: "bool", in: `true`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_YAML(t *testing.T) {
	var cfg struct {
		Retention Duration `yaml:"retention"`
		Timeout   Duration `yaml:"timeout"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("retention: 168h\ntimeout: 5000000\n"), &cfg))
	assert.Equal(t, 168*time.Hour, cfg.Retention.Duration)
	assert.Equal(t, 5*time.Millisecond, cfg.Timeout.Duration)

	err := yaml.Unmarshal([]byte("retention: [1, 2]\n"), &cfg)
	assert.Error(t, err)
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 90 * time.Minute})
	require.NoError(t, err)
	assert.JSONEq(t, `"1h30m0s"`, string(b))

	out, err := yaml.Marshal(map[string]Duration{"every": {Duration: time.Minute}})
	require.NoError(t, err)
	assert.Equal(t, "every: 1m0s\n", string(out))
}
