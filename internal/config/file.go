package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/gophdata/internal/flagx"
	"github.com/dmitrijs2005/gophdata/internal/timex"
)

// FileConfig is the on-disk shape of Config. Durations accept strings
// such as "72h" or integer nanoseconds. Pointer fields distinguish an
// absent key from a zero value.
type FileConfig struct {
	DatabaseDriver   string          `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN      string          `json:"database_dsn" yaml:"database_dsn"`
	CleanupRetention *timex.Duration `json:"cleanup_retention" yaml:"cleanup_retention"`
	CleanupBatchSize int             `json:"cleanup_batch_size" yaml:"cleanup_batch_size"`
	CleanupSchedule  string          `json:"cleanup_schedule" yaml:"cleanup_schedule"`
	RunOnStart       *bool           `json:"run_on_start" yaml:"run_on_start"`
	LogLevel         string          `json:"log_level" yaml:"log_level"`
	LogFormat        string          `json:"log_format" yaml:"log_format"`
}

// parseFile loads the file named by -c/-config, if any, and copies the
// keys it sets into config. Files ending in .yaml or .yml are read as
// YAML, anything else as JSON. It panics when the file cannot be read or
// decoded.
func parseFile(config *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *FileConfig) apply(config *Config) {
	if c.DatabaseDriver != "" {
		config.DatabaseDriver = c.DatabaseDriver
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.CleanupRetention != nil {
		config.CleanupRetention = c.CleanupRetention.Duration
	}
	if c.CleanupBatchSize != 0 {
		config.CleanupBatchSize = c.CleanupBatchSize
	}
	if c.CleanupSchedule != "" {
		config.CleanupSchedule = c.CleanupSchedule
	}
	if c.RunOnStart != nil {
		config.RunOnStart = *c.RunOnStart
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
	if c.LogFormat != "" {
		config.LogFormat = c.LogFormat
	}
}
