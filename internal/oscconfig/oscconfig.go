// Package oscconfig reads dbsafe-osc's YAML config file into a typed
// struct. The CLI's flat viper keys (cmd/root.go, cmd/run.go) cover
// global defaults; this package additionally models per-table
// overrides, which a flat key space can't express, by unmarshaling the
// same file's "osc.tables" section with gopkg.in/yaml.v3.
package oscconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nethalo/dbsafe-osc/internal/osc/invoker"
)

// Connection is one named entry under the config file's "connections" section.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Database string `yaml:"database"`
}

// TableOverride tunes the engine for one specific table, overriding
// whatever OSC sets globally. Nil fields fall back to the global value.
type TableOverride struct {
	Stride     *int  `yaml:"stride"`
	ThrottleMs *int  `yaml:"throttle_ms"`
	MaxRetries *int  `yaml:"max_retries"`
	Checkpoint *bool `yaml:"checkpoint"`
}

// OSC holds global engine defaults plus any per-table overrides, keyed
// "database.table".
type OSC struct {
	Stride               int                      `yaml:"stride"`
	ThrottleMs           int                      `yaml:"throttle_ms"`
	RetrySleepMs         int                      `yaml:"retry_sleep_ms"`
	MaxRetries           int                      `yaml:"max_retries"`
	TemporaryTableSuffix string                   `yaml:"temporary_table_suffix"`
	Checkpoint           bool                     `yaml:"checkpoint"`
	Tables               map[string]TableOverride `yaml:"tables"`
}

// Config is the top-level shape of ~/.dbsafe-osc/config.yaml.
type Config struct {
	Connections map[string]Connection `yaml:"connections"`
	OSC         OSC                   `yaml:"osc"`
}

// Load reads and parses a config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return &cfg, nil
}

// InvokerOption builds an invoker.Option for the given schema-qualified
// table ("database.table"), applying any matching entry in osc.tables
// on top of the global osc.* defaults.
func (c *Config) InvokerOption(table string) invoker.Option {
	o := c.OSC
	opt := invoker.Option{
		Stride:               o.Stride,
		Throttle:             time.Duration(o.ThrottleMs) * time.Millisecond,
		RetrySleepTime:       time.Duration(o.RetrySleepMs) * time.Millisecond,
		MaxRetries:           o.MaxRetries,
		TemporaryTableSuffix: o.TemporaryTableSuffix,
		Checkpoint:           o.Checkpoint,
	}

	override, ok := o.Tables[table]
	if !ok {
		return opt
	}
	if override.Stride != nil {
		opt.Stride = *override.Stride
	}
	if override.ThrottleMs != nil {
		opt.Throttle = time.Duration(*override.ThrottleMs) * time.Millisecond
	}
	if override.MaxRetries != nil {
		opt.MaxRetries = *override.MaxRetries
	}
	if override.Checkpoint != nil {
		opt.Checkpoint = *override.Checkpoint
	}
	return opt
}
