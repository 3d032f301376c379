package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Config holds the daemon settings. Values come from datanetd.yaml,
// DATANET_* env vars and CLI flags.
type Config struct {
	Addr       string `mapstructure:"addr"`
	WorldID    string `mapstructure:"world"`
	ConfigDir  string `mapstructure:"configs"`
	DataDir    string `mapstructure:"data"`
	TuningPath string `mapstructure:"tuning"`
	LayoutPath string `mapstructure:"layout"`
	SchemaDir  string `mapstructure:"schemas"`

	// Size of a fresh world without a layout.
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`

	SnapshotPath string `mapstructure:"snapshot"`
	LoadLatest   bool   `mapstructure:"load_latest_snapshot"`
	DisableDB    bool   `mapstructure:"disable_db"`
	EnableAdmin  bool   `mapstructure:"enable_admin"`

	// Snapshot retention. Checkpoints land in archives/ and are kept forever.
	KeepSnapshots int    `mapstructure:"keep_snapshots"`
	ArchiveEvery  uint64 `mapstructure:"archive_every"`

	Tracing TracingConfig `mapstructure:"tracing"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("world", "world_1")
	v.SetDefault("configs", "./configs")
	v.SetDefault("data", "./data")
	v.SetDefault("tuning", "")
	v.SetDefault("layout", "")
	v.SetDefault("schemas", "./schemas")
	v.SetDefault("width", 64)
	v.SetDefault("height", 64)
	v.SetDefault("snapshot", "")
	v.SetDefault("load_latest_snapshot", true)
	v.SetDefault("disable_db", false)
	v.SetDefault("enable_admin", true)
	v.SetDefault("keep_snapshots", 10)
	v.SetDefault("archive_every", 0)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	cfg.WorldID = strings.TrimSpace(cfg.WorldID)
	cfg.TuningPath = strings.TrimSpace(cfg.TuningPath)
	cfg.LayoutPath = strings.TrimSpace(cfg.LayoutPath)
	cfg.SnapshotPath = strings.TrimSpace(cfg.SnapshotPath)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.WorldID == "" {
		return fmt.Errorf("config: world id is empty")
	}
	if strings.ContainsAny(c.WorldID, `/\`) {
		return fmt.Errorf("config: world id %q must not contain path separators", c.WorldID)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: world size %dx%d must be positive", c.Width, c.Height)
	}
	if c.KeepSnapshots < 0 {
		return fmt.Errorf("config: keep_snapshots %d must not be negative", c.KeepSnapshots)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("config: tracing.sample_ratio %v out of [0,1]", c.Tracing.SampleRatio)
	}
	return nil
}
