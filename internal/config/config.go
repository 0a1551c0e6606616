// Package config loads the visualiser's startup configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/banshee-data/multistatic/internal/grid"
)

// EnvPrefix prefixes environment overrides, e.g. RADARVIZ_GRID_ROWS.
const EnvPrefix = "RADARVIZ"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root configuration. All values are fixed for the lifetime
// of the process.
type Config struct {
	Grid      GridConfig      `mapstructure:"grid"`
	Steps     int             `mapstructure:"steps"`
	Margin    int             `mapstructure:"margin"`
	Seed      int64           `mapstructure:"seed"` // 0 picks a time-based seed
	LogLevel  string          `mapstructure:"log_level"`
	Files     FilesConfig     `mapstructure:"files"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// GridConfig describes the sensor lattice.
type GridConfig struct {
	Rows    int `mapstructure:"rows"`
	Cols    int `mapstructure:"cols"`
	Spacing int `mapstructure:"spacing"`
}

// FilesConfig holds the fixed exchange file paths.
type FilesConfig struct {
	Trajectory string `mapstructure:"trajectory"`
	Detections string `mapstructure:"detections"`
}

// SimulatorConfig selects and parameterises the detection simulator. An
// empty Command runs the built-in stand-in.
type SimulatorConfig struct {
	Command     string   `mapstructure:"command"`
	Args        []string `mapstructure:"args"`
	WorkDir     string   `mapstructure:"workdir"`
	SettleDelay string   `mapstructure:"settle_delay"` // duration string like "3s"
	RadarRange  int      `mapstructure:"radar_range"`
}

// HTTPConfig configures the web surface.
type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("grid.rows", 4)
	v.SetDefault("grid.cols", 5)
	v.SetDefault("grid.spacing", 125)
	v.SetDefault("steps", 21)
	v.SetDefault("margin", 50)
	v.SetDefault("seed", 0)
	v.SetDefault("log_level", "info")

	v.SetDefault("files.trajectory", "build/test_plane.csv")
	v.SetDefault("files.detections", "build/master_log.csv")

	v.SetDefault("simulator.command", "")
	v.SetDefault("simulator.args", []string{})
	v.SetDefault("simulator.workdir", "build")
	v.SetDefault("simulator.settle_delay", "0s")
	v.SetDefault("simulator.radar_range", 170)

	v.SetDefault("http.listen", ":8080")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Default returns the configuration with no file or environment applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return cfg
}

// Load reads configuration from defaults, then the optional file at path
// (JSON or YAML), then RADARVIZ_* environment variables. The result is
// validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		cleanPath := filepath.Clean(path)
		switch ext := filepath.Ext(cleanPath); ext {
		case ".json", ".yaml", ".yml":
		default:
			return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
		}

		info, err := os.Stat(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
		}

		v.SetConfigFile(cleanPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if _, err := c.SensorGrid(); err != nil {
		return err
	}
	if c.Steps < 1 {
		return fmt.Errorf("steps must be at least 1, got %d", c.Steps)
	}
	if c.Margin < 0 {
		return fmt.Errorf("margin must be non-negative, got %d", c.Margin)
	}
	if c.Files.Trajectory == "" {
		return fmt.Errorf("files.trajectory must be set")
	}
	if c.Files.Detections == "" {
		return fmt.Errorf("files.detections must be set")
	}
	if c.Simulator.SettleDelay != "" {
		d, err := time.ParseDuration(c.Simulator.SettleDelay)
		if err != nil {
			return fmt.Errorf("invalid simulator.settle_delay '%s': %w", c.Simulator.SettleDelay, err)
		}
		if d < 0 {
			return fmt.Errorf("simulator.settle_delay must be non-negative, got %s", d)
		}
	}
	if c.Simulator.RadarRange < 1 {
		return fmt.Errorf("simulator.radar_range must be positive, got %d", c.Simulator.RadarRange)
	}
	if c.HTTP.Listen == "" {
		return fmt.Errorf("http.listen must be set")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %f", c.Tracing.SampleRatio)
	}
	return nil
}

// SensorGrid returns the validated sensor lattice.
func (c *Config) SensorGrid() (grid.Grid, error) {
	return grid.New(c.Grid.Rows, c.Grid.Cols, c.Grid.Spacing)
}

// GetSettleDelay parses SettleDelay, returning 0 when unset or invalid.
func (c *Config) GetSettleDelay() time.Duration {
	if c.Simulator.SettleDelay == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Simulator.SettleDelay)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// UsesBuiltinSimulator reports whether no external simulator is configured.
func (c *Config) UsesBuiltinSimulator() bool {
	return strings.TrimSpace(c.Simulator.Command) == ""
}
