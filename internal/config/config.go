// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Imagery  ImageryConfig  `yaml:"imagery" mapstructure:"imagery"`
	Parcel   ParcelConfig   `yaml:"parcel" mapstructure:"parcel"`
	Detector DetectorConfig `yaml:"detector" mapstructure:"detector"`
	Grid     GridConfig     `yaml:"grid" mapstructure:"grid"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Mask     MaskConfig     `yaml:"mask" mapstructure:"mask"`
	Analyze  AnalyzeConfig  `yaml:"analyze" mapstructure:"analyze"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the job store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "memory"
	Path   string `yaml:"path" mapstructure:"path"`
}

// ImageryConfig holds the static-map imagery provider settings.
type ImageryConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Key               string  `yaml:"key" mapstructure:"key"`
	MapType           string  `yaml:"map_type" mapstructure:"map_type"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ParcelConfig holds the cadastral lookup settings. When ShapefilePath is
// set the county shapefile provider is used instead of the HTTP API.
type ParcelConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Key               string  `yaml:"key" mapstructure:"key"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	ShapefilePath     string  `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	AddressField      string  `yaml:"address_field" mapstructure:"address_field"`
}

// DetectorConfig holds the inference service settings.
type DetectorConfig struct {
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	Key              string `yaml:"key" mapstructure:"key"`
	Model            string `yaml:"model" mapstructure:"model"`
	FallbackBaseURL  string `yaml:"fallback_base_url" mapstructure:"fallback_base_url"`
	FallbackKey      string `yaml:"fallback_key" mapstructure:"fallback_key"`
	ConditionBaseURL string `yaml:"condition_base_url" mapstructure:"condition_base_url"`
	ConditionKey     string `yaml:"condition_key" mapstructure:"condition_key"`
}

// GridConfig configures tile grid planning.
type GridConfig struct {
	ZoomMin   int `yaml:"zoom_min" mapstructure:"zoom_min"`
	ZoomMax   int `yaml:"zoom_max" mapstructure:"zoom_max"`
	PixelSize int `yaml:"pixel_size" mapstructure:"pixel_size"`
	MaxTiles  int `yaml:"max_tiles" mapstructure:"max_tiles"`
}

// BoundaryConfig configures parcel boundary validation.
type BoundaryConfig struct {
	AddressToleranceM float64 `yaml:"address_tolerance_m" mapstructure:"address_tolerance_m"`
}

// MaskConfig configures parcel masking.
type MaskConfig struct {
	Enabled   bool `yaml:"enabled" mapstructure:"enabled"`
	FeatherPx int  `yaml:"feather_px" mapstructure:"feather_px"`
}

// AnalyzeConfig configures the analysis pipeline.
type AnalyzeConfig struct {
	Concurrency       int    `yaml:"concurrency" mapstructure:"concurrency"`
	TileTimeoutSecs   int    `yaml:"tile_timeout_secs" mapstructure:"tile_timeout_secs"`
	DetectTimeoutSecs int    `yaml:"detect_timeout_secs" mapstructure:"detect_timeout_secs"`
	LeadConfigPath    string `yaml:"lead_config_path" mapstructure:"lead_config_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PAVESCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "pavescan.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("imagery.map_type", "satellite")
	v.SetDefault("imagery.requests_per_second", 10)
	v.SetDefault("parcel.requests_per_second", 5)
	v.SetDefault("parcel.address_field", "situs_addr")
	v.SetDefault("grid.zoom_min", 16)
	v.SetDefault("grid.zoom_max", 21)
	v.SetDefault("grid.pixel_size", 640)
	v.SetDefault("grid.max_tiles", 100)
	v.SetDefault("boundary.address_tolerance_m", 150)
	v.SetDefault("mask.enabled", true)
	v.SetDefault("mask.feather_px", 5)
	v.SetDefault("analyze.concurrency", 4)
	v.SetDefault("analyze.tile_timeout_secs", 30)
	v.SetDefault("analyze.detect_timeout_secs", 90)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
