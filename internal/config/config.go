// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/settings"
)

// EnvPrefix is the prefix viper binds environment overrides under, e.g.
// FORESIGHT_FORESIGHT_TAB_OFFSET.
const EnvPrefix = "FORESIGHT"

// Interface defines the read side of the application configuration.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Foresight() ForesightConfig

	SetForesight(fc ForesightConfig)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	EngineCfg    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	ForesightCfg ForesightConfig `mapstructure:"foresight" yaml:"foresight"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig       { return c.EngineCfg }
func (c *Config) Foresight() ForesightConfig { return c.ForesightCfg }

func (c *Config) SetForesight(fc ForesightConfig) { c.ForesightCfg = fc }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig configures the runtime around the manager.
type EngineConfig struct {
	// FrameInterval paces the pointer handler's per-frame work.
	FrameInterval time.Duration `mapstructure:"frame_interval" yaml:"frame_interval"`
	// CallbackTimeout bounds each prefetch callback. Zero disables the bound.
	CallbackTimeout time.Duration `mapstructure:"callback_timeout" yaml:"callback_timeout"`
}

// ForesightConfig mirrors the manager settings in file form.
type ForesightConfig struct {
	PositionHistorySize      int              `mapstructure:"position_history_size" yaml:"position_history_size"`
	TrajectoryPredictionTime time.Duration    `mapstructure:"trajectory_prediction_time" yaml:"trajectory_prediction_time"`
	ScrollMargin             float64          `mapstructure:"scroll_margin" yaml:"scroll_margin"`
	TabOffset                int              `mapstructure:"tab_offset" yaml:"tab_offset"`
	EnableMousePrediction    bool             `mapstructure:"enable_mouse_prediction" yaml:"enable_mouse_prediction"`
	EnableScrollPrediction   bool             `mapstructure:"enable_scroll_prediction" yaml:"enable_scroll_prediction"`
	EnableTabPrediction      bool             `mapstructure:"enable_tab_prediction" yaml:"enable_tab_prediction"`
	DefaultHitSlop           geometry.HitSlop `mapstructure:"default_hit_slop" yaml:"default_hit_slop"`
	TouchDeviceStrategy      string           `mapstructure:"touch_device_strategy" yaml:"touch_device_strategy"`
	MinimumConnectionType    string           `mapstructure:"minimum_connection_type" yaml:"minimum_connection_type"`
	EnableManagerLogging     bool             `mapstructure:"enable_manager_logging" yaml:"enable_manager_logging"`
}

// Partial converts the section into a settings patch. Every field is set,
// so applying it pins the manager to exactly this configuration (after
// clamping).
func (f ForesightConfig) Partial() settings.Partial {
	strategy := settings.TouchStrategy(f.TouchDeviceStrategy)
	minimum := dom.ConnectionType(f.MinimumConnectionType)
	return settings.Partial{
		PositionHistorySize:      settings.Ptr(f.PositionHistorySize),
		TrajectoryPredictionTime: settings.Ptr(f.TrajectoryPredictionTime),
		ScrollMargin:             settings.Ptr(f.ScrollMargin),
		TabOffset:                settings.Ptr(f.TabOffset),
		EnableMousePrediction:    settings.Ptr(f.EnableMousePrediction),
		EnableScrollPrediction:   settings.Ptr(f.EnableScrollPrediction),
		EnableTabPrediction:      settings.Ptr(f.EnableTabPrediction),
		DefaultHitSlop:           settings.Ptr(f.DefaultHitSlop),
		TouchDeviceStrategy:      &strategy,
		MinimumConnectionType:    &minimum,
		EnableManagerLogging:     settings.Ptr(f.EnableManagerLogging),
	}
}

// Validate rejects values the manager would silently ignore. Out of range
// numbers are not errors; the manager clamps those.
func (f ForesightConfig) Validate() error {
	if !settings.TouchStrategy(f.TouchDeviceStrategy).Valid() {
		return fmt.Errorf("touch_device_strategy %q is not one of %q, %q",
			f.TouchDeviceStrategy, settings.TouchOnTouchStart, settings.TouchViewport)
	}
	if !dom.ConnectionType(f.MinimumConnectionType).Valid() {
		return fmt.Errorf("minimum_connection_type %q is not a known connection type", f.MinimumConnectionType)
	}
	return nil
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "foresight")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Engine --
	v.SetDefault("engine.frame_interval", "16ms")
	v.SetDefault("engine.callback_timeout", "0s")

	// -- Foresight --
	d := settings.Defaults()
	v.SetDefault("foresight.position_history_size", d.PositionHistorySize)
	v.SetDefault("foresight.trajectory_prediction_time", d.TrajectoryPredictionTime.String())
	v.SetDefault("foresight.scroll_margin", d.ScrollMargin)
	v.SetDefault("foresight.tab_offset", d.TabOffset)
	v.SetDefault("foresight.enable_mouse_prediction", d.EnableMousePrediction)
	v.SetDefault("foresight.enable_scroll_prediction", d.EnableScrollPrediction)
	v.SetDefault("foresight.enable_tab_prediction", d.EnableTabPrediction)
	v.SetDefault("foresight.default_hit_slop.top", d.DefaultHitSlop.Top)
	v.SetDefault("foresight.default_hit_slop.left", d.DefaultHitSlop.Left)
	v.SetDefault("foresight.default_hit_slop.right", d.DefaultHitSlop.Right)
	v.SetDefault("foresight.default_hit_slop.bottom", d.DefaultHitSlop.Bottom)
	v.SetDefault("foresight.touch_device_strategy", string(d.TouchDeviceStrategy))
	v.SetDefault("foresight.minimum_connection_type", string(d.MinimumConnectionType))
	v.SetDefault("foresight.enable_manager_logging", d.EnableManagerLogging)
}

// BindEnvironment lets FORESIGHT_-prefixed environment variables override
// any key that has a default.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.LoggerCfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.LoggerCfg.Format)
	}
	if c.EngineCfg.FrameInterval <= 0 {
		return fmt.Errorf("engine.frame_interval must be a positive duration")
	}
	if c.EngineCfg.CallbackTimeout < 0 {
		return fmt.Errorf("engine.callback_timeout must not be negative")
	}
	if err := c.ForesightCfg.Validate(); err != nil {
		return fmt.Errorf("foresight configuration invalid: %w", err)
	}
	return nil
}
