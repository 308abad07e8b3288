package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/world"
)

// EnvPrefix namespaces environment overrides, e.g. SIXTYBELOW_BUDGET_UPDATE_MS
const EnvPrefix = "SIXTYBELOW"

// Config is the full runtime configuration
type Config struct {
	Budget BudgetConfig `mapstructure:"budget"`
	Frame  FrameConfig  `mapstructure:"frame"`
	World  WorldConfig  `mapstructure:"world"`
	Save   SaveConfig   `mapstructure:"save"`
	Debug  DebugConfig  `mapstructure:"debug"`
	Log    LogConfig    `mapstructure:"log"`
	Audio  AudioConfig  `mapstructure:"audio"`
}

// BudgetConfig holds per-phase frame budgets in whole milliseconds
type BudgetConfig struct {
	UpdateMs    int `mapstructure:"update_ms"`
	RenderMs    int `mapstructure:"render_ms"`
	MicrotaskMs int `mapstructure:"microtask_ms"`
}

// FrameConfig sets the display cadence
type FrameConfig struct {
	FPS int `mapstructure:"fps"`
}

// WorldConfig sets world dimensions in tiles and the generation seed
type WorldConfig struct {
	Width  int   `mapstructure:"width"`
	Height int   `mapstructure:"height"`
	Seed   int64 `mapstructure:"seed"`
}

// SaveConfig locates the save database and the autosave cadence in logical time
type SaveConfig struct {
	Path       string `mapstructure:"path"`
	IntervalMs int    `mapstructure:"interval_ms"`
}

// DebugConfig controls diagnostics; everything is off by default
type DebugConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Addr        string   `mapstructure:"addr"` // Empty disables the HTTP server
	Overlay     bool     `mapstructure:"overlay"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LogConfig controls the rotating debug log
type LogConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// AudioConfig toggles sound cues
type AudioConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("budget.update_ms", constant.BudgetUpdateMs)
	v.SetDefault("budget.render_ms", constant.BudgetRenderMs)
	v.SetDefault("budget.microtask_ms", constant.BudgetMicrotaskMs)
	v.SetDefault("frame.fps", constant.FramesPerSecond)
	v.SetDefault("world.width", constant.WorldWidth)
	v.SetDefault("world.height", constant.WorldHeight)
	v.SetDefault("world.seed", 0)
	v.SetDefault("save.path", "sixty-below.db")
	v.SetDefault("save.interval_ms", constant.AutoSaveInterval.Milliseconds())
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.addr", "127.0.0.1:6060")
	v.SetDefault("debug.overlay", false)
	v.SetDefault("debug.cors_origins", []string{})
	v.SetDefault("log.file", "logs/sixty-below.log")
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("audio.enabled", true)
}

// Load reads defaults, then the optional config file at path, then environment
// Env files are loaded first and never override variables already set
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults invalid: %v", err))
	}
	return cfg
}

// Validate rejects settings the core cannot run with
func (c *Config) Validate() error {
	if c.Budget.UpdateMs <= 0 || c.Budget.RenderMs <= 0 || c.Budget.MicrotaskMs <= 0 {
		return fmt.Errorf("budget: phases must be positive, got %+v", c.Budget)
	}
	if c.Frame.FPS <= 0 || c.Frame.FPS > 240 {
		return fmt.Errorf("frame: fps %d out of range 1..240", c.Frame.FPS)
	}
	if _, err := world.NewLayoutForSize(c.World.Width, c.World.Height); err != nil {
		return fmt.Errorf("world: %w", err)
	}
	if c.Save.Path == "" {
		return errors.New("save: empty path")
	}
	if c.Save.IntervalMs <= 0 {
		return fmt.Errorf("save: interval %dms must be positive", c.Save.IntervalMs)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}
