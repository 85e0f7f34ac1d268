// Package config loads gridrank settings from config.yaml, .env and GRIDRANK_* variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Maps      MapsConfig      `yaml:"maps" mapstructure:"maps"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ScanConfig configures grid scans.
type ScanConfig struct {
	GridSpec  string  `yaml:"grid_spec" mapstructure:"grid_spec"`
	Workers   int     `yaml:"workers" mapstructure:"workers"`
	Jitter    float64 `yaml:"jitter" mapstructure:"jitter"`
	Seed      uint64  `yaml:"seed" mapstructure:"seed"`
	EpsilonKm float64 `yaml:"epsilon_km" mapstructure:"epsilon_km"`
	// Discovery is one of auto, maps, llm, file or none.
	Discovery       string `yaml:"discovery" mapstructure:"discovery"`
	DiscoveryPolicy string `yaml:"discovery_policy" mapstructure:"discovery_policy"`
	MaxCompetitors  int    `yaml:"max_competitors" mapstructure:"max_competitors"`
	CompetitorsFile string `yaml:"competitors_file" mapstructure:"competitors_file"`
}

// MapsConfig configures the Google Maps client and the geocoder.
type MapsConfig struct {
	Lang              string  `yaml:"lang" mapstructure:"lang"`
	ProxyURL          string  `yaml:"proxy_url" mapstructure:"proxy_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Pages             int     `yaml:"pages" mapstructure:"pages"`
	GeocoderURL       string  `yaml:"geocoder_url" mapstructure:"geocoder_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// StoreConfig configures the scan history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	// File, if set, receives all log output instead of stderr.
	File string `yaml:"file" mapstructure:"file"`
}

// DataDir is where gridrank keeps its database, logs and UI state.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gridrank")
	}
	return ".gridrank"
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(DataDir())

	v.SetEnvPrefix("GRIDRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("anthropic.key", "GRIDRANK_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind anthropic key")
	}

	v.SetDefault("scan.grid_spec", "7 x 7 (1 km)")
	v.SetDefault("scan.workers", 4)
	v.SetDefault("scan.jitter", 0.0)
	v.SetDefault("scan.seed", 0)
	v.SetDefault("scan.epsilon_km", 0.01)
	v.SetDefault("scan.discovery", "auto")
	v.SetDefault("scan.discovery_policy", "proceed")
	v.SetDefault("scan.max_competitors", 20)
	v.SetDefault("scan.competitors_file", "")
	v.SetDefault("maps.lang", "en")
	v.SetDefault("maps.proxy_url", "")
	v.SetDefault("maps.requests_per_second", 1.0)
	v.SetDefault("maps.burst", 2)
	v.SetDefault("maps.timeout_secs", 15)
	v.SetDefault("maps.pages", 1)
	v.SetDefault("maps.geocoder_url", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("store.path", filepath.Join(DataDir(), "history.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

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

var discoveryModes = map[string]bool{"auto": true, "maps": true, "llm": true, "file": true, "none": true}

// Validate checks value ranges. It does not require credentials; callers that
// need the Anthropic key check for it themselves.
func (c *Config) Validate() error {
	var problems []string

	if c.Scan.Workers < 1 || c.Scan.Workers > 64 {
		problems = append(problems, "scan.workers must be between 1 and 64")
	}
	if c.Scan.Jitter < 0 || c.Scan.Jitter >= 1 {
		problems = append(problems, "scan.jitter must be in [0, 1)")
	}
	if c.Scan.EpsilonKm <= 0 {
		problems = append(problems, "scan.epsilon_km must be positive")
	}
	if !discoveryModes[c.Scan.Discovery] {
		problems = append(problems, "scan.discovery must be one of auto, maps, llm, file, none")
	}
	if c.Scan.Discovery == "file" && c.Scan.CompetitorsFile == "" {
		problems = append(problems, "scan.competitors_file is required when scan.discovery is file")
	}
	switch strings.ToLower(c.Scan.DiscoveryPolicy) {
	case "proceed", "abort":
	default:
		problems = append(problems, "scan.discovery_policy must be proceed or abort")
	}
	if c.Scan.MaxCompetitors < 0 {
		problems = append(problems, "scan.max_competitors must not be negative")
	}
	if c.Maps.RequestsPerSecond < 0 {
		problems = append(problems, "maps.requests_per_second must not be negative")
	}
	if c.Maps.Pages < 1 {
		problems = append(problems, "maps.pages must be at least 1")
	}
	if c.Store.Path == "" {
		problems = append(problems, "store.path is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		problems = append(problems, "log.format must be json or console")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
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

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return eris.Wrap(err, "config: create log dir")
		}
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
