package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rendis/sectorscan/internal/engine/geo"
	"github.com/rendis/sectorscan/internal/model"
)

const appName = "sectorscan"

// Config holds the full application configuration.
type Config struct {
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// SearchConfig configures the area, the keyword and the decomposition.
type SearchConfig struct {
	Keyword           string  `yaml:"keyword" mapstructure:"keyword"`
	Zone              string  `yaml:"zone" mapstructure:"zone"`
	CenterLat         float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLng         float64 `yaml:"center_lng" mapstructure:"center_lng"`
	GridSize          int     `yaml:"grid_size" mapstructure:"grid_size"`
	BlockSizeKM       float64 `yaml:"block_size_km" mapstructure:"block_size_km"`
	MinRadiusMeters   float64 `yaml:"min_radius_m" mapstructure:"min_radius_m"`
	RequestsPerSecond int     `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	DensePages        int     `yaml:"dense_pages" mapstructure:"dense_pages"`
	Region            string  `yaml:"region" mapstructure:"region"`
}

// HasCenter reports whether explicit coordinates override the zone.
func (s SearchConfig) HasCenter() bool {
	return s.CenterLat != 0 || s.CenterLng != 0
}

// ProviderConfig configures the Places client.
type ProviderConfig struct {
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	PageDelay time.Duration `yaml:"page_delay" mapstructure:"page_delay"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ChromeTLS bool          `yaml:"chrome_tls" mapstructure:"chrome_tls"`
	Proxy     string        `yaml:"proxy" mapstructure:"proxy"`
}

// OutputConfig names the files a run writes.
type OutputConfig struct {
	CSV     string `yaml:"csv" mapstructure:"csv"`
	DB      string `yaml:"db" mapstructure:"db"`
	CallLog string `yaml:"call_log" mapstructure:"call_log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Option adjusts the viper instance before the configuration is decoded.
type Option func(*viper.Viper) error

// WithConfigFile reads an explicit file instead of searching for one.
func WithConfigFile(path string) Option {
	return func(v *viper.Viper) error {
		if path != "" {
			v.SetConfigFile(path)
		}
		return nil
	}
}

// WithFlag binds a command-line flag to a configuration key. A flag that was
// set on the command line wins over the file and the environment.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		return eris.Wrapf(v.BindPFlag(key, flag), "config: bind flag %s", flag.Name)
	}
}

// Load reads configuration from file and environment.
func Load(opts ...Option) (*Config, error) {
	v := viper.New()

	v.SetConfigName(appName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))

	v.SetEnvPrefix("SECTORSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("provider.api_key", "SECTORSCAN_PROVIDER_API_KEY", "GOOGLE_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind credential env")
	}

	setDefaults(v)

	for _, o := range opts {
		if err := o(v); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Output.CSV = NormalizeOutputPath(cfg.Output.CSV)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.keyword", "infirmier libéral")
	v.SetDefault("search.zone", "Paris, France")
	v.SetDefault("search.center_lat", 0.0)
	v.SetDefault("search.center_lng", 0.0)
	v.SetDefault("search.grid_size", 3)
	v.SetDefault("search.block_size_km", 70.0)
	v.SetDefault("search.min_radius_m", 100.0)
	v.SetDefault("search.requests_per_second", 2)
	v.SetDefault("search.dense_pages", 3)
	v.SetDefault("search.region", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "https://maps.googleapis.com/maps/api/place/nearbysearch/json")
	v.SetDefault("provider.page_delay", 2*time.Second)
	v.SetDefault("provider.timeout", 15*time.Second)
	v.SetDefault("provider.chrome_tls", false)
	v.SetDefault("provider.proxy", "")
	v.SetDefault("output.csv", "resultats.csv")
	v.SetDefault("output.db", filepath.Join(xdg.DataHome, appName, "runs.db"))
	v.SetDefault("output.call_log", "api_logs.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
}

// NormalizeOutputPath appends .csv when the name lacks it.
func NormalizeOutputPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "resultats.csv"
	}
	if !strings.HasSuffix(strings.ToLower(p), ".csv") {
		p += ".csv"
	}
	return p
}

// Validate checks the search settings.
func (c *Config) Validate() error {
	s := c.Search
	switch {
	case strings.TrimSpace(s.Keyword) == "":
		return &ConfigurationError{Key: "search.keyword", Reason: "must not be empty"}
	case s.GridSize < 1:
		return &ConfigurationError{Key: "search.grid_size", Reason: "must be at least 1"}
	case s.BlockSizeKM <= 0:
		return &ConfigurationError{Key: "search.block_size_km", Reason: "must be positive"}
	case s.MinRadiusMeters <= 0:
		return &ConfigurationError{Key: "search.min_radius_m", Reason: "must be positive"}
	case s.RequestsPerSecond < 1:
		return &ConfigurationError{Key: "search.requests_per_second", Reason: "must be at least 1"}
	case s.DensePages < 1:
		return &ConfigurationError{Key: "search.dense_pages", Reason: "must be at least 1"}
	case math.Abs(s.CenterLat) > geo.MaxCenterLat:
		return &ConfigurationError{Key: "search.center_lat", Reason: fmt.Sprintf("must be within ±%g", geo.MaxCenterLat)}
	case s.CenterLng < -180 || s.CenterLng > 180:
		return &ConfigurationError{Key: "search.center_lng", Reason: "out of range"}
	}
	return nil
}

// RequireCredential returns a ConfigurationError when no API key is set.
func (c *Config) RequireCredential() error {
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return &ConfigurationError{Key: "provider.api_key", Reason: "missing credential (set GOOGLE_KEY)"}
	}
	return nil
}

// Params converts the search and output settings into run parameters. The
// center is left to the caller when only a zone name is configured.
func (c *Config) Params() model.SearchParams {
	return model.SearchParams{
		Keyword:           strings.TrimSpace(c.Search.Keyword),
		Zone:              c.Search.Zone,
		CenterLat:         c.Search.CenterLat,
		CenterLng:         c.Search.CenterLng,
		GridSize:          c.Search.GridSize,
		BlockSizeKM:       c.Search.BlockSizeKM,
		MinRadiusMeters:   c.Search.MinRadiusMeters,
		RequestsPerSecond: c.Search.RequestsPerSecond,
		DensePages:        c.Search.DensePages,
		RegionPath:        c.Search.Region,
		OutputPath:        c.Output.CSV,
		DBPath:            c.Output.DB,
		CallLogPath:       c.Output.CallLog,
	}
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

// SessionLogPath returns a per-session log file under the state directory,
// used when the terminal is owned by the interactive UI.
func SessionLogPath(now time.Time) string {
	return filepath.Join(xdg.StateHome, appName, "logs", now.Format("20060102_150405")+".log")
}
