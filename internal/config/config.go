package config

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Envelope EnvelopeConfig `yaml:"envelope" mapstructure:"envelope"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// EnvelopeConfig configures fitting.
type EnvelopeConfig struct {
	Quant             float64 `yaml:"quant" mapstructure:"quant"`
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	ParallelVariables bool    `yaml:"parallel_variables" mapstructure:"parallel_variables"`
}

// SourceConfig configures observation readers.
type SourceConfig struct {
	MissingTokens []string `yaml:"missing_tokens" mapstructure:"missing_tokens"`
	Delimiter     string   `yaml:"delimiter" mapstructure:"delimiter"`
	Sheet         string   `yaml:"sheet" mapstructure:"sheet"`
	DatabaseURL   string   `yaml:"database_url" mapstructure:"database_url"`
}

// OutputConfig configures prediction and bounds output.
type OutputConfig struct {
	Format       string  `yaml:"format" mapstructure:"format"`
	BoundsFormat string  `yaml:"bounds_format" mapstructure:"bounds_format"`
	GridNoData   float64 `yaml:"grid_nodata" mapstructure:"grid_nodata"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("SRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("envelope.quant", 0.0)
	v.SetDefault("envelope.concurrency", 4)
	v.SetDefault("envelope.parallel_variables", false)
	v.SetDefault("source.missing_tokens", []string{"", "NA", "NaN", "null"})
	v.SetDefault("source.delimiter", ",")
	v.SetDefault("source.sheet", "")
	v.SetDefault("source.database_url", "")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.bounds_format", "table")
	v.SetDefault("output.grid_nodata", -9999.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command depends on. Mode is the command
// name: "fit", "project" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "fit", "project":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 {
			problems = append(problems, "server.rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
			problems = append(problems, "server.rate_burst must be >= 1 when rate limiting")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	q := c.Envelope.Quant
	if math.IsNaN(q) || q < 0 || q >= 0.5 {
		problems = append(problems, "envelope.quant must be in [0, 0.5)")
	}
	if c.Envelope.Concurrency < 1 || c.Envelope.Concurrency > 64 {
		problems = append(problems, "envelope.concurrency must be between 1 and 64")
	}
	if len([]rune(c.Source.Delimiter)) > 1 {
		problems = append(problems, "source.delimiter must be a single character")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DelimiterRune returns the configured delimiter, defaulting to a comma.
func (c SourceConfig) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return ','
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
