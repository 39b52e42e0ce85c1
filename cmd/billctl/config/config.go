// Package config resolves billctl settings from flags, the config file and
// BILLCTL_* environment variables, and builds the component configurations
// from them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bill-analytics-service/internal/analytics"
	"bill-analytics-service/internal/ingest"
	"bill-analytics-service/internal/parsers"
	"bill-analytics-service/internal/profiles"
	"bill-analytics-service/internal/reporter"
	"bill-analytics-service/pkg/logger"
)

// Keys shared by flags, the config file and the environment
const (
	KeyLogLevel  = "log-level"
	KeyLogFormat = "log-format"
	KeyProfiles  = "profiles"
	KeyTimezone  = "timezone"
	KeyFormat    = "format"
	KeyCacheTTL  = "cache-ttl"
	KeyWorkers   = "workers"
	KeyNoColor   = "no-color"
	KeyVerbose   = "verbose"
)

// Config is the resolved CLI configuration
type Config struct {
	LogLevel  string        `mapstructure:"log-level"`
	LogFormat string        `mapstructure:"log-format"`
	Profiles  string        `mapstructure:"profiles"`
	Timezone  string        `mapstructure:"timezone"`
	Format    string        `mapstructure:"format"`
	CacheTTL  time.Duration `mapstructure:"cache-ttl"`
	Workers   int           `mapstructure:"workers"`
	NoColor   bool          `mapstructure:"no-color"`
	Verbose   bool          `mapstructure:"verbose"`
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, string(logger.WarnLevel))
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))
	v.SetDefault(KeyProfiles, "")
	v.SetDefault(KeyTimezone, parsers.DefaultTimezone)
	v.SetDefault(KeyFormat, string(reporter.FormatJSON))
	v.SetDefault(KeyCacheTTL, ingest.DefaultCacheTTL)
	v.SetDefault(KeyWorkers, ingest.DefaultConfig().MaxConcurrentFiles)
	v.SetDefault(KeyNoColor, false)
	v.SetDefault(KeyVerbose, false)
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.Format = strings.ToLower(c.Format)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if err := c.LoggerConfig().Validate(); err != nil {
		return err
	}
	if !reporter.OutputFormat(c.Format).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", c.Format)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative: %v", c.CacheTTL)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if strings.TrimSpace(c.Timezone) == "" {
		return fmt.Errorf("timezone cannot be empty")
	}
	return nil
}

// LoggerConfig returns the logger configuration. Logs go to stderr so they
// never mix with report output. Verbose runs log at debug level with caller
// information.
func (c *Config) LoggerConfig() *logger.Config {
	if c.Verbose {
		config := logger.DebugConfig()
		config.Format = logger.Format(c.LogFormat)
		return config
	}
	return &logger.Config{
		Level:  logger.Level(c.LogLevel),
		Format: logger.Format(c.LogFormat),
		Output: logger.StderrOutput,
	}
}

// ParserConfig returns the parser configuration, reading the profile
// override when one is configured.
func (c *Config) ParserConfig() (*parsers.Config, error) {
	config := parsers.DefaultConfig()
	if c.Profiles != "" {
		profile, err := profiles.Load(c.Profiles)
		if err != nil {
			return nil, err
		}
		config.Profile = profile
	}
	config.Location = parsers.LoadLocation(c.Timezone)
	return config, nil
}

// LoaderConfig returns the loader configuration around parserConfig
func (c *Config) LoaderConfig(parserConfig *parsers.Config, onProgress logger.ProgressFunc) *ingest.Config {
	config := ingest.DefaultConfig()
	config.Parsers = parserConfig
	config.MaxConcurrentFiles = c.Workers
	config.OnProgress = onProgress
	return config
}

// EngineConfig returns the analytics configuration using the keyword lists
// of profile
func EngineConfig(profile *profiles.Profile) *analytics.Config {
	config := analytics.DefaultConfig()
	if profile != nil {
		config.Keywords = profile.Keywords
	}
	return config
}

// ReportConfig returns the report configuration for the configured format
func (c *Config) ReportConfig() *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(c.Format)
	config.UseColors = !c.NoColor
	return config
}
