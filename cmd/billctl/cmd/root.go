package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bill-analytics-service/cmd/billctl/config"
	"bill-analytics-service/internal/ingest"
	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app carries the state shared by one command invocation
type app struct {
	v       *viper.Viper
	cfgFile string

	config *config.Config
	logger logger.Logger
	cache  *ingest.Cache
}

func newApp() *app {
	v := viper.New()
	config.SetDefaults(v)
	return &app{v: v}
}

// rootCmd builds the command tree bound to a
func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "billctl",
		Short: "Personal bill analytics for Alipay and WeChat Pay exports",
		Long: `billctl normalizes Alipay and WeChat Pay bill exports into one ledger and
computes the spending analytics over it.

Examples:
  billctl load ./bills --format console
  billctl analyze summary,categories ./bills --year 2024
  billctl analyze category_detail ./bills --category 餐饮 --range all
  billctl transactions ./bills --search 咖啡 --page 2
  billctl export ./bills -o ledger.csv
  billctl catalog`,
		Version:           getVersionString(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.billctl.yaml)")
	flags.BoolP(config.KeyVerbose, "v", false, "verbose output (debug logging and error causes)")
	flags.String(config.KeyLogLevel, string(logger.WarnLevel), "log level (debug, info, warn, error)")
	flags.String(config.KeyLogFormat, string(logger.TextFormat), "log format (text, json)")
	flags.String(config.KeyProfiles, "", "profile override file with export layouts and keyword lists")
	flags.String(config.KeyTimezone, a.v.GetString(config.KeyTimezone), "timezone of the bill timestamps")
	flags.StringP(config.KeyFormat, "f", a.v.GetString(config.KeyFormat), "output format: console, json, csv")
	flags.Bool(config.KeyNoColor, false, "disable colored console output")
	flags.Int(config.KeyWorkers, a.v.GetInt(config.KeyWorkers), "files parsed concurrently")
	flags.Duration(config.KeyCacheTTL, a.v.GetDuration(config.KeyCacheTTL), "how long a loaded table is reused")

	for _, key := range []string{
		config.KeyVerbose, config.KeyLogLevel, config.KeyLogFormat, config.KeyProfiles, config.KeyTimezone,
		config.KeyFormat, config.KeyNoColor, config.KeyWorkers, config.KeyCacheTTL,
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(key))
	}

	root.AddCommand(
		a.loadCmd(),
		a.analyzeCmd(),
		a.transactionsCmd(),
		a.exportCmd(),
		a.catalogCmd(),
		versionCmd(),
	)
	return root
}

// setup reads the config file and environment, then builds the logger and
// the table cache
func (a *app) setup(_ *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home)
		a.v.SetConfigName(".billctl")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("BILLCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return apperrors.ConfigurationError("config", a.cfgFile, err).
				WithSuggestion("check the config file path and its YAML syntax")
		}
	}

	c, err := config.Load(a.v)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidConfig,
			fmt.Sprintf("invalid settings: %v", err)).
			WithSuggestion("run 'billctl --help' to see the accepted values")
	}
	log, err := logger.NewLogger(c.LoggerConfig())
	if err != nil {
		return apperrors.ConfigurationError(config.KeyLogLevel, c.LogLevel, err)
	}
	logger.SetGlobalLogger(log)

	a.config = c
	a.logger = log.WithComponent("cli")
	a.cache = ingest.NewCache(nil, c.CacheTTL)

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.WithField("file", used).Debug("Using config file")
	}
	return nil
}

// Execute runs billctl with the process arguments and returns the exit code
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	a := newApp()
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	return NewCLIErrorHandler(stderr, a.v.GetBool(config.KeyVerbose)).HandleError(err)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
