package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/omron-net/omron-node/internal"
	"github.com/omron-net/omron-node/metrics"
)

const (
	defaultAPIHost       = "0.0.0.0"
	defaultAPIPort       = 8091
	defaultLogLevel      = "info"
	defaultLogOutput     = "stdout"
	defaultDatadir       = ".omron" // Will be prefixed with user's home directory
	defaultCircuitsDir   = "deployment_layer"
	defaultMetricsWindow = metrics.DefaultWindow
)

// Version is the build version, set at build time with -ldflags
var Version = internal.Version

// Config holds the application configuration
type Config struct {
	Circuits CircuitsConfig
	API      APIConfig
	Metrics  MetricsConfig
	Log      LogConfig
	Datadir  string
}

// CircuitsConfig holds circuit registry configuration
type CircuitsConfig struct {
	Dir string `mapstructure:"dir"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MetricsConfig holds proof metrics configuration
type MetricsConfig struct {
	Window  int  `mapstructure:"window"`
	Persist bool `mapstructure:"persist"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	// Get user's home directory for default datadir
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("circuits.dir", defaultCircuitsDir)
	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("metrics.window", defaultMetricsWindow)
	v.SetDefault("metrics.persist", true)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath)

	// Configure flags
	flag.StringP("circuits.dir", "c", defaultCircuitsDir, "directory containing model_<id> circuit folders")
	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.Int("metrics.window", defaultMetricsWindow, "rolling window size for proof timing metrics")
	flag.Bool("metrics.persist", true, "persist proof samples in the data directory")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database and storage files")

	// Configure usage information
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "omron-node v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: omron-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, OMRON_CIRCUITS_DIR or OMRON_API_HOST\n")
	}

	// Parse flags
	flag.CommandLine.SortFlags = false
	flag.Parse()

	// Configure Viper to use environment variables
	v.SetEnvPrefix("OMRON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind flags to Viper
	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Circuits.Dir == "" {
		return fmt.Errorf("circuits directory is required (use --circuits.dir or OMRON_CIRCUITS_DIR)")
	}
	if info, err := os.Stat(cfg.Circuits.Dir); err != nil || !info.IsDir() {
		return fmt.Errorf("circuits directory %s is not accessible", cfg.Circuits.Dir)
	}
	if cfg.Metrics.Window <= 0 {
		return fmt.Errorf("metrics window must be positive")
	}
	return nil
}
