package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/activecm/beaconwatch/logger"
	"github.com/activecm/beaconwatch/util"
	"github.com/go-playground/validator/v10"

	"github.com/hjson/hjson-go/v4"
	"github.com/spf13/afero"
)

var Version string

const DefaultConfigPath = "./config.hjson"

var errReadingConfigFile = errors.New("encountered an error while reading the config file")

type (
	Config struct {
		Env       Env       `json:"env" validate:"required"`
		Database  Database  `json:"database" validate:"required"`
		Ingest    Ingest    `json:"ingest" validate:"required"`
		Scheduler Scheduler `json:"scheduler" validate:"required"`
		Scoring   Scoring   `json:"scoring" validate:"required"`
		Metrics   Metrics   `json:"metrics" validate:"required"`
	}

	// Env holds values sourced from the process environment rather than the config file.
	Env struct {
		DBConnection string `validate:"required,hostname_port"` // DB_ADDRESS
		DBUsername   string `json:"-"`
		DBPassword   string `json:"-"`
		LogLevel     int8   `validate:"min=0,max=6"` // LOG_LEVEL
	}

	// Database names the ClickHouse flow store and detection store.
	Database struct {
		Name                  string `json:"name" validate:"required"`
		BatchSize             int32  `json:"batch_size" validate:"gte=1,lte=2000000"`
		MaxQueryExecutionTime int32  `json:"max_query_execution_time" validate:"gte=1,lte=2000000"`
	}

	// Ingest configures the flow ingester's tailed log.
	Ingest struct {
		LogPath        string `json:"log_path" validate:"required"`
		MinFields      int    `json:"min_fields" validate:"gte=1"`
		BacklogProgress bool  `json:"backlog_progress"`
	}

	// Scheduler configures the analysis pass cadence and window.
	Scheduler struct {
		IntervalSeconds       int32  `json:"interval_seconds" validate:"gte=1"`
		WindowSeconds         int32  `json:"window_seconds" validate:"gte=1"`
		OnDemandWindowSeconds int32  `json:"on_demand_window_seconds" validate:"gte=1"`
		AlertsPath            string `json:"alerts_path" validate:"required"`
	}

	// Scoring holds the feature-fusion weights and detection threshold.
	Scoring struct {
		FFTPeakWeight      float64 `json:"fft_peak_weight" validate:"gte=0,lte=1"`
		AutocorrWeight     float64 `json:"autocorr_weight" validate:"gte=0,lte=1"`
		EntropyWeight      float64 `json:"entropy_weight" validate:"gte=0,lte=1"`
		DetectionThreshold float64 `json:"detection_threshold" validate:"gte=0,lte=1"`
	}

	// Metrics configures the bare /metrics exposition endpoint.
	Metrics struct {
		Enabled     bool   `json:"enabled" validate:"boolean"`
		BindAddress string `json:"bind_address" validate:"required_if=Enabled true,omitempty,hostname_port"`
	}
)

// ReadFileConfig attempts to read the config file at the specified path and
// returns a config object; fields the file leaves unset take their default
// values, and an error is returned if the file cannot be read.
func ReadFileConfig(afs afero.Fs, path string) (*Config, error) {
	contents, err := util.GetFileContents(afs, path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := unmarshal(contents, &cfg, nil); err != nil {
		return nil, fmt.Errorf("%w, located by default at '%s', please correct the issue in the config and try again:\n\t- %w", errReadingConfigFile, path, err)
	}

	return &cfg, nil
}

// ReadConfigFromMemory reads the config from bytes already read into memory as opposed to reading from a file.
// It also provides its own environment struct that must already be completely set.
func ReadConfigFromMemory(data []byte, env Env) (*Config, error) {
	var cfg Config
	if err := unmarshal(data, &cfg, &env); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setEnv() error {
	connection := os.Getenv("DB_ADDRESS")
	if connection == "" {
		return errors.New("environment variable DB_ADDRESS not set")
	}
	c.Env.DBConnection = connection

	dbUsername := os.Getenv("CLICKHOUSE_USERNAME")
	if dbUsername == "" {
		return errors.New("environment variable CLICKHOUSE_USERNAME not set")
	}
	c.Env.DBUsername = dbUsername

	// CLICKHOUSE_PASSWORD can be empty, so don't check for it
	c.Env.DBPassword = os.Getenv("CLICKHOUSE_PASSWORD")

	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		return errors.New("environment variable LOG_LEVEL not set")
	}
	logLevel, err := strconv.Atoi(logLevelStr)
	if err != nil {
		return fmt.Errorf("unable to convert LOG_LEVEL to int: %w", err)
	}
	c.Env.LogLevel = int8(logLevel)

	// CONN_LOG_PATH overrides the configured ingest log path, if set
	if connLogPath, ok := os.LookupEnv("CONN_LOG_PATH"); ok && connLogPath != "" {
		c.Ingest.LogPath = connLogPath
	}

	return nil
}

// unmarshal unmarshals the data into the config struct, sets the environment variables, and validates the values
func unmarshal(data []byte, cfg *Config, env *Env) error {
	if err := hjson.Unmarshal(data, &cfg); err != nil {
		return err
	}

	// this MUST be done before validating the values, because validation
	// checks for the presence of the environment variables
	if env == nil {
		if err := cfg.setEnv(); err != nil {
			return fmt.Errorf("unable to set environment: %w", err)
		}
	} else {
		cfg.Env = *env
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON unmarshals the JSON/hjson bytes into the config struct,
// overriding the default unmarshalling method so unset fields fall back to defaults.
func (c *Config) UnmarshalJSON(bytes []byte) error {
	// create temporary config struct to unmarshal into
	// not doing this would result in an infinite unmarshalling loop
	type tmpConfig Config
	defaultCfg := GetDefaultConfig()
	tmpCfg := tmpConfig(defaultCfg)

	if err := hjson.Unmarshal(bytes, &tmpCfg); err != nil {
		return err
	}

	*c = Config(tmpCfg)
	return nil
}

// GetDefaultConfig returns a Config object with default values
func GetDefaultConfig() Config {
	if Version == "" {
		Version = "dev"
	}
	return defaultConfig()
}

// Reset resets the config values to default.
// note: Env values are not reset
func (cfg *Config) Reset() error {
	env := cfg.Env
	newConfig := GetDefaultConfig()
	*cfg = newConfig
	cfg.Env = env

	return cfg.Validate()
}

// Validate validates the config struct values
func (cfg *Config) Validate() error {
	zlog := logger.GetLogger()
	zlog.Debug().Interface("config", cfg).Msg("validating config")

	validate, err := NewValidator()
	if err != nil {
		return err
	}

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	return nil
}

// NewValidator creates a new validator with custom validation rules
func NewValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		value := sl.Current().Interface().(Scoring)
		totalWeight := value.FFTPeakWeight + value.AutocorrWeight + value.EntropyWeight
		// allow for floating point drift
		if totalWeight < 0.999 || totalWeight > 1.001 {
			sl.ReportError(value, "FFTPeakWeight", "Scoring", "scoring_weights", "")
			sl.ReportError(value, "AutocorrWeight", "Scoring", "scoring_weights", "")
			sl.ReportError(value, "EntropyWeight", "Scoring", "scoring_weights", "")
		}
	}, Scoring{})

	return v, nil
}

// return a copy of the default config object
func defaultConfig() Config {
	return Config{
		Database: Database{
			Name:                  "beaconwatch",
			BatchSize:             25000,
			MaxQueryExecutionTime: 240,
		},
		Ingest: Ingest{
			LogPath:         "/opt/beaconwatch/logs/conn.log",
			MinFields:       12,
			BacklogProgress: true,
		},
		Scheduler: Scheduler{
			IntervalSeconds:       60,
			WindowSeconds:         30 * 60,
			OnDemandWindowSeconds: 5 * 60,
			AlertsPath:            "/opt/beaconwatch/alerts.json",
		},
		Scoring: Scoring{
			FFTPeakWeight:      0.4,
			AutocorrWeight:     0.4,
			EntropyWeight:      0.2,
			DetectionThreshold: 0.6,
		},
		Metrics: Metrics{
			Enabled:     true,
			BindAddress: "0.0.0.0:9199",
		},
	}
}

// ONLY TO BE CALLED IN TESTS
// helper function to set the env variables that are reliant on paths since tests use the path of the package
func (c *Config) SetTestEnv() error {
	return c.setEnv()
}

// ReadTestFileConfig is for TESTS only
func ReadTestFileConfig(afs afero.Fs, path string) (*Config, error) {
	contents, err := util.GetFileContents(afs, path)
	if err != nil {
		return nil, err
	}

	var tmpCfg Config
	if err := tmpCfg.setEnv(); err != nil {
		return nil, fmt.Errorf("unable to set environment variables for TEST environment")
	}

	var cfg Config
	if err := unmarshal(contents, &cfg, &tmpCfg.Env); err != nil {
		return nil, fmt.Errorf("%w, located by default at '%s', please correct the issue in the config and try again:\n\t- %w", errReadingConfigFile, path, err)
	}

	return &cfg, nil
}
