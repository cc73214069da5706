// Package config loads the trainer and service settings through viper.
//
// Settings come, in increasing priority, from built-in defaults, a YAML file
// (.winequality.yaml in $HOME or ./config, or the file given with --config),
// WINEQUALITY_* environment variables and command line flags bound by the CLI.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/winequality/artifact"
	"github.com/YuminosukeSato/winequality/pipeline"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/wine"
)

// EnvPrefix prefixes every environment variable, e.g. WINEQUALITY_DATA_URL.
const EnvPrefix = "WINEQUALITY"

// FileName is the config file name looked up without extension.
const FileName = ".winequality"

// Data configures where the dataset comes from.
type Data struct {
	URL       string        `mapstructure:"url"`
	CachePath string        `mapstructure:"cache_path"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Offline   bool          `mapstructure:"offline"`
}

// Artifacts configures where the model and metrics live.
type Artifacts struct {
	Dir         string `mapstructure:"dir"`
	ModelFile   string `mapstructure:"model_file"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// Training holds the training parameters.
type Training struct {
	TestSize float64 `mapstructure:"test_size"`
	Seed     int64   `mapstructure:"seed"`
	Trees    int     `mapstructure:"trees"`
	CVFolds  int     `mapstructure:"cv_folds"`
	Jobs     int     `mapstructure:"jobs"`
}

// Server configures the HTTP API.
type Server struct {
	Addr      string `mapstructure:"addr"`
	CacheSize int    `mapstructure:"cache_size"`
}

// Config is the full application configuration.
type Config struct {
	Data      Data       `mapstructure:"data"`
	Artifacts Artifacts  `mapstructure:"artifacts"`
	Training  Training   `mapstructure:"training"`
	Server    Server     `mapstructure:"server"`
	Log       log.Config `mapstructure:"log"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	logDefaults := log.DefaultConfig()
	train := pipeline.DefaultConfig()

	v.SetDefault("data.url", wine.DefaultURL)
	v.SetDefault("data.cache_path", wine.DefaultCachePath)
	v.SetDefault("data.timeout", 30*time.Second)
	v.SetDefault("data.offline", false)

	v.SetDefault("artifacts.dir", ".")
	v.SetDefault("artifacts.model_file", artifact.DefaultModelFile)
	v.SetDefault("artifacts.metrics_file", artifact.DefaultMetricsFile)

	v.SetDefault("training.test_size", train.TestSize)
	v.SetDefault("training.seed", train.Seed)
	v.SetDefault("training.trees", train.NEstimators)
	v.SetDefault("training.cv_folds", train.CVFolds)
	v.SetDefault("training.jobs", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cache_size", 256)

	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logDefaults.MaxSizeMB)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age_days", logDefaults.MaxAgeDays)
}

// Load reads the configuration into v and decodes it. cfgFile overrides the
// file search. A missing config file is not an error. The second return value
// is the file that was used, or "".
func Load(v *viper.Viper, cfgFile string) (*Config, string, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	used := ""
	err := v.ReadInConfig()
	notFound := viper.ConfigFileNotFoundError{}
	switch {
	case err == nil:
		used = v.ConfigFileUsed()
	case errors.As(err, &notFound) && cfgFile == "":
	default:
		return nil, "", errors.Wrap(err, "failed to read config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, used, nil
}

// Default returns the configuration built from defaults only.
func Default() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode default configuration")
	}
	return &cfg, nil
}

// Validate checks the values that cannot be checked later without side effects.
func (c *Config) Validate() error {
	if err := c.PipelineConfig().Validate(); err != nil {
		return err
	}
	if c.Data.Timeout < 0 {
		return errors.NewValidationError("data.timeout", "must not be negative", c.Data.Timeout)
	}
	if c.Artifacts.ModelFile == "" || c.Artifacts.MetricsFile == "" {
		return errors.NewValidationError("artifacts", "file names must not be empty", c.Artifacts)
	}
	if c.Server.CacheSize < 0 {
		return errors.NewValidationError("server.cache_size", "must not be negative", c.Server.CacheSize)
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Source returns the dataset source.
func (c *Config) Source() wine.Source {
	return wine.Source{
		URL:       c.Data.URL,
		CachePath: c.Data.CachePath,
		Timeout:   c.Data.Timeout,
		Offline:   c.Data.Offline,
	}
}

// Store returns the artifact store.
func (c *Config) Store(opts ...artifact.StoreOption) *artifact.Store {
	opts = append([]artifact.StoreOption{
		artifact.WithModelFile(c.Artifacts.ModelFile),
		artifact.WithMetricsFile(c.Artifacts.MetricsFile),
	}, opts...)
	return artifact.NewStore(c.Artifacts.Dir, opts...)
}

// PipelineConfig returns the training parameters.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		TestSize:    c.Training.TestSize,
		Seed:        c.Training.Seed,
		NEstimators: c.Training.Trees,
		CVFolds:     c.Training.CVFolds,
		NJobs:       c.Training.Jobs,
	}
}
