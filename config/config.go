/*
Package config loads the rotation engine's settings.

SOURCES (later wins):
  1. Built-in defaults (below)
  2. config.yaml in ./config or . (optional)
  3. Environment variables: ROTATION_ prefix, dots become underscores,
     e.g. ROTATION_ROTATION_MONTHLY_MINIMUMVOTES=10, ROTATION_STORE_PATH=/data/r.db

EXAMPLE config.yaml:
  server:
    address: ":8080"
  store:
    path: "rotation.db"
    maxBatchOps: 500
  schedule:
    timezone: "Asia/Seoul"
    weekStart: "monday"
  rotation:
    monthly:
      minimumVotes: 10

SEE ALSO:
  - cmd/server/main.go: Builds jobs and the scheduler from Config
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Seoul on hosts without zoneinfo

	"github.com/spf13/viper"
	"github.com/warp/rotation-engine/rotation"
)

// Config mirrors config.yaml.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type StoreConfig struct {
	Path        string `mapstructure:"path"`
	MaxBatchOps int    `mapstructure:"maxBatchOps"`
}

type ScheduleConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Timezone   string        `mapstructure:"timezone"`
	WeekStart  string        `mapstructure:"weekStart"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retryDelay"`
}

// KindSettings holds the per-kind qualifying bar.
type KindSettings struct {
	MinimumVotes int64 `mapstructure:"minimumVotes"`
}

type RotationConfig struct {
	Daily         KindSettings `mapstructure:"daily"`
	Weekly        KindSettings `mapstructure:"weekly"`
	Monthly       KindSettings `mapstructure:"monthly"`
	VoteAllotment int64        `mapstructure:"voteAllotment"`
	BatchSize     int          `mapstructure:"batchSize"`
}

// Load reads defaults, the optional config file and the environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ROTATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return decode(v)
}

// LoadFile reads defaults, the given file and the environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("ROTATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("store.path", "rotation.db")
	v.SetDefault("store.maxBatchOps", 500)
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.timezone", "Asia/Seoul")
	v.SetDefault("schedule.weekStart", "monday")
	v.SetDefault("schedule.retries", 3)
	v.SetDefault("schedule.retryDelay", 30*time.Second)
	v.SetDefault("rotation.daily.minimumVotes", 1)
	v.SetDefault("rotation.weekly.minimumVotes", 1)
	v.SetDefault("rotation.monthly.minimumVotes", 1)
	v.SetDefault("rotation.voteAllotment", rotation.DefaultVoteAllotment)
	v.SetDefault("rotation.batchSize", 0)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no rotation could run with.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.WeekStart(); err != nil {
		return err
	}
	if c.Store.MaxBatchOps < 1 {
		return &rotation.ConfigurationError{Setting: "store.maxBatchOps", Reason: "must be at least 1"}
	}
	if c.Rotation.BatchSize < 0 || c.Rotation.BatchSize > c.Store.MaxBatchOps {
		return &rotation.ConfigurationError{
			Setting: "rotation.batchSize",
			Reason:  fmt.Sprintf("must be between 0 and store.maxBatchOps (%d)", c.Store.MaxBatchOps),
		}
	}
	if c.Rotation.VoteAllotment < 1 {
		return &rotation.ConfigurationError{Setting: "rotation.voteAllotment", Reason: "must be at least 1"}
	}
	if c.Schedule.Retries < 0 {
		return &rotation.ConfigurationError{Setting: "schedule.retries", Reason: "must not be negative"}
	}
	for _, kind := range rotation.PeriodKinds {
		kc, err := c.KindConfig(kind)
		if err != nil {
			return err
		}
		if err := kc.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Location resolves schedule.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, &rotation.ConfigurationError{Setting: "schedule.timezone", Reason: err.Error()}
	}
	return loc, nil
}

// WeekStart resolves schedule.weekStart.
func (c *Config) WeekStart() (time.Weekday, error) {
	return rotation.ParseWeekday(c.Schedule.WeekStart)
}

// KindConfig builds the rotation settings for one period kind.
func (c *Config) KindConfig(kind rotation.PeriodKind) (rotation.KindConfig, error) {
	var settings KindSettings
	switch kind {
	case rotation.PeriodDaily:
		settings = c.Rotation.Daily
	case rotation.PeriodWeekly:
		settings = c.Rotation.Weekly
	case rotation.PeriodMonthly:
		settings = c.Rotation.Monthly
	}
	return rotation.DefaultKindConfig(kind, settings.MinimumVotes)
}

// Jobs builds one rotation job per period kind on the given store.
func (c *Config) Jobs(store rotation.DocumentStore) (map[rotation.PeriodKind]*rotation.Job, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	weekStart, err := c.WeekStart()
	if err != nil {
		return nil, err
	}

	jobs := make(map[rotation.PeriodKind]*rotation.Job, len(rotation.PeriodKinds))
	for _, kind := range rotation.PeriodKinds {
		kc, err := c.KindConfig(kind)
		if err != nil {
			return nil, err
		}
		job := rotation.NewJob(kc, store)
		job.VoteAllotment = c.Rotation.VoteAllotment
		job.BatchSize = c.Rotation.BatchSize
		job.Location = loc
		job.WeekStart = weekStart
		if err := job.Validate(); err != nil {
			return nil, err
		}
		jobs[kind] = job
	}
	return jobs, nil
}
