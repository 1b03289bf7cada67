package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gofactor/adapters/excel"
	"gofactor/adapters/stats/univariate"
	"gofactor/internal/errors"
	"gofactor/internal/scoring"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FEATURESCORE_"

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig       `yaml:"server"`
	Logging LoggingConfig      `yaml:"logging"`
	Scoring ScoringConfig      `yaml:"scoring"`
	Loader  excel.LoaderConfig `yaml:"loader"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `yaml:"port" validate:"required,numeric"`
	GinMode string `yaml:"gin_mode" validate:"oneof=debug release test"`
}

// LoggingConfig holds the log verbosity
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=QUIET OFF ERROR WARN INFO DEBUG TRACE"`
}

// ScoringConfig holds the defaults applied when a caller leaves a
// strategy's settings out.
type ScoringConfig struct {
	ScoreFunc string                  `yaml:"score_func" validate:"required"`
	Forest    scoring.ForestConfig    `yaml:"forest"`
	Stability scoring.StabilityConfig `yaml:"stability"`
}

var validate = validator.New()

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8080", GinMode: "release"},
		Logging: LoggingConfig{Level: "INFO"},
		Scoring: ScoringConfig{
			ScoreFunc: scoring.DefaultScoreFunc,
			Forest:    scoring.DefaultForestConfig(),
			Stability: scoring.DefaultStabilityConfig(),
		},
		Loader: excel.DefaultLoaderConfig(),
	}
}

// Load builds the configuration from defaults, the YAML profile named by
// FEATURESCORE_PROFILE if any, and environment overrides, in that order.
func Load() (*Config, error) {
	config := Default()

	if path := os.Getenv(EnvPrefix + "PROFILE"); path != "" {
		if err := loadProfile(path, config); err != nil {
			return nil, err
		}
	}
	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// LoadProfile is Load with an explicit profile path that takes the place
// of FEATURESCORE_PROFILE.
func LoadProfile(path string) (*Config, error) {
	config := Default()
	if err := loadProfile(path, config); err != nil {
		return nil, err
	}
	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// LoadDotEnv reads .env style files into the environment. Missing files
// are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("load %s: %w", path, err))
		}
	}
	return nil
}

func loadProfile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("read profile %s: %w", path, err))
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("parse profile %s: %w", path, err))
	}
	return nil
}

func loadFromEnv(config *Config) {
	config.Server.Port = getEnvOrDefault(EnvPrefix+"PORT", getEnvOrDefault("PORT", config.Server.Port))
	config.Server.GinMode = getEnvOrDefault("GIN_MODE", config.Server.GinMode)
	config.Logging.Level = strings.ToUpper(getEnvOrDefault("LOG_LEVEL", config.Logging.Level))

	s := &config.Scoring
	s.ScoreFunc = getEnvOrDefault(EnvPrefix+"SCORE_FUNC", s.ScoreFunc)
	s.Forest.Trees = getEnvIntOrDefault(EnvPrefix+"TREES", s.Forest.Trees)
	s.Forest.Criterion = getEnvOrDefault(EnvPrefix+"CRITERION", s.Forest.Criterion)
	s.Forest.MaxFeatures = getEnvOrDefault(EnvPrefix+"MAX_FEATURES", s.Forest.MaxFeatures)
	s.Stability.Scaling = getEnvFloatOrDefault(EnvPrefix+"SCALING", s.Stability.Scaling)
	s.Stability.SampleFraction = getEnvFloatOrDefault(EnvPrefix+"SAMPLE_FRACTION", s.Stability.SampleFraction)
	s.Stability.Resamplings = getEnvIntOrDefault(EnvPrefix+"RESAMPLINGS", s.Stability.Resamplings)

	workers := getEnvIntOrDefault(EnvPrefix+"WORKERS", -1)
	if workers >= 0 {
		s.Forest.Workers, s.Stability.Workers = workers, workers
	}
	if v := os.Getenv(EnvPrefix + "SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			forestSeed, stabilitySeed := seed, seed
			s.Forest.RandomState = &forestSeed
			s.Stability.RandomState = &stabilitySeed
		}
	}

	config.Loader.Sheet = getEnvOrDefault(EnvPrefix+"SHEET", config.Loader.Sheet)
	if v := os.Getenv(EnvPrefix + "OUTCOMES"); v != "" {
		config.Loader.Outcomes = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "IGNORE"); v != "" {
		config.Loader.Ignore = splitList(v)
	}
}

// Validate checks the struct tags, then the scoring settings the same way
// the scorers would.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if _, ok := univariate.ByName(c.Scoring.ScoreFunc); !ok {
		return errors.ConfigInvalid(fmt.Sprintf("unknown score function %q", c.Scoring.ScoreFunc))
	}
	if err := c.Scoring.Forest.Validate(); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if err := c.Scoring.Stability.Validate(); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
