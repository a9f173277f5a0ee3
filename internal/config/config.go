// Package config resolves the run configuration of simnet.
//
// Sources are applied in order: .env files, the process environment, an
// optional YAML file and finally command line overrides. The result is
// validated once and treated as read-only afterwards.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/coordnet/internal/util"
	"github.com/OFFIS-RIT/coordnet/pkg/activity"
	"github.com/OFFIS-RIT/coordnet/pkg/builder"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

const (
	StoreFS       = "fs"
	StoreS3       = "s3"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	InputFS = "fs"
	InputS3 = "s3"

	DefaultParallelBuilders = 5
	DefaultMaxConcurrent    = 4
)

type AIConfig struct {
	Adapter       string `yaml:"adapter" json:"adapter" validate:"omitempty,oneof=ollama openai"`
	Model         string `yaml:"model" json:"model"`
	URL           string `yaml:"url" json:"url"`
	Key           string `yaml:"key" json:"-"`
	MaxTokens     int    `yaml:"max_tokens" json:"max_tokens" validate:"gte=1"`
	MaxConcurrent int    `yaml:"max_concurrent" json:"max_concurrent" validate:"gte=1"`
}

type S3Config struct {
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key" json:"-"`
	SecretKey string `yaml:"secret_key" json:"-"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix"`
}

type RabbitMQConfig struct {
	User     string `yaml:"user" json:"-"`
	Password string `yaml:"password" json:"-"`
	Host     string `yaml:"host" json:"host"`
	Port     string `yaml:"port" json:"port"`
}

// Config is the complete configuration of one run.
type Config struct {
	Dataset  string `yaml:"dataset" json:"dataset" validate:"required"`
	DeviceID string `yaml:"device_id" json:"device_id"`
	BaseDir  string `yaml:"base_dir" json:"base_dir" validate:"required"`

	ActivityThreshold   int     `yaml:"activity_threshold" json:"activity_threshold" validate:"gte=0"`
	MinHashtags         int     `yaml:"min_hashtags" json:"min_hashtags" validate:"gte=0"`
	FastRetweetInterval int     `yaml:"fast_retweet_interval" json:"fast_retweet_interval" validate:"gte=0"`
	TweetSimThreshold   float64 `yaml:"tweet_sim_threshold" json:"tweet_sim_threshold" validate:"gt=0,lte=1"`
	ValidateNodeIDs     bool    `yaml:"validate_node_ids" json:"validate_node_ids"`
	ParallelBuilders    int     `yaml:"parallel_builders" json:"parallel_builders" validate:"gte=1"`

	StoreBackend string `yaml:"store_backend" json:"store_backend" validate:"oneof=fs s3 postgres sqlite"`
	InputSource  string `yaml:"input_source" json:"input_source" validate:"oneof=fs s3"`

	Debug     bool   `yaml:"debug" json:"debug"`
	LogFormat string `yaml:"log_format" json:"log_format" validate:"oneof=text json logfmt"`

	AI          AIConfig       `yaml:"ai" json:"ai"`
	S3          S3Config       `yaml:"s3" json:"s3"`
	DatabaseURL string         `yaml:"database_url" json:"-"`
	SQLitePath  string         `yaml:"sqlite_path" json:"sqlite_path"`
	RabbitMQ    RabbitMQConfig `yaml:"rabbitmq" json:"rabbitmq"`
}

// Paths are the directories of a run, derived once from the base directory.
type Paths struct {
	BaseDir      string
	RawDir       string
	ProcessedDir string
	DatasetDir   string
	TweetSimDir  string
}

// Paths resolves the directory layout below BaseDir.
func (c Config) Paths() Paths {
	raw := filepath.Join(c.BaseDir, "raw")
	processed := filepath.Join(c.BaseDir, "processed")
	dataset := filepath.Join(processed, c.Dataset)
	return Paths{
		BaseDir:      c.BaseDir,
		RawDir:       raw,
		ProcessedDir: processed,
		DatasetDir:   dataset,
		TweetSimDir:  filepath.Join(dataset, "tweetSim"),
	}
}

// SQLiteFile returns the configured database file or the default below the
// processed directory.
func (c Config) SQLiteFile() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.Paths().ProcessedDir, "graphs.db")
}

// Overrides carries values set on the command line. Nil fields leave the
// configured value untouched.
type Overrides struct {
	Dataset         *string
	DeviceID        *string
	ValidateNodeIDs *bool
	BaseDir         *string
}

type LoadParams struct {
	EnvFiles   []string
	ConfigFile string
	Overrides  Overrides
}

// Load resolves, overlays and validates the configuration.
func Load(params LoadParams) (Config, error) {
	util.LoadEnv(params.EnvFiles...)

	cfg, err := fromEnv()
	if err != nil {
		return Config{}, err
	}

	if params.ConfigFile != "" {
		data, err := os.ReadFile(params.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", params.ConfigFile, err)
		}
	}

	params.Overrides.apply(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv() (Config, error) {
	baseDir := util.GetEnv("BASE_DIR")
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		baseDir = filepath.Join(filepath.Dir(wd), "data")
	}

	return Config{
		Dataset:  util.GetEnv("DATASET"),
		DeviceID: util.GetEnv("DEVICE_ID"),
		BaseDir:  baseDir,

		ActivityThreshold:   util.GetEnvInt("ACTIVITY_THRESHOLD", activity.DefaultThreshold),
		MinHashtags:         util.GetEnvInt("MIN_HASHTAGS", builder.DefaultMinHashtags),
		FastRetweetInterval: util.GetEnvInt("FAST_RETWEET_INTERVAL", builder.DefaultFastRetweetSeconds),
		TweetSimThreshold:   util.GetEnvNumeric("TWEET_SIM_THRESHOLD", builder.DefaultSimilarity),
		ValidateNodeIDs:     util.GetEnvBool("VALIDATE_NODE_IDS", false),
		ParallelBuilders:    util.GetEnvInt("PARALLEL_BUILDERS", DefaultParallelBuilders),

		StoreBackend: util.GetEnvString("STORE_BACKEND", StoreFS),
		InputSource:  util.GetEnvString("INPUT_SOURCE", InputFS),

		Debug:     util.GetEnvBool("DEBUG", false),
		LogFormat: util.GetEnvString("LOG_FORMAT", "text"),

		AI: AIConfig{
			Adapter:       util.GetEnvString("AI_ADAPTER", "ollama"),
			Model:         util.GetEnv("AI_EMBED_MODEL"),
			URL:           util.GetEnv("AI_EMBED_URL"),
			Key:           util.GetEnv("AI_EMBED_KEY"),
			MaxTokens:     util.GetEnvInt("AI_EMBED_MAX_TOKENS", builder.DefaultEmbedMaxTokens),
			MaxConcurrent: util.GetEnvInt("AI_MAX_CONCURRENT", DefaultMaxConcurrent),
		},
		S3: S3Config{
			Region:    util.GetEnv("AWS_REGION"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
			Bucket:    util.GetEnv("AWS_BUCKET"),
			Prefix:    util.GetEnv("AWS_PREFIX"),
		},
		DatabaseURL: util.GetEnv("DATABASE_URL"),
		SQLitePath:  util.GetEnv("SQLITE_PATH"),
		RabbitMQ: RabbitMQConfig{
			User:     util.GetEnv("RABBITMQ_USER"),
			Password: util.GetEnv("RABBITMQ_PASSWORD"),
			Host:     util.GetEnv("RABBITMQ_HOST"),
			Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
		},
	}, nil
}

func (o Overrides) apply(cfg *Config) {
	if o.Dataset != nil {
		cfg.Dataset = *o.Dataset
	}
	if o.DeviceID != nil {
		cfg.DeviceID = *o.DeviceID
	}
	if o.ValidateNodeIDs != nil {
		cfg.ValidateNodeIDs = *o.ValidateNodeIDs
	}
	if o.BaseDir != nil {
		cfg.BaseDir = *o.BaseDir
	}
}

// Validate checks the struct constraints and the settings each backend
// depends on.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("invalid configuration: DATABASE_URL is required for the %s store", StorePostgres)
		}
	case StoreS3:
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("invalid configuration: AWS_BUCKET is required for the %s store", StoreS3)
		}
	}
	if cfg.InputSource == InputS3 && cfg.S3.Bucket == "" {
		return fmt.Errorf("invalid configuration: AWS_BUCKET is required for s3 input")
	}
	return nil
}
