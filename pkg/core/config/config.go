// Package config loads runtime settings from config/stitch.yaml, .env and
// STITCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"statement_stitch/pkg/api"
	"statement_stitch/pkg/core/llm"
	"statement_stitch/pkg/core/period"
	"statement_stitch/pkg/core/store"
	"statement_stitch/pkg/core/synthesis"
	"statement_stitch/pkg/core/validate"
	"statement_stitch/pkg/core/vocab"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STITCH_PIPELINE_WORKERS.
const EnvPrefix = "STITCH"

type Config struct {
	Logging       LoggingConfig       `mapstructure:"logging"       yaml:"logging"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"      yaml:"pipeline"`
	Vocabulary    VocabularyConfig    `mapstructure:"vocabulary"    yaml:"vocabulary"`
	Consolidation ConsolidationConfig `mapstructure:"consolidation" yaml:"consolidation"`
	Checks        validate.Options    `mapstructure:"checks"        yaml:"checks"`
	Embedding     llm.Config          `mapstructure:"embedding"     yaml:"embedding"`
	Store         store.Config        `mapstructure:"store"         yaml:"store"`
	Output        OutputConfig        `mapstructure:"output"        yaml:"output"`
	API           api.Config          `mapstructure:"api"           yaml:"api"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

type PipelineConfig struct {
	Workers        int      `mapstructure:"workers"         yaml:"workers"`
	Order          string   `mapstructure:"order"           yaml:"order"` // newest_first, oldest_first, explicit
	Explicit       []string `mapstructure:"explicit"        yaml:"explicit"`
	ProcessingYear int      `mapstructure:"processing_year" yaml:"processing_year"`
	AnchorOffset   int      `mapstructure:"anchor_offset"   yaml:"anchor_offset"`
	CacheDir       string   `mapstructure:"cache_dir"       yaml:"cache_dir"`
}

type VocabularyConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // .yaml, .yml, .hjson or .json
}

// ConsolidationConfig overrides the matching vocabulary thresholds. Zero
// keeps the vocabulary value.
type ConsolidationConfig struct {
	OverlapThreshold float64 `mapstructure:"overlap_threshold" yaml:"overlap_threshold"`
	OverlapWindow    int     `mapstructure:"overlap_window"    yaml:"overlap_window"`
	NameSimilarity   float64 `mapstructure:"name_similarity"   yaml:"name_similarity"`
	RestatementAbs   float64 `mapstructure:"restatement_abs"   yaml:"restatement_abs"`
	RestatementRel   float64 `mapstructure:"restatement_rel"   yaml:"restatement_rel"`
}

type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // markdown, html, json, xlsx
	Path   string `mapstructure:"path"   yaml:"path"`   // empty writes to stdout
}

// Load reads .env (when present), then the config file and environment.
// With an empty path it looks for stitch.yaml in ./config and the working
// directory; a missing file is not an error there.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stitch")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.order", "newest_first")
	v.SetDefault("pipeline.explicit", []string{})
	v.SetDefault("pipeline.processing_year", 0)
	v.SetDefault("pipeline.anchor_offset", 0)
	v.SetDefault("pipeline.cache_dir", ".cache/stitch")

	v.SetDefault("vocabulary.path", "")

	v.SetDefault("consolidation.overlap_threshold", 0)
	v.SetDefault("consolidation.overlap_window", 0)
	v.SetDefault("consolidation.name_similarity", 0)
	v.SetDefault("consolidation.restatement_abs", 0)
	v.SetDefault("consolidation.restatement_rel", 0)

	checks := validate.DefaultOptions()
	v.SetDefault("checks.tolerance.abs", checks.Tolerance.Abs)
	v.SetDefault("checks.tolerance.rel", checks.Tolerance.Rel)
	v.SetDefault("checks.outlier_pct", checks.OutlierPct)

	v.SetDefault("embedding.provider", llm.ProviderNone)
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.cache", true)

	v.SetDefault("store.database_url", "")
	v.SetDefault("store.dir", store.DefaultDir)

	v.SetDefault("output.format", "markdown")
	v.SetDefault("output.path", "")

	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.cors_origins", []string{})
	v.SetDefault("api.max_upload_mb", 32)
}

// overrideFromEnv honours the unprefixed DATABASE_URL the deployment already
// exports.
func overrideFromEnv(cfg *Config) {
	if cfg.Store.DatabaseURL == "" {
		cfg.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	}
}

// Validate checks the fields that are not validated by the packages they
// configure.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if _, err := synthesis.ParseOrder(c.Pipeline.Order); err != nil {
		return fmt.Errorf("pipeline.order: %w", err)
	}
	switch strings.ToLower(c.Output.Format) {
	case "markdown", "md", "html", "json", "xlsx":
	default:
		return fmt.Errorf("output.format %q is not one of markdown, html, json, xlsx", c.Output.Format)
	}
	return nil
}

// Order returns the parsed filing order.
func (c *Config) Order() synthesis.Order {
	o, _ := synthesis.ParseOrder(c.Pipeline.Order)
	return o
}

// PeriodOptions returns the period inference options.
func (c *Config) PeriodOptions() period.Options {
	return period.Options{
		ProcessingYear: c.Pipeline.ProcessingYear,
		AnchorOffset:   c.Pipeline.AnchorOffset,
	}
}

// VocabularyConfig loads the vocabulary file (or the built-in vocabulary),
// applies the consolidation overrides and validates the thresholds.
func (c *Config) VocabularyConfig() (*vocab.Config, error) {
	vc := vocab.Default()
	if c.Vocabulary.Path != "" {
		loaded, err := vocab.LoadFile(c.Vocabulary.Path)
		if err != nil {
			return nil, err
		}
		vc = loaded
	}

	th := &vc.Thresholds
	if o := c.Consolidation.OverlapThreshold; o != 0 {
		th.OverlapThreshold = o
	}
	if o := c.Consolidation.OverlapWindow; o != 0 {
		th.OverlapWindow = o
	}
	if o := c.Consolidation.NameSimilarity; o != 0 {
		th.NameSimilarity = o
	}
	if o := c.Consolidation.RestatementAbs; o != 0 {
		th.RestatementAbs = o
	}
	if o := c.Consolidation.RestatementRel; o != 0 {
		th.RestatementRel = o
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return vc, nil
}
