// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

// Package config loads and validates curio's configuration from defaults,
// an optional YAML file, and CURIO_-prefixed environment variables, in that
// order of precedence.
package config

import (
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/curio-dev/curio/internal/corpus"
	"github.com/curio-dev/curio/internal/index"
	"github.com/curio-dev/curio/internal/pipeline"
	"github.com/curio-dev/curio/internal/rank"
	"github.com/curio-dev/curio/internal/secrets"
	curioerr "github.com/curio-dev/curio/pkg/errors"
	"github.com/curio-dev/curio/pkg/types"
)

// Config is the top-level curio configuration.
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    ModelsConfig              `mapstructure:"models"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Ranking   RankingConfig             `mapstructure:"ranking"`
}

// ServerConfig controls the HTTP gateway.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`

	// AuthToken enables bearer auth when non-empty. May be a
	// keyring://service/key URI.
	AuthToken string `mapstructure:"auth_token"`

	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string `mapstructure:"cors_origins"`

	// TrustedProxies lists CIDR ranges whose forwarded headers are honored
	// when resolving the client IP. Empty means the direct peer is used.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	// RateLimitRPS is the sustained per-IP request rate. Zero disables
	// rate limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	// EnableHSTS adds a Strict-Transport-Security header. Only enable when
	// TLS terminates in front of the gateway.
	EnableHSTS bool `mapstructure:"enable_hsts"`
}

// ProviderConfig holds credentials and endpoint for a model provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig pins model references and pipeline limits. It maps onto
// pipeline.ModelConfig via ToModelConfig.
type ModelsConfig struct {
	// Version tags results produced under this configuration.
	Version string `mapstructure:"version"`

	// Embedder is the "provider/model" embedding reference. Changing it
	// invalidates the vector index.
	Embedder string `mapstructure:"embedder"`

	// Generator is the "provider/model" completion reference used for
	// explanations. Empty disables generation.
	Generator string `mapstructure:"generator"`

	// Failover lists completion models tried in order when the generator's
	// provider is unavailable. Embedders never fail over.
	Failover []string `mapstructure:"failover"`

	CandidateMultiplier int `mapstructure:"candidate_multiplier"`
	DefaultK            int `mapstructure:"default_k"`
	MaxK                int `mapstructure:"max_k"`

	EmbedTimeout    time.Duration `mapstructure:"embed_timeout"`
	RetrieveTimeout time.Duration `mapstructure:"retrieve_timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
}

// StorageConfig selects the corpus and index backends.
type StorageConfig struct {
	// Path is the data directory. Empty resolves to the default data dir
	// at startup.
	Path string `mapstructure:"path"`

	CorpusBackend string `mapstructure:"corpus_backend"` // sqlite | memory
	IndexBackend  string `mapstructure:"index_backend"`  // sqlitevec | memory

	// Dimensions must match the embedder's output vector length.
	Dimensions int    `mapstructure:"dimensions"`
	Metric     string `mapstructure:"metric"` // cosine | l2
}

// RankingConfig declares scoring weights and the filter vocabulary. It maps
// onto rank.Config via ToRankConfig.
type RankingConfig struct {
	SimilarityWeight float64            `mapstructure:"similarity_weight"`
	SignalWeights    map[string]float64 `mapstructure:"signal_weights"`
	FilterableFields map[string]string  `mapstructure:"filterable_fields"`
	MMRLambda        float64            `mapstructure:"mmr_lambda"`
}

// SetDefaults installs the built-in defaults on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8821")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", 30)
	v.SetDefault("server.enable_hsts", false)

	v.SetDefault("models.version", "v1")
	v.SetDefault("models.embedder", "openai/text-embedding-3-small")
	v.SetDefault("models.generator", "openai/gpt-4o-mini")
	v.SetDefault("models.candidate_multiplier", 4)
	v.SetDefault("models.default_k", 10)
	v.SetDefault("models.max_k", 100)
	v.SetDefault("models.embed_timeout", "10s")
	v.SetDefault("models.retrieve_timeout", "5s")
	v.SetDefault("models.generate_timeout", "30s")

	v.SetDefault("storage.corpus_backend", "sqlite")
	v.SetDefault("storage.index_backend", "sqlitevec")
	v.SetDefault("storage.dimensions", 1536)
	v.SetDefault("storage.metric", "cosine")

	v.SetDefault("ranking.similarity_weight", 1.0)
	v.SetDefault("ranking.mmr_lambda", 1.0)
	v.SetDefault("ranking.filterable_fields", map[string]string{
		"id":       "string",
		"category": "string",
		"price":    "number",
	})
}

// SetupEnv enables CURIO_-prefixed environment overrides, with dots in
// config keys replaced by underscores (server.listen -> CURIO_SERVER_LISTEN).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("CURIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper unmarshals and validates a populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, curioerr.Errorf(curioerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Load reads configuration from the given path (or defaults only when the
// path is empty) with environment variable overrides.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// LoadResolved is Load plus keyring:// URI resolution through store, so
// secret-valued keys arrive as plain values.
func LoadResolved(path string, store secrets.Store) (*Config, error) {
	return load(path, store)
}

func load(path string, store secrets.Store) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, curioerr.Errorf(curioerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	if store != nil {
		if err := secrets.ResolveViperSecrets(v, store); err != nil {
			return nil, err
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors. It returns all
// problems found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateRanking()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}

	// Host can be empty (e.g. ":8821"), which is valid.
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d", port))
	}

	for _, cidr := range c.Server.TrustedProxies {
		if strings.TrimSpace(cidr) == "" {
			continue
		}
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
				"config: server.trusted_proxies entry %q is not a valid CIDR range", cidr))
		}
	}

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_rps must not be negative, got %g", c.Server.RateLimitRPS))
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_burst must be positive when rate limiting is enabled, got %d",
			c.Server.RateLimitBurst))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validCorpus := map[string]bool{"sqlite": true, "memory": true}
	if !validCorpus[c.Storage.CorpusBackend] {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: storage.corpus_backend must be one of [sqlite, memory], got %q",
			c.Storage.CorpusBackend,
		))
	}

	validIndex := map[string]bool{"sqlitevec": true, "memory": true}
	if !validIndex[c.Storage.IndexBackend] {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: storage.index_backend must be one of [sqlitevec, memory], got %q",
			c.Storage.IndexBackend,
		))
	}

	if c.Storage.Dimensions < 1 {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: storage.dimensions must be greater than 0, got %d",
			c.Storage.Dimensions,
		))
	}

	if !types.Metric(c.Storage.Metric).Valid() {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: storage.metric must be one of [cosine, l2], got %q",
			c.Storage.Metric,
		))
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	if c.Models.Version == "" {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue, "config: models.version must not be empty"))
	}

	errs = append(errs, c.validateModelRef("models.embedder", c.Models.Embedder, true)...)
	errs = append(errs, c.validateModelRef("models.generator", c.Models.Generator, false)...)

	for i, model := range c.Models.Failover {
		key := "models.failover[" + strconv.Itoa(i) + "]"
		errs = append(errs, c.validateModelRef(key, model, true)...)
	}

	if c.Models.CandidateMultiplier < 1 {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: models.candidate_multiplier must be at least 1, got %d",
			c.Models.CandidateMultiplier,
		))
	}
	if c.Models.DefaultK < 1 {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: models.default_k must be at least 1, got %d", c.Models.DefaultK))
	}
	if c.Models.MaxK < c.Models.DefaultK {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: models.max_k must be >= models.default_k, got %d < %d",
			c.Models.MaxK, c.Models.DefaultK,
		))
	}

	if c.Models.EmbedTimeout <= 0 {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: models.embed_timeout must be positive, got %v", c.Models.EmbedTimeout))
	}
	if c.Models.RetrieveTimeout <= 0 {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: models.retrieve_timeout must be positive, got %v", c.Models.RetrieveTimeout))
	}
	if c.Models.GenerateTimeout <= 0 {
		errs = append(errs, curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: models.generate_timeout must be positive, got %v", c.Models.GenerateTimeout))
	}

	return errs
}

// validateModelRef checks "provider/model" format and, when a providers
// section exists, that the referenced provider is configured. A nil map
// means no providers section was configured (e.g. defaults only on a fresh
// install), which is valid.
func (c *Config) validateModelRef(key, ref string, required bool) []error {
	if ref == "" {
		if required {
			return []error{curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
				"config: %s must not be empty", key)}
		}
		return nil
	}

	if !strings.Contains(ref, "/") {
		return []error{curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
			"config: %s must be in \"provider/model\" format, got %q", key, ref)}
	}

	if c.Providers != nil {
		providerName := providerFromModel(ref)
		if _, ok := c.Providers[providerName]; !ok {
			return []error{curioerr.Errorf(curioerr.CodeConfigValidateInvalidValue,
				"config: %s %q references provider %q which is not configured",
				key, ref, providerName)}
		}
	}

	return nil
}

func (c *Config) validateRanking() []error {
	if _, err := c.ToRankConfig(); err != nil {
		return []error{err}
	}
	return nil
}

// ToRankConfig converts the ranking section into the rank engine's
// configuration and validates it.
func (c *Config) ToRankConfig() (*rank.Config, error) {
	fields := make(map[string]rank.FieldType, len(c.Ranking.FilterableFields))
	for name, typ := range c.Ranking.FilterableFields {
		fields[name] = rank.FieldType(typ)
	}

	rc := &rank.Config{
		FilterableFields: fields,
		Weights: rank.Weights{
			Similarity: c.Ranking.SimilarityWeight,
			Signals:    c.Ranking.SignalWeights,
		},
		MMRLambda: c.Ranking.MMRLambda,
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

// ToModelConfig builds the versioned pipeline configuration from the models
// and ranking sections.
func (c *Config) ToModelConfig() (pipeline.ModelConfig, error) {
	rc, err := c.ToRankConfig()
	if err != nil {
		return pipeline.ModelConfig{}, err
	}

	return pipeline.ModelConfig{
		Version:             c.Models.Version,
		EmbedderRef:         c.Models.Embedder,
		GeneratorRef:        c.Models.Generator,
		CandidateMultiplier: c.Models.CandidateMultiplier,
		DefaultK:            c.Models.DefaultK,
		MaxK:                c.Models.MaxK,
		EmbedTimeout:        c.Models.EmbedTimeout,
		RetrieveTimeout:     c.Models.RetrieveTimeout,
		GenerateTimeout:     c.Models.GenerateTimeout,
		Ranking:             rc,
	}, nil
}

// ToCorpusConfig builds the corpus factory configuration with database files
// rooted under dataDir.
func (c *Config) ToCorpusConfig(dataDir string) corpus.Config {
	return corpus.Config{
		Backend: c.Storage.CorpusBackend,
		Path:    filepath.Join(dataDir, "corpus.db"),
	}
}

// ToIndexConfig builds the index factory configuration with database files
// rooted under dataDir.
func (c *Config) ToIndexConfig(dataDir string) index.Config {
	return index.Config{
		Backend:    c.Storage.IndexBackend,
		Path:       filepath.Join(dataDir, "index.db"),
		Dimensions: c.Storage.Dimensions,
		Metric:     types.Metric(c.Storage.Metric),
	}
}

// providerFromModel extracts the provider prefix from a "provider/model" string.
func providerFromModel(model string) string {
	if idx := strings.Index(model, "/"); idx > 0 {
		return model[:idx]
	}
	return model
}
