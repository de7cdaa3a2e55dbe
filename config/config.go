// Package config loads service settings from an optional YAML file and
// VOICE_* environment variables. Environment values win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voice-analyze/utils"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Models   ModelsConfig   `yaml:"models"`
	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Protocol string `yaml:"protocol"`
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Metrics  bool   `yaml:"metrics"`
	CertFile string `yaml:"cert_file"`
	CertKey  string `yaml:"cert_key"`
}

// ModelsConfig locates preprocessing params, label codec and the sentiment
// model endpoint. Empty file paths are resolved inside Dir.
type ModelsConfig struct {
	Dir               string `yaml:"dir"`
	SentimentParams   string `yaml:"sentiment_params"`
	SentimentLabels   string `yaml:"sentiment_labels"`
	RecognitionParams string `yaml:"recognition_params"`
	SentimentURL      string `yaml:"sentiment_url"`
	SentimentModel    string `yaml:"sentiment_model"`
}

// StoreConfig selects the speaker store backend.
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	DSN        string `yaml:"dsn"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// PipelineConfig tunes request processing.
type PipelineConfig struct {
	// TargetSampleRate resamples decoded audio; 0 keeps the native rate.
	TargetSampleRate int           `yaml:"target_sample_rate"`
	Workers          int           `yaml:"workers"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	// IdentifyThreshold is unset by default: identification always returns
	// the best-scoring speaker.
	IdentifyThreshold *float64 `yaml:"identify_threshold"`
	MaxUploadMB       int      `yaml:"max_upload_mb"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Protocol: "http",
			Port:     "5001",
			LogLevel: "info",
			Metrics:  true,
			CertFile: "/etc/letsencrypt/live/localport.online/fullchain.pem",
			CertKey:  "/etc/letsencrypt/live/localport.online/privkey.pem",
		},
		Models: ModelsConfig{
			Dir:            "models",
			SentimentModel: "voice_sentiment",
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    filepath.Join("data", "speakers.json"),
		},
		Pipeline: PipelineConfig{
			RequestTimeout: 30 * time.Second,
			MaxUploadMB:    32,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is non-empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode %q: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := utils.GetEnv(key); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setString(&c.Server.Protocol, "VOICE_PROTOCOL")
	setString(&c.Server.Port, "VOICE_PORT")
	setString(&c.Server.LogLevel, "VOICE_LOG_LEVEL")
	setString(&c.Server.CertFile, "CERT_FILE")
	setString(&c.Server.CertKey, "CERT_KEY")
	setString(&c.Models.Dir, "VOICE_MODEL_DIR")
	setString(&c.Models.SentimentParams, "VOICE_SENTIMENT_PARAMS")
	setString(&c.Models.SentimentLabels, "VOICE_SENTIMENT_LABELS")
	setString(&c.Models.RecognitionParams, "VOICE_RECOGNITION_PARAMS")
	setString(&c.Models.SentimentURL, "VOICE_SENTIMENT_URL")
	setString(&c.Models.SentimentModel, "VOICE_SENTIMENT_MODEL")
	setString(&c.Store.Backend, "VOICE_STORE_BACKEND")
	setString(&c.Store.Path, "VOICE_STORE_PATH")
	setString(&c.Store.DSN, "VOICE_STORE_DSN")
	setString(&c.Store.Database, "VOICE_STORE_DATABASE")
	setString(&c.Store.Collection, "VOICE_STORE_COLLECTION")

	c.Pipeline.TargetSampleRate = utils.GetEnvInt("VOICE_TARGET_SAMPLE_RATE", c.Pipeline.TargetSampleRate)
	c.Pipeline.Workers = utils.GetEnvInt("VOICE_WORKERS", c.Pipeline.Workers)
	c.Pipeline.MaxUploadMB = utils.GetEnvInt("VOICE_MAX_UPLOAD_MB", c.Pipeline.MaxUploadMB)

	if v := utils.GetEnv("VOICE_METRICS"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: VOICE_METRICS=%q: %w", v, err)
		}
		c.Server.Metrics = b
	}
	if v := utils.GetEnv("VOICE_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: VOICE_REQUEST_TIMEOUT=%q: %w", v, err)
		}
		c.Pipeline.RequestTimeout = d
	}
	if v := utils.GetEnv("VOICE_IDENTIFY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("config: VOICE_IDENTIFY_THRESHOLD=%q: %w", v, err)
		}
		c.Pipeline.IdentifyThreshold = &f
	}
	return nil
}

func (c *Config) resolvePaths() {
	resolve := func(dst *string, parts ...string) {
		if *dst == "" {
			*dst = filepath.Join(append([]string{c.Models.Dir}, parts...)...)
		}
	}
	resolve(&c.Models.SentimentParams, "sentiment", "params.json")
	resolve(&c.Models.SentimentLabels, "sentiment", "labels.json")
	resolve(&c.Models.RecognitionParams, "recognition", "params.json")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Server.Protocol) {
	case "http", "https":
	default:
		errs = append(errs, fmt.Errorf("server.protocol %q must be http or https", c.Server.Protocol))
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server.port %q is not a number", c.Server.Port))
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", c.Server.LogLevel))
	}
	if c.Pipeline.TargetSampleRate < 0 {
		errs = append(errs, fmt.Errorf("pipeline.target_sample_rate must not be negative"))
	}
	if c.Pipeline.Workers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers must not be negative"))
	}
	if c.Pipeline.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.request_timeout must not be negative"))
	}
	if t := c.Pipeline.IdentifyThreshold; t != nil && (*t < -1 || *t > 1) {
		errs = append(errs, fmt.Errorf("pipeline.identify_threshold %v outside [-1, 1]", *t))
	}
	if c.Pipeline.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_upload_mb must be positive"))
	}
	switch strings.ToLower(c.Store.Backend) {
	case "", "file", "json", "sqlite", "sqlite3":
		if c.Store.Path == "" && c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the %q backend", c.Store.Backend))
		}
	case "postgres", "postgresql", "pgvector", "mongo", "mongodb":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for the %q backend", c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is unknown", c.Store.Backend))
	}

	return errors.Join(errs...)
}
