// Package config loads the settings of the lesson player from a YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "COGNITIVE"
	FileName  = "cognitive"
)

type Config struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	Plan    string `mapstructure:"plan" yaml:"plan"`

	Groq         Groq         `mapstructure:"groq" yaml:"groq"`
	Deepgram     Deepgram     `mapstructure:"deepgram" yaml:"deepgram"`
	Playback     Playback     `mapstructure:"playback" yaml:"playback"`
	Telemetry    Telemetry    `mapstructure:"telemetry" yaml:"telemetry"`
	Storage      Storage      `mapstructure:"storage" yaml:"storage"`
	Extraction   Extraction   `mapstructure:"extraction" yaml:"extraction"`
	Ingest       Ingest       `mapstructure:"ingest" yaml:"ingest"`
	Connectivity Connectivity `mapstructure:"connectivity" yaml:"connectivity"`
	Tracing      Tracing      `mapstructure:"tracing" yaml:"tracing"`
}

type Groq struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Model  string `mapstructure:"model" yaml:"model"`
	URL    string `mapstructure:"url" yaml:"url,omitempty"`
}

type Deepgram struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Voice  string `mapstructure:"voice" yaml:"voice"`
	URL    string `mapstructure:"url" yaml:"url,omitempty"`
}

type Playback struct {
	// Device is miniaudio or portaudio.
	Device string    `mapstructure:"device" yaml:"device"`
	Speeds []float64 `mapstructure:"speeds" yaml:"speeds,flow"`
}

type Telemetry struct {
	// Store is file, sqlite or redis.
	Store         string        `mapstructure:"store" yaml:"store"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisPrefix   string        `mapstructure:"redis_prefix" yaml:"redis_prefix,omitempty"`
	CollectorURL  string        `mapstructure:"collector_url" yaml:"collector_url"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
}

type Storage struct {
	// Backend is local, gcs or inline. Inline keeps lesson audio in data
	// URLs and does not store uploads.
	Backend       string `mapstructure:"backend" yaml:"backend"`
	Bucket        string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url,omitempty"`
	Credentials   string `mapstructure:"credentials" yaml:"credentials,omitempty"`
}

type Extraction struct {
	ProjectID   string `mapstructure:"project_id" yaml:"project_id,omitempty"`
	Location    string `mapstructure:"location" yaml:"location"`
	ProcessorID string `mapstructure:"processor_id" yaml:"processor_id,omitempty"`
	Credentials string `mapstructure:"credentials" yaml:"credentials,omitempty"`
}

type Ingest struct {
	MaxSize      int `mapstructure:"max_size" yaml:"max_size"`
	LargeMaxSize int `mapstructure:"large_max_size" yaml:"large_max_size"`
}

type Connectivity struct {
	ProbeURL string        `mapstructure:"probe_url" yaml:"probe_url"`
	CacheFor time.Duration `mapstructure:"cache_for" yaml:"cache_for"`
}

type Tracing struct {
	// Exporter is none, stdout or otlp.
	Exporter string `mapstructure:"exporter" yaml:"exporter"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// Default returns the settings used when neither a file nor the environment
// says otherwise. Relative paths are resolved against DataDir.
func Default() Config {
	return Config{
		DataDir: defaultDataDir(),
		Plan:    "free",
		Groq:    Groq{Model: "llama-3.3-70b-versatile"},
		Deepgram: Deepgram{
			Voice: "aura-2-thalia-en",
		},
		Playback: Playback{Device: "miniaudio", Speeds: []float64{1.0, 1.25, 1.5, 2.0}},
		Telemetry: Telemetry{
			Store:         "file",
			RedisPrefix:   "cognitive-os:telemetry",
			BatchSize:     5,
			FlushInterval: 5 * time.Second,
		},
		Storage:      Storage{Backend: "local"},
		Extraction:   Extraction{Location: "us"},
		Ingest:       Ingest{MaxSize: 4 << 20, LargeMaxSize: 50 << 20},
		Connectivity: Connectivity{ProbeURL: "https://api.groq.com", CacheFor: 10 * time.Second},
		Tracing:      Tracing{Exporter: "none", LogFile: "lesson.log"},
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".cognitive-os"
	}
	return filepath.Join(dir, "cognitive-os")
}

// Load reads path, or cognitive.yaml from the working directory when path is
// empty, and applies environment overrides on top. A missing default file is
// not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the providers' own variable names work too
	_ = v.BindEnv("groq.api_key", EnvPrefix+"_GROQ_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("deepgram.api_key", EnvPrefix+"_DEEPGRAM_API_KEY", "DEEPGRAM_API_KEY")

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Info("no config file found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("plan", d.Plan)
	v.SetDefault("groq.api_key", d.Groq.APIKey)
	v.SetDefault("groq.model", d.Groq.Model)
	v.SetDefault("groq.url", d.Groq.URL)
	v.SetDefault("deepgram.api_key", d.Deepgram.APIKey)
	v.SetDefault("deepgram.voice", d.Deepgram.Voice)
	v.SetDefault("deepgram.url", d.Deepgram.URL)
	v.SetDefault("playback.device", d.Playback.Device)
	v.SetDefault("playback.speeds", d.Playback.Speeds)
	v.SetDefault("telemetry.store", d.Telemetry.Store)
	v.SetDefault("telemetry.redis_addr", d.Telemetry.RedisAddr)
	v.SetDefault("telemetry.redis_prefix", d.Telemetry.RedisPrefix)
	v.SetDefault("telemetry.collector_url", d.Telemetry.CollectorURL)
	v.SetDefault("telemetry.api_key", d.Telemetry.APIKey)
	v.SetDefault("telemetry.batch_size", d.Telemetry.BatchSize)
	v.SetDefault("telemetry.flush_interval", d.Telemetry.FlushInterval)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.bucket", d.Storage.Bucket)
	v.SetDefault("storage.public_base_url", d.Storage.PublicBaseURL)
	v.SetDefault("storage.credentials", d.Storage.Credentials)
	v.SetDefault("extraction.project_id", d.Extraction.ProjectID)
	v.SetDefault("extraction.location", d.Extraction.Location)
	v.SetDefault("extraction.processor_id", d.Extraction.ProcessorID)
	v.SetDefault("extraction.credentials", d.Extraction.Credentials)
	v.SetDefault("ingest.max_size", d.Ingest.MaxSize)
	v.SetDefault("ingest.large_max_size", d.Ingest.LargeMaxSize)
	v.SetDefault("connectivity.probe_url", d.Connectivity.ProbeURL)
	v.SetDefault("connectivity.cache_for", d.Connectivity.CacheFor)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.log_file", d.Tracing.LogFile)
}

func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{"file", "sqlite", "redis"}, c.Telemetry.Store) {
		errs = append(errs, fmt.Errorf("unknown telemetry store %q", c.Telemetry.Store))
	}
	if c.Telemetry.Store == "redis" && c.Telemetry.RedisAddr == "" {
		errs = append(errs, errors.New("telemetry.redis_addr is required for the redis store"))
	}
	if c.Telemetry.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("telemetry.batch_size must be positive, got %d", c.Telemetry.BatchSize))
	}
	if c.Telemetry.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("telemetry.flush_interval must be positive, got %s", c.Telemetry.FlushInterval))
	}
	if !slices.Contains([]string{"local", "gcs", "inline"}, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Storage.Backend == "gcs" && c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required for the gcs backend"))
	}
	if !slices.Contains([]string{"miniaudio", "portaudio"}, c.Playback.Device) {
		errs = append(errs, fmt.Errorf("unknown playback device %q", c.Playback.Device))
	}
	if len(c.Playback.Speeds) == 0 {
		errs = append(errs, errors.New("playback.speeds must not be empty"))
	}
	for _, speed := range c.Playback.Speeds {
		if speed <= 0 {
			errs = append(errs, fmt.Errorf("playback speed must be positive, got %v", speed))
		}
	}
	if !slices.Contains([]string{"free", "premium", "pro"}, c.Plan) {
		errs = append(errs, fmt.Errorf("unknown plan %q", c.Plan))
	}
	if !slices.Contains([]string{"none", "stdout", "otlp"}, c.Tracing.Exporter) {
		errs = append(errs, fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter))
	}
	if c.Ingest.MaxSize <= 0 || c.Ingest.LargeMaxSize < c.Ingest.MaxSize {
		errs = append(errs, fmt.Errorf("ingest limits are inconsistent: %d/%d", c.Ingest.MaxSize, c.Ingest.LargeMaxSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Path resolves name against DataDir unless it is absolute.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// DocumentAIEnabled reports whether PDFs can be extracted.
func (c *Config) DocumentAIEnabled() bool {
	return c.Extraction.ProjectID != "" && c.Extraction.ProcessorID != ""
}

// WriteFile stores cfg as YAML at path. Secrets are written as they are, so
// the file is only readable by its owner.
func WriteFile(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
