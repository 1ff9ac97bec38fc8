// Package config loads the gateway configuration from layered sources with
// koanf and checks it with validator.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultServerPort     = 8080
	DefaultMaxRequestSize = 1 << 20
	DefaultGzipMinSize    = 1000

	DefaultBridgeMaxAttempts = 3
	DefaultBridgeMultiplier  = 2.0

	// DefaultTokenHeader carries the caller's ModelScope token.
	DefaultTokenHeader = "X-Modelscope-Token"

	// EnvPrefix marks the environment variables Load reads.
	EnvPrefix = "APP_"
)

// Config is the gateway configuration. Each section maps to a top-level
// YAML key.
type Config struct {
	App       AppConfig       `koanf:"app" validate:"required"`
	Server    ServerConfig    `koanf:"server" validate:"required"`
	Log       LogConfig       `koanf:"log" validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	CORS      CORSConfig      `koanf:"cors" validate:"required"`
	Token     TokenConfig     `koanf:"token" validate:"required"`
	Bridge    BridgeConfig    `koanf:"bridge" validate:"required"`
	Client    ClientConfig    `koanf:"client" validate:"required"`
	Registry  RegistryConfig  `koanf:"registry" validate:"required"`
}

type AppConfig struct {
	Name        string `koanf:"name" validate:"required"`
	Version     string `koanf:"version" validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig covers the listener and the per-request budget.
// RequestTimeout bounds registry routes and must end before WriteTimeout
// cuts the connection.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"min=0,ltfield=WriteTimeout"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
	GzipMinSize     int           `koanf:"gzip_min_size" validate:"min=0"`
}

type LogConfig struct {
	Level  string        `koanf:"level" validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// Debug reports whether the log level exposes diagnostic detail.
func (c LogConfig) Debug() bool {
	return c.Level == "trace" || c.Level == "debug"
}

// LogFileConfig mirrors logs into a file rotated by lumberjack.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size" validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age" validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig points the OTLP exporters at a collector.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint" validate:"required_if=Enabled true,omitempty,url"`
	ServiceName  string  `koanf:"service_name" validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// CORSConfig contains cross-origin settings for browser clients.
type CORSConfig struct {
	AllowedOrigins   []string      `koanf:"allowed_origins" validate:"required,min=1"`
	AllowCredentials bool          `koanf:"allow_credentials"`
	MaxAge           time.Duration `koanf:"max_age" validate:"min=0"`
}

// TokenConfig names the request header that carries the registry token.
type TokenConfig struct {
	Header string `koanf:"header" validate:"required,header"`
}

// BridgeConfig contains the retry policy and classification rules applied
// to every registry call.
type BridgeConfig struct {
	MaxAttempts    int                  `koanf:"max_attempts" validate:"required,min=1,max=10"`
	InitialBackoff time.Duration        `koanf:"initial_backoff" validate:"min=0"`
	MaxBackoff     time.Duration        `koanf:"max_backoff" validate:"omitempty,min=0,gtefield=InitialBackoff"`
	Multiplier     float64              `koanf:"multiplier" validate:"required,min=1,max=10"`
	AttemptTimeout time.Duration        `koanf:"attempt_timeout" validate:"min=0"`
	RetryableKinds []string             `koanf:"retryable_kinds" validate:"dive,required,kind"`
	Classification ClassificationConfig `koanf:"classification"`
}

// ClassificationConfig adds error classification rules on top of the
// built-in table. Values are kind tags such as "Network" or "NotFound".
type ClassificationConfig struct {
	// Patterns maps a case-insensitive substring of the failure text to a kind.
	Patterns map[string]string `koanf:"patterns" validate:"dive,keys,required,endkeys,required,kind"`

	// Statuses maps an upstream HTTP status code to a kind.
	Statuses map[string]string `koanf:"statuses" validate:"dive,keys,httpstatus,endkeys,required,kind"`
}

// ClientConfig tunes the HTTP client used for registry calls.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout" validate:"required,min=100ms"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport" validate:"required"`
}

// CircuitBreakerConfig sets when the registry circuit opens and how many
// trial calls must succeed before it closes again.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures" validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout" validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns" validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout" validate:"required,min=1s"`
}

// RegistryConfig contains the ModelScope registry endpoint.
type RegistryConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	Name    string `koanf:"name" validate:"required"`
}

// defaults is the lowest configuration layer, one map per section.
func defaults() map[string]any {
	return map[string]any{
		"app": map[string]any{
			"name":        "mcphub-gateway",
			"version":     "dev",
			"environment": "local",
		},
		"server": map[string]any{
			"host":             "0.0.0.0",
			"port":             DefaultServerPort,
			"read_timeout":     "30s",
			"write_timeout":    "60s",
			"idle_timeout":     "120s",
			"shutdown_timeout": "10s",
			"request_timeout":  "55s",
			"max_request_size": DefaultMaxRequestSize,
			"gzip_min_size":    DefaultGzipMinSize,
		},
		"log": map[string]any{
			"level":  "info",
			"format": "json",
			"file": map[string]any{
				"enabled":     false,
				"path":        "./logs/app.log",
				"max_size":    100,
				"max_backups": 3,
				"max_age":     28,
				"compress":    true,
			},
		},
		"telemetry": map[string]any{
			"enabled":       false,
			"endpoint":      "",
			"service_name":  "mcphub-gateway",
			"sampling_rate": 1.0,
		},
		"cors": map[string]any{
			"allowed_origins":   []string{"*"},
			"allow_credentials": true,
			"max_age":           "12h",
		},
		"token": map[string]any{
			"header": DefaultTokenHeader,
		},
		"bridge": map[string]any{
			"max_attempts":    DefaultBridgeMaxAttempts,
			"initial_backoff": "2s",
			"max_backoff":     "10s",
			"multiplier":      DefaultBridgeMultiplier,
			"attempt_timeout": "0s",
			"retryable_kinds": []string{"Network"},
		},
		"client": map[string]any{
			"timeout": "30s",
			"circuit_breaker": map[string]any{
				"max_failures":    5,
				"timeout":         "30s",
				"half_open_limit": 3,
			},
			"transport": map[string]any{
				"max_idle_conns":          100,
				"max_idle_conns_per_host": 10,
				"idle_conn_timeout":       "90s",
			},
		},
		"registry": map[string]any{
			"base_url": "https://www.modelscope.cn",
			"name":     "modelscope",
		},
	}
}

// Option changes where Load looks for its sources.
type Option func(*loader)

// WithDir sets the directory holding base.yaml and the profile files.
// It defaults to "configs".
func WithDir(dir string) Option {
	return func(l *loader) { l.dir = dir }
}

// WithEnvFile sets the dotenv file read before the environment. It defaults
// to ".env"; an empty path skips it.
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

type loader struct {
	dir     string
	envFile string
}

// Load builds a Config from, lowest precedence first:
//
//	built-in defaults
//	<dir>/base.yaml
//	<dir>/<profile>.yaml
//	APP_ environment variables, with .env filling in unset ones
//
// Missing files are skipped. The result is not validated; call Validate.
func Load(profile string, opts ...Option) (*Config, error) {
	l := loader{dir: "configs", envFile: ".env"}
	for _, opt := range opts {
		opt(&l)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}

	for _, path := range l.files(profile) {
		if err := loadYAML(k, path); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(l.envFile); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyMapper(k.Keys())), nil); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}

func (l loader) files(profile string) []string {
	files := []string{filepath.Join(l.dir, "base.yaml")}
	if profile != "" {
		files = append(files, filepath.Join(l.dir, profile+".yaml"))
	}

	return files
}

// envKeyMapper maps APP_LOG_FILE_MAX_SIZE to log.file.max_size. Known keys
// are matched exactly so that underscores inside a key survive; anything
// else has every underscore turned into a dot.
func envKeyMapper(known []string) func(string) string {
	byEnv := make(map[string]string, len(known))
	for _, key := range known {
		byEnv[strings.ReplaceAll(key, ".", "_")] = key
	}

	return func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if key, ok := byEnv[name]; ok {
			return key
		}

		return strings.ReplaceAll(name, "_", ".")
	}
}

// loadDotEnv exports path into the process environment. Variables that are
// already set keep their values.
func loadDotEnv(path string) error {
	if path == "" || !exists(path) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}

func loadYAML(k *koanf.Koanf, path string) error {
	if !exists(path) {
		return nil
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)

	return !errors.Is(err, os.ErrNotExist)
}
