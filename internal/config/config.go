// Package config loads the worker's JSON configuration file and applies
// per-field validation plus environment-variable and built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("30s", "5m") or a JSON number of nanoseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(raw []byte) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(val))
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", v)
	}
}

// Config is the root configuration shape loaded from the path passed to
// every CLI command's --config flag.
type Config struct {
	Temporal    TemporalConfig    `json:"temporal"`
	Credentials CredentialsConfig `json:"credentials"`
	BinaryData  BinaryDataConfig  `json:"binaryData"`
	Execution   ExecutionConfig   `json:"execution"`
	Logging     LoggingConfig     `json:"logging"`
}

// TemporalConfig names the durable scheduler endpoint and worker tuning
// knobs.
type TemporalConfig struct {
	Address                             string     `json:"address"`
	Namespace                           string     `json:"namespace,omitempty"`
	TaskQueue                           string     `json:"taskQueue"`
	TLS                                 *TLSConfig `json:"tls,omitempty"`
	Identity                            string     `json:"identity,omitempty"`
	MaxConcurrentActivityTaskExecutions int        `json:"maxConcurrentActivityTaskExecutions,omitempty"`
	MaxConcurrentWorkflowTaskExecutions int        `json:"maxConcurrentWorkflowTaskExecutions,omitempty"`
	MaxCachedWorkflows                  int        `json:"maxCachedWorkflows,omitempty"`
}

// TLSConfig carries client-certificate material for a TLS-enabled
// Temporal frontend.
type TLSConfig struct {
	CertPath string `json:"certPath,omitempty"`
	KeyPath  string `json:"keyPath,omitempty"`
	CAPath   string `json:"caPath,omitempty"`
}

// CredentialsConfig points at the on-disk credential store file.
type CredentialsConfig struct {
	Path string `json:"path"`
}

// BinaryDataConfig selects and configures the binary data offload
// backend.
type BinaryDataConfig struct {
	Mode       string           `json:"mode,omitempty"` // "filesystem" or "s3"
	Filesystem FilesystemConfig `json:"filesystem,omitempty"`
	S3         S3Config         `json:"s3,omitempty"`
}

// FilesystemConfig roots the filesystem binary data backend.
type FilesystemConfig struct {
	BasePath string `json:"basePath,omitempty"`
}

// S3Config configures the S3 binary data backend.
type S3Config struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Host            string `json:"host,omitempty"`
	Protocol        string `json:"protocol,omitempty"`
	AccessKeyID     string `json:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
	AuthAutoDetect  bool   `json:"authAutoDetect,omitempty"`
}

// ExecutionConfig tunes the step-task activity's timeout and retry
// policy.
type ExecutionConfig struct {
	ActivityTimeout Duration          `json:"activityTimeout,omitempty"`
	RetryPolicy     RetryPolicyConfig `json:"retryPolicy,omitempty"`
}

// RetryPolicyConfig is the step-task activity retry policy.
type RetryPolicyConfig struct {
	MaximumAttempts    int32    `json:"maximumAttempts,omitempty"`
	InitialInterval    Duration `json:"initialInterval,omitempty"`
	MaximumInterval    Duration `json:"maximumInterval,omitempty"`
	BackoffCoefficient float64  `json:"backoffCoefficient,omitempty"`
}

// LoggingConfig controls the worker's structured logger. Absent fields
// fall back to the LOG_LEVEL/LOG_FORMAT environment variables, then to
// info/json.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// Load reads and validates the configuration file at path, applying
// environment-variable and built-in defaults for optional fields.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c Config) validate() error {
	if c.Temporal.Address == "" {
		return fmt.Errorf("temporal.address is required")
	}
	if c.Temporal.TaskQueue == "" {
		return fmt.Errorf("temporal.taskQueue is required")
	}
	if c.Credentials.Path == "" {
		return fmt.Errorf("credentials.path is required")
	}
	if c.BinaryData.Mode == "s3" && c.BinaryData.S3.Bucket == "" {
		return fmt.Errorf("binaryData.s3.bucket is required when binaryData.mode is \"s3\"")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.BinaryData.Mode == "" {
		c.BinaryData.Mode = "filesystem"
	}
	if c.BinaryData.Filesystem.BasePath == "" {
		c.BinaryData.Filesystem.BasePath = "./binary-data"
	}
	if c.Execution.ActivityTimeout == 0 {
		c.Execution.ActivityTimeout = Duration(5 * time.Minute)
	}
	if c.Execution.RetryPolicy.MaximumAttempts == 0 {
		c.Execution.RetryPolicy.MaximumAttempts = 3
	}
	if c.Execution.RetryPolicy.InitialInterval == 0 {
		c.Execution.RetryPolicy.InitialInterval = Duration(time.Second)
	}
	if c.Execution.RetryPolicy.MaximumInterval == 0 {
		c.Execution.RetryPolicy.MaximumInterval = Duration(time.Minute)
	}
	if c.Execution.RetryPolicy.BackoffCoefficient == 0 {
		c.Execution.RetryPolicy.BackoffCoefficient = 2.0
	}

	if c.Logging.Level == "" {
		c.Logging.Level = envOrDefault("LOG_LEVEL", "info")
	}
	if c.Logging.Format == "" {
		c.Logging.Format = envOrDefault("LOG_FORMAT", "json")
	}
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
