// Package config provides configuration for sortcheck runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override, e.g. SORTCHECK_DATA_DIR.
const EnvPrefix = "SORTCHECK"

// ConfigFileEnv names the environment variable holding an optional config file path.
const ConfigFileEnv = "SORTCHECK_CONFIG"

// Storage types.
const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds the configuration of a validation run.
type Config struct {
	// DataDir is the base directory for all local state
	DataDir string `mapstructure:"data_dir"`

	// Metastore configuration
	Metastore MetastoreConfig `mapstructure:"metastore"`

	// Local file configuration
	Local LocalConfig `mapstructure:"local"`

	// Remote storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Reader configuration
	Reader ReaderConfig `mapstructure:"reader"`

	// Validation configuration
	Validation ValidationConfig `mapstructure:"validation"`

	// Log configuration
	Log LogConfig `mapstructure:"log"`
}

// MetastoreConfig locates the catalog database.
type MetastoreConfig struct {
	// Path is the metastore SQLite file (default <data_dir>/metastore.db)
	Path string `mapstructure:"path"`
}

// LocalConfig holds local file settings.
type LocalConfig struct {
	// Dir holds local copies of partition and chunk files (default <data_dir>/local)
	Dir string `mapstructure:"dir"`

	// MaxCacheBytes bounds the size of downloaded files kept on disk; 0 keeps all
	MaxCacheBytes int64 `mapstructure:"max_cache_bytes"`
}

// StorageConfig holds remote storage configuration.
type StorageConfig struct {
	// Type is the storage type: none, local, s3
	Type string `mapstructure:"type"`

	// Path is the storage directory (for local type, default <data_dir>/storage)
	Path string `mapstructure:"path"`

	// Compression of remote objects: none, snappy
	Compression string `mapstructure:"compression"`

	// DownloadConcurrency bounds simultaneous downloads
	DownloadConcurrency int `mapstructure:"download_concurrency"`

	// S3 configuration (for s3 type)
	S3 S3Config `mapstructure:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `mapstructure:"bucket"`

	// Region is the AWS region
	Region string `mapstructure:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `mapstructure:"endpoint"`

	// UsePathStyle enables path-style addressing (MinIO)
	UsePathStyle bool `mapstructure:"use_path_style"`
}

// ReaderConfig holds file reader settings.
type ReaderConfig struct {
	// BatchSize is the number of rows per record batch
	BatchSize int `mapstructure:"batch_size"`
}

// ValidationConfig holds validation settings.
type ValidationConfig struct {
	// Parallelism is the number of files of one index validated at once
	Parallelism int `mapstructure:"parallelism"`

	// Prefetch downloads all files of an index before validating it
	Prefetch bool `mapstructure:"prefetch"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a zerolog level name
	Level string `mapstructure:"level"`

	// Format is console or json
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/sortcheck",
		Storage: StorageConfig{
			Type:                StorageNone,
			Compression:         "none",
			DownloadConcurrency: 4,
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Reader: ReaderConfig{
			BatchSize: 4096,
		},
		Validation: ValidationConfig{
			Parallelism: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds a configuration from defaults, the optional file at path and
// SORTCHECK_* environment variables, in increasing precedence. Paths are
// resolved but the result is not validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Resolve()
	return cfg, nil
}

// LoadFromEnv loads the configuration using the file named by SORTCHECK_CONFIG, if any.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv(ConfigFileEnv))
}

// setDefaults registers every key so environment variables can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("metastore.path", d.Metastore.Path)
	v.SetDefault("local.dir", d.Local.Dir)
	v.SetDefault("local.max_cache_bytes", d.Local.MaxCacheBytes)
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.compression", d.Storage.Compression)
	v.SetDefault("storage.download_concurrency", d.Storage.DownloadConcurrency)
	v.SetDefault("storage.s3.bucket", d.Storage.S3.Bucket)
	v.SetDefault("storage.s3.region", d.Storage.S3.Region)
	v.SetDefault("storage.s3.endpoint", d.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.use_path_style", d.Storage.S3.UsePathStyle)
	v.SetDefault("reader.batch_size", d.Reader.BatchSize)
	v.SetDefault("validation.parallelism", d.Validation.Parallelism)
	v.SetDefault("validation.prefetch", d.Validation.Prefetch)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Resolve fills unset paths from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/sortcheck"
	}
	if c.Metastore.Path == "" {
		c.Metastore.Path = filepath.Join(c.DataDir, "metastore.db")
	}
	if c.Local.Dir == "" {
		c.Local.Dir = filepath.Join(c.DataDir, "local")
	}
	if c.Storage.Type == StorageLocal && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Storage.Type {
	case StorageNone, StorageLocal, StorageS3:
	default:
		return fmt.Errorf("invalid storage type: %s (must be none, local, or s3)", c.Storage.Type)
	}
	if c.Storage.Type == StorageS3 && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when storage type is s3")
	}
	switch strings.ToLower(c.Storage.Compression) {
	case "", "none", "snappy":
	default:
		return fmt.Errorf("invalid storage compression: %s (must be none or snappy)", c.Storage.Compression)
	}
	if c.Storage.DownloadConcurrency < 1 {
		return fmt.Errorf("storage.download_concurrency must be at least 1, got %d", c.Storage.DownloadConcurrency)
	}

	if c.Local.MaxCacheBytes < 0 {
		return fmt.Errorf("local.max_cache_bytes must not be negative, got %d", c.Local.MaxCacheBytes)
	}
	if c.Reader.BatchSize < 1 {
		return fmt.Errorf("reader.batch_size must be positive, got %d", c.Reader.BatchSize)
	}
	if c.Validation.Parallelism < 1 {
		return fmt.Errorf("validation.parallelism must be at least 1, got %d", c.Validation.Parallelism)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates the directories validation writes to. The
// metastore is only read, so its directory is never created.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Local.Dir,
	}
	if c.Storage.Type == StorageLocal {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
