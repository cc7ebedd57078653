package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"

	RemoverHTTP = "http"
	RemoverNone = "none"

	NamingStem   = "stem"
	NamingUnique = "unique"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	S3        S3Config
	Rembg     RembgConfig
	App       AppConfig
	Retention RetentionConfig
	LogLevel  string
}

type ServerConfig struct {
	Host string
	Port string
}

type StorageConfig struct {
	Driver     string
	Dir        string
	SamplesDir string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	Prefix          string
}

type RembgConfig struct {
	Driver  string
	URL     string
	Model   string
	Timeout time.Duration
}

type AppConfig struct {
	MaxUploadSize int64
	// MaxSide downscales inputs whose longest side exceeds it; 0 keeps the original size.
	MaxSide int
	Naming  string
}

type RetentionConfig struct {
	// MaxAge of 0 keeps every file forever.
	MaxAge   time.Duration
	Schedule string
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "localhost")
	v.SetDefault("SERVER_PORT", "5000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_DRIVER", StorageLocal)
	v.SetDefault("STORAGE_DIR", "./static/uploads")
	v.SetDefault("SAMPLES_DIR", "./static")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_BUCKET_NAME", "cutout")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PREFIX", "uploads/")
	v.SetDefault("REMBG_DRIVER", RemoverHTTP)
	v.SetDefault("REMBG_URL", "http://localhost:7000/api/remove")
	v.SetDefault("REMBG_MODEL", "u2net")
	v.SetDefault("REMBG_TIMEOUT", 2*time.Minute)
	v.SetDefault("MAX_UPLOAD_SIZE", 16*1024*1024) // 16MB
	v.SetDefault("IMAGE_MAX_SIDE", 0)
	v.SetDefault("NAMING", NamingStem)
	v.SetDefault("RETENTION_MAX_AGE", time.Duration(0))
	v.SetDefault("RETENTION_SCHEDULE", "@every 1h")
}

// Load reads defaults, an optional CONFIG_FILE and the environment, in that
// order of precedence (environment wins).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetString("SERVER_PORT"),
		},
		Storage: StorageConfig{
			Driver:     strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Dir:        v.GetString("STORAGE_DIR"),
			SamplesDir: v.GetString("SAMPLES_DIR"),
		},
		S3: S3Config{
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			BucketName:      v.GetString("S3_BUCKET_NAME"),
			Region:          v.GetString("S3_REGION"),
			Prefix:          v.GetString("S3_PREFIX"),
		},
		Rembg: RembgConfig{
			Driver:  strings.ToLower(v.GetString("REMBG_DRIVER")),
			URL:     v.GetString("REMBG_URL"),
			Model:   v.GetString("REMBG_MODEL"),
			Timeout: v.GetDuration("REMBG_TIMEOUT"),
		},
		App: AppConfig{
			MaxUploadSize: v.GetInt64("MAX_UPLOAD_SIZE"),
			MaxSide:       v.GetInt("IMAGE_MAX_SIDE"),
			Naming:        strings.ToLower(v.GetString("NAMING")),
		},
		Retention: RetentionConfig{
			MaxAge:   v.GetDuration("RETENTION_MAX_AGE"),
			Schedule: v.GetString("RETENTION_SCHEDULE"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Driver == StorageLocal {
		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", cfg.Storage.Dir, err)
		}
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageLocal, StorageS3:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	switch c.Rembg.Driver {
	case RemoverHTTP, RemoverNone:
	default:
		return fmt.Errorf("unknown REMBG_DRIVER %q", c.Rembg.Driver)
	}
	switch c.App.Naming {
	case NamingStem, NamingUnique:
	default:
		return fmt.Errorf("unknown NAMING %q", c.App.Naming)
	}
	if c.App.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.App.MaxUploadSize)
	}
	if c.App.MaxSide < 0 {
		return fmt.Errorf("IMAGE_MAX_SIDE must not be negative, got %d", c.App.MaxSide)
	}
	return nil
}
