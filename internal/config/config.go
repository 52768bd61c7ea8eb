package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Vision   VisionConfig   `yaml:"vision"`
	Media    MediaConfig    `yaml:"media"`
	Services ServicesConfig `yaml:"services"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	// PublicBaseURL is the externally reachable base URL, used when
	// building integration links handed to sibling services.
	PublicBaseURL string `yaml:"public_base_url"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	SearchThreshold    float64 `yaml:"search_threshold"`
	SearchLimit        int     `yaml:"search_limit"`
}

type MediaConfig struct {
	ThumbnailWidth int    `yaml:"thumbnail_width"`
	TempDir        string `yaml:"temp_dir"`
	WorkerCount    int    `yaml:"worker_count"`
}

type ServicesConfig struct {
	IngestionURL string        `yaml:"ingestion_url"`
	ProcessorURL string        `yaml:"processor_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.SearchThreshold == 0 {
		cfg.Vision.SearchThreshold = 0.4
	}
	if cfg.Vision.SearchLimit == 0 {
		cfg.Vision.SearchLimit = 10
	}
	if cfg.Media.ThumbnailWidth == 0 {
		cfg.Media.ThumbnailWidth = 320
	}
	if cfg.Media.TempDir == "" {
		cfg.Media.TempDir = os.TempDir()
	}
	if cfg.Media.WorkerCount == 0 {
		cfg.Media.WorkerCount = 2
	}
	if cfg.Services.Timeout == 0 {
		cfg.Services.Timeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WT_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("WT_PUBLIC_BASE_URL"); v != "" {
		cfg.Server.PublicBaseURL = v
	}
	if v := os.Getenv("WT_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("WT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("WT_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("WT_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("WT_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("WT_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("WT_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("WT_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("WT_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("WT_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("WT_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("WT_INGESTION_URL"); v != "" {
		cfg.Services.IngestionURL = v
	}
	if v := os.Getenv("WT_PROCESSOR_URL"); v != "" {
		cfg.Services.ProcessorURL = v
	}
	if v := os.Getenv("WT_MEDIA_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Media.WorkerCount = n
		}
	}
}
