package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Mode string `yaml:"mode"`
	} `yaml:"server"`
	Database struct {
		Driver          string        `yaml:"driver"`
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	AI struct {
		BaseURL       string        `yaml:"base_url"`
		DefaultAPIKey string        `yaml:"default_api_key"`
		DefaultModel  string        `yaml:"default_model"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"ai"`
	RateLimit struct {
		Backend string        `yaml:"backend"`
		Window  time.Duration `yaml:"window"`
	} `yaml:"ratelimit"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
		Domain    string `yaml:"domain"`
	} `yaml:"minio"`
	Storage struct {
		MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	} `yaml:"storage"`
	Worker struct {
		Concurrency int  `yaml:"concurrency"`
		Enabled     bool `yaml:"enabled"`
	} `yaml:"worker"`
	Log struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
		Output   string `yaml:"output"`
	} `yaml:"log"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

// envOverrides carries secrets and per-deploy values that should not live in the yaml file.
type envOverrides struct {
	Port           string `envconfig:"SERVER_PORT"`
	DatabaseDriver string `envconfig:"DATABASE_DRIVER"`
	DatabaseDSN    string `envconfig:"DATABASE_DSN"`
	RedisAddr      string `envconfig:"REDIS_ADDR"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	DefaultAPIKey  string `envconfig:"TOGETHER_API_KEY_DEFAULT"`
	JWTSecret      string `envconfig:"JWT_SECRET"`
	MinIOAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `envconfig:"MINIO_SECRET_KEY"`
}

var AppConfig *Config

// InitConfig loads the yaml file at path into AppConfig and exits on failure.
func InitConfig(path string) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	AppConfig = cfg
}

// Load reads the yaml file, applies environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read env overrides: %w", err)
	}
	cfg.applyEnv(env)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Server.Port, env.Port)
	set(&c.Database.Driver, env.DatabaseDriver)
	set(&c.Database.DSN, env.DatabaseDSN)
	set(&c.Redis.Addr, env.RedisAddr)
	set(&c.Redis.Password, env.RedisPassword)
	set(&c.AI.DefaultAPIKey, env.DefaultAPIKey)
	set(&c.Auth.JWTSecret, env.JWTSecret)
	set(&c.MinIO.AccessKey, env.MinIOAccessKey)
	set(&c.MinIO.SecretKey, env.MinIOSecretKey)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if !strings.Contains(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = "https://api.together.xyz"
	}
	if c.AI.DefaultModel == "" {
		c.AI.DefaultModel = "fast"
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 2 * time.Minute
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "redis"
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 7 * 24 * time.Hour
	}
	if c.MinIO.Bucket == "" {
		c.MinIO.Bucket = "make-comics"
	}
	if c.Storage.MaxUploadBytes == 0 {
		c.Storage.MaxUploadBytes = 10 << 20
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.RateLimit.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported ratelimit backend %q", c.RateLimit.Backend)
	}
	switch c.AI.DefaultModel {
	case "fast", "pro":
	default:
		return fmt.Errorf("unsupported default model %q", c.AI.DefaultModel)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}
