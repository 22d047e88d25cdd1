package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/local.yaml"

type Config struct {
	Env         string `yaml:"env" env:"APP_ENV" env-default:"local"`
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	HTTPServer  `yaml:"http_server"`
	Redis       Redis     `yaml:"redis"`
	RateLimit   RateLimit `yaml:"rate_limit"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	LockTTL  time.Duration `yaml:"lock_ttl" env-default:"10s"`
	CacheTTL time.Duration `yaml:"cache_ttl" env-default:"5m"`
}

type RateLimit struct {
	PerMinute int `yaml:"per_minute" env-default:"120"`
	Burst     int `yaml:"burst" env-default:"20"`
}

// ClientConfig configures apptctl. It is read from the environment only.
type ClientConfig struct {
	Env     string        `env:"APPT_ENV" env-default:"local"`
	BaseURL string        `env:"APPT_BASE_URL" env-default:"http://localhost:8080"`
	UserID  string        `env:"APPT_USER_ID" env-required:"true"`
	Role    string        `env:"APPT_ROLE" env-default:"doctor"`
	Timeout time.Duration `env:"APPT_TIMEOUT" env-default:"10s"`
}

func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}

	return cfg
}

func LoadClient() (*ClientConfig, error) {
	const op = "config.LoadClient"

	var cfg ClientConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}
