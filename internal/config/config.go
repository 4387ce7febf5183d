// Package config содержит логику чтения конфигурации ассистента.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultRunAddress = "localhost:8080"

// Config содержит параметры конфигурации ассистента.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	ClassifierAPIKey  string        `env:"GEMINI_API_KEY"`
	ClassifierModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash-001"`
	ClassifierBaseURL string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"20s"`

	EscalationURL     string        `env:"SERVER_URL"`
	EscalationTimeout time.Duration `env:"ESCALATION_TIMEOUT" envDefault:"10s"`
	RabbitMQURL       string        `env:"RABBITMQ_URL"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	HistoryTTL    time.Duration `env:"HISTORY_TTL"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAPIKey := cfg.ClassifierAPIKey
	envEscalationURL := cfg.EscalationURL

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ClassifierAPIKey, "k", "", "classifier API key")
	flag.StringVar(&cfg.EscalationURL, "e", "", "base URL of the human escalation service")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAPIKey != "" {
		cfg.ClassifierAPIKey = envAPIKey
	}
	if envEscalationURL != "" {
		cfg.EscalationURL = envEscalationURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	return cfg, nil
}

// Validate проверяет обязательные параметры до запуска сервиса.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURI == "" {
		errs = append(errs, errors.New("database URI is required (DATABASE_URI or -d)"))
	}
	if c.ClassifierAPIKey == "" {
		errs = append(errs, errors.New("classifier API key is required (GEMINI_API_KEY or -k)"))
	}
	if c.ClassifierTimeout <= 0 {
		errs = append(errs, fmt.Errorf("classifier timeout must be positive, got %s", c.ClassifierTimeout))
	}
	if c.EscalationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("escalation timeout must be positive, got %s", c.EscalationTimeout))
	}
	if c.HistoryTTL < 0 {
		errs = append(errs, fmt.Errorf("history TTL must not be negative, got %s", c.HistoryTTL))
	}
	if c.RabbitMQURL != "" && c.EscalationURL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL requires SERVER_URL to forward escalations"))
	}

	return errors.Join(errs...)
}
