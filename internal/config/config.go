// Package config содержит логику чтения конфигурации витрины.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса витрины.
// При пустом DatabaseURI сервис работает на хранилище в памяти.
type Config struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	DatabaseURI        string `env:"DATABASE_URI"`
	FulfillmentAddress string `env:"FULFILLMENT_API_ADDRESS"`
	RedisAddress       string `env:"REDIS_ADDRESS"`
	JWTSecret          string `env:"JWT_SECRET"`
	AdminPasscode      string `env:"ADMIN_PASSCODE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envFulfillment := cfg.FulfillmentAddress
	envRedis := cfg.RedisAddress
	envSecret := cfg.JWTSecret
	envPasscode := cfg.AdminPasscode

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.FulfillmentAddress, "r", "", "external fulfillment API address")
	flag.StringVar(&cfg.RedisAddress, "m", "", "redis address for checkout idempotency")
	flag.StringVar(&cfg.JWTSecret, "s", "", "secret key for signing session tokens")
	flag.StringVar(&cfg.AdminPasscode, "p", "", "shared admin passcode")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envFulfillment != "" {
		cfg.FulfillmentAddress = envFulfillment
	}
	if envRedis != "" {
		cfg.RedisAddress = envRedis
	}
	if envSecret != "" {
		cfg.JWTSecret = envSecret
	}
	if envPasscode != "" {
		cfg.AdminPasscode = envPasscode
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
