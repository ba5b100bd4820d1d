// Package config loads the floor server configuration from environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port string `env:"APP_PORT" envDefault:"8080"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"mysql"`
	DBUser     string `env:"DB_USER"`
	DBPass     string `env:"DB_PASS"`
	DBHost     string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`
	DBName     string `env:"DB_NAME"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"floor.db"`

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	RabbitMQURL    string        `env:"RABBITMQ_URL"`
	FeedExchange   string        `env:"FEED_EXCHANGE" envDefault:"floor.changes"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"5s"`
	PublishBuffer  int           `env:"PUBLISH_BUFFER" envDefault:"256"`
}

// Load reads the environment into a Config and checks it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the variables each storage driver requires.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL:
		var missing []error
		for key, v := range map[string]string{"DB_USER": c.DBUser, "DB_NAME": c.DBName, "DB_HOST": c.DBHost, "DB_PORT": c.DBPort} {
			if v == "" {
				missing = append(missing, fmt.Errorf("missing required env var: %s", key))
			}
		}
		return errors.Join(missing...)
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing required env var: SQLITE_PATH")
		}
		return nil
	}
	return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverMySQL, DriverSQLite, c.DBDriver)
}
