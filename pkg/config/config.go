// Package config parses environment variables into typed configuration
// structs. Values come from the process environment, optionally seeded from a
// .env file, and are returned explicitly: the package holds no global
// configuration state, so two calls can load two independent copies.
//
// Example:
//
//	type AppConfig struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//		DSN  string `env:"DATABASE_URL,required"`
//	}
//
//	cfg, err := config.Load[AppConfig]()
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParsingConfig wraps failures to map environment variables onto a config
// struct, including missing required variables.
var ErrParsingConfig = errors.New("config: failed to parse environment")

var dotenvOnce sync.Once

// Load parses environment variables into a fresh T using caarlos0/env struct
// tags. The first call in the process loads a .env file from the working
// directory if one exists; a missing .env is not an error.
func Load[T any]() (T, error) {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any]() T {
	cfg, err := Load[T]()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}
