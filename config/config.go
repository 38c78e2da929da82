// Package config loads the server configuration from an optional TOML
// file and the environment. Environment variables win over the file.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendDynamo = "dynamo"
	BackendSQLite = "sqlite"
)

type Config struct {
	DevMode  bool   `toml:"dev-mode"`
	HostPort string `toml:"host-port"`
	// CORSOrigin is the browser origin allowed to call the API.
	CORSOrigin string `toml:"cors-origin"`

	Store Store `toml:"store"`
	Redis Redis `toml:"redis"`
	SQS   SQS   `toml:"sqs"`
	Auth  Auth  `toml:"auth"`
}

type Store struct {
	Backend          string `toml:"backend"`
	DynamoDBEndpoint string `toml:"dynamodb-endpoint"`
	DynamoDBTable    string `toml:"dynamodb-table"`
	SQLitePath       string `toml:"sqlite-path"`
	SQLitePoolSize   int    `toml:"sqlite-pool-size"`
}

type Redis struct {
	Endpoint string `toml:"endpoint"`
}

type SQS struct {
	Endpoint   string `toml:"endpoint"`
	PurgeQueue string `toml:"purge-queue"`
}

type Auth struct {
	// JWTSecret is base64 encoded.
	JWTSecret string `toml:"jwt-secret"`
	TokenTTL  string `toml:"token-ttl"`
}

func defaults() Config {
	return Config{
		HostPort: "8080",
		Store: Store{
			Backend:       BackendDynamo,
			DynamoDBTable: "Flashlist",
			SQLitePath:    "flashlist.db",
		},
		SQS: SQS{
			PurgeQueue: "PurgeUserItemsQueue",
		},
		Auth: Auth{
			TokenTTL: "168h",
		},
	}
}

// Load reads path (skipped when empty or missing), then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err == nil {
			if _, err := toml.Decode(string(data), &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := getenv("DEV_MODE"); v != "" {
		cfg.DevMode = v == "true"
	}
	setString(&cfg.HostPort, "HOST_PORT")
	setString(&cfg.CORSOrigin, "CORS_ORIGIN")
	setString(&cfg.Store.Backend, "STORE_BACKEND")
	setString(&cfg.Store.DynamoDBEndpoint, "DYNAMODB_ENDPOINT")
	setString(&cfg.Store.SQLitePath, "SQLITE_PATH")
	setString(&cfg.Redis.Endpoint, "REDIS_ENDPOINT")
	setString(&cfg.SQS.Endpoint, "SQS_ENDPOINT")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.TokenTTL, "TOKEN_TTL")
	if v := getenv("SQLITE_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.SQLitePoolSize = n
		}
	}
}

func (cfg *Config) Validate() error {
	switch cfg.Store.Backend {
	case BackendDynamo, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if _, err := cfg.Secret(); err != nil {
		return err
	}
	if _, err := cfg.TokenTTL(); err != nil {
		return err
	}
	return nil
}

// Secret decodes the JWT signing secret.
func (cfg *Config) Secret() ([]byte, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("jwt secret is not set")
	}
	secret, err := base64.StdEncoding.DecodeString(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("decode base64 jwt secret: %w", err)
	}
	return secret, nil
}

func (cfg *Config) TokenTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(cfg.Auth.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("parse token ttl: %w", err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return ttl, nil
}
