package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/flashlist/config"
)

// secret is base64 of "test-secret"
const secret = "dGVzdC1zZWNyZXQ="

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DEV_MODE", "HOST_PORT", "CORS_ORIGIN", "STORE_BACKEND", "DYNAMODB_ENDPOINT",
		"SQLITE_PATH", "SQLITE_POOL_SIZE", "REDIS_ENDPOINT", "SQS_ENDPOINT", "JWT_SECRET", "TOKEN_TTL",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "flashlist.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", secret)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.False(t, cfg.DevMode)
	assert.Equal(t, "8080", cfg.HostPort)
	assert.Equal(t, config.BackendDynamo, cfg.Store.Backend)
	assert.Equal(t, "Flashlist", cfg.Store.DynamoDBTable)
	assert.Equal(t, "PurgeUserItemsQueue", cfg.SQS.PurgeQueue)

	ttl, err := cfg.TokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, ttl)

	s, err := cfg.Secret()
	require.NoError(t, err)
	assert.Equal(t, []byte("test-secret"), s)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", secret)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HostPort)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
dev-mode = true
host-port = "9090"
cors-origin = "https://flashlist.example"

[store]
backend = "sqlite"
sqlite-path = "/tmp/fl.db"
sqlite-pool-size = 2

[auth]
jwt-secret = "`+secret+`"
token-ttl = "24h"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.DevMode)
	assert.Equal(t, "9090", cfg.HostPort)
	assert.Equal(t, "https://flashlist.example", cfg.CORSOrigin)
	assert.Equal(t, config.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/fl.db", cfg.Store.SQLitePath)
	assert.Equal(t, 2, cfg.Store.SQLitePoolSize)

	ttl, err := cfg.TokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
host-port = "9090"

[store]
backend = "sqlite"

[auth]
jwt-secret = "`+secret+`"
`)
	t.Setenv("HOST_PORT", "7070")
	t.Setenv("STORE_BACKEND", "dynamo")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("REDIS_ENDPOINT", "localhost:6379")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.HostPort)
	assert.Equal(t, config.BackendDynamo, cfg.Store.Backend)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Endpoint)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "missing secret", content: ``},
		{name: "secret not base64", env: map[string]string{"JWT_SECRET": "%%%"}},
		{name: "unknown backend", env: map[string]string{"JWT_SECRET": secret, "STORE_BACKEND": "postgres"}},
		{name: "bad ttl", env: map[string]string{"JWT_SECRET": secret, "TOKEN_TTL": "soon"}},
		{name: "negative ttl", env: map[string]string{"JWT_SECRET": secret, "TOKEN_TTL": "-1h"}},
		{name: "bad toml", content: `host-port = `, env: map[string]string{"JWT_SECRET": secret}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.content != "" {
				path = writeConfig(t, tt.content)
			}

			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}
