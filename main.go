package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/zlnvch/flashlist/api"
	"github.com/zlnvch/flashlist/cache/redis"
	"github.com/zlnvch/flashlist/config"
	"github.com/zlnvch/flashlist/mq/sqsmq"
	"github.com/zlnvch/flashlist/store"
	"github.com/zlnvch/flashlist/store/dynamo"
	"github.com/zlnvch/flashlist/store/sqlitedb"
)

func main() {
	configPath := pflag.String("config", os.Getenv("FLASHLIST_CONFIG"), "path to a TOML config file")
	addr := pflag.String("addr", "", "listen address, overrides HOST_PORT")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	var outlineStore store.OutlineStore
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		sqliteStore, err := sqlitedb.NewSQLiteOutlineStore(cfg.Store.SQLitePath, cfg.Store.SQLitePoolSize)
		if err != nil {
			log.Fatalf("Failed to open sqlite store: %v", err)
		}
		defer sqliteStore.Close()
		outlineStore = sqliteStore
	default:
		outlineStore, err = dynamo.NewDynamoOutlineStore(ctx, cfg.DevMode, cfg.Store.DynamoDBEndpoint, cfg.Store.DynamoDBTable)
		if err != nil {
			log.Fatalf("Failed to create dynamodb store: %v", err)
		}
	}

	purgeQueue, err := sqsmq.NewSQSMessageQueue(ctx, cfg.DevMode, cfg.SQS.Endpoint, cfg.SQS.PurgeQueue)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	outlineCache, err := redis.NewRedisOutlineCache(ctx, cfg.DevMode, cfg.Redis.Endpoint)
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	jwtSecret, _ := cfg.Secret()
	tokenTTL, _ := cfg.TokenTTL()

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	flashlistAPI, err := api.NewFlashlistAPI(outlineStore, purgeQueue, outlineCache, jwtSecret, tokenTTL, shutdownCtx)
	if err != nil {
		log.Fatalf("Failed to create flashlist api: %v", err)
	}

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = ":" + cfg.HostPort
	}
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           flashlistAPI.Handler(cfg.CORSOrigin),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-shutdownCtx.Done()
	log.Printf("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	flashlistAPI.Wait(ctx)
}
