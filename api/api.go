package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/zlnvch/flashlist/api/rest"
	"github.com/zlnvch/flashlist/api/ws"
	"github.com/zlnvch/flashlist/cache"
	"github.com/zlnvch/flashlist/mq"
	"github.com/zlnvch/flashlist/service"
	"github.com/zlnvch/flashlist/store"
	"github.com/zlnvch/flashlist/worker"
)

// Last-active timestamps are written at most once a minute per user
const activityFlushMilliseconds = 60000

type FlashlistAPI struct {
	Service         *service.Service
	activityBatcher *worker.ActivityBatcher
	restHandler     *rest.Handler
	wsHandler       *ws.Handler
	shutdownCtx     context.Context
}

func NewFlashlistAPI(
	outlineStore store.OutlineStore,
	purgeQueue mq.MessageQueue,
	outlineCache cache.OutlineCache,
	jwtSecret []byte,
	tokenTTL time.Duration,
	shutdownCtx context.Context,
) (*FlashlistAPI, error) {
	wsHub := ws.NewHub(outlineCache)
	err := wsHub.InitSubscriptions(shutdownCtx)
	if err != nil {
		log.Printf("Failed to start WS Hub subscriptions service: %v", err)
		return &FlashlistAPI{}, err
	}
	go wsHub.Run(shutdownCtx)

	activityBatcher := worker.NewActivityBatcher(outlineStore, activityFlushMilliseconds)
	go activityBatcher.Run(shutdownCtx)

	mqConsumer := worker.NewMQConsumer(purgeQueue, outlineStore, outlineCache)
	go mqConsumer.Run(shutdownCtx)

	svc, err := service.NewService(
		outlineStore,
		outlineCache,
		purgeQueue,
		activityBatcher,
		jwtSecret,
		tokenTTL,
	)
	if err != nil {
		log.Printf("Failed to create service: %v", err)
		return &FlashlistAPI{}, err
	}

	return &FlashlistAPI{
		Service:         svc,
		activityBatcher: activityBatcher,
		restHandler:     rest.NewHandler(svc),
		wsHandler:       ws.NewHandler(svc, wsHub),
		shutdownCtx:     shutdownCtx,
	}, nil
}

func (flashlistAPI *FlashlistAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	h := flashlistAPI.restHandler
	mux.HandleFunc("POST /api/v1/auth/register", h.HandleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", h.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", h.HandleLogout)
	mux.HandleFunc("GET /api/v1/auth/profile", h.HandleProfile)
	mux.HandleFunc("DELETE /api/v1/auth/profile", h.HandleDeleteProfile)

	mux.HandleFunc("GET /api/v1/items", h.HandleListItems)
	mux.HandleFunc("POST /api/v1/items", h.HandleCreateItem)
	mux.HandleFunc("PUT /api/v1/items/reorder", h.HandleReorderItems)
	mux.HandleFunc("PATCH /api/v1/items/{id}", h.HandleUpdateItem)
	mux.HandleFunc("DELETE /api/v1/items/{id}", h.HandleDeleteItem)

	wsUpgrader := flashlistAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("GET /api/v1/ws", func(w http.ResponseWriter, r *http.Request) {
		flashlistAPI.wsHandler.ServeWS(wsUpgrader, w, r, flashlistAPI.shutdownCtx)
	})
}

// Handler returns the routes wrapped with CORS for requiredOrigin.
func (flashlistAPI *FlashlistAPI) Handler(requiredOrigin string) http.Handler {
	mux := http.NewServeMux()
	flashlistAPI.RegisterRoutes(mux, requiredOrigin)
	return rest.WithCORS(requiredOrigin, mux)
}

// Wait blocks until the workers have flushed after shutdown, or ctx ends.
func (flashlistAPI *FlashlistAPI) Wait(ctx context.Context) {
	select {
	case <-flashlistAPI.activityBatcher.Done():
	case <-ctx.Done():
		log.Printf("Gave up waiting for activity flush: %v", ctx.Err())
	}
}
