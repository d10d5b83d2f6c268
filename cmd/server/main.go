package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/Carlos-Arce04/diseno-store/internal/adapter/catalog"
	"github.com/Carlos-Arce04/diseno-store/internal/adapter/handler"
	"github.com/Carlos-Arce04/diseno-store/internal/adapter/storage"
	"github.com/Carlos-Arce04/diseno-store/internal/config"
	"github.com/Carlos-Arce04/diseno-store/internal/core/service"
	"github.com/Carlos-Arce04/diseno-store/internal/platform/logger"
	"github.com/Carlos-Arce04/diseno-store/internal/port"
)

// store bundles the two store ports every backend implements.
type store interface {
	port.StockStore
	port.CartStore
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	zlog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	st, closeStore, err := buildStore(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("store backend unavailable", "backend", cfg.StoreBackend, "error", err)
	}
	defer closeStore()

	cat, closeCatalog, err := buildCatalog(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("catalog backend unavailable", "backend", cfg.CatalogBackend, "error", err)
	}
	defer closeCatalog()

	stockService := service.NewStockService(st, zlog)
	sessions := service.NewSessionManager(func() *service.CartSession {
		return service.NewCartSession(stockService, st, cat, zlog)
	})
	defer sessions.Close()

	httpHandler := handler.NewHTTPHandler(sessions, stockService, cat, zlog)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/session/guest", httpHandler.GuestSession)
	mux.HandleFunc("/api/session/logout", httpHandler.Logout)
	mux.HandleFunc("/api/cart", httpHandler.Cart)
	mux.HandleFunc("/api/cart/items", httpHandler.CartItems)
	mux.HandleFunc("/api/cart/stream", httpHandler.StreamCart)
	mux.HandleFunc("/api/stock", httpHandler.Stock)
	mux.HandleFunc("/api/products", httpHandler.Products)
	mux.HandleFunc("/api/categories", httpHandler.Categories)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		zlog.Info("HTTP server listening", "addr", cfg.HTTPAddr,
			"store", cfg.StoreBackend, "catalog", cfg.CatalogBackend)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			zlog.Error("HTTP server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("HTTP shutdown incomplete", "error", err)
	}
	zlog.Info("HTTP server stopped")
}

func buildStore(ctx context.Context, cfg config.Config, zlog *logger.Logger) (store, func(), error) {
	switch cfg.StoreBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		zlog.Info("connected to redis", "addr", cfg.RedisAddr)
		return storage.NewRedisAdapter(rdb), func() { rdb.Close() }, nil

	case "memory":
		zlog.Warn("using in-memory store; carts and stock do not survive restarts")
		return storage.NewMemoryAdapter(), func() {}, nil

	default: // firestore
		client, err := storage.NewFirestoreClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentials)
		if err != nil {
			return nil, nil, err
		}
		zlog.Info("connected to firestore", "project", cfg.FirestoreProjectID)
		return storage.NewFirestoreAdapter(client), func() { client.Close() }, nil
	}
}

func buildCatalog(ctx context.Context, cfg config.Config, zlog *logger.Logger) (port.Catalog, func(), error) {
	switch cfg.CatalogBackend {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		zlog.Info("connected to mysql catalog")
		return catalog.NewMySQLCatalog(db), func() { db.Close() }, nil

	default: // http
		return catalog.NewHTTPCatalog(cfg.CatalogBaseURL), func() {}, nil
	}
}
