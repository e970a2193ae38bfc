// Package main wires the support chat server: durable store, session and
// presence caches, core services, realtime gateway and REST surface.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	goredis "github.com/redis/go-redis/v9"

	kafkaevents "support-chat/internal/adapters/events"
	"support-chat/internal/adapters/handler"
	"support-chat/internal/adapters/repository"
	ws "support-chat/internal/adapters/websocket"
	"support-chat/internal/config"
	"support-chat/internal/core/events"
	"support-chat/internal/core/ports"
	"support-chat/internal/core/services"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectMySQL(cfg.DB, 5, 2*time.Second)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := repository.NewMySQLRepository(db)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// Redis is optional: without it the session store and presence cache run
	// in process, which is fine for a single node.
	var sessions ports.SessionStore
	var presence ports.PresenceCache
	if cfg.Redis.Addr != "" {
		rdb, err := connectRedis(ctx, cfg.Redis, 5, 2*time.Second)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		sessions = repository.NewRedisSessionStore(rdb)
		presence = repository.NewRedisPresenceCache(rdb)
		slog.Info("using redis-backed session and presence stores", "addr", cfg.Redis.Addr)
	} else {
		sessions = repository.NewMemorySessionStore()
		presence = repository.NewMemoryPresenceCache()
		slog.Info("using in-memory session and presence stores")
	}

	bus := events.NewBus()

	authService := services.NewAuthService(store, sessions, presence, bus, cfg.App.SessionTTL)
	roomService := services.NewChatRoomService(store, store, presence, bus)
	messageService := services.NewMessageService(store, store, bus)
	monitor := services.NewMonitor(sessions, cfg.App.SweepInterval)

	gateway := ws.NewGateway(authService, roomService, messageService, presence, bus)
	go gateway.Run(ctx)
	go monitor.Run(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		relay, err := kafkaevents.NewKafkaRelay(cfg.Kafka.Brokers, cfg.Kafka.Topic, bus)
		if err != nil {
			slog.Error("failed to start kafka relay", "error", err)
			os.Exit(1)
		}
		defer relay.Close()
		go relay.Run(ctx)
	}

	router := handler.NewRouter(handler.RouterDeps{
		Auth:        authService,
		AuthHandler: handler.NewAuthHandler(authService, roomService),
		ChatHandler: handler.NewChatHandler(roomService, messageService),
		Monitor:     monitor,
		ServeWS:     gateway.ServeWS,
		CORSOrigins: cfg.App.CORSOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	bus.Close()
}

// connectMySQL opens the database with retry. Containers may still be
// initializing when the server starts.
func connectMySQL(cfg config.DBConfig, maxRetries int, retryDelay time.Duration) (*sql.DB, error) {
	dsn := cfg.DSN()

	var db *sql.DB
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = sql.Open("mysql", dsn)
		if err == nil {
			if err = db.Ping(); err == nil {
				db.SetMaxOpenConns(25)
				db.SetMaxIdleConns(10)
				db.SetConnMaxLifetime(5 * time.Minute)
				return db, nil
			}
			db.Close()
		}
		slog.Warn("database not ready, retrying",
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxRetries, err)
}

// connectRedis opens the redis client with retry.
func connectRedis(ctx context.Context, cfg config.RedisConfig, maxRetries int, retryDelay time.Duration) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		slog.Warn("redis not ready, retrying",
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)
		time.Sleep(retryDelay)
	}
	client.Close()
	return nil, fmt.Errorf("redis unreachable after %d attempts: %w", maxRetries, err)
}
