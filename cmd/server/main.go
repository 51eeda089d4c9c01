package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/rl1809/factory-orders/internal/adapter/handler"
	"github.com/rl1809/factory-orders/internal/adapter/storage"
	"github.com/rl1809/factory-orders/internal/adapter/token"
	"github.com/rl1809/factory-orders/internal/config"
	"github.com/rl1809/factory-orders/internal/core/service"
	"github.com/rl1809/factory-orders/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := storage.OpenMySQL(ctx, cfg.MySQL.DSN, storage.PoolConfig{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to mysql")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if cfg.AutoMigrate {
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			return err
		}
		logger.Info("schema ensured")
	}

	checks := map[string]handler.Pinger{"mysql": mysqlAdapter}

	// Initialize Redis when configured
	var cache port.CacheRepository
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()

		redisAdapter := storage.NewRedisAdapter(rdb)
		if err := redisAdapter.Ping(ctx); err != nil {
			return err
		}
		cache = redisAdapter
		checks["redis"] = redisAdapter
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	} else {
		logger.Warn("REDIS_ADDR not set, idempotency keys and order number reservation disabled")
	}

	// Initialize services
	tokens := token.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	authService := service.NewAuthService(mysqlAdapter, tokens, logger)
	inventoryService := service.NewInventoryService(mysqlAdapter, logger)
	orderService := service.NewOrderService(mysqlAdapter, cache, service.OrderServiceConfig{
		DefaultTaxRate:    decimal.NewNullDecimal(cfg.Order.DefaultTaxRate),
		IdempotencyTTL:    cfg.Order.IdempotencyTTL,
		OrderNumberPrefix: cfg.Order.NumberPrefix,
	}, logger)

	if cfg.Owner.Email != "" && cfg.Owner.Password != "" {
		if _, err := authService.EnsureOwner(ctx, cfg.Owner.Email, cfg.Owner.Password, cfg.Owner.Name); err != nil {
			return err
		}
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.AuthInterceptor(authService, logger)))
	handler.RegisterOrderServer(grpcServer, handler.NewGRPCHandler(orderService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orderService, inventoryService, authService, checks, logger)
	router := handler.NewRouter(httpHandler, handler.RouterConfig{
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
	}, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")
	return nil
}
