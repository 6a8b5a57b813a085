package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/console/handler"
	"github.com/xela07ax/wallet-gate/internal/console/server"
	"github.com/xela07ax/wallet-gate/internal/console/service"
	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/infra"
	"github.com/xela07ax/wallet-gate/internal/infra/auth"
	"github.com/xela07ax/wallet-gate/internal/permission"
	"github.com/xela07ax/wallet-gate/internal/repository/postgres"
	"github.com/xela07ax/wallet-gate/internal/request"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. Ключи RS256: приватный — подпись токенов, публичный — проверка
	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to parse private key", zap.Error(err))
	}
	publicKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse public key", zap.Error(err))
	}

	// 3. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	pgRepo, err := postgres.NewRepo(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to init postgres", zap.Error(err))
	}
	defer pgRepo.Close()
	if err := pgRepo.Ping(ctx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	cancel()

	// Консоль читает те же хранилища запросов, что и шлюз
	grants := permission.NewRedisStore(rdb, infra.RedisKeyPermGrants)
	permReqs := request.NewRedisStore(rdb, infra.RedisKeyPermReqs, domain.KindPermission)
	txReqs := request.NewRedisStore(rdb, infra.RedisKeyTxReqs, domain.KindTransaction)
	signReqs := request.NewRedisStore(rdb, infra.RedisKeySignReqs, domain.KindSignMessage)

	// 4. Инициализация слоев (Dependency Injection)
	authService := service.NewAuthService(pgRepo, privateKey, publicKey, cfg.Auth.TokenTTL)
	approvalService := service.NewApprovalService(permReqs, txReqs, signReqs, rdb, logger)
	grantService := service.NewGrantService(grants, logger)

	consoleSrv := server.NewConsoleServer(
		cfg,
		logger,
		authService,
		handler.NewAuthHandler(authService),
		handler.NewApprovalHandler(approvalService),
		handler.NewGrantHandler(grantService),
		handler.NewHistoryHandler(pgRepo),
		handler.NewNetworkHandler(pgRepo),
	)

	// 5. Запуск сервера
	srv := &http.Server{
		Addr:         cfg.Console.Addr(),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Console.ReadTimeout,
		WriteTimeout: cfg.Console.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("console API stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("console API exited properly")
}
