package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/broker"
	"github.com/xela07ax/wallet-gate/internal/decision"
	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/executor"
	"github.com/xela07ax/wallet-gate/internal/gateway"
	"github.com/xela07ax/wallet-gate/internal/history"
	"github.com/xela07ax/wallet-gate/internal/infra"
	"github.com/xela07ax/wallet-gate/internal/permission"
	"github.com/xela07ax/wallet-gate/internal/repository/postgres"
	"github.com/xela07ax/wallet-gate/internal/request"
	"github.com/xela07ax/wallet-gate/internal/signer"
	"github.com/xela07ax/wallet-gate/internal/surface"
	"github.com/xela07ax/wallet-gate/internal/wallet"
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

	// Контекст для управления жизненным циклом фоновых горутин
	// При SIGTERM cancel() остановит слушателей Pub/Sub
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pgRepo, err := postgres.NewRepo(appCtx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to init postgres", zap.Error(err))
	}
	defer pgRepo.Close()
	// Проверяем соединение с таймаутом
	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := pgRepo.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	// 3. Хранилища записей
	grants := permission.NewRedisStore(rdb, infra.RedisKeyPermGrants)
	permReqs := request.NewRedisStore(rdb, infra.RedisKeyPermReqs, domain.KindPermission)
	txReqs := request.NewRedisStore(rdb, infra.RedisKeyTxReqs, domain.KindTransaction)
	signReqs := request.NewRedisStore(rdb, infra.RedisKeySignReqs, domain.KindSignMessage)
	evaluator := permission.NewEvaluator(grants)

	ctxStore := wallet.NewContextStore(rdb)
	walletSvc := wallet.NewService(ctxStore, pgRepo, logger)

	// 4. Каналы решений и окна одобрения
	bus := decision.NewBus(logger)
	bridge := decision.NewBridge(rdb, bus, logger)
	go bridge.Listen(appCtx)

	surfaces := surface.NewController(rdb, cfg.Surface.BaseURL, logger)
	go surfaces.Listen(appCtx)

	// 5. Execution Layer (Исполнение + Надежность)
	var node executor.Provider
	if os.Getenv("NODE_MOCK") == "1" {
		logger.Warn("using mock execution node")
		node = &executor.MockNode{}
	} else {
		node = executor.NewNodeClient(logger)
	}
	safeExecutor := executor.NewReliabilityWrapper(node, cfg.Executor)

	// 6. История транзакций (фоновая пакетная запись)
	histWriter := history.NewWriter(pgRepo, cfg.History, logger)
	histWriter.Start()

	// Метрики
	reg := prometheus.NewRegistry()
	metrics := broker.NewMetrics(reg)

	// Экспортируем метрики для Prometheus
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.MetricsPort)
		logger.Info("metrics endpoint started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// 7. Сборка ядра
	core := broker.New(
		evaluator,
		grants,
		permReqs, txReqs, signReqs,
		bus,
		surfaces,
		walletSvc,
		safeExecutor,
		signer.NewDerivedSigner(),
		histWriter,
		logger,
		metrics,
	)

	// 8. HTTP Server
	srv := &http.Server{
		Addr:         cfg.Gateway.Addr(),
		Handler:      gateway.NewServer(core, logger),
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("wallet gateway started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("wallet gateway stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Открытые гонки завершаются fallback-ом, буфер истории дописывается
	cancel()
	bus.Close()
	histWriter.Stop()
	logger.Info("wallet gateway exited properly")
}
