package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adiwijaya/go-cart-orders/internal/cart"
	"github.com/adiwijaya/go-cart-orders/internal/config"
	"github.com/adiwijaya/go-cart-orders/internal/httpx"
	kafkax "github.com/adiwijaya/go-cart-orders/internal/kafka"
	"github.com/adiwijaya/go-cart-orders/internal/logx"
	"github.com/adiwijaya/go-cart-orders/internal/postgres"
	"github.com/adiwijaya/go-cart-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logx.New(cfg.ServiceName, cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store: Postgres when a DSN is configured, otherwise the in-memory
	// store seeded with the demo catalog.
	var store cart.Store
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, 8)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		store = &cart.Repo{DB: db}
	} else {
		mem := cart.NewMemoryStore()
		u, _ := mem.SeedDemo()
		logger.Info("running on in-memory store", "demo_user_id", u.ID)
		store = mem
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.Warn("redis unreachable, outcome cache disabled", "err", err)
		rdb = nil
	}

	// Kafka producers: processed & failed (two topics)
	pOK := kafkax.NewProducer(cfg.KafkaBrokers, cart.TopicCartProcessed, 1024, logger)
	pOK.Start(ctx)
	pRJ := kafkax.NewProducer(cfg.KafkaBrokers, cart.TopicCartProcessFailed, 1024, logger)
	pRJ.Start(ctx)

	// Core
	locks := cart.NewLockRegistry()
	svc := cart.NewService(store, locks, logger)

	proc := cart.NewProcessor(store, locks, cfg.ProcessWorkers, cfg.ProcessBuffer, logger)
	proc.Redis = rdb
	proc.ProducerOK = pOK
	proc.ProducerErr = pRJ
	proc.ServiceName = cfg.ServiceName
	proc.SettleDelay = cfg.SettleDelay
	proc.Start(ctx)

	// HTTP
	router := httpx.NewRouter()
	ch := &httpx.CartsHandler{Service: svc, Processor: proc, Redis: rdb}
	ch.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	proc.Close() // stop intake, drain in-flight carts
	proc.WaitClosed()
	pOK.Close() // flush producers after the last event is queued
	pRJ.Close()
	cancel()
	pOK.WaitClosed()
	pRJ.WaitClosed()
}
