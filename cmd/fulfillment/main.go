package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/adiwijaya/go-cart-orders/internal/cart"
	"github.com/adiwijaya/go-cart-orders/internal/config"
	"github.com/adiwijaya/go-cart-orders/internal/fulfillment"
	kafkax "github.com/adiwijaya/go-cart-orders/internal/kafka"
	"github.com/adiwijaya/go-cart-orders/internal/logx"
	"github.com/adiwijaya/go-cart-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logx.New(cfg.ServiceName+"-fulfillment", cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Fatalf("redis: %v", err)
	}

	svc := &fulfillment.Service{
		Redis:       rdb,
		Log:         logger,
		ServiceName: cfg.ServiceName + "-fulfillment",
	}

	group := getenv("FULFILLMENT_GROUP", "fulfillment-svc")
	workers := mustAtoi(os.Getenv("FULFILLMENT_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, cart.TopicCartProcessed, workers, logger)

	go func() {
		logger.Info("fulfillment consumer started",
			"group", group, "topic", cart.TopicCartProcessed, "workers", workers)
		if err := cons.Start(ctx, svc.HandleCartProcessed); err != nil {
			logger.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
