package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/travelbooking/config"
	"github.com/Domenick1991/travelbooking/internal/bootstrap"
	"github.com/Domenick1991/travelbooking/internal/email"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/logger"
	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDeps(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("init dependencies", zap.Error(err))
	}
	defer deps.Close()

	if cfg.Events.Transport == "kafka" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, zlog)
		defer consumer.Close()

		emailSender := email.NewSender(zlog)
		go func() {
			if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				return emailSender.HandleEnvelope(ctx, msg.Value)
			}); err != nil {
				zlog.Error("consumer stopped", zap.Error(err))
			}
		}()
	}

	sweepTicker := time.NewTicker(time.Duration(cfg.Worker.CompletionSweepMinutes) * time.Minute)
	defer sweepTicker.Stop()

	for {
		select {
		case <-sweepTicker.C:
			completed, err := deps.Bookings.CompleteEndedBookings(ctx, time.Now())
			if err != nil {
				zlog.Error("complete ended bookings", zap.Error(err))
				continue
			}
			if len(completed) > 0 {
				zlog.Info("completed ended bookings", zap.Int("count", len(completed)))
			}
		case <-ctx.Done():
			zlog.Info("shutting down worker")
			return
		}
	}
}
