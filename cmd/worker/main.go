// Worker consumes metering payloads from Kafka and runs them through the dispatcher into the
// configured storage. Set KAFKA_BROKERS, METERING_KAFKA_TOPIC, KAFKA_GROUP_ID and METERING_SECRET.
// A "kind: events" header routes a message to the events path; everything else is samples.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metering-collector/internal/collector"
	"metering-collector/internal/config"
	"metering-collector/internal/logger"
	"metering-collector/internal/metering/consumer"
	"metering-collector/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}

	reader, err := consumer.NewReader(brokers, cfg.MeteringKafkaTopic, cfg.KafkaGroupID)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := collector.New(ctx, cfg, zl)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming from %s (group %s), storage %s", cfg.MeteringKafkaTopic, cfg.KafkaGroupID, cfg.StorageDriver)
	if err := consumer.New(reader, c.Dispatcher, zl).Run(ctx); err != nil {
		log.Printf("worker: %v", err)
	}

	time.Sleep(telemetry.ShutdownDrainDuration)
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := c.Close(closeCtx); err != nil {
		log.Printf("worker: shutdown: %v", err)
	}
	log.Println("worker: stopped")
}
