package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/croplogic/irrigo/internal/services/aggregator"
	"github.com/croplogic/irrigo/pkg/rabbitmq"
)

func env(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	cfg := &rabbitmq.RabbitMQConfig{
		Host:     env("RABBITMQ_HOST", "localhost"),
		Port:     envInt("RABBITMQ_PORT", 1883),
		User:     env("RABBITMQ_USER", "guest"),
		Password: env("RABBITMQ_PASSWORD", "guest"),
		ClientID: env("RABBITMQ_CLIENTID", "data-aggregator"),
		Exchange: env("RABBITMQ_EXCHANGE", "amq.topic"),
		Kind:     "topic",
	}

	interval := time.Duration(envInt("AGGREGATION_INTERVAL_SEC", 60)) * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := rabbitmq.NewRabbitMQConn(cfg, ctx)
	if err != nil {
		log.Fatalf("Failed to connect to MQTT broker: %v", err)
	}

	publisher := rabbitmq.NewPublisher(client, "sensor/aggregated", cfg.Exchange)
	consumer := rabbitmq.NewConsumer(client, env("SENSOR_DATA_SUB_TOPIC", "sensor/data/#"), nil)

	svc := aggregator.NewDataAggregatorService(consumer, publisher, interval)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
		<-sigc
		cancel()
	}()

	log.Printf("Data Aggregator running: window=%s sub=%s", interval, env("SENSOR_DATA_SUB_TOPIC", "sensor/data/#"))
	svc.Start(ctx)
}
