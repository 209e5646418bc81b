package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	persistencepkg "github.com/croplogic/irrigo/internal/services/persistence"
	"github.com/croplogic/irrigo/pkg/rabbitmq"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- MQTT (RabbitMQ/MQTT) ---
	mqCfg := &rabbitmq.RabbitMQConfig{
		Host:     env("RABBITMQ_HOST", "localhost"),
		Port:     envInt("RABBITMQ_PORT", 1883),
		User:     env("RABBITMQ_USER", "mqtt_user"),
		Password: env("RABBITMQ_PASSWORD", "mqtt_pwd"),
		ClientID: env("MQTT_CLIENT_ID", "persistence-service"),
		Exchange: env("RABBITMQ_EXCHANGE", "amq.topic"),
	}
	mqClient, err := rabbitmq.NewRabbitMQConn(mqCfg, ctx)
	if err != nil {
		log.Fatalf("mqtt connect failed: %v", err)
	}
	defer rabbitmq.CloseRabbitMQConn(mqClient)

	obsTopic := env("AGGREGATED_SUB_TOPIC", "sensor/aggregated/#")
	balTopic := env("BALANCE_SUB_TOPIC", "event/waterBalance/#")
	// gli handler vengono agganciati da NewService
	obsConsumer := rabbitmq.NewConsumer(mqClient, obsTopic, nil)
	balConsumer := rabbitmq.NewConsumer(mqClient, balTopic, nil)

	// --- InfluxDB ---
	influxCfg := persistencepkg.InfluxConfig{
		InfluxURL:    env("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  env("INFLUX_TOKEN", ""),
		InfluxOrg:    env("INFLUX_ORG", "croplogic"),
		InfluxBucket: env("INFLUX_BUCKET", "telemetry"),
	}

	// Service: consumer MQTT -> scrive su Influx e mantiene cache
	svc, err := persistencepkg.NewService(obsConsumer, balConsumer, influxCfg)
	if err != nil {
		log.Fatalf("persistence init failed: %v", err)
	}

	// --- HTTP mux ---
	// ATTENZIONE: /healthz è già registrato dentro NewHTTPMux(svc)
	mux := persistencepkg.NewHTTPMux(svc)

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ready": true})
	})

	httpPort := env("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("persistence HTTP listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// Avvia il consumo MQTT (e quindi scritture Influx)
	go svc.Start(ctx)

	<-ctx.Done()
	stop()

	// Graceful shutdown HTTP
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("persistence: shutdown complete")
}
