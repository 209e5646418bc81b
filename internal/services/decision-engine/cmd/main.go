package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	engine "github.com/croplogic/irrigo/internal/services/decision-engine"
	"github.com/croplogic/irrigo/internal/store"
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
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MQTT
	host := env("RABBITMQ_HOST", "localhost")
	port := envInt("RABBITMQ_PORT", 1883)
	user := env("RABBITMQ_USER", "guest")
	pass := env("RABBITMQ_PASSWORD", "guest")
	clientID := fmt.Sprintf("DecisionEngine-%s", env("HOSTNAME", "local"))

	cfg := &rabbitmq.RabbitMQConfig{Host: host, Port: port, User: user, Password: pass, ClientID: clientID, Kind: "topic"}
	mqClient, err := rabbitmq.NewRabbitMQConn(cfg, ctx)
	if err != nil {
		log.Fatalf("MQTT connect failed: %v", err)
	}

	// Stato su SQLite
	dbPath := env("STATE_DB_PATH", "/app/data/irrigo.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("open state db: %v", err)
	}
	defer db.Close()
	db.Exec("PRAGMA journal_mode=WAL")
	if err := store.Migrate(db); err != nil {
		log.Fatalf("migrate state db: %v", err)
	}
	st := store.New(db)

	// Campi e policy
	fieldsPath := env("FIELDS_CONFIG_PATH", "/app/config/fields-config.json")
	fields, policy, err := engine.LoadFieldsConfig(fieldsPath)
	if err != nil {
		log.Fatalf("fields config: %v", err)
	}

	// OpenWeather client
	wc := engine.NewOWMClient(env("OWM_API_KEY", "changeme"))

	// Device routing: field -> deviceService endpoint
	mapStr := env("DEVICE_GRPC_ADDR_MAP", "field1=device-node1:50051,field2=device-node2:50051")
	router, err := engine.NewDeviceRouter(mapStr)
	if err != nil {
		log.Fatalf("device router init: %v", err)
	}
	defer router.Close()

	cache := engine.NewObservationCache()
	eng, err := engine.NewEngine(st, wc, cache, fields, policy)
	if err != nil {
		log.Fatalf("engine init: %v", err)
	}

	aggregatedSub := env("AGGREGATED_SUB_TOPIC", "sensor/aggregated/#")
	resultSub := env("IRRIGATION_RESULT_SUB", "event/irrigationResult/#")
	obsConsumer := rabbitmq.NewConsumer(mqClient, aggregatedSub, nil)
	resConsumer := rabbitmq.NewConsumer(mqClient, resultSub, nil)
	publisher := rabbitmq.NewPublisher(mqClient, "event/irrigationDecision", "amq.topic")

	ctrl, err := engine.NewController(eng, st, obsConsumer, resConsumer, publisher, router, cache)
	if err != nil {
		log.Fatalf("controller init: %v", err)
	}

	// HTTP: decisioni manuali, letture, health, metrics
	httpAddr := env("HTTP_ADDR", ":8083")
	srv := &http.Server{Addr: httpAddr, Handler: engine.NewHTTPMux(ctrl, mqClient)}
	go func() {
		log.Printf("DecisionEngine http listening on %s", httpAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	log.Printf("DecisionEngine running. fields=%d sub=%s resultSub=%s routes=%s db=%s",
		len(fields), aggregatedSub, resultSub, mapStr, dbPath)
	go ctrl.Start(ctx)

	// graceful shutdown
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	<-sigc
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
}
