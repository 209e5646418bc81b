package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/croplogic/irrigo/internal/model/entities"
	sensorSimulator "github.com/croplogic/irrigo/internal/sensor-simulator"
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
	// identità e comportamento del probe via flag, broker via ENV
	sensorID := flag.String("sensor-id", "s1", "unique sensor identifier")
	fieldID := flag.String("field-id", "field1", "unique field identifier")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	lat := flag.Float64("lat", 41.51109, "latitude")
	lon := flag.Float64("lon", 12.37007, "longitude")
	depthCm := flag.Int("depth", 30, "probe depth [cm]")
	halfLife := flag.Duration("half-life", 2*time.Hour, "moisture decay half-life with the valve off")
	degradedProb := flag.Float64("degraded-prob", 0.0, "probability of a degraded (defaulted) reading per tick")
	pwpPct := flag.Float64("pwp-pct", 0, "probe calibration: wilting point [%]")
	fcPct := flag.Float64("fc-pct", 0, "probe calibration: field capacity [%]")
	satPct := flag.Float64("sat-pct", 0, "probe calibration: saturation [%]")
	flag.Parse()

	cfg := &rabbitmq.RabbitMQConfig{
		Host:     env("RABBITMQ_HOST", "localhost"),
		Port:     envInt("RABBITMQ_PORT", 1883),
		User:     env("RABBITMQ_USER", "guest"),
		Password: env("RABBITMQ_PASSWORD", "guest"),
		ClientID: env("RABBITMQ_CLIENTID", "sensor-"+*fieldID+"-"+*sensorID),
		Exchange: env("RABBITMQ_EXCHANGE", "amq.topic"),
		Kind:     "topic",
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := rabbitmq.NewRabbitMQConn(cfg, ctx)
	if err != nil {
		log.Fatal(err)
	}

	publisher := rabbitmq.NewPublisher(client, "sensor/data", cfg.Exchange)
	consumer := rabbitmq.NewConsumer(client, env("STATECHANGE_SUB_TOPIC", "event/StateChange/#"), nil)

	decayPerMin := math.Log(2) / halfLife.Minutes()
	generator := sensorSimulator.NewDataGenerator(decayPerMin, *degradedProb, sensorSimulator.Calibration{
		PWPPct: *pwpPct,
		FCPct:  *fcPct,
		SatPct: *satPct,
	})

	sensor := entities.Sensor{
		FieldID:   *fieldID,
		ID:        *sensorID,
		Longitude: *lon,
		Latitude:  *lat,
		DepthCm:   *depthCm,
		State:     entities.StateOff,
	}
	generator.SeedFromSoilGrids(ctx, &sensor)

	sim := sensorSimulator.NewSensorSimulator(consumer, publisher, generator, &sensor)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
		<-sigc
		cancel()
	}()

	log.Printf("SensorSimulator running: %s/%s every %s (degraded prob %.2f)", *fieldID, *sensorID, *interval, *degradedProb)
	sim.Start(ctx, *interval)
}
