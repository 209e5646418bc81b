package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	pb "github.com/croplogic/irrigo/grpc/gen/go/irrigation"
	"github.com/croplogic/irrigo/internal/model/entities"
	"github.com/croplogic/irrigo/internal/services/device"
	"github.com/croplogic/irrigo/pkg/rabbitmq"
)

func mustEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	if def != "" {
		return def
	}
	log.Fatalf("missing required env %s", k)
	return ""
}

func envSeconds(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// il file config è lo stesso del decision engine; qui servono solo gli id
// dei field e i sensori con portata e superficie
type sensorEntry struct {
	entities.Sensor
	FlowAlias float64 `json:"flow_lpm"`
}

type fieldEntry struct {
	ID      string        `json:"id"`
	Sensors []sensorEntry `json:"sensors"`
}

type fieldsFile struct {
	Fields []fieldEntry `json:"fields"`
}

func loadFields(path string) (map[string]entities.Field, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fieldsFile
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	fields := make(map[string]entities.Field, len(cfg.Fields))
	for _, fe := range cfg.Fields {
		fld := entities.Field{ID: fe.ID}
		for _, se := range fe.Sensors {
			sn := se.Sensor
			sn.FieldID = fe.ID
			if sn.FlowLpm == 0 && se.FlowAlias > 0 {
				sn.FlowLpm = se.FlowAlias
			}
			fld.Sensors = append(fld.Sensors, sn)
		}
		fields[fe.ID] = fld
	}
	return fields, nil
}

func main() {
	// ---- ENV ----
	host := mustEnv("RABBITMQ_HOST", "")
	portStr := mustEnv("RABBITMQ_PORT", "1883")
	user := mustEnv("RABBITMQ_USER", "")
	pass := mustEnv("RABBITMQ_PASSWORD", "")
	clientID := mustEnv("RABBITMQ_CLIENTID", "device-service")
	grpcPort := mustEnv("GRPC_PORT", "50051")
	fieldsPath := mustEnv("FIELDS_CONFIG_PATH", "/app/config/fields-config.json")
	exchange := mustEnv("RABBITMQ_EXCHANGE", "amq.topic")

	stateTmpl := mustEnv("EVENT_STATECHANGE_TEMPLATE", "event/StateChange/{field}/{sensor}")
	resultTmpl := mustEnv("EVENT_RESULT_TEMPLATE", "event/irrigationResult/{field}/{sensor}")
	sensorDataSub := mustEnv("SENSOR_DATA_SUB_TOPIC", "sensor/data/#")

	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		log.Fatalf("invalid RABBITMQ_PORT: %v", err)
	}

	fields, err := loadFields(fieldsPath)
	if err != nil {
		log.Fatalf("load fields config: %v", err)
	}

	// ---- MQTT (RabbitMQ con exchange "topic") ----
	rmqc := &rabbitmq.RabbitMQConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: pass,
		ClientID: clientID,
		Exchange: exchange,
		Kind:     "topic",
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := rabbitmq.NewRabbitMQConn(rmqc, ctx)
	if err != nil {
		log.Fatalf("MQTT connect error: %v", err)
	}

	publisher := rabbitmq.NewPublisher(client, "event/StateChange", rmqc.Exchange)
	svc := device.NewService(publisher, fields, stateTmpl, resultTmpl)
	svc.SetLiveness(envSeconds("LIVENESS_TTL_SEC", 60*time.Second), envSeconds("OFFLINE_GRACE_SEC", 5*time.Second))

	// heartbeat dai sensori del nodo
	heartbeat := rabbitmq.NewConsumer(client, sensorDataSub, svc.OnSensorData)
	go heartbeat.ConsumeMessage(ctx)

	// ---- gRPC server ----
	addr := ":" + grpcPort
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("listen %s: %v", addr, err)
	}
	grpcServer := grpc.NewServer()
	pb.RegisterDeviceServiceServer(grpcServer, device.NewGrpcHandler(svc))

	go func() {
		log.Printf("DeviceService gRPC %s; fields=%d; MQTT exchange '%s'; state topic '%s'",
			addr, len(fields), rmqc.Exchange, stateTmpl)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("gRPC serve error: %v", err)
		}
	}()

	// ---- graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	<-sigc
	log.Println("shutting down...")
	grpcServer.GracefulStop()
	cancel()
	publisher.Close()
	time.Sleep(300 * time.Millisecond)
}
