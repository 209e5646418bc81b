package device

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	pb "github.com/croplogic/irrigo/grpc/gen/go/irrigation"
)

// GrpcHandler espone DeviceService: traduce le RPC del decision engine in
// cicli di irrigazione sul nodo.
type GrpcHandler struct {
	pb.UnimplementedDeviceServiceServer

	svc *Service
}

func NewGrpcHandler(svc *Service) *GrpcHandler {
	return &GrpcHandler{svc: svc}
}

// ============== RPC: StartIrrigation ==============

func (h *GrpcHandler) StartIrrigation(_ context.Context, req *pb.StartRequest) (*pb.CommandResponse, error) {
	fid, sid := strings.TrimSpace(req.GetFieldId()), strings.TrimSpace(req.GetSensorId())

	sensor, ok := h.svc.LookupSensor(fid, sid)
	if !ok {
		return &pb.CommandResponse{Success: false, Message: fmt.Sprintf("unknown field/sensor %s/%s", fid, sid)}, nil
	}

	// durata: esplicita dal chiamante, altrimenti derivata dalla dose e
	// dalla portata della linea, altrimenti default prudente
	var durMin int32
	switch {
	case req.GetDurationMin() > 0:
		durMin = req.GetDurationMin()
	case req.GetAmountMm() > 0:
		mmPerMin := sensor.MmPerMinute()
		if mmPerMin <= 0 {
			mmPerMin = 10.0 / 60.0 // fallback 10 mm/h
		}
		durMin = int32(math.Ceil(req.GetAmountMm() / mmPerMin))
	default:
		durMin = 15
	}
	if durMin <= 0 {
		durMin = 1
	}

	if !h.svc.StartCycle(fid, sensor, req.GetDecisionId(), req.GetAmountMm(), int(durMin)) {
		return &pb.CommandResponse{Success: false, Message: fmt.Sprintf("cycle already running on %s/%s", fid, sid)}, nil
	}

	log.Printf("device: start %s/%s amount=%.1fmm duration=%dmin decision=%s",
		fid, sid, req.GetAmountMm(), durMin, req.GetDecisionId())
	return &pb.CommandResponse{
		Success: true,
		Message: fmt.Sprintf("irrigation started for %s/%s (duration=%d min)", fid, sid, durMin),
	}, nil
}

// ============== RPC: StopIrrigation ==============

func (h *GrpcHandler) StopIrrigation(_ context.Context, req *pb.StopRequest) (*pb.CommandResponse, error) {
	fid, sid := strings.TrimSpace(req.GetFieldId()), strings.TrimSpace(req.GetSensorId())

	if _, ok := h.svc.LookupSensor(fid, sid); !ok {
		return &pb.CommandResponse{Success: false, Message: fmt.Sprintf("unknown field/sensor %s/%s", fid, sid)}, nil
	}
	if !h.svc.StopCycle(fid, sid) {
		// valvola già ferma: idempotente, nessun errore
		return &pb.CommandResponse{Success: true, Message: fmt.Sprintf("no active cycle on %s/%s", fid, sid)}, nil
	}

	log.Printf("device: stop %s/%s reason=%s", fid, sid, req.GetReason())
	return &pb.CommandResponse{Success: true, Message: fmt.Sprintf("irrigation stopped for %s/%s", fid, sid)}, nil
}
