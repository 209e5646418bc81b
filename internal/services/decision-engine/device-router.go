package decision_engine

import (
	"fmt"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	pb "github.com/croplogic/irrigo/grpc/gen/go/irrigation"
)

// deviceRouter mantiene un client gRPC per ogni field. Le connessioni sono
// lazy: grpc.NewClient apre il canale solo alla prima RPC.
type deviceRouter struct {
	mu    sync.RWMutex
	conns map[string]*grpc.ClientConn
	clis  map[string]pb.DeviceServiceClient
}

// Verifica a compile-time che *deviceRouter implementi DeviceRouter
var _ DeviceRouter = (*deviceRouter)(nil)

// NewDeviceRouter accetta una stringa tipo "field1=host1:50051,field2=host2:50051"
func NewDeviceRouter(mapStr string) (DeviceRouter, error) {
	dr := &deviceRouter{
		conns: make(map[string]*grpc.ClientConn),
		clis:  make(map[string]pb.DeviceServiceClient),
	}

	for _, p := range strings.Split(mapStr, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid DEVICE_GRPC_ADDR_MAP entry: %q", p)
		}
		field, addr := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if field == "" || addr == "" {
			return nil, fmt.Errorf("invalid DEVICE_GRPC_ADDR_MAP entry: %q", p)
		}

		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			dr.Close()
			return nil, fmt.Errorf("client %s (%s): %w", field, addr, err)
		}

		dr.mu.Lock()
		dr.conns[field] = conn
		dr.clis[field] = pb.NewDeviceServiceClient(conn)
		dr.mu.Unlock()
	}
	return dr, nil
}

func (d *deviceRouter) Get(field string) (pb.DeviceServiceClient, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cli, ok := d.clis[field]
	return cli, ok
}

func (d *deviceRouter) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conns {
		if c != nil {
			_ = c.Close()
		}
	}
	d.clis = map[string]pb.DeviceServiceClient{}
	d.conns = map[string]*grpc.ClientConn{}
}
