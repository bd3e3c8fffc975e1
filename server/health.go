package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health reports the compile service status through the standard gRPC
// health protocol.
type Health struct {
	srv *health.Server
}

// NewHealth creates a Health with the compile service serving.
func NewHealth() *Health {
	h := &Health{srv: health.NewServer()}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.srv.SetServingStatus(CompileServiceName, healthpb.HealthCheckResponse_SERVING)
	return h
}

// Register adds the health service to g.
func (h *Health) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, h.srv)
}

// Shutdown marks every service NOT_SERVING.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}
