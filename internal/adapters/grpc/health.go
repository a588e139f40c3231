package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the gateway.
const ServiceName = "sovereignty.gateway"

type Health struct {
	server *health.Server
}

// RegisterHealth registers the standard gRPC health service and marks the
// gateway serving.
func RegisterHealth(registrar grpc.ServiceRegistrar) *Health {
	srv := health.NewServer()
	healthpb.RegisterHealthServer(registrar, srv)
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &Health{server: srv}
}

func (h *Health) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}

// Watch flips the gateway to NOT_SERVING once done is closed.
func (h *Health) Watch(ctx context.Context, done <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-done:
		h.SetServing(false)
	}
}

// Shutdown marks every service NOT_SERVING ahead of a graceful stop.
func (h *Health) Shutdown() {
	h.server.Shutdown()
}
