package server

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealth(t *testing.T) {
	s := New(&CompileEnv{})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go s.ServeGRPC(lis)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	for _, service := range []string{"", CompileServiceName} {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("Check(%q): %v", service, err)
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Errorf("Check(%q) = %s, want SERVING", service, resp.GetStatus())
		}
	}

	if _, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "unknown"}); err == nil {
		t.Error("Check(unknown) should fail")
	}

	s.Stop()
}

func TestHealthShutdown(t *testing.T) {
	h := NewHealth()
	h.Shutdown()
	resp, err := h.srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: CompileServiceName})
	if err != nil {
		t.Fatal(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status after Shutdown = %s", resp.GetStatus())
	}
}
