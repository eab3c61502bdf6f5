package api

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/miradorstack/mirador-bsm/internal/config"
	"github.com/miradorstack/mirador-bsm/internal/engine"
	"github.com/miradorstack/mirador-bsm/internal/models"
)

func TestServingStatus(t *testing.T) {
	cases := map[models.Status]healthpb.HealthCheckResponse_ServingStatus{
		models.StatusUnknown:       healthpb.HealthCheckResponse_SERVICE_UNKNOWN,
		models.StatusIndeterminate: healthpb.HealthCheckResponse_SERVING,
		models.StatusNormal:        healthpb.HealthCheckResponse_SERVING,
		models.StatusMinor:         healthpb.HealthCheckResponse_SERVING,
		models.StatusMajor:         healthpb.HealthCheckResponse_NOT_SERVING,
		models.StatusCritical:      healthpb.HealthCheckResponse_NOT_SERVING,
	}
	for status, want := range cases {
		if got := ServingStatus(status); got != want {
			t.Fatalf("%s: expected %s, got %s", status, want, got)
		}
	}
}

func TestHealthBridgeOverGRPC(t *testing.T) {
	server, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0", GracefulTimeout: time.Second})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() { _ = server.Start() }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	machine := engine.NewStateMachine(nil)
	bridge := NewHealthBridge(server.Health())
	machine.AddHandler(bridge.Handle, nil)
	if err := machine.SetBusinessServices([]models.BusinessServiceDefinition{
		{Name: "checkout", Edges: []models.EdgeDefinition{{Type: models.EdgeTypeReductionKey, ReductionKey: "k"}}},
	}); err != nil {
		t.Fatalf("load: %v", err)
	}
	bridge.Sync(machine.BusinessServiceStatuses())

	conn, err := grpc.NewClient(server.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "checkout"})
		if err != nil {
			t.Fatalf("health check: %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_SERVICE_UNKNOWN {
		t.Fatalf("expected unknown before alarms, got %s", got)
	}
	machine.HandleNewOrUpdatedAlarm(models.AlarmEvent{ReductionKey: "k", Severity: models.SeverityCritical})
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected not serving, got %s", got)
	}
	machine.HandleNewOrUpdatedAlarm(models.AlarmEvent{ReductionKey: "k", Severity: models.SeverityCleared})
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected serving, got %s", got)
	}
}
