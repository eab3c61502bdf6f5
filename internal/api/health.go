package api

import (
	"context"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/miradorstack/mirador-bsm/internal/engine"
	"github.com/miradorstack/mirador-bsm/internal/models"
)

// HealthSetter is the part of the grpc health server the bridge writes to.
type HealthSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// HealthBridge publishes each business service as a gRPC health entry named after it.
type HealthBridge struct {
	health HealthSetter
}

// NewHealthBridge constructs a bridge writing into health.
func NewHealthBridge(health HealthSetter) *HealthBridge {
	return &HealthBridge{health: health}
}

// ServingStatus maps an operational status onto a health serving status.
func ServingStatus(status models.Status) healthpb.HealthCheckResponse_ServingStatus {
	switch {
	case !status.Known():
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	case status.IsLessThan(models.StatusMajor):
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}

// Handle is an engine.ChangeHandler.
func (b *HealthBridge) Handle(change engine.StateChange) {
	b.health.SetServingStatus(change.BusinessService(), ServingStatus(change.NewStatus))
}

// Sync seeds the health entries from a status listing.
func (b *HealthBridge) Sync(statuses []engine.ServiceStatus) {
	for _, s := range statuses {
		b.health.SetServingStatus(s.Name, ServingStatus(s.Status))
	}
}

// Forget marks a removed business service as unknown.
func (b *HealthBridge) Forget(_ context.Context, businessService string) {
	b.health.SetServingStatus(businessService, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
}
