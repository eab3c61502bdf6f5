package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miradorstack/mirador-bsm/internal/engine"
	"github.com/miradorstack/mirador-bsm/internal/models"
)

const publishTimeout = 2 * time.Second

// PublishedStatus is the document written for each business service.
type PublishedStatus struct {
	BusinessService string        `json:"businessService"`
	Status          models.Status `json:"status"`
	PreviousStatus  models.Status `json:"previousStatus"`
	ChangedAt       time.Time     `json:"changedAt"`
}

// StatusPublisher mirrors business service status changes into the cache so other
// services can read them without talking to the engine.
type StatusPublisher struct {
	provider Provider
	prefix   string
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewStatusPublisher constructs a publisher writing under <prefix>:status:<service>.
func NewStatusPublisher(provider Provider, prefix string, ttl time.Duration, logger *slog.Logger) *StatusPublisher {
	if provider == nil {
		provider = NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = KeyPrefix
	}
	return &StatusPublisher{provider: provider, prefix: prefix, ttl: ttl, logger: logger, now: time.Now}
}

// Key returns the cache key of a business service.
func (p *StatusPublisher) Key(businessService string) string {
	return Key(p.prefix, "status", businessService)
}

// Handle is an engine.ChangeHandler. Cache failures are logged and never surface to the engine.
func (p *StatusPublisher) Handle(change engine.StateChange) {
	doc := PublishedStatus{
		BusinessService: change.BusinessService(),
		Status:          change.NewStatus,
		PreviousStatus:  change.PreviousStatus,
		ChangedAt:       p.now().UTC(),
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		p.logger.Warn("encode published status failed", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.provider.Set(ctx, p.Key(doc.BusinessService), payload, p.ttl); err != nil {
		p.logger.Warn("publish business service status failed",
			slog.String("business_service", doc.BusinessService),
			slog.Any("error", err),
		)
	}
}

// Forget removes the published status of a business service that no longer exists.
func (p *StatusPublisher) Forget(ctx context.Context, businessService string) error {
	return p.provider.Del(ctx, p.Key(businessService))
}

// Lookup reads back the published status of a business service.
func (p *StatusPublisher) Lookup(ctx context.Context, businessService string) (PublishedStatus, error) {
	payload, err := p.provider.Get(ctx, p.Key(businessService))
	if err != nil {
		return PublishedStatus{}, err
	}
	var doc PublishedStatus
	if err := json.Unmarshal(payload, &doc); err != nil {
		return PublishedStatus{}, fmt.Errorf("decode published status: %w", err)
	}
	return doc, nil
}
