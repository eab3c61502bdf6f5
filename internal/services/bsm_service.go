package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/miradorstack/mirador-bsm/internal/definitions"
	"github.com/miradorstack/mirador-bsm/internal/engine"
	"github.com/miradorstack/mirador-bsm/internal/metrics"
	"github.com/miradorstack/mirador-bsm/internal/utils"
)

var tracer = otel.Tracer("mirador-bsm/services")

// RemovalHook is told about business services that disappeared in a reload.
type RemovalHook func(ctx context.Context, businessService string)

// ReloadStatus summarises the most recent reload attempts.
type ReloadStatus struct {
	Generation  int       `json:"generation"`
	LastAttempt time.Time `json:"lastAttempt"`
	LastSuccess time.Time `json:"lastSuccess"`
	LastError   string    `json:"lastError,omitempty"`
}

// BSMService ties a definition source to the state machine and owns the reload trigger.
type BSMService struct {
	logger  *slog.Logger
	source  definitions.Source
	machine *engine.StateMachine
	catalog *definitions.Catalog

	mu     sync.Mutex
	hooks  []RemovalHook
	status ReloadStatus
}

// NewBSMService constructs the service facade. State changes are mirrored into the
// business service status gauge.
func NewBSMService(logger *slog.Logger, source definitions.Source, machine *engine.StateMachine, catalog *definitions.Catalog) *BSMService {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = definitions.NewCatalog()
	}
	machine.AddHandler(func(change engine.StateChange) {
		metrics.ObserveStateChange(change.BusinessService(), int(change.NewStatus))
	}, nil)

	s := &BSMService{
		logger:  logger,
		source:  source,
		machine: machine,
		catalog: catalog,
	}
	s.OnRemoved(func(_ context.Context, name string) { metrics.ForgetBusinessService(name) })
	return s
}

// OnRemoved registers a hook for business services dropped by a reload.
func (s *BSMService) OnRemoved(hook RemovalHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Reload pulls the definitions and swaps them into the state machine. Reloads are
// serialised; a rejected definition set leaves the running graph untouched.
func (s *BSMService) Reload(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "services.Reload")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastAttempt = time.Now().UTC()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ObserveReload(metrics.OutcomeError)
		s.status.LastError = err.Error()
		s.logger.Error("reload failed", slog.Any("error", err))
		return err
	}

	if s.source == nil {
		return fail(utils.NewAppError(utils.OpDefinitionsLoad, "definition source not configured", nil))
	}
	defs, err := s.source.Load(ctx)
	if err != nil {
		return fail(utils.NewAppError(utils.OpDefinitionsLoad, "fetch definitions", err))
	}

	previous := make(map[string]struct{})
	for _, v := range s.machine.Graph().BusinessServices() {
		previous[v.Name] = struct{}{}
	}
	if err := s.machine.SetBusinessServices(defs); err != nil {
		return fail(utils.NewAppError(utils.OpDefinitionsApply, "apply definitions", err))
	}
	s.catalog.Update(defs)
	if committer, ok := s.source.(definitions.Committer); ok {
		if err := committer.Commit(ctx); err != nil {
			s.logger.Warn("storing last good definitions failed", slog.Any("error", err))
		}
	}

	for _, v := range s.machine.Graph().BusinessServices() {
		delete(previous, v.Name)
	}
	for name := range previous {
		for _, hook := range s.hooks {
			hook(ctx, name)
		}
	}

	s.status.Generation++
	s.status.LastSuccess = s.status.LastAttempt
	s.status.LastError = ""
	metrics.ObserveReload(metrics.OutcomeSuccess)
	span.SetAttributes(
		attribute.Int("bsm.business_services", len(defs)),
		attribute.Int("bsm.removed", len(previous)),
		attribute.Int("bsm.generation", s.status.Generation),
	)
	s.logger.Info("definitions reloaded",
		slog.Int("business_services", len(defs)),
		slog.Int("removed", len(previous)),
		slog.Int("generation", s.status.Generation),
	)
	return nil
}

// Status returns the reload bookkeeping.
func (s *BSMService) Status() ReloadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Machine exposes the underlying state machine.
func (s *BSMService) Machine() *engine.StateMachine {
	return s.machine
}

// Catalog exposes the IP service identity lookup.
func (s *BSMService) Catalog() *definitions.Catalog {
	return s.catalog
}
